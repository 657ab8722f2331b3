package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"

	"github.com/victornm/storefront/internal/activity"
	"github.com/victornm/storefront/internal/domain"
	"github.com/victornm/storefront/internal/errors"
	"github.com/victornm/storefront/internal/quizresult"
	"github.com/victornm/storefront/internal/web"
)

type (
	QuizResultsResponse struct {
		Results []domain.QuizResult      `json:"results"`
		Summary domain.QuizResultSummary `json:"summary"`
	}

	QuizTakersResponse struct {
		Takers []domain.QuizTaker `json:"takers"`
	}
)

func (a *API) registerHTTP(e *gin.Engine) {
	if a.gate != nil {
		e.Use(a.gate.Middleware())
	}

	nav := web.Navbar(web.DefaultNavLinks)
	e.GET("/test", gin.WrapH(templ.Handler(web.Document("Test Page", web.TestPage(nav)))))

	e.GET("/", a.shopPage)
	e.GET("/shop", a.shopPage)
	e.GET("/shop/*page", a.shopPage)

	e.GET("/admin", a.adminDashboard)
	e.GET("/admin/dashboard", a.adminDashboard)

	g := e.Group("/api")
	g.POST("/quiz-results/:userId", a.saveQuizResult)
	g.GET("/quiz-results/:userId", a.getQuizResults)
	g.GET("/quiz-takers", a.listQuizTakers)
}

func (a *API) shopPage(c *gin.Context) {
	page := strings.Trim(c.Param("page"), "/")
	renderPage(c, http.StatusOK, web.Document("Shop", web.Wrap(web.ShopLayout(a.providers), web.ShopPage(page))))
}

// adminDashboard does not check who is asking: the admin gate lets every
// request through and authorization belongs to the page once an auth provider
// exists.
func (a *API) adminDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	d := web.AdminDashboard{UserID: c.Query("user")}

	if a.as != nil {
		takers, err := a.as.ListRecent(ctx, activity.ListRecentRequest{})
		if err != nil {
			slog.ErrorContext(ctx, "api: list quiz takers failed", "error", err)
		}
		d.Takers = takers
	}

	if d.UserID != "" {
		results, err := a.qrs.Get(ctx, d.UserID)
		if err != nil {
			slog.ErrorContext(ctx, "api: get quiz results failed", "user_id", d.UserID, "error", err)
			d.Error = errors.Convert(err).Message
		}
		d.Results = results
		d.Summary = quizresult.Summarize(results)
	}

	renderPage(c, http.StatusOK, web.Document("Admin Dashboard", web.AdminDashboardPage(d)))
}

func (a *API) saveQuizResult(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("read request body"),
			errors.WithCause(err),
		))
		return
	}

	r, err := a.qrs.Save(c.Request.Context(), c.Param("userId"), body)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, r)
}

func (a *API) getQuizResults(c *gin.Context) {
	results, err := a.qrs.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, QuizResultsResponse{
		Results: results,
		Summary: quizresult.Summarize(results),
	})
}

func (a *API) listQuizTakers(c *gin.Context) {
	var limit int64
	if s := c.Query("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(c, errors.InvalidArgument("limit must be an integer: %q", s))
			return
		}
		limit = n
	}

	takers, err := a.as.ListRecent(c.Request.Context(), activity.ListRecentRequest{Limit: limit})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, QuizTakersResponse{Takers: takers})
}

func renderPage(c *gin.Context, status int, page templ.Component) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(c.Request.Context(), c.Writer); err != nil {
		slog.ErrorContext(c.Request.Context(), "api: render page failed",
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
}
