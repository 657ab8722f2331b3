package web

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/victornm/storefront/internal/domain"
)

// AdminDashboardPath is where the landing page sends users to.
const AdminDashboardPath = "/admin"

// TestPage is a static page reachable outside the shop layout, used to check
// navigation and the way into the admin area.
func TestPage(nav templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<main class="test-page"><h1>Test Page</h1>`)
		h.raw(`<p>This page checks that the storefront renders and that the navigation reaches the admin dashboard.</p>`)
		h.component(nav)
		h.raw(`<a`)
		h.href(AdminDashboardPath)
		h.raw(`>Go to Admin Dashboard</a></main>`)
		return h.err
	})
}

// ShopPage is the content of a shop page; page is the path below /shop.
func ShopPage(page string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="shop-page"><h1>Shop</h1>`)
		if page != "" {
			h.raw(`<p class="shop-page-path">`)
			h.text(page)
			h.raw(`</p>`)
		}
		h.raw(`</section>`)
		return h.err
	})
}

type AdminDashboard struct {
	UserID  string
	Results []domain.QuizResult
	Summary domain.QuizResultSummary
	Takers  []domain.QuizTaker
	// Error is shown instead of the results when loading them failed.
	Error string
}

func AdminDashboardPage(d AdminDashboard) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<main class="admin-dashboard"><h1>Admin Dashboard</h1>`)

		h.raw(`<form method="GET" action="/admin/dashboard"><label>User ID <input name="user"`)
		h.attr("value", d.UserID)
		h.raw(`></label><button type="submit">Show quiz results</button></form>`)

		h.raw(`<section class="quiz-takers"><h2>Recent quiz takers</h2><ul>`)
		for _, t := range d.Takers {
			h.raw(`<li><a`)
			h.href("/admin/dashboard?user=" + url.QueryEscape(t.UserID))
			h.raw(`>`)
			h.text(t.UserID)
			h.raw(`</a></li>`)
		}
		h.raw(`</ul></section>`)

		if d.UserID != "" {
			writeQuizResults(h, d)
		}

		h.raw(`</main>`)
		return h.err
	})
}

func writeQuizResults(h *htmlWriter, d AdminDashboard) {
	h.raw(`<section class="quiz-results"><h2>Quiz results of `)
	h.text(d.UserID)
	h.raw(`</h2>`)

	if d.Error != "" {
		h.raw(`<p class="error">`)
		h.text(d.Error)
		h.raw(`</p></section>`)
		return
	}

	h.raw(`<p class="summary">`)
	h.text(strconv.Itoa(d.Summary.Count) + " results")
	if d.Summary.Scored > 0 {
		h.text(", average score " + d.Summary.AverageScore.StringFixed(2))
	}
	h.raw(`</p><table><thead><tr><th>ID</th><th>Date</th><th>Result</th></tr></thead><tbody>`)
	for _, r := range d.Results {
		h.raw(`<tr><td>`)
		h.text(strconv.FormatInt(r.ID, 10))
		h.raw(`</td><td>`)
		h.text(r.Date)
		h.raw(`</td><td><code>`)
		h.text(payloadString(r.Payload))
		h.raw(`</code></td></tr>`)
	}
	h.raw(`</tbody></table></section>`)
}

// payloadString renders a payload with sorted keys.
func payloadString(p map[string]json.RawMessage) string {
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}
