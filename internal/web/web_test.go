package web_test

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/storefront/internal/domain"
	"github.com/victornm/storefront/internal/web"
)

func TestTestPage(t *testing.T) {
	got := render(t, web.TestPage(web.Navbar(web.DefaultNavLinks)))

	assert.Contains(t, got, `<h1>Test Page</h1>`)
	assert.Contains(t, got, `<nav class="navbar">`)
	assert.Contains(t, got, `<a href="/admin">Go to Admin Dashboard</a>`)
	assert.Less(t, strings.Index(got, "<h1>"), strings.Index(got, "<nav"), "heading should come before navigation")
	assert.Less(t, strings.Index(got, "<nav"), strings.Index(got, `Go to Admin Dashboard`), "navigation should come before the admin link")
}

func TestShopLayout(t *testing.T) {
	type ctxKey struct{}

	child := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		viewer, _ := ctx.Value(ctxKey{}).(string)
		_, err := io.WriteString(w, `<p id="child">hello `+viewer+`</p>`)
		return err
	})

	tests := map[string]struct {
		providers web.Providers
		assert    func(t *testing.T, got string)
	}{
		"default providers should render container, navigation, then children": {
			assert: func(t *testing.T, got string) {
				require.True(t, strings.HasPrefix(got, `<div class="shop-layout"><nav class="navbar">`), got)
				require.True(t, strings.HasSuffix(got, `<p id="child">hello </p></div>`), got)
			},
		},

		"injected providers should decorate the children's context": {
			providers: web.Providers{
				Auth: func(ctx context.Context) context.Context {
					return context.WithValue(ctx, ctxKey{}, "alice")
				},
			},
			assert: func(t *testing.T, got string) {
				assert.Contains(t, got, `<p id="child">hello alice</p>`)
			},
		},

		"injected chrome should surround the children": {
			providers: web.Providers{
				Navbar:     templ.Raw(`<nav id="custom"></nav>`),
				CartDrawer: templ.Raw(`<aside id="cart"></aside>`),
				Toaster:    templ.Raw(`<div id="toasts"></div>`),
			},
			assert: func(t *testing.T, got string) {
				assert.Equal(t, `<div class="shop-layout"><nav id="custom"></nav><p id="child">hello </p><aside id="cart"></aside><div id="toasts"></div></div>`, got)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tt.assert(t, render(t, web.Wrap(web.ShopLayout(tt.providers), child)))
		})
	}
}

func TestShopLayout_ChildrenAreNotPassedDown(t *testing.T) {
	// A navbar that itself renders children must not receive the page.
	nav := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return templ.GetChildren(ctx).Render(ctx, w)
	})

	got := render(t, web.Wrap(web.ShopLayout(web.Providers{Navbar: nav}), web.ShopPage("")))
	assert.Equal(t, 1, strings.Count(got, `<section class="shop-page">`))
}

func TestNavbar_Escapes(t *testing.T) {
	got := render(t, web.Navbar([]web.NavLink{
		{Label: "<b>Deals</b>", URL: "/shop?tag=a&b"},
		{Label: "Bad", URL: "javascript:alert(1)"},
	}))

	assert.Contains(t, got, `&lt;b&gt;Deals&lt;/b&gt;`)
	assert.Contains(t, got, `href="/shop?tag=a&amp;b"`)
	assert.NotContains(t, got, `javascript:`)
}

func TestAdminDashboardPage(t *testing.T) {
	d := web.AdminDashboard{
		UserID: "u<1>",
		Results: []domain.QuizResult{
			{ID: 1714557600000, Date: "2024-05-01T10:00:00.000Z", Payload: map[string]json.RawMessage{"score": json.RawMessage(`8`)}},
		},
		Summary: domain.QuizResultSummary{Count: 1, Scored: 1, AverageScore: decimal.NewFromInt(8)},
		Takers:  []domain.QuizTaker{{UserID: "u 2", LastResultID: 1}},
	}

	got := render(t, web.AdminDashboardPage(d))

	assert.Contains(t, got, `value="u&lt;1&gt;"`)
	assert.Contains(t, got, `Quiz results of u&lt;1&gt;`)
	assert.Contains(t, got, `1 results, average score 8.00`)
	assert.Contains(t, got, `<td>1714557600000</td><td>2024-05-01T10:00:00.000Z</td>`)
	assert.Contains(t, got, `href="/admin/dashboard?user=u+2"`)

	t.Run("load error replaces the results", func(t *testing.T) {
		d.Error = "quiz results are unavailable"
		got := render(t, web.AdminDashboardPage(d))
		assert.Contains(t, got, `<p class="error">quiz results are unavailable</p>`)
		assert.NotContains(t, got, `<table>`)
	})

	t.Run("no user selected shows only the takers", func(t *testing.T) {
		got := render(t, web.AdminDashboardPage(web.AdminDashboard{}))
		assert.NotContains(t, got, `quiz-results`)
	})
}

func TestDocument(t *testing.T) {
	got := render(t, web.Document("Shop & Co", web.ShopPage("shoes")))
	assert.True(t, strings.HasPrefix(got, "<!DOCTYPE html>"))
	assert.Contains(t, got, `<title>Shop &amp; Co</title>`)
	assert.Contains(t, got, `<p class="shop-page-path">shoes</p>`)
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()

	var b strings.Builder
	require.NoError(t, c.Render(context.Background(), &b))
	return b.String()
}
