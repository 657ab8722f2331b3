package gate_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/storefront/internal/gate"
)

func TestPattern_Match(t *testing.T) {
	tests := map[string]struct {
		pattern string
		path    string
		ok      bool
		params  map[string]string
	}{
		"admin root":                 {pattern: gate.AdminPattern, path: "/admin", ok: true, params: map[string]string{}},
		"admin root trailing slash":  {pattern: gate.AdminPattern, path: "/admin/", ok: true, params: map[string]string{}},
		"admin page":                 {pattern: gate.AdminPattern, path: "/admin/dashboard", ok: true, params: map[string]string{"path": "dashboard"}},
		"nested admin page":          {pattern: gate.AdminPattern, path: "/admin/users/5", ok: true, params: map[string]string{"path": "users/5"}},
		"shop page":                  {pattern: gate.AdminPattern, path: "/shop/products", ok: false},
		"site root":                  {pattern: gate.AdminPattern, path: "/", ok: false},
		"admin as prefix of segment": {pattern: gate.AdminPattern, path: "/administrator", ok: false},
		"admin below other segment":  {pattern: gate.AdminPattern, path: "/shop/admin", ok: false},
		"one or more needs one":      {pattern: "/admin/:path+", path: "/admin", ok: false},
		"one or more":                {pattern: "/admin/:path+", path: "/admin/a/b", ok: true, params: map[string]string{"path": "a/b"}},
		"single parameter":           {pattern: "/admin/users/:id", path: "/admin/users/5", ok: true, params: map[string]string{"id": "5"}},
		"single parameter too long":  {pattern: "/admin/users/:id", path: "/admin/users/5/edit", ok: false},
		"single parameter missing":   {pattern: "/admin/users/:id", path: "/admin/users", ok: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			params, ok := gate.MustCompile(tt.pattern).Match(tt.path)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.params, params)
			}
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	for _, p := range []string{"", "admin", "/admin/:", "/admin/(", "/admin/()"} {
		_, err := gate.Compile(p)
		assert.Error(t, err, p)
	}
}

func TestGate_Decide(t *testing.T) {
	g, err := gate.New(gate.Config{})
	require.NoError(t, err)

	tests := map[string]struct {
		req  gate.Request
		want bool
	}{
		"admin dashboard":                   {req: gate.Request{Method: http.MethodGet, Path: "/admin/dashboard"}, want: true},
		"admin user":                        {req: gate.Request{Method: http.MethodGet, Path: "/admin/users/5"}, want: true},
		"admin with no credentials":         {req: gate.Request{Method: http.MethodPost, Path: "/admin/users/5", Header: http.Header{}}, want: true},
		"admin with a bearer token":         {req: gate.Request{Method: http.MethodGet, Path: "/admin", Header: http.Header{"Authorization": {"Bearer x"}}}, want: true},
		"shop page is not inspected":        {req: gate.Request{Method: http.MethodGet, Path: "/shop"}, want: false},
		"quiz result api is not inspected":  {req: gate.Request{Method: http.MethodPost, Path: "/api/quiz-results/u1"}, want: false},
		"landing page is not inspected":     {req: gate.Request{Method: http.MethodGet, Path: "/test"}, want: false},
		"similar prefix is not inspected":   {req: gate.Request{Method: http.MethodGet, Path: "/admins"}, want: false},
		"admin in a query is not inspected": {req: gate.Request{Method: http.MethodGet, Path: "/search"}, want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := g.Decide(tt.req)
			assert.Equal(t, tt.want, d.Matched)
			assert.Equal(t, gate.ActionContinue, d.Action, "the gate should always forward")
		})
	}
}

// TestGate_MiddlewareIsTransparent serves the same requests with and without
// the gate and expects byte-identical responses.
func TestGate_MiddlewareIsTransparent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	g, err := gate.New(gate.Config{})
	require.NoError(t, err)

	handler := func(c *gin.Context) {
		c.Header("X-Seen-Path", c.Request.URL.Path)
		c.Header("X-Seen-Auth", c.GetHeader("Authorization"))
		body, _ := c.GetRawData()
		c.String(http.StatusOK, "%s %s %s", c.Request.Method, c.Request.URL.String(), body)
	}

	makeEngine := func(withGate bool) *gin.Engine {
		e := gin.New()
		if withGate {
			e.Use(g.Middleware())
		}
		e.Any("/*any", handler)
		return e
	}

	type request struct {
		method, target, body, auth string
	}

	requests := []request{
		{method: http.MethodGet, target: "/admin/dashboard"},
		{method: http.MethodGet, target: "/admin/users/5?tab=orders"},
		{method: http.MethodPost, target: "/admin/users/5", body: `{"role":"staff"}`, auth: "Bearer expired"},
		{method: http.MethodGet, target: "/admin"},
		{method: http.MethodGet, target: "/shop/products"},
		{method: http.MethodPost, target: "/api/quiz-results/u1", body: `{"score":1}`},
		{method: http.MethodGet, target: "/"},
	}

	for _, r := range requests {
		t.Run(r.method+" "+r.target, func(t *testing.T) {
			serve := func(e *gin.Engine) *httptest.ResponseRecorder {
				req := httptest.NewRequest(r.method, r.target, strings.NewReader(r.body))
				if r.auth != "" {
					req.Header.Set("Authorization", r.auth)
				}
				w := httptest.NewRecorder()
				e.ServeHTTP(w, req)
				return w
			}

			want, got := serve(makeEngine(false)), serve(makeEngine(true))

			assert.Equal(t, http.StatusOK, got.Code, "no redirect or rejection")
			assert.Equal(t, want.Code, got.Code)
			assert.Equal(t, want.Header(), got.Header())
			assert.Equal(t, want.Body.String(), got.Body.String())
		})
	}
}
