// Package gate intercepts requests to the admin area before they reach the
// pages. It currently lets every request through: authorization is enforced by
// the admin pages themselves.
package gate

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/storefront/internal/telemetry"
)

// AdminPattern is the set of paths the gate inspects.
const AdminPattern = "/admin/:path*"

type Action int

const (
	// ActionContinue forwards the request unchanged.
	ActionContinue Action = iota
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Request is what the gate knows about an inbound request.
type Request struct {
	Method string
	Path   string
	Header http.Header
}

type Decision struct {
	// Matched is true when the path is one the gate inspects.
	Matched bool
	Action  Action
	Params  map[string]string
}

type Config struct {
	// Patterns default to AdminPattern.
	Patterns []string
}

type Gate struct {
	patterns []*Pattern
}

func New(c Config) (*Gate, error) {
	if len(c.Patterns) == 0 {
		c.Patterns = []string{AdminPattern}
	}

	g := &Gate{patterns: make([]*Pattern, 0, len(c.Patterns))}
	for _, raw := range c.Patterns {
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		g.patterns = append(g.patterns, p)
	}

	return g, nil
}

// Decide is pure: the same request always yields the same decision and
// nothing outside the returned value is touched.
func (g *Gate) Decide(r Request) Decision {
	for _, p := range g.patterns {
		if params, ok := p.Match(r.Path); ok {
			return Decision{Matched: true, Action: ActionContinue, Params: params}
		}
	}

	return Decision{Matched: false, Action: ActionContinue}
}

// Middleware applies Decide to every request. It never writes to the response.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Decide(Request{
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
			Header: c.Request.Header,
		})

		if d.Matched {
			telemetry.AdminGateRequests.WithLabelValues(d.Action.String()).Inc()
			slog.DebugContext(c.Request.Context(), "gate: admin request",
				"path", c.Request.URL.Path,
				"action", d.Action.String(),
			)
		}

		c.Next()
	}
}
