package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/storefront/internal/activity"
	"github.com/victornm/storefront/internal/domain"
	"github.com/victornm/storefront/internal/errors"
	"github.com/victornm/storefront/internal/event"
	"github.com/victornm/storefront/internal/gate"
	"github.com/victornm/storefront/internal/quizresult"
	"github.com/victornm/storefront/internal/web"
)

type Config struct {
	HTTP         *gin.Engine
	GRPC         *grpc.Server
	EventBus     *event.Bus
	QuizResult   *quizresult.Service
	Activity     *activity.Service
	Gate         *gate.Gate
	Providers    web.Providers
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	qrs *quizresult.Service
	as  *activity.Service

	gate      *gate.Gate
	providers web.Providers

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		qrs:       c.QuizResult,
		as:        c.Activity,
		gate:      c.Gate,
		providers: c.Providers,
		redis:     c.Redis,
		prefix:    c.PubsubPrefix,
	}

	// HTTP routes and pages
	if c.HTTP != nil {
		a.registerHTTP(c.HTTP)
	}

	// gRPC APIs
	if c.GRPC != nil {
		RegisterQuizResultServiceServer(c.GRPC, a)
	}

	// Register event handlers
	if c.EventBus != nil && c.Redis != nil {
		c.EventBus.Subscribe(domain.EventNameQuizResultSaved, func(ctx context.Context, e event.Event) error {
			return a.PublishQuizResultSaved(ctx, e.(domain.EventQuizResultSaved))
		})
	}

	return a
}

// writeError renders err as JSON and aborts the chain.
func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)

	status := e.HTTPStatusCode()
	if status >= 500 {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"path", c.Request.URL.Path,
			"error", err,
		)
	}

	c.AbortWithStatusJSON(status, e)
}
