package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/victornm/storefront/internal/errors"
)

// requestIDMetadata is RequestIDHeader as gRPC metadata keys are lower case.
const requestIDMetadata = "x-request-id"

var grpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "grpc_requests_total",
	Help:      "Number of unary gRPC calls, by method and status code.",
}, []string{"method", "code"})

var grpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "grpc_request_duration_seconds",
	Help:      "Duration of unary gRPC calls.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method"})

// GRPCServerInterceptor chains metrics, logging and panic recovery. Recovery
// runs innermost so a panic is logged and counted as Internal.
func GRPCServerInterceptor() grpc.ServerOption {
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
		logging.WithFieldsFromContext(grpcRequestIDFields),
	}

	return grpc.ChainUnaryInterceptor(
		grpcMetrics,
		logging.UnaryServerInterceptor(grpcServerLogger(slog.Default()), opts...),
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(grpcPanicHandler)),
	)
}

func grpcServerLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func grpcRequestIDFields(ctx context.Context) logging.Fields {
	if id := GRPCRequestID(ctx); id != "" {
		return logging.Fields{requestIDKey, id}
	}
	return nil
}

// GRPCRequestID returns the request ID sent by the caller, if any.
func GRPCRequestID(ctx context.Context) string {
	if ids := metadata.ValueFromIncomingContext(ctx, requestIDMetadata); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func grpcMetrics(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	grpcRequests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	grpcDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())

	return resp, err
}

func grpcPanicHandler(ctx context.Context, p any) error {
	slog.ErrorContext(ctx, "grpc: handler panic", "error", fmt.Errorf("%v, stack: %s", p, debug.Stack()))
	return errors.Internal(fmt.Errorf("panic: %v", p))
}
