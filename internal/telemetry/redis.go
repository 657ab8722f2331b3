package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// MonitorRedis instruments r with tracing and a debug log hook. Spans go to
// the global tracer provider, so call it after SetupTracing.
// name tells apart the clients of one process in the logs.
func MonitorRedis(name string, r redis.UniversalClient) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	r.AddHook(redisLog{name: name})
	return nil
}

type redisLog struct {
	name string
}

func (l redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		slog.InfoContext(ctx, fmt.Sprintf("redis %s: dialing %s %s", l.name, network, addr))
		conn, err := hook(ctx, network, addr)
		if err != nil {
			slog.ErrorContext(ctx, fmt.Sprintf("redis %s: dial %s %s failed", l.name, network, addr), "error", err)
		}
		return conn, err
	}
}

func (l redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		slog.DebugContext(ctx, fmt.Sprintf("redis %s: processed <%s>", l.name, cmd.Name()),
			"latency", time.Since(start),
			"error", err,
		)
		return err
	}
}

func (l redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		slog.DebugContext(ctx, fmt.Sprintf("redis %s: processed pipeline of %d commands", l.name, len(cmds)),
			"latency", time.Since(start),
			"error", err,
		)
		return err
	}
}
