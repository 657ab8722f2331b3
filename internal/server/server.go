package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/storefront/internal/activity"
	"github.com/victornm/storefront/internal/api"
	"github.com/victornm/storefront/internal/event"
	"github.com/victornm/storefront/internal/gate"
	"github.com/victornm/storefront/internal/kv"
	"github.com/victornm/storefront/internal/quizresult"
	"github.com/victornm/storefront/internal/telemetry"
	"github.com/victornm/storefront/internal/web"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level string
	}

	Trace struct {
		// Endpoint is the OTLP/HTTP collector; empty disables tracing.
		Endpoint    string
		ServiceName string
		SampleRatio float64
	}

	Store struct {
		// Backend is redis or postgres. Empty means redis.
		Backend   string
		Serialize bool
	}

	Gate struct {
		Patterns []string
	}

	Redis struct {
		Store struct {
			Addrs []string
			Pass  string
		}

		Activity struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Store struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}
}

type Server struct {
	c Config

	eb *event.Bus

	shutdownTracing func(context.Context) error

	infra struct {
		redis struct {
			store    redis.UniversalClient
			activity redis.UniversalClient
			pubsub   redis.UniversalClient
		}

		postgres struct {
			store *pgxpool.Pool
		}

		kv kv.Store
	}

	service struct {
		quizResult *quizresult.Service
		activity   *activity.Service
	}

	gate *gate.Gate

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	// Before any client or service asks the global provider for a tracer.
	var err error
	s.shutdownTracing, err = telemetry.SetupTracing(context.Background(), telemetry.TracingConfig{
		Endpoint:    c.Trace.Endpoint,
		ServiceName: c.Trace.ServiceName,
		SampleRatio: c.Trace.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("server: init tracing: %w", err)
	}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	switch s.c.Store.Backend {
	case "", BackendRedis:
		s.infra.kv = kv.NewRedis(kv.RedisConfig{Redis: s.infra.redis.store})
	case BackendPostgres:
		if err := s.initPostgres(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	default:
		return fmt.Errorf("unknown store backend %q", s.c.Store.Backend)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(name, r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	if s.c.Store.Backend == "" || s.c.Store.Backend == BackendRedis {
		s.infra.redis.store, err = connect("store", s.c.Redis.Store.Addrs, s.c.Redis.Store.Pass)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}

	s.infra.redis.activity, err = connect("activity", s.c.Redis.Activity.Addrs, s.c.Redis.Activity.Pass)
	if err != nil {
		return fmt.Errorf("activity: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	pc := s.c.Postgres.Store
	s.infra.postgres.store, err = connect(pc.Addr, pc.User, pc.Pass, pc.Name)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := kv.NewPostgres(kv.PostgresConfig{DB: s.infra.postgres.store})
	if err := p.Migrate(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	s.infra.kv = p
	return nil
}

func (s *Server) initService() (err error) {
	s.service.quizResult = quizresult.NewService(quizresult.Config{
		KV:        s.infra.kv,
		EventBus:  s.eb,
		Serialize: s.c.Store.Serialize,
	})

	s.service.activity = activity.NewService(activity.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.activity,
		Prefix:   s.c.Redis.Activity.Prefix,
	})

	s.gate, err = gate.New(gate.Config{Patterns: s.c.Gate.Patterns})
	if err != nil {
		return fmt.Errorf("gate: %w", err)
	}

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(
		gin.Recovery(),
		telemetry.RequestID(),
		telemetry.AccessLog(),
		telemetry.HTTPMetrics(),
	)

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	api.New(api.Config{
		HTTP:         e,
		GRPC:         s.grpc,
		EventBus:     s.eb,
		QuizResult:   s.service.quizResult,
		Activity:     s.service.activity,
		Gate:         s.gate,
		Providers:    web.Providers{},
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	// Handlers still running may publish to Redis, so stop the bus first.
	s.eb.Stop()

	for name, r := range map[string]redis.UniversalClient{
		"store":    s.infra.redis.store,
		"activity": s.infra.redis.activity,
		"pubsub":   s.infra.redis.pubsub,
	} {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, fmt.Sprintf("server: close redis %s failed", name), "error", err)
		}
	}

	if s.infra.postgres.store != nil {
		s.infra.postgres.store.Close()
	}

	if err := s.shutdownTracing(ctx); err != nil {
		slog.ErrorContext(ctx, "server: flush traces failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
