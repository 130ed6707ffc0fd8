package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quizmaster/internal/api"
	"github.com/victornm/quizmaster/internal/event"
	"github.com/victornm/quizmaster/internal/leaderboard"
	"github.com/victornm/quizmaster/internal/quizapi"
	"github.com/victornm/quizmaster/internal/storage/memory"
	"github.com/victornm/quizmaster/internal/storage/postgres"
	"github.com/victornm/quizmaster/internal/telemetry"
)

const connectTimeout = 10 * time.Second

type Config struct {
	HTTP struct {
		Port         int32
		AllowOrigins []string
	}

	GRPC struct {
		Port int32
	}

	QuizAPI struct {
		URL     string
		Key     string
		Timeout time.Duration
	}

	Leaderboard struct {
		TopLimit int
		CacheTTL time.Duration
	}

	Redis struct {
		Leaderboard struct {
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
		Leaderboard postgres.Config

		AutoMigrate bool
	}
}

// DefaultConfig is the configuration used for keys missing from the file and environment.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.QuizAPI.URL = quizapi.DefaultURL
	c.QuizAPI.Timeout = 10 * time.Second
	c.Leaderboard.TopLimit = leaderboard.DefaultTopLimit
	c.Leaderboard.CacheTTL = leaderboard.DefaultCacheTTL
	c.Redis.Leaderboard.Prefix = "quizmaster"
	c.Redis.Pubsub.Prefix = "quizmaster"
	c.Postgres.Leaderboard.SSLMode = "disable"
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			leaderboard *postgres.Connector
		}
	}

	service struct {
		quiz        *quizapi.Client
		leaderboard *leaderboard.Service
	}

	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

// initRedis connects the configured clients. Without addresses the
// leaderboard is served uncached and no notifications are published.
func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		if len(addrs) == 0 {
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

// initPostgres prepares the leaderboard database. Without an address entries
// are kept in memory.
func (s *Server) initPostgres() error {
	pc := s.c.Postgres.Leaderboard
	if pc.Addr == "" {
		slog.Warn("server: postgres not configured, leaderboard is kept in memory")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if s.c.Postgres.AutoMigrate {
		if err := postgres.Migrate(ctx, pc); err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
	}

	conn := postgres.NewConnector(pc)
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.postgres.leaderboard = conn
	return nil
}

func (s *Server) initService() {
	s.service.quiz = quizapi.NewClient(quizapi.Config{
		URL:     s.c.QuizAPI.URL,
		Key:     s.c.QuizAPI.Key,
		Timeout: s.c.QuizAPI.Timeout,
	})

	var store leaderboard.Store = memory.NewLeaderboardStore()
	if s.infra.postgres.leaderboard != nil {
		store = postgres.NewLeaderboardStore(s.infra.postgres.leaderboard)
	}

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Store:    store,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
		CacheTTL: s.c.Leaderboard.CacheTTL,
		TopLimit: s.c.Leaderboard.TopLimit,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery(), telemetry.GinMetrics(), cors.New(s.corsConfig()))
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor()...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	c := api.Config{
		Router:       e,
		EventBus:     s.eb,
		Leaderboard:  s.service.leaderboard,
		Quiz:         s.service.quiz,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
		AllowOrigins: s.c.HTTP.AllowOrigins,
	}
	if s.infra.postgres.leaderboard != nil {
		c.Health = s.infra.postgres.leaderboard
	}
	if s.infra.redis.pubsub != nil {
		c.Redis = s.infra.redis.pubsub
	}
	api.New(c)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) corsConfig() cors.Config {
	c := cors.DefaultConfig()
	if len(s.c.HTTP.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = s.c.HTTP.AllowOrigins
	}
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	c.MaxAge = 12 * time.Hour
	return c
}

// Handler returns the HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves HTTP and gRPC until Shutdown is called or either server fails.
func (s *Server) Start() error {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc server: listen: %w", err)
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

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

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
		return err
	}
	return nil
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for _, r := range []redis.UniversalClient{s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if r != nil {
			_ = r.Close()
		}
	}
	if s.infra.postgres.leaderboard != nil {
		s.infra.postgres.leaderboard.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
