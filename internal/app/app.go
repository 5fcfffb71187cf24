package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/identity-service/internal/authz"
	"github.com/utafrali/identity-service/internal/config"
	"github.com/utafrali/identity-service/internal/event"
	"github.com/utafrali/identity-service/internal/repository/postgres"
	"github.com/utafrali/identity-service/internal/service"
	"github.com/utafrali/identity-service/migrations"
	"github.com/utafrali/identity-service/pkg/database"
	"github.com/utafrali/identity-service/pkg/health"
	pkgkafka "github.com/utafrali/identity-service/pkg/kafka"
)

// App wires together all dependencies and runs the identity service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	producer   *pkgkafka.Producer
	redis      *redis.Client
	roleCache  *authz.RistrettoCache
	identity   *service.IdentityService
	resolver   *authz.Resolver
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "identity")

	// Apply pending schema migrations before serving anything. A failed
	// migration aborts startup.
	if cfg.MigrateOnStart {
		migrator, err := database.NewMigrator(cfg.PostgresDSN(), migrations.FS, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("open migrator: %w", err)
		}
		if err := migrator.Up(ctx); err != nil {
			migrator.Close()
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		migrator.Close()
		logger.Info("database migrations completed")
	}

	// Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Role cache backend.
	var (
		cache       authz.Cache
		memCache    *authz.RistrettoCache
		redisClient *redis.Client
	)
	switch cfg.RoleCacheBackend {
	case config.CacheBackendRedis:
		redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		cache = authz.NewRedisCache(redisClient, cfg.RoleCacheTTL, logger)
		logger.Info("role cache backed by redis", slog.String("addr", cfg.RedisAddr()))
	default:
		memCache, err = authz.NewRistrettoCache(cfg.RoleCacheTTL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("create role cache: %w", err)
		}
		cache = memCache
	}

	// Build the dependency graph.
	userRepo := postgres.NewUserRepository(pool)
	identityRepo := postgres.NewIdentityRepository(pool)
	roleRepo := postgres.NewUserRoleRepository(pool)
	tokenRepo := postgres.NewResetTokenRepository(pool)
	eventProducer := event.NewProducer(producer, logger)
	resolver := authz.NewResolver(roleRepo, cache, logger)
	identitySvc := service.NewIdentityService(
		userRepo, identityRepo, roleRepo, tokenRepo,
		resolver, eventProducer, cfg.ResetTokenTTL, logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// Operational HTTP surface: health and metrics only.
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Get("/healthz", healthHandler.LivenessHandler())
	router.Get("/readyz", healthHandler.ReadinessHandler())
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		producer:   producer,
		redis:      redisClient,
		roleCache:  memCache,
		identity:   identitySvc,
		resolver:   resolver,
		httpServer: httpServer,
	}, nil
}

// Identity exposes the identity service to transports hosted elsewhere.
func (a *App) Identity() *service.IdentityService {
	return a.identity
}

// Resolver exposes the role resolver.
func (a *App) Resolver() *authz.Resolver {
	return a.resolver
}

// Run starts the operational HTTP server and blocks until the context is
// canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components: HTTP server first so in-flight
// requests drain, then the Kafka producer, then the caches and the pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.roleCache != nil {
		a.roleCache.Close()
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
