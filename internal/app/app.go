// Package app wires the dependency graph and runs the API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/chirpnet/chirp/internal/config"
	"github.com/chirpnet/chirp/internal/event"
	handler "github.com/chirpnet/chirp/internal/handler/http"
	"github.com/chirpnet/chirp/internal/oauth"
	"github.com/chirpnet/chirp/internal/repository/postgres"
	redisrepo "github.com/chirpnet/chirp/internal/repository/redis"
	"github.com/chirpnet/chirp/internal/service"
	"github.com/chirpnet/chirp/internal/token"
	"github.com/chirpnet/chirp/migrations"
	"github.com/chirpnet/chirp/pkg/database"
	"github.com/chirpnet/chirp/pkg/health"
	"github.com/chirpnet/chirp/pkg/httpclient"
	pkgkafka "github.com/chirpnet/chirp/pkg/kafka"
	pkgmiddleware "github.com/chirpnet/chirp/pkg/middleware"
	"github.com/chirpnet/chirp/pkg/tracing"
)

// App wires together all dependencies and runs the API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// New creates the application, initializing all dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "chirp-api",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	database.RegisterPoolMetrics(pool, "chirp-api")

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	codec, err := token.NewCodec(token.Config{
		Issuer:               cfg.JWTIssuer,
		AccessSecret:         cfg.JWTAccessSecret,
		RefreshSecret:        cfg.JWTRefreshSecret,
		EmailVerifySecret:    cfg.JWTEmailVerifySecret,
		ForgotPasswordSecret: cfg.JWTForgotPasswordSecret,
		AccessTTL:            cfg.AccessTokenExpiry,
		RefreshTTL:           cfg.RefreshTokenExpiry,
		EmailVerifyTTL:       cfg.EmailVerifyTokenExpiry,
		ForgotPasswordTTL:    cfg.ForgotPasswordTokenExpiry,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build token codec: %w", err)
	}

	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	followerRepo := postgres.NewFollowerRepository(pool)
	profileCache := redisrepo.NewProfileCache(redisClient, cfg.ProfileCacheTTL)

	outbound := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("google"),
		logger,
	)
	googleClient := oauth.NewGoogleClient(oauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
	}, outbound)
	if !cfg.GoogleOAuthConfigured() {
		logger.Warn("google oauth is not configured, sign-in via google will fail")
	}

	eventProducer := event.NewProducer(producer, logger)
	authService := service.NewAuthService(
		userRepo, sessionRepo, profileCache, codec, googleClient, eventProducer,
		service.AuthConfig{
			IssueSessionOnRegister: cfg.IssueSessionOnRegister,
			IssueSessionOnVerify:   cfg.IssueSessionOnVerify,
		},
		logger,
	)
	followService := service.NewFollowService(followerRepo, eventProducer, logger)

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	router := handler.NewRouter(handler.RouterConfig{
		Auth:       handler.NewAuthHandler(authService, cfg.GoogleClientRedirectURI, logger),
		Follow:     handler.NewFollowHandler(followService, logger),
		Validators: handler.NewValidators(userRepo, sessionRepo, codec),
		Health:     healthHandler,
		CORS: pkgmiddleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
		},
		Logger: logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and a background session sweeper, and blocks
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go a.sweepExpiredSessions(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// sweepExpiredSessions periodically deletes sessions whose refresh token has
// lapsed, keeping the table from accumulating dead rows.
func (a *App) sweepExpiredSessions(ctx context.Context) {
	sessions := postgres.NewSessionRepository(a.pool)
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := sessions.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				a.logger.Error("session sweep failed", slog.String("error", err.Error()))
				continue
			}
			if deleted > 0 {
				a.logger.Info("swept expired sessions", slog.Int64("deleted", deleted))
			}
		}
	}
}

// Shutdown stops everything in dependency order: drain HTTP, flush spans,
// close the Kafka producer, then the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
