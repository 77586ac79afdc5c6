package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
	"github.com/NoroNetwork/ppv-streaming/internal/gateway/mediamtx"
	stripegw "github.com/NoroNetwork/ppv-streaming/internal/gateway/stripe"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/config"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/database"
	kafkainfra "github.com/NoroNetwork/ppv-streaming/internal/infra/kafka"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/logger"
	natsinfra "github.com/NoroNetwork/ppv-streaming/internal/infra/nats"
	redisinfra "github.com/NoroNetwork/ppv-streaming/internal/infra/redis"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/security"
	"github.com/NoroNetwork/ppv-streaming/internal/infra/telemetry"
	postgresrepo "github.com/NoroNetwork/ppv-streaming/internal/repository/postgres"
	redisrepo "github.com/NoroNetwork/ppv-streaming/internal/repository/redis"
	"github.com/NoroNetwork/ppv-streaming/internal/transport/http/middleware"
	"github.com/NoroNetwork/ppv-streaming/internal/transport/http/routes"
	"github.com/NoroNetwork/ppv-streaming/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	redis   *redisinfra.Client
	tracer  *telemetry.TracerProvider
	closers []io.Closer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.release()
		return nil, err
	}
	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		a.tracer = tp
	}

	metrics, err := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	if cfg.Postgres.MigrateOnStart {
		if err := database.Migrate(ctx, cfg.Postgres, database.MigrateUp, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}

	a.redis, err = redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2ConfigFromSettings(cfg.Argon2))
	if err != nil {
		return fmt.Errorf("init password hasher: %w", err)
	}

	tokens, err := security.NewTokenService(cfg.JWT)
	if err != nil {
		return fmt.Errorf("init token service: %w", err)
	}

	publisher, err := a.eventPublisher()
	if err != nil {
		return fmt.Errorf("init event publisher: %w", err)
	}

	payments, err := stripegw.NewGateway(cfg.Stripe, log)
	if err != nil {
		return fmt.Errorf("init payment gateway: %w", err)
	}

	media, err := mediamtx.NewClient(cfg.MediaServer, log)
	if err != nil {
		return fmt.Errorf("init media server client: %w", err)
	}

	repos := postgresrepo.NewRepositories(a.pool)
	rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), a.redis.KeyPrefix())

	securityEvents := usecase.NewSecurityEventLog(repos.SecurityEvents).
		WithLogger(log).
		WithMetrics(metrics)
	limiter := usecase.NewRateLimiter(rateLimitStore).
		WithLogger(log).
		WithMetrics(metrics)
	lockout := usecase.NewLockoutGuard(repos.LoginAttempts, securityEvents, cfg.Lockout).
		WithLogger(log)

	authService := usecase.NewAuthService(usecase.AuthDependencies{
		Users:     repos.Users,
		Hasher:    hasher,
		Tokens:    tokens,
		Limiter:   limiter,
		Lockout:   lockout,
		Events:    securityEvents,
		Publisher: publisher,
		Passwords: security.PasswordValidatorFromSettings(cfg.Validation),
		Limits:    cfg.RateLimit,
	}).WithLogger(log).WithMetrics(metrics)

	ledger := usecase.NewEntitlementLedger(repos.Entitlements)
	paymentService := usecase.NewPaymentService(payments, repos.Streams, ledger, securityEvents, publisher).
		WithLogger(log).
		WithMetrics(metrics)
	streamService := usecase.NewStreamService(repos.Streams, ledger, media).
		WithLogger(log)

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log).WithMetrics(metrics),
		HTTPMetrics: httpMetrics,
		Database:    a.pool,
		Cache:       a.redis,
		Services: routes.ServiceSet{
			Auth:     authService,
			Payments: paymentService,
			Ledger:   ledger,
			Streams:  streamService,
		},
	})

	return nil
}

// eventPublisher selects the domain event transport. Kafka falls back to the
// log publisher when the brokers are unreachable at startup.
func (a *Application) eventPublisher() (port.EventPublisher, error) {
	cfg, log := a.cfg, a.logger

	switch cfg.Events.Driver {
	case "kafka":
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			return kafkainfra.NewStubPublisher(log), nil
		}
		a.closers = append(a.closers, producer)
		log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		return kafkainfra.NewEventPublisher(producer, cfg.App, log), nil
	case "nats":
		conn, err := natsinfra.Connect(cfg.NATS, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closerFunc(func() error { return conn.Drain() }))
		log.Info("nats event publisher initialized", zap.String("url", cfg.NATS.URL))
		return natsinfra.NewEventPublisher(conn, cfg.NATS, cfg.App), nil
	case "", "log":
		return kafkainfra.NewStubPublisher(log), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (a *Application) Run(ctx context.Context) error {
	defer a.release()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting PPV API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("events_driver", a.cfg.Events.Driver),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down PPV API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// release closes resources in reverse order of acquisition.
func (a *Application) release() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("failed to close event transport", zap.Error(err))
		}
	}
	a.closers = nil

	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to shut down tracer provider", zap.Error(err))
		}
		a.tracer = nil
	}
	_ = a.logger.Sync()
}
