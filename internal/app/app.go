package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/event"
	handler "github.com/vidtube/backend/internal/handler/http"
	"github.com/vidtube/backend/internal/repository/postgres"
	"github.com/vidtube/backend/internal/service"
	"github.com/vidtube/backend/internal/storage"
	storagemem "github.com/vidtube/backend/internal/storage/memory"
	storages3 "github.com/vidtube/backend/internal/storage/s3"
	"github.com/vidtube/backend/migrations"
	"github.com/vidtube/backend/pkg/breaker"
	"github.com/vidtube/backend/pkg/database"
	"github.com/vidtube/backend/pkg/health"
	"github.com/vidtube/backend/pkg/httpclient"
	pkgkafka "github.com/vidtube/backend/pkg/kafka"
	"github.com/vidtube/backend/pkg/middleware"
	"github.com/vidtube/backend/pkg/tracing"
)

const serviceVersion = "0.1.0"

// watchDedupTTL bounds how long consumed video.watched event IDs are remembered.
const watchDedupTTL = 10 * time.Minute

// App wires together all dependencies and runs the vidtube backend.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	publisher      pkgkafka.Publisher
	dlq            *pkgkafka.DLQProducer
	watchConsumer  *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		Insecure:       cfg.OTELInsecure,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	if err := a.build(ctx); err != nil {
		// Release whatever was opened before the failure.
		_ = a.Shutdown()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	pool, err := openPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.pool = pool
	database.SetSlowQueryLogging(cfg.DBSlowQueryThreshold, logger)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, cfg.ServiceName); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	applied, err := database.RunMigrations(ctx, pool, migrations.FS, logger)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed", slog.Int("applied", len(applied)))

	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", pool.Ping)

	media, err := a.buildStorage(ctx, healthHandler)
	if err != nil {
		return err
	}

	a.publisher = pkgkafka.NoopPublisher{}
	if cfg.KafkaEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.publisher = producer
		healthHandler.RegisterOptional("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	users := postgres.NewUserRepository(pool, cfg.DBQueryTimeout)
	channels := postgres.NewChannelRepository(pool, cfg.DBQueryTimeout)
	tokens := auth.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)

	userService := service.NewUserService(
		users, users, tokens,
		auth.NewPasswordHasher(cfg.BcryptCost),
		media,
		event.NewProducer(a.publisher, logger),
		logger,
	)
	channelService := service.NewChannelService(channels, logger)

	if cfg.KafkaEnabled && cfg.WatchConsumerEnabled {
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		h := pkgkafka.IdempotentHandler(
			pkgkafka.NewMemoryIdempotencyStore(watchDedupTTL),
			event.WatchHandler(channelService, logger),
			logger,
		)
		a.watchConsumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.WatchConsumerGroup,
			Topic:   event.TopicVideoWatched,
		}, h, logger, pkgkafka.WithDeadLetter(a.dlq))
	}

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:    cfg.ServiceName,
		UserService:    userService,
		ChannelService: channelService,
		Health:         healthHandler,
		Logger:         logger,
		Cookies: handler.CookieConfig{
			Secure:        cfg.CookieSecure,
			Domain:        cfg.CookieDomain,
			SameSite:      handler.ParseSameSite(cfg.CookieSameSite),
			AccessMaxAge:  cfg.AccessTokenExpiry,
			RefreshMaxAge: cfg.RefreshTokenExpiry,
		},
		Uploads: handler.UploadConfig{MaxBytes: cfg.MaxUploadBytes, TmpDir: cfg.UploadTmpDir},
		CORS:    corsConfig(cfg.CORSAllowedOrigins),
		AuthLimit: middleware.RateLimitConfig{
			RPS:        cfg.AuthRateLimitRPS,
			Burst:      cfg.AuthRateLimitBurst,
			TrustProxy: cfg.TrustProxyHeaders,
		},
		PprofEnabled:   cfg.PprofEnabled,
		PprofAllowlist: cfg.PprofAllowlist,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func openPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	return pool, nil
}

// buildStorage selects the media backend. The S3 backend is guarded by a
// circuit breaker whose state feeds readiness.
func (a *App) buildStorage(ctx context.Context, hh *health.Handler) (storage.Storage, error) {
	if a.cfg.StorageDriver == "memory" {
		a.logger.Warn("using in-memory media storage, uploads are not persisted")
		return storagemem.New(), nil
	}

	cb := breaker.New(breaker.DefaultConfig("s3"), a.logger)

	s3, err := storages3.New(ctx, storages3.Config{
		Endpoint:        a.cfg.S3Endpoint,
		Region:          a.cfg.S3Region,
		Bucket:          a.cfg.S3Bucket,
		AccessKeyID:     a.cfg.S3AccessKeyID,
		SecretAccessKey: a.cfg.S3SecretAccessKey,
		PublicURL:       a.cfg.S3PublicURL,
		UsePathStyle:    a.cfg.S3UsePathStyle,
		Timeout:         a.cfg.StorageTimeout,
	}, httpclient.DefaultConfig(), cb, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init s3 storage: %w", err)
	}

	hh.RegisterOptional("s3", s3.Ping)
	hh.RegisterOptional("s3-breaker", cb.Ready)
	a.logger.Info("s3 media storage initialized",
		slog.String("endpoint", a.cfg.S3Endpoint),
		slog.String("bucket", a.cfg.S3Bucket),
	)
	return s3, nil
}

func corsConfig(origins []string) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if len(origins) > 0 {
		c.AllowedOrigins = origins
	}
	return c
}

// Run starts the HTTP server and the watch-history consumer and blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	var wg sync.WaitGroup
	if a.watchConsumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.watchConsumer.Start(consumerCtx); err != nil {
				a.logger.Error("watch consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopConsumer()
	wg.Wait()

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown stops components in order: HTTP server, tracer, Kafka writers,
// PostgreSQL pool. It tolerates a partially built App.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	if a.httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer httpCancel()
		if err := a.httpServer.Shutdown(httpCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// Flush spans after the HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// Migrate applies pending migrations, or only lists them when dryRun is set.
// It returns the affected migration names.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger, dryRun bool) ([]string, error) {
	pool, err := openPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	if dryRun {
		pending, err := database.PendingMigrations(ctx, pool, migrations.FS)
		if err != nil {
			return nil, fmt.Errorf("list pending migrations: %w", err)
		}
		return pending, nil
	}

	applied, err := database.RunMigrations(ctx, pool, migrations.FS, logger)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return applied, nil
}
