package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/delcom/healthtrack/internal/config"
	"github.com/delcom/healthtrack/internal/http/handler"
	"github.com/delcom/healthtrack/internal/http/router"
	"github.com/delcom/healthtrack/internal/http/web"
	"github.com/delcom/healthtrack/internal/observability"
	"github.com/delcom/healthtrack/internal/repository"
	"github.com/delcom/healthtrack/internal/security"
	"github.com/delcom/healthtrack/internal/service"
	"github.com/delcom/healthtrack/internal/storage"
)

// App holds the assembled application: configuration, the HTTP server and
// the observability runtime. Wiring is explicit constructor calls in New.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	DB            *gorm.DB
	Observability *observability.Runtime
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, loggerProvider, err := observability.InitLogging(ctx, observability.LoggingConfig{
		Level:       cfg.LogLevel,
		OTLPEnabled: cfg.OTELLogsEnabled,
		Endpoint:    cfg.OTELExporterOTLPEndpoint,
		Insecure:    cfg.OTELExporterOTLPInsecure,
		ServiceName: cfg.OTELServiceName,
		Environment: cfg.OTELEnvironment,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	slog.SetDefault(logger)

	runtime, err := observability.InitRuntime(ctx, observability.RuntimeConfig{
		Metrics: observability.MetricsConfig{
			Enabled:     cfg.OTELMetricsEnabled,
			Endpoint:    cfg.OTELExporterOTLPEndpoint,
			Insecure:    cfg.OTELExporterOTLPInsecure,
			ServiceName: cfg.OTELServiceName,
			Environment: cfg.OTELEnvironment,
		},
		Tracing: observability.TracingConfig{
			Enabled:     cfg.OTELTracingEnabled,
			Endpoint:    cfg.OTELExporterOTLPEndpoint,
			Insecure:    cfg.OTELExporterOTLPInsecure,
			ServiceName: cfg.OTELServiceName,
			Environment: cfg.OTELEnvironment,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	runtime.LoggerProvider = loggerProvider

	db, err := repository.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	files, err := newFileStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	recordRepo := repository.NewRecordRepository(db)

	codec := security.NewTokenCodec(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	gate := service.NewGate(codec, tokenRepo, userRepo)
	authService := service.NewAuthService(userRepo, tokenRepo, codec)
	userService := service.NewUserService(userRepo)
	recordService := service.NewRecordService(recordRepo, files)
	photoService := service.NewPhotoService(recordService, files)
	guard := newAbuseGuard(cfg, logger)

	sessions := web.NewSessionManager([]byte(cfg.SessionSecret), cfg.SessionName)

	mux := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(authService, guard),
		UserHandler:      handler.NewUserHandler(userService, authService),
		RecordHandler:    handler.NewRecordHandler(recordService),
		AuthWebHandler:   web.NewAuthWebHandler(authService, gate, guard, sessions),
		RecordWebHandler: web.NewRecordWebHandler(recordService, photoService, sessions),
		Gate:             gate,
		Sessions:         sessions,
		Logger:           logger,
		AuthRateLimitRPM: cfg.AuthRateLimitPerMinute,
		ReadyCheck:       readyCheck(db),
		EnableOTelHTTP:   cfg.EnableOTelHTTP,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: http.MaxBytesHandler(mux, cfg.RequestBodyLimitBytes),
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		DB:            db,
		Observability: runtime,
	}, nil
}

// Run serves HTTP until the context is canceled or a termination signal
// arrives, then drains within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("server starting",
		"addr", a.Server.Addr,
		"base_url", a.Config.BaseURL,
		"db_driver", a.Config.DBDriver,
		"storage_driver", a.Config.StorageDriver,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.GracefulShutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if err := a.Observability.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("observability shutdown", "error", err)
		}
		return nil
	})

	err := g.Wait()
	a.Logger.Info("server stopped")
	return err
}

func newFileStore(ctx context.Context, cfg *config.Config) (storage.FileStore, error) {
	if cfg.StorageDriver == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return storage.NewLocalStore(cfg.UploadDir), nil
}

func newAbuseGuard(cfg *config.Config, logger *slog.Logger) service.AuthAbuseGuard {
	policy := service.AuthAbusePolicy{
		FreeAttempts: cfg.LoginAbuseFreeAttempts,
		BaseDelay:    cfg.LoginAbuseBaseDelay,
		MaxDelay:     cfg.LoginAbuseMaxDelay,
		ResetWindow:  cfg.LoginAbuseResetWindow,
	}
	if cfg.RedisAddr == "" {
		logger.Info("abuse guard using in-process state, no redis configured")
		return service.NewLocalAuthAbuseGuard(policy)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	return service.NewRedisAuthAbuseGuard(client, "healthtrack:abuse", policy)
}

func readyCheck(db *gorm.DB) func() error {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	}
}
