package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cashdeskapp "github.com/clinicdesk/backend/internal/application/cashdesk"
	"github.com/clinicdesk/backend/internal/infrastructure/auth"
	"github.com/clinicdesk/backend/internal/infrastructure/cache"
	"github.com/clinicdesk/backend/internal/infrastructure/config"
	"github.com/clinicdesk/backend/internal/infrastructure/event"
	"github.com/clinicdesk/backend/internal/infrastructure/logger"
	"github.com/clinicdesk/backend/internal/infrastructure/persistence"
	"github.com/clinicdesk/backend/internal/infrastructure/storage"
	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/clinicdesk/backend/internal/interfaces/http/handler"
	"github.com/clinicdesk/backend/internal/interfaces/http/middleware"
	"github.com/clinicdesk/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/clinicdesk/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Cash Desk API
//	@version		1.0
//	@description	Clinic front-desk cash sessions, ledger entries and reconciliation reports
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/clinicdesk/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cashdesk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		LogsEnabled:       cfg.Telemetry.Enabled,
	}, log)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			log.Warn("Telemetry shutdown incomplete", zap.Error(err))
		}
	}()

	if level, err := logger.ParseLevel(cfg.Log.Level); err == nil {
		log = providers.Logs.Bridge(log, serviceName, level)
	}

	log.Info("Starting cash desk service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeURL,
		ApplicationName: serviceName,
	}, log)
	if err != nil {
		return fmt.Errorf("start profiler: %w", err)
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Warn("Profiler stop failed", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		providers.Tracer.EnableSpanProfiles()
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		return fmt.Errorf("register database tracing: %w", err)
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, providers.Meter, cfg.Telemetry.DBSlowQueryThresh, log)
	if err != nil {
		return fmt.Errorf("register database metrics: %w", err)
	}
	if dbMetrics != nil {
		defer func() { _ = dbMetrics.Stop() }()
	}

	if cfg.App.Env == "development" {
		if err := persistence.AutoMigrateCashdesk(ctx, db.DB); err != nil {
			return err
		}
		log.Info("Cash desk schema auto-migrated")
	}

	backends, err := cache.NewFactory(cfg.Redis, cfg.Cashdesk,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create()
	if err != nil {
		return fmt.Errorf("create session locks: %w", err)
	}
	defer func() { _ = backends.Close() }()

	attachments, err := newAttachmentStorage(ctx, cfg, log)
	if err != nil {
		return err
	}

	var recorder cashdeskapp.MetricsRecorder
	if m, err := telemetry.NewCashdeskMetrics(providers.Meter, cfg.Cashdesk.MaterialityThreshold); err != nil {
		log.Warn("Cash desk metrics disabled", zap.Error(err))
	} else {
		recorder = m
	}

	bus := event.NewInMemoryEventBus(log)
	monitor := cashdeskapp.NewActivityMonitor(log, recorder)
	bus.Subscribe(monitor, monitor.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer func() { _ = bus.Stop(context.Background()) }()

	loc, err := cfg.Cashdesk.Location()
	if err != nil {
		return err
	}
	opts := cashdeskapp.Options{
		Policy:              cfg.Cashdesk.Policy(),
		Location:            loc,
		ReceiptPrefix:       cfg.Cashdesk.ReceiptPrefix,
		MaxRetries:          cfg.Cashdesk.MaxRetries,
		IdempotencyTTL:      cfg.Cashdesk.IdempotencyTTL,
		AttachmentURLExpiry: cfg.Storage.PresignExpiration,
		MaxAttachmentSize:   cfg.Storage.MaxFileSize,
		Now:                 time.Now,
	}

	sessionRepo := persistence.NewGormCashSessionRepository(db.DB)
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	sessionService := cashdeskapp.NewSessionService(txScope, sessionRepo, entryRepo, backends.Locker, opts)
	sessionService.SetEventPublisher(bus)
	sessionService.SetLogger(log)

	entryService := cashdeskapp.NewEntryService(txScope, sessionRepo, entryRepo, backends.Locker, opts)
	entryService.SetEventPublisher(bus)
	entryService.SetIdempotencyStore(backends.Idempotency)
	entryService.SetAttachmentStorage(attachments)
	entryService.SetLogger(log)

	reportService := cashdeskapp.NewReportService(sessionRepo, entryRepo, opts)

	system := handler.NewSystemHandler(cfg.App.Name, version)
	system.AddCheck("database", db.PingContext)
	if backends.Client != nil {
		client := backends.Client
		system.AddCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	engine, err := newEngine(cfg, log, providers, serviceName)
	if err != nil {
		return err
	}

	router.RegisterSystemRoutes(engine, system)
	if files, ok := attachments.(*storage.MemoryAttachmentStorage); ok {
		router.RegisterAttachmentFileRoute(engine, storage.MemoryAttachmentRoute, handler.NewAttachmentFileHandler(files))
	}
	router.NewRouter(engine).
		Register(router.NewCashdeskGroup(router.CashdeskHandlers{
			Sessions: handler.NewSessionHandler(sessionService, entryService),
			Entries:  handler.NewEntryHandler(entryService, cfg.Storage.MaxFileSize),
			Reports:  handler.NewReportHandler(reportService),
		})).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited gracefully")
	return nil
}

// newEngine builds the gin engine with the middleware stack shared by every route
func newEngine(cfg *config.Config, log *zap.Logger, providers *telemetry.Providers, serviceName string) (*gin.Engine, error) {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, fmt.Errorf("setup validator: %w", err)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	identityCfg := middleware.DefaultIdentityConfig(auth.NewJWTService(cfg.JWT))
	identityCfg.AllowHeaderIdentity = cfg.JWT.AllowHeaderIdentity
	identityCfg.Logger = log
	// signed in-memory attachment links carry their own authorization
	identityCfg.SkipPathPrefixes = append(identityCfg.SkipPathPrefixes, storage.MemoryAttachmentRoute+"/")
	identity := middleware.Identity(identityCfg)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	secureCfg := middleware.DefaultSecurityConfig()
	secureCfg.HSTSEnabled = cfg.App.Env == "production"

	// Order matters: the request id must exist before the logger, and the
	// operator before span attributes and profiling labels.
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.SecureWithConfig(secureCfg),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: serviceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.HTTPMetrics(providers.Meter, log),
		identity,
		middleware.TracingAttributeInjector(),
		middleware.Profiling(cfg.Telemetry.ProfilingEnabled),
	)

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, identity),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	return engine, nil
}

// newAttachmentStorage returns the S3 store when configured and an in-process store otherwise
func newAttachmentStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (cashdeskapp.AttachmentStorage, error) {
	if !cfg.Storage.Enabled {
		log.Warn("Object storage disabled, attachments are kept in memory")
		return storage.NewMemoryAttachmentStorage(), nil
	}

	s3, err := storage.NewS3AttachmentStorage(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
	)
	if err != nil {
		return nil, fmt.Errorf("create attachment storage: %w", err)
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s3.EnsureBucket(ensureCtx); err != nil {
		return nil, fmt.Errorf("ensure attachment bucket: %w", err)
	}
	log.Info("Attachment storage ready", zap.String("bucket", s3.Bucket()))
	return s3, nil
}
