package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/tffhost/backend/docs"
	effectapp "github.com/tffhost/backend/internal/application/effect"
	hostingapp "github.com/tffhost/backend/internal/application/hosting"
	investmentapp "github.com/tffhost/backend/internal/application/investment"
	nodeapp "github.com/tffhost/backend/internal/application/node"
	profileapp "github.com/tffhost/backend/internal/application/profile"
	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/infrastructure/cache"
	"github.com/tffhost/backend/internal/infrastructure/chat"
	"github.com/tffhost/backend/internal/infrastructure/config"
	"github.com/tffhost/backend/internal/infrastructure/crm"
	"github.com/tffhost/backend/internal/infrastructure/document"
	"github.com/tffhost/backend/internal/infrastructure/erp"
	"github.com/tffhost/backend/internal/infrastructure/fleet"
	"github.com/tffhost/backend/internal/infrastructure/influx"
	"github.com/tffhost/backend/internal/infrastructure/logger"
	"github.com/tffhost/backend/internal/infrastructure/persistence"
	"github.com/tffhost/backend/internal/infrastructure/scheduler"
	"github.com/tffhost/backend/internal/infrastructure/taskqueue"
	"github.com/tffhost/backend/internal/infrastructure/telemetry"
	"github.com/tffhost/backend/internal/interfaces/http/handler"
	"github.com/tffhost/backend/internal/interfaces/http/middleware"
	"github.com/tffhost/backend/internal/interfaces/http/router"
)

//	@title			TF Hosting Backend API
//	@version		1.0
//	@description	Node hosting orders, investment agreements and KYC for the hosting platform

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	ProxyUser
//	@in							header
//	@name						X-Auth-Username
//	@description				Username set by the authenticating proxy

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    Version,
		Insecure:          cfg.Telemetry.Insecure,
	}

	// The log provider comes first so every log line can also be exported.
	logProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetryCfg)
	if err != nil {
		panic("Failed to initialize log export: " + err.Error())
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, logProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting hosting backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", Version),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetryCfg, 0, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilerEnabled,
		ServerAddress:   cfg.Telemetry.ProfilerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		if err := telemetry.RegisterDBMetrics(db.DB, sqlDB, meterProvider.Meter("hosting/db")); err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		}
	}

	coordination, err := cache.NewCoordination(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cache.WithLogger(log), cache.WithInMemoryFallback(cfg.App.Env != "production"))
	if err != nil {
		log.Fatal("Failed to set up coordination stores", zap.Error(err))
	}

	// Remote systems
	crmClient, err := crm.NewClient(cfg.CRM, crm.WithLogger(log))
	if err != nil {
		log.Fatal("CRM client", zap.Error(err))
	}
	chatClient, err := chat.NewClient(cfg.Chat, chat.WithLogger(log), chat.WithMailer(crmClient))
	if err != nil {
		log.Fatal("Chat client", zap.Error(err))
	}
	erpClient, err := erp.NewClient(cfg.ERP, erp.WithLogger(log))
	if err != nil {
		log.Fatal("ERP client", zap.Error(err))
	}
	fleetClient, err := fleet.NewClient(cfg.Fleet, fleet.WithLogger(log))
	if err != nil {
		log.Fatal("Fleet client", zap.Error(err))
	}
	var stats integration.NodeStatsStore = influx.NopStatsStore{Logger: log}
	if influxStore, err := influx.NewNodeStatsStore(cfg.Influx, log); err == nil {
		defer influxStore.Close()
		stats = influxStore
	} else {
		log.Warn("InfluxDB not configured, node statistics are dropped")
	}
	documents := newDocumentStore(cfg, log)
	chrome, err := document.NewChromedpRenderer(document.ChromedpConfig{
		RemoteURL: cfg.Renderer.ChromeURL,
		Timeout:   cfg.Renderer.Timeout,
		NoSandbox: true,
		Logger:    log,
	})
	if err != nil {
		log.Fatal("PDF renderer", zap.Error(err))
	}
	renderer, err := document.NewAgreementRenderer(chrome)
	if err != nil {
		log.Fatal("Agreement renderer", zap.Error(err))
	}

	// Repositories share the task repository so side effects commit with the aggregate
	taskRepo := taskqueue.NewGormTaskRepository(db.DB)
	profileRepo := persistence.NewGormProfileRepository(db.DB, taskRepo)
	nodeRepo := persistence.NewGormNodeRepository(db.DB, taskRepo)
	orderRepo := persistence.NewGormNodeOrderRepository(db.DB, taskRepo)
	agreementRepo := persistence.NewGormAgreementRepository(db.DB, taskRepo)

	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meterProvider.Meter("hosting/business"),
		Logger: log,
		Backlog: func(ctx context.Context) (map[string]int64, error) {
			counts, err := taskRepo.CountByStatus(ctx)
			if err != nil {
				return nil, err
			}
			out := make(map[string]int64, len(counts))
			for status, n := range counts {
				out[string(status)] = n
			}
			return out, nil
		},
	})
	if err != nil {
		log.Fatal("Failed to create business metrics", zap.Error(err))
	}

	documentSecret := []byte(cfg.Hosting.DocumentSecret)
	profileService := profileapp.NewService(profileRepo, log)
	nodeService := nodeapp.NewService(nodeRepo, profileRepo, fleetClient, stats, log)
	nodeService.SetBusinessMetrics(businessMetrics)
	agreementService := investmentapp.NewService(agreementRepo, documents, documentSecret, log)
	orderService := hostingapp.NewService(orderRepo, agreementRepo, taskRepo, nodeService,
		erpClient, fleetClient, documents, hostingapp.Options{
			RequiredTokens: decimal.NewFromInt(cfg.Hosting.RequiredTokenCount),
			OnlineAfter:    cfg.Hosting.OnlineAfter,
			DocumentSecret: documentSecret,
		}, log)
	orderService.SetBusinessMetrics(businessMetrics)
	taskService := effectapp.NewTaskService(taskRepo, log)

	// Side effect processor
	processor := taskqueue.NewProcessor(taskRepo, taskqueue.ProcessorConfig{
		BatchSize:        cfg.Effect.BatchSize,
		PollInterval:     cfg.Effect.PollInterval,
		Concurrency:      cfg.Effect.Concurrency,
		ExecuteTimeout:   cfg.Effect.ExecuteTimeout,
		CleanupEnabled:   true,
		CleanupRetention: cfg.Effect.CleanupRetention,
		CleanupInterval:  cfg.Effect.CleanupInterval,
	}, log, taskqueue.WithRecorder(businessMetrics))
	idempotencyMetrics := &taskqueue.IdempotencyMetrics{}
	for _, executors := range []map[effect.Type]effect.Executor{
		hostingapp.NewExecutors(orderRepo, profileService, chatClient, crmClient, erpClient, documents, renderer,
			hostingapp.ExecutorOptions{DocumentSecret: documentSecret, SignFlow: cfg.Hosting.SignFlow}, log).Register(),
		investmentapp.NewExecutors(agreementRepo, profileService, chatClient, crmClient).Register(),
		nodeapp.NewExecutors(nodeRepo, profileService, chatClient, log).Register(),
		profileapp.NewExecutors(profileRepo, profileService, chatClient, cfg.Hosting.KYCFlow).Register(),
	} {
		guarded := make(map[effect.Type]effect.Executor, len(executors))
		for t, e := range executors {
			guarded[t] = taskqueue.NewIdempotentExecutor(e, coordination.Idempotency, log,
				taskqueue.WithIdempotencyConfig(idempotencyConfig(cfg.Effect.IdempotencyTTL)),
				taskqueue.WithIdempotencyMetrics(idempotencyMetrics))
		}
		processor.Register(guarded)
	}
	if cfg.Effect.ProcessorEnabled {
		if err := processor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start task processor", zap.Error(err))
		}
		log.Info("Task processor started",
			zap.Int("executors", len(processor.Types())),
			zap.Int("concurrency", cfg.Effect.Concurrency),
		)
	}

	// Periodic jobs
	jobs := scheduler.NewScheduler(scheduler.Config{
		MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
		JobTimeout:        cfg.Scheduler.JobTimeout,
		RetryAttempts:     scheduler.DefaultConfig().RetryAttempts,
		RetryDelay:        scheduler.DefaultConfig().RetryDelay,
		LockTTL:           cfg.Scheduler.LockTTL,
	}, coordination.Locker, log, scheduler.WithRecorder(businessMetrics))
	if err := jobs.Register(periodicJobs(cfg.Scheduler, nodeService, orderService, log)...); err != nil {
		log.Fatal("Failed to register jobs", zap.Error(err))
	}
	if err := jobs.Start(context.Background()); err != nil {
		log.Fatal("Failed to start job scheduler", zap.Error(err))
	}
	var cron *scheduler.CronTrigger
	if cfg.Scheduler.Enabled {
		if cron, err = scheduler.NewCronTrigger(jobs, log); err != nil {
			log.Fatal("Failed to schedule jobs", zap.Error(err))
		}
		if err := cron.Start(context.Background()); err != nil {
			log.Fatal("Failed to start cron trigger", zap.Error(err))
		}
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(meterProvider.Meter("hosting/http"))
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, cfg.HTTP.UsernameHeader, cfg.HTTP.RolesHeader)

	// Identity runs before the logger so request logs carry the username.
	engine.Use(
		middleware.RequestID(),
		middleware.Identity(middleware.IdentityConfig{
			UsernameHeader: cfg.HTTP.UsernameHeader,
			RolesHeader:    cfg.HTTP.RolesHeader,
		}),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
			SkipPaths:   []string{"/health"},
		}),
		middleware.TracingAttributes(),
		middleware.SpanErrorMarker(),
		httpMetrics,
		middleware.Profiling(middleware.ProfilingConfig{
			Enabled:          profiler.IsEnabled(),
			SkipPaths:        middleware.DefaultProfilingConfig().SkipPaths,
			SkipPathPrefixes: middleware.DefaultProfilingConfig().SkipPathPrefixes,
		}),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	router.SystemRoutes(engine, handler.NewSystemHandler(cfg.App.Name, Version, map[string]handler.HealthCheck{
		"database": db.Ping,
	}))
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.HTTP.SwaggerEnabled,
			AllowedIPs: cfg.HTTP.SwaggerAllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler))

	var apiMiddleware []gin.HandlerFunc
	if rateLimiter != nil {
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(rateLimiter))
	}
	router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithMiddleware(apiMiddleware...)).
		Register(router.APIGroups(router.Handlers{
			Orders:     handler.NewOrderHandler(orderService),
			Agreements: handler.NewAgreementHandler(agreementService),
			Profiles:   handler.NewProfileHandler(profileService),
			Nodes:      handler.NewNodeHandler(nodeService),
			Tasks:      handler.NewTaskHandler(taskService),
			Jobs:       handler.NewJobHandler(jobs),
		})...).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	if cron != nil {
		if err := cron.Stop(ctx); err != nil {
			log.Error("Error stopping cron trigger", zap.Error(err))
		}
	}
	if err := jobs.Stop(ctx); err != nil {
		log.Error("Error stopping job scheduler", zap.Error(err))
	}
	if err := processor.Stop(ctx); err != nil {
		log.Error("Error stopping task processor", zap.Error(err))
	}
	if err := chrome.Close(); err != nil {
		log.Warn("Error closing PDF renderer", zap.Error(err))
	}
	if err := coordination.Close(); err != nil {
		log.Warn("Error closing coordination stores", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(ctx); err != nil {
		log.Warn("Error flushing metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		log.Warn("Error flushing traces", zap.Error(err))
	}

	log.Info("Server exited")
	_ = logProvider.Shutdown(ctx)
}
