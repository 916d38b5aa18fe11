package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	financeapp "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/infrastructure/cache"
	"github.com/rentals/backend/internal/infrastructure/config"
	"github.com/rentals/backend/internal/infrastructure/logger"
	"github.com/rentals/backend/internal/infrastructure/migration"
	"github.com/rentals/backend/internal/infrastructure/payment"
	"github.com/rentals/backend/internal/infrastructure/persistence"
	"github.com/rentals/backend/internal/infrastructure/scheduler"
	"github.com/rentals/backend/internal/infrastructure/telemetry"
	"github.com/rentals/backend/internal/interfaces/http/handler"
	"github.com/rentals/backend/internal/interfaces/http/middleware"
	"github.com/rentals/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//go:generate go run github.com/swaggo/swag/v2/cmd/swag init --dir ../.. --generalInfo cmd/server/main.go --output ../../docs --outputTypes go --parseInternal

//	@title			Rental Ledger API
//	@version		1.0
//	@description	Wallet, invoice, refund and gateway reconciliation API of the rental ledger

//	@contact.name	API Support
//	@contact.url	https://github.com/rentals/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	tel := cfg.Telemetry
	exporter := telemetry.Exporter{
		Endpoint:    tel.CollectorEndpoint,
		Insecure:    tel.Insecure,
		ServiceName: tel.ServiceName,
		Environment: cfg.App.Env,
	}

	// OTLP log export tees into the zap logger once the provider is up
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Exporter: exporter,
		Enabled:  tel.Enabled && tel.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize OTEL logs", zap.Error(err))
	}
	if logProvider.IsEnabled() {
		log, err = logger.New(logCfg, logProvider.ZapCore(logger.ParseLevel(cfg.Log.Level)))
		if err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledger server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Exporter:      exporter,
		Enabled:       tel.Enabled && tel.TracingEnabled,
		SamplingRatio: tel.SamplingRatio,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Exporter:       exporter,
		Enabled:        tel.Enabled && tel.MetricsEnabled,
		ExportInterval: tel.ExportInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         tel.ProfilingEnabled,
		ServerAddress:   tel.PyroscopeEndpoint,
		ApplicationName: tel.ServiceName,
		Environment:     cfg.App.Env,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
		if err := logProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	if cfg.App.AutoMigrate {
		if err := migration.Apply(cfg.Database.DSN(), log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// GORM logs through zap; otelgorm adds a span per statement
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(tel.DBSlowQueryThresh),
		logger.WithLockWaitThreshold(tel.DBLockWaitThresh))
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithTracing(telemetry.DBTracingConfig{
			Enabled:         tel.Enabled && tel.DBTraceEnabled,
			LogFullSQL:      tel.DBLogFullSQL,
			SlowQueryThresh: tel.DBSlowQueryThresh,
			DBName:          cfg.Database.DBName,
		}, log),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Dedup and job leases live in redis when configured. Outside
	// production an unreachable redis degrades to per-process stores.
	stores, err := cache.NewStores(ctx, cfg.Redis, cfg.App.Env != "production", log)
	if err != nil {
		log.Fatal("Failed to initialize coordination stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing coordination stores", zap.Error(err))
		}
	}()

	currency := valueobject.Currency(cfg.Ledger.DefaultCurrency)
	if !currency.IsValid() {
		log.Fatal("Unsupported ledger currency", zap.String("currency", cfg.Ledger.DefaultCurrency))
	}

	metrics, err := telemetry.NewSettlementMetrics(meterProvider.Meter("ledger"))
	if err != nil {
		log.Fatal("Failed to register settlement metrics", zap.Error(err))
	}
	if err := db.RegisterPoolMetrics(meterProvider.Meter("ledger.db")); err != nil {
		log.Fatal("Failed to register pool metrics", zap.Error(err))
	}

	// Application services share one transaction scope and read repositories
	svc := financeapp.ServiceConfig{
		Scope:   persistence.NewGormTransactionScope(db.DB),
		Repos:   persistence.NewGormRepositories(db.DB),
		Metrics: metrics,
		Logger:  log,
	}
	walletService := financeapp.NewWalletService(svc)
	settlementService := financeapp.NewSettlementService(svc)
	allocator := financeapp.NewPrepaymentAllocator(svc)
	feeService := financeapp.NewFeeService(svc)
	lateFeeService := financeapp.NewLateFeeService(svc)
	auditService := financeapp.NewAuditService(svc)
	refundService := financeapp.NewRefundService(financeapp.RefundServiceConfig{
		ServiceConfig: svc,
		HoldWindow:    cfg.Refund.HoldWindow,
	})

	if cfg.Webhook.Secret == "" {
		log.Warn("webhook.secret is empty, every webhook will be rejected")
	}
	var gateway finance.TransactionVerifier
	if cfg.Webhook.VerifyWithGateway {
		paystack, err := payment.NewPaystackClient(payment.PaystackConfig{
			SecretKey: cfg.Webhook.Secret,
			BaseURL:   cfg.Webhook.GatewayBaseURL,
			Timeout:   cfg.Webhook.GatewayTimeout,
		})
		if err != nil {
			log.Fatal("Failed to initialize Paystack client", zap.Error(err))
		}
		gateway = paystack
	}
	reconciliationService := financeapp.NewReconciliationService(financeapp.ReconciliationConfig{
		ServiceConfig:   svc,
		Verifier:        payment.NewHMACSignatureVerifier(cfg.Webhook.Provider, cfg.Webhook.Secret),
		Gateway:         gateway,
		GatewayTimeout:  cfg.Webhook.GatewayTimeout,
		Idempotency:     stores.Idempotency,
		DedupTTL:        cfg.Webhook.DedupTTL,
		FeeChannel:      cfg.Webhook.FeeChannel,
		DefaultCurrency: currency,
	})

	// Ledger sweeps. Registration always happens so operators can trigger
	// them by hand; the timers only run when the scheduler is enabled.
	jobs := scheduler.New(scheduler.Config{
		Enabled:    cfg.Scheduler.Enabled,
		JobTimeout: cfg.Scheduler.JobTimeout,
	}, stores.JobLock, metrics, log)
	for _, job := range []scheduler.Job{
		{Name: scheduler.JobOverdue, Interval: cfg.Scheduler.OverdueInterval, Run: settlementService.MarkOverdue},
		{Name: scheduler.JobLateFees, Interval: cfg.Scheduler.LateFeeInterval, Run: lateFeeService.ApplyLateFees},
		{Name: scheduler.JobAutoRefunds, Interval: cfg.Scheduler.AutoRefundInterval, Run: autoRefunds(refundService)},
	} {
		if err := jobs.Register(job); err != nil {
			log.Fatal("Failed to register job", zap.String("job", job.Name), zap.Error(err))
		}
	}
	if err := jobs.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := jobs.Stop(stopCtx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. BodyLimit - Limit request body size
	// 6. Tracing, metrics and profiling labels
	// The per client IP throttle is mounted per API resource by the router.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, logger.WithSkipPaths("/health")))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: tel.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
		SkipPaths:   []string{"/health"},
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.HTTPMetrics(meterProvider.Meter("ledger.http"), log))
	engine.Use(middleware.Profiling(profiler.IsEnabled(), "/health"))

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, map[string]handler.HealthCheck{
		"database": db.Ping,
		"redis":    stores.Ping,
	})

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	// Swagger documentation endpoint
	router.RegisterSwagger(engine)

	var throttle gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst)
		limiterCtx, stopLimiter := context.WithCancel(ctx)
		defer stopLimiter()
		go limiter.Run(limiterCtx)
		throttle = middleware.RateLimit(limiter)
		log.Info("Rate limiting enabled",
			zap.Float64("per_second", cfg.HTTP.RateLimitPerSecond),
			zap.Int("burst", cfg.HTTP.RateLimitBurst),
		)
	}

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(router.LedgerGroups(router.Handlers{
			Webhook:  handler.NewWebhookHandler(reconciliationService, 0),
			Wallet:   handler.NewWalletHandler(walletService, currency),
			Invoice:  handler.NewInvoiceHandler(settlementService, allocator, currency),
			Refund:   handler.NewRefundHandler(refundService, currency),
			Fee:      handler.NewFeeHandler(feeService, lateFeeService, currency),
			Audit:    handler.NewAuditHandler(auditService),
			Job:      handler.NewJobHandler(jobs),
			System:   systemHandler,
			Throttle: throttle,
		})...).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// autoRefunds adapts the refund sweep to a scheduler job
func autoRefunds(refunds *financeapp.RefundService) scheduler.RunFunc {
	return func(ctx context.Context) (int, error) {
		result, err := refunds.RunAutoRefundSweep(ctx)
		if result == nil {
			return 0, err
		}
		return result.Refunded, err
	}
}
