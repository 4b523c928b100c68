package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erpsync/backend/internal/application/reconcile"
	"github.com/erpsync/backend/internal/domain/shared"
	"github.com/erpsync/backend/internal/infrastructure/cache"
	"github.com/erpsync/backend/internal/infrastructure/config"
	"github.com/erpsync/backend/internal/infrastructure/erpclient"
	"github.com/erpsync/backend/internal/infrastructure/logger"
	"github.com/erpsync/backend/internal/infrastructure/persistence"
	"github.com/erpsync/backend/internal/infrastructure/scheduler"
	"github.com/erpsync/backend/internal/infrastructure/storefront"
	"github.com/erpsync/backend/internal/interfaces/http/handler"
	"github.com/erpsync/backend/internal/interfaces/http/middleware"
	"github.com/erpsync/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ERP sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database (sync attempt journal)
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithGormLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connected")

	journal := persistence.NewGormAttemptJournal(db.DB)

	// Marker cache, with in-memory fallback when Redis is unreachable
	markerFactory := cache.NewMarkerStoreFactory(
		cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Redis.FallbackInMemory),
	)
	markers, err := markerFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create marker store", zap.Error(err))
	}

	// Remote clients
	erpClient := erpclient.NewServiceLayerClient(cfg.ERP, log)
	platform := storefront.NewMultiStoreClient(cfg.Stores, log)

	// Reconciliation workflow
	accounts := cfg.AccountTable()
	freight := cfg.FreightTable()

	guard := reconcile.NewGuard(erpClient, markers, shared.MarkerConfig{
		TTL:     cfg.Sync.MarkerTTL,
		Enabled: cfg.Sync.MarkerEnabled,
	}, log)

	resolver := reconcile.NewCustomerResolver(erpClient, reconcile.ResolverConfig{
		CountryPrefix:        cfg.Customer.CountryPrefix,
		CodePrefix:           cfg.Customer.CodePrefix,
		FallbackCustomerCode: cfg.Customer.FallbackCustomerCode,
	}, log)

	builder := reconcile.NewDocumentBuilder(accounts, freight, reconcile.BuilderConfig{
		GiftCardItemCode:    cfg.Documents.GiftCardItemCode,
		GiftCardGateways:    cfg.Documents.GiftCardGateways,
		CashGateways:        cfg.Documents.CashGateways,
		InternationalStores: internationalStores(cfg.Stores),
	}, log)

	orchestrator := reconcile.NewOrchestrator(
		platform, erpClient, guard, resolver, builder, accounts, journal,
		reconcile.OrchestratorConfig{
			BatchSize:      cfg.Sync.BatchSize,
			MaxPages:       cfg.Sync.MaxPages,
			Lookback:       cfg.Sync.Lookback,
			MaxRetries:     cfg.Sync.MaxRetries,
			RetryBaseDelay: cfg.Sync.RetryBaseDelay,
			RetryMaxDelay:  cfg.Sync.RetryMaxDelay,
		}, log)

	// Scheduler and pass trigger
	schedCfg := scheduler.DefaultConfig()
	if cfg.Sync.WorkerCount > 0 {
		schedCfg.MaxConcurrentJobs = cfg.Sync.WorkerCount
	}
	syncScheduler, err := scheduler.NewSyncScheduler(schedCfg, orchestrator, log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if err := syncScheduler.Start(rootCtx); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}

	trigger := scheduler.NewPassTrigger(
		scheduler.TriggerConfigFromSync(cfg.Sync, enabledStores(cfg.Stores)),
		syncScheduler, log)
	if err := trigger.Start(rootCtx); err != nil {
		log.Fatal("Failed to start pass trigger", zap.Error(err))
	}

	// HTTP admin API
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))

	// Plain health endpoint for load balancers, outside API versioning
	engine.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	systemHandler := handler.NewSystemHandler(map[string]handler.HealthChecker{
		"database": func(ctx context.Context) error { return db.Ping() },
	})

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(systemHandler).
		Register(handler.NewJournalHandler(journal)).
		Register(handler.NewSyncHandler(syncScheduler, orchestrator)).
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
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	trigger.Stop()
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := syncScheduler.Stop(ctx); err != nil {
		log.Warn("Sync scheduler shutdown incomplete", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// enabledStores lists the store keys eligible for scheduled passes
func enabledStores(stores map[string]config.StoreConfig) []string {
	keys := make([]string, 0, len(stores))
	for key, store := range stores {
		if store.Enabled {
			keys = append(keys, key)
		}
	}
	return keys
}

// internationalStores lists the store keys whose collect orders ship abroad
func internationalStores(stores map[string]config.StoreConfig) []string {
	keys := make([]string, 0)
	for key, store := range stores {
		if store.International {
			keys = append(keys, key)
		}
	}
	return keys
}
