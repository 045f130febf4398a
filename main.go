// Package main provides the main entry point for the Uwabami catalog ingestion service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hikarudo/uwabami/app/handlers"
	"github.com/hikarudo/uwabami/app/middleware"
	"github.com/hikarudo/uwabami/app/router"
	"github.com/hikarudo/uwabami/app/scheduler"
	"github.com/hikarudo/uwabami/app/services"
	"github.com/hikarudo/uwabami/app/sources"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"github.com/hikarudo/uwabami/config"
	"github.com/hikarudo/uwabami/repository"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Uwabami application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeObjectStore builds the raw body store. GCS in production, in-memory otherwise.
func initializeObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (services.ObjectStore, error) {
	switch cfg.Provider {
	case "gcs":
		store, err := services.NewGCSObjectStore(ctx, cfg.Bucket, "", cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gcs object store: %w", err)
		}
		log.Printf("GCS object store initialized for bucket %s", cfg.Bucket)
		return store, nil
	default:
		log.Println("Using in-memory object store")
		return services.NewMockObjectStore(), nil
	}
}

// initializeSourceRegistry wires one client per configured listing site
func initializeSourceRegistry(cfg config.SourcesConfig) *sources.Registry {
	minInterval := time.Second
	if cfg.RequestsPerSecond > 0 {
		minInterval = time.Duration(float64(time.Second) / cfg.RequestsPerSecond)
	}

	var clients []sources.SourceClient
	if cfg.DMMBaseURL != "" && cfg.DMMAPIKey != "" {
		clients = append(clients, sources.NewDMMSource(cfg.DMMBaseURL, cfg.DMMAPIKey, cfg.DMMAffiliateID, cfg.FetchTimeout, minInterval))
	}
	if cfg.MGSBaseURL != "" {
		clients = append(clients, sources.NewMGSSource(cfg.MGSBaseURL, cfg.FetchTimeout, minInterval))
	}
	if cfg.SokmilBaseURL != "" {
		clients = append(clients, sources.NewSokmilSource(cfg.SokmilBaseURL, cfg.FetchTimeout, minInterval))
	}
	if cfg.DugaFeedURL != "" {
		clients = append(clients, sources.NewDugaSource(cfg.DugaFeedURL, cfg.FetchTimeout, minInterval))
	}
	if cfg.AdultFestaFeedURL != "" {
		clients = append(clients, sources.NewAdultfestaSource(cfg.AdultFestaFeedURL, cfg.FetchTimeout, minInterval))
	}

	registry := sources.NewRegistry(clients...)
	log.Printf("Source registry initialized with %d sources: %v", len(registry.Names()), registry.Names())
	return registry
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	objectStore, err := initializeObjectStore(context.Background(), cfg.ObjectStore)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	rawRecordRepo := repository.NewRawRecordRepository(db)
	productRepo := repository.NewCanonicalProductRepository(db)
	productSourceRepo := repository.NewProductSourceRepository(db)
	linkRepo := repository.NewRawCanonicalLinkRepository(db)
	performerRepo := repository.NewPerformerRepository(db)
	aliasRepo := repository.NewPerformerAliasRepository(db)
	externalIDRepo := repository.NewPerformerExternalIDRepository(db)
	tagRepo := repository.NewTagRepository(db)
	flagRepo := repository.NewReviewFlagRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		false,
		"",
		"",
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Catalog cache: redis when available, in-process fallback otherwise
	var catalogCache services.Cache
	if rc != nil {
		catalogCache = services.NewRedisCache(rc, cfg.Cache.RedisPrefix)
	} else if cfg.Cache.Enabled {
		catalogCache = services.NewMemoryCache(1024)
	}

	// Wiki lookup is optional; a nil client disables the fallback
	var wikiClient services.WikiClient
	if cfg.Wiki.Enabled && cfg.Wiki.BaseURL != "" {
		wikiInterval := time.Second
		if cfg.Wiki.RequestsPerSecond > 0 {
			wikiInterval = time.Duration(float64(time.Second) / cfg.Wiki.RequestsPerSecond)
		}
		wikiClient = services.NewWikiClient(cfg.Wiki.BaseURL, "av-wiki", cfg.Wiki.Timeout, wikiInterval)
	}

	// Initialize source clients
	registry := initializeSourceRegistry(cfg.Sources)

	// Initialize flows
	rawIntakeFlow := businessflow.NewRawIntakeFlow(rawRecordRepo, objectStore, db)

	performerResolutionFlow := businessflow.NewPerformerResolutionFlow(
		performerRepo,
		aliasRepo,
		externalIDRepo,
		wikiClient,
		db,
	)

	productResolutionFlow := businessflow.NewProductResolutionFlow(
		productRepo,
		productSourceRepo,
		linkRepo,
		tagRepo,
		rawRecordRepo,
		flagRepo,
		performerResolutionFlow,
		db,
	)

	ingestionFlow := businessflow.NewIngestionFlow(
		registry,
		rawIntakeFlow,
		productResolutionFlow,
		rawRecordRepo,
		flagRepo,
		cfg.Scheduler.Workers,
	)

	mergeFlow := businessflow.NewMergeFlow(productRepo, productSourceRepo, linkRepo, db)
	catalogFlow := businessflow.NewCatalogFlow(productRepo, catalogCache)
	reviewFlow := businessflow.NewReviewFlow(flagRepo, rawRecordRepo)
	operatorAuthFlow := businessflow.NewOperatorAuthFlow(operatorRepo, tokenService)

	// Initialize handlers
	authHandler := handlers.NewOperatorAuthHandler(operatorAuthFlow)
	productHandler := handlers.NewProductHandler(catalogFlow)
	opsHandler := handlers.NewOpsHandler(ingestionFlow, mergeFlow)
	reviewHandler := handlers.NewReviewHandler(reviewFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authHandler,
		productHandler,
		opsHandler,
		reviewHandler,
		authMiddleware,
	)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewIngestScheduler(registry, ingestionFlow, cfg.Scheduler.Interval, cfg.Scheduler.BatchLimit)
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
	}

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
