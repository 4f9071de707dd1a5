package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/api"
	"github.com/shopbridge/syncengine/internal/cache"
	"github.com/shopbridge/syncengine/internal/config"
	"github.com/shopbridge/syncengine/internal/repository/postgres"
	"github.com/shopbridge/syncengine/internal/service"
	"github.com/shopbridge/syncengine/internal/shopify"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting sync engine",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := postgres.RunMigrations(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repositories and cache
	repos := postgres.NewRepositories(db, logger)
	store := cache.NewRedisStore(cfg.Redis)

	// Platform clients
	supplierClient := shopify.NewClient(cfg.Supplier, logger)
	retailerClient := shopify.NewClient(cfg.Retailer, logger)
	bulkClient := shopify.NewBulkJobClient(supplierClient, shopify.PollPolicy{
		Interval: cfg.Sync.BulkPollInterval,
		MaxWait:  cfg.Sync.BulkMaxWait,
	}, logger)

	catalog := service.NewShopifyCatalog(supplierClient, bulkClient, logger)
	retailer := service.NewShopifyRetailer(retailerClient, logger)

	// Services
	usage := service.NewUsageLedger(repos, logger)
	health := service.NewHealthTracker(repos, store, cfg.Sync, logger)
	syncSvc := service.NewSyncService(repos, catalog, retailer, usage, health, cfg.Sync, logger)
	orderSvc := service.NewOrderService(repos, usage, health, logger)

	// Initialize router
	router := api.NewRouter(cfg, repos, &api.Services{
		Sync:   syncSvc,
		Orders: orderSvc,
		Usage:  usage,
		Health: health,
	}, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
