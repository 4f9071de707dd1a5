package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/api/handlers"
	"github.com/shopbridge/syncengine/internal/api/middleware"
	"github.com/shopbridge/syncengine/internal/config"
	"github.com/shopbridge/syncengine/internal/repository"
	"github.com/shopbridge/syncengine/internal/service"
)

// Services bundles the service layer for route wiring
type Services struct {
	Sync   *service.SyncService
	Orders *service.OrderService
	Usage  *service.UsageLedger
	Health *service.HealthTracker
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, repos *repository.Repositories, services *Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes (all require connection authentication)
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(repos, logger))
	{
		v1.POST("/imports/preview", handlers.HandlePreviewImport(services.Sync, logger))
		v1.POST("/imports", handlers.HandleImportProducts(services.Sync, logger))

		v1.POST("/sync/inventory", handlers.HandleSyncInventory(services.Sync, logger))
		v1.POST("/sync/prices", handlers.HandleSyncPrices(services.Sync, logger))

		v1.GET("/mappings", handlers.HandleListMappings(repos, logger))
		v1.GET("/mappings/:id", handlers.HandleGetMapping(repos, logger))
		v1.POST("/mappings/:id/status", handlers.HandleUpdateMappingStatus(repos, logger))
		v1.POST("/mappings/:id/match", handlers.HandleMatchVariants(repos, services.Sync, logger))
		v1.POST("/mappings/:id/variants", handlers.HandleMapVariant(repos, services.Sync, logger))
		v1.DELETE("/mappings/:id/variants/:variantId", handlers.HandleUnmapVariant(repos, logger))

		v1.POST("/connections/:id/status", handlers.HandleUpdateConnectionStatus(repos, logger))
		v1.GET("/connections/:id/health", handlers.HandleGetHealth(services.Health, logger))
		v1.GET("/connections/:id/activity", handlers.HandleGetActivity(services.Health, logger))

		v1.GET("/usage/report", handlers.HandleUsageReport(services.Usage, logger))
		v1.GET("/usage/:resource", handlers.HandleCheckUsage(services.Usage, logger))

		v1.POST("/orders/forward", handlers.HandleForwardOrder(services.Orders, logger))
		v1.GET("/orders/:id", handlers.HandleGetOrder(repos, logger))

		v1.POST("/metafields", handlers.HandleCreateMetafieldDefinition(repos, services.Usage, logger))
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
