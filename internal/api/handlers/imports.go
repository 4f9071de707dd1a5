package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/api/middleware"
	"github.com/shopbridge/syncengine/internal/service"
)

// HandlePreviewImport handles POST /v1/imports/preview
func HandlePreviewImport(syncSvc *service.SyncService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req service.ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := syncSvc.PreviewImport(c.Request.Context(), conn.ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// HandleImportProducts handles POST /v1/imports
func HandleImportProducts(syncSvc *service.SyncService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req service.ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := syncSvc.ImportProducts(c.Request.Context(), conn.ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		logger.Info("Import completed",
			zap.String("connection_id", conn.ID.String()),
			zap.Int("succeeded", result.Summary.Succeeded),
			zap.Int("failed", result.Summary.Failed),
		)

		c.JSON(http.StatusOK, result)
	}
}

// HandleSyncInventory handles POST /v1/sync/inventory
func HandleSyncInventory(syncSvc *service.SyncService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req struct {
			LocationID string `json:"location_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := syncSvc.SyncInventory(c.Request.Context(), conn.ID, req.LocationID); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "completed"})
	}
}

// HandleSyncPrices handles POST /v1/sync/prices
func HandleSyncPrices(syncSvc *service.SyncService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if err := syncSvc.SyncPrices(c.Request.Context(), conn.ID); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "completed"})
	}
}
