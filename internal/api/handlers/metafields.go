package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/api/middleware"
	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
	"github.com/shopbridge/syncengine/internal/service"
	"github.com/shopbridge/syncengine/pkg/errors"
)

// HandleCreateMetafieldDefinition handles POST /v1/metafields
func HandleCreateMetafieldDefinition(repos *repository.Repositories, usage *service.UsageLedger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req struct {
			Namespace string `json:"namespace" binding:"required"`
			Key       string `json:"key" binding:"required"`
			Type      string `json:"type" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		check, err := usage.CheckUsage(c.Request.Context(), conn.SupplierShop, conn.Tier, domain.ResourceMetafieldDefs, 1)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if !check.Allowed {
			respondError(c, logger, &errors.ErrLimitExceeded{
				Resource:      domain.ResourceMetafieldDefs,
				CurrentUsage:  check.CurrentUsage,
				Limit:         check.Limit,
				SuggestedTier: check.SuggestedTier,
			})
			return
		}

		if err := repos.MetafieldDefinition.Create(c.Request.Context(), conn.SupplierShop, req.Namespace, req.Key, req.Type); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"namespace": req.Namespace,
			"key":       req.Key,
			"type":      req.Type,
		})
	}
}
