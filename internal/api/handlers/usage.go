package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/api/middleware"
	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/service"
)

// HandleUsageReport handles GET /v1/usage/report
func HandleUsageReport(usage *service.UsageLedger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		report, err := usage.GetUsageReport(c.Request.Context(), conn.SupplierShop, conn.Tier)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, report)
	}
}

// HandleCheckUsage handles GET /v1/usage/:resource
func HandleCheckUsage(usage *service.UsageLedger, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		resource := domain.UsageResource(c.Param("resource"))
		known := false
		for _, r := range domain.UsageResources {
			if r == resource {
				known = true
				break
			}
		}
		if !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown resource"})
			return
		}

		delta := 1
		if v, err := parseIntQuery(c, "delta"); err == nil && v >= 0 {
			delta = v
		}

		check, err := usage.CheckUsage(c.Request.Context(), conn.SupplierShop, conn.Tier, resource, delta)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, check)
	}
}
