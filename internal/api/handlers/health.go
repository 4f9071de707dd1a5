package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/api/middleware"
	"github.com/shopbridge/syncengine/internal/service"
)

// connectionIDParam parses :id and checks it matches the authenticated
// connection. Health and activity are per-connection resources.
func connectionIDParam(c *gin.Context) (uuid.UUID, bool) {
	conn, ok := middleware.GetConnectionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection ID"})
		return uuid.Nil, false
	}

	if id != conn.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return uuid.Nil, false
	}
	return id, true
}

// HandleGetHealth handles GET /v1/connections/:id/health
func HandleGetHealth(health *service.HealthTracker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := connectionIDParam(c)
		if !ok {
			return
		}

		h, err := health.GetHealth(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, h)
	}
}

// HandleGetActivity handles GET /v1/connections/:id/activity
func HandleGetActivity(health *service.HealthTracker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := connectionIDParam(c)
		if !ok {
			return
		}

		limit := 50
		if v, err := parseIntQuery(c, "limit"); err == nil && v > 0 {
			limit = v
		}

		entries, err := health.GetActivity(c.Request.Context(), id, limit)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"activity": entries})
	}
}
