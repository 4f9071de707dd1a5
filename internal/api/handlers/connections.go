package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
)

// HandleUpdateConnectionStatus handles POST /v1/connections/:id/status.
// Transitions run through the repository's state machine; TERMINATED is
// a dead end and terminating pauses all of the connection's mappings.
func HandleUpdateConnectionStatus(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := connectionIDParam(c)
		if !ok {
			return
		}

		var req struct {
			Status domain.ConnectionStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !req.Status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection status"})
			return
		}

		if err := repos.Connection.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": req.Status})
	}
}
