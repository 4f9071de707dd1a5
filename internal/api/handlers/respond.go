package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/pkg/errors"
)

func parseIntQuery(c *gin.Context, name string) (int, error) {
	return strconv.Atoi(c.Query(name))
}

// respondError maps typed service errors to HTTP responses. Anything
// unrecognized is logged and reported as an internal error.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch e := err.(type) {
	case *errors.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
	case *errors.ErrUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.Error()})
	case *errors.ErrValidation:
		resp := gin.H{"error": e.Error()}
		if len(e.Fields) > 0 {
			resp["fields"] = e.Fields
		}
		c.JSON(http.StatusBadRequest, resp)
	case *errors.ErrConflict:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *errors.ErrInvalidStateTransition:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *errors.ErrLimitExceeded:
		c.JSON(http.StatusForbidden, gin.H{
			"error":          e.Error(),
			"resource":       e.Resource,
			"current_usage":  e.CurrentUsage,
			"limit":          e.Limit,
			"suggested_tier": e.SuggestedTier,
		})
	case *errors.ErrFeatureGated:
		c.JSON(http.StatusForbidden, gin.H{
			"error":   e.Error(),
			"feature": e.Feature,
			"tier":    e.Tier,
		})
	case *errors.ErrRateLimited:
		c.Header("Retry-After", e.RetryAfter.String())
		c.JSON(http.StatusTooManyRequests, gin.H{"error": e.Error()})
	case *errors.ErrBulkJob:
		if e.Timeout {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": e.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": e.Error(), "job_id": e.JobID})
	default:
		logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
