package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/api/middleware"
	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
	"github.com/shopbridge/syncengine/internal/service"
)

// HandleForwardOrder handles POST /v1/orders/forward
func HandleForwardOrder(orderSvc *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req service.OrderForwardRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := orderSvc.ForwardOrder(c.Request.Context(), conn, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

// OrderResponse represents one forwarded order
type OrderResponse struct {
	ID              string             `json:"id"`
	RetailerOrderID string             `json:"retailer_order_id"`
	Status          domain.OrderStatus `json:"status"`
	Total           float64            `json:"total"`
	PushedAt        *string            `json:"pushed_at,omitempty"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at"`
}

// HandleGetOrder handles GET /v1/orders/:id
func HandleGetOrder(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := middleware.GetConnectionFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
			return
		}

		order, err := repos.ForwardedOrder.GetByID(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		if order.ConnectionID != conn.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		resp := OrderResponse{
			ID:              order.ID.String(),
			RetailerOrderID: order.RetailerOrderID,
			Status:          order.Status,
			Total:           order.Total,
			CreatedAt:       order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:       order.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if order.PushedAt != nil {
			pushed := order.PushedAt.Format("2006-01-02T15:04:05Z07:00")
			resp.PushedAt = &pushed
		}
		c.JSON(http.StatusOK, resp)
	}
}
