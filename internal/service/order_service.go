package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
	apperrors "github.com/shopbridge/syncengine/pkg/errors"
)

// OrderService forwards retailer orders back to the supplier. Forwards
// are gated by the monthly order cap; the automatic push to the
// supplier additionally requires the auto order-push feature and the
// push cap.
type OrderService struct {
	repos  *repository.Repositories
	usage  *UsageLedger
	health *HealthTracker
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(repos *repository.Repositories, usage *UsageLedger, health *HealthTracker, logger *zap.Logger) *OrderService {
	return &OrderService{
		repos:  repos,
		usage:  usage,
		health: health,
		logger: logger,
	}
}

// ForwardOrder records a retailer order against the connection and, if
// the tier allows, pushes it to the supplier. Resubmitting the same
// idempotency key returns the original order.
func (s *OrderService) ForwardOrder(ctx context.Context, conn *domain.Connection, req OrderForwardRequest) (*OrderForwardResult, error) {
	if conn.Status != domain.ConnectionStatusActive {
		return nil, &apperrors.ErrValidation{Message: "connection is not ACTIVE"}
	}

	if req.IdempotencyKey != nil {
		if existing, err := s.repos.ForwardedOrder.GetByIdempotencyKey(ctx, *req.IdempotencyKey); err == nil {
			return &OrderForwardResult{
				OrderID: existing.ID.String(),
				Status:  existing.Status,
				Pushed:  existing.PushedAt != nil,
			}, nil
		}
	}

	check, err := s.usage.CheckUsage(ctx, conn.SupplierShop, conn.Tier, domain.ResourceOrdersMonth, 1)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, &apperrors.ErrLimitExceeded{
			Resource:      domain.ResourceOrdersMonth,
			CurrentUsage:  check.CurrentUsage,
			Limit:         check.Limit,
			SuggestedTier: check.SuggestedTier,
		}
	}

	order := &domain.ForwardedOrder{
		ConnectionID:    conn.ID,
		RetailerOrderID: req.RetailerOrderID,
		Status:          domain.OrderStatusPendingConfirmation,
		IdempotencyKey:  req.IdempotencyKey,
	}
	for _, item := range req.Items {
		order.Total += item.Price * float64(item.Quantity)
	}

	if err := s.repos.ForwardedOrder.Create(ctx, order); err != nil {
		// A unique-violation on the idempotency key means a concurrent
		// forward won the race; return its order instead of failing.
		var conflict *apperrors.ErrConflict
		if errors.As(err, &conflict) && req.IdempotencyKey != nil {
			if existing, lookupErr := s.repos.ForwardedOrder.GetByIdempotencyKey(ctx, *req.IdempotencyKey); lookupErr == nil {
				return &OrderForwardResult{
					OrderID: existing.ID.String(),
					Status:  existing.Status,
					Pushed:  existing.PushedAt != nil,
				}, nil
			}
		}
		s.health.Append(ctx, domain.ActivityEntry{
			ConnectionID: conn.ID,
			Type:         domain.ActivityTypeOrderForwardFailed,
			ResourceType: "order",
			ResourceID:   req.RetailerOrderID,
			Message:      err.Error(),
		})
		return nil, err
	}

	items := make([]*domain.ForwardedOrderItem, 0, len(req.Items))
	for _, reqItem := range req.Items {
		items = append(items, &domain.ForwardedOrderItem{
			ForwardedOrderID:  order.ID,
			SupplierProductID: reqItem.SupplierProductID,
			SupplierVariantID: reqItem.SupplierVariantID,
			SKU:               reqItem.SKU,
			Title:             reqItem.Title,
			Price:             reqItem.Price,
			Quantity:          reqItem.Quantity,
		})
	}
	if err := s.repos.ForwardedOrder.CreateItems(ctx, items); err != nil {
		return nil, err
	}

	result := &OrderForwardResult{
		OrderID: order.ID.String(),
		Status:  order.Status,
	}

	result.Pushed = s.tryPush(ctx, conn, order.ID)

	s.health.Append(ctx, domain.ActivityEntry{
		ConnectionID: conn.ID,
		Type:         domain.ActivityTypeOrderForwarded,
		ResourceType: "order",
		ResourceID:   req.RetailerOrderID,
		Message:      "order forwarded to supplier",
		Details: map[string]interface{}{
			"order_id": order.ID.String(),
			"items":    len(items),
			"pushed":   result.Pushed,
		},
	})
	s.health.RecordSync(ctx, conn.ID, domain.SyncKindOrder, nil)

	return result, nil
}

// tryPush pushes the order to the supplier when the tier includes auto
// order-push and the push cap has headroom. A skipped push is not a
// failure; the order stays queued for manual handling.
func (s *OrderService) tryPush(ctx context.Context, conn *domain.Connection, orderID uuid.UUID) bool {
	if !s.usage.HasFeature(conn.Tier, domain.FeatureAutoOrderPush) {
		return false
	}

	check, err := s.usage.CheckUsage(ctx, conn.SupplierShop, conn.Tier, domain.ResourceOrderPushes, 1)
	if err != nil || !check.Allowed {
		s.logger.Info("Order push skipped",
			zap.String("order_id", orderID.String()),
			zap.Bool("cap_reached", err == nil),
		)
		return false
	}

	if err := s.repos.ForwardedOrder.MarkPushed(ctx, orderID); err != nil {
		s.logger.Error("Failed to mark order pushed", zap.Error(err))
		return false
	}
	return true
}
