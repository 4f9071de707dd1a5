package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/pkg/errors"
)

type forwardedOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewForwardedOrderRepository creates a new forwarded order repository
func NewForwardedOrderRepository(db *sql.DB, logger *zap.Logger) *forwardedOrderRepository {
	return &forwardedOrderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `id, connection_id, retailer_order_id, status, total, idempotency_key, pushed_at, created_at, updated_at`

func scanOrder(scanner interface{ Scan(...interface{}) error }) (*domain.ForwardedOrder, error) {
	var o domain.ForwardedOrder
	var idempotencyKey sql.NullString
	var pushedAt sql.NullTime

	err := scanner.Scan(
		&o.ID,
		&o.ConnectionID,
		&o.RetailerOrderID,
		&o.Status,
		&o.Total,
		&idempotencyKey,
		&pushedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if idempotencyKey.Valid {
		o.IdempotencyKey = &idempotencyKey.String
	}
	if pushedAt.Valid {
		o.PushedAt = &pushedAt.Time
	}
	return &o, nil
}

func (r *forwardedOrderRepository) Create(ctx context.Context, order *domain.ForwardedOrder) error {
	query := `
		INSERT INTO forwarded_orders (id, connection_id, retailer_order_id, status, total, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPendingConfirmation
	}

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.ConnectionID,
		order.RetailerOrderID,
		order.Status,
		order.Total,
		order.IdempotencyKey,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		// Two racing forwards with the same idempotency key both miss
		// the lookup; the unique index breaks the tie.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return &errors.ErrConflict{Message: "order already forwarded for idempotency key"}
		}
		r.logger.Error("Failed to create forwarded order", zap.Error(err))
		return err
	}
	return nil
}

func (r *forwardedOrderRepository) CreateItems(ctx context.Context, items []*domain.ForwardedOrderItem) error {
	query := `
		INSERT INTO forwarded_order_items (id, forwarded_order_id, supplier_product_id, supplier_variant_id, sku, title, price, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now()
		}
		_, err := r.db.ExecContext(ctx, query,
			item.ID,
			item.ForwardedOrderID,
			item.SupplierProductID,
			item.SupplierVariantID,
			item.SKU,
			item.Title,
			item.Price,
			item.Quantity,
			item.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create forwarded order item", zap.Error(err))
			return err
		}
	}
	return nil
}

func (r *forwardedOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ForwardedOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM forwarded_orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "forwarded_order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get forwarded order", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *forwardedOrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.ForwardedOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM forwarded_orders WHERE idempotency_key = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "forwarded_order", ID: key}
	}
	if err != nil {
		r.logger.Error("Failed to get order by idempotency key", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *forwardedOrderRepository) MarkPushed(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`UPDATE forwarded_orders SET pushed_at = $2, updated_at = $2 WHERE id = $1`,
		id, now,
	)
	if err != nil {
		r.logger.Error("Failed to mark order pushed", zap.Error(err))
		return err
	}
	return nil
}

func (r *forwardedOrderRepository) CountByShopSince(ctx context.Context, shop string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM forwarded_orders o
		JOIN connections c ON c.id = o.connection_id
		WHERE c.supplier_shop = $1 AND o.created_at >= $2
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, shop, since).Scan(&count); err != nil {
		r.logger.Error("Failed to count orders", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *forwardedOrderRepository) CountPushedByShopSince(ctx context.Context, shop string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM forwarded_orders o
		JOIN connections c ON c.id = o.connection_id
		WHERE c.supplier_shop = $1 AND o.pushed_at IS NOT NULL AND o.pushed_at >= $2
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, shop, since).Scan(&count); err != nil {
		r.logger.Error("Failed to count pushed orders", zap.Error(err))
		return 0, err
	}
	return count, nil
}
