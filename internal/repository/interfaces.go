package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shopbridge/syncengine/internal/domain"
)

// ConnectionRepository defines connection data access methods
type ConnectionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Connection, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Connection, error)
	List(ctx context.Context) ([]*domain.Connection, error)
	Create(ctx context.Context, conn *domain.Connection) error
	Update(ctx context.Context, conn *domain.Connection) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ConnectionStatus) error
	CountByShop(ctx context.Context, shop string) (int, error)
}

// ProductMappingRepository defines product mapping data access methods.
// Upsert is keyed by (connection_id, supplier_product_id).
type ProductMappingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductMapping, error)
	GetBySupplierProduct(ctx context.Context, connectionID uuid.UUID, supplierProductID string) (*domain.ProductMapping, error)
	Upsert(ctx context.Context, mapping *domain.ProductMapping) error
	Update(ctx context.Context, mapping *domain.ProductMapping) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MappingStatus) error
	SetMaterialized(ctx context.Context, id uuid.UUID, retailerProductID string) error
	SetLastError(ctx context.Context, id uuid.UUID, message string) error
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit, offset int) ([]*domain.ProductMapping, error)
	CountByStatus(ctx context.Context, connectionID uuid.UUID) (map[domain.MappingStatus]int, error)
	CountErrored(ctx context.Context, connectionID uuid.UUID) (int, error)
	CountMappedByShop(ctx context.Context, shop string) (int, error)
	PauseAllForConnection(ctx context.Context, connectionID uuid.UUID) error
}

// VariantMappingRepository defines variant mapping data access methods.
// Upsert is keyed by (product_mapping_id, supplier_variant_id); a row
// with manually_mapped=true is never overwritten by an auto-match.
type VariantMappingRepository interface {
	ListByProductMapping(ctx context.Context, productMappingID uuid.UUID) ([]*domain.VariantMapping, error)
	Upsert(ctx context.Context, mapping *domain.VariantMapping) error
	SetManual(ctx context.Context, productMappingID uuid.UUID, supplierVariantID, retailerVariantID string) error
	ClearManual(ctx context.Context, productMappingID uuid.UUID, supplierVariantID string) error
}

// ForwardedOrderRepository defines forwarded order data access methods
type ForwardedOrderRepository interface {
	Create(ctx context.Context, order *domain.ForwardedOrder) error
	CreateItems(ctx context.Context, items []*domain.ForwardedOrderItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ForwardedOrder, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.ForwardedOrder, error)
	MarkPushed(ctx context.Context, id uuid.UUID) error
	CountByShopSince(ctx context.Context, shop string, since time.Time) (int, error)
	CountPushedByShopSince(ctx context.Context, shop string, since time.Time) (int, error)
}

// MetafieldDefinitionRepository defines metafield definition access
type MetafieldDefinitionRepository interface {
	Create(ctx context.Context, shop, namespace, key, fieldType string) error
	CountByShop(ctx context.Context, shop string) (int, error)
}

// Repositories aggregates all repositories
type Repositories struct {
	Connection          ConnectionRepository
	ProductMapping      ProductMappingRepository
	VariantMapping      VariantMappingRepository
	ForwardedOrder      ForwardedOrderRepository
	MetafieldDefinition MetafieldDefinitionRepository
}
