package domain

import (
	"time"

	"github.com/google/uuid"
)

// Connection represents a supplier-retailer store pairing
type Connection struct {
	ID               uuid.UUID
	SupplierShop     string
	RetailerShop     string
	Status           ConnectionStatus
	PaymentTermsType string
	Tier             Tier
	APIKeyHash       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProductMapping links a supplier catalog product to its retailer-side
// counterpart. RetailerProductID stays nil until the product has been
// materialized in the retailer store (shadow import).
type ProductMapping struct {
	ID                uuid.UUID
	ConnectionID      uuid.UUID
	SupplierProductID string
	RetailerProductID *string
	Preferences       SyncPreferences
	MarkupType        MarkupType
	MarkupValue       float64
	ConflictPolicy    ConflictPolicy
	Status            MappingStatus
	LastSyncedAt      *time.Time
	LastError         *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsShadow reports whether the mapping has never been materialized
func (m *ProductMapping) IsShadow() bool {
	return m.RetailerProductID == nil
}

// VariantMapping links one supplier variant to a retailer variant.
// Unique per (ProductMappingID, SupplierVariantID).
type VariantMapping struct {
	ID                uuid.UUID
	ProductMappingID  uuid.UUID
	SupplierVariantID string
	RetailerVariantID *string
	SupplierOptions   map[string]string
	RetailerOptions   map[string]string
	ManuallyMapped    bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Variant is one sellable variant of a catalog product as returned by
// either store's platform API.
type Variant struct {
	ID        string
	SKU       string
	Title     string
	Price     float64
	Inventory int
	Options   map[string]string
}

// CatalogProduct is a supplier catalog product eligible for import
type CatalogProduct struct {
	ID          string
	Title       string
	Description string
	Tags        []string
	Variants    []Variant
}

// ConnectionHealth is a cached projection over recent activity. It is
// not a source of truth and can always be recomputed from the audit trail.
type ConnectionHealth struct {
	ConnectionID    uuid.UUID              `json:"connection_id"`
	Status          HealthStatus           `json:"status"`
	LastSyncAt      map[SyncKind]time.Time `json:"last_sync_at"`
	ErrorCount24h   int                    `json:"error_count_24h"`
	Throttled       bool                   `json:"throttled"`
	ThrottledUntil  *time.Time             `json:"throttled_until,omitempty"`
	MappingCounts   map[MappingStatus]int  `json:"mapping_counts"`
	ErrorMappings   int                    `json:"error_mappings"`
	ComputedAt      time.Time              `json:"computed_at"`
}

// ActivityEntry is one append-only diagnostic record of a sync-relevant
// event for a connection. Stored in a bounded, time-limited ring.
type ActivityEntry struct {
	ID           uuid.UUID              `json:"id"`
	ConnectionID uuid.UUID              `json:"connection_id"`
	Type         ActivityType           `json:"type"`
	ResourceType string                 `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ForwardedOrder represents a retailer order forwarded to the supplier
type ForwardedOrder struct {
	ID              uuid.UUID
	ConnectionID    uuid.UUID
	RetailerOrderID string
	Status          OrderStatus
	Total           float64
	IdempotencyKey  *string
	PushedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ForwardedOrderItem is one line item of a forwarded order
type ForwardedOrderItem struct {
	ID                uuid.UUID
	ForwardedOrderID  uuid.UUID
	SupplierProductID string
	SupplierVariantID *string
	SKU               string
	Title             string
	Price             float64
	Quantity          int
	CreatedAt         time.Time
}
