package service

import (
	"github.com/shopbridge/syncengine/internal/domain"
)

// ImportRequest selects supplier products to import and how
type ImportRequest struct {
	ProductIDs  []string               `json:"product_ids" binding:"required,min=1"`
	Preferences domain.SyncPreferences `json:"preferences"`
	MarkupType  domain.MarkupType      `json:"markup_type"`
	MarkupValue float64                `json:"markup_value"`
	// Materialize creates the products in the retailer store; false
	// leaves shadow mappings for preview/migration testing.
	Materialize bool `json:"materialize"`
}

// ImportPreview describes what one product import would do
type ImportPreview struct {
	SupplierProductID string             `json:"supplier_product_id"`
	Title             string             `json:"title"`
	VariantCount      int                `json:"variant_count"`
	AlreadyMapped     bool               `json:"already_mapped"`
	RetailPrices      map[string]float64 `json:"retail_prices"`
	Error             string             `json:"error,omitempty"`
}

// ImportItemResult is the per-item outcome of an import run
type ImportItemResult struct {
	SupplierProductID string `json:"supplier_product_id"`
	Success           bool   `json:"success"`
	MappingID         string `json:"mapping_id,omitempty"`
	RetailerProductID string `json:"retailer_product_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// ImportSummary totals an import or preview run. Partial failure is
// always visible here, never swallowed.
type ImportSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// PreviewResult is the response of an import preview
type PreviewResult struct {
	Previews []ImportPreview `json:"previews"`
	Summary  ImportSummary   `json:"summary"`
}

// ImportResult is the response of an import execution
type ImportResult struct {
	Results []ImportItemResult `json:"results"`
	Summary ImportSummary      `json:"summary"`
}

// OrderForwardRequest submits one retailer order for forwarding
type OrderForwardRequest struct {
	RetailerOrderID string             `json:"retailer_order_id" binding:"required"`
	IdempotencyKey  *string            `json:"idempotency_key,omitempty"`
	Items           []OrderForwardItem `json:"items" binding:"required,min=1"`
}

// OrderForwardItem is one line of a forwarded order
type OrderForwardItem struct {
	SKU               string  `json:"sku" binding:"required"`
	SupplierProductID string  `json:"supplier_product_id" binding:"required"`
	SupplierVariantID *string `json:"supplier_variant_id,omitempty"`
	Title             string  `json:"title" binding:"required"`
	Price             float64 `json:"price" binding:"min=0"`
	Quantity          int     `json:"quantity" binding:"required,min=1"`
}

// OrderForwardResult reports the forwarded order
type OrderForwardResult struct {
	OrderID string             `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
	Pushed  bool               `json:"pushed"`
}
