package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/shopify"
)

// CatalogSource reads the supplier store's eligible catalog
type CatalogSource interface {
	GetProduct(ctx context.Context, productID string) (*domain.CatalogProduct, error)
	FetchVariants(ctx context.Context, productID string) ([]domain.Variant, error)
	// StreamEligibleProducts walks the full eligible catalog through the
	// bulk pipeline, invoking fn per product. Used for catalogs too
	// large for paged queries.
	StreamEligibleProducts(ctx context.Context, fn func(domain.CatalogProduct) error) error
}

// RetailerPlatform mutates the retailer store
type RetailerPlatform interface {
	CreateProduct(ctx context.Context, product domain.CatalogProduct, prefs domain.SyncPreferences, prices map[string]float64) (string, []domain.Variant, error)
	FetchVariants(ctx context.Context, productID string) ([]domain.Variant, error)
	SetInventory(ctx context.Context, inventoryItemID, locationID string, quantity int) error
	UpdateVariantPrice(ctx context.Context, variantID string, price float64) error
}

type productNode struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	DescriptionHTML string   `json:"descriptionHtml"`
	Tags            []string `json:"tags"`
	Variants        struct {
		Edges []struct {
			Node variantNode `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

type variantNode struct {
	ID                string `json:"id"`
	SKU               string `json:"sku"`
	Title             string `json:"title"`
	Price             string `json:"price"`
	InventoryQuantity int    `json:"inventoryQuantity"`
	SelectedOptions   []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"selectedOptions"`
}

func (n *productNode) toProduct() domain.CatalogProduct {
	product := domain.CatalogProduct{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.DescriptionHTML,
		Tags:        n.Tags,
	}
	for _, edge := range n.Variants.Edges {
		product.Variants = append(product.Variants, edge.Node.toVariant())
	}
	return product
}

func (n *variantNode) toVariant() domain.Variant {
	v := domain.Variant{
		ID:        n.ID,
		SKU:       n.SKU,
		Title:     n.Title,
		Inventory: n.InventoryQuantity,
		Options:   make(map[string]string, len(n.SelectedOptions)),
	}
	v.Price, _ = strconv.ParseFloat(n.Price, 64)
	for _, opt := range n.SelectedOptions {
		v.Options[opt.Name] = opt.Value
	}
	return v
}

// shopifyCatalog reads the supplier store over the Admin GraphQL API
type shopifyCatalog struct {
	client *shopify.Client
	bulk   *shopify.BulkJobClient
	logger *zap.Logger
}

// NewShopifyCatalog creates a CatalogSource backed by a Shopify store
func NewShopifyCatalog(client *shopify.Client, bulk *shopify.BulkJobClient, logger *zap.Logger) CatalogSource {
	return &shopifyCatalog{client: client, bulk: bulk, logger: logger}
}

func (s *shopifyCatalog) GetProduct(ctx context.Context, productID string) (*domain.CatalogProduct, error) {
	resp, err := s.client.Execute(ctx, shopify.ProductByIDQuery, map[string]interface{}{
		"id": productID,
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		Product *productNode `json:"product"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse product: %w", err)
	}
	if data.Product == nil {
		return nil, fmt.Errorf("product %s not found in supplier catalog", productID)
	}

	product := data.Product.toProduct()
	return &product, nil
}

func (s *shopifyCatalog) FetchVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return product.Variants, nil
}

// StreamEligibleProducts submits a bulk read of the whole catalog and
// streams the JSONL result. Bulk result lines are flat: products and
// their variants arrive as separate records, children referencing the
// parent via __parentId.
func (s *shopifyCatalog) StreamEligibleProducts(ctx context.Context, fn func(domain.CatalogProduct) error) error {
	job, err := s.bulk.SubmitQuery(ctx, shopify.BulkProductsQuery)
	if err != nil {
		return err
	}

	job, err = s.bulk.PollUntilComplete(ctx, job.ID)
	if err != nil {
		return err
	}

	var current *domain.CatalogProduct
	flush := func() error {
		if current == nil {
			return nil
		}
		err := fn(*current)
		current = nil
		return err
	}

	err = s.bulk.StreamResults(ctx, job, func(line json.RawMessage) error {
		var probe struct {
			ID       string `json:"id"`
			ParentID string `json:"__parentId"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			return err
		}

		if probe.ParentID == "" {
			if err := flush(); err != nil {
				return err
			}
			var node productNode
			if err := json.Unmarshal(line, &node); err != nil {
				return err
			}
			product := node.toProduct()
			current = &product
			return nil
		}

		if current == nil || current.ID != probe.ParentID {
			s.logger.Warn("Orphaned variant record in bulk result", zap.String("id", probe.ID))
			return nil
		}
		var node variantNode
		if err := json.Unmarshal(line, &node); err != nil {
			return err
		}
		current.Variants = append(current.Variants, node.toVariant())
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// shopifyRetailer mutates the retailer store over the Admin GraphQL API
type shopifyRetailer struct {
	client *shopify.Client
	logger *zap.Logger
}

// NewShopifyRetailer creates a RetailerPlatform backed by a Shopify store
func NewShopifyRetailer(client *shopify.Client, logger *zap.Logger) RetailerPlatform {
	return &shopifyRetailer{client: client, logger: logger}
}

func (s *shopifyRetailer) CreateProduct(ctx context.Context, product domain.CatalogProduct, prefs domain.SyncPreferences, prices map[string]float64) (string, []domain.Variant, error) {
	input := shopify.ProductInput{
		Title: product.Title,
	}
	if prefs.SyncDescription() && product.Description != "" {
		input.DescriptionHTML = &product.Description
	}
	if prefs.SyncTags() {
		input.Tags = product.Tags
	}

	for _, variant := range product.Variants {
		vi := shopify.VariantInput{}
		if variant.SKU != "" {
			sku := variant.SKU
			vi.SKU = &sku
		}
		price := variant.Price
		if p, ok := prices[variant.ID]; ok {
			price = p
		}
		priceStr := fmt.Sprintf("%.2f", price)
		vi.Price = &priceStr
		for _, name := range sortedOptionNames(variant.Options) {
			vi.Options = append(vi.Options, variant.Options[name])
		}
		input.Variants = append(input.Variants, vi)
	}

	resp, err := s.client.Execute(ctx, shopify.ProductCreateMutation, map[string]interface{}{
		"input": input,
	})
	if err != nil {
		return "", nil, err
	}

	var data struct {
		ProductCreate struct {
			Product *struct {
				ID       string `json:"id"`
				Variants struct {
					Edges []struct {
						Node struct {
							ID  string `json:"id"`
							SKU string `json:"sku"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"variants"`
			} `json:"product"`
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"productCreate"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", nil, fmt.Errorf("failed to parse product create response: %w", err)
	}
	if len(data.ProductCreate.UserErrors) > 0 {
		return "", nil, fmt.Errorf("product create rejected: %s", data.ProductCreate.UserErrors[0].Message)
	}
	if data.ProductCreate.Product == nil {
		return "", nil, fmt.Errorf("product create returned no product")
	}

	var variants []domain.Variant
	for _, edge := range data.ProductCreate.Product.Variants.Edges {
		variants = append(variants, domain.Variant{
			ID:  edge.Node.ID,
			SKU: edge.Node.SKU,
		})
	}
	return data.ProductCreate.Product.ID, variants, nil
}

func (s *shopifyRetailer) FetchVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	resp, err := s.client.Execute(ctx, shopify.ProductByIDQuery, map[string]interface{}{
		"id": productID,
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		Product *productNode `json:"product"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse product: %w", err)
	}
	if data.Product == nil {
		return nil, fmt.Errorf("product %s not found in retailer store", productID)
	}
	return data.Product.toProduct().Variants, nil
}

func (s *shopifyRetailer) SetInventory(ctx context.Context, inventoryItemID, locationID string, quantity int) error {
	resp, err := s.client.Execute(ctx, shopify.InventorySetMutation, map[string]interface{}{
		"input": map[string]interface{}{
			"reason": "correction",
			"setQuantities": []map[string]interface{}{
				{
					"inventoryItemId": inventoryItemID,
					"locationId":      locationID,
					"quantity":        quantity,
				},
			},
		},
	})
	if err != nil {
		return err
	}

	var data struct {
		InventorySetOnHandQuantities struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"inventorySetOnHandQuantities"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("failed to parse inventory response: %w", err)
	}
	if len(data.InventorySetOnHandQuantities.UserErrors) > 0 {
		return fmt.Errorf("inventory set rejected: %s", data.InventorySetOnHandQuantities.UserErrors[0].Message)
	}
	return nil
}

func (s *shopifyRetailer) UpdateVariantPrice(ctx context.Context, variantID string, price float64) error {
	resp, err := s.client.Execute(ctx, shopify.VariantUpdateMutation, map[string]interface{}{
		"input": map[string]interface{}{
			"id":    variantID,
			"price": fmt.Sprintf("%.2f", price),
		},
	})
	if err != nil {
		return err
	}

	var data struct {
		ProductVariantUpdate struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"productVariantUpdate"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("failed to parse variant update response: %w", err)
	}
	if len(data.ProductVariantUpdate.UserErrors) > 0 {
		return fmt.Errorf("variant update rejected: %s", data.ProductVariantUpdate.UserErrors[0].Message)
	}
	return nil
}

func sortedOptionNames(options map[string]string) []string {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
