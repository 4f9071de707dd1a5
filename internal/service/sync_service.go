package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shopbridge/syncengine/internal/config"
	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
	apperrors "github.com/shopbridge/syncengine/pkg/errors"
)

// SyncService coordinates preview/import/variant-match workflows. It
// gates every mutation through the usage ledger, persists state through
// the mapping repositories and reports every outcome to the health
// tracker.
type SyncService struct {
	repos    *repository.Repositories
	catalog  CatalogSource
	retailer RetailerPlatform
	usage    *UsageLedger
	health   *HealthTracker
	cfg      config.SyncConfig
	logger   *zap.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(
	repos *repository.Repositories,
	catalog CatalogSource,
	retailer RetailerPlatform,
	usage *UsageLedger,
	health *HealthTracker,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *SyncService {
	if cfg.ImportWorkers < 1 {
		cfg.ImportWorkers = 1
	}
	return &SyncService{
		repos:    repos,
		catalog:  catalog,
		retailer: retailer,
		usage:    usage,
		health:   health,
		cfg:      cfg,
		logger:   logger,
	}
}

// RetailPrice derives the retailer-side price from the supplier price
// under a markup rule. CUSTOM treats the value as the explicit price.
func RetailPrice(markupType domain.MarkupType, markupValue, supplierPrice float64) float64 {
	switch markupType {
	case domain.MarkupTypePercentage:
		return supplierPrice * (1 + markupValue/100)
	case domain.MarkupTypeFixedAmount:
		return supplierPrice + markupValue
	case domain.MarkupTypeCustom:
		return markupValue
	default:
		return supplierPrice
	}
}

func (s *SyncService) activeConnection(ctx context.Context, connectionID uuid.UUID) (*domain.Connection, error) {
	conn, err := s.repos.Connection.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.Status != domain.ConnectionStatusActive {
		return nil, &apperrors.ErrValidation{Message: fmt.Sprintf("connection is %s, not ACTIVE", conn.Status)}
	}
	return conn, nil
}

// PreviewImport computes what importing the given supplier products
// would do, without touching either store.
func (s *SyncService) PreviewImport(ctx context.Context, connectionID uuid.UUID, req ImportRequest) (*PreviewResult, error) {
	conn, err := s.activeConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{
		Previews: make([]ImportPreview, len(req.ProductIDs)),
		Summary:  ImportSummary{Total: len(req.ProductIDs)},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ImportWorkers)
	var mu sync.Mutex

	for i, productID := range req.ProductIDs {
		i, productID := i, productID
		g.Go(func() error {
			preview := ImportPreview{SupplierProductID: productID}

			product, err := s.catalog.GetProduct(gctx, productID)
			if err != nil {
				preview.Error = err.Error()
			} else {
				preview.Title = product.Title
				preview.VariantCount = len(product.Variants)
				preview.RetailPrices = make(map[string]float64, len(product.Variants))
				for _, v := range product.Variants {
					preview.RetailPrices[v.ID] = RetailPrice(req.MarkupType, req.MarkupValue, v.Price)
				}
			}

			if _, err := s.repos.ProductMapping.GetBySupplierProduct(gctx, conn.ID, productID); err == nil {
				preview.AlreadyMapped = true
			}

			mu.Lock()
			result.Previews[i] = preview
			if preview.Error == "" {
				result.Summary.Succeeded++
			} else {
				result.Summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// ImportProducts imports the given supplier products into the
// connection. Items are processed with bounded parallelism; each item
// succeeds or fails on its own, already-completed items stand if a
// later one fails. Materializing imports are gated by the
// mapped-product cap before anything is written.
func (s *SyncService) ImportProducts(ctx context.Context, connectionID uuid.UUID, req ImportRequest) (*ImportResult, error) {
	conn, err := s.activeConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	// Reserve cap headroom up front so a parallel batch cannot blow
	// through the limit: items beyond the remaining allowance are
	// denied before any work starts. Shadow imports consume no cap.
	allowance := len(req.ProductIDs)
	var denied *UsageCheck
	if req.Materialize {
		check, err := s.usage.CheckUsage(ctx, conn.SupplierShop, conn.Tier, domain.ResourceMappedProducts, len(req.ProductIDs))
		if err != nil {
			return nil, err
		}
		if !check.Allowed {
			allowance = check.Limit - check.CurrentUsage
			if allowance < 0 {
				allowance = 0
			}
			denied = check
		}
	}

	result := &ImportResult{
		Results: make([]ImportItemResult, len(req.ProductIDs)),
		Summary: ImportSummary{Total: len(req.ProductIDs)},
	}

	// Denials are settled before any worker starts so the summary is
	// only ever written concurrently under mu.
	for i, productID := range req.ProductIDs {
		if i < allowance {
			continue
		}
		result.Results[i] = ImportItemResult{
			SupplierProductID: productID,
			Success:           false,
			Error:             fmt.Sprintf("%s (%d/%d), upgrade to %s", denied.Reason, denied.CurrentUsage, denied.Limit, denied.SuggestedTier),
		}
		result.Summary.Failed++
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ImportWorkers)
	var mu sync.Mutex

	for i, productID := range req.ProductIDs {
		if i >= allowance {
			continue
		}
		i, productID := i, productID

		g.Go(func() error {
			item := s.importOne(gctx, conn, productID, req)
			mu.Lock()
			result.Results[i] = item
			if item.Success {
				result.Summary.Succeeded++
			} else {
				result.Summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// importOne runs the strictly-sequential pipeline for a single item:
// read, upsert mapping, materialize, match variants, record outcome.
func (s *SyncService) importOne(ctx context.Context, conn *domain.Connection, productID string, req ImportRequest) ImportItemResult {
	item := ImportItemResult{SupplierProductID: productID}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		item.Error = err.Error()
		s.recordItemFailure(ctx, conn.ID, productID, err)
		return item
	}

	markupType := req.MarkupType
	if markupType == "" {
		markupType = domain.MarkupTypePercentage
	}

	mapping := &domain.ProductMapping{
		ConnectionID:      conn.ID,
		SupplierProductID: productID,
		Preferences:       req.Preferences,
		MarkupType:        markupType,
		MarkupValue:       req.MarkupValue,
		ConflictPolicy:    domain.ConflictPolicySupplierWins,
		Status:            domain.MappingStatusUnsynced,
	}
	if err := s.repos.ProductMapping.Upsert(ctx, mapping); err != nil {
		item.Error = err.Error()
		s.recordItemFailure(ctx, conn.ID, productID, err)
		return item
	}
	item.MappingID = mapping.ID.String()

	if !req.Materialize {
		item.Success = true
		s.health.RecordSync(ctx, conn.ID, domain.SyncKindProduct, nil)
		return item
	}

	// Re-import of an already-materialized mapping is idempotent: the
	// upsert refreshed its preferences, nothing is created twice.
	if mapping.RetailerProductID != nil {
		item.RetailerProductID = *mapping.RetailerProductID
		item.Success = true
		s.health.RecordSync(ctx, conn.ID, domain.SyncKindProduct, nil)
		return item
	}

	prices := make(map[string]float64, len(product.Variants))
	for _, v := range product.Variants {
		prices[v.ID] = RetailPrice(markupType, req.MarkupValue, v.Price)
	}

	retailerProductID, retailerVariants, err := s.retailer.CreateProduct(ctx, *product, mapping.Preferences, prices)
	if err != nil {
		// The mapping stays UNSYNCED; it must never read ACTIVE when
		// the external create did not succeed.
		item.Error = err.Error()
		if dbErr := s.repos.ProductMapping.SetLastError(ctx, mapping.ID, err.Error()); dbErr != nil {
			s.logger.Error("Failed to persist mapping error", zap.Error(dbErr))
		}
		s.recordItemFailure(ctx, conn.ID, productID, err)
		return item
	}

	if err := s.repos.ProductMapping.SetMaterialized(ctx, mapping.ID, retailerProductID); err != nil {
		item.Error = err.Error()
		s.recordItemFailure(ctx, conn.ID, productID, err)
		return item
	}

	s.persistExactMatches(ctx, mapping.ID, product.Variants, retailerVariants)

	item.RetailerProductID = retailerProductID
	item.Success = true
	s.health.RecordSync(ctx, conn.ID, domain.SyncKindProduct, nil)
	return item
}

func (s *SyncService) recordItemFailure(ctx context.Context, connectionID uuid.UUID, productID string, err error) {
	var rateErr *apperrors.ErrRateLimited
	if errors.As(err, &rateErr) {
		s.health.RecordRateLimit(ctx, connectionID, rateErr.RetryAfter)
		return
	}
	s.health.RecordSync(ctx, connectionID, domain.SyncKindProduct, err)
}

// persistExactMatches stores auto-matched variant links. Partial and
// failed matches are left for manual mapping; exact is the only grade
// safe to persist unattended.
func (s *SyncService) persistExactMatches(ctx context.Context, mappingID uuid.UUID, supplierVariants, retailerVariants []domain.Variant) {
	retailerByID := make(map[string]domain.Variant, len(retailerVariants))
	for _, rv := range retailerVariants {
		retailerByID[rv.ID] = rv
	}
	supplierByID := make(map[string]domain.Variant, len(supplierVariants))
	for _, sv := range supplierVariants {
		supplierByID[sv.ID] = sv
	}

	for _, match := range MatchVariants(supplierVariants, retailerVariants) {
		if match.Confidence != MatchExact {
			continue
		}
		retailerID := match.RetailerVariantID
		vm := &domain.VariantMapping{
			ProductMappingID:  mappingID,
			SupplierVariantID: match.SupplierVariantID,
			RetailerVariantID: &retailerID,
			SupplierOptions:   supplierByID[match.SupplierVariantID].Options,
			RetailerOptions:   retailerByID[retailerID].Options,
		}
		if err := s.repos.VariantMapping.Upsert(ctx, vm); err != nil {
			s.logger.Warn("Failed to persist variant match",
				zap.String("supplier_variant", match.SupplierVariantID),
				zap.Error(err),
			)
		}
	}
}

// AutoMatchVariants re-runs variant matching for one mapping. Exact
// matches are persisted; everything else is returned as requiring
// manual mapping. Manual links persist across runs.
func (s *SyncService) AutoMatchVariants(ctx context.Context, mappingID uuid.UUID) ([]VariantMatch, error) {
	mapping, err := s.repos.ProductMapping.GetByID(ctx, mappingID)
	if err != nil {
		return nil, err
	}
	if mapping.IsShadow() {
		return nil, &apperrors.ErrValidation{Message: "mapping has no retailer product to match against"}
	}

	supplierVariants, err := s.catalog.FetchVariants(ctx, mapping.SupplierProductID)
	if err != nil {
		return nil, err
	}
	retailerVariants, err := s.retailer.FetchVariants(ctx, *mapping.RetailerProductID)
	if err != nil {
		return nil, err
	}

	matches := MatchVariants(supplierVariants, retailerVariants)
	s.persistExactMatches(ctx, mapping.ID, supplierVariants, retailerVariants)

	// A manual link always wins over whatever the matcher found
	existing, err := s.repos.VariantMapping.ListByProductMapping(ctx, mapping.ID)
	if err != nil {
		return nil, err
	}
	manual := make(map[string]string)
	for _, vm := range existing {
		if vm.ManuallyMapped && vm.RetailerVariantID != nil {
			manual[vm.SupplierVariantID] = *vm.RetailerVariantID
		}
	}
	for i := range matches {
		if retailerID, ok := manual[matches[i].SupplierVariantID]; ok {
			matches[i].RetailerVariantID = retailerID
			matches[i].Confidence = MatchExact
			matches[i].RequiresManualMapping = false
		}
	}

	return matches, nil
}

// ManuallyMapVariant records a human-confirmed variant link
func (s *SyncService) ManuallyMapVariant(ctx context.Context, mappingID uuid.UUID, supplierVariantID, retailerVariantID string) error {
	if _, err := s.repos.ProductMapping.GetByID(ctx, mappingID); err != nil {
		return err
	}
	return s.repos.VariantMapping.SetManual(ctx, mappingID, supplierVariantID, retailerVariantID)
}

// SyncInventory walks the supplier catalog through the bulk pipeline
// and pushes inventory levels for every active mapping that syncs
// inventory. Per-mapping failures are recorded and skipped, never
// aborting the run.
func (s *SyncService) SyncInventory(ctx context.Context, connectionID uuid.UUID, locationID string) error {
	conn, err := s.activeConnection(ctx, connectionID)
	if err != nil {
		return err
	}

	var synced, failed int
	err = s.catalog.StreamEligibleProducts(ctx, func(product domain.CatalogProduct) error {
		mapping, err := s.repos.ProductMapping.GetBySupplierProduct(ctx, conn.ID, product.ID)
		if err != nil {
			return nil // not imported, skip
		}
		if mapping.Status != domain.MappingStatusActive || !mapping.Preferences.SyncInventory() {
			return nil
		}

		variantMappings, err := s.repos.VariantMapping.ListByProductMapping(ctx, mapping.ID)
		if err != nil {
			return nil
		}
		bysupplier := make(map[string]*domain.VariantMapping, len(variantMappings))
		for _, vm := range variantMappings {
			bysupplier[vm.SupplierVariantID] = vm
		}

		for _, variant := range product.Variants {
			vm, ok := bysupplier[variant.ID]
			if !ok || vm.RetailerVariantID == nil {
				continue
			}
			if err := s.retailer.SetInventory(ctx, *vm.RetailerVariantID, locationID, variant.Inventory); err != nil {
				failed++
				s.health.RecordMappingError(ctx, conn.ID, domain.ActivityTypeMappingError, mapping.ID.String(), err.Error())
				continue
			}
			synced++
		}
		return nil
	})

	if err != nil {
		s.recordInventoryFailure(ctx, conn.ID, err)
		return err
	}

	s.health.RecordSync(ctx, conn.ID, domain.SyncKindInventory, nil)
	s.logger.Info("Inventory sync finished",
		zap.String("connection_id", conn.ID.String()),
		zap.Int("synced", synced),
		zap.Int("failed", failed),
	)
	return nil
}

// SyncPrices re-derives retailer prices for every active mapping with
// pricing sync enabled. Ongoing price sync is a gated feature; the gate
// runs before the workflow branch, not just in the UI.
func (s *SyncService) SyncPrices(ctx context.Context, connectionID uuid.UUID) error {
	conn, err := s.activeConnection(ctx, connectionID)
	if err != nil {
		return err
	}
	if !s.usage.HasFeature(conn.Tier, domain.FeaturePriceSync) {
		return &apperrors.ErrFeatureGated{Feature: domain.FeaturePriceSync, Tier: conn.Tier}
	}

	const pageSize = 100
	for offset := 0; ; offset += pageSize {
		mappings, err := s.repos.ProductMapping.ListByConnection(ctx, conn.ID, pageSize, offset)
		if err != nil {
			return err
		}
		if len(mappings) == 0 {
			break
		}

		for _, mapping := range mappings {
			if mapping.Status != domain.MappingStatusActive || !mapping.Preferences.SyncPricing() {
				continue
			}
			// RETAILER_WINS keeps whatever price the retailer set
			if mapping.ConflictPolicy == domain.ConflictPolicyRetailerWins {
				continue
			}
			variants, err := s.catalog.FetchVariants(ctx, mapping.SupplierProductID)
			if err != nil {
				s.health.RecordMappingError(ctx, conn.ID, domain.ActivityTypeMappingError, mapping.ID.String(), err.Error())
				continue
			}

			variantMappings, err := s.repos.VariantMapping.ListByProductMapping(ctx, mapping.ID)
			if err != nil {
				continue
			}
			bySupplier := make(map[string]*domain.VariantMapping, len(variantMappings))
			for _, vm := range variantMappings {
				bySupplier[vm.SupplierVariantID] = vm
			}

			for _, v := range variants {
				vm, ok := bySupplier[v.ID]
				if !ok || vm.RetailerVariantID == nil {
					continue
				}
				price := RetailPrice(mapping.MarkupType, mapping.MarkupValue, v.Price)
				if err := s.retailer.UpdateVariantPrice(ctx, *vm.RetailerVariantID, price); err != nil {
					s.health.RecordMappingError(ctx, conn.ID, domain.ActivityTypeMappingError, mapping.ID.String(), err.Error())
				}
			}
		}
	}

	s.health.RecordSync(ctx, conn.ID, domain.SyncKindPrice, nil)
	return nil
}

func (s *SyncService) recordInventoryFailure(ctx context.Context, connectionID uuid.UUID, err error) {
	var rateErr *apperrors.ErrRateLimited
	if errors.As(err, &rateErr) {
		s.health.RecordRateLimit(ctx, connectionID, rateErr.RetryAfter)
		return
	}
	s.health.RecordSync(ctx, connectionID, domain.SyncKindInventory, err)
}
