package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/cache"
	"github.com/shopbridge/syncengine/internal/config"
	"github.com/shopbridge/syncengine/internal/domain"
	apperrors "github.com/shopbridge/syncengine/pkg/errors"
)

func newTestSyncService(fakes *fakeRepos, catalog *fakeCatalog, retailer *fakeRetailer) *SyncService {
	cfg := config.SyncConfig{
		ImportWorkers:    4,
		HealthTTL:        time.Minute,
		ActivityMaxCount: 100,
		ActivityMaxAge:   30 * 24 * time.Hour,
	}
	repos := fakes.repositories()
	usage := NewUsageLedger(repos, zap.NewNop())
	health := NewHealthTracker(repos, cache.NewMemoryStore(), cfg, zap.NewNop())
	return NewSyncService(repos, catalog, retailer, usage, health, cfg, zap.NewNop())
}

func catalogProduct(id string, variantCount int) domain.CatalogProduct {
	p := domain.CatalogProduct{ID: id, Title: "Product " + id}
	for i := 0; i < variantCount; i++ {
		p.Variants = append(p.Variants, domain.Variant{
			ID:    fmt.Sprintf("%s-v%d", id, i),
			SKU:   fmt.Sprintf("%s-SKU%d", id, i),
			Price: 10,
			Options: map[string]string{
				"Size": fmt.Sprintf("S%d", i),
			},
		})
	}
	return p
}

func TestRetailPrice(t *testing.T) {
	assert.InDelta(t, 12.0, RetailPrice(domain.MarkupTypePercentage, 20, 10), 1e-9)
	assert.InDelta(t, 15.5, RetailPrice(domain.MarkupTypeFixedAmount, 5.5, 10), 1e-9)
	assert.InDelta(t, 42.0, RetailPrice(domain.MarkupTypeCustom, 42, 10), 1e-9)
}

func TestImportProductsMaterializes(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	catalog := newFakeCatalog(catalogProduct("p1", 2))
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)

	result, err := svc.ImportProducts(context.Background(), conn.ID, ImportRequest{
		ProductIDs:  []string{"p1"},
		MarkupType:  domain.MarkupTypePercentage,
		MarkupValue: 20,
		Materialize: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Success)
	assert.NotEmpty(t, result.Results[0].RetailerProductID)
	assert.Equal(t, 1, result.Summary.Succeeded)

	mapping, err := fakes.repositories().ProductMapping.GetBySupplierProduct(context.Background(), conn.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.MappingStatusActive, mapping.Status)
	assert.False(t, mapping.IsShadow())

	// Exact variant matches were persisted
	vms, err := fakes.repositories().VariantMapping.ListByProductMapping(context.Background(), mapping.ID)
	require.NoError(t, err)
	assert.Len(t, vms, 2)
}

func TestImportProductsShadow(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	catalog := newFakeCatalog(catalogProduct("p1", 1))
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)

	result, err := svc.ImportProducts(context.Background(), conn.ID, ImportRequest{
		ProductIDs: []string{"p1"},
	})
	require.NoError(t, err)
	assert.True(t, result.Results[0].Success)
	assert.Empty(t, result.Results[0].RetailerProductID)

	mapping, err := fakes.repositories().ProductMapping.GetBySupplierProduct(context.Background(), conn.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.MappingStatusUnsynced, mapping.Status)
	assert.True(t, mapping.IsShadow())

	// Nothing was created in the retailer store
	assert.Empty(t, retailer.created)
}

func TestImportProductsCapDeniesOverflow(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	rp := "rp"
	for i := 0; i < 24; i++ {
		fakes.addMapping(conn.ID, fmt.Sprintf("existing-%d", i), domain.MappingStatusActive, &rp)
	}
	catalog := newFakeCatalog(
		catalogProduct("n1", 1),
		catalogProduct("n2", 1),
		catalogProduct("n3", 1),
	)
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)

	// 24 of 25 used: importing 3 lets exactly one through
	result, err := svc.ImportProducts(context.Background(), conn.ID, ImportRequest{
		ProductIDs:  []string{"n1", "n2", "n3"},
		Materialize: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Succeeded)
	assert.Equal(t, 2, result.Summary.Failed)

	assert.True(t, result.Results[0].Success)
	for _, item := range result.Results[1:] {
		assert.False(t, item.Success)
		assert.Contains(t, item.Error, "product limit reached")
		assert.Contains(t, item.Error, "upgrade to STARTER")
	}
}

func TestImportSummaryConsistentWhenInCapItemFails(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	rp := "rp"
	for i := 0; i < 24; i++ {
		fakes.addMapping(conn.ID, fmt.Sprintf("existing-%d", i), domain.MappingStatusActive, &rp)
	}
	// One slot of headroom; the in-cap item fails inside its worker
	// while the denied items are settled. The summary must add up.
	svc := newTestSyncService(fakes, newFakeCatalog(), newFakeRetailer())

	result, err := svc.ImportProducts(context.Background(), conn.ID, ImportRequest{
		ProductIDs:  []string{"missing-1", "missing-2", "missing-3"},
		Materialize: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Summary.Succeeded)
	assert.Equal(t, 3, result.Summary.Failed)
	assert.Contains(t, result.Results[0].Error, "not found")
	assert.Contains(t, result.Results[1].Error, "product limit reached")
	assert.Contains(t, result.Results[2].Error, "product limit reached")
}

func TestImportProductsIdempotentReImport(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	catalog := newFakeCatalog(catalogProduct("p1", 1))
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)
	ctx := context.Background()

	req := ImportRequest{ProductIDs: []string{"p1"}, Materialize: true}
	first, err := svc.ImportProducts(ctx, conn.ID, req)
	require.NoError(t, err)
	require.True(t, first.Results[0].Success)

	second, err := svc.ImportProducts(ctx, conn.ID, req)
	require.NoError(t, err)
	require.True(t, second.Results[0].Success)
	assert.Equal(t, first.Results[0].RetailerProductID, second.Results[0].RetailerProductID)
	assert.Equal(t, first.Results[0].MappingID, second.Results[0].MappingID)

	// Exactly one product was ever created retailer-side
	assert.Len(t, retailer.created, 1)
}

func TestImportProductsCreateFailureStaysUnsynced(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	catalog := newFakeCatalog(catalogProduct("p1", 1))
	retailer := newFakeRetailer()
	retailer.createErr = errors.New("shop is locked")
	svc := newTestSyncService(fakes, catalog, retailer)

	result, err := svc.ImportProducts(context.Background(), conn.ID, ImportRequest{
		ProductIDs:  []string{"p1"},
		Materialize: true,
	})
	require.NoError(t, err)
	assert.False(t, result.Results[0].Success)
	assert.Contains(t, result.Results[0].Error, "shop is locked")

	mapping, err := fakes.repositories().ProductMapping.GetBySupplierProduct(context.Background(), conn.ID, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.MappingStatusUnsynced, mapping.Status)
	assert.True(t, mapping.IsShadow())
	require.NotNil(t, mapping.LastError)
	assert.Contains(t, *mapping.LastError, "shop is locked")
}

func TestImportProductsPartialFailure(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	catalog := newFakeCatalog(catalogProduct("good", 1))
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)

	result, err := svc.ImportProducts(context.Background(), conn.ID, ImportRequest{
		ProductIDs:  []string{"good", "missing"},
		Materialize: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Succeeded)
	assert.Equal(t, 1, result.Summary.Failed)
	assert.True(t, result.Results[0].Success)
	assert.False(t, result.Results[1].Success)
}

func TestImportRejectsInactiveConnection(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusPaused)
	svc := newTestSyncService(fakes, newFakeCatalog(), newFakeRetailer())

	_, err := svc.ImportProducts(context.Background(), conn.ID, ImportRequest{
		ProductIDs: []string{"p1"},
	})
	var valErr *apperrors.ErrValidation
	require.ErrorAs(t, err, &valErr)
}

func TestPreviewImportDoesNotWrite(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	catalog := newFakeCatalog(catalogProduct("p1", 2))
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)

	result, err := svc.PreviewImport(context.Background(), conn.ID, ImportRequest{
		ProductIDs:  []string{"p1"},
		MarkupType:  domain.MarkupTypePercentage,
		MarkupValue: 50,
	})
	require.NoError(t, err)
	require.Len(t, result.Previews, 1)
	assert.Equal(t, 2, result.Previews[0].VariantCount)
	assert.False(t, result.Previews[0].AlreadyMapped)
	assert.InDelta(t, 15.0, result.Previews[0].RetailPrices["p1-v0"], 1e-9)

	assert.Empty(t, fakes.mappings)
	assert.Empty(t, retailer.created)
}

func TestAutoMatchVariantsRejectsShadowMapping(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	mapping := fakes.addMapping(conn.ID, "p1", domain.MappingStatusUnsynced, nil)
	svc := newTestSyncService(fakes, newFakeCatalog(), newFakeRetailer())

	_, err := svc.AutoMatchVariants(context.Background(), mapping.ID)
	var valErr *apperrors.ErrValidation
	require.ErrorAs(t, err, &valErr)
}

func TestAutoMatchVariantsManualLinkSticks(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	catalog := newFakeCatalog(catalogProduct("p1", 2))
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)
	ctx := context.Background()

	result, err := svc.ImportProducts(ctx, conn.ID, ImportRequest{
		ProductIDs:  []string{"p1"},
		Materialize: true,
	})
	require.NoError(t, err)
	mappingID, err := uuid.Parse(result.Results[0].MappingID)
	require.NoError(t, err)

	// Override one auto link by hand, then re-run matching
	require.NoError(t, svc.ManuallyMapVariant(ctx, mappingID, "p1-v0", "rv-manual"))

	matches, err := svc.AutoMatchVariants(ctx, mappingID)
	require.NoError(t, err)
	byID := make(map[string]VariantMatch)
	for _, m := range matches {
		byID[m.SupplierVariantID] = m
	}
	assert.Equal(t, "rv-manual", byID["p1-v0"].RetailerVariantID)
	assert.False(t, byID["p1-v0"].RequiresManualMapping)

	// The stored link also still points at the manual choice
	vms, err := fakes.repositories().VariantMapping.ListByProductMapping(ctx, mappingID)
	require.NoError(t, err)
	for _, vm := range vms {
		if vm.SupplierVariantID == "p1-v0" {
			require.NotNil(t, vm.RetailerVariantID)
			assert.Equal(t, "rv-manual", *vm.RetailerVariantID)
			assert.True(t, vm.ManuallyMapped)
		}
	}
}

func TestSyncInventoryPushesQuantities(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	product := catalogProduct("p1", 1)
	product.Variants[0].Inventory = 17
	catalog := newFakeCatalog(product)
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)
	ctx := context.Background()

	_, err := svc.ImportProducts(ctx, conn.ID, ImportRequest{
		ProductIDs:  []string{"p1"},
		Materialize: true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SyncInventory(ctx, conn.ID, "loc-1"))
	assert.Equal(t, 17, retailer.inventory["rv-1-0"])
}

func TestSyncInventorySkipsDisabledPreference(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	catalog := newFakeCatalog(catalogProduct("p1", 1))
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)
	ctx := context.Background()

	off := false
	_, err := svc.ImportProducts(ctx, conn.ID, ImportRequest{
		ProductIDs:  []string{"p1"},
		Preferences: domain.SyncPreferences{Inventory: &off},
		Materialize: true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SyncInventory(ctx, conn.ID, "loc-1"))
	assert.Empty(t, retailer.inventory)
}

func TestSyncPricesFeatureGatedOnFree(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	svc := newTestSyncService(fakes, newFakeCatalog(), newFakeRetailer())

	err := svc.SyncPrices(context.Background(), conn.ID)
	var gated *apperrors.ErrFeatureGated
	require.ErrorAs(t, err, &gated)
	assert.Equal(t, domain.FeaturePriceSync, gated.Feature)
}

func TestSyncPricesUpdatesMappedVariants(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierStarter, domain.ConnectionStatusActive)
	catalog := newFakeCatalog(catalogProduct("p1", 1))
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)
	ctx := context.Background()

	_, err := svc.ImportProducts(ctx, conn.ID, ImportRequest{
		ProductIDs:  []string{"p1"},
		MarkupType:  domain.MarkupTypePercentage,
		MarkupValue: 100,
		Materialize: true,
	})
	require.NoError(t, err)

	// Supplier price changed since import
	updated := catalog.products["p1"]
	updated.Variants[0].Price = 20
	catalog.products["p1"] = updated

	require.NoError(t, svc.SyncPrices(ctx, conn.ID))
	assert.InDelta(t, 40.0, retailer.prices["rv-1-0"], 1e-9)
}

func TestSyncPricesRespectsRetailerWins(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierStarter, domain.ConnectionStatusActive)
	rp := "rp-1"
	mapping := fakes.addMapping(conn.ID, "p1", domain.MappingStatusActive, &rp)
	mapping.ConflictPolicy = domain.ConflictPolicyRetailerWins
	catalog := newFakeCatalog(catalogProduct("p1", 1))
	retailer := newFakeRetailer()
	svc := newTestSyncService(fakes, catalog, retailer)

	require.NoError(t, svc.SyncPrices(context.Background(), conn.ID))
	assert.Empty(t, retailer.prices)
}
