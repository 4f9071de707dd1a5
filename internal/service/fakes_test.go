package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
	apperrors "github.com/shopbridge/syncengine/pkg/errors"
)

// fakeRepos is an in-memory repository.Repositories implementation
// shared by the service tests.
type fakeRepos struct {
	mu          sync.Mutex
	connections map[uuid.UUID]*domain.Connection
	mappings    map[uuid.UUID]*domain.ProductMapping
	variants    map[uuid.UUID]*domain.VariantMapping
	orders      map[uuid.UUID]*domain.ForwardedOrder
	orderItems  map[uuid.UUID][]*domain.ForwardedOrderItem
	pushed      map[uuid.UUID]time.Time
	metafields  map[string]int

	// missNextOrderLookup makes the next GetByIdempotencyKey miss,
	// simulating the window where two forwards race past the lookup.
	missNextOrderLookup bool
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		connections: make(map[uuid.UUID]*domain.Connection),
		mappings:    make(map[uuid.UUID]*domain.ProductMapping),
		variants:    make(map[uuid.UUID]*domain.VariantMapping),
		orders:      make(map[uuid.UUID]*domain.ForwardedOrder),
		orderItems:  make(map[uuid.UUID][]*domain.ForwardedOrderItem),
		pushed:      make(map[uuid.UUID]time.Time),
		metafields:  make(map[string]int),
	}
}

func (f *fakeRepos) repositories() *repository.Repositories {
	return &repository.Repositories{
		Connection:          (*fakeConnectionRepo)(f),
		ProductMapping:      (*fakeProductMappingRepo)(f),
		VariantMapping:      (*fakeVariantMappingRepo)(f),
		ForwardedOrder:      (*fakeForwardedOrderRepo)(f),
		MetafieldDefinition: (*fakeMetafieldRepo)(f),
	}
}

func (f *fakeRepos) addConnection(tier domain.Tier, status domain.ConnectionStatus) *domain.Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn := &domain.Connection{
		ID:           uuid.New(),
		SupplierShop: "supplier.myshopify.com",
		RetailerShop: "retailer.myshopify.com",
		Status:       status,
		Tier:         tier,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.connections[conn.ID] = conn
	return conn
}

func (f *fakeRepos) addMapping(connID uuid.UUID, supplierProductID string, status domain.MappingStatus, retailerProductID *string) *domain.ProductMapping {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &domain.ProductMapping{
		ID:                uuid.New(),
		ConnectionID:      connID,
		SupplierProductID: supplierProductID,
		RetailerProductID: retailerProductID,
		MarkupType:        domain.MarkupTypePercentage,
		ConflictPolicy:    domain.ConflictPolicySupplierWins,
		Status:            status,
	}
	f.mappings[m.ID] = m
	return m
}

type fakeConnectionRepo fakeRepos

func (f *fakeConnectionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.connections[id]
	if !ok {
		return nil, &apperrors.ErrNotFound{Resource: "connection", ID: id.String()}
	}
	copied := *conn
	return &copied, nil
}

func (f *fakeConnectionRepo) GetByAPIKey(_ context.Context, _ string) (*domain.Connection, error) {
	return nil, &apperrors.ErrUnauthorized{}
}

func (f *fakeConnectionRepo) List(_ context.Context) ([]*domain.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Connection, 0, len(f.connections))
	for _, c := range f.connections {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeConnectionRepo) Create(_ context.Context, conn *domain.Connection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	copied := *conn
	f.connections[conn.ID] = &copied
	return nil
}

func (f *fakeConnectionRepo) Update(_ context.Context, conn *domain.Connection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *conn
	f.connections[conn.ID] = &copied
	return nil
}

func (f *fakeConnectionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.ConnectionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.connections[id]
	if !ok {
		return &apperrors.ErrNotFound{Resource: "connection", ID: id.String()}
	}
	if !conn.Status.CanTransitionTo(status) {
		return &apperrors.ErrInvalidStateTransition{From: string(conn.Status), To: string(status)}
	}
	conn.Status = status
	if status == domain.ConnectionStatusTerminated {
		for _, m := range f.mappings {
			if m.ConnectionID == id && m.Status == domain.MappingStatusActive {
				m.Status = domain.MappingStatusPaused
			}
		}
	}
	return nil
}

func (f *fakeConnectionRepo) CountByShop(_ context.Context, shop string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.connections {
		if c.SupplierShop == shop && c.Status != domain.ConnectionStatusTerminated {
			count++
		}
	}
	return count, nil
}

type fakeProductMappingRepo fakeRepos

func (f *fakeProductMappingRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ProductMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[id]
	if !ok {
		return nil, &apperrors.ErrNotFound{Resource: "product mapping", ID: id.String()}
	}
	copied := *m
	return &copied, nil
}

func (f *fakeProductMappingRepo) GetBySupplierProduct(_ context.Context, connectionID uuid.UUID, supplierProductID string) (*domain.ProductMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mappings {
		if m.ConnectionID == connectionID && m.SupplierProductID == supplierProductID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, &apperrors.ErrNotFound{Resource: "product mapping", ID: supplierProductID}
}

func (f *fakeProductMappingRepo) Upsert(_ context.Context, mapping *domain.ProductMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mappings {
		if m.ConnectionID == mapping.ConnectionID && m.SupplierProductID == mapping.SupplierProductID {
			m.Preferences = mapping.Preferences
			m.MarkupType = mapping.MarkupType
			m.MarkupValue = mapping.MarkupValue
			*mapping = *m
			return nil
		}
	}
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	copied := *mapping
	f.mappings[mapping.ID] = &copied
	return nil
}

func (f *fakeProductMappingRepo) Update(_ context.Context, mapping *domain.ProductMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *mapping
	f.mappings[mapping.ID] = &copied
	return nil
}

func (f *fakeProductMappingRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.MappingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[id]
	if !ok {
		return &apperrors.ErrNotFound{Resource: "product mapping", ID: id.String()}
	}
	if !m.Status.CanTransitionTo(status) {
		return &apperrors.ErrInvalidStateTransition{From: string(m.Status), To: string(status)}
	}
	m.Status = status
	return nil
}

func (f *fakeProductMappingRepo) SetMaterialized(_ context.Context, id uuid.UUID, retailerProductID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[id]
	if !ok {
		return &apperrors.ErrNotFound{Resource: "product mapping", ID: id.String()}
	}
	m.RetailerProductID = &retailerProductID
	m.Status = domain.MappingStatusActive
	m.LastError = nil
	return nil
}

func (f *fakeProductMappingRepo) SetLastError(_ context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[id]
	if !ok {
		return &apperrors.ErrNotFound{Resource: "product mapping", ID: id.String()}
	}
	m.LastError = &message
	return nil
}

func (f *fakeProductMappingRepo) ListByConnection(_ context.Context, connectionID uuid.UUID, limit, offset int) ([]*domain.ProductMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]*domain.ProductMapping, 0)
	for _, m := range f.mappings {
		if m.ConnectionID == connectionID {
			copied := *m
			all = append(all, &copied)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeProductMappingRepo) CountByStatus(_ context.Context, connectionID uuid.UUID) (map[domain.MappingStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.MappingStatus]int)
	for _, m := range f.mappings {
		if m.ConnectionID == connectionID {
			counts[m.Status]++
		}
	}
	return counts, nil
}

func (f *fakeProductMappingRepo) CountErrored(_ context.Context, connectionID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.mappings {
		if m.ConnectionID == connectionID && m.LastError != nil && !m.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (f *fakeProductMappingRepo) CountMappedByShop(_ context.Context, shop string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.mappings {
		conn, ok := f.connections[m.ConnectionID]
		if !ok || conn.SupplierShop != shop {
			continue
		}
		if m.RetailerProductID != nil && !m.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (f *fakeProductMappingRepo) PauseAllForConnection(_ context.Context, connectionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mappings {
		if m.ConnectionID == connectionID && m.Status == domain.MappingStatusActive {
			m.Status = domain.MappingStatusPaused
		}
	}
	return nil
}

type fakeVariantMappingRepo fakeRepos

func (f *fakeVariantMappingRepo) ListByProductMapping(_ context.Context, productMappingID uuid.UUID) ([]*domain.VariantMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.VariantMapping, 0)
	for _, vm := range f.variants {
		if vm.ProductMappingID == productMappingID {
			copied := *vm
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeVariantMappingRepo) Upsert(_ context.Context, mapping *domain.VariantMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vm := range f.variants {
		if vm.ProductMappingID == mapping.ProductMappingID && vm.SupplierVariantID == mapping.SupplierVariantID {
			if vm.ManuallyMapped {
				return nil
			}
			vm.RetailerVariantID = mapping.RetailerVariantID
			vm.SupplierOptions = mapping.SupplierOptions
			vm.RetailerOptions = mapping.RetailerOptions
			return nil
		}
	}
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	copied := *mapping
	f.variants[mapping.ID] = &copied
	return nil
}

func (f *fakeVariantMappingRepo) SetManual(_ context.Context, productMappingID uuid.UUID, supplierVariantID, retailerVariantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vm := range f.variants {
		if vm.ProductMappingID == productMappingID && vm.SupplierVariantID == supplierVariantID {
			vm.RetailerVariantID = &retailerVariantID
			vm.ManuallyMapped = true
			return nil
		}
	}
	vm := &domain.VariantMapping{
		ID:                uuid.New(),
		ProductMappingID:  productMappingID,
		SupplierVariantID: supplierVariantID,
		RetailerVariantID: &retailerVariantID,
		ManuallyMapped:    true,
	}
	f.variants[vm.ID] = vm
	return nil
}

func (f *fakeVariantMappingRepo) ClearManual(_ context.Context, productMappingID uuid.UUID, supplierVariantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vm := range f.variants {
		if vm.ProductMappingID == productMappingID && vm.SupplierVariantID == supplierVariantID && vm.ManuallyMapped {
			vm.ManuallyMapped = false
			return nil
		}
	}
	return &apperrors.ErrNotFound{Resource: "variant mapping", ID: supplierVariantID}
}

type fakeForwardedOrderRepo fakeRepos

func (f *fakeForwardedOrderRepo) Create(_ context.Context, order *domain.ForwardedOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.IdempotencyKey != nil {
		for _, existing := range f.orders {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *order.IdempotencyKey {
				return &apperrors.ErrConflict{Message: "order already forwarded for idempotency key"}
			}
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	copied := *order
	f.orders[order.ID] = &copied
	return nil
}

func (f *fakeForwardedOrderRepo) CreateItems(_ context.Context, items []*domain.ForwardedOrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		f.orderItems[item.ForwardedOrderID] = append(f.orderItems[item.ForwardedOrderID], item)
	}
	return nil
}

func (f *fakeForwardedOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ForwardedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, &apperrors.ErrNotFound{Resource: "forwarded order", ID: id.String()}
	}
	copied := *order
	return &copied, nil
}

func (f *fakeForwardedOrderRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.ForwardedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missNextOrderLookup {
		f.missNextOrderLookup = false
		return nil, &apperrors.ErrNotFound{Resource: "forwarded order", ID: key}
	}
	for _, order := range f.orders {
		if order.IdempotencyKey != nil && *order.IdempotencyKey == key {
			copied := *order
			return &copied, nil
		}
	}
	return nil, &apperrors.ErrNotFound{Resource: "forwarded order", ID: key}
}

func (f *fakeForwardedOrderRepo) MarkPushed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return &apperrors.ErrNotFound{Resource: "forwarded order", ID: id.String()}
	}
	now := time.Now()
	order.PushedAt = &now
	f.pushed[id] = now
	return nil
}

func (f *fakeForwardedOrderRepo) CountByShopSince(_ context.Context, shop string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, order := range f.orders {
		conn, ok := f.connections[order.ConnectionID]
		if ok && conn.SupplierShop == shop && !order.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeForwardedOrderRepo) CountPushedByShopSince(_ context.Context, shop string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, pushedAt := range f.pushed {
		order, ok := f.orders[id]
		if !ok {
			continue
		}
		conn, ok := f.connections[order.ConnectionID]
		if ok && conn.SupplierShop == shop && !pushedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type fakeMetafieldRepo fakeRepos

func (f *fakeMetafieldRepo) Create(_ context.Context, shop, namespace, key, fieldType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metafields[shop]++
	return nil
}

func (f *fakeMetafieldRepo) CountByShop(_ context.Context, shop string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metafields[shop], nil
}

// fakeCatalog serves supplier products from a map
type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]domain.CatalogProduct
	getErr   map[string]error
}

func newFakeCatalog(products ...domain.CatalogProduct) *fakeCatalog {
	c := &fakeCatalog{
		products: make(map[string]domain.CatalogProduct),
		getErr:   make(map[string]error),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) GetProduct(_ context.Context, productID string) (*domain.CatalogProduct, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.getErr[productID]; ok {
		return nil, err
	}
	p, ok := c.products[productID]
	if !ok {
		return nil, &apperrors.ErrNotFound{Resource: "product", ID: productID}
	}
	return &p, nil
}

func (c *fakeCatalog) FetchVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	p, err := c.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return p.Variants, nil
}

func (c *fakeCatalog) StreamEligibleProducts(_ context.Context, fn func(domain.CatalogProduct) error) error {
	c.mu.Lock()
	products := make([]domain.CatalogProduct, 0, len(c.products))
	for _, p := range c.products {
		products = append(products, p)
	}
	c.mu.Unlock()
	for _, p := range products {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// fakeRetailer records created products and mirrors supplier variants so
// option sets match exactly
type fakeRetailer struct {
	mu        sync.Mutex
	seq       int
	created   map[string][]domain.Variant
	createErr error
	inventory map[string]int
	prices    map[string]float64
}

func newFakeRetailer() *fakeRetailer {
	return &fakeRetailer{
		created:   make(map[string][]domain.Variant),
		inventory: make(map[string]int),
		prices:    make(map[string]float64),
	}
}

func (r *fakeRetailer) CreateProduct(_ context.Context, product domain.CatalogProduct, _ domain.SyncPreferences, prices map[string]float64) (string, []domain.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return "", nil, r.createErr
	}
	r.seq++
	retailerProductID := fmt.Sprintf("rp-%d", r.seq)
	variants := make([]domain.Variant, len(product.Variants))
	for i, v := range product.Variants {
		variants[i] = domain.Variant{
			ID:      fmt.Sprintf("rv-%d-%d", r.seq, i),
			SKU:     v.SKU,
			Title:   v.Title,
			Price:   prices[v.ID],
			Options: v.Options,
		}
	}
	r.created[retailerProductID] = variants
	return retailerProductID, variants, nil
}

func (r *fakeRetailer) FetchVariants(_ context.Context, retailerProductID string) ([]domain.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	variants, ok := r.created[retailerProductID]
	if !ok {
		return nil, &apperrors.ErrNotFound{Resource: "product", ID: retailerProductID}
	}
	return variants, nil
}

func (r *fakeRetailer) SetInventory(_ context.Context, retailerVariantID, _ string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inventory[retailerVariantID] = quantity
	return nil
}

func (r *fakeRetailer) UpdateVariantPrice(_ context.Context, retailerVariantID string, price float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices[retailerVariantID] = price
	return nil
}
