package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/pkg/errors"
)

type productMappingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductMappingRepository creates a new product mapping repository
func NewProductMappingRepository(db *sql.DB, logger *zap.Logger) *productMappingRepository {
	return &productMappingRepository{
		db:     db,
		logger: logger,
	}
}

const mappingColumns = `id, connection_id, supplier_product_id, retailer_product_id, preferences, markup_type, markup_value, conflict_policy, status, last_synced_at, last_error, created_at, updated_at`

func scanMapping(scanner interface{ Scan(...interface{}) error }) (*domain.ProductMapping, error) {
	var m domain.ProductMapping
	var retailerProductID sql.NullString
	var prefs []byte
	var lastSyncedAt sql.NullTime
	var lastError sql.NullString

	err := scanner.Scan(
		&m.ID,
		&m.ConnectionID,
		&m.SupplierProductID,
		&retailerProductID,
		&prefs,
		&m.MarkupType,
		&m.MarkupValue,
		&m.ConflictPolicy,
		&m.Status,
		&lastSyncedAt,
		&lastError,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if retailerProductID.Valid {
		m.RetailerProductID = &retailerProductID.String
	}
	if lastSyncedAt.Valid {
		m.LastSyncedAt = &lastSyncedAt.Time
	}
	if lastError.Valid {
		m.LastError = &lastError.String
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &m.Preferences); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func (r *productMappingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProductMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM product_mappings WHERE id = $1`

	m, err := scanMapping(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product_mapping", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get product mapping by ID", zap.Error(err))
		return nil, err
	}
	return m, nil
}

func (r *productMappingRepository) GetBySupplierProduct(ctx context.Context, connectionID uuid.UUID, supplierProductID string) (*domain.ProductMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM product_mappings WHERE connection_id = $1 AND supplier_product_id = $2`

	m, err := scanMapping(r.db.QueryRowContext(ctx, query, connectionID, supplierProductID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product_mapping", ID: supplierProductID}
	}
	if err != nil {
		r.logger.Error("Failed to get product mapping by supplier product", zap.Error(err))
		return nil, err
	}
	return m, nil
}

// Upsert inserts a mapping or, when one already exists for the same
// (connection, supplier product), refreshes the sync preferences and
// pricing fields without duplicating the row or touching its status.
func (r *productMappingRepository) Upsert(ctx context.Context, mapping *domain.ProductMapping) error {
	query := `
		INSERT INTO product_mappings (id, connection_id, supplier_product_id, retailer_product_id, preferences, markup_type, markup_value, conflict_policy, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (connection_id, supplier_product_id) DO UPDATE
		SET preferences = EXCLUDED.preferences,
		    markup_type = EXCLUDED.markup_type,
		    markup_value = EXCLUDED.markup_value,
		    conflict_policy = EXCLUDED.conflict_policy,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + mappingColumns

	now := time.Now()
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = now
	}
	mapping.UpdatedAt = now
	if mapping.Status == "" {
		mapping.Status = domain.MappingStatusUnsynced
	}

	prefs, err := json.Marshal(mapping.Preferences)
	if err != nil {
		return err
	}

	row := r.db.QueryRowContext(ctx, query,
		mapping.ID,
		mapping.ConnectionID,
		mapping.SupplierProductID,
		mapping.RetailerProductID,
		prefs,
		mapping.MarkupType,
		mapping.MarkupValue,
		mapping.ConflictPolicy,
		mapping.Status,
		mapping.CreatedAt,
		mapping.UpdatedAt,
	)

	stored, err := scanMapping(row)
	if err != nil {
		r.logger.Error("Failed to upsert product mapping", zap.Error(err))
		return err
	}
	*mapping = *stored
	return nil
}

func (r *productMappingRepository) Update(ctx context.Context, mapping *domain.ProductMapping) error {
	query := `
		UPDATE product_mappings
		SET retailer_product_id = $2, preferences = $3, markup_type = $4, markup_value = $5, conflict_policy = $6, status = $7, last_synced_at = $8, last_error = $9, updated_at = $10
		WHERE id = $1
	`

	mapping.UpdatedAt = time.Now()

	prefs, err := json.Marshal(mapping.Preferences)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		mapping.ID,
		mapping.RetailerProductID,
		prefs,
		mapping.MarkupType,
		mapping.MarkupValue,
		mapping.ConflictPolicy,
		mapping.Status,
		mapping.LastSyncedAt,
		mapping.LastError,
		mapping.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update product mapping", zap.Error(err))
		return err
	}
	return nil
}

func (r *productMappingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MappingStatus) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !current.Status.CanTransitionTo(status) {
		return &errors.ErrInvalidStateTransition{From: string(current.Status), To: string(status)}
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE product_mappings SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now(),
	)
	if err != nil {
		r.logger.Error("Failed to update mapping status", zap.Error(err))
		return err
	}
	return nil
}

// SetMaterialized records the retailer-side product and moves the
// mapping to ACTIVE in one statement, so a failed external create can
// never leave an ACTIVE mapping without a retailer product.
func (r *productMappingRepository) SetMaterialized(ctx context.Context, id uuid.UUID, retailerProductID string) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`UPDATE product_mappings SET retailer_product_id = $2, status = 'ACTIVE', last_synced_at = $3, last_error = NULL, updated_at = $3 WHERE id = $1`,
		id, retailerProductID, now,
	)
	if err != nil {
		r.logger.Error("Failed to materialize mapping", zap.Error(err))
		return err
	}
	return nil
}

func (r *productMappingRepository) SetLastError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE product_mappings SET last_error = $2, updated_at = $3 WHERE id = $1`,
		id, message, time.Now(),
	)
	if err != nil {
		r.logger.Error("Failed to record mapping error", zap.Error(err))
		return err
	}
	return nil
}

func (r *productMappingRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit, offset int) ([]*domain.ProductMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM product_mappings WHERE connection_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, connectionID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list product mappings", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var mappings []*domain.ProductMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func (r *productMappingRepository) CountByStatus(ctx context.Context, connectionID uuid.UUID) (map[domain.MappingStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM product_mappings WHERE connection_id = $1 GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		r.logger.Error("Failed to count mappings by status", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.MappingStatus]int)
	for rows.Next() {
		var status domain.MappingStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *productMappingRepository) CountErrored(ctx context.Context, connectionID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM product_mappings WHERE connection_id = $1 AND last_error IS NOT NULL AND status NOT IN ('REPLACED', 'UNSUPPORTED')`

	var count int
	if err := r.db.QueryRowContext(ctx, query, connectionID).Scan(&count); err != nil {
		r.logger.Error("Failed to count errored mappings", zap.Error(err))
		return 0, err
	}
	return count, nil
}

// CountMappedByShop counts mappings toward the mapped-product cap:
// materialized rows that are not REPLACED/UNSUPPORTED. PAUSED rows
// count, matching billing accounting; shadow rows do not.
func (r *productMappingRepository) CountMappedByShop(ctx context.Context, shop string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM product_mappings m
		JOIN connections c ON c.id = m.connection_id
		WHERE c.supplier_shop = $1
		  AND m.retailer_product_id IS NOT NULL
		  AND m.status NOT IN ('REPLACED', 'UNSUPPORTED')
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, shop).Scan(&count); err != nil {
		r.logger.Error("Failed to count mapped products", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *productMappingRepository) PauseAllForConnection(ctx context.Context, connectionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE product_mappings SET status = 'PAUSED', updated_at = $2 WHERE connection_id = $1 AND status = 'ACTIVE'`,
		connectionID, time.Now(),
	)
	if err != nil {
		r.logger.Error("Failed to pause mappings", zap.Error(err))
		return err
	}
	return nil
}
