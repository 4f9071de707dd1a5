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

type variantMappingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVariantMappingRepository creates a new variant mapping repository
func NewVariantMappingRepository(db *sql.DB, logger *zap.Logger) *variantMappingRepository {
	return &variantMappingRepository{
		db:     db,
		logger: logger,
	}
}

const variantColumns = `id, product_mapping_id, supplier_variant_id, retailer_variant_id, supplier_options, retailer_options, manually_mapped, created_at, updated_at`

func scanVariantMapping(scanner interface{ Scan(...interface{}) error }) (*domain.VariantMapping, error) {
	var m domain.VariantMapping
	var retailerVariantID sql.NullString
	var supplierOptions, retailerOptions []byte

	err := scanner.Scan(
		&m.ID,
		&m.ProductMappingID,
		&m.SupplierVariantID,
		&retailerVariantID,
		&supplierOptions,
		&retailerOptions,
		&m.ManuallyMapped,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if retailerVariantID.Valid {
		m.RetailerVariantID = &retailerVariantID.String
	}
	if len(supplierOptions) > 0 {
		if err := json.Unmarshal(supplierOptions, &m.SupplierOptions); err != nil {
			return nil, err
		}
	}
	if len(retailerOptions) > 0 {
		if err := json.Unmarshal(retailerOptions, &m.RetailerOptions); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func (r *variantMappingRepository) ListByProductMapping(ctx context.Context, productMappingID uuid.UUID) ([]*domain.VariantMapping, error) {
	query := `SELECT ` + variantColumns + ` FROM variant_mappings WHERE product_mapping_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, productMappingID)
	if err != nil {
		r.logger.Error("Failed to list variant mappings", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var mappings []*domain.VariantMapping
	for rows.Next() {
		m, err := scanVariantMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// Upsert writes an auto-matched variant link. A row a human confirmed
// (manually_mapped) is left untouched: manual always wins over
// auto-match on subsequent runs.
func (r *variantMappingRepository) Upsert(ctx context.Context, mapping *domain.VariantMapping) error {
	query := `
		INSERT INTO variant_mappings (id, product_mapping_id, supplier_variant_id, retailer_variant_id, supplier_options, retailer_options, manually_mapped, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_mapping_id, supplier_variant_id) DO UPDATE
		SET retailer_variant_id = EXCLUDED.retailer_variant_id,
		    supplier_options = EXCLUDED.supplier_options,
		    retailer_options = EXCLUDED.retailer_options,
		    updated_at = EXCLUDED.updated_at
		WHERE variant_mappings.manually_mapped = FALSE
	`

	now := time.Now()
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = now
	}
	mapping.UpdatedAt = now

	supplierOptions, err := json.Marshal(mapping.SupplierOptions)
	if err != nil {
		return err
	}
	retailerOptions, err := json.Marshal(mapping.RetailerOptions)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		mapping.ID,
		mapping.ProductMappingID,
		mapping.SupplierVariantID,
		mapping.RetailerVariantID,
		supplierOptions,
		retailerOptions,
		mapping.ManuallyMapped,
		mapping.CreatedAt,
		mapping.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert variant mapping", zap.Error(err))
		return err
	}
	return nil
}

// SetManual records a human-confirmed link. The manual flag is sticky
// until explicitly cleared.
func (r *variantMappingRepository) SetManual(ctx context.Context, productMappingID uuid.UUID, supplierVariantID, retailerVariantID string) error {
	query := `
		INSERT INTO variant_mappings (id, product_mapping_id, supplier_variant_id, retailer_variant_id, supplier_options, retailer_options, manually_mapped, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '{}', '{}', TRUE, $5, $5)
		ON CONFLICT (product_mapping_id, supplier_variant_id) DO UPDATE
		SET retailer_variant_id = EXCLUDED.retailer_variant_id,
		    manually_mapped = TRUE,
		    updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		uuid.New(),
		productMappingID,
		supplierVariantID,
		retailerVariantID,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to set manual variant mapping", zap.Error(err))
		return err
	}
	return nil
}

func (r *variantMappingRepository) ClearManual(ctx context.Context, productMappingID uuid.UUID, supplierVariantID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE variant_mappings SET manually_mapped = FALSE, updated_at = $3 WHERE product_mapping_id = $1 AND supplier_variant_id = $2`,
		productMappingID, supplierVariantID, time.Now(),
	)
	if err != nil {
		r.logger.Error("Failed to clear manual flag", zap.Error(err))
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return &errors.ErrNotFound{Resource: "variant_mapping", ID: supplierVariantID}
	}
	return nil
}
