package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type metafieldDefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMetafieldDefinitionRepository creates a new metafield definition repository
func NewMetafieldDefinitionRepository(db *sql.DB, logger *zap.Logger) *metafieldDefinitionRepository {
	return &metafieldDefinitionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *metafieldDefinitionRepository) Create(ctx context.Context, shop, namespace, key, fieldType string) error {
	query := `
		INSERT INTO metafield_definitions (id, shop, namespace, key, field_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (shop, namespace, key) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, uuid.New(), shop, namespace, key, fieldType, time.Now())
	if err != nil {
		r.logger.Error("Failed to create metafield definition", zap.Error(err))
		return err
	}
	return nil
}

func (r *metafieldDefinitionRepository) CountByShop(ctx context.Context, shop string) (int, error) {
	query := `SELECT COUNT(*) FROM metafield_definitions WHERE shop = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, shop).Scan(&count); err != nil {
		r.logger.Error("Failed to count metafield definitions", zap.Error(err))
		return 0, err
	}
	return count, nil
}
