package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/repository"
)

// NewRepositories wires all postgres repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Connection:          NewConnectionRepository(db, logger),
		ProductMapping:      NewProductMappingRepository(db, logger),
		VariantMapping:      NewVariantMappingRepository(db, logger),
		ForwardedOrder:      NewForwardedOrderRepository(db, logger),
		MetafieldDefinition: NewMetafieldDefinitionRepository(db, logger),
	}
}
