package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/pkg/errors"
)

type connectionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *sql.DB, logger *zap.Logger) *connectionRepository {
	return &connectionRepository{
		db:     db,
		logger: logger,
	}
}

const connectionColumns = `id, supplier_shop, retailer_shop, status, payment_terms_type, tier, api_key_hash, created_at, updated_at`

func scanConnection(scanner interface{ Scan(...interface{}) error }) (*domain.Connection, error) {
	var conn domain.Connection
	err := scanner.Scan(
		&conn.ID,
		&conn.SupplierShop,
		&conn.RetailerShop,
		&conn.Status,
		&conn.PaymentTermsType,
		&conn.Tier,
		&conn.APIKeyHash,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "connection", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get connection by ID", zap.Error(err))
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Connection, error) {
	// bcrypt hashes are salted, so there is no direct lookup; iterate
	// non-terminated connections and verify the key against each hash.
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE status != 'TERMINATED'`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query connections", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(conn.APIKeyHash), []byte(apiKey)); err == nil {
			return conn, nil
		}
	}

	return nil, &errors.ErrUnauthorized{Message: "invalid API key"}
}

func (r *connectionRepository) List(ctx context.Context) ([]*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list connections", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var conns []*domain.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

func (r *connectionRepository) Create(ctx context.Context, conn *domain.Connection) error {
	query := `
		INSERT INTO connections (id, supplier_shop, retailer_shop, status, payment_terms_type, tier, api_key_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	if conn.UpdatedAt.IsZero() {
		conn.UpdatedAt = now
	}
	if conn.Status == "" {
		conn.Status = domain.ConnectionStatusPendingInvite
	}

	_, err := r.db.ExecContext(ctx, query,
		conn.ID,
		conn.SupplierShop,
		conn.RetailerShop,
		conn.Status,
		conn.PaymentTermsType,
		conn.Tier,
		conn.APIKeyHash,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create connection", zap.Error(err))
		return err
	}
	return nil
}

func (r *connectionRepository) Update(ctx context.Context, conn *domain.Connection) error {
	query := `
		UPDATE connections
		SET supplier_shop = $2, retailer_shop = $3, status = $4, payment_terms_type = $5, tier = $6, api_key_hash = $7, updated_at = $8
		WHERE id = $1
	`

	conn.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		conn.ID,
		conn.SupplierShop,
		conn.RetailerShop,
		conn.Status,
		conn.PaymentTermsType,
		conn.Tier,
		conn.APIKeyHash,
		conn.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update connection", zap.Error(err))
		return err
	}
	return nil
}

// UpdateStatus transitions a connection. Illegal transitions are
// rejected; TERMINATED is a dead end. Terminating a connection cascades
// a soft-disable: all of its mappings are paused, none deleted.
func (r *connectionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ConnectionStatus) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !current.Status.CanTransitionTo(status) {
		return &errors.ErrInvalidStateTransition{From: string(current.Status), To: string(status)}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE connections SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now(),
	)
	if err != nil {
		r.logger.Error("Failed to update connection status", zap.Error(err))
		return err
	}

	if status == domain.ConnectionStatusTerminated {
		_, err = tx.ExecContext(ctx,
			`UPDATE product_mappings SET status = 'PAUSED', updated_at = $2 WHERE connection_id = $1 AND status = 'ACTIVE'`,
			id, time.Now(),
		)
		if err != nil {
			r.logger.Error("Failed to pause mappings for terminated connection", zap.Error(err))
			return err
		}
	}

	return tx.Commit()
}

func (r *connectionRepository) CountByShop(ctx context.Context, shop string) (int, error) {
	query := `SELECT COUNT(*) FROM connections WHERE supplier_shop = $1 AND status != 'TERMINATED'`

	var count int
	if err := r.db.QueryRowContext(ctx, query, shop).Scan(&count); err != nil {
		r.logger.Error("Failed to count connections", zap.Error(err))
		return 0, err
	}
	return count, nil
}
