package db

import (
	"context"
	"database/sql"
	"fmt"

	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// ProductStore is the Postgres adapter for the marketplace products the
// auction engine cross-checks and transitions.
type ProductStore struct {
	conn *Connection
}

// NewProductStore creates a new product store
func NewProductStore(conn *Connection) *ProductStore {
	return &ProductStore{conn: conn}
}

// GetForUpdate reads the product under an exclusive row lock. Always
// taken after the auction lock, never before.
func (r *ProductStore) GetForUpdate(ctx context.Context, tx outbound.Tx, productID uuid.UUID) (*shared.Product, error) {
	query := `
		SELECT id, seller_id, name, price, status, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`

	var p shared.Product
	err := r.conn.on(tx).QueryRowContext(ctx, query, productID).Scan(
		&p.ID,
		&p.SellerID,
		&p.Name,
		&p.Price,
		&p.Status,
		&p.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	return &p, nil
}

// SetStatus updates the product status
func (r *ProductStore) SetStatus(ctx context.Context, tx outbound.Tx, productID uuid.UUID, status shared.ProductStatus) error {
	query := `UPDATE products SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.conn.on(tx).ExecContext(ctx, query, productID, status)
	if err != nil {
		return fmt.Errorf("failed to set product status: %w", err)
	}

	return requireRow(result, shared.ErrProductNotFound)
}
