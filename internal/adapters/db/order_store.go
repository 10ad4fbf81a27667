package db

import (
	"context"
	"database/sql"
	"fmt"

	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// OrderStore is the Postgres adapter for deposit payment orders
type OrderStore struct {
	conn *Connection
}

// NewOrderStore creates a new order store
func NewOrderStore(conn *Connection) *OrderStore {
	return &OrderStore{conn: conn}
}

// CreateDeposit records a paid auction deposit
func (r *OrderStore) CreateDeposit(ctx context.Context, tx outbound.Tx, o *shared.DepositOrder) error {
	query := `
		INSERT INTO deposit_orders (id, product_id, user_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.on(tx).ExecContext(ctx, query,
		o.ID,
		o.ProductID,
		o.UserID,
		o.Amount,
		o.Status,
		o.CreatedAt,
		o.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create deposit order: %w", err)
	}

	return nil
}

// FindPaidDeposit locates a member's paid deposit order for refund
func (r *OrderStore) FindPaidDeposit(ctx context.Context, tx outbound.Tx, productID, userID uuid.UUID) (*shared.DepositOrder, error) {
	query := `
		SELECT id, product_id, user_id, amount, status, created_at, updated_at
		FROM deposit_orders
		WHERE product_id = $1 AND user_id = $2 AND status = 'paid'
		ORDER BY created_at DESC
		LIMIT 1
	`

	var o shared.DepositOrder
	err := r.conn.on(tx).QueryRowContext(ctx, query, productID, userID).Scan(
		&o.ID,
		&o.ProductID,
		&o.UserID,
		&o.Amount,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find paid deposit: %w", err)
	}

	return &o, nil
}

// MarkRefunded marks a deposit order refunded. The status guard keeps a
// retried refund from double-marking.
func (r *OrderStore) MarkRefunded(ctx context.Context, tx outbound.Tx, orderID uuid.UUID) error {
	query := `UPDATE deposit_orders SET status = 'refunded', updated_at = NOW() WHERE id = $1 AND status = 'paid'`

	result, err := r.conn.on(tx).ExecContext(ctx, query, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark deposit refunded: %w", err)
	}

	return requireRow(result, shared.ErrOrderNotFound)
}

// MarkApplied marks the winner's deposit as consumed by the sale
func (r *OrderStore) MarkApplied(ctx context.Context, tx outbound.Tx, orderID uuid.UUID) error {
	query := `UPDATE deposit_orders SET status = 'applied', updated_at = NOW() WHERE id = $1 AND status = 'paid'`

	result, err := r.conn.on(tx).ExecContext(ctx, query, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark deposit applied: %w", err)
	}

	return requireRow(result, shared.ErrOrderNotFound)
}
