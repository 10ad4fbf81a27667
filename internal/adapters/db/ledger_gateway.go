package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// LedgerGateway is the Postgres-backed implementation of the balance
// gateway. Each movement updates the balance row and appends a ledger
// entry in the same statement pair, inside the caller's transaction when
// one is supplied.
type LedgerGateway struct {
	conn *Connection
}

// NewLedgerGateway creates a new ledger gateway
func NewLedgerGateway(conn *Connection) *LedgerGateway {
	return &LedgerGateway{conn: conn}
}

// Debit removes amount from the user's balance. The balance >= amount
// guard makes the check-and-debit a single atomic statement.
func (r *LedgerGateway) Debit(ctx context.Context, tx outbound.Tx, userID uuid.UUID, amount int64) (int64, error) {
	query := `
		UPDATE balances SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`

	var newBalance int64
	err := r.conn.on(tx).QueryRowContext(ctx, query, userID, amount).Scan(&newBalance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, shared.ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}

	if err := r.record(ctx, tx, userID, -amount); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// Credit adds amount to the user's balance
func (r *LedgerGateway) Credit(ctx context.Context, tx outbound.Tx, userID uuid.UUID, amount int64) (int64, error) {
	query := `
		UPDATE balances SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`

	var newBalance int64
	err := r.conn.on(tx).QueryRowContext(ctx, query, userID, amount).Scan(&newBalance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, shared.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to credit balance: %w", err)
	}

	if err := r.record(ctx, tx, userID, amount); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// record appends the ledger transaction entry for a movement
func (r *LedgerGateway) record(ctx context.Context, tx outbound.Tx, userID uuid.UUID, delta int64) error {
	query := `
		INSERT INTO ledger_entries (id, user_id, delta, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.conn.on(tx).ExecContext(ctx, query, uuid.New(), userID, delta, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	return nil
}
