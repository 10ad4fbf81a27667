package db

import (
	"context"
	"fmt"

	"voltbid-auction-service/internal/domain/shared"
)

// DeadLetterStore persists permanent refund failures so reconciliation
// tooling can query them later.
type DeadLetterStore struct {
	conn *Connection
}

// NewDeadLetterStore creates a new dead-letter store
func NewDeadLetterStore(conn *Connection) *DeadLetterStore {
	return &DeadLetterStore{conn: conn}
}

// RecordRefundFailure writes the durable dead-letter row
func (r *DeadLetterStore) RecordRefundFailure(ctx context.Context, f *shared.RefundFailure) error {
	query := `
		INSERT INTO refund_failures (id, auction_id, user_id, amount, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		f.ID,
		f.AuctionID,
		f.UserID,
		f.Amount,
		f.Attempts,
		f.LastError,
		f.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to record refund failure: %w", err)
	}

	return nil
}
