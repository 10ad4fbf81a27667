package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

const auctionColumns = `id, product_id, seller_id, starting_price, original_price, target_price,
	step, deposit, winner_id, winning_price, duration_seconds, start_at, end_at, status,
	created_at, updated_at`

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

// Create creates a new draft auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.ProductID,
		a.SellerID,
		a.StartingPrice,
		a.OriginalPrice,
		a.TargetPrice,
		a.Step,
		a.Deposit,
		a.WinnerID,
		a.WinningPrice,
		a.Duration,
		a.StartAt,
		a.EndAt,
		a.Status,
		a.CreatedAt,
		a.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

func scanAuction(row interface{ Scan(...interface{}) error }) (*auction.Auction, error) {
	var a auction.Auction
	err := row.Scan(
		&a.ID,
		&a.ProductID,
		&a.SellerID,
		&a.StartingPrice,
		&a.OriginalPrice,
		&a.TargetPrice,
		&a.Step,
		&a.Deposit,
		&a.WinnerID,
		&a.WinningPrice,
		&a.Duration,
		&a.StartAt,
		&a.EndAt,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an auction by ID without any lock. Callers must not
// base state-changing decisions on the result.
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

// GetForUpdate reads the auction under an exclusive row lock held until
// the surrounding transaction commits or rolls back.
func (r *AuctionRepository) GetForUpdate(ctx context.Context, tx outbound.Tx, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1 FOR UPDATE`

	a, err := scanAuction(r.conn.on(tx).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to lock auction: %w", err)
	}

	return a, nil
}

// ListByStatus retrieves all auctions in the given status
func (r *AuctionRepository) ListByStatus(ctx context.Context, status auction.Status) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 ORDER BY created_at DESC`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}

// ListExpiredDrafts returns ids of drafts created before the cutoff
func (r *AuctionRepository) ListExpiredDrafts(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	query := `SELECT id FROM auctions WHERE status = 'draft' AND created_at < $1`
	return r.listIDs(ctx, query, cutoff)
}

// ListCloseEligible returns ids of live auctions that are past their
// deadline or already carry a winning price at or above target. Used by
// the reconciliation sweep to recover lost close triggers.
func (r *AuctionRepository) ListCloseEligible(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM auctions
		WHERE status = 'live'
		  AND (start_at + duration_seconds * interval '1 second' <= $1
		       OR winning_price >= target_price)
	`
	return r.listIDs(ctx, query, now)
}

func (r *AuctionRepository) listIDs(ctx context.Context, query string, args ...interface{}) ([]uuid.UUID, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auction ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan auction id: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auction ids: %w", err)
	}

	return ids, nil
}

// Transition moves the auction between statuses with a compare-and-set
// on the current status. Zero rows affected means the precondition did
// not hold.
func (r *AuctionRepository) Transition(ctx context.Context, tx outbound.Tx, id uuid.UUID, from, to auction.Status) error {
	query := `UPDATE auctions SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	result, err := r.conn.on(tx).ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to transition auction: %w", err)
	}

	return requireRow(result, shared.ErrInvalidTransition)
}

// SetDuration assigns the bidding window during verification
func (r *AuctionRepository) SetDuration(ctx context.Context, tx outbound.Tx, id uuid.UUID, seconds int64) error {
	query := `UPDATE auctions SET duration_seconds = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.conn.on(tx).ExecContext(ctx, query, id, seconds)
	if err != nil {
		return fmt.Errorf("failed to set auction duration: %w", err)
	}

	return requireRow(result, shared.ErrAuctionNotFound)
}

// SetStarted moves verified->live and stamps start_at. The start_at IS
// NULL guard makes the start monotonic even under a double request.
func (r *AuctionRepository) SetStarted(ctx context.Context, tx outbound.Tx, id uuid.UUID, startAt time.Time) error {
	query := `
		UPDATE auctions SET status = 'live', start_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'verified' AND start_at IS NULL
	`

	result, err := r.conn.on(tx).ExecContext(ctx, query, id, startAt)
	if err != nil {
		return fmt.Errorf("failed to start auction: %w", err)
	}

	return requireRow(result, shared.ErrInvalidTransition)
}

// SetWinner records the current leading bid
func (r *AuctionRepository) SetWinner(ctx context.Context, tx outbound.Tx, id, userID uuid.UUID, price int64) error {
	query := `UPDATE auctions SET winner_id = $2, winning_price = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.conn.on(tx).ExecContext(ctx, query, id, userID, price)
	if err != nil {
		return fmt.Errorf("failed to set auction winner: %w", err)
	}

	return requireRow(result, shared.ErrAuctionNotFound)
}

// MarkEnded moves live->ended and stamps end_at
func (r *AuctionRepository) MarkEnded(ctx context.Context, tx outbound.Tx, id uuid.UUID, endAt time.Time) error {
	query := `
		UPDATE auctions SET status = 'ended', end_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'live'
	`

	result, err := r.conn.on(tx).ExecContext(ctx, query, id, endAt)
	if err != nil {
		return fmt.Errorf("failed to end auction: %w", err)
	}

	return requireRow(result, shared.ErrInvalidTransition)
}

func requireRow(result sql.Result, sentinel error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return sentinel
	}

	return nil
}
