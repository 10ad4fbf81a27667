package db

import (
	"context"
	"database/sql"
	"fmt"

	"voltbid-auction-service/internal/domain/member"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// MemberRepository implements the auction membership repository
type MemberRepository struct {
	conn *Connection
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(conn *Connection) *MemberRepository {
	return &MemberRepository{conn: conn}
}

// Create inserts a member row. The (user_id, auction_id) unique
// constraint rejects a double join at the store level too.
func (r *MemberRepository) Create(ctx context.Context, tx outbound.Tx, m *member.Member) error {
	query := `
		INSERT INTO auction_members (user_id, auction_id, bid_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.conn.on(tx).ExecContext(ctx, query,
		m.UserID,
		m.AuctionID,
		m.BidPrice,
		m.CreatedAt,
		m.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create auction member: %w", err)
	}

	return nil
}

// Get retrieves a member row, ErrNotJoined when absent
func (r *MemberRepository) Get(ctx context.Context, tx outbound.Tx, auctionID, userID uuid.UUID) (*member.Member, error) {
	query := `
		SELECT user_id, auction_id, bid_price, created_at, updated_at
		FROM auction_members
		WHERE auction_id = $1 AND user_id = $2
	`

	var m member.Member
	err := r.conn.on(tx).QueryRowContext(ctx, query, auctionID, userID).Scan(
		&m.UserID,
		&m.AuctionID,
		&m.BidPrice,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNotJoined
		}
		return nil, fmt.Errorf("failed to get auction member: %w", err)
	}

	return &m, nil
}

// UpdateBidPrice records the member's latest accepted bid
func (r *MemberRepository) UpdateBidPrice(ctx context.Context, tx outbound.Tx, auctionID, userID uuid.UUID, price int64) error {
	query := `
		UPDATE auction_members SET bid_price = $3, updated_at = NOW()
		WHERE auction_id = $1 AND user_id = $2
	`

	result, err := r.conn.on(tx).ExecContext(ctx, query, auctionID, userID, price)
	if err != nil {
		return fmt.Errorf("failed to update member bid price: %w", err)
	}

	return requireRow(result, shared.ErrNotJoined)
}

// ListByAuction returns every member of the auction, read after close to
// compute the refund recipient set.
func (r *MemberRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*member.Member, error) {
	query := `
		SELECT user_id, auction_id, bid_price, created_at, updated_at
		FROM auction_members
		WHERE auction_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list auction members: %w", err)
	}
	defer rows.Close()

	var members []*member.Member
	for rows.Next() {
		var m member.Member
		err := rows.Scan(
			&m.UserID,
			&m.AuctionID,
			&m.BidPrice,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction member: %w", err)
		}
		members = append(members, &m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auction members: %w", err)
	}

	return members, nil
}
