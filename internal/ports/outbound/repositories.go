package outbound

import (
	"context"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/member"
	"voltbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// Tx is an opaque handle for a store transaction. Repository methods
// that take a Tx run inside it and see its row locks.
type Tx interface {
	Commit() error
	Rollback() error
}

// TxManager opens transactions for the lock-and-commit critical path
type TxManager interface {
	// WithinTx runs fn in a fresh transaction, committing on nil and
	// rolling back on error or panic.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// AuctionRepository defines the transactional auction data operations.
// Every mutating method requires the caller to hold the row lock taken
// by GetForUpdate in the same transaction.
type AuctionRepository interface {
	// Create creates a new draft auction
	Create(ctx context.Context, a *auction.Auction) error

	// GetByID is an unlocked read, never authoritative for decisions
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// GetForUpdate reads the auction under an exclusive row lock
	GetForUpdate(ctx context.Context, tx Tx, id uuid.UUID) (*auction.Auction, error)

	// ListByStatus retrieves all auctions in the given status
	ListByStatus(ctx context.Context, status auction.Status) ([]*auction.Auction, error)

	// ListExpiredDrafts returns ids of drafts created before the cutoff
	ListExpiredDrafts(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

	// ListCloseEligible returns ids of live auctions that are past their
	// deadline or already at/above target price, for reconciliation.
	ListCloseEligible(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// Transition moves the auction from one status to another, failing
	// with ErrInvalidTransition when the current status differs.
	Transition(ctx context.Context, tx Tx, id uuid.UUID, from, to auction.Status) error

	// SetDuration assigns the bidding window during verification
	SetDuration(ctx context.Context, tx Tx, id uuid.UUID, seconds int64) error

	// SetStarted moves verified->live and sets start_at exactly once
	SetStarted(ctx context.Context, tx Tx, id uuid.UUID, startAt time.Time) error

	// SetWinner records the current leading bid
	SetWinner(ctx context.Context, tx Tx, id, userID uuid.UUID, price int64) error

	// MarkEnded moves live->ended and sets end_at
	MarkEnded(ctx context.Context, tx Tx, id uuid.UUID, endAt time.Time) error
}

// MemberRepository defines auction membership data operations
type MemberRepository interface {
	// Create inserts a member row; existence proves the deposit was paid
	Create(ctx context.Context, tx Tx, m *member.Member) error

	// Get retrieves a member, ErrNotJoined when absent
	Get(ctx context.Context, tx Tx, auctionID, userID uuid.UUID) (*member.Member, error)

	// UpdateBidPrice records the member's latest accepted bid
	UpdateBidPrice(ctx context.Context, tx Tx, auctionID, userID uuid.UUID, price int64) error

	// ListByAuction returns every member of the auction
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*member.Member, error)
}

// DeadLetterStore persists permanent refund failures for manual
// reconciliation. A log line is not enough here.
type DeadLetterStore interface {
	RecordRefundFailure(ctx context.Context, f *shared.RefundFailure) error
}
