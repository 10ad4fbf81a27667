package outbound

import (
	"context"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// LedgerGateway performs atomic balance movements with transaction
// logging. When tx is non-nil the movement joins the caller's store
// transaction so a rollback undoes it.
type LedgerGateway interface {
	// Debit removes amount from the user's balance, returning the new
	// balance or ErrInsufficientFunds.
	Debit(ctx context.Context, tx Tx, userID uuid.UUID, amount int64) (int64, error)

	// Credit adds amount to the user's balance, returning the new balance
	Credit(ctx context.Context, tx Tx, userID uuid.UUID, amount int64) (int64, error)
}

// ProductStore reads and updates the external product a live auction
// sells. GetForUpdate must always be called after the auction row lock,
// never before, to keep the system-wide lock order.
type ProductStore interface {
	GetForUpdate(ctx context.Context, tx Tx, productID uuid.UUID) (*shared.Product, error)

	// SetStatus updates the product status; tx may be nil for the
	// post-close path that runs outside the auction lock.
	SetStatus(ctx context.Context, tx Tx, productID uuid.UUID, status shared.ProductStatus) error
}

// OrderStore tracks the external deposit/payment orders tied to an
// auction's product.
type OrderStore interface {
	CreateDeposit(ctx context.Context, tx Tx, o *shared.DepositOrder) error

	// FindPaidDeposit locates the member's paid deposit order
	FindPaidDeposit(ctx context.Context, tx Tx, productID, userID uuid.UUID) (*shared.DepositOrder, error)

	MarkRefunded(ctx context.Context, tx Tx, orderID uuid.UUID) error

	// MarkApplied marks the winner's deposit as consumed by the sale
	MarkApplied(ctx context.Context, tx Tx, orderID uuid.UUID) error
}

// Notification is a user-facing message payload
type Notification struct {
	Kind    string                 `json:"kind"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// NotificationEmitter delivers user-facing and administrative messages
type NotificationEmitter interface {
	Notify(ctx context.Context, userID uuid.UUID, n Notification) error

	// NotifyAdmin raises an alert on the administrative channel
	NotifyAdmin(ctx context.Context, n Notification) error
}

// ClosePublisher emits a post-commit close request consumed by the
// settlement worker.
type ClosePublisher interface {
	PublishClose(ctx context.Context, auctionID uuid.UUID, reason auction.CloseReason) error
}

// Countdown is the in-process per-auction timer the bidding path arms
// and the settlement path cancels. Never a source of truth.
type Countdown interface {
	Arm(auctionID uuid.UUID, remaining int64)
	Cancel(auctionID uuid.UUID)

	// Remaining returns the in-memory seconds left; ok is false when no
	// countdown is armed for the auction.
	Remaining(auctionID uuid.UUID) (seconds int64, ok bool)
}
