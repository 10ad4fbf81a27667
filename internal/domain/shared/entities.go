package shared

import (
	"time"

	"github.com/google/uuid"
)

// ProductStatus mirrors the marketplace product lifecycle the auction
// engine cares about. Only the auction-relevant states are modeled.
type ProductStatus string

const (
	ProductListed        ProductStatus = "listed"
	ProductAuctioning    ProductStatus = "auctioning"
	ProductAuctioned     ProductStatus = "auctioned"
	ProductAuctionFailed ProductStatus = "auction_failed"
)

// Product is the external marketplace listing an auction sells.
// Read and updated through the ProductStore port, never owned here.
type Product struct {
	ID        uuid.UUID     `json:"id"`
	SellerID  uuid.UUID     `json:"seller_id"`
	Name      string        `json:"name"`
	Price     int64         `json:"price"`
	Status    ProductStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DepositOrderStatus tracks a paid auction deposit through refund
type DepositOrderStatus string

const (
	DepositPaid     DepositOrderStatus = "paid"
	DepositRefunded DepositOrderStatus = "refunded"
	DepositApplied  DepositOrderStatus = "applied"
)

// DepositOrder is the payment record created when a user pays the
// auction deposit. Located during refund by (product, user).
type DepositOrder struct {
	ID        uuid.UUID          `json:"id"`
	ProductID uuid.UUID          `json:"product_id"`
	UserID    uuid.UUID          `json:"user_id"`
	Amount    int64              `json:"amount"`
	Status    DepositOrderStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// RefundFailure is the durable dead-letter record written after the
// refund workflow exhausts its attempts for one member.
type RefundFailure struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
}
