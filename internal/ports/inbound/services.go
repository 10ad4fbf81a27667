package inbound

import (
	"context"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionService defines the auction lifecycle operations
type AuctionService interface {
	// CreateAuction creates a new draft auction
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// VerifyAuction approves a draft and assigns its bidding window
	VerifyAuction(ctx context.Context, auctionID uuid.UUID, durationSeconds int64) error

	// StartAuction moves a verified auction live and arms its countdown
	StartAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// GetAuction retrieves an auction by ID (eventually consistent read)
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// RemainingTime returns the seconds left on a live auction
	RemainingTime(ctx context.Context, auctionID uuid.UUID) (int64, error)

	// CancelExpiredDrafts cancels drafts older than the grace period and
	// returns how many rows it touched. Safe to re-run.
	CancelExpiredDrafts(ctx context.Context) (int, error)
}

// JoinService admits deposit-paying users into an auction
type JoinService interface {
	Join(ctx context.Context, req JoinRequest) (*JoinResult, error)
}

// BidService defines the bid and buy-now operations
type BidService interface {
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*BidResult, error)
	BuyNow(ctx context.Context, req BuyNowRequest) (*BidResult, error)
}

// SettlementService closes an auction exactly once and drives the
// post-close side effects.
type SettlementService interface {
	Close(ctx context.Context, auctionID uuid.UUID, reason auction.CloseReason) (*shared.SettlementResult, error)
}

// CreateAuctionRequest carries the pricing terms of a new draft
type CreateAuctionRequest struct {
	ProductID     uuid.UUID `json:"product_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	StartingPrice int64     `json:"starting_price"`
	OriginalPrice int64     `json:"original_price"`
	TargetPrice   int64     `json:"target_price"`
	Step          int64     `json:"step"`
	Deposit       int64     `json:"deposit"`
}

// JoinRequest identifies the depositing user
type JoinRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// JoinResult is returned to a successfully joined user
type JoinResult struct {
	Auction          *auction.Auction `json:"auction"`
	RemainingSeconds int64            `json:"remaining_seconds"`
	AlreadyMember    bool             `json:"already_member"`
}

// PlaceBidRequest carries a bid over the wire
type PlaceBidRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"`
}

// BuyNowRequest exercises the buy-now price
type BuyNowRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// BidResult reports the committed state after a bid or buy-now
type BidResult struct {
	AuctionID    uuid.UUID `json:"auction_id"`
	WinnerID     uuid.UUID `json:"winner_id"`
	WinningPrice int64     `json:"winning_price"`
	Closing      bool      `json:"closing"`
}
