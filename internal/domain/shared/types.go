package shared

import "github.com/google/uuid"

// SettlementResult represents the outcome of closing an auction
type SettlementResult struct {
	AuctionID    uuid.UUID
	WinnerID     *uuid.UUID
	WinningPrice *int64
	Reason       string
	AlreadyEnded bool
}
