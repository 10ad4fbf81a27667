package member

import (
	"time"

	"github.com/google/uuid"
)

// Member represents a user who paid the deposit for an auction. The
// (UserID, AuctionID) pair is unique and the row is never deleted: its
// existence is the proof of deposit used for bid authorization and for
// refund bookkeeping after close.
type Member struct {
	UserID    uuid.UUID `json:"user_id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidPrice  *int64    `json:"bid_price,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasBid returns true once the member has placed at least one bid
func (m *Member) HasBid() bool {
	return m.BidPrice != nil
}
