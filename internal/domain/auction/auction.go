package auction

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current status of an auction
type Status string

const (
	StatusDraft     Status = "draft"
	StatusVerified  Status = "verified"
	StatusLive      Status = "live"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// CloseReason explains why an auction was closed
type CloseReason string

const (
	ReasonTargetReached   CloseReason = "target_reached"
	ReasonBuyNow          CloseReason = "buy_now"
	ReasonDurationExpired CloseReason = "duration_expired"
	ReasonForced          CloseReason = "forced"
)

// Auction represents a timed auction for a marketplace product.
// All prices are integer units of the host currency.
type Auction struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     uuid.UUID  `json:"product_id"`
	SellerID      uuid.UUID  `json:"seller_id"`
	StartingPrice int64      `json:"starting_price"`
	OriginalPrice int64      `json:"original_price"`
	TargetPrice   int64      `json:"target_price"`
	Step          int64      `json:"step"`
	Deposit       int64      `json:"deposit"`
	WinnerID      *uuid.UUID `json:"winner_id,omitempty"`
	WinningPrice  *int64     `json:"winning_price,omitempty"`
	Duration      int64      `json:"duration_seconds"`
	StartAt       *time.Time `json:"start_at,omitempty"`
	EndAt         *time.Time `json:"end_at,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CanTransition reports whether the lifecycle allows moving from the
// auction's current status to the given one. Transitions are strictly
// forward; ended and cancelled are terminal.
func (a *Auction) CanTransition(to Status) bool {
	switch a.Status {
	case StatusDraft:
		return to == StatusVerified || to == StatusCancelled
	case StatusVerified:
		return to == StatusLive
	case StatusLive:
		return to == StatusEnded
	default:
		return false
	}
}

// IsLive returns true if the auction is currently accepting bids
func (a *Auction) IsLive() bool {
	return a.Status == StatusLive
}

// IsTerminal returns true if the auction reached a final state
func (a *Auction) IsTerminal() bool {
	return a.Status == StatusEnded || a.Status == StatusCancelled
}

// CurrentPrice returns the committed winning price, or the starting
// price when no bid has been accepted yet.
func (a *Auction) CurrentPrice() int64 {
	if a.WinningPrice != nil {
		return *a.WinningPrice
	}
	return a.StartingPrice
}

// MeetsTarget reports whether the amount triggers an immediate close
func (a *Auction) MeetsTarget(amount int64) bool {
	return amount >= a.TargetPrice
}

// Deadline returns the instant the auction expires. The second return
// is false until the auction has been started.
func (a *Auction) Deadline() (time.Time, bool) {
	if a.StartAt == nil {
		return time.Time{}, false
	}
	return a.StartAt.Add(time.Duration(a.Duration) * time.Second), true
}

// Remaining returns the seconds left before expiry at the given instant,
// clamped at zero. The second return is false until the auction started.
func (a *Auction) Remaining(now time.Time) (int64, bool) {
	deadline, ok := a.Deadline()
	if !ok {
		return 0, false
	}
	left := int64(deadline.Sub(now) / time.Second)
	if left < 0 {
		left = 0
	}
	return left, true
}
