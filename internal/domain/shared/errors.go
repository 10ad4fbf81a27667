package shared

import "errors"

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionNotLive    = errors.New("auction is not live")
	ErrAuctionEnded      = errors.New("auction already ended")
	ErrInvalidTransition = errors.New("invalid auction status transition")

	// Bid errors
	ErrNotJoined    = errors.New("deposit required before bidding")
	ErrBidTooLow    = errors.New("bid must be higher than the current price")
	ErrBidBelowStep = errors.New("bid must clear the minimum increment")

	// Membership errors
	ErrAlreadyJoined = errors.New("user already joined this auction")

	// Collaborator errors
	ErrProductNotFound      = errors.New("product not found")
	ErrProductNotAuctioning = errors.New("product is not in auctioning state")
	ErrOrderNotFound        = errors.New("deposit order not found")
	ErrInsufficientFunds    = errors.New("insufficient balance")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Database errors
	ErrDatabaseConnection  = errors.New("database connection failed")
	ErrDatabaseTransaction = errors.New("database transaction failed")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrAuctionIDRequired   = errors.New("auction_id is required")
	ErrInvalidAmount       = errors.New("valid amount is required")
	ErrUnknownMessageType  = errors.New("unknown message type")

	// Broadcasting errors
	ErrBroadcastFailed = errors.New("broadcast failed")

	// WebSocket handler specific errors
	ErrClientEventChannelNotFound = errors.New("client event channel not found")
)

// IsValidationError reports whether err is a user-facing rejection that
// must never be retried automatically.
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrAuctionNotFound),
		errors.Is(err, ErrAuctionNotLive),
		errors.Is(err, ErrAuctionEnded),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNotJoined),
		errors.Is(err, ErrBidTooLow),
		errors.Is(err, ErrBidBelowStep),
		errors.Is(err, ErrProductNotAuctioning),
		errors.Is(err, ErrInsufficientFunds):
		return true
	}
	return false
}
