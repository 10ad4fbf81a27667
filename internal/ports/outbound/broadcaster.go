package outbound

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeUserJoined    EventType = "user.joined"
	EventTypeBidUpdate     EventType = "bid.update"
	EventTypeTimeUpdate    EventType = "time.update"
	EventTypeAuctionClosed EventType = "auction.closed"
	EventTypeError         EventType = "error"
)

// Event represents a broadcast event for one auction room
type Event struct {
	Type      EventType              `json:"type"`
	AuctionID uuid.UUID              `json:"auction_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Broadcaster defines the interface for fanning events out to every
// subscriber of an auction room, across process instances.
type Broadcaster interface {
	// Subscribe subscribes a client to events for a specific auction.
	// All of a client's auctions deliver into the same channel.
	Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan Event) error

	// Unsubscribe removes a client from an auction room
	Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error

	// Publish publishes an event to all subscribers of an auction
	Publish(ctx context.Context, auctionID uuid.UUID, event Event) error

	// IsSubscribed checks if a client is subscribed to an auction
	IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool
}
