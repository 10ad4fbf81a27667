package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster fans auction-room events out over Redis pub/sub so
// every service instance delivers bid, time and close updates to its
// own connected clients.
type RedisBroadcaster struct {
	client        *redis.Client
	subscribers   map[string]chan outbound.Event // clientID -> local channel
	pubsubs       map[string]*redis.PubSub       // clientID -> pubsub instance
	clientToRooms map[string]map[string]bool     // clientID -> auctionID -> subscribed
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	logger        zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:        params.RedisClient,
		subscribers:   make(map[string]chan outbound.Event),
		pubsubs:       make(map[string]*redis.PubSub),
		clientToRooms: make(map[string]map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
		logger:        params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

func roomChannel(auctionID uuid.UUID) string {
	return fmt.Sprintf("auction:%s", auctionID.String())
}

// Subscribe adds a client to an auction room. All of one client's rooms
// deliver into the same local channel.
func (r *RedisBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clientToRooms[clientID] != nil && r.clientToRooms[clientID][auctionID.String()] {
		return nil
	}

	if r.subscribers[clientID] == nil {
		r.subscribers[clientID] = eventChan
	}

	if r.clientToRooms[clientID] == nil {
		r.clientToRooms[clientID] = make(map[string]bool)
	}
	r.clientToRooms[clientID][auctionID.String()] = true

	pubsub, exists := r.pubsubs[clientID]
	if !exists {
		pubsub = r.client.Subscribe(ctx)
		r.pubsubs[clientID] = pubsub
		go r.forwardRedisMessages(pubsub, clientID, eventChan)
	}

	if err := pubsub.Subscribe(ctx, roomChannel(auctionID)); err != nil {
		r.logger.Error().Err(err).
			Str("client_id", clientID).
			Str("auction_id", auctionID.String()).
			Msg("Failed to subscribe to room channel")
		return err
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("auction_id", auctionID.String()).
		Msg("Client subscribed to auction room")
	return nil
}

// Unsubscribe removes a client from an auction room, tearing down its
// pubsub connection once it leaves the last room.
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, exists := r.clientToRooms[clientID]
	if !exists {
		return nil
	}

	delete(rooms, auctionID.String())

	if len(rooms) > 0 {
		if pubsub, ok := r.pubsubs[clientID]; ok {
			if err := pubsub.Unsubscribe(ctx, roomChannel(auctionID)); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error unsubscribing from room channel")
			}
		}
	} else {
		delete(r.clientToRooms, clientID)

		if eventChan, ok := r.subscribers[clientID]; ok {
			close(eventChan)
			delete(r.subscribers, clientID)
		}

		if pubsub, ok := r.pubsubs[clientID]; ok {
			if err := pubsub.Close(); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing pubsub for client")
			}
			delete(r.pubsubs, clientID)
		}
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("auction_id", auctionID.String()).
		Msg("Client unsubscribed from auction room")
	return nil
}

// Publish fans an event out to every subscriber of the auction room
func (r *RedisBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, roomChannel(auctionID), eventJSON)
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("auction_id", auctionID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Event published to auction room")

	return nil
}

// IsSubscribed checks if a client is in an auction room
func (r *RedisBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms, exists := r.clientToRooms[clientID]
	if !exists {
		return false
	}

	return rooms[auctionID.String()]
}

// forwardRedisMessages moves Redis messages onto the client's local
// channel, dropping events when the client cannot keep up.
func (r *RedisBroadcaster) forwardRedisMessages(pubsub *redis.PubSub, clientID string, localChan chan outbound.Event) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("client_id", clientID).Msg("Redis forwarder panic")
		}
	}()

	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal room event")
				continue
			}

			select {
			case localChan <- event:
			default:
				r.logger.Warn().Str("client_id", clientID).Msg("Local channel full, dropping event")
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// Close tears down every subscription and the Redis connection
func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID, eventChan := range r.subscribers {
		close(eventChan)
		delete(r.subscribers, clientID)
	}

	for clientID, pubsub := range r.pubsubs {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing pubsub for client")
		}
		delete(r.pubsubs, clientID)
	}

	return r.client.Close()
}
