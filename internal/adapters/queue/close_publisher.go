package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"voltbid-auction-service/internal/config"
	"voltbid-auction-service/internal/domain/auction"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// CloseRequest is the post-commit event asking the settlement worker to
// close one auction. The auction id doubles as the Kafka key so all
// requests for an auction land on one partition, in order.
type CloseRequest struct {
	AuctionID   uuid.UUID           `json:"auction_id"`
	Reason      auction.CloseReason `json:"reason"`
	RequestedAt time.Time           `json:"requested_at"`
}

// Validate rejects malformed requests before the worker acts on them
func (r CloseRequest) Validate() error {
	if r.AuctionID == uuid.Nil {
		return fmt.Errorf("auction_id is required")
	}
	switch r.Reason {
	case auction.ReasonTargetReached, auction.ReasonBuyNow, auction.ReasonDurationExpired, auction.ReasonForced:
	default:
		return fmt.Errorf("unknown close reason %q", r.Reason)
	}
	return nil
}

// ClosePublisher writes close requests to the close-request topic
type ClosePublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

type ClosePublisherParams struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewClosePublisher creates a producer with delivery guarantees suited
// to money-bearing events: all-replica acks and bounded retries.
func NewClosePublisher(params ClosePublisherParams) *ClosePublisher {
	return &ClosePublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(params.Config.Kafka.Brokers...),
			Topic:        params.Config.Kafka.CloseTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: params.Logger.With().Str("component", "close_publisher").Logger(),
	}
}

// PublishClose emits a close request for the auction
func (p *ClosePublisher) PublishClose(ctx context.Context, auctionID uuid.UUID, reason auction.CloseReason) error {
	req := CloseRequest{
		AuctionID:   auctionID,
		Reason:      reason,
		RequestedAt: time.Now(),
	}

	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal close request: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(auctionID.String()),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish close request: %w", err)
	}

	p.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("reason", string(reason)).
		Msg("Close request published")
	return nil
}

// Close releases the writer
func (p *ClosePublisher) Close() error {
	return p.writer.Close()
}
