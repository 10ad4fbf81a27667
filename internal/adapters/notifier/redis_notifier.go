package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const adminChannel = "notify:admin"

// RedisNotifier hands user-facing and administrative notifications to
// the external delivery service over Redis channels. Delivery beyond
// the publish is the collaborator's problem.
type RedisNotifier struct {
	client *redis.Client
	logger zerolog.Logger
}

type RedisNotifierParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

// NewNotifier creates a new Redis-backed notification emitter
func NewNotifier(params RedisNotifierParams) *RedisNotifier {
	return &RedisNotifier{
		client: params.RedisClient,
		logger: params.Logger.With().Str("component", "redis_notifier").Logger(),
	}
}

// Notify publishes a notification on the user's channel
func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, payload outbound.Notification) error {
	channel := fmt.Sprintf("notify:user:%s", userID.String())
	return n.publish(ctx, channel, payload)
}

// NotifyAdmin raises an alert on the administrative channel
func (n *RedisNotifier) NotifyAdmin(ctx context.Context, payload outbound.Notification) error {
	return n.publish(ctx, adminChannel, payload)
}

func (n *RedisNotifier) publish(ctx context.Context, channel string, payload outbound.Notification) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := n.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.logger.Debug().
		Str("channel", channel).
		Str("kind", payload.Kind).
		Msg("Notification published")
	return nil
}
