package app

import (
	"context"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/member"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefundWorkflow returns the deposit to every losing member after an
// auction closes. Each member is independent: a bounded number of
// attempts, each in a fresh transaction, then a durable dead-letter row
// plus an administrative alert. One member's permanent failure never
// blocks another's refund.
type RefundWorkflow struct {
	txManager   outbound.TxManager
	orderStore  outbound.OrderStore
	ledger      outbound.LedgerGateway
	deadLetters outbound.DeadLetterStore
	notifier    outbound.NotificationEmitter
	maxAttempts int
	logger      zerolog.Logger
}

type RefundWorkflowParams struct {
	TxManager   outbound.TxManager
	OrderStore  outbound.OrderStore
	Ledger      outbound.LedgerGateway
	DeadLetters outbound.DeadLetterStore
	Notifier    outbound.NotificationEmitter
	MaxAttempts int
	Logger      zerolog.Logger
}

// NewRefundWorkflow creates a new refund workflow
func NewRefundWorkflow(params RefundWorkflowParams) *RefundWorkflow {
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &RefundWorkflow{
		txManager:   params.TxManager,
		orderStore:  params.OrderStore,
		ledger:      params.Ledger,
		deadLetters: params.DeadLetters,
		notifier:    params.Notifier,
		maxAttempts: attempts,
		logger:      params.Logger.With().Str("component", "refund_workflow").Logger(),
	}
}

// RefundAll processes every losing member sequentially
func (w *RefundWorkflow) RefundAll(ctx context.Context, a *auction.Auction, losers []*member.Member) {
	for _, m := range losers {
		w.refundMember(ctx, a, m.UserID)
	}
}

// refundMember retries one member's refund up to the bound, then
// escalates to the dead letter.
func (w *RefundWorkflow) refundMember(ctx context.Context, a *auction.Auction, userID uuid.UUID) {
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		lastErr = w.attempt(ctx, a, userID)
		if lastErr == nil {
			w.logger.Info().
				Str("auction_id", a.ID.String()).
				Str("user_id", userID.String()).
				Int64("amount", a.Deposit).
				Int("attempt", attempt).
				Msg("Deposit refunded")

			w.notifyUser(ctx, a, userID)
			return
		}

		w.logger.Warn().Err(lastErr).
			Str("auction_id", a.ID.String()).
			Str("user_id", userID.String()).
			Int("attempt", attempt).
			Msg("Refund attempt failed")
	}

	w.escalate(ctx, a, userID, lastErr)
}

// attempt runs a single refund in its own transaction: locate the paid
// deposit order, credit the ledger, mark the order refunded. All three
// commit or roll back together.
func (w *RefundWorkflow) attempt(ctx context.Context, a *auction.Auction, userID uuid.UUID) error {
	return w.txManager.WithinTx(ctx, func(tx outbound.Tx) error {
		order, err := w.orderStore.FindPaidDeposit(ctx, tx, a.ProductID, userID)
		if err != nil {
			return err
		}

		if _, err := w.ledger.Credit(ctx, tx, userID, order.Amount); err != nil {
			return err
		}

		return w.orderStore.MarkRefunded(ctx, tx, order.ID)
	})
}

func (w *RefundWorkflow) notifyUser(ctx context.Context, a *auction.Auction, userID uuid.UUID) {
	err := w.notifier.Notify(ctx, userID, outbound.Notification{
		Kind:    "deposit_refunded",
		Message: "Your auction deposit has been refunded",
		Data: map[string]interface{}{
			"auction_id": a.ID.String(),
			"amount":     a.Deposit,
		},
	})
	if err != nil {
		// Refund already committed; the missing message is not retried
		w.logger.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to deliver refund notification")
	}
}

// escalate records the permanent failure durably and alerts the
// administrative channel for manual reconciliation.
func (w *RefundWorkflow) escalate(ctx context.Context, a *auction.Auction, userID uuid.UUID, cause error) {
	w.logger.Error().Err(cause).
		Str("auction_id", a.ID.String()).
		Str("user_id", userID.String()).
		Int64("amount", a.Deposit).
		Int("attempts", w.maxAttempts).
		Msg("Refund permanently failed")

	failure := &shared.RefundFailure{
		ID:        uuid.New(),
		AuctionID: a.ID,
		UserID:    userID,
		Amount:    a.Deposit,
		Attempts:  w.maxAttempts,
		LastError: cause.Error(),
		CreatedAt: time.Now(),
	}
	if err := w.deadLetters.RecordRefundFailure(ctx, failure); err != nil {
		w.logger.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to record refund dead letter")
	}

	err := w.notifier.NotifyAdmin(ctx, outbound.Notification{
		Kind:    "refund_failed",
		Message: "Deposit refund requires manual reconciliation",
		Data: map[string]interface{}{
			"auction_id": a.ID.String(),
			"user_id":    userID.String(),
			"amount":     a.Deposit,
			"last_error": cause.Error(),
		},
	})
	if err != nil {
		w.logger.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to alert admin channel")
	}
}
