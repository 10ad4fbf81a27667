package app

import (
	"context"
	"fmt"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/member"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SettlementEngine closes an auction exactly once and drives the
// post-close side effects. The ended transition commits alone, fast,
// under the row lock; everything heavier runs after commit off the
// already-committed winner facts.
type SettlementEngine struct {
	txManager    outbound.TxManager
	auctionRepo  outbound.AuctionRepository
	memberRepo   outbound.MemberRepository
	productStore outbound.ProductStore
	orderStore   outbound.OrderStore
	refunds      *RefundWorkflow
	countdown    outbound.Countdown
	notifier     outbound.NotificationEmitter
	broadcaster  outbound.Broadcaster
	logger       zerolog.Logger
}

type SettlementEngineParams struct {
	TxManager    outbound.TxManager
	AuctionRepo  outbound.AuctionRepository
	MemberRepo   outbound.MemberRepository
	ProductStore outbound.ProductStore
	OrderStore   outbound.OrderStore
	Refunds      *RefundWorkflow
	Countdown    outbound.Countdown
	Notifier     outbound.NotificationEmitter
	Broadcaster  outbound.Broadcaster
	Logger       zerolog.Logger
}

// NewSettlementEngine creates a new settlement engine
func NewSettlementEngine(params SettlementEngineParams) *SettlementEngine {
	return &SettlementEngine{
		txManager:    params.TxManager,
		auctionRepo:  params.AuctionRepo,
		memberRepo:   params.MemberRepo,
		productStore: params.ProductStore,
		orderStore:   params.OrderStore,
		refunds:      params.Refunds,
		countdown:    params.Countdown,
		notifier:     params.Notifier,
		broadcaster:  params.Broadcaster,
		logger:       params.Logger.With().Str("component", "settlement_engine").Logger(),
	}
}

// Close ends the auction and settles it. Safe to invoke from a bid
// trigger, a timer trigger and the reconciliation sweep concurrently:
// whichever commits the ended transition first wins, the rest observe
// the terminal status under lock and no-op.
func (engine *SettlementEngine) Close(ctx context.Context, auctionID uuid.UUID, reason auction.CloseReason) (*shared.SettlementResult, error) {
	engine.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("reason", string(reason)).
		Msg("Closing auction")

	var closed *auction.Auction

	err := engine.txManager.WithinTx(ctx, func(tx outbound.Tx) error {
		a, err := engine.auctionRepo.GetForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		if a.IsTerminal() {
			engine.logger.Info().
				Str("auction_id", auctionID.String()).
				Str("status", string(a.Status)).
				Msg("Auction already closed, nothing to do")
			return nil
		}

		if !a.IsLive() {
			return fmt.Errorf("close %s from %s: %w", auctionID, a.Status, shared.ErrInvalidTransition)
		}

		endAt := time.Now()
		if err := engine.auctionRepo.MarkEnded(ctx, tx, auctionID, endAt); err != nil {
			return err
		}

		a.Status = auction.StatusEnded
		a.EndAt = &endAt
		closed = a
		return nil
	})

	if err != nil {
		return nil, err
	}

	if closed == nil {
		return &shared.SettlementResult{AuctionID: auctionID, AlreadyEnded: true}, nil
	}

	// A bid-triggered close can race the countdown; discard it here so
	// it never fires for an auction that is already ended.
	engine.countdown.Cancel(auctionID)

	result := &shared.SettlementResult{
		AuctionID:    auctionID,
		WinnerID:     closed.WinnerID,
		WinningPrice: closed.WinningPrice,
		Reason:       string(reason),
	}

	// Side effects below run off committed, immutable facts. Their
	// failures are logged and recovered independently; the close stands.
	engine.settleOutcome(ctx, closed)
	engine.refundLosers(ctx, closed)
	engine.broadcastClosed(ctx, result)

	engine.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("reason", string(reason)).
		Bool("has_winner", closed.WinnerID != nil).
		Msg("Auction settled")

	return result, nil
}

// settleOutcome syncs the external product and order state with the
// auction outcome and notifies the parties.
func (engine *SettlementEngine) settleOutcome(ctx context.Context, a *auction.Auction) {
	if a.WinnerID == nil {
		if err := engine.productStore.SetStatus(ctx, nil, a.ProductID, shared.ProductAuctionFailed); err != nil {
			engine.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to mark product auction_failed")
		}
		engine.notify(ctx, a.SellerID, outbound.Notification{
			Kind:    "auction_no_winner",
			Message: "Your auction ended without a winning bid",
			Data:    map[string]interface{}{"auction_id": a.ID.String()},
		})
		return
	}

	if err := engine.productStore.SetStatus(ctx, nil, a.ProductID, shared.ProductAuctioned); err != nil {
		engine.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to mark product auctioned")
	}

	// The winner's deposit is consumed by the sale, not refunded
	if order, err := engine.orderStore.FindPaidDeposit(ctx, nil, a.ProductID, *a.WinnerID); err != nil {
		engine.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to find winner deposit order")
	} else if err := engine.orderStore.MarkApplied(ctx, nil, order.ID); err != nil {
		engine.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to apply winner deposit")
	}

	data := map[string]interface{}{
		"auction_id":    a.ID.String(),
		"winning_price": *a.WinningPrice,
	}
	engine.notify(ctx, a.SellerID, outbound.Notification{
		Kind:    "auction_sold",
		Message: "Your auction ended with a winning bid",
		Data:    data,
	})
	engine.notify(ctx, *a.WinnerID, outbound.Notification{
		Kind:    "auction_won",
		Message: "You won the auction",
		Data:    data,
	})
}

// refundLosers hands every member except the winner to the refund
// workflow with the fixed deposit amount.
func (engine *SettlementEngine) refundLosers(ctx context.Context, a *auction.Auction) {
	members, err := engine.memberRepo.ListByAuction(ctx, a.ID)
	if err != nil {
		engine.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to list members for refund")
		return
	}

	losers := make([]*member.Member, 0, len(members))
	for _, m := range members {
		if a.WinnerID != nil && m.UserID == *a.WinnerID {
			continue
		}
		losers = append(losers, m)
	}

	engine.refunds.RefundAll(ctx, a, losers)
}

func (engine *SettlementEngine) broadcastClosed(ctx context.Context, result *shared.SettlementResult) {
	data := map[string]interface{}{
		"reason": result.Reason,
	}
	if result.WinnerID != nil {
		data["winner_id"] = result.WinnerID.String()
	}
	if result.WinningPrice != nil {
		data["winning_price"] = *result.WinningPrice
	}

	event := outbound.Event{
		Type:      outbound.EventTypeAuctionClosed,
		AuctionID: result.AuctionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	if err := engine.broadcaster.Publish(ctx, result.AuctionID, event); err != nil {
		engine.logger.Error().Err(err).Str("auction_id", result.AuctionID.String()).Msg("Failed to broadcast auction closed")
	}
}

func (engine *SettlementEngine) notify(ctx context.Context, userID uuid.UUID, n outbound.Notification) {
	if err := engine.notifier.Notify(ctx, userID, n); err != nil {
		engine.logger.Error().Err(err).
			Str("user_id", userID.String()).
			Str("kind", n.Kind).
			Msg("Failed to deliver notification")
	}
}
