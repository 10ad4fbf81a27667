package app

import (
	"context"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/inbound"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidService implements the bid and buy-now use cases. Both run the
// whole read-modify-write under the auction row lock, taking the
// product lock second, so no two bids ever clear the same price
// baseline.
type BidService struct {
	txManager    outbound.TxManager
	auctionRepo  outbound.AuctionRepository
	memberRepo   outbound.MemberRepository
	productStore outbound.ProductStore
	closePub     outbound.ClosePublisher
	broadcaster  outbound.Broadcaster
	logger       zerolog.Logger
}

type BidServiceParams struct {
	TxManager    outbound.TxManager
	AuctionRepo  outbound.AuctionRepository
	MemberRepo   outbound.MemberRepository
	ProductStore outbound.ProductStore
	ClosePub     outbound.ClosePublisher
	Broadcaster  outbound.Broadcaster
	Logger       zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	return &BidService{
		txManager:    params.TxManager,
		auctionRepo:  params.AuctionRepo,
		memberRepo:   params.MemberRepo,
		productStore: params.ProductStore,
		closePub:     params.ClosePub,
		broadcaster:  params.Broadcaster,
		logger:       params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid validates and applies a bid under the auction row lock
func (service *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*inbound.BidResult, error) {
	service.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("user_id", req.UserID.String()).
		Int64("amount", req.Amount).
		Msg("Attempting to place bid")

	var result *inbound.BidResult
	var reason auction.CloseReason

	err := service.txManager.WithinTx(ctx, func(tx outbound.Tx) error {
		a, err := service.lockAuctionAndProduct(ctx, tx, req.AuctionID)
		if err != nil {
			return err
		}

		if _, err := service.memberRepo.Get(ctx, tx, req.AuctionID, req.UserID); err != nil {
			return err
		}

		current := a.CurrentPrice()
		if req.Amount <= current {
			service.logger.Warn().
				Str("auction_id", req.AuctionID.String()).
				Int64("current_price", current).
				Int64("amount", req.Amount).
				Msg("Bid at or below current price")
			return shared.ErrBidTooLow
		}

		// Reaching the target price always bypasses the step rule
		if req.Amount < current+a.Step && req.Amount < a.TargetPrice {
			service.logger.Warn().
				Str("auction_id", req.AuctionID.String()).
				Int64("current_price", current).
				Int64("step", a.Step).
				Int64("amount", req.Amount).
				Msg("Bid below minimum increment")
			return shared.ErrBidBelowStep
		}

		if err := service.auctionRepo.SetWinner(ctx, tx, a.ID, req.UserID, req.Amount); err != nil {
			return err
		}

		if err := service.memberRepo.UpdateBidPrice(ctx, tx, a.ID, req.UserID, req.Amount); err != nil {
			return err
		}

		result = &inbound.BidResult{
			AuctionID:    a.ID,
			WinnerID:     req.UserID,
			WinningPrice: req.Amount,
			Closing:      a.MeetsTarget(req.Amount),
		}
		reason = auction.ReasonTargetReached
		return nil
	})

	if err != nil {
		return nil, err
	}

	service.afterCommit(ctx, result, reason)
	return result, nil
}

// BuyNow closes the auction at the target price for the caller
func (service *BidService) BuyNow(ctx context.Context, req inbound.BuyNowRequest) (*inbound.BidResult, error) {
	service.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("user_id", req.UserID.String()).
		Msg("Attempting buy-now")

	var result *inbound.BidResult

	err := service.txManager.WithinTx(ctx, func(tx outbound.Tx) error {
		a, err := service.lockAuctionAndProduct(ctx, tx, req.AuctionID)
		if err != nil {
			return err
		}

		if _, err := service.memberRepo.Get(ctx, tx, req.AuctionID, req.UserID); err != nil {
			return err
		}

		if err := service.auctionRepo.SetWinner(ctx, tx, a.ID, req.UserID, a.TargetPrice); err != nil {
			return err
		}

		if err := service.memberRepo.UpdateBidPrice(ctx, tx, a.ID, req.UserID, a.TargetPrice); err != nil {
			return err
		}

		result = &inbound.BidResult{
			AuctionID:    a.ID,
			WinnerID:     req.UserID,
			WinningPrice: a.TargetPrice,
			Closing:      true,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	service.afterCommit(ctx, result, auction.ReasonBuyNow)
	return result, nil
}

// lockAuctionAndProduct takes the auction lock, then the product lock,
// in that order system-wide, and runs the liveness cross-checks.
func (service *BidService) lockAuctionAndProduct(ctx context.Context, tx outbound.Tx, auctionID uuid.UUID) (*auction.Auction, error) {
	a, err := service.auctionRepo.GetForUpdate(ctx, tx, auctionID)
	if err != nil {
		return nil, err
	}

	if !a.IsLive() {
		return nil, shared.ErrAuctionNotLive
	}

	p, err := service.productStore.GetForUpdate(ctx, tx, a.ProductID)
	if err != nil {
		return nil, err
	}

	// Settlement may have moved the product on between reads
	if p.Status != shared.ProductAuctioning {
		service.logger.Warn().
			Str("auction_id", a.ID.String()).
			Str("product_status", string(p.Status)).
			Msg("Product no longer auctioning")
		return nil, shared.ErrProductNotAuctioning
	}

	return a, nil
}

// afterCommit broadcasts the accepted bid and, when the target was
// reached, publishes the close request. Never called before commit so a
// rolled-back bid is never announced.
func (service *BidService) afterCommit(ctx context.Context, result *inbound.BidResult, reason auction.CloseReason) {
	event := outbound.Event{
		Type:      outbound.EventTypeBidUpdate,
		AuctionID: result.AuctionID,
		Data: map[string]interface{}{
			"winner_id":     result.WinnerID.String(),
			"winning_price": result.WinningPrice,
		},
		Timestamp: time.Now().Unix(),
	}

	if err := service.broadcaster.Publish(ctx, result.AuctionID, event); err != nil {
		service.logger.Error().Err(err).Str("auction_id", result.AuctionID.String()).Msg("Failed to broadcast bid update")
	}

	if !result.Closing {
		return
	}

	if err := service.closePub.PublishClose(ctx, result.AuctionID, reason); err != nil {
		// The reconciliation sweep re-publishes requests for live
		// auctions at or above target, so a lost trigger is recovered.
		service.logger.Error().Err(err).
			Str("auction_id", result.AuctionID.String()).
			Str("reason", string(reason)).
			Msg("Failed to publish close request")
	}
}
