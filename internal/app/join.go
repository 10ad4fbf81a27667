package app

import (
	"context"
	"errors"
	"time"

	"voltbid-auction-service/internal/domain/member"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/inbound"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JoinService admits users into a live auction. The deposit debit, the
// paid-deposit order and the member row commit together, so the member
// row existing is always proof the deposit was taken.
type JoinService struct {
	txManager   outbound.TxManager
	auctionRepo outbound.AuctionRepository
	memberRepo  outbound.MemberRepository
	orderStore  outbound.OrderStore
	ledger      outbound.LedgerGateway
	countdown   outbound.Countdown
	broadcaster outbound.Broadcaster
	logger      zerolog.Logger
}

type JoinServiceParams struct {
	TxManager   outbound.TxManager
	AuctionRepo outbound.AuctionRepository
	MemberRepo  outbound.MemberRepository
	OrderStore  outbound.OrderStore
	Ledger      outbound.LedgerGateway
	Countdown   outbound.Countdown
	Broadcaster outbound.Broadcaster
	Logger      zerolog.Logger
}

// NewJoinService creates a new join service
func NewJoinService(params JoinServiceParams) *JoinService {
	return &JoinService{
		txManager:   params.TxManager,
		auctionRepo: params.AuctionRepo,
		memberRepo:  params.MemberRepo,
		orderStore:  params.OrderStore,
		ledger:      params.Ledger,
		countdown:   params.Countdown,
		broadcaster: params.Broadcaster,
		logger:      params.Logger.With().Str("component", "join_service").Logger(),
	}
}

// Join debits the deposit and creates the member row under the auction
// lock. Re-joining as an existing member is an idempotent success with
// no second debit.
func (service *JoinService) Join(ctx context.Context, req inbound.JoinRequest) (*inbound.JoinResult, error) {
	service.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("user_id", req.UserID.String()).
		Msg("Attempting to join auction")

	var result *inbound.JoinResult

	err := service.txManager.WithinTx(ctx, func(tx outbound.Tx) error {
		a, err := service.auctionRepo.GetForUpdate(ctx, tx, req.AuctionID)
		if err != nil {
			return err
		}

		if !a.IsLive() {
			return shared.ErrAuctionNotLive
		}

		_, err = service.memberRepo.Get(ctx, tx, req.AuctionID, req.UserID)
		if err == nil {
			result = &inbound.JoinResult{Auction: a, AlreadyMember: true}
			return nil
		}
		if !errors.Is(err, shared.ErrNotJoined) {
			return err
		}

		if _, err := service.ledger.Debit(ctx, tx, req.UserID, a.Deposit); err != nil {
			service.logger.Warn().Err(err).
				Str("user_id", req.UserID.String()).
				Int64("deposit", a.Deposit).
				Msg("Deposit debit failed")
			return err
		}

		now := time.Now()
		order := &shared.DepositOrder{
			ID:        uuid.New(),
			ProductID: a.ProductID,
			UserID:    req.UserID,
			Amount:    a.Deposit,
			Status:    shared.DepositPaid,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := service.orderStore.CreateDeposit(ctx, tx, order); err != nil {
			return err
		}

		m := &member.Member{
			UserID:    req.UserID,
			AuctionID: req.AuctionID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := service.memberRepo.Create(ctx, tx, m); err != nil {
			return err
		}

		result = &inbound.JoinResult{Auction: a}
		return nil
	})

	if err != nil {
		return nil, err
	}

	if remaining, ok := service.countdown.Remaining(req.AuctionID); ok {
		result.RemainingSeconds = remaining
	} else if r, ok := result.Auction.Remaining(time.Now()); ok {
		result.RemainingSeconds = r
	}

	if !result.AlreadyMember {
		event := outbound.Event{
			Type:      outbound.EventTypeUserJoined,
			AuctionID: req.AuctionID,
			Data: map[string]interface{}{
				"user_id":           req.UserID.String(),
				"remaining_seconds": result.RemainingSeconds,
			},
			Timestamp: time.Now().Unix(),
		}
		if err := service.broadcaster.Publish(ctx, req.AuctionID, event); err != nil {
			service.logger.Error().Err(err).Str("auction_id", req.AuctionID.String()).Msg("Failed to broadcast user joined")
		}
	}

	service.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("user_id", req.UserID.String()).
		Bool("already_member", result.AlreadyMember).
		Msg("User joined auction")

	return result, nil
}
