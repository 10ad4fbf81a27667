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

// AuctionService implements the auction lifecycle use cases
type AuctionService struct {
	txManager    outbound.TxManager
	auctionRepo  outbound.AuctionRepository
	productStore outbound.ProductStore
	countdown    outbound.Countdown
	draftGrace   time.Duration
	logger       zerolog.Logger
}

type AuctionServiceParams struct {
	TxManager    outbound.TxManager
	AuctionRepo  outbound.AuctionRepository
	ProductStore outbound.ProductStore
	Countdown    outbound.Countdown
	DraftGrace   time.Duration
	Logger       zerolog.Logger
}

// NewAuctionService creates a new auction lifecycle service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	grace := params.DraftGrace
	if grace <= 0 {
		grace = 20 * 24 * time.Hour
	}
	return &AuctionService{
		txManager:    params.TxManager,
		auctionRepo:  params.AuctionRepo,
		productStore: params.ProductStore,
		countdown:    params.Countdown,
		draftGrace:   grace,
		logger:       params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// CreateAuction creates a new draft auction with its pricing terms
func (service *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	service.logger.Info().
		Str("product_id", req.ProductID.String()).
		Str("seller_id", req.SellerID.String()).
		Int64("starting_price", req.StartingPrice).
		Int64("target_price", req.TargetPrice).
		Msg("Creating draft auction")

	now := time.Now()
	a := &auction.Auction{
		ID:            uuid.New(),
		ProductID:     req.ProductID,
		SellerID:      req.SellerID,
		StartingPrice: req.StartingPrice,
		OriginalPrice: req.OriginalPrice,
		TargetPrice:   req.TargetPrice,
		Step:          req.Step,
		Deposit:       req.Deposit,
		Status:        auction.StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := service.auctionRepo.Create(ctx, a); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to save draft auction")
		return nil, err
	}

	service.logger.Info().Str("auction_id", a.ID.String()).Msg("Draft auction created")
	return a, nil
}

// VerifyAuction approves a draft and assigns its bidding window
func (service *AuctionService) VerifyAuction(ctx context.Context, auctionID uuid.UUID, durationSeconds int64) error {
	err := service.txManager.WithinTx(ctx, func(tx outbound.Tx) error {
		if _, err := service.auctionRepo.GetForUpdate(ctx, tx, auctionID); err != nil {
			return err
		}

		if err := service.auctionRepo.Transition(ctx, tx, auctionID, auction.StatusDraft, auction.StatusVerified); err != nil {
			return err
		}

		return service.auctionRepo.SetDuration(ctx, tx, auctionID, durationSeconds)
	})

	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to verify auction")
		return err
	}

	service.logger.Info().
		Str("auction_id", auctionID.String()).
		Int64("duration_seconds", durationSeconds).
		Msg("Auction verified")
	return nil
}

// StartAuction moves a verified auction live: start_at is stamped
// exactly once, the product is marked auctioning and the countdown is
// armed after commit.
func (service *AuctionService) StartAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	var started *auction.Auction

	err := service.txManager.WithinTx(ctx, func(tx outbound.Tx) error {
		a, err := service.auctionRepo.GetForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		startAt := time.Now()
		if err := service.auctionRepo.SetStarted(ctx, tx, auctionID, startAt); err != nil {
			return err
		}

		// Lock order: auction first, then product
		if _, err := service.productStore.GetForUpdate(ctx, tx, a.ProductID); err != nil {
			return err
		}
		if err := service.productStore.SetStatus(ctx, tx, a.ProductID, shared.ProductAuctioning); err != nil {
			return err
		}

		a.Status = auction.StatusLive
		a.StartAt = &startAt
		started = a
		return nil
	})

	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to start auction")
		return nil, err
	}

	service.countdown.Arm(started.ID, started.Duration)

	service.logger.Info().
		Str("auction_id", started.ID.String()).
		Int64("duration_seconds", started.Duration).
		Msg("Auction started")
	return started, nil
}

// GetAuction retrieves an auction by ID. Eventually consistent: never
// used to authorize a state change.
func (service *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	return service.auctionRepo.GetByID(ctx, auctionID)
}

// RemainingTime returns the seconds left on a live auction, preferring
// the in-memory countdown and falling back to the persisted schedule.
func (service *AuctionService) RemainingTime(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	if remaining, ok := service.countdown.Remaining(auctionID); ok {
		return remaining, nil
	}

	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return 0, err
	}

	if !a.IsLive() {
		return 0, shared.ErrAuctionNotLive
	}

	remaining, _ := a.Remaining(time.Now())
	return remaining, nil
}

// CancelExpiredDrafts cancels drafts older than the grace period, one
// lock-per-row transaction each. Re-running is harmless: only rows
// still in draft are touched.
func (service *AuctionService) CancelExpiredDrafts(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-service.draftGrace)

	ids, err := service.auctionRepo.ListExpiredDrafts(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		err := service.txManager.WithinTx(ctx, func(tx outbound.Tx) error {
			if _, err := service.auctionRepo.GetForUpdate(ctx, tx, id); err != nil {
				return err
			}
			return service.auctionRepo.Transition(ctx, tx, id, auction.StatusDraft, auction.StatusCancelled)
		})

		if err != nil {
			// A draft verified between listing and locking fails the
			// compare-and-set; skip it and keep sweeping.
			service.logger.Warn().Err(err).Str("auction_id", id.String()).Msg("Skipped draft during expiry sweep")
			continue
		}

		cancelled++
		service.logger.Info().Str("auction_id", id.String()).Msg("Expired draft cancelled")
	}

	return cancelled, nil
}
