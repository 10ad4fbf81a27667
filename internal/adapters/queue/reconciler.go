package queue

import (
	"context"
	"sync"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// Reconciler periodically re-publishes close requests for live auctions
// that should already be closing: past their deadline, or holding a
// winning price at or above target. It recovers a crash between a
// commit and its close-request publish; duplicates are absorbed by the
// settlement guard.
type Reconciler struct {
	auctionRepo outbound.AuctionRepository
	closePub    outbound.ClosePublisher
	interval    time.Duration
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ReconcilerParams struct {
	AuctionRepo outbound.AuctionRepository
	ClosePub    outbound.ClosePublisher
	Interval    time.Duration
	Logger      zerolog.Logger
}

// NewReconciler creates a new reconciliation sweep
func NewReconciler(params ReconcilerParams) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())

	interval := params.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Reconciler{
		auctionRepo: params.AuctionRepo,
		closePub:    params.ClosePub,
		interval:    interval,
		logger:      params.Logger.With().Str("component", "close_reconciler").Logger(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins the sweep loop
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go r.loop()
	r.logger.Info().Dur("interval", r.interval).Msg("Close reconciler started")
}

// Stop gracefully stops the sweep loop
func (r *Reconciler) Stop() {
	r.cancel()
	r.wg.Wait()
	r.logger.Info().Msg("Close reconciler stopped")
}

func (r *Reconciler) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.ctx.Done():
			return
		}
	}
}

// Sweep runs one reconciliation pass
func (r *Reconciler) sweep() {
	ids, err := r.auctionRepo.ListCloseEligible(r.ctx, time.Now())
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list close-eligible auctions")
		return
	}

	if len(ids) == 0 {
		return
	}

	r.logger.Info().Int("count", len(ids)).Msg("Re-publishing close requests for stranded auctions")

	for _, id := range ids {
		if err := r.closePub.PublishClose(r.ctx, id, auction.ReasonDurationExpired); err != nil {
			r.logger.Error().Err(err).Str("auction_id", id.String()).Msg("Failed to re-publish close request")
		}
	}
}
