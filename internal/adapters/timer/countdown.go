package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scheduler owns one in-memory countdown per live auction. It is a
// derived cache over the persisted rows and only ever a trigger: every
// expiry goes through the same lock-guarded settlement path as a
// bid-triggered close, so the persisted status stays authoritative.
type Scheduler struct {
	auctionRepo outbound.AuctionRepository
	closePub    outbound.ClosePublisher
	broadcaster outbound.Broadcaster
	logger      zerolog.Logger

	tick    time.Duration
	window  int64
	modulus int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	countdowns map[uuid.UUID]*countdown
}

// countdown is a single auction's ticking state
type countdown struct {
	remaining atomic.Int64
	stop      chan struct{}
	stopOnce  sync.Once
}

func (c *countdown) discard() {
	c.stopOnce.Do(func() { close(c.stop) })
}

type SchedulerParams struct {
	AuctionRepo outbound.AuctionRepository
	ClosePub    outbound.ClosePublisher
	Broadcaster outbound.Broadcaster
	Logger      zerolog.Logger

	// TickInterval defaults to one second; tests shorten it
	TickInterval time.Duration
	// BroadcastWindow is the remaining-seconds threshold under which
	// every tick broadcasts; BroadcastModulus spaces broadcasts above it
	BroadcastWindow  int64
	BroadcastModulus int64
}

// NewScheduler creates a new countdown scheduler
func NewScheduler(params SchedulerParams) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	tick := params.TickInterval
	if tick <= 0 {
		tick = time.Second
	}
	window := params.BroadcastWindow
	if window <= 0 {
		window = 60
	}
	modulus := params.BroadcastModulus
	if modulus <= 0 {
		modulus = 10
	}

	return &Scheduler{
		auctionRepo: params.AuctionRepo,
		closePub:    params.ClosePub,
		broadcaster: params.Broadcaster,
		logger:      params.Logger.With().Str("component", "countdown_scheduler").Logger(),
		tick:        tick,
		window:      window,
		modulus:     modulus,
		ctx:         ctx,
		cancel:      cancel,
		countdowns:  make(map[uuid.UUID]*countdown),
	}
}

// Arm starts (or restarts) the countdown for an auction
func (s *Scheduler) Arm(auctionID uuid.UUID, remaining int64) {
	s.mu.Lock()
	if existing, ok := s.countdowns[auctionID]; ok {
		existing.discard()
	}

	cd := &countdown{stop: make(chan struct{})}
	cd.remaining.Store(remaining)
	s.countdowns[auctionID] = cd
	s.mu.Unlock()

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Int64("remaining_seconds", remaining).
		Msg("Countdown armed")

	s.wg.Add(1)
	go s.run(auctionID, cd, remaining)
}

// Cancel discards the countdown for an auction, if any
func (s *Scheduler) Cancel(auctionID uuid.UUID) {
	s.mu.Lock()
	cd, ok := s.countdowns[auctionID]
	if ok {
		delete(s.countdowns, auctionID)
	}
	s.mu.Unlock()

	if ok {
		cd.discard()
		s.logger.Debug().Str("auction_id", auctionID.String()).Msg("Countdown cancelled")
	}
}

// Remaining returns the in-memory seconds left for an armed countdown
func (s *Scheduler) Remaining(auctionID uuid.UUID) (int64, bool) {
	s.mu.Lock()
	cd, ok := s.countdowns[auctionID]
	s.mu.Unlock()

	if !ok {
		return 0, false
	}
	return cd.remaining.Load(), true
}

// Rehydrate arms a countdown for every persisted live auction,
// recomputing the remainder from start_at + duration. Auctions already
// past their deadline are closed immediately.
func (s *Scheduler) Rehydrate(ctx context.Context) error {
	live, err := s.auctionRepo.ListByStatus(ctx, auction.StatusLive)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, a := range live {
		remaining, ok := a.Remaining(now)
		if !ok {
			s.logger.Warn().Str("auction_id", a.ID.String()).Msg("Live auction without start_at, skipping")
			continue
		}

		if remaining <= 0 {
			s.logger.Info().Str("auction_id", a.ID.String()).Msg("Live auction past deadline, requesting close")
			s.requestClose(a.ID)
			continue
		}

		s.Arm(a.ID, remaining)
	}

	s.logger.Info().Int("live_auctions", len(live)).Msg("Countdowns rehydrated")
	return nil
}

// Stop discards every countdown and waits for the runners to exit
func (s *Scheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	for id, cd := range s.countdowns {
		cd.discard()
		delete(s.countdowns, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Countdown scheduler stopped")
}

// run drives one countdown: a per-second tick plus a hard deadline
// backstop in case the tick loop ever stalls. Both are cancelled
// together so the close fires at most once.
func (s *Scheduler) run(auctionID uuid.UUID, cd *countdown, remaining int64) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	backstop := time.NewTimer(time.Duration(remaining)*s.tick + s.tick)
	defer backstop.Stop()

	for {
		select {
		case <-cd.stop:
			return

		case <-s.ctx.Done():
			return

		case <-backstop.C:
			s.logger.Warn().Str("auction_id", auctionID.String()).Msg("Countdown backstop fired")
			s.expire(auctionID, cd)
			return

		case <-ticker.C:
			left := cd.remaining.Add(-1)

			if s.alreadyEnded(auctionID) {
				s.discardSilently(auctionID, cd)
				return
			}

			if left <= 0 {
				s.expire(auctionID, cd)
				return
			}

			if left%s.modulus == 0 || left < s.window {
				s.broadcastTime(auctionID, left)
			}
		}
	}
}

// alreadyEnded checks the persisted status; a countdown surviving a
// bid-triggered close discards itself on the next tick.
func (s *Scheduler) alreadyEnded(auctionID uuid.UUID) bool {
	ctx, cancel := context.WithTimeout(s.ctx, s.tick)
	defer cancel()

	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		// Transient read failure: keep ticking, the backstop and the
		// settlement guard bound the damage.
		s.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Countdown status check failed")
		return false
	}

	return a.IsTerminal()
}

func (s *Scheduler) discardSilently(auctionID uuid.UUID, cd *countdown) {
	s.mu.Lock()
	if current, ok := s.countdowns[auctionID]; ok && current == cd {
		delete(s.countdowns, auctionID)
	}
	s.mu.Unlock()
	cd.discard()

	s.logger.Debug().Str("auction_id", auctionID.String()).Msg("Countdown discarded, auction already ended")
}

func (s *Scheduler) expire(auctionID uuid.UUID, cd *countdown) {
	s.discardSilently(auctionID, cd)
	s.requestClose(auctionID)
}

func (s *Scheduler) requestClose(auctionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.closePub.PublishClose(ctx, auctionID, auction.ReasonDurationExpired); err != nil {
		// The reconciliation sweep re-publishes for overdue live rows
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to publish expiry close request")
		return
	}

	s.logger.Info().Str("auction_id", auctionID.String()).Msg("Expiry close requested")
}

func (s *Scheduler) broadcastTime(auctionID uuid.UUID, remaining int64) {
	ctx, cancel := context.WithTimeout(s.ctx, s.tick)
	defer cancel()

	event := outbound.Event{
		Type:      outbound.EventTypeTimeUpdate,
		AuctionID: auctionID,
		Data: map[string]interface{}{
			"remaining_seconds": remaining,
		},
		Timestamp: time.Now().Unix(),
	}

	if err := s.broadcaster.Publish(ctx, auctionID, event); err != nil {
		s.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to broadcast time update")
	}
}
