package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests run with a millisecond tick so a whole countdown finishes in
// well under a second of wall time.
const testTick = 2 * time.Millisecond

type stubAuctionReader struct {
	outbound.AuctionRepository

	mu       sync.Mutex
	auctions map[uuid.UUID]*auction.Auction
}

func newStubAuctionReader() *stubAuctionReader {
	return &stubAuctionReader{auctions: make(map[uuid.UUID]*auction.Auction)}
}

func (r *stubAuctionReader) put(a *auction.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *a
	r.auctions[a.ID] = &copied
}

func (r *stubAuctionReader) setStatus(id uuid.UUID, status auction.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[id].Status = status
}

func (r *stubAuctionReader) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *stubAuctionReader) ListByStatus(ctx context.Context, status auction.Status) ([]*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auction.Auction
	for _, a := range r.auctions {
		if a.Status == status {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

type capturingClosePublisher struct {
	mu       sync.Mutex
	requests []uuid.UUID
}

func (p *capturingClosePublisher) PublishClose(ctx context.Context, auctionID uuid.UUID, reason auction.CloseReason) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, auctionID)
	return nil
}

func (p *capturingClosePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type capturingBroadcaster struct {
	mu     sync.Mutex
	events []outbound.Event
}

func (b *capturingBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (b *capturingBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	return nil
}

func (b *capturingBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *capturingBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	return false
}

func (b *capturingBroadcaster) snapshot() []outbound.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]outbound.Event(nil), b.events...)
}

type schedulerFixture struct {
	scheduler *Scheduler
	auctions  *stubAuctionReader
	closePub  *capturingClosePublisher
	broadcast *capturingBroadcaster
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	f := &schedulerFixture{
		auctions:  newStubAuctionReader(),
		closePub:  &capturingClosePublisher{},
		broadcast: &capturingBroadcaster{},
	}
	f.scheduler = NewScheduler(SchedulerParams{
		AuctionRepo:  f.auctions,
		ClosePub:     f.closePub,
		Broadcaster:  f.broadcast,
		Logger:       zerolog.Nop(),
		TickInterval: testTick,
	})
	t.Cleanup(f.scheduler.Stop)
	return f
}

func (f *schedulerFixture) addLiveAuction(remaining int64) uuid.UUID {
	now := time.Now()
	id := uuid.New()
	f.auctions.put(&auction.Auction{
		ID:       id,
		Duration: remaining,
		StartAt:  &now,
		Status:   auction.StatusLive,
	})
	return id
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(testTick)
	}
	t.Fatal("condition not met in time")
}

func TestSchedulerExpiry(t *testing.T) {
	t.Run("requests close exactly once on expiry", func(t *testing.T) {
		f := newSchedulerFixture(t)
		id := f.addLiveAuction(5)

		f.scheduler.Arm(id, 5)

		waitFor(t, func() bool { return f.closePub.count() > 0 })

		// Give the runner room to misfire before checking
		time.Sleep(20 * testTick)
		assert.Equal(t, 1, f.closePub.count())

		_, armed := f.scheduler.Remaining(id)
		assert.False(t, armed)
	})

	t.Run("discards without close when auction ended elsewhere", func(t *testing.T) {
		f := newSchedulerFixture(t)
		id := f.addLiveAuction(1000)

		f.scheduler.Arm(id, 1000)
		f.auctions.setStatus(id, auction.StatusEnded)

		waitFor(t, func() bool {
			_, armed := f.scheduler.Remaining(id)
			return !armed
		})

		time.Sleep(10 * testTick)
		assert.Equal(t, 0, f.closePub.count())
	})

	t.Run("cancel stops the countdown silently", func(t *testing.T) {
		f := newSchedulerFixture(t)
		id := f.addLiveAuction(1000)

		f.scheduler.Arm(id, 1000)
		f.scheduler.Cancel(id)

		_, armed := f.scheduler.Remaining(id)
		assert.False(t, armed)

		time.Sleep(10 * testTick)
		assert.Equal(t, 0, f.closePub.count())
	})

	t.Run("rearming replaces the previous countdown", func(t *testing.T) {
		f := newSchedulerFixture(t)
		id := f.addLiveAuction(1000)

		f.scheduler.Arm(id, 1000)
		f.scheduler.Arm(id, 500)

		remaining, armed := f.scheduler.Remaining(id)
		require.True(t, armed)
		assert.LessOrEqual(t, remaining, int64(500))
	})
}

func TestSchedulerBroadcastPolicy(t *testing.T) {
	f := newSchedulerFixture(t)
	id := f.addLiveAuction(200)

	f.scheduler.Arm(id, 200)

	waitFor(t, func() bool { return f.closePub.count() > 0 })

	seen := make(map[int64]bool)
	for _, e := range f.broadcast.snapshot() {
		remaining, ok := e.Data["remaining_seconds"].(int64)
		require.True(t, ok)
		seen[remaining] = true
		// Above the window only multiples of the modulus are announced
		if remaining >= 60 {
			assert.Zero(t, remaining%10, "remaining %d broadcast above the window", remaining)
		}
	}

	// Inside the window every second is announced
	for s := int64(1); s < 60; s++ {
		assert.True(t, seen[s], "missing broadcast for %d seconds", s)
	}
	assert.True(t, seen[190])
	assert.False(t, seen[195])
}

func TestSchedulerRehydrate(t *testing.T) {
	t.Run("arms live auctions with the recomputed remainder", func(t *testing.T) {
		f := newSchedulerFixture(t)

		startAt := time.Now().Add(-3 * time.Second)
		id := uuid.New()
		f.auctions.put(&auction.Auction{
			ID:       id,
			Duration: 10,
			StartAt:  &startAt,
			Status:   auction.StatusLive,
		})

		require.NoError(t, f.scheduler.Rehydrate(context.Background()))

		remaining, armed := f.scheduler.Remaining(id)
		require.True(t, armed)
		assert.InDelta(t, 7, remaining, 2)
	})

	t.Run("closes live auctions already past their deadline", func(t *testing.T) {
		f := newSchedulerFixture(t)

		startAt := time.Now().Add(-time.Hour)
		id := uuid.New()
		f.auctions.put(&auction.Auction{
			ID:       id,
			Duration: 600,
			StartAt:  &startAt,
			Status:   auction.StatusLive,
		})

		require.NoError(t, f.scheduler.Rehydrate(context.Background()))

		_, armed := f.scheduler.Remaining(id)
		assert.False(t, armed)
		assert.Equal(t, 1, f.closePub.count())
	})

	t.Run("ignores non-live auctions", func(t *testing.T) {
		f := newSchedulerFixture(t)

		id := uuid.New()
		f.auctions.put(&auction.Auction{
			ID:       id,
			Duration: 600,
			Status:   auction.StatusVerified,
		})

		require.NoError(t, f.scheduler.Rehydrate(context.Background()))

		_, armed := f.scheduler.Remaining(id)
		assert.False(t, armed)
	})
}
