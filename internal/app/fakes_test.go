package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/member"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// In-memory fakes for the outbound ports. Mutations apply immediately;
// the failure-path tests return errors before any mutation so commit
// semantics are not load-bearing here.

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeTxManager struct {
	txCount int
}

func (m *fakeTxManager) WithinTx(ctx context.Context, fn func(tx outbound.Tx) error) error {
	m.txCount++
	return fn(fakeTx{})
}

type fakeAuctionRepo struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*auction.Auction
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{auctions: make(map[uuid.UUID]*auction.Auction)}
}

func (r *fakeAuctionRepo) put(a *auction.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *a
	r.auctions[a.ID] = &copied
}

func (r *fakeAuctionRepo) get(id uuid.UUID) (*auction.Auction, error) {
	a, ok := r.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAuctionRepo) Create(ctx context.Context, a *auction.Auction) error {
	r.put(a)
	return nil
}

func (r *fakeAuctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *fakeAuctionRepo) GetForUpdate(ctx context.Context, tx outbound.Tx, id uuid.UUID) (*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *fakeAuctionRepo) ListByStatus(ctx context.Context, status auction.Status) ([]*auction.Auction, error) {
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

func (r *fakeAuctionRepo) ListExpiredDrafts(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for _, a := range r.auctions {
		if a.Status == auction.StatusDraft && a.CreatedAt.Before(cutoff) {
			out = append(out, a.ID)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) ListCloseEligible(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for _, a := range r.auctions {
		if !a.IsLive() {
			continue
		}
		if deadline, ok := a.Deadline(); ok && !deadline.After(now) {
			out = append(out, a.ID)
			continue
		}
		if a.WinningPrice != nil && *a.WinningPrice >= a.TargetPrice {
			out = append(out, a.ID)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) Transition(ctx context.Context, tx outbound.Tx, id uuid.UUID, from, to auction.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if a.Status != from {
		return shared.ErrInvalidTransition
	}
	a.Status = to
	return nil
}

func (r *fakeAuctionRepo) SetDuration(ctx context.Context, tx outbound.Tx, id uuid.UUID, seconds int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	a.Duration = seconds
	return nil
}

func (r *fakeAuctionRepo) SetStarted(ctx context.Context, tx outbound.Tx, id uuid.UUID, startAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if a.Status != auction.StatusVerified || a.StartAt != nil {
		return shared.ErrInvalidTransition
	}
	a.Status = auction.StatusLive
	a.StartAt = &startAt
	return nil
}

func (r *fakeAuctionRepo) SetWinner(ctx context.Context, tx outbound.Tx, id, userID uuid.UUID, price int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if !a.IsLive() {
		return shared.ErrAuctionNotLive
	}
	winner := userID
	a.WinnerID = &winner
	a.WinningPrice = &price
	return nil
}

func (r *fakeAuctionRepo) MarkEnded(ctx context.Context, tx outbound.Tx, id uuid.UUID, endAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if !a.IsLive() {
		return shared.ErrInvalidTransition
	}
	a.Status = auction.StatusEnded
	a.EndAt = &endAt
	return nil
}

type memberKey struct {
	auctionID uuid.UUID
	userID    uuid.UUID
}

type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[memberKey]*member.Member
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: make(map[memberKey]*member.Member)}
}

func (r *fakeMemberRepo) Create(ctx context.Context, tx outbound.Tx, m *member.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memberKey{m.AuctionID, m.UserID}
	if _, ok := r.members[key]; ok {
		return shared.ErrAlreadyJoined
	}
	copied := *m
	r.members[key] = &copied
	return nil
}

func (r *fakeMemberRepo) Get(ctx context.Context, tx outbound.Tx, auctionID, userID uuid.UUID) (*member.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberKey{auctionID, userID}]
	if !ok {
		return nil, shared.ErrNotJoined
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMemberRepo) UpdateBidPrice(ctx context.Context, tx outbound.Tx, auctionID, userID uuid.UUID, price int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberKey{auctionID, userID}]
	if !ok {
		return shared.ErrNotJoined
	}
	m.BidPrice = &price
	return nil
}

func (r *fakeMemberRepo) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*member.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*member.Member
	for key, m := range r.members {
		if key.auctionID == auctionID {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeProductStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]*shared.Product
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{products: make(map[uuid.UUID]*shared.Product)}
}

func (s *fakeProductStore) put(p *shared.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.products[p.ID] = &copied
}

func (s *fakeProductStore) GetForUpdate(ctx context.Context, tx outbound.Tx, productID uuid.UUID) (*shared.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, shared.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *fakeProductStore) SetStatus(ctx context.Context, tx outbound.Tx, productID uuid.UUID, status shared.ProductStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return shared.ErrProductNotFound
	}
	p.Status = status
	return nil
}

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*shared.DepositOrder
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uuid.UUID]*shared.DepositOrder)}
}

func (s *fakeOrderStore) CreateDeposit(ctx context.Context, tx outbound.Tx, o *shared.DepositOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *o
	s.orders[o.ID] = &copied
	return nil
}

func (s *fakeOrderStore) FindPaidDeposit(ctx context.Context, tx outbound.Tx, productID, userID uuid.UUID) (*shared.DepositOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ProductID == productID && o.UserID == userID && o.Status == shared.DepositPaid {
			copied := *o
			return &copied, nil
		}
	}
	return nil, shared.ErrOrderNotFound
}

func (s *fakeOrderStore) MarkRefunded(ctx context.Context, tx outbound.Tx, orderID uuid.UUID) error {
	return s.setStatus(orderID, shared.DepositRefunded)
}

func (s *fakeOrderStore) MarkApplied(ctx context.Context, tx outbound.Tx, orderID uuid.UUID) error {
	return s.setStatus(orderID, shared.DepositApplied)
}

func (s *fakeOrderStore) setStatus(orderID uuid.UUID, status shared.DepositOrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return shared.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (s *fakeOrderStore) statusOf(orderID uuid.UUID) shared.DepositOrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID].Status
}

// fakeLedger keeps balances and can be told to fail credits for a user
// a fixed number of times, or forever with a negative count.
type fakeLedger struct {
	mu          sync.Mutex
	balances    map[uuid.UUID]int64
	failCredits map[uuid.UUID]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:    make(map[uuid.UUID]int64),
		failCredits: make(map[uuid.UUID]int),
	}
}

func (l *fakeLedger) Debit(ctx context.Context, tx outbound.Tx, userID uuid.UUID, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[userID] < amount {
		return 0, shared.ErrInsufficientFunds
	}
	l.balances[userID] -= amount
	return l.balances[userID], nil
}

func (l *fakeLedger) Credit(ctx context.Context, tx outbound.Tx, userID uuid.UUID, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := l.failCredits[userID]; n != 0 {
		if n > 0 {
			l.failCredits[userID] = n - 1
		}
		return 0, fmt.Errorf("ledger unavailable")
	}
	l.balances[userID] += amount
	return l.balances[userID], nil
}

func (l *fakeLedger) balanceOf(userID uuid.UUID) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

type fakeDeadLetters struct {
	mu       sync.Mutex
	failures []*shared.RefundFailure
}

func (d *fakeDeadLetters) RecordRefundFailure(ctx context.Context, f *shared.RefundFailure) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *f
	d.failures = append(d.failures, &copied)
	return nil
}

type fakeNotifier struct {
	mu          sync.Mutex
	perUser     map[uuid.UUID][]outbound.Notification
	adminAlerts []outbound.Notification
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{perUser: make(map[uuid.UUID][]outbound.Notification)}
}

func (n *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, p outbound.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.perUser[userID] = append(n.perUser[userID], p)
	return nil
}

func (n *fakeNotifier) NotifyAdmin(ctx context.Context, p outbound.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.adminAlerts = append(n.adminAlerts, p)
	return nil
}

type closeRequest struct {
	auctionID uuid.UUID
	reason    auction.CloseReason
}

type fakeClosePublisher struct {
	mu       sync.Mutex
	requests []closeRequest
}

func (p *fakeClosePublisher) PublishClose(ctx context.Context, auctionID uuid.UUID, reason auction.CloseReason) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, closeRequest{auctionID, reason})
	return nil
}

type fakeCountdown struct {
	mu        sync.Mutex
	armed     map[uuid.UUID]int64
	cancelled []uuid.UUID
}

func newFakeCountdown() *fakeCountdown {
	return &fakeCountdown{armed: make(map[uuid.UUID]int64)}
}

func (c *fakeCountdown) Arm(auctionID uuid.UUID, remaining int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed[auctionID] = remaining
}

func (c *fakeCountdown) Cancel(auctionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.armed, auctionID)
	c.cancelled = append(c.cancelled, auctionID)
}

func (c *fakeCountdown) Remaining(auctionID uuid.UUID) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining, ok := c.armed[auctionID]
	return remaining, ok
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events map[uuid.UUID][]outbound.Event
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{events: make(map[uuid.UUID][]outbound.Event)}
}

func (b *fakeBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (b *fakeBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	return nil
}

func (b *fakeBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[auctionID] = append(b.events[auctionID], event)
	return nil
}

func (b *fakeBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	return false
}

func (b *fakeBroadcaster) eventsOf(auctionID uuid.UUID) []outbound.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]outbound.Event(nil), b.events[auctionID]...)
}
