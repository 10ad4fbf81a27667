package app

import (
	"context"
	"testing"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/member"
	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/inbound"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bidFixture struct {
	svc       *BidService
	auctions  *fakeAuctionRepo
	members   *fakeMemberRepo
	products  *fakeProductStore
	closePub  *fakeClosePublisher
	broadcast *fakeBroadcaster

	auctionID uuid.UUID
	productID uuid.UUID
	sellerID  uuid.UUID
	bidderA   uuid.UUID
	bidderB   uuid.UUID
}

// newBidFixture wires a live auction with starting price 100, step 10,
// target 200, deposit 20 and two joined bidders.
func newBidFixture(t *testing.T) *bidFixture {
	t.Helper()

	f := &bidFixture{
		auctions:  newFakeAuctionRepo(),
		members:   newFakeMemberRepo(),
		products:  newFakeProductStore(),
		closePub:  &fakeClosePublisher{},
		broadcast: newFakeBroadcaster(),
		auctionID: uuid.New(),
		productID: uuid.New(),
		sellerID:  uuid.New(),
		bidderA:   uuid.New(),
		bidderB:   uuid.New(),
	}

	now := time.Now()
	f.auctions.put(&auction.Auction{
		ID:            f.auctionID,
		ProductID:     f.productID,
		SellerID:      f.sellerID,
		StartingPrice: 100,
		OriginalPrice: 300,
		TargetPrice:   200,
		Step:          10,
		Deposit:       20,
		Duration:      600,
		StartAt:       &now,
		Status:        auction.StatusLive,
	})
	f.products.put(&shared.Product{
		ID:       f.productID,
		SellerID: f.sellerID,
		Status:   shared.ProductAuctioning,
	})

	for _, userID := range []uuid.UUID{f.bidderA, f.bidderB} {
		err := f.members.Create(context.Background(), nil, &member.Member{
			UserID:    userID,
			AuctionID: f.auctionID,
		})
		require.NoError(t, err)
	}

	f.svc = NewBidService(BidServiceParams{
		TxManager:    &fakeTxManager{},
		AuctionRepo:  f.auctions,
		MemberRepo:   f.members,
		ProductStore: f.products,
		ClosePub:     f.closePub,
		Broadcaster:  f.broadcast,
		Logger:       zerolog.Nop(),
	})
	return f
}

func (f *bidFixture) bid(userID uuid.UUID, amount int64) (*inbound.BidResult, error) {
	return f.svc.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: f.auctionID,
		UserID:    userID,
		Amount:    amount,
	})
}

func TestPlaceBid(t *testing.T) {
	t.Run("first valid bid becomes the leader", func(t *testing.T) {
		f := newBidFixture(t)

		result, err := f.bid(f.bidderA, 150)
		require.NoError(t, err)
		assert.Equal(t, f.bidderA, result.WinnerID)
		assert.Equal(t, int64(150), result.WinningPrice)
		assert.False(t, result.Closing)

		a, err := f.auctions.GetByID(context.Background(), f.auctionID)
		require.NoError(t, err)
		assert.Equal(t, int64(150), a.CurrentPrice())
		require.NotNil(t, a.WinnerID)
		assert.Equal(t, f.bidderA, *a.WinnerID)
	})

	t.Run("bid equal to current price is rejected", func(t *testing.T) {
		f := newBidFixture(t)

		_, err := f.bid(f.bidderA, 150)
		require.NoError(t, err)

		_, err = f.bid(f.bidderB, 150)
		assert.ErrorIs(t, err, shared.ErrBidTooLow)
	})

	t.Run("bid above current but below step is rejected", func(t *testing.T) {
		f := newBidFixture(t)

		_, err := f.bid(f.bidderA, 150)
		require.NoError(t, err)

		_, err = f.bid(f.bidderB, 155)
		assert.ErrorIs(t, err, shared.ErrBidBelowStep)

		// The leader is unchanged after the rejection
		a, err := f.auctions.GetByID(context.Background(), f.auctionID)
		require.NoError(t, err)
		assert.Equal(t, f.bidderA, *a.WinnerID)
		assert.Equal(t, int64(150), a.CurrentPrice())
	})

	t.Run("bid at target closes regardless of step", func(t *testing.T) {
		f := newBidFixture(t)

		_, err := f.bid(f.bidderA, 195)
		require.NoError(t, err)

		// 200 is under 195+10 but meets the target, so the step rule
		// does not apply
		result, err := f.bid(f.bidderB, 200)
		require.NoError(t, err)
		assert.True(t, result.Closing)

		require.Len(t, f.closePub.requests, 1)
		assert.Equal(t, f.auctionID, f.closePub.requests[0].auctionID)
		assert.Equal(t, auction.ReasonTargetReached, f.closePub.requests[0].reason)
	})

	t.Run("non-member cannot bid", func(t *testing.T) {
		f := newBidFixture(t)

		_, err := f.bid(uuid.New(), 150)
		assert.ErrorIs(t, err, shared.ErrNotJoined)
	})

	t.Run("bid on non-live auction is rejected", func(t *testing.T) {
		f := newBidFixture(t)
		require.NoError(t, f.auctions.MarkEnded(context.Background(), nil, f.auctionID, time.Now()))

		_, err := f.bid(f.bidderA, 150)
		assert.ErrorIs(t, err, shared.ErrAuctionNotLive)
	})

	t.Run("bid is rejected when product left auctioning", func(t *testing.T) {
		f := newBidFixture(t)
		require.NoError(t, f.products.SetStatus(context.Background(), nil, f.productID, shared.ProductAuctioned))

		_, err := f.bid(f.bidderA, 150)
		assert.ErrorIs(t, err, shared.ErrProductNotAuctioning)
	})

	t.Run("accepted bid is broadcast, rejected bid is not", func(t *testing.T) {
		f := newBidFixture(t)

		_, err := f.bid(f.bidderA, 150)
		require.NoError(t, err)
		_, err = f.bid(f.bidderB, 150)
		require.Error(t, err)

		events := f.broadcast.eventsOf(f.auctionID)
		require.Len(t, events, 1)
		assert.Equal(t, outbound.EventTypeBidUpdate, events[0].Type)
		assert.Equal(t, f.bidderA.String(), events[0].Data["winner_id"])
	})

	t.Run("member bid price follows accepted bids", func(t *testing.T) {
		f := newBidFixture(t)

		_, err := f.bid(f.bidderA, 150)
		require.NoError(t, err)
		_, err = f.bid(f.bidderA, 160)
		require.NoError(t, err)

		m, err := f.members.Get(context.Background(), nil, f.auctionID, f.bidderA)
		require.NoError(t, err)
		require.True(t, m.HasBid())
		assert.Equal(t, int64(160), *m.BidPrice)
	})
}

func TestBuyNow(t *testing.T) {
	t.Run("closes at the target price", func(t *testing.T) {
		f := newBidFixture(t)

		result, err := f.svc.BuyNow(context.Background(), inbound.BuyNowRequest{
			AuctionID: f.auctionID,
			UserID:    f.bidderB,
		})
		require.NoError(t, err)
		assert.Equal(t, f.bidderB, result.WinnerID)
		assert.Equal(t, int64(200), result.WinningPrice)
		assert.True(t, result.Closing)

		require.Len(t, f.closePub.requests, 1)
		assert.Equal(t, auction.ReasonBuyNow, f.closePub.requests[0].reason)
	})

	t.Run("overwrites a lower leading bid", func(t *testing.T) {
		f := newBidFixture(t)

		_, err := f.bid(f.bidderA, 150)
		require.NoError(t, err)

		result, err := f.svc.BuyNow(context.Background(), inbound.BuyNowRequest{
			AuctionID: f.auctionID,
			UserID:    f.bidderB,
		})
		require.NoError(t, err)
		assert.Equal(t, f.bidderB, result.WinnerID)

		a, err := f.auctions.GetByID(context.Background(), f.auctionID)
		require.NoError(t, err)
		assert.Equal(t, int64(200), a.CurrentPrice())
	})

	t.Run("requires membership", func(t *testing.T) {
		f := newBidFixture(t)

		_, err := f.svc.BuyNow(context.Background(), inbound.BuyNowRequest{
			AuctionID: f.auctionID,
			UserID:    uuid.New(),
		})
		assert.ErrorIs(t, err, shared.ErrNotJoined)
	})

	t.Run("rejected on ended auction", func(t *testing.T) {
		f := newBidFixture(t)
		require.NoError(t, f.auctions.MarkEnded(context.Background(), nil, f.auctionID, time.Now()))

		_, err := f.svc.BuyNow(context.Background(), inbound.BuyNowRequest{
			AuctionID: f.auctionID,
			UserID:    f.bidderA,
		})
		assert.ErrorIs(t, err, shared.ErrAuctionNotLive)
	})
}
