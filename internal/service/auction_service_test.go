package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
)

type recordingArchiver struct {
	mu      sync.Mutex
	records []SettlementRecord
}

func (a *recordingArchiver) ArchiveSettlement(ctx context.Context, rec SettlementRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

type auctionFixture struct {
	epochs      *fakeEpochStore
	auctions    *fakeAuctionStore
	bids        *fakeBidStore
	founders    *fakeFounderStore
	state       *fakeStateStore
	predictions *fakePredictionStore
	voterPool   *fakeRewardStore
	votes       *fakeVoteStore
	assets      *fakeAssets
	sender      *fakeSender
	ledger      *fakeLedger
	archiver    *recordingArchiver
	svc         *AuctionService
	clock       time.Time
	auction     domain.Auction
}

const reserve = int64(200_000_000)

func newAuctionFixture(t *testing.T) *auctionFixture {
	t.Helper()
	f := &auctionFixture{
		epochs:      newFakeEpochStore(),
		auctions:    newFakeAuctionStore(),
		bids:        newFakeBidStore(),
		founders:    newFakeFounderStore(),
		state:       newFakeStateStore(),
		predictions: newFakePredictionStore(),
		voterPool:   newFakeRewardStore(),
		votes:       newFakeVoteStore(),
		assets:      newFakeAssets(),
		sender:      newFakeSender(),
		ledger:      newFakeLedger(),
		archiver:    &recordingArchiver{},
		clock:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	m := metrics.New()
	rewards := NewRewardService(f.predictions, f.voterPool, f.votes, f.epochs, f.sender, m, testLogger())
	f.svc = NewAuctionService(
		f.auctions, f.bids, f.epochs, f.founders, f.state,
		rewards, f.assets, f.sender, f.ledger, f.archiver,
		newFakeSignalBus(), m, testLogger(),
		AuctionConfig{
			TreasuryWallet: "treasury",
			TeamWallet:     "team",
			GrowthWallet:   "growth",
			SnipeWindow:    5 * time.Minute,
			SnipeExtension: 5 * time.Minute,
		},
	)
	f.svc.now = func() time.Time { return f.clock }

	ctx := context.Background()
	_, err := f.epochs.Create(ctx, 1, f.clock.Add(-24*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.epochs.MarkEnded(ctx, 1, "asset-w", "creator-w", false, f.clock))

	f.auction, err = f.auctions.Create(ctx, domain.Auction{
		EpochNumber:  1,
		AssetAddress: "asset-w",
		Creator:      "creator-w",
		ReserveBid:   reserve,
		StartTime:    f.clock,
		EndTime:      f.clock.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	f.assets.assets["asset-w"] = domain.AssetInfo{
		Address: "asset-w", Owner: "authority", Collection: "art",
	}
	return f
}

func TestBidQuoteEnforcesReserve(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	_, err := f.svc.BidQuote(ctx, "bidder-1", reserve-1)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)

	quote, err := f.svc.BidQuote(ctx, "bidder-1", reserve)
	require.NoError(t, err)
	assert.Equal(t, reserve, quote.MinimumBid)
}

func TestBidQuoteEnforcesIncrementOverCurrentBid(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	_, err := f.svc.BidConfirm(ctx, "bidder-1", reserve, "sig-1")
	require.NoError(t, err)

	// 5% over the standing bid.
	min := reserve + reserve*500/10_000
	_, err = f.svc.BidQuote(ctx, "bidder-2", min-1)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)

	quote, err := f.svc.BidQuote(ctx, "bidder-2", min)
	require.NoError(t, err)
	assert.Equal(t, min, quote.Lamports)
}

func TestBidConfirmRefundsDisplacedBidder(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	_, err := f.svc.BidConfirm(ctx, "bidder-1", reserve, "sig-1")
	require.NoError(t, err)

	second := reserve * 2
	a, err := f.svc.BidConfirm(ctx, "bidder-2", second, "sig-2")
	require.NoError(t, err)
	assert.Equal(t, "bidder-2", a.CurrentBidder)
	assert.Equal(t, second, a.CurrentBid)

	assert.Equal(t, reserve, f.sender.sentTo("bidder-1"))

	pending, err := f.bids.ListUnrefunded(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBidConfirmAntiSnipeExtendsEndTime(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	originalEnd := f.auction.EndTime
	f.clock = originalEnd.Add(-2 * time.Minute)

	a, err := f.svc.BidConfirm(ctx, "bidder-1", reserve, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, originalEnd.Add(5*time.Minute), a.EndTime)
}

func TestBidConfirmOutsideSnipeWindowKeepsEndTime(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	a, err := f.svc.BidConfirm(ctx, "bidder-1", reserve, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, f.auction.EndTime, a.EndTime)
}

func TestBidConfirmBouncesStalePayment(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	_, err := f.svc.BidConfirm(ctx, "bidder-1", reserve*2, "sig-1")
	require.NoError(t, err)

	// bidder-2's quoted amount no longer clears the bar at confirm time.
	_, err = f.svc.BidConfirm(ctx, "bidder-2", reserve, "sig-2")
	assert.ErrorIs(t, err, domain.ErrBidTooLow)
	assert.Equal(t, reserve, f.sender.sentTo("bidder-2"))
}

func TestBidConfirmBouncesAfterAuctionEnds(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	f.clock = f.auction.EndTime.Add(time.Minute)
	_, err := f.svc.BidConfirm(ctx, "bidder-1", reserve, "sig-1")
	assert.ErrorIs(t, err, domain.ErrAuctionEnded)
	assert.Equal(t, reserve, f.sender.sentTo("bidder-1"))
}

func TestRetryRefundsDrainsFailedRefunds(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	_, err := f.svc.BidConfirm(ctx, "bidder-1", reserve, "sig-1")
	require.NoError(t, err)

	// The eager refund fails; the bid row stays queued.
	f.sender.failFor["bidder-1"] = errors.New("rpc timeout")
	_, err = f.svc.BidConfirm(ctx, "bidder-2", reserve*2, "sig-2")
	require.NoError(t, err)

	pending, err := f.bids.ListUnrefunded(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bidder-1", pending[0].Bidder)

	// A failing retry records the reason and keeps the row queued.
	require.NoError(t, f.svc.RetryRefunds(ctx, 10))
	pending, err = f.bids.ListUnrefunded(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].RefundError)

	// Once the ledger recovers, the sweep clears the queue.
	delete(f.sender.failFor, "bidder-1")
	require.NoError(t, f.svc.RetryRefunds(ctx, 10))
	pending, err = f.bids.ListUnrefunded(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, reserve, f.sender.sentTo("bidder-1"))
}

func TestBidConfirmSelfRaiseRefundsOnlyDisplacedBid(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	_, err := f.svc.BidConfirm(ctx, "bidder-1", reserve, "sig-1")
	require.NoError(t, err)

	// bidder-1 raises their own bid. Only the displaced first bid comes
	// back; the new standing bid stays locked in escrow.
	raised := reserve * 2
	_, err = f.svc.BidConfirm(ctx, "bidder-1", raised, "sig-2")
	require.NoError(t, err)
	assert.Equal(t, reserve, f.sender.sentTo("bidder-1"))

	history, err := f.bids.ListByAuction(ctx, f.auction.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Refunded)
	assert.False(t, history[1].Refunded)

	// The standing bid becomes refundable once bidder-2 displaces it, even
	// though that eager refund fails.
	f.sender.failFor["bidder-1"] = errors.New("rpc timeout")
	_, err = f.svc.BidConfirm(ctx, "bidder-2", raised*2, "sig-3")
	require.NoError(t, err)

	pending, err := f.bids.ListUnrefunded(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, raised, pending[0].Amount)

	delete(f.sender.failFor, "bidder-1")
	require.NoError(t, f.svc.RetryRefunds(ctx, 10))
	assert.Equal(t, reserve+raised, f.sender.sentTo("bidder-1"))
}

func TestRefundClaimPreventsDoublePay(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	_, err := f.svc.BidConfirm(ctx, "bidder-1", reserve, "sig-1")
	require.NoError(t, err)

	f.sender.failFor["bidder-1"] = errors.New("rpc timeout")
	_, err = f.svc.BidConfirm(ctx, "bidder-2", reserve*2, "sig-2")
	require.NoError(t, err)
	delete(f.sender.failFor, "bidder-1")

	// Another worker holds the claim with its send still in flight. The
	// sweep must leave the row alone.
	bidID, ok, err := f.bids.ClaimRefund(ctx, f.auction.ID, "bidder-1", reserve)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = f.bids.ClaimRefund(ctx, f.auction.ID, "bidder-1", reserve)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.svc.RetryRefunds(ctx, 10))
	assert.Zero(t, f.sender.sentTo("bidder-1"))

	// The worker's send failed and it released the claim; the next sweep
	// pays the refund exactly once.
	require.NoError(t, f.bids.ReleaseRefundClaim(ctx, bidID, "node unreachable"))
	require.NoError(t, f.svc.RetryRefunds(ctx, 10))
	require.NoError(t, f.svc.RetryRefunds(ctx, 10))
	assert.Equal(t, reserve, f.sender.sentTo("bidder-1"))
}

func TestSettleNoBidsReturnsAssetToCreator(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	f.clock = f.auction.EndTime.Add(time.Minute)
	require.NoError(t, f.svc.Settle(ctx))

	info, err := f.assets.FetchAsset(ctx, "asset-w")
	require.NoError(t, err)
	assert.Equal(t, "creator-w", info.Owner)

	// No payouts without a winning bid.
	assert.Empty(t, f.sender.sent)

	epoch, err := f.epochs.GetByNumber(ctx, 1)
	require.NoError(t, err)
	assert.True(t, epoch.Finalized)

	_, err = f.auctions.NextExpired(ctx, f.clock)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettleWithWinnerPaysOutAndUpgrades(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	bid := int64(1_000_000_001) // odd so the split exercises floor division
	_, err := f.svc.BidConfirm(ctx, "bidder-1", bid, "sig-1")
	require.NoError(t, err)

	f.clock = f.auction.EndTime.Add(time.Minute)
	require.NoError(t, f.svc.Settle(ctx))

	info, err := f.assets.FetchAsset(ctx, "asset-w")
	require.NoError(t, err)
	assert.Equal(t, "bidder-1", info.Owner)
	assert.Equal(t, "Founder Key", f.assets.attrs["asset-w"]["Status"])

	assert.Equal(t, bid*6000/10_000, f.sender.sentTo("creator-w"))
	assert.Equal(t, bid*1000/10_000, f.sender.sentTo("team"))
	assert.Equal(t, bid*1000/10_000, f.sender.sentTo("growth"))

	require.Len(t, f.founders.entries, 1)
	assert.Equal(t, "bidder-1", f.founders.entries[0].Owner)

	st, err := f.state.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalFounderKeys)

	epoch, err := f.epochs.GetByNumber(ctx, 1)
	require.NoError(t, err)
	assert.True(t, epoch.Finalized)

	require.Len(t, f.archiver.records, 1)
	assert.Equal(t, int64(1), f.archiver.records[0].Auction.EpochNumber)
	assert.True(t, f.archiver.records[0].Auction.Settled)
}

func TestSettleGradesPredictionsAndFundsPools(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	epochStart := f.clock.Add(-24 * time.Hour)
	require.NoError(t, f.predictions.Insert(ctx, domain.Prediction{
		Wallet: "seer", Candidate: "asset-w", EpochNumber: 1,
		Direction: domain.PredictYes, CreatedAt: epochStart,
	}))
	require.NoError(t, f.predictions.Insert(ctx, domain.Prediction{
		Wallet: "doubter", Candidate: "asset-w", EpochNumber: 1,
		Direction: domain.PredictSkip, CreatedAt: epochStart,
	}))
	require.NoError(t, f.votes.InsertFree(ctx, domain.Vote{
		Voter: "voter-1", Candidate: "asset-w", EpochNumber: 1,
	}))

	bid := int64(1_000_000_000)
	_, err := f.svc.BidConfirm(ctx, "bidder-1", bid, "sig-1")
	require.NoError(t, err)

	f.clock = f.auction.EndTime.Add(time.Minute)
	require.NoError(t, f.svc.Settle(ctx))

	// The sole correct predictor takes the whole prediction pool.
	correct, err := f.predictions.ListCorrect(ctx, 1)
	require.NoError(t, err)
	require.Len(t, correct, 1)
	assert.Equal(t, "seer", correct[0].Wallet)
	assert.Equal(t, bid*1000/10_000, correct[0].RewardLamports)

	// The sole voter takes the whole voter pool.
	shares, err := f.voterPool.ListByWallet(ctx, "voter-1")
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, bid*2000/10_000, shares[0].RewardLamports)
}

func TestSettleRetrySkipsCompletedTransfer(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	_, err := f.svc.BidConfirm(ctx, "bidder-1", reserve, "sig-1")
	require.NoError(t, err)

	// The asset already reached the winner on an earlier, interrupted tick.
	f.assets.assets["asset-w"] = domain.AssetInfo{Address: "asset-w", Owner: "bidder-1"}

	f.clock = f.auction.EndTime.Add(time.Minute)
	require.NoError(t, f.svc.Settle(ctx))
	assert.Equal(t, 0, f.assets.transferCount())
}

func TestSettleNothingExpiredIsNoop(t *testing.T) {
	f := newAuctionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Settle(ctx))
	a, err := f.auctions.GetOpenByEpoch(ctx, 1)
	require.NoError(t, err)
	assert.False(t, a.Settled)
}
