package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
)

type epochFixture struct {
	epochs     *fakeEpochStore
	candidates *fakeCandidateStore
	auctions   *fakeAuctionStore
	bus        *fakeSignalBus
	svc        *EpochService
	clock      time.Time
}

func newEpochFixture(t *testing.T) *epochFixture {
	t.Helper()
	f := &epochFixture{
		epochs:     newFakeEpochStore(),
		candidates: newFakeCandidateStore(),
		auctions:   newFakeAuctionStore(),
		bus:        newFakeSignalBus(),
		clock:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f.svc = NewEpochService(f.epochs, f.candidates, f.auctions, f.bus, metrics.New(), testLogger(), EpochConfig{
		EpochDuration:   24 * time.Hour,
		AuctionDuration: 24 * time.Hour,
		ReserveBid:      200_000_000,
	})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *epochFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func TestCurrentBootstrapsFirstEpoch(t *testing.T) {
	f := newEpochFixture(t)
	ctx := context.Background()

	e, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Number)
	assert.Nil(t, e.EndTime)

	again, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.Number, again.Number)
}

func TestCurrentResumesAfterCrash(t *testing.T) {
	f := newEpochFixture(t)
	ctx := context.Background()

	// Epoch 3 ended but its successor was never created.
	_, err := f.epochs.Create(ctx, 3, f.clock, 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.epochs.MarkEnded(ctx, 3, "", "", true, f.clock))

	e, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), e.Number)
}

func TestEndEpochBeforeExpiryIsNoop(t *testing.T) {
	f := newEpochFixture(t)
	ctx := context.Background()

	first, err := f.svc.Current(ctx)
	require.NoError(t, err)

	f.advance(time.Hour)
	require.NoError(t, f.svc.EndEpoch(ctx))

	current, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Number, current.Number)
	_, err = f.auctions.Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrNoAuction)
}

func TestEndEpochSkipsWhenNoVotes(t *testing.T) {
	f := newEpochFixture(t)
	ctx := context.Background()

	_, err := f.svc.Current(ctx)
	require.NoError(t, err)
	require.NoError(t, f.candidates.Upsert(ctx, domain.Candidate{
		AssetAddress: "asset-a", Creator: "creator-a", EpochJoined: 1,
	}))

	f.advance(25 * time.Hour)
	require.NoError(t, f.svc.EndEpoch(ctx))

	ended, err := f.epochs.GetByNumber(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ended.Skipped)
	assert.True(t, ended.Finalized)
	assert.Empty(t, ended.WinnerAsset)

	_, err = f.auctions.Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrNoAuction)

	next, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Number)

	// The zero-vote candidate survives into the next epoch.
	c, err := f.candidates.GetByAsset(ctx, "asset-a")
	require.NoError(t, err)
	assert.True(t, c.Eligible())
}

func TestEndEpochPromotesWinnerToAuction(t *testing.T) {
	f := newEpochFixture(t)
	ctx := context.Background()

	_, err := f.svc.Current(ctx)
	require.NoError(t, err)
	require.NoError(t, f.candidates.Upsert(ctx, domain.Candidate{
		AssetAddress: "asset-a", Creator: "creator-a", EpochJoined: 1,
	}))
	require.NoError(t, f.candidates.Upsert(ctx, domain.Candidate{
		AssetAddress: "asset-b", Creator: "creator-b", EpochJoined: 1,
	}))
	_, err = f.candidates.AddVotes(ctx, "asset-a", 3)
	require.NoError(t, err)
	_, err = f.candidates.AddVotes(ctx, "asset-b", 7)
	require.NoError(t, err)

	f.advance(25 * time.Hour)
	require.NoError(t, f.svc.EndEpoch(ctx))

	ended, err := f.epochs.GetByNumber(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "asset-b", ended.WinnerAsset)
	assert.False(t, ended.Skipped)
	// Not finalized until the auction settles.
	assert.False(t, ended.Finalized)

	winner, err := f.candidates.GetByAsset(ctx, "asset-b")
	require.NoError(t, err)
	assert.True(t, winner.Won)

	a, err := f.auctions.GetOpenByEpoch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "asset-b", a.AssetAddress)
	assert.Equal(t, int64(200_000_000), a.ReserveBid)
	assert.Equal(t, f.clock.Add(24*time.Hour), a.EndTime)

	next, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Number)
}

func TestEndEpochTieBreaksByJoinOrder(t *testing.T) {
	f := newEpochFixture(t)
	ctx := context.Background()

	_, err := f.svc.Current(ctx)
	require.NoError(t, err)
	require.NoError(t, f.candidates.Upsert(ctx, domain.Candidate{
		AssetAddress: "asset-late", Creator: "c1", EpochJoined: 2,
	}))
	require.NoError(t, f.candidates.Upsert(ctx, domain.Candidate{
		AssetAddress: "asset-early", Creator: "c2", EpochJoined: 1,
	}))
	_, err = f.candidates.AddVotes(ctx, "asset-late", 5)
	require.NoError(t, err)
	_, err = f.candidates.AddVotes(ctx, "asset-early", 5)
	require.NoError(t, err)

	f.advance(25 * time.Hour)
	require.NoError(t, f.svc.EndEpoch(ctx))

	ended, err := f.epochs.GetByNumber(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "asset-early", ended.WinnerAsset)
}

func TestEndEpochIdempotentAcrossTicks(t *testing.T) {
	f := newEpochFixture(t)
	ctx := context.Background()

	_, err := f.svc.Current(ctx)
	require.NoError(t, err)
	require.NoError(t, f.candidates.Upsert(ctx, domain.Candidate{
		AssetAddress: "asset-a", Creator: "creator-a", EpochJoined: 1,
	}))
	_, err = f.candidates.AddVotes(ctx, "asset-a", 1)
	require.NoError(t, err)

	f.advance(25 * time.Hour)
	require.NoError(t, f.svc.EndEpoch(ctx))
	// Second tick inside the new epoch's window changes nothing.
	require.NoError(t, f.svc.EndEpoch(ctx))

	open, err := f.auctions.ListUnsettled(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	current, err := f.svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.Number)
}
