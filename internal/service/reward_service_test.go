package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
)

type rewardFixture struct {
	epochs      *fakeEpochStore
	predictions *fakePredictionStore
	voterPool   *fakeRewardStore
	votes       *fakeVoteStore
	sender      *fakeSender
	svc         *RewardService
	epochStart  time.Time
}

func newRewardFixture(t *testing.T) *rewardFixture {
	t.Helper()
	f := &rewardFixture{
		epochs:      newFakeEpochStore(),
		predictions: newFakePredictionStore(),
		voterPool:   newFakeRewardStore(),
		votes:       newFakeVoteStore(),
		sender:      newFakeSender(),
		epochStart:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f.svc = NewRewardService(f.predictions, f.voterPool, f.votes, f.epochs,
		f.sender, metrics.New(), testLogger())

	ctx := context.Background()
	_, err := f.epochs.Create(ctx, 1, f.epochStart, 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.epochs.MarkEnded(ctx, 1, "asset-w", "creator-w", false, f.epochStart.Add(24*time.Hour)))
	return f
}

func (f *rewardFixture) predict(t *testing.T, wallet string, direction domain.PredictionDirection, after time.Duration) {
	t.Helper()
	require.NoError(t, f.predictions.Insert(context.Background(), domain.Prediction{
		Wallet:      wallet,
		Candidate:   "asset-w",
		EpochNumber: 1,
		Direction:   direction,
		CreatedAt:   f.epochStart.Add(after),
	}))
}

func settledAuction(bid int64) domain.Auction {
	return domain.Auction{
		ID:            1,
		EpochNumber:   1,
		AssetAddress:  "asset-w",
		Creator:       "creator-w",
		CurrentBid:    bid,
		CurrentBidder: "bidder-1",
	}
}

func TestDecayWeight(t *testing.T) {
	assert.Equal(t, int64(1_000_000), decayWeight(0))
	assert.Equal(t, int64(500_000), decayWeight(60))
	assert.Equal(t, int64(250_000), decayWeight(180))
	// Clock skew cannot push a prediction before epoch start.
	assert.Equal(t, int64(1_000_000), decayWeight(-5))
}

func TestPredictionPoolWeightsEarlyPredictions(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	f.predict(t, "early", domain.PredictYes, 0)
	f.predict(t, "late", domain.PredictYes, time.Hour)

	bid := int64(1_000_000_000)
	require.NoError(t, f.svc.DistributeForSettlement(ctx, settledAuction(bid)))

	pool := bid * 1000 / 10_000
	correct, err := f.predictions.ListCorrect(ctx, 1)
	require.NoError(t, err)
	require.Len(t, correct, 2)

	byWallet := make(map[string]int64)
	var total int64
	for _, p := range correct {
		byWallet[p.Wallet] = p.RewardLamports
		total += p.RewardLamports
	}

	// Minute 0 carries weight 1e6, minute 60 weight 5e5: a 2:1 split.
	assert.Equal(t, pool*2/3, byWallet["early"])
	assert.Equal(t, pool/3, byWallet["late"])
	assert.LessOrEqual(t, total, pool)
}

func TestPredictionPoolSkipsWrongAndSkipped(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	f.predict(t, "right", domain.PredictYes, 0)
	f.predict(t, "skipper", domain.PredictSkip, 0)
	require.NoError(t, f.predictions.Insert(ctx, domain.Prediction{
		Wallet: "wrong", Candidate: "asset-loser", EpochNumber: 1,
		Direction: domain.PredictYes, CreatedAt: f.epochStart,
	}))

	bid := int64(1_000_000_000)
	require.NoError(t, f.svc.DistributeForSettlement(ctx, settledAuction(bid)))

	correct, err := f.predictions.ListCorrect(ctx, 1)
	require.NoError(t, err)
	require.Len(t, correct, 1)
	assert.Equal(t, "right", correct[0].Wallet)
	assert.Equal(t, bid*1000/10_000, correct[0].RewardLamports)
}

func TestVoterPoolDoublesFreeVotes(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	require.NoError(t, f.votes.InsertFree(ctx, domain.Vote{
		Voter: "free-voter", Candidate: "asset-w", EpochNumber: 1,
	}))
	require.NoError(t, f.votes.InsertPaid(ctx, domain.Vote{
		Voter: "paid-voter", Candidate: "asset-w", EpochNumber: 1, Count: 2,
	}))
	require.NoError(t, f.votes.InsertPaid(ctx, domain.Vote{
		Voter: "small-voter", Candidate: "asset-w", EpochNumber: 1, Count: 1,
	}))

	bid := int64(1_000_000_000)
	require.NoError(t, f.svc.DistributeForSettlement(ctx, settledAuction(bid)))

	pool := bid * 2000 / 10_000
	share := func(wallet string) int64 {
		rewards, err := f.voterPool.ListByWallet(ctx, wallet)
		require.NoError(t, err)
		require.Len(t, rewards, 1)
		return rewards[0].RewardLamports
	}

	// Weights: one free vote counts 2, two paid votes count 2, one paid
	// vote counts 1. Total weight 5.
	assert.Equal(t, pool*2/5, share("free-voter"))
	assert.Equal(t, pool*2/5, share("paid-voter"))
	assert.Equal(t, pool*1/5, share("small-voter"))
}

func TestVoterPoolAggregatesPerWallet(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	require.NoError(t, f.votes.InsertFree(ctx, domain.Vote{
		Voter: "repeat", Candidate: "asset-w", EpochNumber: 1,
	}))
	require.NoError(t, f.votes.InsertPaid(ctx, domain.Vote{
		Voter: "repeat", Candidate: "asset-w", EpochNumber: 1, Count: 3,
	}))

	bid := int64(1_000_000_000)
	require.NoError(t, f.svc.DistributeForSettlement(ctx, settledAuction(bid)))

	rewards, err := f.voterPool.ListByWallet(ctx, "repeat")
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, int64(5), rewards[0].Weight)
	assert.Equal(t, bid*2000/10_000, rewards[0].RewardLamports)
}

func TestDistributeIsReplaySafe(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	f.predict(t, "seer", domain.PredictYes, 0)
	require.NoError(t, f.votes.InsertFree(ctx, domain.Vote{
		Voter: "voter-1", Candidate: "asset-w", EpochNumber: 1,
	}))

	a := settledAuction(1_000_000_000)
	require.NoError(t, f.svc.DistributeForSettlement(ctx, a))
	require.NoError(t, f.svc.DistributeForSettlement(ctx, a))

	correct, err := f.predictions.ListCorrect(ctx, 1)
	require.NoError(t, err)
	require.Len(t, correct, 1)
	assert.Equal(t, a.CurrentBid*1000/10_000, correct[0].RewardLamports)

	shares, err := f.voterPool.ListByWallet(ctx, "voter-1")
	require.NoError(t, err)
	assert.Len(t, shares, 1)
}

func TestClaimPaysBothPoolsInOneTransfer(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	f.predict(t, "wallet-1", domain.PredictYes, 0)
	require.NoError(t, f.votes.InsertFree(ctx, domain.Vote{
		Voter: "wallet-1", Candidate: "asset-w", EpochNumber: 1,
	}))

	bid := int64(1_000_000_000)
	require.NoError(t, f.svc.DistributeForSettlement(ctx, settledAuction(bid)))

	expected := bid*1000/10_000 + bid*2000/10_000
	state, err := f.svc.Rewards(ctx, "wallet-1")
	require.NoError(t, err)
	assert.Equal(t, expected, state.Unclaimed)

	res, err := f.svc.Claim(ctx, "wallet-1")
	require.NoError(t, err)
	assert.Equal(t, expected, res.Lamports)
	assert.Equal(t, 2, res.Items)
	assert.NotEmpty(t, res.Signature)
	assert.Equal(t, expected, f.sender.sentTo("wallet-1"))

	// Nothing left after the claim.
	state, err = f.svc.Rewards(ctx, "wallet-1")
	require.NoError(t, err)
	assert.Zero(t, state.Unclaimed)

	_, err = f.svc.Claim(ctx, "wallet-1")
	assert.ErrorIs(t, err, domain.ErrNoRewards)
}

func TestClaimLeavesRowsUnclaimedOnTransferFailure(t *testing.T) {
	f := newRewardFixture(t)
	ctx := context.Background()

	f.predict(t, "wallet-1", domain.PredictYes, 0)
	bid := int64(1_000_000_000)
	require.NoError(t, f.svc.DistributeForSettlement(ctx, settledAuction(bid)))

	f.sender.failFor["wallet-1"] = errors.New("rpc timeout")
	_, err := f.svc.Claim(ctx, "wallet-1")
	require.Error(t, err)

	delete(f.sender.failFor, "wallet-1")
	res, err := f.svc.Claim(ctx, "wallet-1")
	require.NoError(t, err)
	assert.Equal(t, bid*1000/10_000, res.Lamports)
}

func TestClaimWithNoRewards(t *testing.T) {
	f := newRewardFixture(t)
	_, err := f.svc.Claim(context.Background(), "wallet-none")
	assert.ErrorIs(t, err, domain.ErrNoRewards)
}
