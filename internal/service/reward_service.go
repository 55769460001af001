package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
)

// Revenue split of the winning bid, in basis points.
const (
	predictionPoolBps = 1000 // 10% to correct predictors, time-decayed
	voterPoolBps      = 2000 // 20% to the winner's voters, free votes 2x
)

// microWeight is the fixed-point scale for the time-decay weight. The decay
// 1/(1+minutes/60) is computed as 60e6/(60+minutes) so shares divide in
// integer space with no float drift.
const microWeight = 1_000_000

// freeVoteWeightFactor doubles the reward weight of free votes relative to
// paid ones.
const freeVoteWeightFactor = 2

// ClaimResult reports a paid-out claim.
type ClaimResult struct {
	Lamports  int64
	Signature string
	Items     int
}

// WalletRewards is the read-side view of a wallet's reward state.
type WalletRewards struct {
	Predictions []domain.Prediction
	VoterShares []domain.VoterReward
	Unclaimed   int64
}

// RewardService grades predictions at settlement, carves the prediction and
// voter pools out of the winning bid, and pays claims from the authority
// wallet.
type RewardService struct {
	predictions domain.PredictionStore
	rewards     domain.RewardStore
	votes       domain.VoteStore
	epochs      domain.EpochStore
	sender      domain.AuthoritySender
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewRewardService creates a RewardService with all required dependencies.
func NewRewardService(
	predictions domain.PredictionStore,
	rewards domain.RewardStore,
	votes domain.VoteStore,
	epochs domain.EpochStore,
	sender domain.AuthoritySender,
	m *metrics.Metrics,
	logger *slog.Logger,
) *RewardService {
	return &RewardService{
		predictions: predictions,
		rewards:     rewards,
		votes:       votes,
		epochs:      epochs,
		sender:      sender,
		metrics:     m,
		logger:      logger,
	}
}

// decayWeight returns the micro-weight of a prediction made minutes after
// epoch start: full weight at minute zero, half at one hour.
func decayWeight(minutes int64) int64 {
	if minutes < 0 {
		minutes = 0
	}
	return microWeight * 60 / (60 + minutes)
}

// DistributeForSettlement grades the epoch's predictions against the winner
// and writes out both reward pools. Grading is gated on ungraded rows and
// the voter-share insert is conflict-free, so a retried settlement tick
// cannot double-pay.
func (s *RewardService) DistributeForSettlement(ctx context.Context, a domain.Auction) error {
	epoch, err := s.epochs.GetByNumber(ctx, a.EpochNumber)
	if err != nil {
		return fmt.Errorf("reward_service: epoch %d: %w", a.EpochNumber, err)
	}

	if err := s.predictions.GradeEpoch(ctx, a.EpochNumber, a.AssetAddress); err != nil {
		return fmt.Errorf("reward_service: grade epoch %d: %w", a.EpochNumber, err)
	}
	s.metrics.PredictionsGraded.Inc()

	if err := s.distributePredictionPool(ctx, a, epoch.StartTime); err != nil {
		return err
	}
	return s.distributeVoterPool(ctx, a)
}

// distributePredictionPool splits the prediction pool across correct
// predictions, weighted by how early each was made. Floor division leaves
// the remainder unallocated.
func (s *RewardService) distributePredictionPool(ctx context.Context, a domain.Auction, epochStart time.Time) error {
	pool := a.CurrentBid * predictionPoolBps / 10_000
	if pool <= 0 {
		return nil
	}

	correct, err := s.predictions.ListCorrect(ctx, a.EpochNumber)
	if err != nil {
		return fmt.Errorf("reward_service: list correct epoch %d: %w", a.EpochNumber, err)
	}
	if len(correct) == 0 {
		return nil
	}

	weights := make([]int64, len(correct))
	var totalWeight int64
	for i, p := range correct {
		minutes := int64(p.CreatedAt.Sub(epochStart).Minutes())
		weights[i] = decayWeight(minutes)
		totalWeight += weights[i]
	}
	if totalWeight <= 0 {
		return nil
	}

	var allocated int64
	for i, p := range correct {
		reward := weights[i] * pool / totalWeight
		if reward <= 0 {
			continue
		}
		if err := s.predictions.SetReward(ctx, p.ID, reward); err != nil {
			return fmt.Errorf("reward_service: set reward %d: %w", p.ID, err)
		}
		allocated += reward
	}

	s.logger.InfoContext(ctx, "reward_service: prediction pool distributed",
		slog.Int64("epoch", a.EpochNumber),
		slog.Int64("pool", pool),
		slog.Int64("allocated", allocated),
		slog.Int("winners", len(correct)))
	return nil
}

// distributeVoterPool splits the voter pool across wallets that voted for
// the winner, weighted by vote count with free votes doubled.
func (s *RewardService) distributeVoterPool(ctx context.Context, a domain.Auction) error {
	pool := a.CurrentBid * voterPoolBps / 10_000
	if pool <= 0 {
		return nil
	}

	votes, err := s.votes.ListForCandidate(ctx, a.EpochNumber, a.AssetAddress)
	if err != nil {
		return fmt.Errorf("reward_service: list winner votes epoch %d: %w", a.EpochNumber, err)
	}
	if len(votes) == 0 {
		return nil
	}

	weightByWallet := make(map[string]int64)
	order := make([]string, 0, len(votes))
	var totalWeight int64
	for _, v := range votes {
		count := v.Count
		if count <= 0 {
			count = 1
		}
		w := count
		if v.Type == domain.VoteTypeFree {
			w = count * freeVoteWeightFactor
		}
		if _, seen := weightByWallet[v.Voter]; !seen {
			order = append(order, v.Voter)
		}
		weightByWallet[v.Voter] += w
		totalWeight += w
	}
	if totalWeight <= 0 {
		return nil
	}

	shares := make([]domain.VoterReward, 0, len(order))
	for _, wallet := range order {
		w := weightByWallet[wallet]
		reward := w * pool / totalWeight
		if reward <= 0 {
			continue
		}
		shares = append(shares, domain.VoterReward{
			Wallet:         wallet,
			EpochNumber:    a.EpochNumber,
			Weight:         w,
			TotalWeight:    totalWeight,
			RewardLamports: reward,
		})
	}

	if err := s.rewards.InsertBatch(ctx, shares); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "reward_service: voter pool distributed",
		slog.Int64("epoch", a.EpochNumber),
		slog.Int64("pool", pool),
		slog.Int("wallets", len(shares)))
	return nil
}

// Rewards returns a wallet's full reward state for the read endpoint.
func (s *RewardService) Rewards(ctx context.Context, wallet string) (WalletRewards, error) {
	preds, err := s.predictions.ListUnclaimed(ctx, wallet)
	if err != nil {
		return WalletRewards{}, err
	}
	shares, err := s.rewards.ListByWallet(ctx, wallet)
	if err != nil {
		return WalletRewards{}, err
	}

	var unclaimed int64
	for _, p := range preds {
		unclaimed += p.RewardLamports
	}
	for _, r := range shares {
		if !r.Claimed {
			unclaimed += r.RewardLamports
		}
	}
	return WalletRewards{Predictions: preds, VoterShares: shares, Unclaimed: unclaimed}, nil
}

// Claim pays out every unclaimed reward the wallet holds, both pools, in one
// authority transfer. Rows are marked claimed only after the transfer is
// submitted, with its signature.
func (s *RewardService) Claim(ctx context.Context, wallet string) (ClaimResult, error) {
	preds, err := s.predictions.ListUnclaimed(ctx, wallet)
	if err != nil {
		return ClaimResult{}, err
	}
	shares, err := s.rewards.ListUnclaimed(ctx, wallet)
	if err != nil {
		return ClaimResult{}, err
	}

	var total int64
	predIDs := make([]int64, 0, len(preds))
	for _, p := range preds {
		total += p.RewardLamports
		predIDs = append(predIDs, p.ID)
	}
	shareIDs := make([]int64, 0, len(shares))
	for _, r := range shares {
		total += r.RewardLamports
		shareIDs = append(shareIDs, r.ID)
	}

	if total <= 0 {
		return ClaimResult{}, domain.ErrNoRewards
	}

	sig, err := s.sender.SendFromAuthority(ctx, wallet, total)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("reward_service: claim payout: %w", err)
	}

	if err := s.predictions.MarkClaimed(ctx, predIDs, sig); err != nil {
		return ClaimResult{}, err
	}
	if err := s.rewards.MarkClaimed(ctx, shareIDs, sig); err != nil {
		return ClaimResult{}, err
	}

	s.logger.InfoContext(ctx, "reward_service: rewards claimed",
		slog.String("wallet", wallet),
		slog.Int64("lamports", total),
		slog.String("signature", sig))

	return ClaimResult{Lamports: total, Signature: sig, Items: len(predIDs) + len(shareIDs)}, nil
}
