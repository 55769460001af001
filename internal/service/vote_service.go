package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
	"github.com/vaultline/artkey/internal/pricing"
)

// maxPaidVotesPerPurchase bounds one quote so a single confirm cannot sweep
// an unbounded number of tiers.
const maxPaidVotesPerPurchase = 100

// VoteConfig holds voting policy and destination wallets.
type VoteConfig struct {
	BaseVotePrice        int64
	TreasuryWallet       string
	MembershipCollection string
	FounderCollection    string
}

// VoteQuote is the priced, unsigned paid-vote transaction handed to the user.
type VoteQuote struct {
	Tx        domain.UnsignedTx
	Count     int64
	Lamports  int64
	UnitPrice int64
}

// VoteService handles free votes, the paid-vote quote/confirm flow, and
// swipe predictions.
type VoteService struct {
	epochs      *EpochService
	candidates  domain.CandidateStore
	votes       domain.VoteStore
	predictions domain.PredictionStore
	state       domain.StateStore
	ledger      domain.LedgerClient
	cache       domain.LeaderboardCache
	bus         domain.SignalBus
	metrics     *metrics.Metrics
	logger      *slog.Logger
	cfg         VoteConfig
}

// NewVoteService creates a VoteService with all required dependencies.
func NewVoteService(
	epochs *EpochService,
	candidates domain.CandidateStore,
	votes domain.VoteStore,
	predictions domain.PredictionStore,
	state domain.StateStore,
	ledger domain.LedgerClient,
	cache domain.LeaderboardCache,
	bus domain.SignalBus,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg VoteConfig,
) *VoteService {
	return &VoteService{
		epochs:      epochs,
		candidates:  candidates,
		votes:       votes,
		predictions: predictions,
		state:       state,
		ledger:      ledger,
		cache:       cache,
		bus:         bus,
		metrics:     m,
		logger:      logger,
		cfg:         cfg,
	}
}

// liveCandidate loads a candidate and rejects ones out of competition.
func (s *VoteService) liveCandidate(ctx context.Context, asset string) (domain.Candidate, error) {
	c, err := s.candidates.GetByAsset(ctx, asset)
	if err != nil {
		return domain.Candidate{}, err
	}
	if c.Won {
		return domain.Candidate{}, domain.ErrCandidateWon
	}
	if c.Withdrawn {
		return domain.Candidate{}, domain.ErrCandidateGone
	}
	return c, nil
}

// eligibleForFreeVote reports whether the wallet holds a membership or
// founder-key asset. Ledger errors report ineligible: a voter is never
// granted a free vote on the strength of a failed query.
func (s *VoteService) eligibleForFreeVote(ctx context.Context, wallet string) bool {
	for _, collection := range []string{s.cfg.MembershipCollection, s.cfg.FounderCollection} {
		if collection == "" {
			continue
		}
		n, err := s.ledger.CountHoldings(ctx, wallet, collection)
		if err != nil {
			s.logger.WarnContext(ctx, "vote_service: holder query failed, treating as ineligible",
				slog.String("wallet", wallet),
				slog.String("collection", collection),
				slog.String("error", err.Error()))
			continue
		}
		if n > 0 {
			return true
		}
	}
	return false
}

// FreeVote casts the voter's one free vote for a candidate this epoch and
// returns the candidate with its updated tally.
func (s *VoteService) FreeVote(ctx context.Context, voter, candidate string) (domain.Candidate, error) {
	if err := ensureLive(ctx, s.state); err != nil {
		return domain.Candidate{}, err
	}

	epoch, err := s.epochs.Current(ctx)
	if err != nil {
		return domain.Candidate{}, err
	}

	c, err := s.liveCandidate(ctx, candidate)
	if err != nil {
		return domain.Candidate{}, err
	}

	if !s.eligibleForFreeVote(ctx, voter) {
		return domain.Candidate{}, domain.ErrNotEligible
	}

	if err := s.votes.InsertFree(ctx, domain.Vote{
		Voter:       voter,
		Candidate:   candidate,
		EpochNumber: epoch.Number,
	}); err != nil {
		return domain.Candidate{}, err
	}

	total, err := s.candidates.AddVotes(ctx, candidate, 1)
	if err != nil {
		return domain.Candidate{}, err
	}
	c.Votes = total

	s.recordYesPrediction(ctx, voter, candidate, epoch.Number)
	s.afterVote(ctx, epoch.Number, c, "free", 1, 0)
	return c, nil
}

// PaidVoteQuote prices count marginal votes at the candidate's current tally
// and returns the unsigned voter-to-treasury transfer. Nothing is persisted;
// the price is recomputed at confirm time against the tally then current.
func (s *VoteService) PaidVoteQuote(ctx context.Context, voter, candidate string, count int64) (VoteQuote, error) {
	if err := ensureLive(ctx, s.state); err != nil {
		return VoteQuote{}, err
	}
	if count < 1 || count > maxPaidVotesPerPurchase {
		return VoteQuote{}, fmt.Errorf("vote_service: count must be 1-%d: %w", maxPaidVotesPerPurchase, domain.ErrNotEligible)
	}

	if _, err := s.epochs.Current(ctx); err != nil {
		return VoteQuote{}, err
	}
	c, err := s.liveCandidate(ctx, candidate)
	if err != nil {
		return VoteQuote{}, err
	}

	total := pricing.BatchVotePrice(s.cfg.BaseVotePrice, c.Votes, count)
	tx, err := s.ledger.BuildTransfer(ctx, voter, s.cfg.TreasuryWallet, total)
	if err != nil {
		return VoteQuote{}, fmt.Errorf("vote_service: build transfer: %w", err)
	}

	return VoteQuote{
		Tx:        tx,
		Count:     count,
		Lamports:  total,
		UnitPrice: pricing.VotePrice(s.cfg.BaseVotePrice, c.Votes),
	}, nil
}

// PaidVoteConfirm verifies the payment signature, reprices the purchase
// against the current tally, and records the votes. A quote gone stale
// between quote and confirm settles at the recomputed price.
func (s *VoteService) PaidVoteConfirm(ctx context.Context, voter, candidate string, count int64, signature string) (domain.Candidate, error) {
	if err := ensureLive(ctx, s.state); err != nil {
		return domain.Candidate{}, err
	}
	if count < 1 || count > maxPaidVotesPerPurchase {
		return domain.Candidate{}, domain.ErrNotEligible
	}

	status, err := s.ledger.ConfirmSignature(ctx, signature)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("vote_service: confirm signature: %w", err)
	}
	if status.Err != "" {
		return domain.Candidate{}, fmt.Errorf("vote_service: %s: %w", status.Err, domain.ErrTxFailed)
	}
	if !status.Confirmed {
		return domain.Candidate{}, domain.ErrNotConfirmed
	}

	epoch, err := s.epochs.Current(ctx)
	if err != nil {
		return domain.Candidate{}, err
	}
	c, err := s.liveCandidate(ctx, candidate)
	if err != nil {
		return domain.Candidate{}, err
	}

	cost := pricing.BatchVotePrice(s.cfg.BaseVotePrice, c.Votes, count)

	if err := s.votes.InsertPaid(ctx, domain.Vote{
		Voter:        voter,
		Candidate:    candidate,
		EpochNumber:  epoch.Number,
		Count:        count,
		CostLamports: cost,
	}); err != nil {
		return domain.Candidate{}, err
	}

	total, err := s.candidates.AddVotes(ctx, candidate, count)
	if err != nil {
		return domain.Candidate{}, err
	}
	c.Votes = total

	s.recordYesPrediction(ctx, voter, candidate, epoch.Number)
	s.afterVote(ctx, epoch.Number, c, "paid", count, cost)
	return c, nil
}

// Predict records a swipe prediction for the wallet on a candidate.
func (s *VoteService) Predict(ctx context.Context, wallet, candidate string, direction domain.PredictionDirection) error {
	if err := ensureLive(ctx, s.state); err != nil {
		return err
	}
	if direction != domain.PredictYes && direction != domain.PredictSkip {
		return fmt.Errorf("vote_service: unknown direction %q: %w", direction, domain.ErrNotEligible)
	}

	epoch, err := s.epochs.Current(ctx)
	if err != nil {
		return err
	}
	if _, err := s.liveCandidate(ctx, candidate); err != nil {
		return err
	}

	return s.predictions.Insert(ctx, domain.Prediction{
		Wallet:      wallet,
		Candidate:   candidate,
		EpochNumber: epoch.Number,
		Direction:   direction,
	})
}

// Deck returns the candidates the wallet has not yet predicted on this epoch.
func (s *VoteService) Deck(ctx context.Context, wallet string) ([]domain.Candidate, error) {
	epoch, err := s.epochs.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.predictions.ListUnswiped(ctx, wallet, epoch.Number)
}

// Stats returns a wallet's aggregate prediction record.
func (s *VoteService) Stats(ctx context.Context, wallet string) (domain.PredictionStats, error) {
	return s.predictions.Stats(ctx, wallet)
}

// recordYesPrediction rides a yes-prediction on a vote. A duplicate from an
// earlier swipe or vote is expected and ignored.
func (s *VoteService) recordYesPrediction(ctx context.Context, wallet, candidate string, epoch int64) {
	err := s.predictions.Insert(ctx, domain.Prediction{
		Wallet:      wallet,
		Candidate:   candidate,
		EpochNumber: epoch,
		Direction:   domain.PredictYes,
	})
	if err != nil && !errors.Is(err, domain.ErrAlreadySwiped) {
		s.logger.WarnContext(ctx, "vote_service: ride-on prediction failed",
			slog.String("wallet", wallet),
			slog.String("candidate", candidate),
			slog.String("error", err.Error()))
	}
}

// afterVote handles the shared post-vote bookkeeping: cache invalidation,
// metrics, and the leaderboard event.
func (s *VoteService) afterVote(ctx context.Context, epoch int64, c domain.Candidate, voteType string, count, cost int64) {
	if err := s.cache.Invalidate(ctx, epoch); err != nil {
		s.logger.WarnContext(ctx, "vote_service: leaderboard invalidate failed",
			slog.Int64("epoch", epoch), slog.String("error", err.Error()))
	}

	s.metrics.VotesCast.WithLabelValues(voteType).Add(float64(count))

	s.logger.InfoContext(ctx, "vote_service: vote recorded",
		slog.String("candidate", c.AssetAddress),
		slog.String("type", voteType),
		slog.Int64("count", count),
		slog.Int64("cost", cost),
		slog.Int64("tally", c.Votes))

	publishEvent(ctx, s.bus, s.logger, ChannelVote, "vote", map[string]any{
		"epoch":     epoch,
		"candidate": c.AssetAddress,
		"type":      voteType,
		"count":     count,
		"tally":     c.Votes,
	})
}
