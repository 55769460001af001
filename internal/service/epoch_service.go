package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
)

// EpochConfig holds the lifecycle durations and the auction reserve.
type EpochConfig struct {
	EpochDuration   time.Duration
	AuctionDuration time.Duration
	ReserveBid      int64
}

// EpochService owns the voting-epoch boundary: winner selection, auction
// creation, and the single roll-forward that opens the next epoch.
type EpochService struct {
	epochs     domain.EpochStore
	candidates domain.CandidateStore
	auctions   domain.AuctionStore
	bus        domain.SignalBus
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        EpochConfig
	now        func() time.Time
}

// NewEpochService creates an EpochService with all required dependencies.
func NewEpochService(
	epochs domain.EpochStore,
	candidates domain.CandidateStore,
	auctions domain.AuctionStore,
	bus domain.SignalBus,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg EpochConfig,
) *EpochService {
	return &EpochService{
		epochs:     epochs,
		candidates: candidates,
		auctions:   auctions,
		bus:        bus,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Current returns the open voting epoch, bootstrapping it when none exists.
// After a crash between epoch end and roll-forward, the successor is created
// from the latest ended epoch rather than restarting at 1.
func (s *EpochService) Current(ctx context.Context) (domain.Epoch, error) {
	e, err := s.epochs.Current(ctx)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Epoch{}, fmt.Errorf("epoch_service: current: %w", err)
	}

	next := int64(1)
	if latest, lerr := s.epochs.Latest(ctx); lerr == nil {
		next = latest.Number + 1
	} else if !errors.Is(lerr, domain.ErrNotFound) {
		return domain.Epoch{}, fmt.Errorf("epoch_service: latest: %w", lerr)
	}

	created, err := s.epochs.Create(ctx, next, s.now().UTC(), s.cfg.EpochDuration)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost the creation race; the winner's row is the open epoch.
			return s.epochs.Current(ctx)
		}
		return domain.Epoch{}, fmt.Errorf("epoch_service: create epoch %d: %w", next, err)
	}

	s.logger.InfoContext(ctx, "epoch_service: epoch opened",
		slog.Int64("epoch", created.Number))
	return created, nil
}

// EndEpoch closes the current epoch once its duration has elapsed: the top
// eligible candidate is promoted to auction, or the epoch is skipped when no
// candidate has votes. Either way the next epoch opens before returning.
// A not-yet-expired epoch is a no-op.
func (s *EpochService) EndEpoch(ctx context.Context) error {
	e, err := s.Current(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if !e.Expired(now) {
		return nil
	}

	winner, found, err := s.pickWinner(ctx)
	if err != nil {
		return err
	}

	if !found {
		// MarkEnded claims the boundary; a concurrent crank losing this race
		// sees zero rows affected and backs off.
		if err := s.epochs.MarkEnded(ctx, e.Number, "", "", true, now); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("epoch_service: mark epoch %d skipped: %w", e.Number, err)
		}
		if err := s.epochs.Finalize(ctx, e.Number); err != nil {
			return fmt.Errorf("epoch_service: finalize skipped epoch %d: %w", e.Number, err)
		}
		s.metrics.EpochsSkipped.Inc()
		s.metrics.EpochsFinalized.Inc()
		s.logger.InfoContext(ctx, "epoch_service: epoch skipped, no votes",
			slog.Int64("epoch", e.Number))

		publishEvent(ctx, s.bus, s.logger, ChannelEpoch, "epoch_skipped", map[string]any{
			"epoch": e.Number,
		})
		return s.advanceEpoch(ctx, e.Number, now)
	}

	if err := s.epochs.MarkEnded(ctx, e.Number, winner.AssetAddress, winner.Creator, false, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("epoch_service: mark epoch %d ended: %w", e.Number, err)
	}

	if err := s.candidates.MarkWon(ctx, winner.AssetAddress); err != nil {
		return fmt.Errorf("epoch_service: mark winner %s: %w", winner.AssetAddress, err)
	}

	auction, err := s.auctions.Create(ctx, domain.Auction{
		EpochNumber:  e.Number,
		AssetAddress: winner.AssetAddress,
		Creator:      winner.Creator,
		ReserveBid:   s.cfg.ReserveBid,
		StartTime:    now,
		EndTime:      now.Add(s.cfg.AuctionDuration),
	})
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("epoch_service: create auction epoch %d: %w", e.Number, err)
	}

	s.logger.InfoContext(ctx, "epoch_service: epoch ended, auction started",
		slog.Int64("epoch", e.Number),
		slog.String("winner", winner.AssetAddress),
		slog.Int64("votes", winner.Votes),
		slog.Time("auction_end", auction.EndTime))

	publishEvent(ctx, s.bus, s.logger, ChannelEpoch, "epoch_ended", map[string]any{
		"epoch":       e.Number,
		"winner":      winner.AssetAddress,
		"creator":     winner.Creator,
		"votes":       winner.Votes,
		"auction_end": auction.EndTime,
	})

	return s.advanceEpoch(ctx, e.Number, now)
}

// pickWinner returns the highest-ranked eligible candidate with at least one
// vote. The store orders by votes desc, then earliest epoch joined, then
// asset address, so ties resolve deterministically.
func (s *EpochService) pickWinner(ctx context.Context) (domain.Candidate, bool, error) {
	cands, err := s.candidates.ListEligible(ctx)
	if err != nil {
		return domain.Candidate{}, false, fmt.Errorf("epoch_service: list eligible: %w", err)
	}
	if len(cands) > 0 && cands[0].Votes > 0 {
		return cands[0], true, nil
	}
	return domain.Candidate{}, false, nil
}

// advanceEpoch is the single place that opens epoch N+1. The partial unique
// index on open epochs turns a concurrent duplicate into a benign conflict.
func (s *EpochService) advanceEpoch(ctx context.Context, ended int64, now time.Time) error {
	_, err := s.epochs.Create(ctx, ended+1, now, s.cfg.EpochDuration)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("epoch_service: advance to epoch %d: %w", ended+1, err)
	}

	s.logger.InfoContext(ctx, "epoch_service: epoch opened",
		slog.Int64("epoch", ended+1))
	publishEvent(ctx, s.bus, s.logger, ChannelEpoch, "epoch_started", map[string]any{
		"epoch": ended + 1,
	})
	return nil
}
