package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vaultline/artkey/internal/domain"
)

// RegistryConfig holds the join policy.
type RegistryConfig struct {
	JoinFee        int64
	TreasuryWallet string
	ArtCollection  string
}

// JoinQuote is the unsigned join-fee transaction handed to the creator.
type JoinQuote struct {
	Tx       domain.UnsignedTx
	Lamports int64
}

// RegistryService manages competition entry: join quote/confirm, withdrawal,
// and the candidate/leaderboard read paths.
type RegistryService struct {
	epochs     *EpochService
	candidates domain.CandidateStore
	auctions   domain.AuctionStore
	state      domain.StateStore
	ledger     domain.LedgerClient
	assets     domain.AssetService
	sender     domain.AuthoritySender
	cache      domain.LeaderboardCache
	bus        domain.SignalBus
	logger     *slog.Logger
	cfg        RegistryConfig
	httpClient *http.Client
}

// NewRegistryService creates a RegistryService with all required dependencies.
func NewRegistryService(
	epochs *EpochService,
	candidates domain.CandidateStore,
	auctions domain.AuctionStore,
	state domain.StateStore,
	ledger domain.LedgerClient,
	assets domain.AssetService,
	sender domain.AuthoritySender,
	cache domain.LeaderboardCache,
	bus domain.SignalBus,
	logger *slog.Logger,
	cfg RegistryConfig,
) *RegistryService {
	return &RegistryService{
		epochs:     epochs,
		candidates: candidates,
		auctions:   auctions,
		state:      state,
		ledger:     ledger,
		assets:     assets,
		sender:     sender,
		cache:      cache,
		bus:        bus,
		logger:     logger,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// verifyJoinable checks on-chain ownership and collection membership.
func (s *RegistryService) verifyJoinable(ctx context.Context, wallet, asset string) (domain.AssetInfo, error) {
	info, err := s.assets.FetchAsset(ctx, asset)
	if err != nil {
		return domain.AssetInfo{}, fmt.Errorf("registry_service: fetch asset: %w", err)
	}
	if info.Owner != wallet {
		return domain.AssetInfo{}, domain.ErrNotOwner
	}
	if info.Collection != s.cfg.ArtCollection {
		return domain.AssetInfo{}, domain.ErrWrongCollection
	}
	return info, nil
}

// JoinQuote verifies the asset and returns the unsigned join-fee transfer.
// Nothing is persisted; entry happens at confirm time.
func (s *RegistryService) JoinQuote(ctx context.Context, wallet, asset string) (JoinQuote, error) {
	if err := ensureLive(ctx, s.state); err != nil {
		return JoinQuote{}, err
	}

	if _, err := s.verifyJoinable(ctx, wallet, asset); err != nil {
		return JoinQuote{}, err
	}

	existing, err := s.candidates.GetByAsset(ctx, asset)
	switch {
	case err == nil && !existing.Withdrawn:
		return JoinQuote{}, domain.ErrAlreadyExists
	case err == nil && existing.Withdrawn:
		// A withdrawn piece stays out; its tally is frozen history.
		return JoinQuote{}, domain.ErrCandidateGone
	case !errors.Is(err, domain.ErrNotFound):
		return JoinQuote{}, err
	}

	tx, err := s.ledger.BuildTransfer(ctx, wallet, s.cfg.TreasuryWallet, s.cfg.JoinFee)
	if err != nil {
		return JoinQuote{}, fmt.Errorf("registry_service: build transfer: %w", err)
	}
	return JoinQuote{Tx: tx, Lamports: s.cfg.JoinFee}, nil
}

// JoinConfirm verifies the fee payment, takes the asset into vault custody,
// and registers the candidate in the current epoch.
func (s *RegistryService) JoinConfirm(ctx context.Context, wallet, asset, signature string) (domain.Candidate, error) {
	if err := ensureLive(ctx, s.state); err != nil {
		return domain.Candidate{}, err
	}

	status, err := s.ledger.ConfirmSignature(ctx, signature)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("registry_service: confirm signature: %w", err)
	}
	if status.Err != "" {
		return domain.Candidate{}, fmt.Errorf("registry_service: %s: %w", status.Err, domain.ErrTxFailed)
	}
	if !status.Confirmed {
		return domain.Candidate{}, domain.ErrNotConfirmed
	}

	// Ownership may have changed between quote and confirm.
	info, err := s.verifyJoinable(ctx, wallet, asset)
	if err != nil {
		return domain.Candidate{}, err
	}

	if _, err := s.assets.TransferOwnership(ctx, asset, s.sender.AuthorityAddress()); err != nil {
		return domain.Candidate{}, fmt.Errorf("registry_service: custody transfer: %w", err)
	}

	epoch, err := s.epochs.Current(ctx)
	if err != nil {
		return domain.Candidate{}, err
	}

	c := domain.Candidate{
		AssetAddress: asset,
		Creator:      wallet,
		Name:         info.Name,
		URI:          info.URI,
		EpochJoined:  epoch.Number,
	}
	c.ImageURL, c.AnimationURL = s.fetchMedia(ctx, info.URI)

	if err := s.candidates.Upsert(ctx, c); err != nil {
		return domain.Candidate{}, err
	}

	s.logger.InfoContext(ctx, "registry_service: candidate joined",
		slog.String("asset", asset),
		slog.String("creator", wallet),
		slog.Int64("epoch", epoch.Number))

	publishEvent(ctx, s.bus, s.logger, ChannelEpoch, "candidate_joined", map[string]any{
		"asset":   asset,
		"creator": wallet,
		"epoch":   epoch.Number,
	})
	return c, nil
}

// fetchMedia pulls image and animation URLs out of the asset's metadata
// JSON. Best-effort: a dead URI leaves the fields empty.
func (s *RegistryService) fetchMedia(ctx context.Context, uri string) (image, animation string) {
	if uri == "" {
		return "", ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", ""
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "registry_service: metadata fetch failed",
			slog.String("uri", uri), slog.String("error", err.Error()))
		return "", ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", ""
	}

	var meta struct {
		Image        string `json:"image"`
		AnimationURL string `json:"animation_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", ""
	}
	return meta.Image, meta.AnimationURL
}

// Withdraw pulls a candidate out of competition at its creator's request and
// returns the asset from vault custody. The tally is preserved as history.
func (s *RegistryService) Withdraw(ctx context.Context, wallet, asset string) error {
	if err := ensureLive(ctx, s.state); err != nil {
		return err
	}

	c, err := s.candidates.GetByAsset(ctx, asset)
	if err != nil {
		return err
	}
	if c.Creator != wallet {
		return domain.ErrNotOwner
	}
	if c.Won {
		return domain.ErrCandidateWon
	}
	if c.Withdrawn {
		return domain.ErrCandidateGone
	}

	// A piece heading into or sitting in an auction is locked.
	if _, err := s.auctions.GetOpenByAsset(ctx, asset); err == nil {
		return domain.ErrCandidateWon
	} else if !errors.Is(err, domain.ErrNoAuction) {
		return err
	}

	if _, err := s.assets.TransferOwnership(ctx, asset, wallet); err != nil {
		return fmt.Errorf("registry_service: return asset: %w", err)
	}

	if err := s.candidates.MarkWithdrawn(ctx, asset); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "registry_service: candidate withdrawn",
		slog.String("asset", asset), slog.String("creator", wallet))
	return nil
}

// Candidates returns every candidate still in competition.
func (s *RegistryService) Candidates(ctx context.Context) ([]domain.Candidate, error) {
	return s.candidates.ListActive(ctx)
}

// Leaderboard returns the current epoch's standings, served from the cache
// when warm.
func (s *RegistryService) Leaderboard(ctx context.Context) ([]domain.Candidate, error) {
	epoch, err := s.epochs.Current(ctx)
	if err != nil {
		return nil, err
	}

	if cached, ok, err := s.cache.Get(ctx, epoch.Number); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.logger.WarnContext(ctx, "registry_service: leaderboard cache read failed",
			slog.String("error", err.Error()))
	}

	cands, err := s.candidates.ListEligible(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, epoch.Number, cands); err != nil {
		s.logger.WarnContext(ctx, "registry_service: leaderboard cache write failed",
			slog.String("error", err.Error()))
	}
	return cands, nil
}
