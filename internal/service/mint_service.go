package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vaultline/artkey/internal/domain"
)

// MintConfig holds the mint policy.
type MintConfig struct {
	MintFee         int64
	TreasuryWallet  string
	ArtCollection   string
	MetadataBaseURI string
	NamePrefix      string
}

// MintQuote is the partially-signed mint transaction handed to the user.
type MintQuote struct {
	Tx           domain.UnsignedTx
	AssetAddress string
	Number       int64
	Lamports     int64
}

// MintService issues new pieces into the art collection via the two-phase
// quote/confirm flow: the quote fixes the asset address and fee, the confirm
// verifies the signed mint landed.
type MintService struct {
	minter domain.MintBuilder
	ledger domain.LedgerClient
	assets domain.AssetService
	state  domain.StateStore
	logger *slog.Logger
	cfg    MintConfig
}

// NewMintService creates a MintService with all required dependencies.
func NewMintService(
	minter domain.MintBuilder,
	ledger domain.LedgerClient,
	assets domain.AssetService,
	state domain.StateStore,
	logger *slog.Logger,
	cfg MintConfig,
) *MintService {
	return &MintService{
		minter: minter,
		ledger: ledger,
		assets: assets,
		state:  state,
		logger: logger,
		cfg:    cfg,
	}
}

// pieceName returns the sequential display name for mint number n.
func (s *MintService) pieceName(n int64) string {
	prefix := s.cfg.NamePrefix
	if prefix == "" {
		prefix = "ArtKey"
	}
	return fmt.Sprintf("%s #%d", prefix, n)
}

// pieceURI returns the metadata URI for mint number n, empty when no base is
// configured.
func (s *MintService) pieceURI(n int64) string {
	if s.cfg.MetadataBaseURI == "" {
		return ""
	}
	return fmt.Sprintf("%s/%d.json", s.cfg.MetadataBaseURI, n)
}

// Quote builds the mint transaction for the next sequential piece. The mint
// counter is not advanced; an abandoned quote costs nothing.
func (s *MintService) Quote(ctx context.Context, wallet string) (MintQuote, error) {
	if err := ensureLive(ctx, s.state); err != nil {
		return MintQuote{}, err
	}

	st, err := s.state.Get(ctx)
	if err != nil {
		return MintQuote{}, err
	}
	next := st.TotalMinted + 1

	tx, asset, err := s.minter.BuildMint(ctx,
		wallet, s.pieceName(next), s.pieceURI(next), s.cfg.MintFee, s.cfg.TreasuryWallet)
	if err != nil {
		return MintQuote{}, fmt.Errorf("mint_service: build mint: %w", err)
	}

	return MintQuote{Tx: tx, AssetAddress: asset, Number: next, Lamports: s.cfg.MintFee}, nil
}

// Confirm verifies the mint transaction landed and the asset exists in the
// collection, then advances the mint counter.
func (s *MintService) Confirm(ctx context.Context, wallet, asset, signature string) (int64, error) {
	if err := ensureLive(ctx, s.state); err != nil {
		return 0, err
	}

	status, err := s.ledger.ConfirmSignature(ctx, signature)
	if err != nil {
		return 0, fmt.Errorf("mint_service: confirm signature: %w", err)
	}
	if status.Err != "" {
		return 0, fmt.Errorf("mint_service: %s: %w", status.Err, domain.ErrTxFailed)
	}
	if !status.Confirmed {
		return 0, domain.ErrNotConfirmed
	}

	info, err := s.assets.FetchAsset(ctx, asset)
	if err != nil {
		return 0, fmt.Errorf("mint_service: fetch minted asset: %w", err)
	}
	if info.Collection != s.cfg.ArtCollection {
		return 0, domain.ErrWrongCollection
	}
	if info.Owner != wallet {
		return 0, domain.ErrNotOwner
	}

	total, err := s.state.IncrementMinted(ctx)
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "mint_service: piece minted",
		slog.String("asset", asset),
		slog.String("owner", wallet),
		slog.Int64("number", total))
	return total, nil
}
