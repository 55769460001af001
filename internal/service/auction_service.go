package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
	"github.com/vaultline/artkey/internal/pricing"
)

// Creator and operational payouts from the winning bid, in basis points.
// The remainder funds the prediction and voter reward pools.
const (
	creatorPayoutBps = 6000
	teamPayoutBps    = 1000
	growthPayoutBps  = 1000
)

// founderStatusAttribute is the attribute set on a won asset at settlement.
const founderStatusAttribute = "Founder Key"

// AuctionConfig holds the bidding policy and payout destinations.
type AuctionConfig struct {
	TreasuryWallet string
	TeamWallet     string
	GrowthWallet   string
	SnipeWindow    time.Duration
	SnipeExtension time.Duration
}

// BidQuote is the unsigned bid transfer handed to the bidder.
type BidQuote struct {
	Tx         domain.UnsignedTx
	AuctionID  int64
	Lamports   int64
	MinimumBid int64
}

// SettlementRecord is the archived snapshot of one settled auction.
type SettlementRecord struct {
	Auction   domain.Auction `json:"auction"`
	Bids      []domain.Bid   `json:"bids"`
	SettledAt time.Time      `json:"settled_at"`
}

// Archiver persists settlement snapshots to cold storage.
type Archiver interface {
	ArchiveSettlement(ctx context.Context, rec SettlementRecord) error
}

// AuctionService runs the ascending auction: bid quote/confirm with eager
// outbid refunds, settlement, and the refund retry sweep.
type AuctionService struct {
	auctions   domain.AuctionStore
	bids       domain.BidStore
	epochs     domain.EpochStore
	founders   domain.FounderStore
	state      domain.StateStore
	rewards    *RewardService
	assets     domain.AssetService
	sender     domain.AuthoritySender
	ledger     domain.LedgerClient
	archiver   Archiver
	bus        domain.SignalBus
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        AuctionConfig
	now        func() time.Time
}

// NewAuctionService creates an AuctionService with all required dependencies.
// archiver may be nil when cold storage is disabled.
func NewAuctionService(
	auctions domain.AuctionStore,
	bids domain.BidStore,
	epochs domain.EpochStore,
	founders domain.FounderStore,
	state domain.StateStore,
	rewards *RewardService,
	assets domain.AssetService,
	sender domain.AuthoritySender,
	ledger domain.LedgerClient,
	archiver Archiver,
	bus domain.SignalBus,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg AuctionConfig,
) *AuctionService {
	return &AuctionService{
		auctions: auctions,
		bids:     bids,
		epochs:   epochs,
		founders: founders,
		state:    state,
		rewards:  rewards,
		assets:   assets,
		sender:   sender,
		ledger:   ledger,
		archiver: archiver,
		bus:      bus,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// liveAuction returns the open, unexpired auction.
func (s *AuctionService) liveAuction(ctx context.Context) (domain.Auction, error) {
	open, err := s.auctions.ListUnsettled(ctx)
	if err != nil {
		return domain.Auction{}, err
	}
	now := s.now().UTC()
	for _, a := range open {
		if !a.Ended(now) {
			return a, nil
		}
	}
	if len(open) > 0 {
		return domain.Auction{}, domain.ErrAuctionEnded
	}
	return domain.Auction{}, domain.ErrNoAuction
}

// Current returns the most recent auction for the read endpoint.
func (s *AuctionService) Current(ctx context.Context) (domain.Auction, error) {
	return s.auctions.Latest(ctx)
}

// History returns every auction still awaiting settlement plus the latest
// settled one is left to the store's callers; the endpoint lists unsettled.
func (s *AuctionService) Unsettled(ctx context.Context) ([]domain.Auction, error) {
	return s.auctions.ListUnsettled(ctx)
}

// BidQuote validates the amount against the live auction's minimum and
// returns the unsigned bidder-to-treasury transfer. The minimum is
// re-validated at confirm time; nothing is persisted here.
func (s *AuctionService) BidQuote(ctx context.Context, bidder string, amount int64) (BidQuote, error) {
	if err := ensureLive(ctx, s.state); err != nil {
		return BidQuote{}, err
	}

	a, err := s.liveAuction(ctx)
	if err != nil {
		return BidQuote{}, err
	}

	min := pricing.MinBid(a.ReserveBid, a.CurrentBid)
	if amount < min {
		return BidQuote{}, fmt.Errorf("auction_service: minimum bid %d: %w", min, domain.ErrBidTooLow)
	}

	tx, err := s.ledger.BuildTransfer(ctx, bidder, s.cfg.TreasuryWallet, amount)
	if err != nil {
		return BidQuote{}, fmt.Errorf("auction_service: build transfer: %w", err)
	}
	return BidQuote{Tx: tx, AuctionID: a.ID, Lamports: amount, MinimumBid: min}, nil
}

// BidConfirm verifies the payment, re-validates against current auction
// state, records the bid, and eagerly refunds the displaced bidder. A
// payment that no longer clears the bar (auction ended, outbid meanwhile) is
// bounced back to the bidder before the error is returned.
func (s *AuctionService) BidConfirm(ctx context.Context, bidder string, amount int64, signature string) (domain.Auction, error) {
	if err := ensureLive(ctx, s.state); err != nil {
		return domain.Auction{}, err
	}

	status, err := s.ledger.ConfirmSignature(ctx, signature)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: confirm signature: %w", err)
	}
	if status.Err != "" {
		return domain.Auction{}, fmt.Errorf("auction_service: %s: %w", status.Err, domain.ErrTxFailed)
	}
	if !status.Confirmed {
		return domain.Auction{}, domain.ErrNotConfirmed
	}

	a, err := s.liveAuction(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionEnded) || errors.Is(err, domain.ErrNoAuction) {
			s.bounce(ctx, bidder, amount, "auction closed before confirm")
		}
		return domain.Auction{}, err
	}

	min := pricing.MinBid(a.ReserveBid, a.CurrentBid)
	if amount < min {
		s.bounce(ctx, bidder, amount, "outbid before confirm")
		return domain.Auction{}, fmt.Errorf("auction_service: minimum bid %d: %w", min, domain.ErrBidTooLow)
	}

	now := s.now().UTC()
	newEnd := a.EndTime
	if s.cfg.SnipeWindow > 0 && a.EndTime.Sub(now) <= s.cfg.SnipeWindow {
		newEnd = a.EndTime.Add(s.cfg.SnipeExtension)
	}

	displacedBidder, displacedAmount, err := s.auctions.RecordBid(ctx, a.ID, bidder, amount, newEnd)
	if err != nil {
		if errors.Is(err, domain.ErrBidTooLow) {
			s.bounce(ctx, bidder, amount, "lost bid race")
		}
		return domain.Auction{}, err
	}

	if _, err := s.bids.Insert(ctx, domain.Bid{
		AuctionID: a.ID,
		Bidder:    bidder,
		Amount:    amount,
	}); err != nil {
		return domain.Auction{}, err
	}

	s.metrics.BidsAccepted.Inc()

	// Eager refund of exactly the pair this bid displaced. Failure is
	// non-fatal: the row stays unrefunded and the crank's retry sweep picks
	// it up.
	if displacedBidder != "" && displacedAmount > 0 {
		s.payRefund(ctx, a.ID, displacedBidder, displacedAmount)
	}

	updated := a
	updated.CurrentBid = amount
	updated.CurrentBidder = bidder
	updated.BidCount = a.BidCount + 1
	updated.EndTime = newEnd

	s.logger.InfoContext(ctx, "auction_service: bid accepted",
		slog.Int64("auction", a.ID),
		slog.String("bidder", bidder),
		slog.Int64("lamports", amount),
		slog.Time("end_time", newEnd))

	publishEvent(ctx, s.bus, s.logger, ChannelAuction, "bid", map[string]any{
		"auction":  a.ID,
		"epoch":    a.EpochNumber,
		"bidder":   bidder,
		"lamports": amount,
		"end_time": newEnd,
	})
	return updated, nil
}

// bounce returns a confirmed payment that can no longer buy anything.
func (s *AuctionService) bounce(ctx context.Context, wallet string, lamports int64, reason string) {
	if _, err := s.sender.SendFromAuthority(ctx, wallet, lamports); err != nil {
		s.logger.ErrorContext(ctx, "auction_service: bounce failed",
			slog.String("wallet", wallet),
			slog.Int64("lamports", lamports),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "auction_service: payment bounced",
		slog.String("wallet", wallet),
		slog.Int64("lamports", lamports),
		slog.String("reason", reason))
}

// Settle closes the earliest expired unsettled auction. With no bids the
// asset goes back to its creator; with bids the winner takes custody, the
// status attribute flips, payouts and reward pools are written, and the
// epoch row finalizes. Asset moves are owner-checked first so a retried
// tick resumes instead of repeating them.
func (s *AuctionService) Settle(ctx context.Context) error {
	a, err := s.auctions.NextExpired(ctx, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	if !a.HasBids() {
		return s.settleNoBids(ctx, a)
	}
	return s.settleWithWinner(ctx, a)
}

func (s *AuctionService) settleNoBids(ctx context.Context, a domain.Auction) error {
	if err := s.transferUnlessOwned(ctx, a.AssetAddress, a.Creator); err != nil {
		return fmt.Errorf("auction_service: return asset %s: %w", a.AssetAddress, err)
	}

	if err := s.auctions.MarkSettled(ctx, a.ID); err != nil {
		return err
	}
	if err := s.epochs.Finalize(ctx, a.EpochNumber); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	s.metrics.AuctionsSettled.Inc()
	s.metrics.EpochsFinalized.Inc()
	s.logger.InfoContext(ctx, "auction_service: settled with no bids",
		slog.Int64("auction", a.ID),
		slog.Int64("epoch", a.EpochNumber),
		slog.String("asset", a.AssetAddress))

	publishEvent(ctx, s.bus, s.logger, ChannelSettlement, "auction_settled", map[string]any{
		"auction": a.ID,
		"epoch":   a.EpochNumber,
		"asset":   a.AssetAddress,
		"winner":  "",
	})
	s.archive(ctx, a)
	return nil
}

func (s *AuctionService) settleWithWinner(ctx context.Context, a domain.Auction) error {
	if err := s.transferUnlessOwned(ctx, a.AssetAddress, a.CurrentBidder); err != nil {
		return fmt.Errorf("auction_service: transfer to winner %s: %w", a.CurrentBidder, err)
	}

	// The status upgrade is cosmetic; settlement proceeds without it.
	if _, err := s.assets.UpdateStatusAttributes(ctx, a.AssetAddress, map[string]string{
		"Status": founderStatusAttribute,
	}); err != nil {
		s.logger.WarnContext(ctx, "auction_service: status attribute update failed",
			slog.String("asset", a.AssetAddress), slog.String("error", err.Error()))
	}

	payouts := []struct {
		wallet string
		bps    int64
		label  string
	}{
		{a.Creator, creatorPayoutBps, "creator"},
		{s.cfg.TeamWallet, teamPayoutBps, "team"},
		{s.cfg.GrowthWallet, growthPayoutBps, "growth"},
	}
	for _, p := range payouts {
		if p.wallet == "" {
			continue
		}
		lamports := a.CurrentBid * p.bps / 10_000
		if lamports <= 0 {
			continue
		}
		sig, err := s.sender.SendFromAuthority(ctx, p.wallet, lamports)
		if err != nil {
			return fmt.Errorf("auction_service: %s payout: %w", p.label, err)
		}
		s.logger.InfoContext(ctx, "auction_service: payout sent",
			slog.String("role", p.label),
			slog.String("wallet", p.wallet),
			slog.Int64("lamports", lamports),
			slog.String("signature", sig))
	}

	if err := s.founders.Upsert(ctx, domain.FounderEntry{
		AssetAddress: a.AssetAddress,
		Creator:      a.Creator,
		Owner:        a.CurrentBidder,
		EpochWon:     a.EpochNumber,
	}); err != nil {
		return err
	}
	if err := s.state.IncrementFounderKeys(ctx); err != nil {
		return err
	}

	if err := s.rewards.DistributeForSettlement(ctx, a); err != nil {
		return err
	}

	if err := s.auctions.MarkSettled(ctx, a.ID); err != nil {
		return err
	}
	if err := s.epochs.Finalize(ctx, a.EpochNumber); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	s.metrics.AuctionsSettled.Inc()
	s.metrics.EpochsFinalized.Inc()
	s.logger.InfoContext(ctx, "auction_service: settled",
		slog.Int64("auction", a.ID),
		slog.Int64("epoch", a.EpochNumber),
		slog.String("asset", a.AssetAddress),
		slog.String("winner", a.CurrentBidder),
		slog.Int64("winning_bid", a.CurrentBid))

	publishEvent(ctx, s.bus, s.logger, ChannelSettlement, "auction_settled", map[string]any{
		"auction":     a.ID,
		"epoch":       a.EpochNumber,
		"asset":       a.AssetAddress,
		"winner":      a.CurrentBidder,
		"winning_bid": a.CurrentBid,
	})
	s.archive(ctx, a)
	return nil
}

// transferUnlessOwned moves the asset unless the target already owns it,
// which keeps a retried settlement from failing on the second attempt.
func (s *AuctionService) transferUnlessOwned(ctx context.Context, asset, newOwner string) error {
	info, err := s.assets.FetchAsset(ctx, asset)
	if err == nil && info.Owner == newOwner {
		return nil
	}
	_, err = s.assets.TransferOwnership(ctx, asset, newOwner)
	return err
}

// archive writes the settlement snapshot to cold storage, best-effort.
func (s *AuctionService) archive(ctx context.Context, a domain.Auction) {
	if s.archiver == nil {
		return
	}
	history, err := s.bids.ListByAuction(ctx, a.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "auction_service: archive bid list failed",
			slog.Int64("auction", a.ID), slog.String("error", err.Error()))
		history = nil
	}
	rec := SettlementRecord{Auction: a, Bids: history, SettledAt: s.now().UTC()}
	rec.Auction.Settled = true
	if err := s.archiver.ArchiveSettlement(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "auction_service: archive failed",
			slog.Int64("auction", a.ID), slog.String("error", err.Error()))
	}
}

// RetryRefunds sweeps superseded bids whose refunds failed, up to limit per
// call. Each refund is attempted independently; one failure does not stop
// the sweep.
func (s *AuctionService) RetryRefunds(ctx context.Context, limit int) error {
	pending, err := s.bids.ListUnrefunded(ctx, limit)
	if err != nil {
		return err
	}

	for _, b := range pending {
		s.payRefund(ctx, b.AuctionID, b.Bidder, b.Amount)
	}
	return nil
}

// payRefund pays back one superseded bid. The row is claimed before the
// transfer goes out, so a confirm path and the retry sweep racing on the
// same row send at most one payment; a failed send releases the claim and
// the row returns to the queue.
func (s *AuctionService) payRefund(ctx context.Context, auctionID int64, bidder string, amount int64) {
	bidID, ok, err := s.bids.ClaimRefund(ctx, auctionID, bidder, amount)
	if err != nil {
		s.logger.ErrorContext(ctx, "auction_service: refund claim failed",
			slog.Int64("auction", auctionID),
			slog.String("bidder", bidder),
			slog.String("error", err.Error()))
		return
	}
	if !ok {
		// Already refunded, or another worker holds the claim.
		return
	}

	sig, err := s.sender.SendFromAuthority(ctx, bidder, amount)
	if err != nil {
		s.metrics.RefundsFailed.Inc()
		s.logger.ErrorContext(ctx, "auction_service: refund send failed, queued for retry",
			slog.Int64("bid", bidID),
			slog.String("bidder", bidder),
			slog.Int64("lamports", amount),
			slog.String("error", err.Error()))
		if rerr := s.bids.ReleaseRefundClaim(ctx, bidID, err.Error()); rerr != nil {
			s.logger.ErrorContext(ctx, "auction_service: refund claim release failed",
				slog.Int64("bid", bidID), slog.String("error", rerr.Error()))
		}
		return
	}

	s.metrics.RefundsSent.Inc()
	if err := s.bids.MarkRefunded(ctx, bidID, sig); err != nil {
		s.logger.ErrorContext(ctx, "auction_service: refund bookkeeping failed",
			slog.Int64("bid", bidID), slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "auction_service: refund sent",
		slog.Int64("bid", bidID),
		slog.String("bidder", bidder),
		slog.Int64("lamports", amount),
		slog.String("signature", sig))
}
