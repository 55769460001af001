package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vaultline/artkey/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// In-memory stores. These honor the same uniqueness and state-guard rules the
// SQL layer enforces so the services see the same error surface.
// ---------------------------------------------------------------------------

type fakeEpochStore struct {
	mu     sync.Mutex
	epochs map[int64]*domain.Epoch
	nextID int64
}

func newFakeEpochStore() *fakeEpochStore {
	return &fakeEpochStore{epochs: make(map[int64]*domain.Epoch)}
}

func (f *fakeEpochStore) Current(ctx context.Context) (domain.Epoch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.epochs {
		if e.EndTime == nil {
			return *e, nil
		}
	}
	return domain.Epoch{}, domain.ErrNotFound
}

func (f *fakeEpochStore) Latest(ctx context.Context) (domain.Epoch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.Epoch
	for _, e := range f.epochs {
		if latest == nil || e.Number > latest.Number {
			latest = e
		}
	}
	if latest == nil {
		return domain.Epoch{}, domain.ErrNotFound
	}
	return *latest, nil
}

func (f *fakeEpochStore) GetByNumber(ctx context.Context, number int64) (domain.Epoch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.epochs[number]
	if !ok {
		return domain.Epoch{}, domain.ErrNotFound
	}
	return *e, nil
}

func (f *fakeEpochStore) Create(ctx context.Context, number int64, start time.Time, dur time.Duration) (domain.Epoch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.epochs[number]; ok {
		return domain.Epoch{}, domain.ErrAlreadyExists
	}
	for _, e := range f.epochs {
		if e.EndTime == nil {
			return domain.Epoch{}, domain.ErrAlreadyExists
		}
	}
	f.nextID++
	e := &domain.Epoch{ID: f.nextID, Number: number, StartTime: start, Duration: dur}
	f.epochs[number] = e
	return *e, nil
}

func (f *fakeEpochStore) MarkEnded(ctx context.Context, number int64, winnerAsset, winnerCreator string, skipped bool, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.epochs[number]
	if !ok || e.EndTime != nil {
		return domain.ErrNotFound
	}
	t := endedAt
	e.EndTime = &t
	e.WinnerAsset = winnerAsset
	e.WinnerCreator = winnerCreator
	e.Skipped = skipped
	e.AuctionStarted = !skipped
	return nil
}

func (f *fakeEpochStore) Finalize(ctx context.Context, number int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.epochs[number]
	if !ok {
		return domain.ErrNotFound
	}
	e.Finalized = true
	return nil
}

type fakeCandidateStore struct {
	mu         sync.Mutex
	candidates map[string]*domain.Candidate
}

func newFakeCandidateStore() *fakeCandidateStore {
	return &fakeCandidateStore{candidates: make(map[string]*domain.Candidate)}
}

func (f *fakeCandidateStore) Upsert(ctx context.Context, c domain.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.candidates[c.AssetAddress]; ok {
		existing.Name = c.Name
		existing.URI = c.URI
		existing.ImageURL = c.ImageURL
		existing.AnimationURL = c.AnimationURL
		return nil
	}
	copy := c
	f.candidates[c.AssetAddress] = &copy
	return nil
}

func (f *fakeCandidateStore) GetByAsset(ctx context.Context, asset string) (domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[asset]
	if !ok {
		return domain.Candidate{}, domain.ErrNotFound
	}
	return *c, nil
}

func (f *fakeCandidateStore) ListEligible(ctx context.Context) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Candidate
	for _, c := range f.candidates {
		if c.Eligible() {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		if out[i].EpochJoined != out[j].EpochJoined {
			return out[i].EpochJoined < out[j].EpochJoined
		}
		return out[i].AssetAddress < out[j].AssetAddress
	})
	return out, nil
}

func (f *fakeCandidateStore) ListActive(ctx context.Context) ([]domain.Candidate, error) {
	return f.ListEligible(ctx)
}

func (f *fakeCandidateStore) AddVotes(ctx context.Context, asset string, n int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[asset]
	if !ok || c.Won || c.Withdrawn {
		return 0, domain.ErrCandidateGone
	}
	c.Votes += n
	return c.Votes, nil
}

func (f *fakeCandidateStore) MarkWon(ctx context.Context, asset string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[asset]
	if !ok {
		return domain.ErrNotFound
	}
	c.Won = true
	return nil
}

func (f *fakeCandidateStore) MarkWithdrawn(ctx context.Context, asset string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[asset]
	if !ok {
		return domain.ErrNotFound
	}
	c.Withdrawn = true
	return nil
}

type fakeVoteStore struct {
	mu    sync.Mutex
	votes []domain.Vote
}

func newFakeVoteStore() *fakeVoteStore { return &fakeVoteStore{} }

func (f *fakeVoteStore) InsertFree(ctx context.Context, v domain.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.votes {
		if existing.Type == domain.VoteTypeFree &&
			existing.Voter == v.Voter &&
			existing.Candidate == v.Candidate &&
			existing.EpochNumber == v.EpochNumber {
			return domain.ErrAlreadyVoted
		}
	}
	v.Count = 1
	v.Type = domain.VoteTypeFree
	v.ID = int64(len(f.votes) + 1)
	f.votes = append(f.votes, v)
	return nil
}

func (f *fakeVoteStore) InsertPaid(ctx context.Context, v domain.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.Type = domain.VoteTypePaid
	v.ID = int64(len(f.votes) + 1)
	f.votes = append(f.votes, v)
	return nil
}

func (f *fakeVoteStore) ListForCandidate(ctx context.Context, epoch int64, candidate string) ([]domain.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Vote
	for _, v := range f.votes {
		if v.EpochNumber == epoch && v.Candidate == candidate {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeAuctionStore struct {
	mu       sync.Mutex
	auctions map[int64]*domain.Auction
	nextID   int64
}

func newFakeAuctionStore() *fakeAuctionStore {
	return &fakeAuctionStore{auctions: make(map[int64]*domain.Auction)}
}

func (f *fakeAuctionStore) Create(ctx context.Context, a domain.Auction) (domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.auctions {
		if existing.EpochNumber == a.EpochNumber && !existing.Settled {
			return domain.Auction{}, domain.ErrAlreadyExists
		}
	}
	f.nextID++
	a.ID = f.nextID
	copy := a
	f.auctions[a.ID] = &copy
	return a, nil
}

func (f *fakeAuctionStore) GetOpenByEpoch(ctx context.Context, epoch int64) (domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.auctions {
		if a.EpochNumber == epoch && !a.Settled {
			return *a, nil
		}
	}
	return domain.Auction{}, domain.ErrNoAuction
}

func (f *fakeAuctionStore) GetOpenByAsset(ctx context.Context, asset string) (domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.auctions {
		if a.AssetAddress == asset && !a.Settled {
			return *a, nil
		}
	}
	return domain.Auction{}, domain.ErrNoAuction
}

func (f *fakeAuctionStore) Latest(ctx context.Context) (domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.Auction
	for _, a := range f.auctions {
		if latest == nil || a.EpochNumber > latest.EpochNumber {
			latest = a
		}
	}
	if latest == nil {
		return domain.Auction{}, domain.ErrNoAuction
	}
	return *latest, nil
}

func (f *fakeAuctionStore) ListUnsettled(ctx context.Context) ([]domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Auction
	for _, a := range f.auctions {
		if !a.Settled {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpochNumber < out[j].EpochNumber })
	return out, nil
}

func (f *fakeAuctionStore) NextExpired(ctx context.Context, now time.Time) (domain.Auction, error) {
	list, _ := f.ListUnsettled(ctx)
	for _, a := range list {
		if a.Ended(now) {
			return a, nil
		}
	}
	return domain.Auction{}, domain.ErrNotFound
}

func (f *fakeAuctionStore) RecordBid(ctx context.Context, id int64, bidder string, amount int64, newEnd time.Time) (string, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok || a.Settled || a.CurrentBid >= amount {
		return "", 0, domain.ErrBidTooLow
	}
	displacedBidder, displacedAmount := a.CurrentBidder, a.CurrentBid
	a.CurrentBid = amount
	a.CurrentBidder = bidder
	a.BidCount++
	if newEnd.After(a.EndTime) {
		a.EndTime = newEnd
	}
	return displacedBidder, displacedAmount, nil
}

func (f *fakeAuctionStore) MarkSettled(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Settled = true
	return nil
}

type fakeBidStore struct {
	mu   sync.Mutex
	bids []*domain.Bid
}

func newFakeBidStore() *fakeBidStore { return &fakeBidStore{} }

func (f *fakeBidStore) Insert(ctx context.Context, b domain.Bid) (domain.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = int64(len(f.bids) + 1)
	b.CreatedAt = time.Now().UTC()
	copy := b
	f.bids = append(f.bids, &copy)
	return b, nil
}

func (f *fakeBidStore) ListByAuction(ctx context.Context, auctionID int64) ([]domain.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBidStore) ClaimRefund(ctx context.Context, auctionID int64, bidder string, amount int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bids {
		if b.AuctionID == auctionID && b.Bidder == bidder && b.Amount == amount &&
			!b.Refunded && !b.RefundPending {
			b.RefundPending = true
			return b.ID, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeBidStore) MarkRefunded(ctx context.Context, bidID int64, refundTx string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bids {
		if b.ID == bidID && !b.Refunded {
			b.Refunded = true
			b.RefundPending = false
			b.RefundTx = refundTx
			b.RefundError = ""
		}
	}
	return nil
}

func (f *fakeBidStore) ReleaseRefundClaim(ctx context.Context, bidID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bids {
		if b.ID == bidID && !b.Refunded {
			b.RefundPending = false
			b.RefundError = reason
		}
	}
	return nil
}

func (f *fakeBidStore) ListUnrefunded(ctx context.Context, limit int) ([]domain.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current := make(map[int64]domain.Bid)
	// Reconstruct each auction's standing bid as (bidder, amount) of the
	// highest amount seen, mirroring the SQL NOT EXISTS exclusion.
	for _, b := range f.bids {
		if cur, ok := current[b.AuctionID]; !ok || b.Amount > cur.Amount {
			current[b.AuctionID] = *b
		}
	}
	var out []domain.Bid
	for _, b := range f.bids {
		if b.Refunded || b.RefundPending {
			continue
		}
		cur := current[b.AuctionID]
		if b.Bidder == cur.Bidder && b.Amount == cur.Amount {
			continue
		}
		out = append(out, *b)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakePredictionStore struct {
	mu          sync.Mutex
	predictions []*domain.Prediction
}

func newFakePredictionStore() *fakePredictionStore { return &fakePredictionStore{} }

func (f *fakePredictionStore) Insert(ctx context.Context, p domain.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.predictions {
		if existing.Wallet == p.Wallet &&
			existing.Candidate == p.Candidate &&
			existing.EpochNumber == p.EpochNumber {
			return domain.ErrAlreadySwiped
		}
	}
	p.ID = int64(len(f.predictions) + 1)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	copy := p
	f.predictions = append(f.predictions, &copy)
	return nil
}

func (f *fakePredictionStore) ListUnswiped(ctx context.Context, wallet string, epoch int64) ([]domain.Candidate, error) {
	return nil, nil
}

func (f *fakePredictionStore) GradeEpoch(ctx context.Context, epoch int64, winner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.predictions {
		if p.EpochNumber != epoch || p.Correct != nil {
			continue
		}
		correct := p.Direction == domain.PredictYes && p.Candidate == winner
		p.Correct = &correct
	}
	return nil
}

func (f *fakePredictionStore) ListCorrect(ctx context.Context, epoch int64) ([]domain.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Prediction
	for _, p := range f.predictions {
		if p.EpochNumber == epoch && p.Correct != nil && *p.Correct {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePredictionStore) SetReward(ctx context.Context, id int64, lamports int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.predictions {
		if p.ID == id {
			p.RewardLamports = lamports
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakePredictionStore) ListUnclaimed(ctx context.Context, wallet string) ([]domain.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Prediction
	for _, p := range f.predictions {
		if p.Wallet == wallet && p.RewardLamports > 0 && !p.Claimed {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePredictionStore) MarkClaimed(ctx context.Context, ids []int64, claimTx string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, p := range f.predictions {
		if set[p.ID] && !p.Claimed {
			p.Claimed = true
			p.ClaimTx = claimTx
		}
	}
	return nil
}

func (f *fakePredictionStore) Stats(ctx context.Context, wallet string) (domain.PredictionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := domain.PredictionStats{Wallet: wallet}
	for _, p := range f.predictions {
		if p.Wallet != wallet {
			continue
		}
		stats.Total++
		if p.Correct != nil {
			if *p.Correct {
				stats.Correct++
			} else {
				stats.Incorrect++
			}
		}
		stats.TotalRewards += p.RewardLamports
		if p.RewardLamports > 0 && !p.Claimed {
			stats.UnclaimedRewards += p.RewardLamports
		}
	}
	return stats, nil
}

type fakeRewardStore struct {
	mu      sync.Mutex
	rewards []*domain.VoterReward
}

func newFakeRewardStore() *fakeRewardStore { return &fakeRewardStore{} }

func (f *fakeRewardStore) InsertBatch(ctx context.Context, rewards []domain.VoterReward) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rewards {
		dup := false
		for _, existing := range f.rewards {
			if existing.Wallet == r.Wallet && existing.EpochNumber == r.EpochNumber {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		r.ID = int64(len(f.rewards) + 1)
		copy := r
		f.rewards = append(f.rewards, &copy)
	}
	return nil
}

func (f *fakeRewardStore) ListByWallet(ctx context.Context, wallet string) ([]domain.VoterReward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VoterReward
	for _, r := range f.rewards {
		if r.Wallet == wallet {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRewardStore) ListUnclaimed(ctx context.Context, wallet string) ([]domain.VoterReward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VoterReward
	for _, r := range f.rewards {
		if r.Wallet == wallet && r.RewardLamports > 0 && !r.Claimed {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRewardStore) MarkClaimed(ctx context.Context, ids []int64, claimTx string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, r := range f.rewards {
		if set[r.ID] && !r.Claimed {
			r.Claimed = true
			r.ClaimTx = claimTx
		}
	}
	return nil
}

type fakeFounderStore struct {
	mu      sync.Mutex
	entries []domain.FounderEntry
}

func newFakeFounderStore() *fakeFounderStore { return &fakeFounderStore{} }

func (f *fakeFounderStore) Upsert(ctx context.Context, e domain.FounderEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.entries {
		if existing.AssetAddress == e.AssetAddress {
			f.entries[i].Owner = e.Owner
			return nil
		}
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeFounderStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.FounderEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.FounderEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

type fakeStateStore struct {
	mu    sync.Mutex
	state domain.EngineState
}

func newFakeStateStore() *fakeStateStore { return &fakeStateStore{} }

func (f *fakeStateStore) Get(ctx context.Context) (domain.EngineState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeStateStore) SetPaused(ctx context.Context, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Paused = paused
	return nil
}

func (f *fakeStateStore) IncrementMinted(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.TotalMinted++
	return f.state.TotalMinted, nil
}

func (f *fakeStateStore) IncrementFounderKeys(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.TotalFounderKeys++
	return nil
}

// ---------------------------------------------------------------------------
// Cache and bus fakes.
// ---------------------------------------------------------------------------

type fakeSignalBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakeSignalBus() *fakeSignalBus {
	return &fakeSignalBus{messages: make(map[string][][]byte)}
}

func (f *fakeSignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channel] = append(f.messages[channel], payload)
	return nil
}

func (f *fakeSignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeSignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	return nil
}

func (f *fakeSignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (f *fakeSignalBus) published(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[channel])
}

type fakeLeaderboardCache struct{}

func (fakeLeaderboardCache) Get(ctx context.Context, epoch int64) ([]domain.Candidate, bool, error) {
	return nil, false, nil
}
func (fakeLeaderboardCache) Set(ctx context.Context, epoch int64, candidates []domain.Candidate) error {
	return nil
}
func (fakeLeaderboardCache) Invalidate(ctx context.Context, epoch int64) error { return nil }

// ---------------------------------------------------------------------------
// Ledger fakes.
// ---------------------------------------------------------------------------

type fakeLedger struct {
	mu        sync.Mutex
	holdings  map[string]int // wallet|collection -> count
	holderErr error
	statuses  map[string]domain.ConfirmationStatus
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		holdings: make(map[string]int),
		statuses: make(map[string]domain.ConfirmationStatus),
	}
}

func (f *fakeLedger) BuildTransfer(ctx context.Context, from, to string, lamports int64) (domain.UnsignedTx, error) {
	return domain.UnsignedTx{
		Base64:    fmt.Sprintf("transfer:%s:%s:%d", from, to, lamports),
		Blockhash: "hash",
	}, nil
}

func (f *fakeLedger) ConfirmSignature(ctx context.Context, signature string) (domain.ConfirmationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := f.statuses[signature]; ok {
		return status, nil
	}
	return domain.ConfirmationStatus{Confirmed: true}, nil
}

func (f *fakeLedger) CountHoldings(ctx context.Context, wallet, collection string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holderErr != nil {
		return 0, f.holderErr
	}
	return f.holdings[wallet+"|"+collection], nil
}

type sentTransfer struct {
	To       string
	Lamports int64
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentTransfer
	failFor map[string]error // destination -> error
	sigSeq  int
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]error)}
}

func (f *fakeSender) SendFromAuthority(ctx context.Context, to string, lamports int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[to]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, sentTransfer{To: to, Lamports: lamports})
	f.sigSeq++
	return fmt.Sprintf("sig-%d", f.sigSeq), nil
}

func (f *fakeSender) AuthorityAddress() string { return "authority" }

func (f *fakeSender) sentTo(to string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, s := range f.sent {
		if s.To == to {
			total += s.Lamports
		}
	}
	return total
}

type fakeAssets struct {
	mu        sync.Mutex
	assets    map[string]domain.AssetInfo
	transfers []sentTransfer // To = new owner, Lamports unused
	attrs     map[string]map[string]string
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{
		assets: make(map[string]domain.AssetInfo),
		attrs:  make(map[string]map[string]string),
	}
}

func (f *fakeAssets) FetchAsset(ctx context.Context, address string) (domain.AssetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.assets[address]
	if !ok {
		return domain.AssetInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (f *fakeAssets) TransferOwnership(ctx context.Context, asset, newOwner string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := f.assets[asset]
	info.Address = asset
	info.Owner = newOwner
	f.assets[asset] = info
	f.transfers = append(f.transfers, sentTransfer{To: newOwner})
	return "transfer-sig", nil
}

func (f *fakeAssets) UpdateStatusAttributes(ctx context.Context, asset string, attrs map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrs[asset] = attrs
	return "attr-sig", nil
}

func (f *fakeAssets) transferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}
