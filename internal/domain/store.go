package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// EpochStore persists voting epochs.
type EpochStore interface {
	// Current returns the sole open voting epoch (end time unset), or
	// ErrNotFound. An epoch awaiting auction settlement is ended but not yet
	// finalized and is not returned here.
	Current(ctx context.Context) (Epoch, error)
	// Latest returns the highest-numbered epoch regardless of state.
	Latest(ctx context.Context) (Epoch, error)
	GetByNumber(ctx context.Context, number int64) (Epoch, error)
	// Create inserts a new open epoch. The partial unique index on open
	// epochs makes a concurrent duplicate insert fail with ErrAlreadyExists,
	// which is the epoch-boundary concurrency guard.
	Create(ctx context.Context, number int64, start time.Time, dur time.Duration) (Epoch, error)
	// MarkEnded records the winner (or skip) on an epoch at its boundary.
	MarkEnded(ctx context.Context, number int64, winnerAsset, winnerCreator string, skipped bool, endedAt time.Time) error
	// Finalize closes an epoch after its auction settles (or after a skip).
	Finalize(ctx context.Context, number int64) error
}

// CandidateStore persists competition candidates.
type CandidateStore interface {
	Upsert(ctx context.Context, c Candidate) error
	GetByAsset(ctx context.Context, asset string) (Candidate, error)
	// ListEligible returns non-withdrawn, non-won candidates ordered by
	// votes desc, epoch_joined asc, asset_address asc: the deterministic
	// total order used for winner selection.
	ListEligible(ctx context.Context) ([]Candidate, error)
	ListActive(ctx context.Context) ([]Candidate, error)
	// AddVotes atomically increments the tally and returns the new total.
	AddVotes(ctx context.Context, asset string, n int64) (int64, error)
	MarkWon(ctx context.Context, asset string) error
	MarkWithdrawn(ctx context.Context, asset string) error
}

// VoteStore persists vote records.
type VoteStore interface {
	// InsertFree inserts a free-vote row; the unique index turns a duplicate
	// into ErrAlreadyVoted.
	InsertFree(ctx context.Context, v Vote) error
	InsertPaid(ctx context.Context, v Vote) error
	ListForCandidate(ctx context.Context, epoch int64, candidate string) ([]Vote, error)
}

// AuctionStore persists auctions.
type AuctionStore interface {
	Create(ctx context.Context, a Auction) (Auction, error)
	GetOpenByEpoch(ctx context.Context, epoch int64) (Auction, error)
	GetOpenByAsset(ctx context.Context, asset string) (Auction, error)
	Latest(ctx context.Context) (Auction, error)
	ListUnsettled(ctx context.Context) ([]Auction, error)
	// NextExpired returns the earliest-epoch unsettled auction whose end time
	// has passed, or ErrNotFound.
	NextExpired(ctx context.Context, now time.Time) (Auction, error)
	// RecordBid overwrites the current bid/bidder, bumps bid_count, and
	// applies any anti-snipe end-time extension in one statement. It returns
	// the bidder and amount the statement displaced (empty and zero for the
	// first bid); refunds must target this pair, never a value read earlier.
	RecordBid(ctx context.Context, id int64, bidder string, amount int64, newEnd time.Time) (string, int64, error)
	MarkSettled(ctx context.Context, id int64) error
}

// BidStore persists the append-only bid history.
//
// Refunds follow a claim discipline: a worker claims exactly one row, sends
// the transfer, then marks it refunded, or releases the claim when the send
// fails. No transfer is ever sent without holding the claim, so two workers
// racing on the same row pay at most once.
type BidStore interface {
	Insert(ctx context.Context, b Bid) (Bid, error)
	ListByAuction(ctx context.Context, auctionID int64) ([]Bid, error)
	// ClaimRefund claims the oldest unrefunded, unclaimed row matching the
	// (auction, bidder, amount) triple and returns its ID. ok=false means no
	// such row exists: already refunded, or another worker holds the claim.
	ClaimRefund(ctx context.Context, auctionID int64, bidder string, amount int64) (int64, bool, error)
	// MarkRefunded completes a claimed refund, recording the refund tx.
	MarkRefunded(ctx context.Context, bidID int64, refundTx string) error
	// ReleaseRefundClaim returns a claimed row to the retry queue, recording
	// why the send failed.
	ReleaseRefundClaim(ctx context.Context, bidID int64, reason string) error
	// ListUnrefunded returns superseded bids (not the current winning bid,
	// not claimed by an in-flight refund) still awaiting a refund, oldest
	// first.
	ListUnrefunded(ctx context.Context, limit int) ([]Bid, error)
}

// PredictionStore persists swipe predictions and their rewards.
type PredictionStore interface {
	// Insert adds a prediction; the unique index turns a duplicate into
	// ErrAlreadySwiped.
	Insert(ctx context.Context, p Prediction) error
	ListUnswiped(ctx context.Context, wallet string, epoch int64) ([]Candidate, error)
	// GradeEpoch sets correct=true for ungraded yes-predictions on the
	// winner and correct=false for every other ungraded prediction in the
	// epoch. Both updates are gated on correct IS NULL.
	GradeEpoch(ctx context.Context, epoch int64, winner string) error
	// ListCorrectUnrewarded returns graded-correct predictions for an epoch.
	ListCorrect(ctx context.Context, epoch int64) ([]Prediction, error)
	SetReward(ctx context.Context, id int64, lamports int64) error
	ListUnclaimed(ctx context.Context, wallet string) ([]Prediction, error)
	MarkClaimed(ctx context.Context, ids []int64, claimTx string) error
	Stats(ctx context.Context, wallet string) (PredictionStats, error)
}

// RewardStore persists voter-reward pool shares.
type RewardStore interface {
	InsertBatch(ctx context.Context, rewards []VoterReward) error
	ListByWallet(ctx context.Context, wallet string) ([]VoterReward, error)
	ListUnclaimed(ctx context.Context, wallet string) ([]VoterReward, error)
	MarkClaimed(ctx context.Context, ids []int64, claimTx string) error
}

// FounderStore persists settled-auction ownership entries.
type FounderStore interface {
	Upsert(ctx context.Context, e FounderEntry) error
	List(ctx context.Context, opts ListOpts) ([]FounderEntry, error)
}

// StateStore persists the engine bookkeeping singleton.
type StateStore interface {
	Get(ctx context.Context) (EngineState, error)
	SetPaused(ctx context.Context, paused bool) error
	IncrementMinted(ctx context.Context) (int64, error)
	IncrementFounderKeys(ctx context.Context) error
}
