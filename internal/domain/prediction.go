package domain

import "time"

// PredictionDirection is the side of a swipe prediction.
type PredictionDirection string

const (
	PredictYes  PredictionDirection = "yes"
	PredictSkip PredictionDirection = "skip"
)

// Prediction is a per-wallet call on whether a candidate will win its epoch.
// Correct is nil until the epoch's auction settles and is set exactly once;
// the grading pass is gated on Correct IS NULL so a retried tick cannot
// re-grade or double-pay.
type Prediction struct {
	ID             int64
	Wallet         string
	Candidate      string
	EpochNumber    int64
	Direction      PredictionDirection
	Correct        *bool
	RewardLamports int64
	Claimed        bool
	ClaimTx        string
	CreatedAt      time.Time
}

// PredictionStats aggregates a wallet's prediction history.
type PredictionStats struct {
	Wallet           string
	Total            int64
	Correct          int64
	Incorrect        int64
	TotalRewards     int64
	UnclaimedRewards int64
}

// VoterReward is a share of the voter-rewards pool (a fixed fraction of the
// winning bid) credited to a wallet that voted for the epoch's winner.
type VoterReward struct {
	ID             int64
	Wallet         string
	EpochNumber    int64
	Weight         int64
	TotalWeight    int64
	RewardLamports int64
	Claimed        bool
	ClaimTx        string
	CreatedAt      time.Time
}
