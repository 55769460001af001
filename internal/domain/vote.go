package domain

import "time"

// VoteType distinguishes how a vote was paid for.
type VoteType string

const (
	VoteTypeFree VoteType = "free"
	VoteTypePaid VoteType = "paid"
)

// Vote is an append-only vote record. At most one free vote exists per
// (voter, candidate, epoch); a partial unique index enforces this because
// the check-then-insert is not atomic under concurrent requests.
type Vote struct {
	ID           int64
	Voter        string
	Candidate    string
	EpochNumber  int64
	Count        int64
	Type         VoteType
	CostLamports int64
	CreatedAt    time.Time
}
