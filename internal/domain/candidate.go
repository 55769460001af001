package domain

import "time"

// Candidate is an asset entered into the voting competition. Votes only ever
// increase; withdrawal removes future eligibility without erasing the tally.
type Candidate struct {
	AssetAddress string
	Creator      string
	Name         string
	URI          string
	ImageURL     string
	AnimationURL string
	EpochJoined  int64
	Votes        int64
	Won          bool
	Withdrawn    bool
	CreatedAt    time.Time
}

// Eligible reports whether the candidate can still win an epoch.
func (c Candidate) Eligible() bool {
	return !c.Withdrawn && !c.Won
}
