// Package domain defines the entities and store interfaces for the artkey
// epoch/auction lifecycle engine. Entities map 1:1 to database tables; the
// uniqueness constraints declared in the migrations are load-bearing for the
// concurrency model, not advisory.
package domain

import "time"

// Epoch is a fixed-duration voting round. Exactly one epoch row has EndTime
// unset at any time (enforced by a partial unique index): the open voting
// epoch. An ended epoch stays Finalized=false until its auction settles.
type Epoch struct {
	ID             int64
	Number         int64
	StartTime      time.Time
	Duration       time.Duration
	EndTime        *time.Time
	Finalized      bool
	WinnerAsset    string // asset address of the winning candidate, empty if none
	WinnerCreator  string
	AuctionStarted bool
	Skipped        bool
}

// Expired reports whether the epoch's voting window has elapsed at now.
func (e Epoch) Expired(now time.Time) bool {
	return !now.Before(e.StartTime.Add(e.Duration))
}
