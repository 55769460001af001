package domain

import "time"

// EngineState is the single mutable bookkeeping row for the lifecycle engine:
// runtime pause switch and monotonic counters. Static policy (prices,
// durations, wallets) lives in the config file, not here.
type EngineState struct {
	Paused           bool
	TotalMinted      int64
	TotalFounderKeys int64
	UpdatedAt        time.Time
}
