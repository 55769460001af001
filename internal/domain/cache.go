package domain

import (
	"context"
	"time"
)

// LeaderboardCache caches the vote leaderboard between ticks so read-heavy
// endpoints do not hammer the store.
type LeaderboardCache interface {
	Get(ctx context.Context, epoch int64) ([]Candidate, bool, error)
	Set(ctx context.Context, epoch int64, candidates []Candidate) error
	Invalidate(ctx context.Context, epoch int64) error
}

// LockManager provides distributed locks. The crank uses one so only a
// single replica advances lifecycle state per tick.
type LockManager interface {
	// Acquire returns an unlock function on success or ErrLockHeld when the
	// lock is owned by another party.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter applies a sliding-window limit per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage is one durable message read back from the signal bus.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus publishes lifecycle events (epoch ended, bid confirmed, auction
// settled) for the WebSocket hub and any other subscriber.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
