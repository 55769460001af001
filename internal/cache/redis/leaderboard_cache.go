package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vaultline/artkey/internal/domain"
)

// leaderboardTTL bounds staleness between vote confirmations, which
// invalidate the key eagerly.
const leaderboardTTL = 30 * time.Second

// LeaderboardCache implements domain.LeaderboardCache using a JSON-serialized
// candidate list per epoch.
//
// Key schema:
//
//	leaderboard:{epoch} - string value containing JSON
type LeaderboardCache struct {
	rdb *redis.Client
}

// NewLeaderboardCache creates a LeaderboardCache backed by the given Client.
func NewLeaderboardCache(c *Client) *LeaderboardCache {
	return &LeaderboardCache{rdb: c.Underlying()}
}

func leaderboardKey(epoch int64) string {
	return "leaderboard:" + strconv.FormatInt(epoch, 10)
}

// Get returns the cached leaderboard for an epoch. The second return value
// reports whether the cache held an entry.
func (lc *LeaderboardCache) Get(ctx context.Context, epoch int64) ([]domain.Candidate, bool, error) {
	data, err := lc.rdb.Get(ctx, leaderboardKey(epoch)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get leaderboard %d: %w", epoch, err)
	}

	var candidates []domain.Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, false, fmt.Errorf("redis: unmarshal leaderboard %d: %w", epoch, err)
	}
	return candidates, true, nil
}

// Set stores the leaderboard for an epoch with a short TTL.
func (lc *LeaderboardCache) Set(ctx context.Context, epoch int64, candidates []domain.Candidate) error {
	data, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("redis: marshal leaderboard %d: %w", epoch, err)
	}

	if err := lc.rdb.Set(ctx, leaderboardKey(epoch), data, leaderboardTTL).Err(); err != nil {
		return fmt.Errorf("redis: set leaderboard %d: %w", epoch, err)
	}
	return nil
}

// Invalidate drops the cached leaderboard after a vote lands.
func (lc *LeaderboardCache) Invalidate(ctx context.Context, epoch int64) error {
	if err := lc.rdb.Del(ctx, leaderboardKey(epoch)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate leaderboard %d: %w", epoch, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LeaderboardCache = (*LeaderboardCache)(nil)
