package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultline/artkey/internal/domain"
)

// FounderStore implements domain.FounderStore using PostgreSQL.
type FounderStore struct {
	pool *pgxpool.Pool
}

// NewFounderStore creates a new FounderStore backed by the given pool.
func NewFounderStore(pool *pgxpool.Pool) *FounderStore {
	return &FounderStore{pool: pool}
}

// Upsert records a settled auction's asset, keyed by asset address so a
// settlement replay cannot duplicate the entry.
func (s *FounderStore) Upsert(ctx context.Context, e domain.FounderEntry) error {
	const query = `
		INSERT INTO founder_entries (asset_address, creator, owner, epoch_won)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_address) DO UPDATE SET owner = EXCLUDED.owner`

	_, err := s.pool.Exec(ctx, query, e.AssetAddress, e.Creator, e.Owner, e.EpochWon)
	if err != nil {
		return fmt.Errorf("postgres: upsert founder entry %s: %w", e.AssetAddress, err)
	}
	return nil
}

// List returns founder entries newest-epoch first.
func (s *FounderStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.FounderEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT asset_address, creator, owner, epoch_won, created_at
		FROM founder_entries
		ORDER BY epoch_won DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list founder entries: %w", err)
	}
	defer rows.Close()

	var out []domain.FounderEntry
	for rows.Next() {
		var e domain.FounderEntry
		if err := rows.Scan(&e.AssetAddress, &e.Creator, &e.Owner, &e.EpochWon, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan founder entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
