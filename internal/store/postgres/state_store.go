package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultline/artkey/internal/domain"
)

// StateStore implements domain.StateStore using PostgreSQL. The engine_state
// table is a singleton row seeded by the initial migration.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore creates a new StateStore backed by the given pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Get returns the engine bookkeeping singleton.
func (s *StateStore) Get(ctx context.Context) (domain.EngineState, error) {
	const query = `
		SELECT paused, total_minted, total_founder_keys, updated_at
		FROM engine_state WHERE id = 1`

	var st domain.EngineState
	err := s.pool.QueryRow(ctx, query).Scan(
		&st.Paused, &st.TotalMinted, &st.TotalFounderKeys, &st.UpdatedAt,
	)
	if err != nil {
		return domain.EngineState{}, fmt.Errorf("postgres: get engine state: %w", err)
	}
	return st, nil
}

// SetPaused flips the emergency pause flag.
func (s *StateStore) SetPaused(ctx context.Context, paused bool) error {
	const query = `UPDATE engine_state SET paused = $1, updated_at = NOW() WHERE id = 1`

	if _, err := s.pool.Exec(ctx, query, paused); err != nil {
		return fmt.Errorf("postgres: set paused: %w", err)
	}
	return nil
}

// IncrementMinted bumps the mint counter and returns the new total, which
// doubles as the sequence number for generated piece names.
func (s *StateStore) IncrementMinted(ctx context.Context) (int64, error) {
	const query = `
		UPDATE engine_state SET total_minted = total_minted + 1, updated_at = NOW()
		WHERE id = 1
		RETURNING total_minted`

	var total int64
	if err := s.pool.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("postgres: increment minted: %w", err)
	}
	return total, nil
}

// IncrementFounderKeys bumps the settled-winner counter.
func (s *StateStore) IncrementFounderKeys(ctx context.Context) error {
	const query = `
		UPDATE engine_state SET total_founder_keys = total_founder_keys + 1, updated_at = NOW()
		WHERE id = 1`

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("postgres: increment founder keys: %w", err)
	}
	return nil
}
