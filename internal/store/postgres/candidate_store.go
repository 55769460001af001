package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultline/artkey/internal/domain"
)

// CandidateStore implements domain.CandidateStore using PostgreSQL.
type CandidateStore struct {
	pool *pgxpool.Pool
}

// NewCandidateStore creates a new CandidateStore backed by the given pool.
func NewCandidateStore(pool *pgxpool.Pool) *CandidateStore {
	return &CandidateStore{pool: pool}
}

const candidateSelectCols = `asset_address, creator, name, uri, image_url,
	animation_url, epoch_joined, votes, won, withdrawn, created_at`

func scanCandidate(scanner interface{ Scan(dest ...any) error }) (domain.Candidate, error) {
	var c domain.Candidate
	err := scanner.Scan(
		&c.AssetAddress, &c.Creator, &c.Name, &c.URI, &c.ImageURL,
		&c.AnimationURL, &c.EpochJoined, &c.Votes, &c.Won, &c.Withdrawn,
		&c.CreatedAt,
	)
	if err != nil {
		return domain.Candidate{}, err
	}
	return c, nil
}

func scanCandidates(rows pgx.Rows) ([]domain.Candidate, error) {
	defer rows.Close()
	var out []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert inserts a candidate or refreshes its metadata on conflict. The
// tally, won, and withdrawn flags are never touched by an upsert.
func (s *CandidateStore) Upsert(ctx context.Context, c domain.Candidate) error {
	const query = `
		INSERT INTO candidates (
			asset_address, creator, name, uri, image_url, animation_url, epoch_joined
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (asset_address) DO UPDATE SET
			name = EXCLUDED.name,
			uri = EXCLUDED.uri,
			image_url = EXCLUDED.image_url,
			animation_url = EXCLUDED.animation_url`

	_, err := s.pool.Exec(ctx, query,
		c.AssetAddress, c.Creator, c.Name, c.URI, c.ImageURL,
		c.AnimationURL, c.EpochJoined,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert candidate %s: %w", c.AssetAddress, err)
	}
	return nil
}

// GetByAsset returns the candidate with the given asset address.
func (s *CandidateStore) GetByAsset(ctx context.Context, asset string) (domain.Candidate, error) {
	query := `SELECT ` + candidateSelectCols + ` FROM candidates WHERE asset_address = $1`

	c, err := scanCandidate(s.pool.QueryRow(ctx, query, asset))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Candidate{}, domain.ErrNotFound
		}
		return domain.Candidate{}, fmt.Errorf("postgres: get candidate %s: %w", asset, err)
	}
	return c, nil
}

// ListEligible returns non-withdrawn, non-won candidates in the deterministic
// winner order: votes desc, then earliest epoch joined, then asset address.
func (s *CandidateStore) ListEligible(ctx context.Context) ([]domain.Candidate, error) {
	query := `SELECT ` + candidateSelectCols + `
		FROM candidates
		WHERE won = FALSE AND withdrawn = FALSE
		ORDER BY votes DESC, epoch_joined ASC, asset_address ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list eligible candidates: %w", err)
	}
	out, err := scanCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan eligible candidates: %w", err)
	}
	return out, nil
}

// ListActive returns every candidate still in competition, newest first.
func (s *CandidateStore) ListActive(ctx context.Context) ([]domain.Candidate, error) {
	query := `SELECT ` + candidateSelectCols + `
		FROM candidates
		WHERE won = FALSE AND withdrawn = FALSE
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active candidates: %w", err)
	}
	out, err := scanCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active candidates: %w", err)
	}
	return out, nil
}

// AddVotes atomically increments the tally and returns the new total.
func (s *CandidateStore) AddVotes(ctx context.Context, asset string, n int64) (int64, error) {
	const query = `
		UPDATE candidates SET votes = votes + $2
		WHERE asset_address = $1 AND won = FALSE AND withdrawn = FALSE
		RETURNING votes`

	var total int64
	err := s.pool.QueryRow(ctx, query, asset, n).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrCandidateGone
		}
		return 0, fmt.Errorf("postgres: add votes %s: %w", asset, err)
	}
	return total, nil
}

// MarkWon flags a candidate as the epoch winner, removing it from future
// leaderboards.
func (s *CandidateStore) MarkWon(ctx context.Context, asset string) error {
	const query = `UPDATE candidates SET won = TRUE WHERE asset_address = $1 AND won = FALSE`

	tag, err := s.pool.Exec(ctx, query, asset)
	if err != nil {
		return fmt.Errorf("postgres: mark candidate won %s: %w", asset, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkWithdrawn removes a candidate from competition at its creator's request.
func (s *CandidateStore) MarkWithdrawn(ctx context.Context, asset string) error {
	const query = `
		UPDATE candidates SET withdrawn = TRUE
		WHERE asset_address = $1 AND won = FALSE AND withdrawn = FALSE`

	tag, err := s.pool.Exec(ctx, query, asset)
	if err != nil {
		return fmt.Errorf("postgres: mark candidate withdrawn %s: %w", asset, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
