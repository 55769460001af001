package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultline/artkey/internal/domain"
)

// EpochStore implements domain.EpochStore using PostgreSQL.
type EpochStore struct {
	pool *pgxpool.Pool
}

// NewEpochStore creates a new EpochStore backed by the given connection pool.
func NewEpochStore(pool *pgxpool.Pool) *EpochStore {
	return &EpochStore{pool: pool}
}

const epochSelectCols = `id, number, start_time, duration_secs, end_time,
	finalized, winner_asset, winner_creator, auction_started, skipped`

func scanEpoch(scanner interface{ Scan(dest ...any) error }) (domain.Epoch, error) {
	var e domain.Epoch
	var durationSecs int64
	var winnerAsset, winnerCreator *string

	err := scanner.Scan(
		&e.ID, &e.Number, &e.StartTime, &durationSecs, &e.EndTime,
		&e.Finalized, &winnerAsset, &winnerCreator, &e.AuctionStarted, &e.Skipped,
	)
	if err != nil {
		return domain.Epoch{}, err
	}

	e.Duration = time.Duration(durationSecs) * time.Second
	if winnerAsset != nil {
		e.WinnerAsset = *winnerAsset
	}
	if winnerCreator != nil {
		e.WinnerCreator = *winnerCreator
	}
	return e, nil
}

// Current returns the sole open voting epoch.
func (s *EpochStore) Current(ctx context.Context) (domain.Epoch, error) {
	query := `SELECT ` + epochSelectCols + ` FROM epochs WHERE end_time IS NULL`

	e, err := scanEpoch(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Epoch{}, domain.ErrNotFound
		}
		return domain.Epoch{}, fmt.Errorf("postgres: current epoch: %w", err)
	}
	return e, nil
}

// Latest returns the highest-numbered epoch regardless of state.
func (s *EpochStore) Latest(ctx context.Context) (domain.Epoch, error) {
	query := `SELECT ` + epochSelectCols + ` FROM epochs ORDER BY number DESC LIMIT 1`

	e, err := scanEpoch(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Epoch{}, domain.ErrNotFound
		}
		return domain.Epoch{}, fmt.Errorf("postgres: latest epoch: %w", err)
	}
	return e, nil
}

// GetByNumber returns the epoch with the given number.
func (s *EpochStore) GetByNumber(ctx context.Context, number int64) (domain.Epoch, error) {
	query := `SELECT ` + epochSelectCols + ` FROM epochs WHERE number = $1`

	e, err := scanEpoch(s.pool.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Epoch{}, domain.ErrNotFound
		}
		return domain.Epoch{}, fmt.Errorf("postgres: get epoch %d: %w", number, err)
	}
	return e, nil
}

// Create inserts a new open epoch. The partial unique index on
// end_time IS NULL rejects a second open epoch with ErrAlreadyExists.
func (s *EpochStore) Create(ctx context.Context, number int64, start time.Time, dur time.Duration) (domain.Epoch, error) {
	const query = `
		INSERT INTO epochs (number, start_time, duration_secs)
		VALUES ($1, $2, $3)
		RETURNING ` + epochSelectCols

	e, err := scanEpoch(s.pool.QueryRow(ctx, query, number, start, int64(dur.Seconds())))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Epoch{}, domain.ErrAlreadyExists
		}
		return domain.Epoch{}, fmt.Errorf("postgres: create epoch %d: %w", number, err)
	}
	return e, nil
}

// MarkEnded records the winner (or skip) on an epoch at its boundary.
func (s *EpochStore) MarkEnded(ctx context.Context, number int64, winnerAsset, winnerCreator string, skipped bool, endedAt time.Time) error {
	const query = `
		UPDATE epochs
		SET end_time = $2, winner_asset = NULLIF($3, ''),
			winner_creator = NULLIF($4, ''), skipped = $5,
			auction_started = ($5 = FALSE)
		WHERE number = $1 AND end_time IS NULL`

	tag, err := s.pool.Exec(ctx, query, number, endedAt, winnerAsset, winnerCreator, skipped)
	if err != nil {
		return fmt.Errorf("postgres: mark epoch %d ended: %w", number, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Finalize closes an epoch after its auction settles (or after a skip).
func (s *EpochStore) Finalize(ctx context.Context, number int64) error {
	const query = `UPDATE epochs SET finalized = TRUE WHERE number = $1 AND finalized = FALSE`

	tag, err := s.pool.Exec(ctx, query, number)
	if err != nil {
		return fmt.Errorf("postgres: finalize epoch %d: %w", number, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
