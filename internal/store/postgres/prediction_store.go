package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultline/artkey/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL.
type PredictionStore struct {
	pool *pgxpool.Pool
}

// NewPredictionStore creates a new PredictionStore backed by the given pool.
func NewPredictionStore(pool *pgxpool.Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

const predictionSelectCols = `id, wallet, candidate, epoch_number, direction,
	correct, reward_lamports, claimed, claim_tx, created_at`

func scanPrediction(scanner interface{ Scan(dest ...any) error }) (domain.Prediction, error) {
	var p domain.Prediction
	var direction string
	var claimTx *string
	err := scanner.Scan(
		&p.ID, &p.Wallet, &p.Candidate, &p.EpochNumber, &direction,
		&p.Correct, &p.RewardLamports, &p.Claimed, &claimTx, &p.CreatedAt,
	)
	if err != nil {
		return domain.Prediction{}, err
	}
	p.Direction = domain.PredictionDirection(direction)
	if claimTx != nil {
		p.ClaimTx = *claimTx
	}
	return p, nil
}

func scanPredictions(rows pgx.Rows) ([]domain.Prediction, error) {
	defer rows.Close()
	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Insert adds a prediction; the unique index turns a duplicate for the same
// wallet, candidate, and epoch into ErrAlreadySwiped.
func (s *PredictionStore) Insert(ctx context.Context, p domain.Prediction) error {
	const query = `
		INSERT INTO predictions (wallet, candidate, epoch_number, direction)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query, p.Wallet, p.Candidate, p.EpochNumber, string(p.Direction))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadySwiped
		}
		return fmt.Errorf("postgres: insert prediction %s/%s: %w", p.Wallet, p.Candidate, err)
	}
	return nil
}

// ListUnswiped returns eligible candidates the wallet has not yet predicted
// on this epoch, in winner order so the deck fronts the contenders.
func (s *PredictionStore) ListUnswiped(ctx context.Context, wallet string, epoch int64) ([]domain.Candidate, error) {
	query := `
		SELECT ` + candidateSelectCols + `
		FROM candidates c
		WHERE c.won = FALSE AND c.withdrawn = FALSE
		  AND NOT EXISTS (
			SELECT 1 FROM predictions p
			WHERE p.wallet = $1 AND p.candidate = c.asset_address AND p.epoch_number = $2
		  )
		ORDER BY c.votes DESC, c.epoch_joined ASC, c.asset_address ASC`

	rows, err := s.pool.Query(ctx, query, wallet, epoch)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unswiped %s: %w", wallet, err)
	}
	out, err := scanCandidates(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan unswiped candidates: %w", err)
	}
	return out, nil
}

// GradeEpoch sets correct = TRUE for ungraded yes-predictions on the winner
// and correct = FALSE for every other ungraded prediction in the epoch. Both
// updates are gated on correct IS NULL so regrading is impossible.
func (s *PredictionStore) GradeEpoch(ctx context.Context, epoch int64, winner string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: grade epoch %d begin: %w", epoch, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const markCorrect = `
		UPDATE predictions SET correct = TRUE
		WHERE epoch_number = $1 AND candidate = $2 AND direction = 'yes'
		  AND correct IS NULL`
	if _, err := tx.Exec(ctx, markCorrect, epoch, winner); err != nil {
		return fmt.Errorf("postgres: grade epoch %d correct: %w", epoch, err)
	}

	const markIncorrect = `
		UPDATE predictions SET correct = FALSE
		WHERE epoch_number = $1 AND correct IS NULL`
	if _, err := tx.Exec(ctx, markIncorrect, epoch); err != nil {
		return fmt.Errorf("postgres: grade epoch %d incorrect: %w", epoch, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: grade epoch %d commit: %w", epoch, err)
	}
	return nil
}

// ListCorrect returns graded-correct predictions for an epoch, oldest first.
func (s *PredictionStore) ListCorrect(ctx context.Context, epoch int64) ([]domain.Prediction, error) {
	query := `
		SELECT ` + predictionSelectCols + `
		FROM predictions
		WHERE epoch_number = $1 AND correct = TRUE
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, epoch)
	if err != nil {
		return nil, fmt.Errorf("postgres: list correct predictions epoch %d: %w", epoch, err)
	}
	out, err := scanPredictions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan correct predictions: %w", err)
	}
	return out, nil
}

// SetReward records a prediction's share of the epoch reward pool.
func (s *PredictionStore) SetReward(ctx context.Context, id int64, lamports int64) error {
	const query = `UPDATE predictions SET reward_lamports = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, lamports)
	if err != nil {
		return fmt.Errorf("postgres: set prediction reward %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListUnclaimed returns rewarded, unclaimed predictions for a wallet.
func (s *PredictionStore) ListUnclaimed(ctx context.Context, wallet string) ([]domain.Prediction, error) {
	query := `
		SELECT ` + predictionSelectCols + `
		FROM predictions
		WHERE wallet = $1 AND reward_lamports > 0 AND claimed = FALSE
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unclaimed predictions %s: %w", wallet, err)
	}
	out, err := scanPredictions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan unclaimed predictions: %w", err)
	}
	return out, nil
}

// MarkClaimed flips the claimed flag for a batch of predictions, recording
// the payout transaction. Only unclaimed rows are touched.
func (s *PredictionStore) MarkClaimed(ctx context.Context, ids []int64, claimTx string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `
		UPDATE predictions SET claimed = TRUE, claim_tx = $2
		WHERE id = ANY($1) AND claimed = FALSE`

	if _, err := s.pool.Exec(ctx, query, ids, claimTx); err != nil {
		return fmt.Errorf("postgres: mark predictions claimed: %w", err)
	}
	return nil
}

// Stats aggregates a wallet's prediction record.
func (s *PredictionStore) Stats(ctx context.Context, wallet string) (domain.PredictionStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE correct = TRUE),
			COUNT(*) FILTER (WHERE correct = FALSE),
			COALESCE(SUM(reward_lamports), 0),
			COALESCE(SUM(reward_lamports) FILTER (WHERE claimed = FALSE), 0)
		FROM predictions
		WHERE wallet = $1`

	var st domain.PredictionStats
	st.Wallet = wallet
	err := s.pool.QueryRow(ctx, query, wallet).Scan(
		&st.Total, &st.Correct, &st.Incorrect, &st.TotalRewards, &st.UnclaimedRewards,
	)
	if err != nil {
		return domain.PredictionStats{}, fmt.Errorf("postgres: prediction stats %s: %w", wallet, err)
	}
	return st, nil
}
