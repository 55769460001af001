package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultline/artkey/internal/domain"
)

// RewardStore implements domain.RewardStore using PostgreSQL.
type RewardStore struct {
	pool *pgxpool.Pool
}

// NewRewardStore creates a new RewardStore backed by the given pool.
func NewRewardStore(pool *pgxpool.Pool) *RewardStore {
	return &RewardStore{pool: pool}
}

const rewardSelectCols = `id, wallet, epoch_number, weight, total_weight,
	reward_lamports, claimed, claim_tx, created_at`

func scanReward(scanner interface{ Scan(dest ...any) error }) (domain.VoterReward, error) {
	var r domain.VoterReward
	var claimTx *string
	err := scanner.Scan(
		&r.ID, &r.Wallet, &r.EpochNumber, &r.Weight, &r.TotalWeight,
		&r.RewardLamports, &r.Claimed, &claimTx, &r.CreatedAt,
	)
	if err != nil {
		return domain.VoterReward{}, err
	}
	if claimTx != nil {
		r.ClaimTx = *claimTx
	}
	return r, nil
}

// InsertBatch writes the per-wallet shares for one settled epoch. The unique
// (wallet, epoch) constraint turns an accidental second distribution into a
// no-op rather than a double payout.
func (s *RewardStore) InsertBatch(ctx context.Context, rewards []domain.VoterReward) error {
	if len(rewards) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: insert rewards begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		INSERT INTO voter_rewards (wallet, epoch_number, weight, total_weight, reward_lamports)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (wallet, epoch_number) DO NOTHING`

	for _, r := range rewards {
		if _, err := tx.Exec(ctx, query,
			r.Wallet, r.EpochNumber, r.Weight, r.TotalWeight, r.RewardLamports,
		); err != nil {
			return fmt.Errorf("postgres: insert reward %s/%d: %w", r.Wallet, r.EpochNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: insert rewards commit: %w", err)
	}
	return nil
}

// ListByWallet returns every reward share a wallet has earned, newest first.
func (s *RewardStore) ListByWallet(ctx context.Context, wallet string) ([]domain.VoterReward, error) {
	query := `SELECT ` + rewardSelectCols + `
		FROM voter_rewards WHERE wallet = $1 ORDER BY epoch_number DESC`
	return s.list(ctx, query, wallet)
}

// ListUnclaimed returns the wallet's unclaimed reward shares, oldest first.
func (s *RewardStore) ListUnclaimed(ctx context.Context, wallet string) ([]domain.VoterReward, error) {
	query := `SELECT ` + rewardSelectCols + `
		FROM voter_rewards WHERE wallet = $1 AND claimed = FALSE
		ORDER BY epoch_number ASC`
	return s.list(ctx, query, wallet)
}

func (s *RewardStore) list(ctx context.Context, query string, args ...any) ([]domain.VoterReward, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list voter rewards: %w", err)
	}
	defer rows.Close()

	var out []domain.VoterReward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan voter reward: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkClaimed flips the claimed flag for a batch of reward rows, recording
// the payout transaction. Only unclaimed rows are touched.
func (s *RewardStore) MarkClaimed(ctx context.Context, ids []int64, claimTx string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `
		UPDATE voter_rewards SET claimed = TRUE, claim_tx = $2
		WHERE id = ANY($1) AND claimed = FALSE`

	if _, err := s.pool.Exec(ctx, query, ids, claimTx); err != nil {
		return fmt.Errorf("postgres: mark voter rewards claimed: %w", err)
	}
	return nil
}
