package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultline/artkey/internal/domain"
)

// VoteStore implements domain.VoteStore using PostgreSQL.
type VoteStore struct {
	pool *pgxpool.Pool
}

// NewVoteStore creates a new VoteStore backed by the given connection pool.
func NewVoteStore(pool *pgxpool.Pool) *VoteStore {
	return &VoteStore{pool: pool}
}

// InsertFree inserts a free-vote row. The partial unique index turns a second
// free vote for the same candidate and epoch into ErrAlreadyVoted.
func (s *VoteStore) InsertFree(ctx context.Context, v domain.Vote) error {
	const query = `
		INSERT INTO votes (voter, candidate, epoch_number, count, vote_type, cost_lamports)
		VALUES ($1, $2, $3, 1, 'free', 0)`

	_, err := s.pool.Exec(ctx, query, v.Voter, v.Candidate, v.EpochNumber)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyVoted
		}
		return fmt.Errorf("postgres: insert free vote %s/%s: %w", v.Voter, v.Candidate, err)
	}
	return nil
}

// InsertPaid inserts a paid-vote row recording the confirmed cost.
func (s *VoteStore) InsertPaid(ctx context.Context, v domain.Vote) error {
	const query = `
		INSERT INTO votes (voter, candidate, epoch_number, count, vote_type, cost_lamports)
		VALUES ($1, $2, $3, $4, 'paid', $5)`

	_, err := s.pool.Exec(ctx, query, v.Voter, v.Candidate, v.EpochNumber, v.Count, v.CostLamports)
	if err != nil {
		return fmt.Errorf("postgres: insert paid vote %s/%s: %w", v.Voter, v.Candidate, err)
	}
	return nil
}

// ListForCandidate returns all votes cast for a candidate in an epoch.
func (s *VoteStore) ListForCandidate(ctx context.Context, epoch int64, candidate string) ([]domain.Vote, error) {
	const query = `
		SELECT id, voter, candidate, epoch_number, count, vote_type, cost_lamports, created_at
		FROM votes
		WHERE epoch_number = $1 AND candidate = $2
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, epoch, candidate)
	if err != nil {
		return nil, fmt.Errorf("postgres: list votes %d/%s: %w", epoch, candidate, err)
	}
	defer rows.Close()

	var out []domain.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan vote: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVote(row pgx.Row) (domain.Vote, error) {
	var v domain.Vote
	var voteType string
	err := row.Scan(
		&v.ID, &v.Voter, &v.Candidate, &v.EpochNumber,
		&v.Count, &voteType, &v.CostLamports, &v.CreatedAt,
	)
	if err != nil {
		return domain.Vote{}, err
	}
	v.Type = domain.VoteType(voteType)
	return v, nil
}
