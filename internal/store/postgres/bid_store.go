package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultline/artkey/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL. Bids are append-only
// history; the auction row carries the current winner.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a new BidStore backed by the given connection pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

const bidSelectCols = `id, auction_id, bidder, amount, refunded, refund_pending, refund_tx, refund_error, created_at`

func scanBid(scanner interface{ Scan(dest ...any) error }) (domain.Bid, error) {
	var b domain.Bid
	var refundTx, refundErr *string
	err := scanner.Scan(
		&b.ID, &b.AuctionID, &b.Bidder, &b.Amount,
		&b.Refunded, &b.RefundPending, &refundTx, &refundErr, &b.CreatedAt,
	)
	if err != nil {
		return domain.Bid{}, err
	}
	if refundTx != nil {
		b.RefundTx = *refundTx
	}
	if refundErr != nil {
		b.RefundError = *refundErr
	}
	return b, nil
}

// Insert appends a bid row and returns it with its assigned ID.
func (s *BidStore) Insert(ctx context.Context, b domain.Bid) (domain.Bid, error) {
	const query = `
		INSERT INTO bids (auction_id, bidder, amount)
		VALUES ($1, $2, $3)
		RETURNING ` + bidSelectCols

	created, err := scanBid(s.pool.QueryRow(ctx, query, b.AuctionID, b.Bidder, b.Amount))
	if err != nil {
		return domain.Bid{}, fmt.Errorf("postgres: insert bid auction %d: %w", b.AuctionID, err)
	}
	return created, nil
}

// ListByAuction returns the full bid history of one auction, oldest first.
func (s *BidStore) ListByAuction(ctx context.Context, auctionID int64) ([]domain.Bid, error) {
	const query = `SELECT ` + bidSelectCols + `
		FROM bids WHERE auction_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids auction %d: %w", auctionID, err)
	}
	defer rows.Close()

	var out []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bid: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ClaimRefund claims the oldest unrefunded, unclaimed row matching the
// triple by setting refund_pending. The subquery's SKIP LOCKED plus the
// refund_pending guard means concurrent claimants get distinct rows or
// nothing; exactly one worker ends up allowed to send the transfer.
func (s *BidStore) ClaimRefund(ctx context.Context, auctionID int64, bidder string, amount int64) (int64, bool, error) {
	const query = `
		UPDATE bids SET refund_pending = TRUE
		WHERE id = (
			SELECT id FROM bids
			WHERE auction_id = $1 AND bidder = $2 AND amount = $3
			  AND refunded = FALSE AND refund_pending = FALSE
			ORDER BY id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`

	var bidID int64
	err := s.pool.QueryRow(ctx, query, auctionID, bidder, amount).Scan(&bidID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("postgres: claim refund auction %d bidder %s: %w", auctionID, bidder, err)
	}
	return bidID, true, nil
}

// MarkRefunded completes a claimed refund, recording the refund tx.
func (s *BidStore) MarkRefunded(ctx context.Context, bidID int64, refundTx string) error {
	const query = `
		UPDATE bids SET refunded = TRUE, refund_pending = FALSE, refund_tx = $2, refund_error = NULL
		WHERE id = $1 AND refunded = FALSE`

	if _, err := s.pool.Exec(ctx, query, bidID, refundTx); err != nil {
		return fmt.Errorf("postgres: mark refunded bid %d: %w", bidID, err)
	}
	return nil
}

// ReleaseRefundClaim puts a claimed row back in the retry queue and stores
// the send error so operators can inspect stuck refunds.
func (s *BidStore) ReleaseRefundClaim(ctx context.Context, bidID int64, reason string) error {
	const query = `
		UPDATE bids SET refund_pending = FALSE, refund_error = $2
		WHERE id = $1 AND refunded = FALSE`

	if _, err := s.pool.Exec(ctx, query, bidID, reason); err != nil {
		return fmt.Errorf("postgres: release refund claim bid %d: %w", bidID, err)
	}
	return nil
}

// ListUnrefunded returns superseded bids still awaiting a refund, oldest
// first. The current high bid is excluded whether or not the auction has
// settled: while open it is locked in escrow, and after settlement it paid
// for the asset. Claimed rows are excluded; their refund is in flight.
func (s *BidStore) ListUnrefunded(ctx context.Context, limit int) ([]domain.Bid, error) {
	const query = `
		SELECT ` + bidSelectCols + `
		FROM bids b
		WHERE b.refunded = FALSE
		  AND b.refund_pending = FALSE
		  AND NOT EXISTS (
			SELECT 1 FROM auctions a
			WHERE a.id = b.auction_id
			  AND a.current_bidder = b.bidder
			  AND a.current_bid = b.amount
		  )
		ORDER BY b.created_at ASC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: list unrefunded bids: %w", err)
	}
	defer rows.Close()

	var out []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bid: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
