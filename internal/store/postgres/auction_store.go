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

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

const auctionSelectCols = `id, epoch_number, asset_address, creator, reserve_bid,
	start_time, end_time, current_bid, current_bidder, bid_count, settled`

func scanAuction(scanner interface{ Scan(dest ...any) error }) (domain.Auction, error) {
	var a domain.Auction
	var bidder *string
	err := scanner.Scan(
		&a.ID, &a.EpochNumber, &a.AssetAddress, &a.Creator, &a.ReserveBid,
		&a.StartTime, &a.EndTime, &a.CurrentBid, &bidder, &a.BidCount, &a.Settled,
	)
	if err != nil {
		return domain.Auction{}, err
	}
	if bidder != nil {
		a.CurrentBidder = *bidder
	}
	return a, nil
}

// Create inserts a new auction. The partial unique index on unsettled
// auctions per epoch rejects a duplicate with ErrAlreadyExists.
func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) (domain.Auction, error) {
	const query = `
		INSERT INTO auctions (
			epoch_number, asset_address, creator, reserve_bid, start_time, end_time
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + auctionSelectCols

	created, err := scanAuction(s.pool.QueryRow(ctx, query,
		a.EpochNumber, a.AssetAddress, a.Creator, a.ReserveBid, a.StartTime, a.EndTime,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Auction{}, domain.ErrAlreadyExists
		}
		return domain.Auction{}, fmt.Errorf("postgres: create auction epoch %d: %w", a.EpochNumber, err)
	}
	return created, nil
}

// GetOpenByEpoch returns the unsettled auction for an epoch.
func (s *AuctionStore) GetOpenByEpoch(ctx context.Context, epoch int64) (domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + `
		FROM auctions WHERE epoch_number = $1 AND settled = FALSE`

	a, err := scanAuction(s.pool.QueryRow(ctx, query, epoch))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNoAuction
		}
		return domain.Auction{}, fmt.Errorf("postgres: open auction epoch %d: %w", epoch, err)
	}
	return a, nil
}

// GetOpenByAsset returns the unsettled auction for an asset.
func (s *AuctionStore) GetOpenByAsset(ctx context.Context, asset string) (domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + `
		FROM auctions WHERE asset_address = $1 AND settled = FALSE`

	a, err := scanAuction(s.pool.QueryRow(ctx, query, asset))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNoAuction
		}
		return domain.Auction{}, fmt.Errorf("postgres: open auction asset %s: %w", asset, err)
	}
	return a, nil
}

// Latest returns the most recent auction regardless of state.
func (s *AuctionStore) Latest(ctx context.Context) (domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + ` FROM auctions ORDER BY id DESC LIMIT 1`

	a, err := scanAuction(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNoAuction
		}
		return domain.Auction{}, fmt.Errorf("postgres: latest auction: %w", err)
	}
	return a, nil
}

// ListUnsettled returns every auction still awaiting settlement.
func (s *AuctionStore) ListUnsettled(ctx context.Context) ([]domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + `
		FROM auctions WHERE settled = FALSE ORDER BY epoch_number ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unsettled auctions: %w", err)
	}
	defer rows.Close()

	var out []domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan auction: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// NextExpired returns the earliest-epoch unsettled auction whose end time has
// passed.
func (s *AuctionStore) NextExpired(ctx context.Context, now time.Time) (domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + `
		FROM auctions
		WHERE settled = FALSE AND end_time <= $1
		ORDER BY epoch_number ASC
		LIMIT 1`

	a, err := scanAuction(s.pool.QueryRow(ctx, query, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: next expired auction: %w", err)
	}
	return a, nil
}

// RecordBid overwrites the current bid, bumps the count, and applies the
// anti-snipe end-time extension in one statement. The amount guard makes a
// lost race against a concurrent higher bid affect zero rows. The self-join
// reads the pre-update row, so the returned displaced pair is exactly what
// this statement overwrote; callers refund that pair and nothing else.
func (s *AuctionStore) RecordBid(ctx context.Context, id int64, bidder string, amount int64, newEnd time.Time) (string, int64, error) {
	const query = `
		UPDATE auctions
		SET current_bid = $3, current_bidder = $2, bid_count = auctions.bid_count + 1,
			end_time = GREATEST(auctions.end_time, $4)
		FROM auctions prev
		WHERE auctions.id = $1 AND prev.id = auctions.id
		  AND auctions.settled = FALSE AND auctions.current_bid < $3
		RETURNING prev.current_bidder, prev.current_bid`

	var displacedBidder *string
	var displacedAmount int64
	err := s.pool.QueryRow(ctx, query, id, bidder, amount, newEnd).Scan(&displacedBidder, &displacedAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, domain.ErrBidTooLow
		}
		return "", 0, fmt.Errorf("postgres: record bid auction %d: %w", id, err)
	}
	if displacedBidder == nil {
		return "", 0, nil
	}
	return *displacedBidder, displacedAmount, nil
}

// MarkSettled flips an auction to settled.
func (s *AuctionStore) MarkSettled(ctx context.Context, id int64) error {
	const query = `UPDATE auctions SET settled = TRUE WHERE id = $1 AND settled = FALSE`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: mark auction settled %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
