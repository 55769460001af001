package domain

import "time"

// Auction is the timed ascending-price auction for an epoch's winning asset.
// CurrentBid=0 with an empty CurrentBidder is the valid "no bids yet" state.
// At most one unsettled auction exists per epoch.
type Auction struct {
	ID            int64
	EpochNumber   int64
	AssetAddress  string
	Creator       string
	ReserveBid    int64
	StartTime     time.Time
	EndTime       time.Time
	CurrentBid    int64
	CurrentBidder string
	BidCount      int64
	Settled       bool
}

// Ended reports whether the auction's bidding window has elapsed at now.
func (a Auction) Ended(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// HasBids reports whether at least one bid has been confirmed.
func (a Auction) HasBids() bool {
	return a.CurrentBidder != "" && a.CurrentBid > 0
}

// Bid is an append-only bid history row. Every bid superseded by a higher bid
// must eventually reach Refunded=true; the crank retries until it does.
// RefundPending marks a row whose refund transfer is in flight, which keeps a
// second worker from paying it a second time.
type Bid struct {
	ID            int64
	AuctionID     int64
	Bidder        string
	Amount        int64
	Refunded      bool
	RefundPending bool
	RefundTx      string
	RefundError   string
	CreatedAt     time.Time
}

// FounderEntry records a settled auction's outcome: the asset, its creator,
// and the bidder who now owns it as a Founder Key.
type FounderEntry struct {
	AssetAddress string
	Creator      string
	Owner        string
	EpochWon     int64
	CreatedAt    time.Time
}
