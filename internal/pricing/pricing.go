// Package pricing holds the pure pricing policy for paid votes and bids.
// Everything here is a function of its arguments; the confirm paths re-invoke
// these against current store state so a stale quote can never set the price.
package pricing

// tierSize is the number of votes per pricing tier. The unit price is
// constant within a tier and multiplies by 3/2 per completed tier. The 11th
// vote is priced off a tally of 10, still tier 0, so the 12th vote is the
// first to cost more than the base price.
const tierSize = 10

// minBidIncrementBps is the minimum step over the current bid, in basis
// points (5%).
const minBidIncrementBps = 500

// tier returns the completed-bucket count for a candidate whose tally is
// already at the given value: votes 1 through 10 share tier 0, 11 through 20
// tier 1, and so on.
func tier(tally int64) int64 {
	if tally <= 0 {
		return 0
	}
	return (tally - 1) / tierSize
}

// VotePrice returns the cost of the next single vote for a candidate that
// already has tally votes: base * 3^tier / 2^tier, integer-truncated.
func VotePrice(base, tally int64) int64 {
	price := base
	for i := int64(0); i < tier(tally); i++ {
		price = price * 3 / 2
	}
	return price
}

// BatchVotePrice returns the total cost of buying count votes starting from
// the given tally, summing each marginal unit price. A purchase spanning a
// tier boundary is therefore mixed-priced, and the total is path-independent:
// buying k votes at once costs the same as k single purchases.
func BatchVotePrice(base, tally, count int64) int64 {
	var total int64
	for i := int64(0); i < count; i++ {
		total += VotePrice(base, tally+i)
	}
	return total
}

// MinBid returns the lowest acceptable bid given the auction's reserve and
// current high bid: the reserve when no bids exist, otherwise the current
// bid plus 5%, integer-truncated.
func MinBid(reserve, currentBid int64) int64 {
	if currentBid <= 0 {
		return reserve
	}
	min := currentBid * (10000 + minBidIncrementBps) / 10000
	if min < reserve {
		return reserve
	}
	return min
}
