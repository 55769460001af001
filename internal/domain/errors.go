package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrAlreadyVoted   = errors.New("free vote already used for this candidate this epoch")
	ErrAlreadySwiped  = errors.New("already predicted on this candidate this epoch")
	ErrNotEligible    = errors.New("wallet does not hold a qualifying asset")
	ErrBidTooLow      = errors.New("bid below minimum")
	ErrAuctionEnded   = errors.New("auction has ended")
	ErrNoAuction      = errors.New("no active auction")
	ErrCandidateGone  = errors.New("candidate not found or withdrawn")
	ErrCandidateWon   = errors.New("candidate already won an epoch")
	ErrNotOwner       = errors.New("wallet does not own this asset")
	ErrWrongCollection = errors.New("asset is not part of the art collection")
	ErrNotConfirmed   = errors.New("transaction not confirmed")
	ErrTxFailed       = errors.New("transaction failed on ledger")
	ErrPaused         = errors.New("auction system is paused")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrLockHeld       = errors.New("lock already held")
	ErrNoRewards      = errors.New("no unclaimed rewards")
)
