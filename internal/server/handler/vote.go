package handler

import (
	"net/http"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/service"
)

// VoteHandler serves free votes, the paid-vote quote/confirm flow, and
// swipe predictions.
type VoteHandler struct {
	votes *service.VoteService
}

// NewVoteHandler creates a VoteHandler.
func NewVoteHandler(votes *service.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

type freeVoteRequest struct {
	Wallet       string `json:"wallet"`
	AssetAddress string `json:"asset_address"`
}

// FreeVote casts the wallet's free vote for a candidate.
// POST /api/vote
func (h *VoteHandler) FreeVote(w http.ResponseWriter, r *http.Request) {
	var req freeVoteRequest
	if err := decodeJSON(r, &req); err != nil || req.Wallet == "" || req.AssetAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet and asset_address are required")
		return
	}

	candidate, err := h.votes.FreeVote(r.Context(), req.Wallet, req.AssetAddress)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}

type paidVoteRequest struct {
	Wallet       string `json:"wallet"`
	AssetAddress string `json:"asset_address"`
	Count        int64  `json:"count"`
}

// PaidVoteQuote prices a vote batch at the candidate's current tally and
// returns the payment transfer.
// POST /api/vote-paid
func (h *VoteHandler) PaidVoteQuote(w http.ResponseWriter, r *http.Request) {
	var req paidVoteRequest
	if err := decodeJSON(r, &req); err != nil || req.Wallet == "" || req.AssetAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet and asset_address are required")
		return
	}

	quote, err := h.votes.PaidVoteQuote(r.Context(), req.Wallet, req.AssetAddress, req.Count)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": quote.Tx,
		"count":       quote.Count,
		"lamports":    quote.Lamports,
		"unit_price":  quote.UnitPrice,
	})
}

type paidVoteConfirmRequest struct {
	Wallet       string `json:"wallet"`
	AssetAddress string `json:"asset_address"`
	Count        int64  `json:"count"`
	Signature    string `json:"signature"`
}

// PaidVoteConfirm verifies the payment and applies the votes at the price
// current at confirm time.
// POST /api/vote/confirm
func (h *VoteHandler) PaidVoteConfirm(w http.ResponseWriter, r *http.Request) {
	var req paidVoteConfirmRequest
	if err := decodeJSON(r, &req); err != nil ||
		req.Wallet == "" || req.AssetAddress == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "wallet, asset_address, and signature are required")
		return
	}

	candidate, err := h.votes.PaidVoteConfirm(r.Context(), req.Wallet, req.AssetAddress, req.Count, req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}

type predictRequest struct {
	Wallet       string `json:"wallet"`
	AssetAddress string `json:"asset_address"`
	Direction    string `json:"direction"`
}

// Predict records a swipe prediction on a candidate.
// POST /api/predict
func (h *VoteHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeJSON(r, &req); err != nil ||
		req.Wallet == "" || req.AssetAddress == "" || req.Direction == "" {
		writeError(w, http.StatusBadRequest, "wallet, asset_address, and direction are required")
		return
	}

	err := h.votes.Predict(r.Context(), req.Wallet, req.AssetAddress, domain.PredictionDirection(req.Direction))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// Deck returns the candidates the wallet has not yet predicted on.
// GET /api/predictions/{wallet}/deck
func (h *VoteHandler) Deck(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	deck, err := h.votes.Deck(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deck": deck})
}

// Stats returns the wallet's prediction record.
// GET /api/predictions/{wallet}/stats
func (h *VoteHandler) Stats(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	stats, err := h.votes.Stats(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
