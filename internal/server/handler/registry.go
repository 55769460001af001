package handler

import (
	"net/http"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/service"
)

// RegistryHandler serves competition entry, withdrawal, and the candidate
// read endpoints.
type RegistryHandler struct {
	registry *service.RegistryService
	founders domain.FounderStore
}

// NewRegistryHandler creates a RegistryHandler.
func NewRegistryHandler(registry *service.RegistryService, founders domain.FounderStore) *RegistryHandler {
	return &RegistryHandler{registry: registry, founders: founders}
}

type joinRequest struct {
	Wallet       string `json:"wallet"`
	AssetAddress string `json:"asset_address"`
}

// JoinQuote returns the entry-fee transfer for a piece joining the
// competition.
// POST /api/join
func (h *RegistryHandler) JoinQuote(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil || req.Wallet == "" || req.AssetAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet and asset_address are required")
		return
	}

	quote, err := h.registry.JoinQuote(r.Context(), req.Wallet, req.AssetAddress)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": quote.Tx,
		"lamports":    quote.Lamports,
	})
}

type joinConfirmRequest struct {
	Wallet       string `json:"wallet"`
	AssetAddress string `json:"asset_address"`
	Signature    string `json:"signature"`
}

// JoinConfirm verifies the entry fee, takes vault custody, and registers
// the candidate.
// POST /api/join/confirm
func (h *RegistryHandler) JoinConfirm(w http.ResponseWriter, r *http.Request) {
	var req joinConfirmRequest
	if err := decodeJSON(r, &req); err != nil ||
		req.Wallet == "" || req.AssetAddress == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "wallet, asset_address, and signature are required")
		return
	}

	candidate, err := h.registry.JoinConfirm(r.Context(), req.Wallet, req.AssetAddress, req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, candidate)
}

// Withdraw returns a candidate's asset to its creator and freezes the entry.
// POST /api/withdraw
func (h *RegistryHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil || req.Wallet == "" || req.AssetAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet and asset_address are required")
		return
	}

	if err := h.registry.Withdraw(r.Context(), req.Wallet, req.AssetAddress); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

// ListCandidates returns every active candidate.
// GET /api/candidates
func (h *RegistryHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.registry.Candidates(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

// Leaderboard returns the eligible candidates in winner order, cached
// between ticks.
// GET /api/leaderboard
func (h *RegistryHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.registry.Leaderboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": candidates})
}

// ListFounders returns settled winners, newest first.
// GET /api/founders
func (h *RegistryHandler) ListFounders(w http.ResponseWriter, r *http.Request) {
	entries, err := h.founders.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"founders": entries})
}
