package handler

import (
	"net/http"

	"github.com/vaultline/artkey/internal/service"
)

// MintHandler serves the mint quote/confirm flow.
type MintHandler struct {
	mints *service.MintService
}

// NewMintHandler creates a MintHandler.
func NewMintHandler(mints *service.MintService) *MintHandler {
	return &MintHandler{mints: mints}
}

type mintRequest struct {
	Wallet string `json:"wallet"`
}

// Quote returns a partially-signed mint transaction for the next piece.
// POST /api/mint
func (h *MintHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil || req.Wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	quote, err := h.mints.Quote(r.Context(), req.Wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction":   quote.Tx,
		"asset_address": quote.AssetAddress,
		"number":        quote.Number,
		"lamports":      quote.Lamports,
	})
}

type mintConfirmRequest struct {
	Wallet       string `json:"wallet"`
	AssetAddress string `json:"asset_address"`
	Signature    string `json:"signature"`
}

// Confirm verifies the signed mint landed and advances the mint counter.
// POST /api/mint/confirm
func (h *MintHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req mintConfirmRequest
	if err := decodeJSON(r, &req); err != nil ||
		req.Wallet == "" || req.AssetAddress == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "wallet, asset_address, and signature are required")
		return
	}

	number, err := h.mints.Confirm(r.Context(), req.Wallet, req.AssetAddress, req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset_address": req.AssetAddress,
		"number":        number,
	})
}
