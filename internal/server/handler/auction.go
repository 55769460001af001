package handler

import (
	"net/http"

	"github.com/vaultline/artkey/internal/service"
)

// AuctionHandler serves the auction read endpoints and the bid
// quote/confirm flow.
type AuctionHandler struct {
	auctions *service.AuctionService
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(auctions *service.AuctionService) *AuctionHandler {
	return &AuctionHandler{auctions: auctions}
}

// GetCurrent returns the most recent auction.
// GET /api/auction
func (h *AuctionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	auction, err := h.auctions.Current(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}

// ListUnsettled returns every auction still awaiting settlement.
// GET /api/auctions
func (h *AuctionHandler) ListUnsettled(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.auctions.Unsettled(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": auctions})
}

type bidRequest struct {
	Wallet   string `json:"wallet"`
	Lamports int64  `json:"lamports"`
}

// BidQuote validates the amount and returns the bid transfer.
// POST /api/bid
func (h *AuctionHandler) BidQuote(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if err := decodeJSON(r, &req); err != nil || req.Wallet == "" || req.Lamports <= 0 {
		writeError(w, http.StatusBadRequest, "wallet and a positive lamports amount are required")
		return
	}

	quote, err := h.auctions.BidQuote(r.Context(), req.Wallet, req.Lamports)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": quote.Tx,
		"auction_id":  quote.AuctionID,
		"lamports":    quote.Lamports,
		"minimum_bid": quote.MinimumBid,
	})
}

type bidConfirmRequest struct {
	Wallet    string `json:"wallet"`
	Lamports  int64  `json:"lamports"`
	Signature string `json:"signature"`
}

// BidConfirm verifies the payment and records the bid, refunding the
// displaced bidder.
// POST /api/bid/confirm
func (h *AuctionHandler) BidConfirm(w http.ResponseWriter, r *http.Request) {
	var req bidConfirmRequest
	if err := decodeJSON(r, &req); err != nil ||
		req.Wallet == "" || req.Lamports <= 0 || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "wallet, lamports, and signature are required")
		return
	}

	auction, err := h.auctions.BidConfirm(r.Context(), req.Wallet, req.Lamports, req.Signature)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}
