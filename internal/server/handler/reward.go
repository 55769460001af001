package handler

import (
	"net/http"

	"github.com/vaultline/artkey/internal/service"
)

// RewardHandler serves reward state and claims.
type RewardHandler struct {
	rewards *service.RewardService
}

// NewRewardHandler creates a RewardHandler.
func NewRewardHandler(rewards *service.RewardService) *RewardHandler {
	return &RewardHandler{rewards: rewards}
}

// GetRewards returns the wallet's prediction rewards and voter-pool shares.
// GET /api/rewards/{wallet}
func (h *RewardHandler) GetRewards(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	rewards, err := h.rewards.Rewards(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"predictions":  rewards.Predictions,
		"voter_shares": rewards.VoterShares,
		"unclaimed":    rewards.Unclaimed,
	})
}

type claimRequest struct {
	Wallet string `json:"wallet"`
}

// Claim pays out every unclaimed reward in one transfer.
// POST /api/rewards/claim
func (h *RewardHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil || req.Wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet is required")
		return
	}

	result, err := h.rewards.Claim(r.Context(), req.Wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lamports":  result.Lamports,
		"signature": result.Signature,
		"items":     result.Items,
	})
}
