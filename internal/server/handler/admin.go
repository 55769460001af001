package handler

import (
	"net/http"

	"github.com/vaultline/artkey/internal/domain"
)

// AdminHandler serves the operator endpoints behind the admin key.
type AdminHandler struct {
	state domain.StateStore
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(state domain.StateStore) *AdminHandler {
	return &AdminHandler{state: state}
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

// SetPaused flips the engine-wide pause flag. Paused rejects every
// user-funded mutation while leaving read endpoints up.
// POST /api/admin/pause
func (h *AdminHandler) SetPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.state.SetPaused(r.Context(), req.Paused); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

// GetState returns the engine bookkeeping singleton.
// GET /api/admin/state
func (h *AdminHandler) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.state.Get(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
