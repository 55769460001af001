package handler

import (
	"net/http"

	"github.com/vaultline/artkey/internal/service"
)

// EpochHandler serves the current epoch read endpoint.
type EpochHandler struct {
	epochs *service.EpochService
}

// NewEpochHandler creates an EpochHandler.
func NewEpochHandler(epochs *service.EpochService) *EpochHandler {
	return &EpochHandler{epochs: epochs}
}

// GetCurrent returns the open voting epoch, creating the first one on a
// fresh deployment.
// GET /api/epoch
func (h *EpochHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	epoch, err := h.epochs.Current(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, epoch)
}
