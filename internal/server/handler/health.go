package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger probes one backing dependency.
type Pinger func(ctx context.Context) error

// HealthHandler reports process liveness and dependency reachability.
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler creates a HealthHandler probing the named dependencies.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HealthCheck reports overall status plus a per-dependency breakdown.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, ping := range h.deps {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}
