package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler reports liveness and readiness. Readiness pings the store
// and the cache with a short deadline.
type HealthHandler struct {
	dbPing    func(ctx context.Context) error
	cachePing func(ctx context.Context) error
}

func NewHealthHandler(dbPing, cachePing func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{dbPing: dbPing, cachePing: cachePing}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "cache": "ok"}
	healthy := true

	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
	}
	if h.cachePing != nil {
		if err := h.cachePing(ctx); err != nil {
			checks["cache"] = err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	respondData(w, status, checks)
}
