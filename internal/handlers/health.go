package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/teacup/pkg/http"
)

// HealthChecker is satisfied by database.DB
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports whether the database is reachable
type HealthHandler struct {
	db HealthChecker
}

func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
