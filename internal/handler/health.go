package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type healthCheck struct {
	name  string
	probe func(ctx context.Context) error
}

// HealthHandler always checks the database. Other dependencies are added
// with WithCheck and show up under their own name in the readiness body.
type HealthHandler struct {
	checks  []healthCheck
	timeout time.Duration
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{
		checks:  []healthCheck{{name: "database", probe: db.PingContext}},
		timeout: 2 * time.Second,
	}
}

func (h *HealthHandler) WithCheck(name string, probe func(ctx context.Context) error) *HealthHandler {
	h.checks = append(h.checks, healthCheck{name: name, probe: probe})
	return h
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	status, code := "ok", http.StatusOK
	for _, c := range h.checks {
		if err := c.probe(ctx); err != nil {
			slog.Warn("readiness check failed", "check", c.name, "error", err)
			results[c.name] = "down"
			status, code = "down", http.StatusServiceUnavailable
			continue
		}
		results[c.name] = "ok"
	}

	RespondJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	})
}
