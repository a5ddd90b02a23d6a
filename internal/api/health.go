package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// readinessTimeout bounds the database ping so a hung pool cannot stall
// orchestrator probes.
const readinessTimeout = 2 * time.Second

// healthz reports process liveness for Docker/Kubernetes probes.
// Returns 200 OK with {"status":"ok"} without touching any dependency.
func healthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
}

// readiness returns the /readyz handler. The pool is pinged with a short
// timeout; a nil pool skips the database probe.
func readiness(pool *pgxpool.Pool, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.Warn("readiness probe failed", "error", err)
			WriteError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", logger)
			return
		}

		WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"}, logger)
	}
}
