package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ourway/auth/internal/api/helpers"
)

// handlePing is pure liveness: no dependencies, constant payload.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	helpers.RespondSuccess(w, http.StatusOK, map[string]string{"message": "PONG"})
}

// handleHealth reports readiness: a short database ping plus the pool
// counters operators watch for connection leaks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Pool == nil {
		// No pool wired (tests); liveness only.
		helpers.RespondSuccess(w, http.StatusOK, map[string]any{"status": "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.Pool.Ping(ctx); err != nil {
		s.Logger.Error("health_check_failed", "error", err)
		helpers.RespondError(w, http.StatusServiceUnavailable, "unhealthy", map[string]string{
			"status": "unhealthy",
		})
		return
	}

	stat := s.Pool.Stat()
	overflow := stat.TotalConns() - stat.MaxConns()
	if overflow < 0 {
		overflow = 0
	}

	helpers.RespondSuccess(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"database": map[string]any{
			"pool_size":         stat.MaxConns(),
			"checked_out":       stat.AcquiredConns(),
			"available":         stat.IdleConns(),
			"overflow":          overflow,
			"total_connections": stat.TotalConns(),
		},
	})
}
