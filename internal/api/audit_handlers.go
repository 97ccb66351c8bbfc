package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ourway/auth/internal/api/helpers"
	"github.com/ourway/auth/internal/api/middleware"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type auditEntry struct {
	Timestamp string          `json:"timestamp"`
	User      string          `json:"user,omitempty"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	Success   bool            `json:"success"`
}

// handleAuditLog returns the tenant's most recent audit rows, newest first.
// Read-only; the table's append-only contract is untouched.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			helpers.RespondError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxAuditLimit)
	}

	rows, err := s.Queries.ListAuditLog(r.Context(), creator, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	entries := make([]auditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, auditEntry{
			Timestamp: row.Timestamp.UTC().Format(time.RFC3339Nano),
			User:      row.User,
			Action:    row.Action,
			Resource:  row.Resource,
			Details:   row.Details,
			Success:   row.Success,
		})
	}

	helpers.RespondSuccess(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
