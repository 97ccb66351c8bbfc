package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ourway/auth/internal/api/helpers"
	"github.com/ourway/auth/internal/api/middleware"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/validate"
)

type issueTokenRequest struct {
	Permissions []string `json:"permissions"`
	TTLSeconds  int      `json:"ttl_seconds"`
}

const maxTokenTTL = 7 * 24 * time.Hour

// handleIssueToken mints a service JWT for the authenticated tenant. The
// token is interchangeable with the raw key at the boundary, which lets
// operators hand out expiring credentials instead of the key itself.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())

	var req issueTokenRequest
	if err := helpers.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.emitAudit(r, audit.ActionIssueToken, "", "", nil, false)
		helpers.RespondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	for _, p := range req.Permissions {
		if err := validate.PermissionName(p); err != nil {
			s.emitAudit(r, audit.ActionIssueToken, "", "", nil, false)
			s.respondError(w, r, err)
			return
		}
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl < 0 || ttl > maxTokenTTL {
		s.emitAudit(r, audit.ActionIssueToken, "", "", nil, false)
		helpers.RespondError(w, http.StatusBadRequest, "ttl_seconds out of range", nil)
		return
	}

	signed, expiresAt, err := s.Issuer.Issue(creator, req.Permissions, ttl)
	if err != nil {
		s.emitAudit(r, audit.ActionIssueToken, "", "", nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionIssueToken, "", "",
		map[string]any{"permissions": req.Permissions, "expires_at": expiresAt.UTC().Format(time.RFC3339)}, true)
	helpers.RespondSuccess(w, http.StatusOK, map[string]any{
		"token":      signed,
		"token_type": "Bearer",
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}
