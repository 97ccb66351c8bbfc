package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ourway/auth/internal/api/helpers"
	"github.com/ourway/auth/internal/api/middleware"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/validate"
)

func membershipParams(r *http.Request) (user, role string, err error) {
	user = chi.URLParam(r, "user")
	role = chi.URLParam(r, "role")
	if err = validate.UserName(user); err != nil {
		return "", "", err
	}
	if err = validate.RoleName(role); err != nil {
		return "", "", err
	}
	return user, role, nil
}

// handleAddMembership attaches a user to an existing active role. result is
// false when the role does not exist; a membership row for the user appears
// on first grant.
func (s *Server) handleAddMembership(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	user, role, err := membershipParams(r)
	if err != nil {
		s.emitAudit(r, audit.ActionAddMembership, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	result, err := s.Engine.AddMembership(r.Context(), creator, user, role)
	if err != nil {
		s.emitAudit(r, audit.ActionAddMembership, user, role, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionAddMembership, user, role, map[string]any{"result": result}, result)
	helpers.RespondSuccess(w, http.StatusOK, map[string]bool{"result": result})
}

// handleCheckMembership reports whether the user holds the role.
func (s *Server) handleCheckMembership(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	user, role, err := membershipParams(r)
	if err != nil {
		s.emitAudit(r, audit.ActionCheckMembership, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	result, err := s.Engine.HasMembership(r.Context(), creator, user, role)
	if err != nil {
		s.emitAudit(r, audit.ActionCheckMembership, user, role, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionCheckMembership, user, role, map[string]any{"result": result}, true)
	helpers.RespondSuccess(w, http.StatusOK, map[string]bool{"result": result})
}

// handleDelMembership detaches a user from a role. Unlink only: the
// membership row and the user's other roles survive.
func (s *Server) handleDelMembership(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	user, role, err := membershipParams(r)
	if err != nil {
		s.emitAudit(r, audit.ActionRemoveMembership, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	result, err := s.Engine.DelMembership(r.Context(), creator, user, role)
	if err != nil {
		s.emitAudit(r, audit.ActionRemoveMembership, user, role, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionRemoveMembership, user, role, map[string]any{"result": result}, result)
	helpers.RespondSuccess(w, http.StatusOK, map[string]bool{"result": result})
}
