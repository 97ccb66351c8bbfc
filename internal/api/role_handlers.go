package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ourway/auth/internal/api/helpers"
	"github.com/ourway/auth/internal/api/middleware"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/validate"
)

// roleParam pulls the role name out of the wildcard route. Anything beyond a
// single clean segment fails the validator downstream.
func roleParam(r *http.Request) string {
	return chi.URLParam(r, "*")
}

type addRoleRequest struct {
	Description *string `json:"description"`
}

// handleAddRole creates (or revives) a role. The body is optional; when
// present it may carry a description.
func (s *Server) handleAddRole(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	role := roleParam(r)

	if err := validate.RoleName(role); err != nil {
		s.emitAudit(r, audit.ActionCreateRole, "", role, nil, false)
		s.respondError(w, r, err)
		return
	}

	var req addRoleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.emitAudit(r, audit.ActionCreateRole, "", role, nil, false)
		helpers.RespondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.Description != nil {
		if err := validate.Description(*req.Description); err != nil {
			s.emitAudit(r, audit.ActionCreateRole, "", role, nil, false)
			s.respondError(w, r, err)
			return
		}
	}

	result, err := s.Engine.AddRole(r.Context(), creator, role, req.Description)
	if err != nil {
		s.emitAudit(r, audit.ActionCreateRole, "", role, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionCreateRole, "", role, map[string]any{"result": result}, result)
	helpers.RespondSuccess(w, http.StatusOK, map[string]bool{"result": result})
}

// handleDelRole soft-deletes a role. result is false when the role was
// already inactive or never existed.
func (s *Server) handleDelRole(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	role := roleParam(r)

	if err := validate.RoleName(role); err != nil {
		s.emitAudit(r, audit.ActionDeleteRole, "", role, nil, false)
		s.respondError(w, r, err)
		return
	}

	result, err := s.Engine.DelRole(r.Context(), creator, role)
	if err != nil {
		s.emitAudit(r, audit.ActionDeleteRole, "", role, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionDeleteRole, "", role, map[string]any{"result": result}, result)
	helpers.RespondSuccess(w, http.StatusOK, map[string]bool{"result": result})
}

// handleListRoles returns the tenant's active roles.
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())

	roles, err := s.Engine.Roles(r.Context(), creator)
	if err != nil {
		s.emitAudit(r, audit.ActionListRoles, "", "", nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionListRoles, "", "", map[string]any{"count": len(roles)}, true)
	helpers.RespondSuccess(w, http.StatusOK, map[string]any{"result": roles})
}
