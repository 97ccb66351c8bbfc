package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ourway/auth/internal/api/helpers"
	"github.com/ourway/auth/internal/api/middleware"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/validate"
)

// permissionParams validates the {role}/{name} pair shared by the three
// permission routes.
func permissionParams(r *http.Request) (role, name string, err error) {
	role = chi.URLParam(r, "role")
	name = chi.URLParam(r, "name")
	if err = validate.RoleName(role); err != nil {
		return "", "", err
	}
	if err = validate.PermissionName(name); err != nil {
		return "", "", err
	}
	return role, name, nil
}

// handleAddPermission grants a permission to an existing active role.
// result is false when the role does not exist — permissions never create
// roles.
func (s *Server) handleAddPermission(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	role, name, err := permissionParams(r)
	if err != nil {
		s.emitAudit(r, audit.ActionAddPermission, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	result, err := s.Engine.AddPermission(r.Context(), creator, role, name)
	if err != nil {
		s.emitAudit(r, audit.ActionAddPermission, "", name, map[string]any{"role": role}, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionAddPermission, "", name,
		map[string]any{"role": role, "result": result}, result)
	helpers.RespondSuccess(w, http.StatusOK, map[string]bool{"result": result})
}

// handleCheckPermission reports whether the role carries the permission.
func (s *Server) handleCheckPermission(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	role, name, err := permissionParams(r)
	if err != nil {
		s.emitAudit(r, audit.ActionCheckPermission, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	result, err := s.Engine.HasPermission(r.Context(), creator, role, name)
	if err != nil {
		s.emitAudit(r, audit.ActionCheckPermission, "", name, map[string]any{"role": role}, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionCheckPermission, "", name,
		map[string]any{"role": role, "result": result}, true)
	helpers.RespondSuccess(w, http.StatusOK, map[string]bool{"result": result})
}

// handleDelPermission revokes a permission from a role. Unlink only: the
// permission row and its links to other roles survive.
func (s *Server) handleDelPermission(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	role, name, err := permissionParams(r)
	if err != nil {
		s.emitAudit(r, audit.ActionRemovePermission, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	result, err := s.Engine.DelPermission(r.Context(), creator, role, name)
	if err != nil {
		s.emitAudit(r, audit.ActionRemovePermission, "", name, map[string]any{"role": role}, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionRemovePermission, "", name,
		map[string]any{"role": role, "result": result}, result)
	helpers.RespondSuccess(w, http.StatusOK, map[string]bool{"result": result})
}
