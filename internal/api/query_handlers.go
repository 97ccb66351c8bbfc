package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ourway/auth/internal/api/helpers"
	"github.com/ourway/auth/internal/api/middleware"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/validate"
)

// handleUserHasPermission answers the composite question: does the user hold
// any active role carrying the permission.
func (s *Server) handleUserHasPermission(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	user := chi.URLParam(r, "user")
	name := chi.URLParam(r, "name")

	if err := validate.UserName(user); err != nil {
		s.emitAudit(r, audit.ActionCheckPermission, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}
	if err := validate.PermissionName(name); err != nil {
		s.emitAudit(r, audit.ActionCheckPermission, user, name, nil, false)
		s.respondError(w, r, err)
		return
	}

	has, err := s.Engine.UserHasPermission(r.Context(), creator, user, name)
	if err != nil {
		s.emitAudit(r, audit.ActionCheckPermission, user, name, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionCheckPermission, user, name,
		map[string]any{"has_permission": has}, true)
	helpers.RespondSuccess(w, http.StatusOK, map[string]bool{"has_permission": has})
}

// handleUserPermissions lists the distinct permissions a user holds.
func (s *Server) handleUserPermissions(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	user := chi.URLParam(r, "user")

	if err := validate.UserName(user); err != nil {
		s.emitAudit(r, audit.ActionUserPermissions, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	permissions, err := s.Engine.UserPermissions(r.Context(), creator, user)
	if err != nil {
		s.emitAudit(r, audit.ActionUserPermissions, user, "", nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionUserPermissions, user, "", map[string]any{"count": len(permissions)}, true)
	helpers.RespondSuccess(w, http.StatusOK, map[string]any{
		"permissions": permissions,
		"count":       len(permissions),
	})
}

// handleRolePermissions lists the permissions granted to a role.
func (s *Server) handleRolePermissions(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	role := chi.URLParam(r, "role")

	if err := validate.RoleName(role); err != nil {
		s.emitAudit(r, audit.ActionListPermissions, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	permissions, err := s.Engine.RolePermissions(r.Context(), creator, role)
	if err != nil {
		s.emitAudit(r, audit.ActionListPermissions, "", role, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionListPermissions, "", role, map[string]any{"count": len(permissions)}, true)
	helpers.RespondSuccess(w, http.StatusOK, permissions)
}

// handleUserRoles lists the user's active roles as (user, role) pairs.
func (s *Server) handleUserRoles(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	user := chi.URLParam(r, "user")

	if err := validate.UserName(user); err != nil {
		s.emitAudit(r, audit.ActionListMemberships, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	members, err := s.Engine.UserRoles(r.Context(), creator, user)
	if err != nil {
		s.emitAudit(r, audit.ActionListMemberships, user, "", nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionListMemberships, user, "", map[string]any{"count": len(members)}, true)
	helpers.RespondSuccess(w, http.StatusOK, members)
}

// handleRoleMembers lists the role's active members.
func (s *Server) handleRoleMembers(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	role := chi.URLParam(r, "role")

	if err := validate.RoleName(role); err != nil {
		s.emitAudit(r, audit.ActionListMemberships, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	members, err := s.Engine.RoleMembers(r.Context(), creator, role)
	if err != nil {
		s.emitAudit(r, audit.ActionListMemberships, "", role, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionListMemberships, "", role, map[string]any{"count": len(members)}, true)
	helpers.RespondSuccess(w, http.StatusOK, members)
}

// handleWhichRolesCan lists the roles carrying a permission.
func (s *Server) handleWhichRolesCan(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	name := chi.URLParam(r, "name")

	if err := validate.PermissionName(name); err != nil {
		s.emitAudit(r, audit.ActionListPermissions, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	roles, err := s.Engine.WhichRolesCan(r.Context(), creator, name)
	if err != nil {
		s.emitAudit(r, audit.ActionListPermissions, "", name, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionListPermissions, "", name, map[string]any{"count": len(roles)}, true)
	helpers.RespondSuccess(w, http.StatusOK, roles)
}

// handleWhichUsersCan lists every (user, role) association granting the
// permission. Duplicates are preserved; callers dedupe.
func (s *Server) handleWhichUsersCan(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	name := chi.URLParam(r, "name")

	if err := validate.PermissionName(name); err != nil {
		s.emitAudit(r, audit.ActionListMemberships, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	members, err := s.Engine.WhichUsersCan(r.Context(), creator, name)
	if err != nil {
		s.emitAudit(r, audit.ActionListMemberships, "", name, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionListMemberships, "", name, map[string]any{"count": len(members)}, true)
	helpers.RespondSuccess(w, http.StatusOK, members)
}
