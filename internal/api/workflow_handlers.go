package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ourway/auth/internal/api/helpers"
	"github.com/ourway/auth/internal/api/middleware"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/validate"
)

// Workflow lookups treat the workflow name as a permission name. They exist
// for schedulers that periodically re-evaluate who may run what; the
// scheduler itself lives outside this service.

// handleWorkflowUsers returns the unique users that can run the workflow.
// Unlike which_users_can this deduplicates, since a scheduler cares about
// the user set, not the qualifying roles.
func (s *Server) handleWorkflowUsers(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	workflow := chi.URLParam(r, "workflow")

	if err := validate.PermissionName(workflow); err != nil {
		s.emitAudit(r, audit.ActionListMemberships, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}

	members, err := s.Engine.WhichUsersCan(r.Context(), creator, workflow)
	if err != nil {
		s.emitAudit(r, audit.ActionListMemberships, "", workflow, nil, false)
		s.respondError(w, r, err)
		return
	}

	seen := make(map[string]struct{}, len(members))
	users := make([]map[string]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.User]; ok {
			continue
		}
		seen[m.User] = struct{}{}
		users = append(users, map[string]string{"user": m.User})
	}

	s.emitAudit(r, audit.ActionListMemberships, "", workflow, map[string]any{"count": len(users)}, true)
	helpers.RespondSuccess(w, http.StatusOK, map[string]any{
		"workflow": workflow,
		"users":    users,
		"count":    len(users),
	})
}

// handleWorkflowCanRun reports whether one user can run the workflow.
func (s *Server) handleWorkflowCanRun(w http.ResponseWriter, r *http.Request) {
	creator := middleware.MustGetTenantKey(r.Context())
	user := chi.URLParam(r, "user")
	workflow := chi.URLParam(r, "workflow")

	if err := validate.UserName(user); err != nil {
		s.emitAudit(r, audit.ActionCheckPermission, "", r.URL.Path, nil, false)
		s.respondError(w, r, err)
		return
	}
	if err := validate.PermissionName(workflow); err != nil {
		s.emitAudit(r, audit.ActionCheckPermission, user, workflow, nil, false)
		s.respondError(w, r, err)
		return
	}

	canRun, err := s.Engine.UserHasPermission(r.Context(), creator, user, workflow)
	if err != nil {
		s.emitAudit(r, audit.ActionCheckPermission, user, workflow, nil, false)
		s.respondError(w, r, err)
		return
	}

	s.emitAudit(r, audit.ActionCheckPermission, user, workflow, map[string]any{"can_run": canRun}, true)
	helpers.RespondSuccess(w, http.StatusOK, map[string]any{
		"user":     user,
		"workflow": workflow,
		"can_run":  canRun,
	})
}
