package api

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/ourway/auth/internal/api/helpers"
	"github.com/ourway/auth/internal/api/middleware"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/storage"
	"github.com/ourway/auth/internal/validate"
)

// respondError maps an error onto its HTTP status per the taxonomy:
// BadInput 400, NotFound 404, StoreUnavailable 503, everything else 500.
// Validation messages are safe to return; store and internal errors are
// logged (and sent to Sentry) with only a generic message going out.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validate.ErrBadInput):
		helpers.RespondError(w, http.StatusBadRequest, err.Error(), nil)

	case errors.Is(err, storage.ErrNotFound):
		helpers.RespondError(w, http.StatusNotFound, "resource not found", nil)

	case errors.Is(err, storage.ErrUnavailable):
		s.Logger.Error("store_unavailable", "error", err, "path", r.URL.Path)
		helpers.RespondError(w, http.StatusServiceUnavailable, "service temporarily unavailable", nil)

	default:
		s.Logger.Error("internal_error", "error", err, "path", r.URL.Path)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
		helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error", nil)
	}
}

// emitAudit records one audit event for the request. Called on every exit
// path of a privileged handler, so errors are audited too (success=false).
func (s *Server) emitAudit(r *http.Request, action audit.Action, user, resource string, details map[string]any, success bool) {
	clientID, _ := middleware.GetTenantKey(r.Context())
	s.Audit.Record(r.Context(), audit.Record{
		ClientID:  clientID,
		User:      user,
		Action:    action,
		Resource:  resource,
		Details:   details,
		IPAddress: helpers.GetRealIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	})
}
