// Package api is the HTTP boundary: credential extraction, parameter
// validation, engine invocation, envelope shaping and audit emission.
package api

import (
	"context"
	"log/slog"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ourway/auth/internal/api/helpers"
	custommw "github.com/ourway/auth/internal/api/middleware"
	"github.com/ourway/auth/internal/audit"
	"github.com/ourway/auth/internal/config"
	"github.com/ourway/auth/internal/engine"
	"github.com/ourway/auth/internal/storage"
	"github.com/ourway/auth/internal/token"
)

// Engine is the authorization surface the handlers call. *engine.Engine
// satisfies it; tests substitute a fake.
type Engine interface {
	AddRole(ctx context.Context, creator, role string, description *string) (bool, error)
	DelRole(ctx context.Context, creator, role string) (bool, error)
	Roles(ctx context.Context, creator string) ([]engine.Role, error)

	AddPermission(ctx context.Context, creator, role, name string) (bool, error)
	HasPermission(ctx context.Context, creator, role, name string) (bool, error)
	DelPermission(ctx context.Context, creator, role, name string) (bool, error)

	AddMembership(ctx context.Context, creator, user, role string) (bool, error)
	HasMembership(ctx context.Context, creator, user, role string) (bool, error)
	DelMembership(ctx context.Context, creator, user, role string) (bool, error)

	UserHasPermission(ctx context.Context, creator, user, name string) (bool, error)
	UserPermissions(ctx context.Context, creator, user string) ([]engine.Permission, error)
	RolePermissions(ctx context.Context, creator, role string) ([]engine.Permission, error)
	UserRoles(ctx context.Context, creator, user string) ([]engine.Member, error)
	RoleMembers(ctx context.Context, creator, role string) ([]engine.Member, error)
	WhichRolesCan(ctx context.Context, creator, name string) ([]engine.RoleRef, error)
	WhichUsersCan(ctx context.Context, creator, name string) ([]engine.Member, error)
}

type Server struct {
	Router  *chi.Mux
	Pool    *pgxpool.Pool
	Queries *storage.Queries
	Engine  Engine
	Audit   audit.Recorder
	Issuer  *token.Issuer
	Logger  *slog.Logger
}

// NewServer assembles the router. Everything under /api requires a tenant
// credential; /ping and /health stay open for probes.
func NewServer(pool *pgxpool.Pool, queries *storage.Queries, eng Engine, recorder audit.Recorder, issuer *token.Issuer, cfg config.Config) *Server {
	s := &Server{
		Pool:    pool,
		Queries: queries,
		Engine:  eng,
		Audit:   recorder,
		Issuer:  issuer,
		Logger:  slog.Default(),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Sentry before recovery so its handler sees repanics.
	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(custommw.RequestLogger)
	r.Use(custommw.PanicRecovery)

	limiter := custommw.NewIPRateLimiter(50, 100)
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	timeout := cfg.RequestTimeout
	if timeout > 0 {
		r.Use(custommw.Timeout(timeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		helpers.RespondError(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		helpers.RespondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/ping", s.handlePing)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(custommw.TenantAuth(issuer))

		// The role name is matched as a wildcard so traversal attempts like
		// /api/role/../etc/passwd reach the validator and get a 400 instead
		// of falling through to the 404 handler.
		r.Post("/role/*", s.handleAddRole)
		r.Delete("/role/*", s.handleDelRole)
		r.Get("/roles", s.handleListRoles)

		r.Post("/permission/{role}/{name}", s.handleAddPermission)
		r.Get("/permission/{role}/{name}", s.handleCheckPermission)
		r.Delete("/permission/{role}/{name}", s.handleDelPermission)

		r.Post("/membership/{user}/{role}", s.handleAddMembership)
		r.Get("/membership/{user}/{role}", s.handleCheckMembership)
		r.Delete("/membership/{user}/{role}", s.handleDelMembership)

		r.Get("/has_permission/{user}/{name}", s.handleUserHasPermission)
		r.Get("/user_permissions/{user}", s.handleUserPermissions)
		r.Get("/role_permissions/{role}", s.handleRolePermissions)
		r.Get("/user_roles/{user}", s.handleUserRoles)
		r.Get("/members/{role}", s.handleRoleMembers)
		r.Get("/which_roles_can/{name}", s.handleWhichRolesCan)
		r.Get("/which_users_can/{name}", s.handleWhichUsersCan)

		r.Post("/token", s.handleIssueToken)

		r.Get("/workflow/users/{workflow}", s.handleWorkflowUsers)
		r.Get("/workflow/user/{user}/can_run/{workflow}", s.handleWorkflowCanRun)

		r.Get("/audit", s.handleAuditLog)
	})

	s.Router = r
	return s
}
