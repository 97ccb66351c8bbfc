// Package engine implements the RBAC decisions and administrative mutations
// on top of the storage primitives. Every method is scoped by the caller's
// tenant key; business outcomes (role missing, link absent) are boolean
// results, never errors — errors mean the store itself failed.
package engine

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ourway/auth/internal/storage"
)

// Role is a role projection for listings.
type Role struct {
	Role        string `json:"role"`
	Description string `json:"description"`
}

// RoleRef names a role in reverse-lookup results.
type RoleRef struct {
	Role string `json:"role"`
}

// Permission names a permission in listings.
type Permission struct {
	Name string `json:"name"`
}

// Member pairs a user with the role that produced the match. Reverse lookups
// keep one Member per membership-role association, so a user holding two
// qualifying roles appears twice.
type Member struct {
	User string `json:"user"`
	Role string `json:"role"`
}

// Engine composes storage primitives into the authorization surface.
type Engine struct {
	pool    *pgxpool.Pool
	queries *storage.Queries
}

// New creates an engine. The pool is used only for multi-statement writes
// that must commit atomically.
func New(pool *pgxpool.Pool, queries *storage.Queries) *Engine {
	return &Engine{pool: pool, queries: queries}
}

// AddRole creates the role or revives a tombstoned one under the same id.
// Always true on success; repeating the call is a no-op that still reports
// true (equivalent final state).
func (e *Engine) AddRole(ctx context.Context, creator, role string, description *string) (bool, error) {
	if _, err := e.queries.UpsertRole(ctx, creator, role, description); err != nil {
		return false, err
	}
	return true, nil
}

// DelRole tombstones the role. True only when the role was active before the
// call, so a repeated delete reads false.
func (e *Engine) DelRole(ctx context.Context, creator, role string) (bool, error) {
	return e.queries.DeactivateRole(ctx, creator, role)
}

// Roles lists the tenant's active roles.
func (e *Engine) Roles(ctx context.Context, creator string) ([]Role, error) {
	rows, err := e.queries.ListRoles(ctx, creator)
	if err != nil {
		return nil, err
	}
	out := make([]Role, 0, len(rows))
	for _, r := range rows {
		out = append(out, Role{Role: r.Role, Description: r.Description})
	}
	return out, nil
}

// AddPermission grants the permission to the role. The role must already
// exist and be active — permissions never create roles — otherwise the
// result is false with no side effects. The permission row is upserted
// (revived if tombstoned) and linked in one transaction.
func (e *Engine) AddPermission(ctx context.Context, creator, role, name string) (bool, error) {
	granted := false
	err := storage.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		qtx := e.queries.WithTx(tx)

		roleID, err := qtx.ActiveRoleID(ctx, creator, role)
		if err != nil {
			return err
		}
		permissionID, err := qtx.UpsertPermission(ctx, creator, name)
		if err != nil {
			return err
		}
		if err := qtx.LinkPermissionRole(ctx, permissionID, roleID); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return granted, nil
}

// DelPermission removes the permission from the role. The permission row
// itself survives — it may be linked to other roles or re-granted later.
// True whenever the post-state lacks the link, including when the role or
// permission never existed.
func (e *Engine) DelPermission(ctx context.Context, creator, role, name string) (bool, error) {
	roleID, err := e.queries.ActiveRoleID(ctx, creator, role)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	permissionID, err := e.queries.ActivePermissionID(ctx, creator, name)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if err := e.queries.UnlinkPermissionRole(ctx, permissionID, roleID); err != nil {
		return false, err
	}
	return true, nil
}

// AddMembership attaches the user to the role. The role must exist and be
// active; the membership row is upserted and linked in one transaction. A
// user's membership row appears the first time a role is granted, never
// implicitly.
func (e *Engine) AddMembership(ctx context.Context, creator, user, role string) (bool, error) {
	attached := false
	err := storage.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		qtx := e.queries.WithTx(tx)

		roleID, err := qtx.ActiveRoleID(ctx, creator, role)
		if err != nil {
			return err
		}
		membershipID, err := qtx.UpsertMembership(ctx, creator, user)
		if err != nil {
			return err
		}
		if err := qtx.LinkMembershipRole(ctx, membershipID, roleID); err != nil {
			return err
		}
		attached = true
		return nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return attached, nil
}

// DelMembership detaches the user from the role, keeping the membership row
// and any other role links. True whenever the post-state lacks the link.
func (e *Engine) DelMembership(ctx context.Context, creator, user, role string) (bool, error) {
	roleID, err := e.queries.ActiveRoleID(ctx, creator, role)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	membershipID, err := e.queries.ActiveMembershipID(ctx, creator, user)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if err := e.queries.UnlinkMembershipRole(ctx, membershipID, roleID); err != nil {
		return false, err
	}
	return true, nil
}

// HasPermission reports whether the active role carries the permission.
func (e *Engine) HasPermission(ctx context.Context, creator, role, name string) (bool, error) {
	return e.queries.RoleHasPermission(ctx, creator, role, name)
}

// HasMembership reports whether the user belongs to the active role.
func (e *Engine) HasMembership(ctx context.Context, creator, user, role string) (bool, error) {
	return e.queries.UserInRole(ctx, creator, user, role)
}

// UserHasPermission answers the composite question: does the user hold any
// active role carrying the permission. One SQL statement end to end.
func (e *Engine) UserHasPermission(ctx context.Context, creator, user, name string) (bool, error) {
	return e.queries.UserHasPermission(ctx, creator, user, name)
}

// UserPermissions returns the distinct permissions the user holds.
func (e *Engine) UserPermissions(ctx context.Context, creator, user string) ([]Permission, error) {
	names, err := e.queries.UserPermissionNames(ctx, creator, user)
	if err != nil {
		return nil, err
	}
	return toPermissions(names), nil
}

// RolePermissions returns the permissions granted to the role.
func (e *Engine) RolePermissions(ctx context.Context, creator, role string) ([]Permission, error) {
	names, err := e.queries.RolePermissionNames(ctx, creator, role)
	if err != nil {
		return nil, err
	}
	return toPermissions(names), nil
}

// UserRoles returns the user's active roles as (user, role) pairs.
func (e *Engine) UserRoles(ctx context.Context, creator, user string) ([]Member, error) {
	roles, err := e.queries.UserRoleNames(ctx, creator, user)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(roles))
	for _, r := range roles {
		out = append(out, Member{User: user, Role: r})
	}
	return out, nil
}

// RoleMembers returns the role's active members as (user, role) pairs.
func (e *Engine) RoleMembers(ctx context.Context, creator, role string) ([]Member, error) {
	users, err := e.queries.RoleMembers(ctx, creator, role)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(users))
	for _, u := range users {
		out = append(out, Member{User: u, Role: role})
	}
	return out, nil
}

// WhichRolesCan returns the active roles carrying the permission.
func (e *Engine) WhichRolesCan(ctx context.Context, creator, name string) ([]RoleRef, error) {
	roles, err := e.queries.RolesWithPermission(ctx, creator, name)
	if err != nil {
		return nil, err
	}
	out := make([]RoleRef, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleRef{Role: r})
	}
	return out, nil
}

// WhichUsersCan returns every (user, role) association granting the
// permission. Duplicates are preserved; callers that want unique users
// dedupe on the user field.
func (e *Engine) WhichUsersCan(ctx context.Context, creator, name string) ([]Member, error) {
	pairs, err := e.queries.UsersWithPermission(ctx, creator, name)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Member{User: p.User, Role: p.Role})
	}
	return out, nil
}

func toPermissions(names []string) []Permission {
	out := make([]Permission, 0, len(names))
	for _, n := range names {
		out = append(out, Permission{Name: n})
	}
	return out
}
