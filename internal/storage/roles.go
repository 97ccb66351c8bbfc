package storage

import (
	"context"
	"time"
)

// Role is a row of auth_role with the description already decrypted.
type Role struct {
	ID          int64
	Creator     string
	Role        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

const upsertRoleSQL = `
INSERT INTO auth_role (creator, role, description, is_active, created_at, modified_at)
VALUES ($1, $2, $3, TRUE, now(), now())
ON CONFLICT (creator, role) DO UPDATE
SET is_active   = TRUE,
    description = COALESCE(EXCLUDED.description, auth_role.description),
    modified_at = now()
RETURNING id`

// UpsertRole inserts the role or revives a tombstoned row under the same id.
// A nil description leaves any existing description in place.
func (q *Queries) UpsertRole(ctx context.Context, creator, role string, description *string) (int64, error) {
	var desc *string
	if description != nil {
		enc := q.cipher.Encrypt(*description)
		desc = &enc
	}

	var id int64
	err := q.db.QueryRow(ctx, upsertRoleSQL, creator, role, desc).Scan(&id)
	if err != nil {
		return 0, wrapErr("upsert role", err)
	}
	return id, nil
}

const deactivateRoleSQL = `
UPDATE auth_role
SET is_active = FALSE, modified_at = now()
WHERE creator = $1 AND role = $2 AND is_active`

// DeactivateRole tombstones the role. It reports true only when the row
// existed and was active, so repeated deletes read false.
func (q *Queries) DeactivateRole(ctx context.Context, creator, role string) (bool, error) {
	tag, err := q.db.Exec(ctx, deactivateRoleSQL, creator, role)
	if err != nil {
		return false, wrapErr("deactivate role", err)
	}
	return tag.RowsAffected() > 0, nil
}

const getActiveRoleSQL = `
SELECT id, creator, role, COALESCE(description, ''), is_active, created_at, modified_at
FROM auth_role
WHERE creator = $1 AND role = $2 AND is_active`

// GetActiveRole fetches an active role; ErrNotFound covers both absent and
// tombstoned rows.
func (q *Queries) GetActiveRole(ctx context.Context, creator, role string) (Role, error) {
	var r Role
	err := q.db.QueryRow(ctx, getActiveRoleSQL, creator, role).
		Scan(&r.ID, &r.Creator, &r.Role, &r.Description, &r.IsActive, &r.CreatedAt, &r.ModifiedAt)
	if err != nil {
		return Role{}, wrapErr("get role", err)
	}
	r.Description = q.cipher.Decrypt(r.Description)
	return r, nil
}

const activeRoleIDSQL = `
SELECT id FROM auth_role
WHERE creator = $1 AND role = $2 AND is_active`

// ActiveRoleID resolves the id of an active role, ErrNotFound otherwise.
func (q *Queries) ActiveRoleID(ctx context.Context, creator, role string) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, activeRoleIDSQL, creator, role).Scan(&id)
	if err != nil {
		return 0, wrapErr("resolve role", err)
	}
	return id, nil
}

const listRolesSQL = `
SELECT id, creator, role, COALESCE(description, ''), is_active, created_at, modified_at
FROM auth_role
WHERE creator = $1 AND is_active
ORDER BY role`

// ListRoles returns the tenant's active roles ordered by name.
func (q *Queries) ListRoles(ctx context.Context, creator string) ([]Role, error) {
	rows, err := q.db.Query(ctx, listRolesSQL, creator)
	if err != nil {
		return nil, wrapErr("list roles", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Creator, &r.Role, &r.Description, &r.IsActive, &r.CreatedAt, &r.ModifiedAt); err != nil {
			return nil, wrapErr("list roles", err)
		}
		r.Description = q.cipher.Decrypt(r.Description)
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list roles", err)
	}
	return roles, nil
}
