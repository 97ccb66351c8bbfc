package storage

import (
	"context"
	"sort"
)

const upsertPermissionSQL = `
INSERT INTO auth_permission (creator, name, is_active, created_at, modified_at)
VALUES ($1, $2, TRUE, now(), now())
ON CONFLICT (creator, name) DO UPDATE
SET is_active = TRUE, modified_at = now()
RETURNING id`

// UpsertPermission inserts or revives the permission row and returns its id.
// The name is stored encrypted.
func (q *Queries) UpsertPermission(ctx context.Context, creator, name string) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, upsertPermissionSQL, creator, q.cipher.Encrypt(name)).Scan(&id)
	if err != nil {
		return 0, wrapErr("upsert permission", err)
	}
	return id, nil
}

const activePermissionIDSQL = `
SELECT id FROM auth_permission
WHERE creator = $1 AND name = $2 AND is_active`

// ActivePermissionID resolves the id of an active permission row,
// ErrNotFound otherwise.
func (q *Queries) ActivePermissionID(ctx context.Context, creator, name string) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, activePermissionIDSQL, creator, q.cipher.Encrypt(name)).Scan(&id)
	if err != nil {
		return 0, wrapErr("resolve permission", err)
	}
	return id, nil
}

const linkPermissionRoleSQL = `
INSERT INTO permission_roles (permission_id, role_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

// LinkPermissionRole attaches a permission to a role; relinking an existing
// pair is a no-op.
func (q *Queries) LinkPermissionRole(ctx context.Context, permissionID, roleID int64) error {
	_, err := q.db.Exec(ctx, linkPermissionRoleSQL, permissionID, roleID)
	return wrapErr("link permission", err)
}

const unlinkPermissionRoleSQL = `
DELETE FROM permission_roles
WHERE permission_id = $1 AND role_id = $2`

// UnlinkPermissionRole removes the pair; an absent pair is a no-op. The
// permission row itself stays, keeping its links to other roles intact.
func (q *Queries) UnlinkPermissionRole(ctx context.Context, permissionID, roleID int64) error {
	_, err := q.db.Exec(ctx, unlinkPermissionRoleSQL, permissionID, roleID)
	return wrapErr("unlink permission", err)
}

const roleHasPermissionSQL = `
SELECT EXISTS (
  SELECT 1
  FROM auth_permission p
  JOIN permission_roles pr ON pr.permission_id = p.id
  JOIN auth_role r ON r.id = pr.role_id
  WHERE p.creator = $1 AND p.name = $3 AND p.is_active
    AND r.creator = $1 AND r.role = $2 AND r.is_active
)`

// RoleHasPermission reports whether the active role carries the permission.
func (q *Queries) RoleHasPermission(ctx context.Context, creator, role, name string) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, roleHasPermissionSQL, creator, role, q.cipher.Encrypt(name)).Scan(&ok)
	if err != nil {
		return false, wrapErr("check permission", err)
	}
	return ok, nil
}

const rolePermissionNamesSQL = `
SELECT p.name
FROM auth_role r
JOIN permission_roles pr ON pr.role_id = r.id
JOIN auth_permission p ON p.id = pr.permission_id AND p.is_active AND p.creator = $1
WHERE r.creator = $1 AND r.role = $2 AND r.is_active`

// RolePermissionNames returns the permissions attached to the role. Names
// are sorted after decryption since their stored order is ciphertext order.
func (q *Queries) RolePermissionNames(ctx context.Context, creator, role string) ([]string, error) {
	names, err := q.scanStrings(ctx, "role permissions", rolePermissionNamesSQL, creator, role)
	if err != nil {
		return nil, err
	}
	for i, n := range names {
		names[i] = q.cipher.Decrypt(n)
	}
	sort.Strings(names)
	return names, nil
}

const rolesWithPermissionSQL = `
SELECT r.role
FROM auth_permission p
JOIN permission_roles pr ON pr.permission_id = p.id
JOIN auth_role r ON r.id = pr.role_id AND r.is_active AND r.creator = $1
WHERE p.creator = $1 AND p.name = $2 AND p.is_active
ORDER BY r.role`

// RolesWithPermission returns the active roles that carry the permission.
func (q *Queries) RolesWithPermission(ctx context.Context, creator, name string) ([]string, error) {
	return q.scanStrings(ctx, "roles with permission", rolesWithPermissionSQL, creator, q.cipher.Encrypt(name))
}
