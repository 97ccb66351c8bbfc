package storage

import (
	"context"
	"sort"
)

// MemberRole pairs a user with one of the roles that produced a match.
type MemberRole struct {
	User string
	Role string
}

const userHasPermissionSQL = `
SELECT EXISTS (
  SELECT 1
  FROM auth_membership m
  JOIN membership_roles mr ON mr.membership_id = m.id
  JOIN auth_role r ON r.id = mr.role_id AND r.is_active AND r.creator = $1
  JOIN permission_roles pr ON pr.role_id = r.id
  JOIN auth_permission p ON p.id = pr.permission_id AND p.is_active AND p.creator = $1
  WHERE m.creator = $1 AND m."user" = $2 AND m.is_active
    AND p.name = $3
)`

// UserHasPermission answers the central authorization question with a single
// statement joining memberships to permissions across the role junctions.
func (q *Queries) UserHasPermission(ctx context.Context, creator, user, name string) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, userHasPermissionSQL,
		creator, q.cipher.Encrypt(user), q.cipher.Encrypt(name)).Scan(&ok)
	if err != nil {
		return false, wrapErr("check user permission", err)
	}
	return ok, nil
}

const userPermissionNamesSQL = `
SELECT DISTINCT p.name
FROM auth_membership m
JOIN membership_roles mr ON mr.membership_id = m.id
JOIN auth_role r ON r.id = mr.role_id AND r.is_active AND r.creator = $1
JOIN permission_roles pr ON pr.role_id = r.id
JOIN auth_permission p ON p.id = pr.permission_id AND p.is_active AND p.creator = $1
WHERE m.creator = $1 AND m."user" = $2 AND m.is_active`

// UserPermissionNames returns the distinct permissions the user holds via
// any active role, decrypted and sorted.
func (q *Queries) UserPermissionNames(ctx context.Context, creator, user string) ([]string, error) {
	names, err := q.scanStrings(ctx, "user permissions", userPermissionNamesSQL, creator, q.cipher.Encrypt(user))
	if err != nil {
		return nil, err
	}
	for i, n := range names {
		names[i] = q.cipher.Decrypt(n)
	}
	sort.Strings(names)
	return names, nil
}

const usersWithPermissionSQL = `
SELECT m."user", r.role
FROM auth_permission p
JOIN permission_roles pr ON pr.permission_id = p.id
JOIN auth_role r ON r.id = pr.role_id AND r.is_active AND r.creator = $1
JOIN membership_roles mr ON mr.role_id = r.id
JOIN auth_membership m ON m.id = mr.membership_id AND m.is_active AND m.creator = $1
WHERE p.creator = $1 AND p.name = $2 AND p.is_active
ORDER BY r.role, m.id`

// UsersWithPermission returns one (user, role) pair per membership-role
// association that grants the permission. A user reached through two roles
// appears twice; callers that need unique users dedupe.
func (q *Queries) UsersWithPermission(ctx context.Context, creator, name string) ([]MemberRole, error) {
	rows, err := q.db.Query(ctx, usersWithPermissionSQL, creator, q.cipher.Encrypt(name))
	if err != nil {
		return nil, wrapErr("users with permission", err)
	}
	defer rows.Close()

	var out []MemberRole
	for rows.Next() {
		var mr MemberRole
		if err := rows.Scan(&mr.User, &mr.Role); err != nil {
			return nil, wrapErr("users with permission", err)
		}
		mr.User = q.cipher.Decrypt(mr.User)
		out = append(out, mr)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("users with permission", err)
	}
	return out, nil
}
