package storage

import (
	"context"
	"sort"
)

const upsertMembershipSQL = `
INSERT INTO auth_membership (creator, "user", is_active, created_at, modified_at)
VALUES ($1, $2, TRUE, now(), now())
ON CONFLICT (creator, "user") DO UPDATE
SET is_active = TRUE, modified_at = now()
RETURNING id`

// UpsertMembership inserts or revives the user's membership row and returns
// its id. The user value is stored encrypted.
func (q *Queries) UpsertMembership(ctx context.Context, creator, user string) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, upsertMembershipSQL, creator, q.cipher.Encrypt(user)).Scan(&id)
	if err != nil {
		return 0, wrapErr("upsert membership", err)
	}
	return id, nil
}

const activeMembershipIDSQL = `
SELECT id FROM auth_membership
WHERE creator = $1 AND "user" = $2 AND is_active`

// ActiveMembershipID resolves the id of an active membership row,
// ErrNotFound otherwise.
func (q *Queries) ActiveMembershipID(ctx context.Context, creator, user string) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, activeMembershipIDSQL, creator, q.cipher.Encrypt(user)).Scan(&id)
	if err != nil {
		return 0, wrapErr("resolve membership", err)
	}
	return id, nil
}

const linkMembershipRoleSQL = `
INSERT INTO membership_roles (membership_id, role_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

// LinkMembershipRole attaches a membership to a role; relinking an existing
// pair is a no-op.
func (q *Queries) LinkMembershipRole(ctx context.Context, membershipID, roleID int64) error {
	_, err := q.db.Exec(ctx, linkMembershipRoleSQL, membershipID, roleID)
	return wrapErr("link membership", err)
}

const unlinkMembershipRoleSQL = `
DELETE FROM membership_roles
WHERE membership_id = $1 AND role_id = $2`

// UnlinkMembershipRole removes the pair; an absent pair is a no-op.
func (q *Queries) UnlinkMembershipRole(ctx context.Context, membershipID, roleID int64) error {
	_, err := q.db.Exec(ctx, unlinkMembershipRoleSQL, membershipID, roleID)
	return wrapErr("unlink membership", err)
}

const userInRoleSQL = `
SELECT EXISTS (
  SELECT 1
  FROM auth_membership m
  JOIN membership_roles mr ON mr.membership_id = m.id
  JOIN auth_role r ON r.id = mr.role_id
  WHERE m.creator = $1 AND m."user" = $2 AND m.is_active
    AND r.creator = $1 AND r.role = $3 AND r.is_active
)`

// UserInRole reports whether the user is attached to the active role.
func (q *Queries) UserInRole(ctx context.Context, creator, user, role string) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, userInRoleSQL, creator, q.cipher.Encrypt(user), role).Scan(&ok)
	if err != nil {
		return false, wrapErr("check membership", err)
	}
	return ok, nil
}

const roleMembersSQL = `
SELECT m."user"
FROM auth_role r
JOIN membership_roles mr ON mr.role_id = r.id
JOIN auth_membership m ON m.id = mr.membership_id AND m.is_active AND m.creator = $1
WHERE r.creator = $1 AND r.role = $2 AND r.is_active`

// RoleMembers returns the users attached to the role, decrypted and sorted.
func (q *Queries) RoleMembers(ctx context.Context, creator, role string) ([]string, error) {
	users, err := q.scanStrings(ctx, "role members", roleMembersSQL, creator, role)
	if err != nil {
		return nil, err
	}
	for i, u := range users {
		users[i] = q.cipher.Decrypt(u)
	}
	sort.Strings(users)
	return users, nil
}

const userRoleNamesSQL = `
SELECT r.role
FROM auth_membership m
JOIN membership_roles mr ON mr.membership_id = m.id
JOIN auth_role r ON r.id = mr.role_id AND r.is_active AND r.creator = $1
WHERE m.creator = $1 AND m."user" = $2 AND m.is_active
ORDER BY r.role`

// UserRoleNames returns the active roles the user belongs to.
func (q *Queries) UserRoleNames(ctx context.Context, creator, user string) ([]string, error) {
	return q.scanStrings(ctx, "user roles", userRoleNamesSQL, creator, q.cipher.Encrypt(user))
}

// scanStrings collects a single text column.
func (q *Queries) scanStrings(ctx context.Context, op, sql string, args ...any) ([]string, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, wrapErr(op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}
