package storage

import (
	"context"
	"time"
)

// AuditRow mirrors an audit_log row. Details holds pre-marshaled JSON.
type AuditRow struct {
	ID        int64
	Timestamp time.Time
	ClientID  string
	User      string
	Action    string
	Resource  string
	Details   []byte
	IPAddress string
	UserAgent string
	Success   bool
}

const insertAuditLogSQL = `
INSERT INTO audit_log (client_id, "user", action, resource, details, ip_address, user_agent, success)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// InsertAuditLog appends one row to the audit trail. The table is
// append-only; no update or delete statement exists for it anywhere in the
// codebase.
func (q *Queries) InsertAuditLog(ctx context.Context, row AuditRow) error {
	var details any
	if len(row.Details) > 0 {
		details = row.Details
	}
	_, err := q.db.Exec(ctx, insertAuditLogSQL,
		row.ClientID, row.User, row.Action, row.Resource, details,
		row.IPAddress, row.UserAgent, row.Success)
	return wrapErr("insert audit log", err)
}

const listAuditLogSQL = `
SELECT id, timestamp, client_id, COALESCE("user", ''), action, COALESCE(resource, ''),
       COALESCE(details, 'null'::jsonb), COALESCE(ip_address, ''), COALESCE(user_agent, ''), success
FROM audit_log
WHERE client_id = $1
ORDER BY timestamp DESC, id DESC
LIMIT $2`

// ListAuditLog returns the tenant's most recent audit rows, newest first.
func (q *Queries) ListAuditLog(ctx context.Context, clientID string, limit int) ([]AuditRow, error) {
	rows, err := q.db.Query(ctx, listAuditLogSQL, clientID, limit)
	if err != nil {
		return nil, wrapErr("list audit log", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.ClientID, &r.User, &r.Action,
			&r.Resource, &r.Details, &r.IPAddress, &r.UserAgent, &r.Success); err != nil {
			return nil, wrapErr("list audit log", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list audit log", err)
	}
	return out, nil
}
