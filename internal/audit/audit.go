// Package audit records every privileged operation the service performs.
// Records land in the audit_log table and, in parallel, in a dedicated JSON
// trail on stdout that log aggregators can route to a separate index. The
// table is append-only; nothing in this codebase updates or deletes its rows.
package audit

import "context"

// Action enumerates the auditable operation kinds.
type Action string

const (
	ActionCreateRole       Action = "CREATE_ROLE"
	ActionDeleteRole       Action = "DELETE_ROLE"
	ActionAddPermission    Action = "ADD_PERMISSION"
	ActionRemovePermission Action = "REMOVE_PERMISSION"
	ActionAddMembership    Action = "ADD_MEMBERSHIP"
	ActionRemoveMembership Action = "REMOVE_MEMBERSHIP"
	ActionCheckPermission  Action = "CHECK_PERMISSION"
	ActionCheckMembership  Action = "CHECK_MEMBERSHIP"
	ActionListRoles        Action = "LIST_ROLES"
	ActionListPermissions  Action = "LIST_PERMISSIONS"
	ActionListMemberships  Action = "LIST_MEMBERSHIPS"
	ActionUserPermissions  Action = "USER_PERMISSIONS"
	ActionIssueToken       Action = "ISSUE_TOKEN"
)

// Record is one audit event. ClientID is the tenant key; User is the acting
// or affected user when one is known.
type Record struct {
	ClientID  string
	User      string
	Action    Action
	Resource  string
	Details   map[string]any
	IPAddress string
	UserAgent string
	Success   bool
}

// Recorder is the contract the boundary emits records through.
// Implementations must never fail the calling request; persistence errors
// are theirs to handle.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

// NopRecorder discards every record. Used in tests.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, rec Record) {}
