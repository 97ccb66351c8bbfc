// Package validate checks every externally supplied identifier before it
// reaches SQL. All statements use bound parameters; the SQL keyword screen
// here is a second layer, not the primary defense.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrBadInput marks validation failures. The boundary maps it to HTTP 400.
var ErrBadInput = errors.New("invalid input")

var (
	tenantKeyPattern  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	namePattern       = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	permissionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|exec|union|select)\b`)
	sqlTokens         = []string{"--", ";", "/*", "*/"}

	sanitizePattern = regexp.MustCompile(`[^\w-]`)
)

// TenantKey validates the canonical UUIDv4 shape (case-insensitive hex with
// dashes) and returns the lower-cased key used for storage.
func TenantKey(s string) (string, error) {
	if !tenantKeyPattern.MatchString(s) {
		return "", fmt.Errorf("%w: tenant key must be a UUID", ErrBadInput)
	}
	return strings.ToLower(s), nil
}

// UserName validates a user identifier: 1-64 characters from [A-Za-z0-9_-].
func UserName(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%w: user name must match [A-Za-z0-9_-]{1,64}", ErrBadInput)
	}
	return rejectSQL(s, "user name")
}

// RoleName validates a role identifier: 1-64 characters from [A-Za-z0-9_-].
func RoleName(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%w: role name must match [A-Za-z0-9_-]{1,64}", ErrBadInput)
	}
	return rejectSQL(s, "role name")
}

// PermissionName validates a permission identifier: 1-128 characters from
// [A-Za-z0-9_-].
func PermissionName(s string) error {
	if !permissionPattern.MatchString(s) {
		return fmt.Errorf("%w: permission name must match [A-Za-z0-9_-]{1,128}", ErrBadInput)
	}
	return rejectSQL(s, "permission name")
}

// Description bounds free-text fields such as role descriptions and screens
// them for SQL fragments.
func Description(s string) error {
	if len(s) > 256 {
		return fmt.Errorf("%w: description exceeds 256 characters", ErrBadInput)
	}
	return rejectSQL(s, "description")
}

// Sanitize strips every character outside [\w-] and rejects input carrying
// SQL keywords or comment tokens.
func Sanitize(s string) (string, error) {
	if err := rejectSQL(s, "value"); err != nil {
		return "", err
	}
	return sanitizePattern.ReplaceAllString(s, ""), nil
}

func rejectSQL(s, field string) error {
	if sqlKeywordPattern.MatchString(s) {
		return fmt.Errorf("%w: %s contains a SQL keyword", ErrBadInput, field)
	}
	for _, tok := range sqlTokens {
		if strings.Contains(s, tok) {
			return fmt.Errorf("%w: %s contains %q", ErrBadInput, field, tok)
		}
	}
	return nil
}
