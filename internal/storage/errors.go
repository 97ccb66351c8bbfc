package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a required row does not exist or is
	// tombstoned.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks failures to reach the database: dial errors,
	// closed pools, exhausted deadlines, server shutdown. The boundary maps
	// it to HTTP 503.
	ErrUnavailable = errors.New("store unavailable")
)

// SQLSTATE classes that indicate the server rather than the statement is the
// problem.
var unavailableSQLStates = []string{
	"08", // connection exception
	"53", // insufficient resources
	"57", // operator intervention (shutdown, crash)
}

// wrapErr attaches the operation name and folds driver errors into the two
// sentinels callers dispatch on.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, class := range unavailableSQLStates {
			if strings.HasPrefix(pgErr.Code, class) {
				return true
			}
		}
	}

	// pgxpool surfaces a closed pool as a plain error value.
	return strings.Contains(err.Error(), "closed pool")
}
