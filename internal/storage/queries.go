// Package storage owns the PostgreSQL schema: the connection pool, the
// row-level queries, and the mapping of driver failures onto the two error
// sentinels the rest of the service dispatches on.
//
// Column-level encryption happens here. The values of auth_membership.user,
// auth_permission.name and auth_role.description are passed through the
// field cipher on the way in and out, so every caller above this package
// sees plaintext only. Because the cipher is deterministic, equality
// predicates and UNIQUE constraints keep working on the stored form.
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ourway/auth/internal/crypto"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, letting the same query
// methods run standalone or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries bundles a DBTX with the field cipher.
type Queries struct {
	db     DBTX
	cipher *crypto.FieldCipher
}

// New creates Queries over a pool or transaction. A nil cipher disables
// field encryption.
func New(db DBTX, cipher *crypto.FieldCipher) *Queries {
	if cipher == nil {
		cipher = crypto.NewFieldCipher("", false, nil)
	}
	return &Queries{db: db, cipher: cipher}
}

// WithTx returns a copy of Queries bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx, cipher: q.cipher}
}
