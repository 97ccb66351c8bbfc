package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx executes fn inside a transaction: begin, fn, commit, with rollback
// on any error or panic along the way.
//
// Example usage:
//
//	err := storage.WithTx(ctx, pool, func(tx pgx.Tx) error {
//	    qtx := queries.WithTx(tx)
//	    _, err := qtx.UpsertPermission(ctx, creator, name)
//	    return err
//	})
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return wrapErr("begin transaction", err)
	}
	defer tx.Rollback(ctx) // Rollback is safe to call even after Commit

	if err := fn(tx); err != nil {
		return err // Transaction will rollback via defer
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
