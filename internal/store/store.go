// Package store is the persisted-entity repository behind the Network
// Planner. It is the "external store" of SPEC_FULL.md's data flow:
// operator mutations land here, and the Topology Resolver (package
// topology) reads it back out. There is no HTTP surface over this
// package — spec.md §1 explicitly scopes the administrative CRUD
// surface out, but the Topology Resolver and Address Allocator still
// need transactional create/read operations to do their job.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wirewarden/wirewarden/internal/vault"
	"github.com/wirewarden/wirewarden/internal/wgerr"
)

// Store wraps the connection pool and the Key Vault, since nearly
// every mutation here also mints or reads sealed key material.
type Store struct {
	Pool  *pgxpool.Pool
	Vault *vault.Vault
}

// New builds a Store.
func New(pool *pgxpool.Pool, v *vault.Vault) *Store {
	return &Store{Pool: pool, Vault: v}
}

// maxSerializationRetries bounds the retry loop on concurrent mutation
// conflicts per spec.md §7: "Retry up to 3x then surface 503."
const maxSerializationRetries = 3

// withSerializableTx runs fn inside a SERIALIZABLE transaction,
// retrying on serialization failures up to maxSerializationRetries
// times before giving up with wgerr.ErrConflict. It is used by the
// Address Allocator's server/client creation paths. PSK creation
// (GetOrCreatePSK) and route creation do not run inside it: PSK
// creation relies on ON CONFLICT DO NOTHING plus a re-read instead.
func (s *Store) withSerializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxSerializationRetries; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("store: %w: %v", wgerr.ErrConflict, lastErr)
}

func (s *Store) runOnce(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// isSerializationFailure reports whether err is Postgres SQLSTATE
// 40001 (serialization_failure), the error SERIALIZABLE isolation
// raises on a detected conflict.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
