// Package store provides a persistence layer that abstracts database operations,
// automatically handling etag management, timestamps, and event logging.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lherron/roster/internal/db"
	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/events"
)

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db     *db.DB
	events *events.Writer
	now    func() time.Time

	// Domain-specific stores
	Students *StudentStore
	Accounts *AccountStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{
		db:     database,
		events: events.NewWriter(database),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.Students = &StudentStore{store: s}
	s.Accounts = &AccountStore{store: s}
	return s
}

// Events returns the event writer bound to this store's database.
func (s *Store) Events() *events.Writer {
	return s.events
}

// RunInTx executes fn within a single transaction and commits only if fn
// returns nil. Every read and write fn performs must go through tx.
//
// SQLite transactions start with BEGIN IMMEDIATE (see db.Open), so the write
// lock is held from the first statement and concurrent writers serialize.
// Postgres transactions run at SERIALIZABLE isolation.
//
// Lock contention and serialization failures surface as
// *domain.ConflictRetryableError; cancellation and timeouts surface as
// *domain.AbortedError. In every failure case the transaction is rolled back.
// A panic inside fn rolls back and re-panics.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return &domain.AbortedError{Op: "begin transaction", Err: err}
	}

	sqlTx, err := s.db.BeginTx(ctx, s.txOptions())
	if err != nil {
		return classifyTxError(ctx, "begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	tx := &Tx{tx: sqlTx, store: s}
	if err := fn(tx); err != nil {
		return classifyTxError(ctx, "transaction", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return classifyTxError(ctx, "commit transaction", err)
	}
	committed = true
	return nil
}

func (s *Store) txOptions() *sql.TxOptions {
	if s.db.Dialect() == db.DialectPostgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	// go-sqlite3 ignores isolation levels; _txlock=immediate serializes writers.
	return nil
}

// checkETag verifies etag matches if ifMatch > 0, returns ETagMismatchError on mismatch.
func checkETag(currentETag, ifMatch int64) error {
	if ifMatch <= 0 {
		return nil
	}
	return domain.CheckETag(ifMatch, currentETag)
}
