package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/lherron/roster/internal/domain"
)

// Postgres SQLSTATE codes that mean "retry the whole transaction"
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

// classifyTxError maps a failure from inside or around a transaction onto the
// domain error taxonomy. Errors that already carry a domain type pass through
// unchanged.
func classifyTxError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &domain.AbortedError{Op: op, Err: ctxErr}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.AbortedError{Op: op, Err: err}
	}
	if IsRetryableError(err) {
		return &domain.ConflictRetryableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isDomainError(err error) bool {
	var (
		notFound *domain.NotFoundError
		invalid  *domain.InvalidOperationError
		conflict *domain.ConflictRetryableError
		fatal    *domain.FatalInconsistencyError
		aborted  *domain.AbortedError
		denied   *domain.ForbiddenError
		etag     *domain.ETagMismatchError
	)
	return errors.As(err, &notFound) ||
		errors.As(err, &invalid) ||
		errors.As(err, &conflict) ||
		errors.As(err, &fatal) ||
		errors.As(err, &aborted) ||
		errors.As(err, &denied) ||
		errors.As(err, &etag)
}

// IsRetryableError reports whether err means the transaction lost a race with
// a concurrent writer and may succeed if run again.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return true
		}
		return false
	}

	return isBusyError(err)
}

// isBusyError matches SQLite lock contention by message for errors that have
// lost their driver type through wrapping with %v.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// IsUniqueConstraintError checks if an error is a UNIQUE constraint violation
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyConstraintError checks if an error is a FOREIGN KEY constraint violation
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		// Deferred checks report 787; a RESTRICT action blocking a
		// DELETE is raised from a trigger and reports 1811.
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey, sqlite3.ErrConstraintTrigger:
			return true
		}
		if sqliteErr.Code != sqlite3.ErrConstraint {
			return false
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	errStr := err.Error()
	return strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "foreign key constraint")
}

// notFound converts sql.ErrNoRows into a typed NotFoundError
func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	return err
}
