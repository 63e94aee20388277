package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/lherron/roster/internal/domain"
)

func TestIsForeignKeyConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, true},
		{"sqlite restrict on delete", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintTrigger}, true},
		{"sqlite restrict wrapped", fmt.Errorf("failed to delete student: %w",
			sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintTrigger}), true},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, false},
		{"postgres foreign key", &pq.Error{Code: "23503"}, true},
		{"postgres unique", &pq.Error{Code: "23505"}, false},
		{"message only", errors.New("FOREIGN KEY constraint failed"), true},
		{"unrelated", errors.New("disk full"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsForeignKeyConstraintError(tt.err); got != tt.want {
				t.Errorf("IsForeignKeyConstraintError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"sqlite busy wrapped", fmt.Errorf("delete: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintTrigger}, false},
		{"postgres serialization", &pq.Error{Code: "40001"}, true},
		{"postgres deadlock", &pq.Error{Code: "40P01"}, true},
		{"postgres foreign key", &pq.Error{Code: "23503"}, false},
		{"busy message", errors.New("database is locked"), true},
		{"unrelated", errors.New("disk full"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyTxError(t *testing.T) {
	ctx := context.Background()

	err := classifyTxError(ctx, "commit", sqlite3.Error{Code: sqlite3.ErrBusy})
	if !errors.Is(err, domain.ErrConflictRetryable) {
		t.Errorf("busy commit: got %v, want ConflictRetryable", err)
	}

	fatal := &domain.FatalInconsistencyError{Op: "x", Err: errors.New("boom")}
	if got := classifyTxError(ctx, "commit", fatal); got != fatal {
		t.Errorf("domain errors must pass through unchanged, got %v", got)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	var aborted *domain.AbortedError
	if err := classifyTxError(cancelled, "commit", errors.New("interrupted")); !errors.As(err, &aborted) {
		t.Errorf("cancelled context: got %v, want AbortedError", err)
	}

	fk := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintTrigger}
	err = classifyTxError(ctx, "delete", fk)
	if errors.Is(err, domain.ErrConflictRetryable) || !IsForeignKeyConstraintError(err) {
		t.Errorf("constraint failure must stay an ordinary wrapped error, got %v", err)
	}
}
