package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lherron/roster/internal/db"
	"github.com/lherron/roster/internal/domain"
)

// querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx is a transaction-scoped unit of work. It is only valid inside the
// function passed to Store.RunInTx.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

func (t *Tx) dialect() db.Dialect {
	return t.store.db.Dialect()
}

func (t *Tx) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, db.Rebind(t.dialect(), query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, db.Rebind(t.dialect(), query), args...)
}

const studentColumns = `uuid, id, display_name, email, account_uuid, skill_level, goals, phone,
	date_of_birth, emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
	medical_notes, etag, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStudent(row rowScanner) (*domain.Student, error) {
	var s domain.Student
	err := row.Scan(
		&s.UUID, &s.ID, &s.DisplayName, &s.Email, &s.AccountUUID, &s.SkillLevel, &s.Goals, &s.Phone,
		&s.DateOfBirth, &s.EmergencyContactName, &s.EmergencyContactPhone, &s.EmergencyContactRelation,
		&s.MedicalNotes, &s.ETag, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetStudent loads a student inside the transaction.
func (t *Tx) GetStudent(ctx context.Context, studentUUID string) (*domain.Student, error) {
	s, err := scanStudent(t.queryRow(ctx, "SELECT "+studentColumns+" FROM students WHERE uuid = ?", studentUUID))
	if err != nil {
		return nil, notFound(err, "student", studentUUID)
	}
	return s, nil
}

// GetStudentForUpdate loads a student and row-locks it until the transaction
// ends. On SQLite the transaction already holds the database write lock.
func (t *Tx) GetStudentForUpdate(ctx context.Context, studentUUID string) (*domain.Student, error) {
	if t.dialect() != db.DialectPostgres {
		return t.GetStudent(ctx, studentUUID)
	}
	s, err := scanStudent(t.queryRow(ctx, "SELECT "+studentColumns+" FROM students WHERE uuid = ? FOR UPDATE", studentUUID))
	if err != nil {
		return nil, notFound(err, "student", studentUUID)
	}
	return s, nil
}

// UpdateStudentFields applies a partial profile update and logs a
// student.updated event. Only scalar profile columns may be updated.
// Returns the new etag on success.
func (t *Tx) UpdateStudentFields(ctx context.Context, actorUUID, studentUUID string, fields map[string]string, ifMatch int64) (int64, error) {
	if err := domain.ValidateProfile(fields); err != nil {
		return 0, err
	}

	var currentETag int64
	if err := t.queryRow(ctx, "SELECT etag FROM students WHERE uuid = ?", studentUUID).Scan(&currentETag); err != nil {
		return 0, notFound(err, "student", studentUUID)
	}
	if err := checkETag(currentETag, ifMatch); err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return currentETag, nil
	}

	var sets []string
	var args []interface{}
	for _, name := range domain.ProfileFields {
		value, ok := fields[name]
		if !ok {
			continue
		}
		sets = append(sets, name+" = ?")
		if strings.TrimSpace(value) == "" {
			args = append(args, nil)
		} else {
			args = append(args, value)
		}
	}
	sets = append(sets, "etag = etag + 1", "updated_at = ?")
	args = append(args, t.store.now(), studentUUID)

	res, err := t.exec(ctx, "UPDATE students SET "+strings.Join(sets, ", ")+" WHERE uuid = ?", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, &domain.NotFoundError{Kind: "student", ID: studentUUID}
	}

	newETag := currentETag + 1
	if err := t.store.events.LogStudentUpdated(ctx, t.tx, actorUUID, studentUUID, newETag, fields); err != nil {
		return 0, fmt.Errorf("failed to log event: %w", err)
	}
	return newETag, nil
}

// DeleteStudent hard-deletes a student and logs a student.deleted event.
// It fails with a foreign key error while anything still references the row.
func (t *Tx) DeleteStudent(ctx context.Context, actorUUID, studentUUID string, payload map[string]interface{}) error {
	res, err := t.exec(ctx, "DELETE FROM students WHERE uuid = ?", studentUUID)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "student", ID: studentUUID}
	}
	if err := t.store.events.LogStudentDeleted(ctx, t.tx, actorUUID, studentUUID, payload); err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}
	return nil
}

// LogStudentMerged records a student.merged event on the surviving student.
func (t *Tx) LogStudentMerged(ctx context.Context, actorUUID, targetUUID string, etag int64, payload map[string]interface{}) error {
	return t.store.events.LogStudentMerged(ctx, t.tx, actorUUID, targetUUID, etag, payload)
}

// nextFriendlyID computes the next friendly ID for a table whose ids share a
// two-character prefix such as "S-".
func nextFriendlyID(ctx context.Context, q querier, d db.Dialect, table, prefix string) (string, error) {
	var seq int
	query := fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) + 1 FROM %s", len(prefix)+1, table)
	if err := q.QueryRowContext(ctx, db.Rebind(d, query)).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to compute next %s ID: %w", table, err)
	}
	return fmt.Sprintf("%s%05d", prefix, seq), nil
}
