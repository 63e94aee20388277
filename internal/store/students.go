package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/id"
)

// StudentStore handles student persistence operations.
type StudentStore struct {
	store *Store
}

// CreateStudentParams contains parameters for creating a new student.
type CreateStudentParams struct {
	UUID        string // optional: force specific UUID instead of auto-generating
	DisplayName string
	Email       string
	Profile     map[string]string // keyed by domain.ProfileFields
}

// Create creates a new student and logs a student.created event.
func (ss *StudentStore) Create(ctx context.Context, actorUUID string, params CreateStudentParams) (*domain.Student, error) {
	var created *domain.Student
	err := ss.store.RunInTx(ctx, func(tx *Tx) error {
		var err error
		created, err = tx.CreateStudent(ctx, actorUUID, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByUUID loads a student outside any transaction.
func (ss *StudentStore) GetByUUID(ctx context.Context, studentUUID string) (*domain.Student, error) {
	d := ss.store.db
	s, err := scanStudent(d.QueryRowContext(ctx, d.Rebind("SELECT "+studentColumns+" FROM students WHERE uuid = ?"), studentUUID))
	if err != nil {
		return nil, notFound(err, "student", studentUUID)
	}
	return s, nil
}

// GetByID loads a student by friendly ID (S-00001).
func (ss *StudentStore) GetByID(ctx context.Context, friendlyID string) (*domain.Student, error) {
	d := ss.store.db
	s, err := scanStudent(d.QueryRowContext(ctx, d.Rebind("SELECT "+studentColumns+" FROM students WHERE id = ?"), friendlyID))
	if err != nil {
		return nil, notFound(err, "student", friendlyID)
	}
	return s, nil
}

// ListStudentsParams filters List results.
type ListStudentsParams struct {
	ClaimedOnly   bool
	UnclaimedOnly bool
	AfterID       string // keyset cursor: only IDs sorting after this one
	Limit         int
}

// List returns students ordered by friendly ID.
func (ss *StudentStore) List(ctx context.Context, params ListStudentsParams) ([]domain.Student, error) {
	query := "SELECT " + studentColumns + " FROM students"
	var where []string
	var args []interface{}
	switch {
	case params.ClaimedOnly:
		where = append(where, "account_uuid IS NOT NULL")
	case params.UnclaimedOnly:
		where = append(where, "account_uuid IS NULL")
	}
	if params.AfterID != "" {
		where = append(where, "id > ?")
		args = append(args, params.AfterID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
	}

	d := ss.store.db
	rows, err := d.QueryContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []domain.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

// UpdateFields applies a partial profile update in its own transaction.
// Returns the new etag on success.
func (ss *StudentStore) UpdateFields(ctx context.Context, actorUUID, studentUUID string, fields map[string]string, ifMatch int64) (int64, error) {
	var etag int64
	err := ss.store.RunInTx(ctx, func(tx *Tx) error {
		var err error
		etag, err = tx.UpdateStudentFields(ctx, actorUUID, studentUUID, fields, ifMatch)
		return err
	})
	return etag, err
}

// Claim links a student to an account and logs a student.claimed event.
func (ss *StudentStore) Claim(ctx context.Context, actorUUID, studentUUID, accountUUID string) (int64, error) {
	var etag int64
	err := ss.store.RunInTx(ctx, func(tx *Tx) error {
		var err error
		etag, err = tx.ClaimStudent(ctx, actorUUID, studentUUID, accountUUID)
		return err
	})
	return etag, err
}

// CreateStudent inserts a student inside the transaction.
func (t *Tx) CreateStudent(ctx context.Context, actorUUID string, params CreateStudentParams) (*domain.Student, error) {
	if strings.TrimSpace(params.DisplayName) == "" {
		return nil, fmt.Errorf("display name is required")
	}
	if err := domain.ValidateProfile(params.Profile); err != nil {
		return nil, err
	}

	studentUUID := params.UUID
	if studentUUID == "" {
		studentUUID = uuid.NewString()
	}
	friendlyID, err := nextFriendlyID(ctx, t.tx, t.dialect(), "students", id.Prefix(id.TypeStudent))
	if err != nil {
		return nil, err
	}

	cols := []string{"uuid", "id", "display_name", "email", "created_at", "updated_at"}
	now := t.store.now()
	args := []interface{}{studentUUID, friendlyID, params.DisplayName, nullIfBlank(params.Email), now, now}
	for _, name := range domain.ProfileFields {
		if v, ok := params.Profile[name]; ok {
			cols = append(cols, name)
			args = append(args, nullIfBlank(v))
		}
	}

	query := fmt.Sprintf("INSERT INTO students (%s) VALUES (%s)", strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := t.exec(ctx, query, args...); err != nil {
		if IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("student %s already exists: %w", studentUUID, err)
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	s, err := t.GetStudent(ctx, studentUUID)
	if err != nil {
		return nil, err
	}
	if err := t.store.events.LogStudentCreated(ctx, t.tx, actorUUID, s); err != nil {
		return nil, fmt.Errorf("failed to log event: %w", err)
	}
	return s, nil
}

// ClaimStudent links a student to an account. A student can be claimed once
// and an account can claim at most one student.
func (t *Tx) ClaimStudent(ctx context.Context, actorUUID, studentUUID, accountUUID string) (int64, error) {
	s, err := t.GetStudentForUpdate(ctx, studentUUID)
	if err != nil {
		return 0, err
	}
	if s.IsClaimed() {
		return 0, &domain.InvalidOperationError{Reason: "student already claimed", Detail: studentUUID}
	}
	if _, err := t.GetAccount(ctx, accountUUID); err != nil {
		return 0, err
	}

	if _, err := t.exec(ctx, "UPDATE students SET account_uuid = ?, etag = etag + 1, updated_at = ? WHERE uuid = ?",
		accountUUID, t.store.now(), studentUUID); err != nil {
		if IsUniqueConstraintError(err) {
			return 0, &domain.InvalidOperationError{Reason: "account already linked", Detail: accountUUID}
		}
		return 0, fmt.Errorf("failed to claim student: %w", err)
	}

	etag := s.ETag + 1
	if err := t.store.events.LogStudentClaimed(ctx, t.tx, actorUUID, studentUUID, accountUUID, etag); err != nil {
		return 0, fmt.Errorf("failed to log event: %w", err)
	}
	return etag, nil
}

func nullIfBlank(v string) interface{} {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
