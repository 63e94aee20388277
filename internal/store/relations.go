package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lherron/roster/internal/db"
	"github.com/lherron/roster/internal/domain"
)

// reassignChunkSize bounds the number of placeholders in a single IN clause.
const reassignChunkSize = 500

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// RelationSpec names a table whose rows reference a student through
// student_uuid. OtherKey is the second column of a (student_uuid, other)
// uniqueness constraint, or empty when the table has none.
type RelationSpec struct {
	Table    string
	OtherKey string
}

// Validate rejects table and column names that are not plain identifiers.
// Relation specs are interpolated into SQL, so this runs before every query.
func (r RelationSpec) Validate() error {
	if !identifierRe.MatchString(r.Table) {
		return fmt.Errorf("invalid relation table %q", r.Table)
	}
	if r.OtherKey != "" && !identifierRe.MatchString(r.OtherKey) {
		return fmt.Errorf("invalid relation key %q for table %s", r.OtherKey, r.Table)
	}
	return nil
}

// ListByStudent returns every record of the relation owned by studentUUID,
// ordered by uuid. OtherKey is populated when the relation has one.
func (t *Tx) ListByStudent(ctx context.Context, rel RelationSpec, studentUUID string) ([]domain.DependentRecord, error) {
	if err := rel.Validate(); err != nil {
		return nil, err
	}

	cols := "uuid, student_uuid"
	if rel.OtherKey != "" {
		cols += ", " + rel.OtherKey
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE student_uuid = ? ORDER BY uuid", cols, rel.Table)

	rows, err := t.tx.QueryContext(ctx, db.Rebind(t.dialect(), query), studentUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", rel.Table, err)
	}
	defer rows.Close()

	var records []domain.DependentRecord
	for rows.Next() {
		var r domain.DependentRecord
		if rel.OtherKey != "" {
			var other string
			if err := rows.Scan(&r.UUID, &r.StudentUUID, &other); err != nil {
				return nil, fmt.Errorf("failed to scan %s: %w", rel.Table, err)
			}
			r.OtherKey = &other
		} else if err := rows.Scan(&r.UUID, &r.StudentUUID); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", rel.Table, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", rel.Table, err)
	}
	return records, nil
}

// ListOtherKeysByStudent returns the set of other-key values the student
// already holds in a unique relation.
func (t *Tx) ListOtherKeysByStudent(ctx context.Context, rel RelationSpec, studentUUID string) (map[string]struct{}, error) {
	if err := rel.Validate(); err != nil {
		return nil, err
	}
	if rel.OtherKey == "" {
		return nil, fmt.Errorf("relation %s has no other key", rel.Table)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE student_uuid = ?", rel.OtherKey, rel.Table)
	rows, err := t.tx.QueryContext(ctx, db.Rebind(t.dialect(), query), studentUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", rel.Table, err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan %s key: %w", rel.Table, err)
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// ReassignStudent moves the given records from one student to another and
// returns how many rows actually changed. Records no longer owned by from are
// left alone, so a short count means something moved underneath the caller.
func (t *Tx) ReassignStudent(ctx context.Context, rel RelationSpec, recordUUIDs []string, from, to string) (int64, error) {
	if err := rel.Validate(); err != nil {
		return 0, err
	}

	var total int64
	for _, chunk := range chunkStrings(recordUUIDs, reassignChunkSize) {
		query := fmt.Sprintf("UPDATE %s SET student_uuid = ? WHERE student_uuid = ? AND uuid IN (%s)",
			rel.Table, placeholders(len(chunk)))
		args := make([]interface{}, 0, len(chunk)+2)
		args = append(args, to, from)
		for _, id := range chunk {
			args = append(args, id)
		}

		res, err := t.exec(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("failed to reassign %s: %w", rel.Table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to reassign %s: %w", rel.Table, err)
		}
		total += n
	}
	return total, nil
}

// DeleteRecords deletes the given records owned by studentUUID and returns
// how many rows were removed.
func (t *Tx) DeleteRecords(ctx context.Context, rel RelationSpec, recordUUIDs []string, studentUUID string) (int64, error) {
	if err := rel.Validate(); err != nil {
		return 0, err
	}

	var total int64
	for _, chunk := range chunkStrings(recordUUIDs, reassignChunkSize) {
		query := fmt.Sprintf("DELETE FROM %s WHERE student_uuid = ? AND uuid IN (%s)",
			rel.Table, placeholders(len(chunk)))
		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, studentUUID)
		for _, id := range chunk {
			args = append(args, id)
		}

		res, err := t.exec(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("failed to delete %s: %w", rel.Table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to delete %s: %w", rel.Table, err)
		}
		total += n
	}
	return total, nil
}

// CountByStudent counts the relation's records owned by studentUUID.
func (t *Tx) CountByStudent(ctx context.Context, rel RelationSpec, studentUUID string) (int, error) {
	return countByStudent(ctx, t.tx, t.dialect(), rel, studentUUID)
}

// CountByStudent counts outside any transaction, for read-only views.
func (s *Store) CountByStudent(ctx context.Context, rel RelationSpec, studentUUID string) (int, error) {
	return countByStudent(ctx, s.db, s.db.Dialect(), rel, studentUUID)
}

func countByStudent(ctx context.Context, q querier, d db.Dialect, rel RelationSpec, studentUUID string) (int, error) {
	if err := rel.Validate(); err != nil {
		return 0, err
	}
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE student_uuid = ?", rel.Table)
	if err := q.QueryRowContext(ctx, db.Rebind(d, query), studentUUID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", rel.Table, err)
	}
	return n, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func chunkStrings(items []string, size int) [][]string {
	var chunks [][]string
	for len(items) > 0 {
		n := size
		if len(items) < n {
			n = len(items)
		}
		chunks = append(chunks, items[:n])
		items = items[n:]
	}
	return chunks
}
