package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lherron/roster/internal/db"
	"github.com/lherron/roster/internal/domain"
)

// Event types written by this module
const (
	TypeStudentCreated = "student.created"
	TypeStudentUpdated = "student.updated"
	TypeStudentClaimed = "student.claimed"
	TypeStudentDeleted = "student.deleted"
	TypeStudentMerged  = "student.merged"
	TypeAccountCreated = "account.created"
)

// Writer handles writing events to the event log
type Writer struct {
	db *db.DB
}

// NewWriter creates a new event writer
func NewWriter(database *db.DB) *Writer {
	return &Writer{db: database}
}

// LogEvent writes an event to the event log. When tx is non-nil the event
// becomes part of that transaction and disappears with it on rollback.
func (w *Writer) LogEvent(ctx context.Context, tx *sql.Tx, event *domain.Event) error {
	if err := domain.ValidateResourceType(event.ResourceType); err != nil {
		return err
	}

	query := w.db.Rebind(`
		INSERT INTO event_log (actor_uuid, resource_type, resource_uuid, event_type, etag, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	executor := w.getExecutor(tx)
	_, err := executor.ExecContext(ctx, query, event.ActorUUID, event.ResourceType, event.ResourceUUID, event.EventType, event.ETag, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogStudentCreated logs a student creation event
func (w *Writer) LogStudentCreated(ctx context.Context, tx *sql.Tx, actorUUID string, student *domain.Student) error {
	return w.logStudent(ctx, tx, actorUUID, student.UUID, TypeStudentCreated, &student.ETag, map[string]interface{}{
		"id":           student.ID,
		"display_name": student.DisplayName,
	})
}

// LogStudentUpdated logs a student profile update event
func (w *Writer) LogStudentUpdated(ctx context.Context, tx *sql.Tx, actorUUID, studentUUID string, etag int64, changes map[string]string) error {
	payload := make(map[string]interface{}, len(changes))
	for k, v := range changes {
		payload[k] = v
	}
	return w.logStudent(ctx, tx, actorUUID, studentUUID, TypeStudentUpdated, &etag, payload)
}

// LogStudentClaimed logs the linking of a student to an account
func (w *Writer) LogStudentClaimed(ctx context.Context, tx *sql.Tx, actorUUID, studentUUID, accountUUID string, etag int64) error {
	return w.logStudent(ctx, tx, actorUUID, studentUUID, TypeStudentClaimed, &etag, map[string]interface{}{
		"account_uuid": accountUUID,
	})
}

// LogStudentDeleted logs a student hard-delete event
func (w *Writer) LogStudentDeleted(ctx context.Context, tx *sql.Tx, actorUUID, studentUUID string, payload map[string]interface{}) error {
	return w.logStudent(ctx, tx, actorUUID, studentUUID, TypeStudentDeleted, nil, payload)
}

// LogStudentMerged logs a merge against the surviving student
func (w *Writer) LogStudentMerged(ctx context.Context, tx *sql.Tx, actorUUID, targetUUID string, etag int64, payload map[string]interface{}) error {
	return w.logStudent(ctx, tx, actorUUID, targetUUID, TypeStudentMerged, &etag, payload)
}

// LogAccountCreated logs an account creation event
func (w *Writer) LogAccountCreated(ctx context.Context, tx *sql.Tx, actorUUID string, account *domain.Account) error {
	payload, err := json.Marshal(map[string]interface{}{
		"slug": account.Slug,
		"role": account.Role,
	})
	if err != nil {
		return err
	}

	payloadStr := string(payload)
	event := &domain.Event{
		ResourceType: "account",
		ResourceUUID: &account.UUID,
		EventType:    TypeAccountCreated,
		Payload:      &payloadStr,
	}
	if actorUUID != "" {
		event.ActorUUID = &actorUUID
	}

	return w.LogEvent(ctx, tx, event)
}

func (w *Writer) logStudent(ctx context.Context, tx *sql.Tx, actorUUID, studentUUID, eventType string, etag *int64, payload map[string]interface{}) error {
	event := &domain.Event{
		ResourceType: "student",
		ResourceUUID: &studentUUID,
		EventType:    eventType,
		ETag:         etag,
	}
	if actorUUID != "" {
		event.ActorUUID = &actorUUID
	}
	if err := event.SetPayload(payload); err != nil {
		return err
	}
	return w.LogEvent(ctx, tx, event)
}

// ForResource returns the events recorded for a resource, oldest first
func (w *Writer) ForResource(ctx context.Context, resourceUUID string) ([]domain.Event, error) {
	rows, err := w.db.QueryContext(ctx, w.db.Rebind(`
		SELECT id, timestamp, actor_uuid, resource_type, resource_uuid, event_type, etag, payload
		FROM event_log
		WHERE resource_uuid = ?
		ORDER BY id
	`), resourceUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorUUID, &e.ResourceType, &e.ResourceUUID, &e.EventType, &e.ETag, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// getExecutor returns the appropriate executor (tx or db)
func (w *Writer) getExecutor(tx *sql.Tx) interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}
