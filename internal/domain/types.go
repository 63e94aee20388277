package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// AccountRole represents the role of an authenticated account
type AccountRole string

const (
	AccountRoleStudent    AccountRole = "student"
	AccountRoleInstructor AccountRole = "instructor"
	AccountRoleAdmin      AccountRole = "admin"
)

// Profile field names. These are the scalar, independently nullable
// attributes of a student identity.
const (
	FieldSkillLevel               = "skill_level"
	FieldGoals                    = "goals"
	FieldPhone                    = "phone"
	FieldDateOfBirth              = "date_of_birth"
	FieldEmergencyContactName     = "emergency_contact_name"
	FieldEmergencyContactPhone    = "emergency_contact_phone"
	FieldEmergencyContactRelation = "emergency_contact_relation"
	FieldMedicalNotes             = "medical_notes"
)

// ProfileFields lists every scalar profile column in display order.
var ProfileFields = []string{
	FieldSkillLevel,
	FieldGoals,
	FieldPhone,
	FieldDateOfBirth,
	FieldEmergencyContactName,
	FieldEmergencyContactPhone,
	FieldEmergencyContactRelation,
	FieldMedicalNotes,
}

// Account represents an authenticated login
type Account struct {
	UUID        string      `json:"uuid" yaml:"uuid" db:"uuid"`
	ID          string      `json:"id" yaml:"id" db:"id"`
	Slug        string      `json:"slug" yaml:"slug" db:"slug"`
	DisplayName *string     `json:"display_name,omitempty" yaml:"display_name,omitempty" db:"display_name"`
	Role        AccountRole `json:"role" yaml:"role" db:"role"`
	CreatedAt   time.Time   `json:"created_at" yaml:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// Student represents a student identity, the entity being deduplicated
type Student struct {
	UUID                     string    `json:"uuid" yaml:"uuid" db:"uuid"`
	ID                       string    `json:"id" yaml:"id" db:"id"`
	DisplayName              string    `json:"display_name" yaml:"display_name" db:"display_name"`
	Email                    *string   `json:"email,omitempty" yaml:"email,omitempty" db:"email"`
	AccountUUID              *string   `json:"account_uuid,omitempty" yaml:"account_uuid,omitempty" db:"account_uuid"` // set when claimed
	SkillLevel               *string   `json:"skill_level,omitempty" yaml:"skill_level,omitempty" db:"skill_level"`
	Goals                    *string   `json:"goals,omitempty" yaml:"goals,omitempty" db:"goals"`
	Phone                    *string   `json:"phone,omitempty" yaml:"phone,omitempty" db:"phone"`
	DateOfBirth              *string   `json:"date_of_birth,omitempty" yaml:"date_of_birth,omitempty" db:"date_of_birth"` // YYYY-MM-DD
	EmergencyContactName     *string   `json:"emergency_contact_name,omitempty" yaml:"emergency_contact_name,omitempty" db:"emergency_contact_name"`
	EmergencyContactPhone    *string   `json:"emergency_contact_phone,omitempty" yaml:"emergency_contact_phone,omitempty" db:"emergency_contact_phone"`
	EmergencyContactRelation *string   `json:"emergency_contact_relation,omitempty" yaml:"emergency_contact_relation,omitempty" db:"emergency_contact_relation"`
	MedicalNotes             *string   `json:"medical_notes,omitempty" yaml:"medical_notes,omitempty" db:"medical_notes"`
	ETag                     int64     `json:"etag" yaml:"etag" db:"etag"`
	CreatedAt                time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
	UpdatedAt                time.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// IsClaimed reports whether the student is linked to an authenticated account.
func (s *Student) IsClaimed() bool {
	return s.AccountUUID != nil && strings.TrimSpace(*s.AccountUUID) != ""
}

// Profile returns the scalar profile attributes keyed by column name.
// Unset attributes map to nil.
func (s *Student) Profile() map[string]*string {
	return map[string]*string{
		FieldSkillLevel:               s.SkillLevel,
		FieldGoals:                    s.Goals,
		FieldPhone:                    s.Phone,
		FieldDateOfBirth:              s.DateOfBirth,
		FieldEmergencyContactName:     s.EmergencyContactName,
		FieldEmergencyContactPhone:    s.EmergencyContactPhone,
		FieldEmergencyContactRelation: s.EmergencyContactRelation,
		FieldMedicalNotes:             s.MedicalNotes,
	}
}

// Class represents a scheduled class students enroll in
type Class struct {
	UUID      string    `json:"uuid" yaml:"uuid" db:"uuid"`
	ID        string    `json:"id" yaml:"id" db:"id"`
	Title     string    `json:"title" yaml:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
}

// Instructor represents an instructor students can be related to
type Instructor struct {
	UUID        string    `json:"uuid" yaml:"uuid" db:"uuid"`
	ID          string    `json:"id" yaml:"id" db:"id"`
	DisplayName string    `json:"display_name" yaml:"display_name" db:"display_name"`
	AccountUUID *string   `json:"account_uuid,omitempty" yaml:"account_uuid,omitempty" db:"account_uuid"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
}

// Enrollment is a student's registration in a class. Unique on (student, class).
type Enrollment struct {
	UUID        string    `json:"uuid" yaml:"uuid" db:"uuid"`
	StudentUUID string    `json:"student_uuid" yaml:"student_uuid" db:"student_uuid"`
	ClassUUID   string    `json:"class_uuid" yaml:"class_uuid" db:"class_uuid"`
	Status      string    `json:"status" yaml:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
}

// StudentInstructor is a student's relationship with an instructor.
// Unique on (student, instructor).
type StudentInstructor struct {
	UUID           string    `json:"uuid" yaml:"uuid" db:"uuid"`
	StudentUUID    string    `json:"student_uuid" yaml:"student_uuid" db:"student_uuid"`
	InstructorUUID string    `json:"instructor_uuid" yaml:"instructor_uuid" db:"instructor_uuid"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
}

// DependentRecord is the shape shared by every record referencing a student.
// OtherKey is set only for relations that carry a (student, other) uniqueness constraint.
type DependentRecord struct {
	UUID        string  `json:"uuid" yaml:"uuid" db:"uuid"`
	StudentUUID string  `json:"student_uuid" yaml:"student_uuid" db:"student_uuid"`
	OtherKey    *string `json:"other_key,omitempty"`
}

// Event represents an event in the event log
type Event struct {
	ID           int64     `json:"id" yaml:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp" db:"timestamp"`
	ActorUUID    *string   `json:"actor_uuid,omitempty" yaml:"actor_uuid,omitempty" db:"actor_uuid"`
	ResourceType string    `json:"resource_type" yaml:"resource_type" db:"resource_type"`
	ResourceUUID *string   `json:"resource_uuid,omitempty" yaml:"resource_uuid,omitempty" db:"resource_uuid"`
	EventType    string    `json:"event_type" yaml:"event_type" db:"event_type"`
	ETag         *int64    `json:"etag,omitempty" yaml:"etag,omitempty" db:"etag"`
	Payload      *string   `json:"payload,omitempty" yaml:"payload,omitempty" db:"payload"` // JSON
}

// GetPayload parses the payload JSON into a map
func (e *Event) GetPayload() (map[string]interface{}, error) {
	if e.Payload == nil || *e.Payload == "" {
		return map[string]interface{}{}, nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(*e.Payload), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// SetPayload sets the payload from a map
func (e *Event) SetPayload(payload map[string]interface{}) error {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s := string(data)
	e.Payload = &s
	return nil
}
