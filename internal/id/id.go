package id

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	studentIDPattern    = regexp.MustCompile(`^S-\d{5}$`)
	accountIDPattern    = regexp.MustCompile(`^A-\d{5}$`)
	classIDPattern      = regexp.MustCompile(`^C-\d{5}$`)
	instructorIDPattern = regexp.MustCompile(`^I-\d{5}$`)
	uuidPattern         = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Type represents the type of resource
type Type string

const (
	TypeStudent    Type = "student"
	TypeAccount    Type = "account"
	TypeClass      Type = "class"
	TypeInstructor Type = "instructor"
)

// Prefix returns the friendly ID prefix for a resource type
func Prefix(t Type) string {
	switch t {
	case TypeStudent:
		return "S-"
	case TypeAccount:
		return "A-"
	case TypeClass:
		return "C-"
	case TypeInstructor:
		return "I-"
	default:
		return ""
	}
}

// Format formats a friendly ID for the given type and sequence
func Format(t Type, seq int) string {
	return fmt.Sprintf("%s%05d", Prefix(t), seq)
}

// FormatStudent formats a student friendly ID
func FormatStudent(seq int) string {
	return Format(TypeStudent, seq)
}

// FormatAccount formats an account friendly ID
func FormatAccount(seq int) string {
	return Format(TypeAccount, seq)
}

// Parse parses an ID string and returns the type and sequence number
func Parse(id string) (Type, int, error) {
	id = strings.TrimSpace(id)

	var t Type
	switch {
	case studentIDPattern.MatchString(id):
		t = TypeStudent
	case accountIDPattern.MatchString(id):
		t = TypeAccount
	case classIDPattern.MatchString(id):
		t = TypeClass
	case instructorIDPattern.MatchString(id):
		t = TypeInstructor
	default:
		return "", 0, fmt.Errorf("invalid friendly ID format: %s", id)
	}

	seq, _ := strconv.Atoi(id[2:])
	return t, seq, nil
}

// IsUUID checks if a string is a valid UUID
func IsUUID(s string) bool {
	return uuidPattern.MatchString(strings.ToLower(s))
}

// IsFriendlyID checks if a string is a valid friendly ID
func IsFriendlyID(s string) bool {
	_, _, err := Parse(s)
	return err == nil
}
