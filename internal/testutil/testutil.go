// Package testutil provides temporary databases and raw-SQL seed helpers for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/lherron/roster/internal/db"
	"github.com/lherron/roster/internal/store"
)

// TempDB creates a migrated temporary SQLite database for testing
func TempDB(t *testing.T) (*db.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database, dbPath
}

// TempStore creates a Store over a fresh temporary database
func TempStore(t *testing.T) (*store.Store, *db.DB) {
	t.Helper()
	database, _ := TempDB(t)
	return store.New(database), database
}

// WriteFile writes content to a file in dir
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}

func exec(t *testing.T, database *db.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := database.Exec(database.Rebind(query), args...); err != nil {
		t.Fatalf("seed failed: %v\nquery: %s", err, query)
	}
}

func nextID(t *testing.T, database *db.DB, table, prefix string) string {
	t.Helper()
	var n int
	if err := database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return fmt.Sprintf("%s%05d", prefix, n+1)
}

// SeedAccount inserts an account and returns its UUID
func SeedAccount(t *testing.T, database *db.DB, slug, role string) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO accounts (uuid, id, slug, role) VALUES (?, ?, ?, ?)",
		u, nextID(t, database, "accounts", "A-"), slug, role)
	return u
}

// StudentSeed describes a student row. Nil profile values stay NULL.
type StudentSeed struct {
	DisplayName string
	AccountUUID string // empty means unclaimed
	Profile     map[string]*string
}

// SeedStudent inserts a student and returns its UUID
func SeedStudent(t *testing.T, database *db.DB, seed StudentSeed) string {
	t.Helper()
	u := uuid.NewString()
	name := seed.DisplayName
	if name == "" {
		name = "Student " + u[:8]
	}
	var account interface{}
	if seed.AccountUUID != "" {
		account = seed.AccountUUID
	}
	exec(t, database, "INSERT INTO students (uuid, id, display_name, account_uuid) VALUES (?, ?, ?, ?)",
		u, nextID(t, database, "students", "S-"), name, account)
	for field, value := range seed.Profile {
		exec(t, database, "UPDATE students SET "+field+" = ? WHERE uuid = ?", value, u)
	}
	return u
}

// SeedClaimedStudent inserts an account and a student claimed by it
func SeedClaimedStudent(t *testing.T, database *db.DB, slug string, profile map[string]*string) string {
	t.Helper()
	account := SeedAccount(t, database, slug, "student")
	return SeedStudent(t, database, StudentSeed{DisplayName: slug, AccountUUID: account, Profile: profile})
}

// SeedClass inserts a class and returns its UUID
func SeedClass(t *testing.T, database *db.DB, title string) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO classes (uuid, id, title) VALUES (?, ?, ?)",
		u, nextID(t, database, "classes", "C-"), title)
	return u
}

// SeedInstructor inserts an instructor and returns its UUID
func SeedInstructor(t *testing.T, database *db.DB, name string) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO instructors (uuid, id, display_name) VALUES (?, ?, ?)",
		u, nextID(t, database, "instructors", "I-"), name)
	return u
}

// SeedEnrollment enrolls a student in a class and returns the enrollment UUID
func SeedEnrollment(t *testing.T, database *db.DB, studentUUID, classUUID string) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO enrollments (uuid, student_uuid, class_uuid) VALUES (?, ?, ?)", u, studentUUID, classUUID)
	return u
}

// SeedStudentInstructor relates a student to an instructor
func SeedStudentInstructor(t *testing.T, database *db.DB, studentUUID, instructorUUID string) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO student_instructors (uuid, student_uuid, instructor_uuid) VALUES (?, ?, ?)",
		u, studentUUID, instructorUUID)
	return u
}

// SeedNote adds a note to a student
func SeedNote(t *testing.T, database *db.DB, studentUUID, body string) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO student_notes (uuid, student_uuid, body) VALUES (?, ?, ?)", u, studentUUID, body)
	return u
}

// SeedPayment records a payment for a student
func SeedPayment(t *testing.T, database *db.DB, studentUUID string, amountCents int) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO payments (uuid, student_uuid, amount_cents) VALUES (?, ?, ?)", u, studentUUID, amountCents)
	return u
}

// SeedLessonRequest records a lesson request for a student
func SeedLessonRequest(t *testing.T, database *db.DB, studentUUID string) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO lesson_requests (uuid, student_uuid) VALUES (?, ?)", u, studentUUID)
	return u
}

// SeedLessonPackPurchase records a lesson-pack purchase for a student
func SeedLessonPackPurchase(t *testing.T, database *db.DB, studentUUID, pack string, lessons int) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO lesson_pack_purchases (uuid, student_uuid, pack_name, lessons_total) VALUES (?, ?, ?, ?)",
		u, studentUUID, pack, lessons)
	return u
}

// SeedWaiver records a signed waiver for a student
func SeedWaiver(t *testing.T, database *db.DB, studentUUID, version string) string {
	t.Helper()
	u := uuid.NewString()
	exec(t, database, "INSERT INTO waivers (uuid, student_uuid, version) VALUES (?, ?, ?)", u, studentUUID, version)
	return u
}

// CountRows counts rows in table matching student_uuid
func CountRows(t *testing.T, database *db.DB, table, studentUUID string) int {
	t.Helper()
	var n int
	if err := database.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE student_uuid = ?", studentUUID).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// StudentExists reports whether a student row is present
func StudentExists(t *testing.T, database *db.DB, studentUUID string) bool {
	t.Helper()
	var n int
	if err := database.QueryRow("SELECT COUNT(*) FROM students WHERE uuid = ?", studentUUID).Scan(&n); err != nil {
		t.Fatalf("count students: %v", err)
	}
	return n == 1
}

// StrPtr returns a pointer to s
func StrPtr(s string) *string {
	return &s
}
