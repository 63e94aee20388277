package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/testutil"
)

func TestInitAndMigrate(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "roster.db")

	stdout, stderr, code := runCLI(t, "migrate", "--db", path, "--dry-run")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Pending migrations (would be applied):")

	stdout, stderr, code = runCLI(t, "init", "--db", path)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "✓ Applied migration:")
	assert.Contains(t, stdout, "✓ Created account A-00001 (admin, admin)")

	stdout, stderr, code = runCLI(t, "init", "--db", path)
	require.Equal(t, ExitOK, code, stderr)
	assert.NotContains(t, stdout, "Created account")

	stdout, stderr, code = runCLI(t, "migrate", "--db", path)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Database is up to date")

	stdout, stderr, code = runCLI(t, "migrate", "--db", path, "--status")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Applied migrations:")
	assert.NotContains(t, stdout, "Pending migrations:")
}

func TestCommandsRequireMigratedDatabase(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "roster.db")

	_, stderr, code := runCLI(t, "student", "ls", "--db", path)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "requires migration")
}

func TestAccountAndStudentCommands(t *testing.T) {
	isolate(t)
	_, path := testutil.TempDB(t)

	_, stderr, code := runCLI(t, "account", "add", "--db", path, "--slug", "coach", "--name", "Coach", "--role", "instructor")
	require.Equal(t, ExitOK, code, stderr)
	_, stderr, code = runCLI(t, "account", "add", "--db", path, "--slug", "ana", "--role", "student")
	require.Equal(t, ExitOK, code, stderr)

	_, _, code = runCLI(t, "account", "add", "--db", path, "--slug", "Bad Slug")
	assert.Equal(t, ExitUsage, code)

	stdout, stderr, code := runCLI(t, "account", "ls", "--db", path, "-o", "json")
	require.Equal(t, ExitOK, code, stderr)
	var accounts []domain.Account
	require.NoError(t, json.Unmarshal([]byte(stdout), &accounts))
	require.Len(t, accounts, 2)
	assert.Equal(t, "coach", accounts[0].Slug)
	assert.Equal(t, domain.AccountRoleInstructor, accounts[0].Role)

	stdout, stderr, code = runCLI(t, "student", "add", "--db", path, "--as", "coach",
		"--name", "Ana", "--email", "ana@example.com", "--dob", "2010-04-02", "-o", "json")
	require.Equal(t, ExitOK, code, stderr)
	var created domain.Student
	require.NoError(t, json.Unmarshal([]byte(stdout), &created))
	assert.Equal(t, "S-00001", created.ID)
	require.NotNil(t, created.DateOfBirth)
	assert.Equal(t, "2010-04-02", *created.DateOfBirth)
	assert.Nil(t, created.Goals)

	_, _, code = runCLI(t, "student", "add", "--db", path, "--name", "Bad", "--dob", "02/04/2010")
	assert.Equal(t, ExitUsage, code)

	_, stderr, code = runCLI(t, "student", "set", "--db", path, "--as", "coach", "S-00001", "goals=learn butterfly", "--if-match", "1")
	require.Equal(t, ExitOK, code, stderr)
	_, _, code = runCLI(t, "student", "set", "--db", path, "S-00001", "goals=again", "--if-match", "1")
	assert.Equal(t, ExitUsage, code, "stale etag")
	_, _, code = runCLI(t, "student", "set", "--db", path, "S-00001", "height=tall")
	assert.Equal(t, ExitUsage, code, "unknown field")

	stdout, stderr, code = runCLI(t, "student", "claim", "--db", path, "--as", "coach", "S-00001", "--account", "ana")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "✓ S-00001 claimed by A-00002 (ana)")

	_, _, code = runCLI(t, "student", "claim", "--db", path, "S-00001", "--account", "coach")
	assert.Equal(t, ExitUsage, code, "already claimed")

	stdout, stderr, code = runCLI(t, "student", "ls", "--db", path, "--claimed")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "S-00001")
	assert.Contains(t, stdout, "yes")

	stdout, _, code = runCLI(t, "student", "ls", "--db", path, "--unclaimed")
	require.Equal(t, ExitOK, code)
	assert.Empty(t, stdout)

	_, _, code = runCLI(t, "student", "ls", "--db", path, "--claimed", "--unclaimed")
	assert.Equal(t, ExitUsage, code)

	stdout, stderr, code = runCLI(t, "account", "add", "--db", path, "--as", "coach", "--name", "Front Desk", "--role", "admin", "-o", "json")
	require.Equal(t, ExitOK, code, stderr)
	var desk domain.Account
	require.NoError(t, json.Unmarshal([]byte(stdout), &desk))
	assert.Equal(t, "front-desk", desk.Slug)
	assert.Equal(t, domain.AccountRoleAdmin, desk.Role)

	_, _, code = runCLI(t, "account", "add", "--db", path, "--as", "coach", "--name", "!!!")
	assert.Equal(t, ExitUsage, code, "underivable slug")
}

func TestStudentSetFromFile(t *testing.T) {
	isolate(t)
	database, path := testutil.TempDB(t)
	testutil.SeedAccount(t, database, "coach", "instructor")
	s := testutil.SeedStudent(t, database, testutil.StudentSeed{DisplayName: "Cleo"})

	dir := t.TempDir()
	profile := filepath.Join(dir, "cleo.md")
	require.NoError(t, os.WriteFile(profile, []byte("---\nskill_level: intermediate\nphone: 555-0101\n---\nAsthma inhaler in bag.\n"), 0o644))

	stdout, stderr, code := runCLI(t, "student", "set", "--db", path, "--as", "coach", "S-00001", "--file", profile, "phone=555-0199")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "✓ Updated S-00001 (etag 2)")

	var skill, phone, notes string
	require.NoError(t, database.QueryRow(
		"SELECT skill_level, phone, medical_notes FROM students WHERE uuid = ?", s,
	).Scan(&skill, &phone, &notes))
	assert.Equal(t, "intermediate", skill)
	assert.Equal(t, "555-0199", phone, "command line overrides the file")
	assert.Equal(t, "Asthma inhaler in bag.", notes)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"height": "tall"}`), 0o644))
	_, _, code = runCLI(t, "student", "set", "--db", path, "--as", "coach", "S-00001", "--file", bad)
	assert.Equal(t, ExitUsage, code)

	_, _, code = runCLI(t, "student", "set", "--db", path, "--as", "coach", "S-00001")
	assert.Equal(t, ExitUsage, code, "nothing to update")

	_, _, code = runCLI(t, "student", "set", "--db", path, "--as", "coach", "S-00001", "--file", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, ExitUsage, code)
}

func TestStudentLsPagination(t *testing.T) {
	isolate(t)
	database, path := testutil.TempDB(t)
	for i := 0; i < 3; i++ {
		testutil.SeedStudent(t, database, testutil.StudentSeed{})
	}

	stdout, stderr, code := runCLI(t, "student", "ls", "--db", path, "--limit", "2")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "S-00002")
	assert.NotContains(t, stdout, "S-00003")
	require.Contains(t, stderr, "Next cursor: ")
	next := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(stderr), "Next cursor: "))

	stdout, stderr, code = runCLI(t, "student", "ls", "--db", path, "--limit", "2", "--cursor", next)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "S-00003")
	assert.NotContains(t, stdout, "S-00001")
	assert.Empty(t, stderr, "last page has no cursor")

	_, _, code = runCLI(t, "student", "ls", "--db", path, "--cursor", "garbage!")
	assert.Equal(t, ExitUsage, code)
}

func TestStudentShow(t *testing.T) {
	isolate(t)
	database, path := testutil.TempDB(t)
	s := testutil.SeedStudent(t, database, testutil.StudentSeed{
		DisplayName: "Ben",
		Profile:     map[string]*string{domain.FieldSkillLevel: testutil.StrPtr("advanced")},
	})
	testutil.SeedNote(t, database, s, "note")
	testutil.SeedNote(t, database, s, "another")
	testutil.SeedWaiver(t, database, s, "2024")

	stdout, stderr, code := runCLI(t, "student", "show", "--db", path, "S-00001")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "skill_level")
	assert.Contains(t, stdout, "advanced")
	assert.Regexp(t, `dependents\.notes\s+2`, stdout)
	assert.Regexp(t, `dependents\.waivers\s+1`, stdout)
	assert.Regexp(t, `dependents\.payments\s+0`, stdout)

	stdout, stderr, code = runCLI(t, "student", "show", "--db", path, s, "-o", "json")
	require.Equal(t, ExitOK, code, stderr)
	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &detail))
	assert.Equal(t, "Ben", detail["display_name"])
	deps := detail["dependents"].(map[string]interface{})
	assert.EqualValues(t, 2, deps["notes"])

	stdout, stderr, code = runCLI(t, "student", "show", "--db", path, s, "-o", "yaml")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "display_name: Ben")
	assert.Contains(t, stdout, "dependents:\n")

	_, _, code = runCLI(t, "student", "show", "--db", path, "S-00042")
	assert.Equal(t, ExitUsage, code)
}

func TestRelationsCommand(t *testing.T) {
	isolate(t)

	stdout, stderr, code := runCLI(t, "relations")
	require.Equal(t, ExitOK, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 9)
	assert.Regexp(t, `^enrollments\s+enrollments\s+class_uuid\s+yes$`, lines[2])

	stdout, _, code = runCLI(t, "relations", "-o", "json")
	require.Equal(t, ExitOK, code)
	var rels []relationInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &rels))
	require.Len(t, rels, 7)
	assert.Equal(t, "relationships", rels[6].ReportKey)
	assert.True(t, rels[6].Unique)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, code := runCLI(t, "version", "--json")
	require.Equal(t, ExitOK, code)
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &v))
	assert.Equal(t, "rosteradm", v["binary"])
	assert.Equal(t, Version, v["version"])
}
