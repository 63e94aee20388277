package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/roster/internal/domain"
	"github.com/lherron/roster/internal/events"
	"github.com/lherron/roster/internal/store"
	"github.com/lherron/roster/internal/testutil"
)

var (
	enrollments = store.RelationSpec{Table: "enrollments", OtherKey: "class_uuid"}
	notes       = store.RelationSpec{Table: "student_notes"}
)

func TestStudentStore_Create(t *testing.T) {
	s, _ := testutil.TempStore(t)
	ctx := context.Background()

	student, err := s.Students.Create(ctx, "", store.CreateStudentParams{
		DisplayName: "Ada",
		Email:       "ada@example.com",
		Profile:     map[string]string{domain.FieldGoals: "improve turns", domain.FieldPhone: " "},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, student.UUID)
	assert.Equal(t, "S-00001", student.ID)
	assert.Equal(t, int64(1), student.ETag)
	require.NotNil(t, student.Goals)
	assert.Equal(t, "improve turns", *student.Goals)
	assert.Nil(t, student.Phone, "blank profile values are stored as NULL")
	assert.False(t, student.IsClaimed())

	second, err := s.Students.Create(ctx, "", store.CreateStudentParams{DisplayName: "Bea"})
	require.NoError(t, err)
	assert.Equal(t, "S-00002", second.ID)

	evs, err := s.Events().ForResource(ctx, student.UUID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeStudentCreated, evs[0].EventType)
}

func TestStudentStore_Create_Validation(t *testing.T) {
	s, _ := testutil.TempStore(t)
	ctx := context.Background()

	_, err := s.Students.Create(ctx, "", store.CreateStudentParams{DisplayName: "  "})
	assert.Error(t, err)

	_, err = s.Students.Create(ctx, "", store.CreateStudentParams{
		DisplayName: "Ada",
		Profile:     map[string]string{"uuid": "x"},
	})
	assert.Error(t, err)
}

func TestStudentStore_UpdateFields(t *testing.T) {
	s, database := testutil.TempStore(t)
	ctx := context.Background()
	u := testutil.SeedStudent(t, database, testutil.StudentSeed{DisplayName: "Ada"})

	etag, err := s.Students.UpdateFields(ctx, "", u, map[string]string{domain.FieldSkillLevel: "intermediate"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), etag)

	got, err := s.Students.GetByUUID(ctx, u)
	require.NoError(t, err)
	require.NotNil(t, got.SkillLevel)
	assert.Equal(t, "intermediate", *got.SkillLevel)
	assert.Equal(t, int64(2), got.ETag)
}

func TestStudentStore_UpdateFields_ETagMismatch(t *testing.T) {
	s, database := testutil.TempStore(t)
	u := testutil.SeedStudent(t, database, testutil.StudentSeed{})

	_, err := s.Students.UpdateFields(context.Background(), "", u, map[string]string{domain.FieldGoals: "x"}, 7)
	var mismatch *domain.ETagMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(7), mismatch.Expected)
	assert.Equal(t, int64(1), mismatch.Actual)
}

func TestStudentStore_GetByUUID_NotFound(t *testing.T) {
	s, _ := testutil.TempStore(t)
	_, err := s.Students.GetByUUID(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStudentStore_Claim(t *testing.T) {
	s, database := testutil.TempStore(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, database, "ada", "student")
	u := testutil.SeedStudent(t, database, testutil.StudentSeed{})
	other := testutil.SeedStudent(t, database, testutil.StudentSeed{})

	etag, err := s.Students.Claim(ctx, "", u, account)
	require.NoError(t, err)
	assert.Equal(t, int64(2), etag)

	got, err := s.Students.GetByUUID(ctx, u)
	require.NoError(t, err)
	assert.True(t, got.IsClaimed())

	_, err = s.Students.Claim(ctx, "", u, account)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation, "a student is claimed once")

	_, err = s.Students.Claim(ctx, "", other, account)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation, "an account claims one student")
}

func TestStudentStore_List(t *testing.T) {
	s, database := testutil.TempStore(t)
	ctx := context.Background()
	testutil.SeedClaimedStudent(t, database, "claimed", nil)
	testutil.SeedStudent(t, database, testutil.StudentSeed{})
	testutil.SeedStudent(t, database, testutil.StudentSeed{})

	all, err := s.Students.List(ctx, store.ListStudentsParams{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	unclaimed, err := s.Students.List(ctx, store.ListStudentsParams{UnclaimedOnly: true})
	require.NoError(t, err)
	assert.Len(t, unclaimed, 2)

	claimed, err := s.Students.List(ctx, store.ListStudentsParams{ClaimedOnly: true})
	require.NoError(t, err)
	assert.Len(t, claimed, 1)

	limited, err := s.Students.List(ctx, store.ListStudentsParams{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	next, err := s.Students.List(ctx, store.ListStudentsParams{AfterID: all[0].ID, UnclaimedOnly: true})
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, all[1].ID, next[0].ID)
	assert.Equal(t, all[2].ID, next[1].ID)
}

func TestAccountStore_CreateAndLookup(t *testing.T) {
	s, _ := testutil.TempStore(t)
	ctx := context.Background()

	a, err := s.Accounts.Create(ctx, "", store.CreateAccountParams{Slug: "coach-kim", DisplayName: "Kim", Role: domain.AccountRoleInstructor})
	require.NoError(t, err)
	assert.Equal(t, "A-00001", a.ID)

	bySlug, err := s.Accounts.GetBySlug(ctx, "coach-kim")
	require.NoError(t, err)
	assert.Equal(t, a.UUID, bySlug.UUID)

	byID, err := s.Accounts.GetByID(ctx, "A-00001")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountRoleInstructor, byID.Role)

	_, err = s.Accounts.Create(ctx, "", store.CreateAccountParams{Slug: "coach-kim", Role: domain.AccountRoleAdmin})
	assert.Error(t, err)

	_, err = s.Accounts.Create(ctx, "", store.CreateAccountParams{Slug: "x", Role: "owner"})
	assert.Error(t, err)
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	s, database := testutil.TempStore(t)
	ctx := context.Background()
	u := testutil.SeedStudent(t, database, testutil.StudentSeed{})
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.UpdateStudentFields(ctx, "", u, map[string]string{domain.FieldGoals: "x"}, 0); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Students.GetByUUID(ctx, u)
	require.NoError(t, err)
	assert.Nil(t, got.Goals)
	assert.Equal(t, int64(1), got.ETag)
}

func TestRunInTx_PassesDomainErrorsThrough(t *testing.T) {
	s, _ := testutil.TempStore(t)
	want := &domain.InvalidOperationError{Reason: domain.ReasonSelfMerge}

	err := s.RunInTx(context.Background(), func(tx *store.Tx) error { return want })
	assert.Same(t, want, err)
}

func TestRunInTx_CancelledContext(t *testing.T) {
	s, _ := testutil.TempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.RunInTx(ctx, func(tx *store.Tx) error {
		called = true
		return nil
	})
	var aborted *domain.AbortedError
	require.ErrorAs(t, err, &aborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRunInTx_PanicRollsBack(t *testing.T) {
	s, database := testutil.TempStore(t)
	ctx := context.Background()
	u := testutil.SeedStudent(t, database, testutil.StudentSeed{})

	assert.Panics(t, func() {
		_ = s.RunInTx(ctx, func(tx *store.Tx) error {
			_, _ = tx.UpdateStudentFields(ctx, "", u, map[string]string{domain.FieldGoals: "x"}, 0)
			panic("boom")
		})
	})

	got, err := s.Students.GetByUUID(ctx, u)
	require.NoError(t, err)
	assert.Nil(t, got.Goals)
}

func TestRelations_ListAndKeys(t *testing.T) {
	s, database := testutil.TempStore(t)
	ctx := context.Background()
	u := testutil.SeedStudent(t, database, testutil.StudentSeed{})
	c1 := testutil.SeedClass(t, database, "Beginner")
	c2 := testutil.SeedClass(t, database, "Advanced")
	testutil.SeedEnrollment(t, database, u, c1)
	testutil.SeedEnrollment(t, database, u, c2)
	testutil.SeedNote(t, database, u, "hello")

	err := s.RunInTx(ctx, func(tx *store.Tx) error {
		recs, err := tx.ListByStudent(ctx, enrollments, u)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		for _, r := range recs {
			require.NotNil(t, r.OtherKey)
			assert.Equal(t, u, r.StudentUUID)
		}

		keys, err := tx.ListOtherKeysByStudent(ctx, enrollments, u)
		require.NoError(t, err)
		assert.Contains(t, keys, c1)
		assert.Contains(t, keys, c2)

		noteRecs, err := tx.ListByStudent(ctx, notes, u)
		require.NoError(t, err)
		require.Len(t, noteRecs, 1)
		assert.Nil(t, noteRecs[0].OtherKey)

		_, err = tx.ListOtherKeysByStudent(ctx, notes, u)
		assert.Error(t, err, "notes have no other key")
		return nil
	})
	require.NoError(t, err)
}

func TestRelations_ReassignAndDelete(t *testing.T) {
	s, database := testutil.TempStore(t)
	ctx := context.Background()
	from := testutil.SeedStudent(t, database, testutil.StudentSeed{})
	to := testutil.SeedStudent(t, database, testutil.StudentSeed{})
	n1 := testutil.SeedNote(t, database, from, "a")
	n2 := testutil.SeedNote(t, database, from, "b")
	n3 := testutil.SeedNote(t, database, from, "c")
	foreign := testutil.SeedNote(t, database, to, "already theirs")

	err := s.RunInTx(ctx, func(tx *store.Tx) error {
		moved, err := tx.ReassignStudent(ctx, notes, []string{n1, n2, foreign}, from, to)
		require.NoError(t, err)
		assert.Equal(t, int64(2), moved, "records not owned by from are untouched")

		deleted, err := tx.DeleteRecords(ctx, notes, []string{n3, n1}, from)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted, "n1 now belongs to to")

		left, err := tx.CountByStudent(ctx, notes, from)
		require.NoError(t, err)
		assert.Zero(t, left)
		return nil
	})
	require.NoError(t, err)

	n, err := s.CountByStudent(ctx, notes, to)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRelations_ReassignEmpty(t *testing.T) {
	s, database := testutil.TempStore(t)
	ctx := context.Background()
	u := testutil.SeedStudent(t, database, testutil.StudentSeed{})

	err := s.RunInTx(ctx, func(tx *store.Tx) error {
		n, err := tx.ReassignStudent(ctx, notes, nil, u, u)
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)
}

func TestRelationSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    store.RelationSpec
		wantErr bool
	}{
		{"plain table", store.RelationSpec{Table: "waivers"}, false},
		{"with key", store.RelationSpec{Table: "enrollments", OtherKey: "class_uuid"}, false},
		{"injection in table", store.RelationSpec{Table: "waivers; DROP TABLE students"}, true},
		{"uppercase", store.RelationSpec{Table: "Waivers"}, true},
		{"bad key", store.RelationSpec{Table: "enrollments", OtherKey: "class-uuid"}, true},
		{"empty", store.RelationSpec{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeleteStudent_RestrictedByDependents(t *testing.T) {
	s, database := testutil.TempStore(t)
	ctx := context.Background()
	u := testutil.SeedStudent(t, database, testutil.StudentSeed{})
	testutil.SeedWaiver(t, database, u, "v1")

	err := s.RunInTx(ctx, func(tx *store.Tx) error {
		return tx.DeleteStudent(ctx, "", u, nil)
	})
	require.Error(t, err)
	assert.True(t, store.IsForeignKeyConstraintError(err), "got %v", err)
	assert.True(t, testutil.StudentExists(t, database, u))
}
