package postgres_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jrsteele09/go-class-attendance/classes"
	"github.com/jrsteele09/go-class-attendance/internal/utils"
	"github.com/jrsteele09/go-class-attendance/storage/postgres"
	"github.com/jrsteele09/go-class-attendance/users"
	"github.com/stretchr/testify/require"
)

// Runs against a real database; set TEST_DATABASE_URL to enable.
func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := postgres.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, postgres.Migrate(ctx, db))
	return db
}

func newClass() *classes.ClassSession {
	return &classes.ClassSession{
		ID:          uuid.New().String(),
		TutorID:     "tutor-profile-1",
		StudentID:   "student-1",
		ScheduledAt: time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC),
		Status:      classes.StatusScheduled,
	}
}

func TestClassRepo(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewClassRepo(openDB(t))

	session := newClass()
	require.NoError(t, repo.Create(ctx, session))
	require.Error(t, repo.Create(ctx, session))

	_, err := repo.Get(ctx, uuid.New().String())
	require.ErrorIs(t, err, classes.ErrNotFound)

	t.Run("token precondition", func(t *testing.T) {
		next := session.Clone()
		next.AttendanceToken = "tok-1"
		require.NoError(t, repo.CompareAndSwap(ctx, classes.Precondition{Status: classes.StatusScheduled}, next))

		wrong := "tok-0"
		err := repo.CompareAndSwap(ctx, classes.Precondition{Status: classes.StatusScheduled, AttendanceToken: &wrong}, session.Clone())
		require.ErrorIs(t, err, classes.ErrConflict)

		stored, err := repo.Get(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, "tok-1", stored.AttendanceToken)
	})

	t.Run("start clears token", func(t *testing.T) {
		expected := "tok-1"
		next := session.Clone()
		next.Status = classes.StatusInProgress
		next.VerificationDate = utils.Ptr(time.Now().UTC())
		require.NoError(t, repo.CompareAndSwap(ctx, classes.Precondition{Status: classes.StatusScheduled, AttendanceToken: &expected}, next))

		stored, err := repo.Get(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, classes.StatusInProgress, stored.Status)
		require.Empty(t, stored.AttendanceToken)
		require.NotNil(t, stored.VerificationDate)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := repo.CompareAndSwap(ctx, classes.Precondition{Status: classes.StatusScheduled}, newClass())
		require.ErrorIs(t, err, classes.ErrNotFound)
	})
}

func TestClassRepo_ConcurrentCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewClassRepo(openDB(t))
	session := newClass()
	require.NoError(t, repo.Create(ctx, session))

	var (
		wg        sync.WaitGroup
		successes int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := session.Clone()
			next.Status = classes.StatusInProgress
			next.VerificationDate = utils.Ptr(time.Now().UTC())
			if repo.CompareAndSwap(ctx, classes.Precondition{Status: classes.StatusScheduled}, next) == nil {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, successes)
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepo(openDB(t))

	account := &users.Account{Email: "tutor@example.com", Role: users.RoleTutor}
	require.NoError(t, repo.UpsertAccount(ctx, account))
	got, err := repo.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, users.RoleTutor, got.Role)

	profile := &users.TutorProfile{AccountID: account.ID}
	require.NoError(t, repo.UpsertTutorProfile(ctx, profile))
	gotProfile, err := repo.GetTutorProfileByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, profile.ID, gotProfile.ID)

	studentID := uuid.New().String()
	require.NoError(t, repo.UpsertStudent(ctx, &users.Student{ID: studentID, GuardianID: "parent-1"}))
	student, err := repo.GetStudent(ctx, studentID)
	require.NoError(t, err)
	require.True(t, student.HasGuardian("parent-1"))

	_, err = repo.GetStudent(ctx, uuid.New().String())
	require.ErrorIs(t, err, users.ErrNotFound)
}
