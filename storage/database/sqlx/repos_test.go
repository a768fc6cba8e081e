package sqlxrepos_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/leave"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/storage/database"
	"github.com/trezcool/mahudhurio/storage/database/sqlx"
	"github.com/trezcool/mahudhurio/tests"
)

// openTestDB connects to the database of TEST_DATABASE_URL, on a freshly migrated schema.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`DROP SCHEMA public CASCADE; CREATE SCHEMA public`)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db.DB))
	return db
}

func TestRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	students := sqlxrepos.NewRosterRepository(db)
	testutil.SeedRoster(t, students, testutil.AliceAndBob())

	t.Run("roster", func(t *testing.T) {
		class, err := students.QueryClassStudents(ctx, "5B")
		require.NoError(t, err)
		require.Len(t, class, 2)
		assert.Equal(t, "S1", class[0].ID)
		assert.Equal(t, "P1", class[0].ParentID)

		g, err := students.GetGuardian(ctx, "P2")
		require.NoError(t, err)
		assert.Equal(t, "p2@test.cd", g.Email)

		_, err = students.GetStudent(ctx, "lol")
		assert.ErrorIs(t, err, roster.ErrStudentNotFound)
	})

	t.Run("leave requests", func(t *testing.T) {
		repo := sqlxrepos.NewLeaveRepository(db)
		req := leave.Request{
			ID:          uuid.New().String(),
			StudentID:   "S1",
			StudentName: "Alice",
			ParentID:    "P1",
			StartDate:   testutil.Date(t, "2024-05-20"),
			EndDate:     testutil.Date(t, "2024-05-22"),
			Reason:      "trip",
			Status:      leave.StatusPending,
			SubmittedAt: time.Now().UTC().Truncate(time.Millisecond),
			Version:     1,
		}
		_, err := repo.CreateLeaveRequest(ctx, req)
		require.NoError(t, err)

		excused, err := repo.HasApprovedLeave(ctx, "S1", testutil.Date(t, "2024-05-21"))
		require.NoError(t, err)
		assert.False(t, excused, "pending")

		at := time.Now().UTC().Truncate(time.Millisecond)
		decided := req
		decided.Status, decided.DecidedAt, decided.DecidedBy, decided.Version = leave.StatusApproved, &at, "staff", 2
		got, err := repo.DecideLeaveRequest(ctx, decided)
		require.NoError(t, err)
		assert.Equal(t, leave.StatusApproved, got.Status)
		assert.Equal(t, 2, got.Version)

		_, err = repo.DecideLeaveRequest(ctx, decided)
		assert.ErrorIs(t, err, leave.ErrNotPending)

		for date, want := range map[string]bool{"2024-05-19": false, "2024-05-20": true, "2024-05-22": true, "2024-05-23": false} {
			excused, err = repo.HasApprovedLeave(ctx, "S1", testutil.Date(t, date))
			require.NoError(t, err)
			assert.Equal(t, want, excused, date)
		}

		reqs, err := repo.QueryLeaveRequests(ctx, leave.QueryFilter{ParentID: "P1", Status: leave.StatusApproved})
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, req.ID, reqs[0].ID)
	})

	t.Run("sessions & ledger", func(t *testing.T) {
		store := sqlxrepos.NewSessionRepository(db)
		ledger := sqlxrepos.NewLedgerRepository(db)
		s := attendance.Session{
			ClassID: "5B",
			Date:    testutil.Date(t, "2024-05-21"),
			Entries: []attendance.Entry{{StudentID: "S1", StudentName: "Alice", Status: attendance.StatusExcused, Origin: attendance.OriginDerived}},
			Version: 1,
		}
		require.NoError(t, store.PutSession(ctx, s))

		next := *s.Clone()
		next.Entries[0].Status = attendance.StatusLate
		next.Version = 2
		require.NoError(t, store.UpdateSession(ctx, next, 1))
		assert.ErrorIs(t, store.UpdateSession(ctx, next, 1), attendance.ErrStaleSession)

		got, err := store.GetSession(ctx, s.Key())
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusLate, got.Entries[0].Status)

		frozen := *next.Clone()
		at := time.Now().UTC().Truncate(time.Millisecond)
		frozen.Version, frozen.Finalized, frozen.FinalizedAt, frozen.FinalizedBy = 3, true, &at, "staff"
		d := testutil.Date(t, "2024-05-21")
		batch := []notification.SchoolNotification{
			notification.NewAbsenceAlert(uuid.New().String(), roster.Student{ID: "S2", ParentID: "P2", Name: "Bob"}, "5B", "5B", d, at),
			notification.NewAbsenceAlert(uuid.New().String(), roster.Student{ID: "S3", Name: "Carol"}, "5B", "5B", d, at),
		}

		// a stale commit rolls back the finalization row too
		assert.ErrorIs(t, ledger.CommitSession(ctx, frozen, 1, batch), attendance.ErrStaleSession)
		_, err = ledger.GetCommittedSession(ctx, s.Key())
		require.ErrorIs(t, err, attendance.ErrSessionNotFound)

		require.NoError(t, ledger.CommitSession(ctx, frozen, 2, batch))
		assert.ErrorIs(t, ledger.CommitSession(ctx, frozen, 3, batch), attendance.ErrAlreadyFinalized)

		committed, err := ledger.GetCommittedSession(ctx, s.Key())
		require.NoError(t, err)
		assert.True(t, committed.Finalized)
		assert.Equal(t, frozen.Entries, committed.Entries)

		working, err := store.GetSession(ctx, s.Key())
		require.NoError(t, err)
		assert.True(t, working.Finalized)
		assert.Equal(t, 3, working.Version)

		notifs := sqlxrepos.NewNotificationRepository(db)
		inbox, err := notifs.QueryNotifications(ctx, "P2")
		require.NoError(t, err)
		assert.Equal(t, batch[:1], inbox)

		unresolved, err := notifs.QueryNotifications(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, batch[1:], unresolved)
	})
}
