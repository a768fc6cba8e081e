package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/storage/database/dummy"
	"github.com/trezcool/mahudhurio/tests"
)

type fanoutFunc func(ctx context.Context, batch []notification.SchoolNotification) error

func (f fanoutFunc) Fanout(ctx context.Context, batch []notification.SchoolNotification) error {
	return f(ctx, batch)
}

func alerts(t *testing.T) []notification.SchoolNotification {
	d := testutil.Date(t, "2024-05-21")
	at := time.Date(2024, time.May, 21, 16, 0, 0, 0, time.UTC)
	return []notification.SchoolNotification{
		notification.NewAbsenceAlert("n1", roster.Student{ID: "S2", ParentID: "P2", Name: "Bob"}, "5B", "Grade 5 - B", d, at),
		notification.NewAbsenceAlert("n2", roster.Student{ID: "S3", Name: "Carol"}, "5B", "Grade 5 - B", d, at),
	}
}

func TestNewAbsenceAlert(t *testing.T) {
	n := alerts(t)[0]
	assert.Equal(t, "P2", n.RecipientID)
	assert.Equal(t, "Attendance alert: Bob was marked absent without an approved leave in Grade 5 - B on 2024-05-21.", n.Message)
	assert.Equal(t, notification.ChannelPush, n.Channel)
	assert.Equal(t, notification.StatusDelivered, n.Status)
	assert.False(t, n.Unresolved())
	assert.True(t, alerts(t)[1].Unresolved())
}

// commitAlerts stores batch the way a finalization does.
func commitAlerts(t *testing.T, db *dummydb.DB, batch []notification.SchoolNotification) {
	t.Helper()
	ctx := context.Background()
	s := attendance.Session{ClassID: "5B", Date: testutil.Date(t, "2024-05-21"), Version: 1}
	require.NoError(t, dummydb.NewSessionRepository(db).PutSession(ctx, s))

	frozen := s.Clone()
	frozen.Version, frozen.Finalized = 2, true
	require.NoError(t, dummydb.NewLedgerRepository(db).CommitSession(ctx, *frozen, s.Version, batch))
}

func TestService_Publish(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	logger := testutil.NewLogger()

	var fannedOut []notification.SchoolNotification
	ok := fanoutFunc(func(_ context.Context, batch []notification.SchoolNotification) error {
		fannedOut = append(fannedOut, batch...)
		return nil
	})
	broken := fanoutFunc(func(context.Context, []notification.SchoolNotification) error {
		return errors.New("connection refused")
	})
	svc := notification.NewService(dummydb.NewNotificationRepository(db), logger, broken, ok)

	batch := alerts(t)
	svc.Publish(context.Background(), batch)
	assert.Equal(t, batch, fannedOut, "a failing fanout does not stop the others")
	assert.Equal(t, 1, logger.Count("error"))
}

func TestService_Publish_emptyBatch(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	called := false
	f := fanoutFunc(func(context.Context, []notification.SchoolNotification) error {
		called = true
		return nil
	})
	svc := notification.NewService(dummydb.NewNotificationRepository(db), testutil.NewLogger(), f)

	svc.Publish(context.Background(), nil)
	assert.False(t, called)
}

func TestService_Inbox(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	ctx := context.Background()
	svc := notification.NewService(dummydb.NewNotificationRepository(db), testutil.NewLogger())

	batch := alerts(t)
	commitAlerts(t, db, batch)

	inbox, err := svc.Inbox(ctx, testutil.Parent("P2"))
	require.NoError(t, err)
	assert.Equal(t, batch[:1], inbox)

	inbox, err = svc.Inbox(ctx, testutil.Parent("P1"))
	require.NoError(t, err)
	assert.Empty(t, inbox)

	unresolved, err := svc.Unresolved(ctx, testutil.Teacher)
	require.NoError(t, err)
	assert.Equal(t, batch[1:], unresolved)

	_, err = svc.Unresolved(ctx, testutil.Parent("P2"))
	assert.True(t, core.IsPermissionDenied(err))

	_, err = svc.Inbox(ctx, user.User{})
	assert.True(t, core.IsPermissionDenied(err))
}
