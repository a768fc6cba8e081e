package notifier

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/services/email"
	"github.com/trezcool/mahudhurio/storage/database/dummy"
	"github.com/trezcool/mahudhurio/tests"
)

func batch(t *testing.T) []notification.SchoolNotification {
	d := testutil.Date(t, "2024-05-21")
	at := time.Now()
	return []notification.SchoolNotification{
		notification.NewAbsenceAlert("n1", roster.Student{ID: "S2", ParentID: "P2", Name: "Bob"}, "5B", "Grade 5 - B", d, at),
		notification.NewAbsenceAlert("n2", roster.Student{ID: "S3", Name: "Carol"}, "5B", "Grade 5 - B", d, at),
		notification.NewAbsenceAlert("n3", roster.Student{ID: "S4", ParentID: "P9", Name: "Dan"}, "5B", "Grade 5 - B", d, at),
	}
}

func TestMailer_Fanout(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	guardians := dummydb.NewRosterRepository(db)
	testutil.SeedRoster(t, guardians, testutil.AliceAndBob())

	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(logger, &core.Config{AppName: "Mahudhurio"})
	m := NewMailer(guardians, mailSvc, logger)

	require.NoError(t, m.Fanout(context.Background(), batch(t)))

	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "p2@test.cd", sent[0].To[0].Address)
	assert.Equal(t, "Attendance alert for Bob", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "Bob was marked absent")
	assert.Equal(t, 1, logger.Count("warn"), "unknown guardian P9")
}

func TestRedisPublisher_Fanout(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := NewRedisClient(addr)
	t.Cleanup(func() { _ = client.Close() })

	key := "mahudhurio:test:" + time.Now().Format("150405.000000")
	t.Cleanup(func() { client.Del(ctx, key) })
	p := NewRedisPublisher(client, key)
	require.True(t, p.Healthy(ctx))

	require.NoError(t, p.Fanout(ctx, batch(t)))

	items, err := client.LRange(ctx, key, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, items, 2, "unresolved alerts are not pushed")

	var n notification.SchoolNotification
	require.NoError(t, json.Unmarshal([]byte(items[1]), &n))
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, "P2", n.RecipientID)
}
