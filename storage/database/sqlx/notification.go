package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
)

type (
	notificationRepository struct {
		db *sqlx.DB
	}

	notificationRow struct {
		ID          string      `db:"id"`
		RecipientID null.String `db:"recipient_id"`
		StudentID   string      `db:"student_id"`
		StudentName string      `db:"student_name"`
		ClassID     string      `db:"class_id"`
		Date        core.Date   `db:"date"`
		Message     string      `db:"message"`
		Channel     string      `db:"channel"`
		Timestamp   time.Time   `db:"timestamp"`
		Status      string      `db:"status"`
	}
)

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (r notificationRow) notification() notification.SchoolNotification {
	return notification.SchoolNotification{
		ID:          r.ID,
		RecipientID: r.RecipientID.String,
		StudentID:   r.StudentID,
		StudentName: r.StudentName,
		ClassID:     r.ClassID,
		Date:        r.Date,
		Message:     r.Message,
		Channel:     notification.Channel(r.Channel),
		Timestamp:   r.Timestamp.UTC(),
		Status:      notification.Status(r.Status),
	}
}

const notificationColumns = `id, recipient_id, student_id, student_name, class_id, date, message, channel, timestamp, status`

// insertNotifications stores a batch within the finalization transaction.
func insertNotifications(ctx context.Context, tx *sqlx.Tx, batch []notification.SchoolNotification) error {
	for _, n := range batch {
		row := notificationRow{
			ID:          n.ID,
			RecipientID: null.NewString(n.RecipientID, !n.Unresolved()),
			StudentID:   n.StudentID,
			StudentName: n.StudentName,
			ClassID:     n.ClassID,
			Date:        n.Date,
			Message:     n.Message,
			Channel:     string(n.Channel),
			Timestamp:   n.Timestamp,
			Status:      string(n.Status),
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO notifications (`+notificationColumns+`)
			VALUES (:id, :recipient_id, :student_id, :student_name, :class_id, :date, :message, :channel,
				:timestamp, :status)`,
			row,
		)
		if err != nil {
			return errors.Wrapf(err, "inserting notification %s", n.ID)
		}
	}
	return nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, recipientID string) ([]notification.SchoolNotification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1 ORDER BY seq`
	args := []interface{}{recipientID}
	if recipientID == "" {
		q = `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id IS NULL ORDER BY seq`
		args = nil
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	inbox := make([]notification.SchoolNotification, 0, len(rows))
	for _, row := range rows {
		inbox = append(inbox, row.notification())
	}
	return inbox, nil
}
