package notification

import (
	"fmt"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
)

type Channel string

const ChannelPush Channel = "push"

type Status string

const StatusDelivered Status = "delivered"

// SchoolNotification is a guardian alert. Once created it is never modified.
type SchoolNotification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"` // empty when the student has no linked guardian
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	ClassID     string    `json:"class_id"`
	Date        core.Date `json:"date"`
	Message     string    `json:"message"`
	Channel     Channel   `json:"channel"`
	Timestamp   time.Time `json:"timestamp"` // UTC
	Status      Status    `json:"status"`
}

// Unresolved reports whether the alert has no recipient.
func (n SchoolNotification) Unresolved() bool { return n.RecipientID == "" }

// AbsenceMessage is the alert text for an unexcused absence.
func AbsenceMessage(studentName, classLabel string, date core.Date) string {
	return fmt.Sprintf(
		"Attendance alert: %s was marked absent without an approved leave in %s on %s.",
		studentName, classLabel, date,
	)
}

// NewAbsenceAlert builds the alert sent to a student's guardian for an unexcused absence.
func NewAbsenceAlert(id string, student roster.Student, classID, classLabel string, date core.Date, at time.Time) SchoolNotification {
	return SchoolNotification{
		ID:          id,
		RecipientID: student.ParentID,
		StudentID:   student.ID,
		StudentName: student.Name,
		ClassID:     classID,
		Date:        date,
		Message:     AbsenceMessage(student.Name, classLabel, date),
		Channel:     ChannelPush,
		Timestamp:   at.UTC(),
		Status:      StatusDelivered,
	}
}
