package leave

import (
	"strings"
	"time"

	"github.com/trezcool/mahudhurio/core"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Status returns the terminal status a decision leads to.
func (d Decision) Status() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}

// Request is a guardian's request to excuse a student for an inclusive date range.
// Its Status moves at most once, from PENDING to APPROVED or REJECTED.
type Request struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name"` // snapshot at submission time
	ParentID    string     `json:"parent_id"`
	StartDate   core.Date  `json:"start_date"`
	EndDate     core.Date  `json:"end_date"`
	Reason      string     `json:"reason"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"` // UTC
	DecidedAt   *time.Time `json:"decided_at"`   // UTC
	DecidedBy   string     `json:"decided_by,omitempty"`
	Version     int        `json:"version"`
}

func (r Request) IsPending() bool { return r.Status == StatusPending }

// Excuses reports whether r is approved and covers the student on date d.
func (r Request) Excuses(studentID string, d core.Date) bool {
	return r.Status == StatusApproved && r.StudentID == studentID && d.Within(r.StartDate, r.EndDate)
}

// NewRequest contains information needed to submit a leave Request.
type NewRequest struct {
	StudentID string    `json:"student_id" validate:"notblank"`
	ParentID  string    `json:"parent_id" validate:"notblank"`
	StartDate core.Date `json:"start_date" validate:"required"`
	EndDate   core.Date `json:"end_date" validate:"required"`
	Reason    string    `json:"reason" validate:"notblank"`
}

func (nr *NewRequest) Clean() {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.ParentID = core.CleanString(nr.ParentID)
	nr.Reason = core.CleanString(nr.Reason)
}

// DecisionRequest is a staff decision on a PENDING request.
type DecisionRequest struct {
	Decision Decision `json:"decision" validate:"decision"`
}

func (dr *DecisionRequest) Clean() {
	dr.Decision = Decision(strings.ToUpper(core.CleanString(string(dr.Decision))))
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	ParentID  string `query:"parent_id"`
	Status    Status `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.ParentID = core.CleanString(qf.ParentID)
	qf.Status = Status(strings.ToUpper(core.CleanString(string(qf.Status))))
}

// Match reports whether r satisfies every set field of qf.
func (qf QueryFilter) Match(r Request) bool {
	if qf.StudentID != "" && r.StudentID != qf.StudentID {
		return false
	}
	if qf.ParentID != "" && r.ParentID != qf.ParentID {
		return false
	}
	if qf.Status != "" && r.Status != qf.Status {
		return false
	}
	return true
}
