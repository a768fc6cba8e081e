package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	// errors
	ErrSessionNotFound     = errors.WithMessage(core.ErrNotFound, "attendance session")
	ErrStudentNotInSession = errors.WithMessage(core.ErrNotFound, "student not in session")
	ErrSessionFinalized    = errors.WithMessage(core.ErrInvalidState, "attendance session already finalized")
	ErrAlreadyFinalized    = errors.WithMessage(core.ErrInvalidState, "attendance already finalized for this class and date")
	ErrStaleSession        = errors.WithMessage(core.ErrInvalidState, "attendance session was modified concurrently")

	invalidStatusText = fmt.Sprintf("status must be one of %v", Statuses)
)

// Excuser tells whether a student is excused by an approved leave on a date.
type Excuser interface {
	IsExcused(ctx context.Context, studentID string, d core.Date) (bool, error)
}

// Build derives the default session of a class on a date: EXCUSED when an approved leave covers the
// student, PRESENT otherwise. It is a pure function of its inputs; roster order is kept.
func Build(ctx context.Context, students []roster.Student, excuser Excuser, classID string, date core.Date) (*Session, error) {
	s := &Session{
		ClassID: classID,
		Date:    date,
		Entries: make([]Entry, 0, len(students)),
	}
	for _, st := range students {
		excused, err := excuser.IsExcused(ctx, st.ID, date)
		if err != nil {
			return nil, errors.Wrapf(err, "checking leave of student %s", st.ID)
		}
		status := StatusPresent
		if excused {
			status = StatusExcused
		}
		s.Entries = append(s.Entries, Entry{
			StudentID:   st.ID,
			StudentName: st.Name,
			Status:      status,
			Origin:      OriginDerived,
		})
	}
	return s, nil
}

// Mark overrides a student's status, whatever it was derived to, and returns the updated session.
// s itself is never modified.
func Mark(actor user.User, s *Session, studentID string, status Status, at time.Time) (*Session, error) {
	if !actor.IsStaff() {
		return nil, core.ErrPermissionDenied
	}
	if !status.Valid() {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: invalidStatusText})
	}
	if s.Finalized {
		return nil, ErrSessionFinalized
	}
	i := s.indexOf(studentID)
	if i < 0 {
		return nil, ErrStudentNotInSession
	}

	at = at.UTC()
	next := s.Clone()
	next.Entries[i].Status = status
	next.Entries[i].Origin = OriginOverridden
	next.Entries[i].MarkedBy = actor.ID
	next.Entries[i].MarkedAt = &at
	next.Version++
	return next, nil
}

// Summarize counts the session's entries per status.
func Summarize(s *Session) Summary {
	sum := Summary{Total: len(s.Entries)}
	for _, e := range s.Entries {
		switch e.Status {
		case StatusPresent:
			sum.Present++
		case StatusLate:
			sum.Late++
		case StatusExcused:
			sum.Excused++
		case StatusUnexcused:
			sum.Unexcused++
		}
	}
	return sum
}
