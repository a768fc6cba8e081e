package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
)

// Ledger records finalized sessions, at most one per (class, date).
type Ledger interface {
	// CommitSession atomically records the finalized session s with its notification batch and replaces the
	// working session of s.Key() with s, provided the working session is still at prevVersion.
	// It returns ErrAlreadyFinalized if the key was already committed, ErrStaleSession if the working session
	// changed since prevVersion and ErrSessionNotFound if there is none. Nothing is stored on failure.
	CommitSession(ctx context.Context, s Session, prevVersion int, batch []notification.SchoolNotification) error
	GetCommittedSession(ctx context.Context, key Key) (Session, error)
}

type Result struct {
	Session       *Session                          `json:"session"`
	Notifications []notification.SchoolNotification `json:"notifications"`
}

// Dispatcher freezes sessions and derives the guardian alerts for unexcused absences.
type Dispatcher struct {
	ledger Ledger
	logger core.Logger
	now    func() time.Time
	newID  func() string
}

func NewDispatcher(ledger Ledger, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Finalize freezes s and emits one alert per UNEXCUSED student, in roster order.
// A (class, date) can only be finalized once; s itself is never modified.
// The working session of s must still be stored at s.Version.
func (d *Dispatcher) Finalize(ctx context.Context, actor user.User, s *Session, students []roster.Student, classLabel string) (Result, error) {
	if !actor.IsStaff() {
		return Result{}, core.ErrPermissionDenied
	}
	if s.Finalized {
		return Result{}, ErrSessionFinalized
	}

	now := d.now().UTC()
	frozen := s.Clone()
	frozen.Version = s.Version + 1
	frozen.Finalized = true
	frozen.FinalizedAt = &now
	frozen.FinalizedBy = actor.ID

	batch := make([]notification.SchoolNotification, 0)
	onRoster := make(map[string]bool, len(students))
	for _, st := range students {
		onRoster[st.ID] = true
		entry, ok := frozen.Entry(st.ID)
		if !ok || entry.Status != StatusUnexcused {
			continue
		}
		n := notification.NewAbsenceAlert(d.newID(), st, frozen.ClassID, classLabel, frozen.Date, now)
		if n.Unresolved() {
			d.logger.Warn(fmt.Sprintf("student %s has no linked guardian: alert for %s is unaddressed", st.ID, frozen.Key()))
		}
		batch = append(batch, n)
	}

	for _, e := range frozen.Entries {
		if e.Status == StatusUnexcused && !onRoster[e.StudentID] {
			d.logger.Warn(fmt.Sprintf("student %s is no longer on the roster: no alert for %s", e.StudentID, frozen.Key()))
		}
	}

	if err := d.ledger.CommitSession(ctx, *frozen, s.Version, batch); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyFinalized), errors.Is(err, ErrStaleSession), errors.Is(err, ErrSessionNotFound):
			return Result{}, err
		default:
			return Result{}, errors.Wrap(err, "committing session")
		}
	}
	return Result{Session: frozen, Notifications: batch}, nil
}
