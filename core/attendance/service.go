package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
)

type (
	// SessionStore keeps the working sessions.
	SessionStore interface {
		GetSession(ctx context.Context, key Key) (Session, error)
		// PutSession creates or replaces the working session of s.Key().
		PutSession(ctx context.Context, s Session) error
		// UpdateSession replaces the working session only if its stored version is prevVersion.
		// It returns ErrStaleSession otherwise.
		UpdateSession(ctx context.Context, s Session, prevVersion int) error
	}

	// Feed forwards the stored notification batches of finalized sessions.
	Feed interface {
		Publish(ctx context.Context, batch []notification.SchoolNotification)
	}

	Service struct {
		store      SessionStore
		ledger     Ledger
		students   roster.Repository
		excuser    Excuser
		dispatcher *Dispatcher
		feed       Feed
		now        func() time.Time
	}
)

func NewService(
	store SessionStore,
	ledger Ledger,
	students roster.Repository,
	excuser Excuser,
	feed Feed,
	logger core.Logger,
) *Service {
	return &Service{
		store:      store,
		ledger:     ledger,
		students:   students,
		excuser:    excuser,
		dispatcher: NewDispatcher(ledger, logger),
		feed:       feed,
		now:        time.Now,
	}
}

// Open (re)builds the working session of a class on a date from the current roster and leave requests.
// Any unfinalized working session of the same key is replaced. Only staff may open sessions.
func (svc *Service) Open(ctx context.Context, actor user.User, key Key) (*Session, error) {
	if !actor.IsStaff() {
		return nil, core.ErrPermissionDenied
	}
	if err := svc.checkNotCommitted(ctx, key); err != nil {
		return nil, err
	}

	students, err := svc.students.QueryClassStudents(ctx, key.ClassID)
	if err != nil {
		return nil, errors.Wrap(err, "querying class students")
	}
	s, err := Build(ctx, students, svc.excuser, key.ClassID, key.Date)
	if err != nil {
		return nil, errors.Wrap(err, "building session")
	}

	// keep counting versions across rebuilds so that stale marks stay detectable
	s.Version = 1
	if prev, err := svc.store.GetSession(ctx, key); err == nil {
		s.Version = prev.Version + 1
	} else if !errors.Is(err, ErrSessionNotFound) {
		return nil, errors.Wrap(err, "getting session")
	}
	if err = svc.store.PutSession(ctx, *s); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return s, nil
}

// Get returns the committed session of key if finalized, its working session otherwise.
func (svc *Service) Get(ctx context.Context, key Key) (*Session, error) {
	if s, err := svc.ledger.GetCommittedSession(ctx, key); err == nil {
		return &s, nil
	} else if !errors.Is(err, ErrSessionNotFound) {
		return nil, errors.Wrap(err, "getting committed session")
	}
	s, err := svc.store.GetSession(ctx, key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Mark overrides a student's status in the working session of key.
// When expectedVersion is positive, it must match the current session version.
func (svc *Service) Mark(ctx context.Context, actor user.User, key Key, studentID string, status Status, expectedVersion int) (*Session, error) {
	if !actor.IsStaff() {
		return nil, core.ErrPermissionDenied
	}
	if err := svc.checkNotCommitted(ctx, key); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			return nil, ErrSessionFinalized
		}
		return nil, err
	}

	s, err := svc.store.GetSession(ctx, key)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && expectedVersion != s.Version {
		return nil, ErrStaleSession
	}

	next, err := Mark(actor, &s, studentID, status, svc.now())
	if err != nil {
		return nil, err
	}
	if err = svc.store.UpdateSession(ctx, *next, s.Version); err != nil {
		return nil, err
	}
	return next, nil
}

// Summary counts the statuses of the session of key.
func (svc *Service) Summary(ctx context.Context, key Key) (Summary, error) {
	s, err := svc.Get(ctx, key)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(s), nil
}

// Finalize freezes the working session of key and publishes the resulting alerts to the feed.
// When expectedVersion is positive, it must match the current session version.
// A mark racing the finalization makes it fail with ErrStaleSession, leaving nothing committed.
func (svc *Service) Finalize(ctx context.Context, actor user.User, key Key, classLabel string, expectedVersion int) (Result, error) {
	if !actor.IsStaff() {
		return Result{}, core.ErrPermissionDenied
	}
	if err := svc.checkNotCommitted(ctx, key); err != nil {
		return Result{}, err
	}
	s, err := svc.store.GetSession(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if expectedVersion > 0 && expectedVersion != s.Version {
		return Result{}, ErrStaleSession
	}
	if classLabel = core.CleanString(classLabel); classLabel == "" {
		classLabel = key.ClassID
	}

	students, err := svc.students.QueryClassStudents(ctx, key.ClassID)
	if err != nil {
		return Result{}, errors.Wrap(err, "querying class students")
	}
	res, err := svc.dispatcher.Finalize(ctx, actor, &s, students, classLabel)
	if err != nil {
		return Result{}, err
	}
	svc.feed.Publish(ctx, res.Notifications)
	return res, nil
}

func (svc *Service) checkNotCommitted(ctx context.Context, key Key) error {
	_, err := svc.ledger.GetCommittedSession(ctx, key)
	switch {
	case err == nil:
		return ErrAlreadyFinalized
	case errors.Is(err, ErrSessionNotFound):
		return nil
	default:
		return errors.Wrap(err, "getting committed session")
	}
}
