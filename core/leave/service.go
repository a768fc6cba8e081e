package leave

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	// errors
	ErrNotFound = errors.WithMessage(core.ErrNotFound, "leave request")
	// ErrNotPending is returned when deciding on an already decided request.
	ErrNotPending = errors.WithMessage(core.ErrInvalidState, "leave request already decided")
	// ErrVersionConflict is returned when the request changed since it was read.
	ErrVersionConflict = errors.WithMessage(core.ErrInvalidState, "leave request was modified concurrently")
)

type (
	Repository interface {
		CreateLeaveRequest(ctx context.Context, req Request) (Request, error)
		GetLeaveRequest(ctx context.Context, id string) (Request, error)
		// QueryLeaveRequests applies AND operation on available QueryFilter fields, oldest submissions first.
		QueryLeaveRequests(ctx context.Context, filter QueryFilter) ([]Request, error)
		// DecideLeaveRequest stores req's decision only if the stored request is still PENDING
		// at version req.Version-1. It returns ErrNotPending or ErrVersionConflict otherwise.
		DecideLeaveRequest(ctx context.Context, req Request) (Request, error)
		// HasApprovedLeave reports whether an APPROVED request of the student covers date d.
		HasApprovedLeave(ctx context.Context, studentID string, d core.Date) (bool, error)
	}

	Service struct {
		repo       Repository
		students   roster.Repository
		validate   *validator.Validate
		translator ut.Translator
		now        func() time.Time
	}
)

func NewService(repo Repository, students roster.Repository, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{
		repo:       repo,
		students:   students,
		validate:   validate,
		translator: translator,
		now:        time.Now,
	}
}

// Submit records a new PENDING request made by a guardian for one of their students.
func (svc *Service) Submit(ctx context.Context, nr NewRequest) (Request, error) {
	nr.Clean()
	if err := core.ValidateStruct(svc.validate, svc.translator, nr); err != nil {
		return Request{}, err
	}

	student, err := svc.students.GetStudent(ctx, nr.StudentID)
	if err != nil {
		if !core.IsNotFound(err) {
			return Request{}, errors.Wrap(err, "finding student")
		}
		return Request{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: notLinkedText})
	}
	if student.ParentID != nr.ParentID {
		return Request{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: notLinkedText})
	}

	req := Request{
		ID:          uuid.New().String(),
		StudentID:   student.ID,
		StudentName: student.Name,
		ParentID:    nr.ParentID,
		StartDate:   nr.StartDate,
		EndDate:     nr.EndDate,
		Reason:      nr.Reason,
		Status:      StatusPending,
		SubmittedAt: svc.now().UTC(),
		Version:     1,
	}
	return svc.repo.CreateLeaveRequest(ctx, req)
}

// Decide approves or rejects a PENDING request. Only staff may decide.
func (svc *Service) Decide(ctx context.Context, actor user.User, id string, decision Decision) (Request, error) {
	if !actor.IsStaff() {
		return Request{}, core.ErrPermissionDenied
	}
	status, ok := decision.Status()
	if !ok {
		return Request{}, core.NewValidationError(nil, core.FieldError{Field: "decision", Error: decisionText})
	}

	req, err := svc.repo.GetLeaveRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !req.IsPending() {
		return Request{}, ErrNotPending
	}

	decidedAt := svc.now().UTC()
	req.Status = status
	req.DecidedAt = &decidedAt
	req.DecidedBy = actor.ID
	req.Version++
	return svc.repo.DecideLeaveRequest(ctx, req)
}

// IsExcused reports whether at least one APPROVED request covers the student on date d (both ends inclusive).
func (svc *Service) IsExcused(ctx context.Context, studentID string, d core.Date) (bool, error) {
	return svc.repo.HasApprovedLeave(ctx, studentID, d)
}

func (svc *Service) Get(ctx context.Context, id string) (Request, error) {
	return svc.repo.GetLeaveRequest(ctx, id)
}

// Retrieve returns a request visible to actor: staff see every request, guardians only their own.
func (svc *Service) Retrieve(ctx context.Context, actor user.User, id string) (Request, error) {
	if !actor.IsStaff() && !actor.IsParent() {
		return Request{}, core.ErrPermissionDenied
	}
	req, err := svc.repo.GetLeaveRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !actor.IsStaff() && req.ParentID != actor.ID {
		return Request{}, core.ErrPermissionDenied
	}
	return req, nil
}

// Query lists requests visible to actor: staff see every request, guardians only their own.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter) ([]Request, error) {
	filter.Clean()
	if !actor.IsStaff() {
		if !actor.IsParent() {
			return nil, core.ErrPermissionDenied
		}
		filter.ParentID = actor.ID
	}
	return svc.repo.QueryLeaveRequests(ctx, filter)
}
