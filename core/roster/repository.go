package roster

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrStudentNotFound  = errors.WithMessage(core.ErrNotFound, "student")
	ErrGuardianNotFound = errors.WithMessage(core.ErrNotFound, "guardian")
)

type Repository interface {
	GetStudent(ctx context.Context, id string) (Student, error)
	// QueryClassStudents returns a class's students in a stable order.
	QueryClassStudents(ctx context.Context, classID string) ([]Student, error)
	GetGuardian(ctx context.Context, id string) (Guardian, error)
	// SaveRoster creates or replaces the guardians and students of imp.
	SaveRoster(ctx context.Context, imp Import) error
}
