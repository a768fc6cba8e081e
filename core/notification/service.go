package notification

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

type (
	// Repository reads the stored alerts. Batches are stored together with their finalization.
	Repository interface {
		// QueryNotifications returns the recipient's inbox, oldest first.
		QueryNotifications(ctx context.Context, recipientID string) ([]SchoolNotification, error)
	}

	// Fanout forwards alerts to an outer delivery channel (push queue, email...).
	Fanout interface {
		Fanout(ctx context.Context, batch []SchoolNotification) error
	}

	// Service is the recipient-keyed notification feed.
	Service struct {
		repo    Repository
		fanouts []Fanout
		logger  core.Logger
	}
)

func NewService(repo Repository, logger core.Logger, fanouts ...Fanout) *Service {
	return &Service{repo: repo, fanouts: fanouts, logger: logger}
}

// Publish forwards a stored batch to every fanout.
// Fanout failures are logged and do not stop the others.
func (svc *Service) Publish(ctx context.Context, batch []SchoolNotification) {
	if len(batch) == 0 {
		return
	}
	for _, f := range svc.fanouts {
		if err := f.Fanout(ctx, batch); err != nil {
			svc.logger.Error(fmt.Sprintf("fanning out notifications: %v", err), err)
		}
	}
}

// Inbox returns the notifications addressed to actor.
func (svc *Service) Inbox(ctx context.Context, actor user.User) ([]SchoolNotification, error) {
	if actor.ID == "" {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryNotifications(ctx, actor.ID)
}

// Unresolved returns the alerts that could not be addressed to any guardian. Staff only.
func (svc *Service) Unresolved(ctx context.Context, actor user.User) ([]SchoolNotification, error) {
	if !actor.IsStaff() {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryNotifications(ctx, "")
}
