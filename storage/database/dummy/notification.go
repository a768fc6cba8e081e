package dummydb

import (
	"context"

	"github.com/trezcool/mahudhurio/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, recipientID string) ([]notification.SchoolNotification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	inbox := make([]notification.SchoolNotification, 0)
	for _, n := range repo.db.table {
		if n.RecipientID == recipientID {
			inbox = append(inbox, n)
		}
	}
	return inbox, nil
}
