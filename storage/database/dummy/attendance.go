package dummydb

import (
	"context"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
)

type sessionRepository struct {
	db *sessionTable
}

var _ attendance.SessionStore = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) attendance.SessionStore {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) GetSession(_ context.Context, key attendance.Key) (attendance.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[key]; ok {
		return *s.Clone(), nil
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (repo *sessionRepository) PutSession(_ context.Context, s attendance.Session) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[s.Key()] = s.Clone()
	return nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s attendance.Session, prevVersion int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[s.Key()]
	if !ok {
		return attendance.ErrSessionNotFound
	}
	if orig.Version != prevVersion {
		return attendance.ErrStaleSession
	}
	repo.db.table[s.Key()] = s.Clone()
	return nil
}

type ledgerRepository struct {
	db *DB
}

var _ attendance.Ledger = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) attendance.Ledger {
	return &ledgerRepository{db: db}
}

// CommitSession holds the ledger, session and notification locks, in that order, for the whole commit.
func (repo *ledgerRepository) CommitSession(_ context.Context, s attendance.Session, prevVersion int, batch []notification.SchoolNotification) error {
	ledger, sessions, notifications := repo.db.ledger, repo.db.session, repo.db.notification
	ledger.Lock()
	defer ledger.Unlock()
	sessions.Lock()
	defer sessions.Unlock()
	notifications.Lock()
	defer notifications.Unlock()

	if _, exists := ledger.table[s.Key()]; exists {
		return attendance.ErrAlreadyFinalized
	}
	working, ok := sessions.table[s.Key()]
	if !ok {
		return attendance.ErrSessionNotFound
	}
	if working.Version != prevVersion {
		return attendance.ErrStaleSession
	}

	sessions.table[s.Key()] = s.Clone()
	ledger.table[s.Key()] = s.Clone()
	notifications.table = append(notifications.table, batch...)
	return nil
}

func (repo *ledgerRepository) GetCommittedSession(_ context.Context, key attendance.Key) (attendance.Session, error) {
	repo.db.ledger.RLock()
	defer repo.db.ledger.RUnlock()

	if s, ok := repo.db.ledger.table[key]; ok {
		return *s.Clone(), nil
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}
