package dummydb

import (
	"sync"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/leave"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
)

type (
	// DB is an in-memory database, used in DEV mode and tests.
	DB struct {
		roster       *rosterTable
		leave        *leaveTable
		session      *sessionTable
		ledger       *ledgerTable
		notification *notificationTable
	}

	rosterTable struct {
		sync.RWMutex
		students  map[string]*roster.Student
		order     []string // student ids, in insertion order
		guardians map[string]*roster.Guardian
	}

	leaveTable struct {
		sync.RWMutex
		table map[string]*leave.Request
		order []string
	}

	sessionTable struct {
		sync.RWMutex
		table map[attendance.Key]*attendance.Session
	}

	ledgerTable struct {
		sync.RWMutex
		table map[attendance.Key]*attendance.Session
	}

	notificationTable struct {
		sync.RWMutex
		table []notification.SchoolNotification
	}
)

func Open() (*DB, error) {
	db := &DB{
		roster: &rosterTable{
			students:  make(map[string]*roster.Student),
			guardians: make(map[string]*roster.Guardian),
		},
		leave:        &leaveTable{table: make(map[string]*leave.Request)},
		session:      &sessionTable{table: make(map[attendance.Key]*attendance.Session)},
		ledger:       &ledgerTable{table: make(map[attendance.Key]*attendance.Session)},
		notification: &notificationTable{},
	}
	return db, nil
}
