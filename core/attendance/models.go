package attendance

import (
	"strings"
	"time"

	"github.com/trezcool/mahudhurio/core"
)

type Status string

const (
	StatusPresent   Status = "PRESENT"
	StatusLate      Status = "LATE"
	StatusExcused   Status = "EXCUSED"
	StatusUnexcused Status = "UNEXCUSED"
)

var Statuses = []Status{StatusPresent, StatusLate, StatusExcused, StatusUnexcused}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusExcused, StatusUnexcused:
		return true
	}
	return false
}

// ParseStatus is case-insensitive.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(core.CleanString(s)))
	return st, st.Valid()
}

// Origin tells whether an entry's status was derived from the roster & leave requests, or set by staff.
type Origin string

const (
	OriginDerived    Origin = "DERIVED"
	OriginOverridden Origin = "OVERRIDDEN"
)

type Entry struct {
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name"`
	Status      Status     `json:"status"`
	Origin      Origin     `json:"origin"`
	MarkedBy    string     `json:"marked_by,omitempty"`
	MarkedAt    *time.Time `json:"marked_at,omitempty"` // UTC
}

// Session is the working attendance of one class on one date.
// Entries keep the roster order. Version increases with every mark.
type Session struct {
	ClassID     string     `json:"class_id"`
	Date        core.Date  `json:"date"`
	Entries     []Entry    `json:"entries"`
	Version     int        `json:"version"`
	Finalized   bool       `json:"finalized"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"` // UTC
	FinalizedBy string     `json:"finalized_by,omitempty"`
}

// Key identifies a Session.
type Key struct {
	ClassID string
	Date    core.Date
}

func (k Key) String() string { return k.ClassID + "@" + k.Date.String() }

func (s *Session) Key() Key { return Key{ClassID: s.ClassID, Date: s.Date} }

// Entry returns the entry of studentID.
func (s *Session) Entry(studentID string) (Entry, bool) {
	if i := s.indexOf(studentID); i >= 0 {
		return s.Entries[i], true
	}
	return Entry{}, false
}

func (s *Session) indexOf(studentID string) int {
	for i, e := range s.Entries {
		if e.StudentID == studentID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		if e.MarkedAt != nil {
			at := *e.MarkedAt
			e.MarkedAt = &at
		}
		c.Entries[i] = e
	}
	if s.FinalizedAt != nil {
		at := *s.FinalizedAt
		c.FinalizedAt = &at
	}
	return &c
}

type Summary struct {
	Total     int `json:"total"`
	Present   int `json:"present"`
	Late      int `json:"late"`
	Excused   int `json:"excused"`
	Unexcused int `json:"unexcused"`
}
