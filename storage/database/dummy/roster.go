package dummydb

import (
	"context"

	"github.com/trezcool/mahudhurio/core/roster"
)

type rosterRepository struct {
	db *rosterTable
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db.roster}
}

func (repo *rosterRepository) GetStudent(_ context.Context, id string) (roster.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if st, ok := repo.db.students[id]; ok {
		return *st, nil
	}
	return roster.Student{}, roster.ErrStudentNotFound
}

func (repo *rosterRepository) QueryClassStudents(_ context.Context, classID string) ([]roster.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]roster.Student, 0)
	for _, id := range repo.db.order {
		if st := repo.db.students[id]; st.ClassID == classID {
			students = append(students, *st)
		}
	}
	return students, nil
}

func (repo *rosterRepository) GetGuardian(_ context.Context, id string) (roster.Guardian, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.guardians[id]; ok {
		return *g, nil
	}
	return roster.Guardian{}, roster.ErrGuardianNotFound
}

func (repo *rosterRepository) SaveRoster(_ context.Context, imp roster.Import) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, g := range imp.Guardians {
		g := g
		repo.db.guardians[g.ID] = &g
	}
	for _, st := range imp.Students {
		st := st
		if _, exists := repo.db.students[st.ID]; !exists {
			repo.db.order = append(repo.db.order, st.ID)
		}
		repo.db.students[st.ID] = &st
	}
	return nil
}
