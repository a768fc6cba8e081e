package dummydb

import (
	"context"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/leave"
)

type leaveRepository struct {
	db *leaveTable
}

var _ leave.Repository = (*leaveRepository)(nil) // interface compliance check

func NewLeaveRepository(db *DB) leave.Repository {
	return &leaveRepository{db: db.leave}
}

func (repo *leaveRepository) CreateLeaveRequest(_ context.Context, req leave.Request) (leave.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[req.ID] = &req
	repo.db.order = append(repo.db.order, req.ID)
	return req, nil
}

func (repo *leaveRepository) GetLeaveRequest(_ context.Context, id string) (leave.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if req, ok := repo.db.table[id]; ok {
		return *req, nil
	}
	return leave.Request{}, leave.ErrNotFound
}

func (repo *leaveRepository) QueryLeaveRequests(_ context.Context, filter leave.QueryFilter) ([]leave.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]leave.Request, 0)
	for _, id := range repo.db.order {
		if req := repo.db.table[id]; filter.Match(*req) {
			reqs = append(reqs, *req)
		}
	}
	return reqs, nil
}

func (repo *leaveRepository) DecideLeaveRequest(_ context.Context, req leave.Request) (leave.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[req.ID]
	if !ok {
		return leave.Request{}, leave.ErrNotFound
	}
	if !orig.IsPending() {
		return leave.Request{}, leave.ErrNotPending
	}
	if orig.Version != req.Version-1 {
		return leave.Request{}, leave.ErrVersionConflict
	}

	// only the decision fields may change
	orig.Status = req.Status
	orig.DecidedAt = req.DecidedAt
	orig.DecidedBy = req.DecidedBy
	orig.Version = req.Version
	return *orig, nil
}

func (repo *leaveRepository) HasApprovedLeave(_ context.Context, studentID string, d core.Date) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, req := range repo.db.table {
		if req.Excuses(studentID, d) {
			return true, nil
		}
	}
	return false, nil
}
