package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/leave"
)

type (
	leaveRepository struct {
		db *sqlx.DB
	}

	leaveRow struct {
		ID          string      `db:"id"`
		StudentID   string      `db:"student_id"`
		StudentName string      `db:"student_name"`
		ParentID    string      `db:"parent_id"`
		StartDate   core.Date   `db:"start_date"`
		EndDate     core.Date   `db:"end_date"`
		Reason      string      `db:"reason"`
		Status      string      `db:"status"`
		SubmittedAt time.Time   `db:"submitted_at"`
		DecidedAt   null.Time   `db:"decided_at"`
		DecidedBy   null.String `db:"decided_by"`
		Version     int         `db:"version"`
	}
)

var _ leave.Repository = (*leaveRepository)(nil) // interface compliance check

func NewLeaveRepository(db *sqlx.DB) leave.Repository {
	return &leaveRepository{db: db}
}

func newLeaveRow(req leave.Request) leaveRow {
	return leaveRow{
		ID:          req.ID,
		StudentID:   req.StudentID,
		StudentName: req.StudentName,
		ParentID:    req.ParentID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Reason:      req.Reason,
		Status:      string(req.Status),
		SubmittedAt: req.SubmittedAt,
		DecidedAt:   null.TimeFromPtr(req.DecidedAt),
		DecidedBy:   null.NewString(req.DecidedBy, req.DecidedBy != ""),
		Version:     req.Version,
	}
}

func (r leaveRow) request() leave.Request {
	req := leave.Request{
		ID:          r.ID,
		StudentID:   r.StudentID,
		StudentName: r.StudentName,
		ParentID:    r.ParentID,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Reason:      r.Reason,
		Status:      leave.Status(r.Status),
		SubmittedAt: r.SubmittedAt.UTC(),
		DecidedBy:   r.DecidedBy.String,
		Version:     r.Version,
	}
	if r.DecidedAt.Valid {
		at := r.DecidedAt.Time.UTC()
		req.DecidedAt = &at
	}
	return req
}

const leaveColumns = `id, student_id, student_name, parent_id, start_date, end_date, reason, status,
	submitted_at, decided_at, decided_by, version`

func (repo *leaveRepository) CreateLeaveRequest(ctx context.Context, req leave.Request) (leave.Request, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO leave_requests (`+leaveColumns+`)
		VALUES (:id, :student_id, :student_name, :parent_id, :start_date, :end_date, :reason, :status,
			:submitted_at, :decided_at, :decided_by, :version)`,
		newLeaveRow(req),
	)
	if err != nil {
		return leave.Request{}, errors.Wrap(err, "inserting leave request")
	}
	return req, nil
}

func (repo *leaveRepository) GetLeaveRequest(ctx context.Context, id string) (leave.Request, error) {
	return getLeaveRequest(ctx, repo.db, id)
}

func getLeaveRequest(ctx context.Context, q sqlx.QueryerContext, id string) (leave.Request, error) {
	var row leaveRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+leaveColumns+` FROM leave_requests WHERE id::text = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return leave.Request{}, leave.ErrNotFound
		}
		return leave.Request{}, errors.Wrap(err, "selecting leave request")
	}
	return row.request(), nil
}

func (repo *leaveRepository) QueryLeaveRequests(ctx context.Context, filter leave.QueryFilter) ([]leave.Request, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if filter.StudentID != "" {
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.ParentID != "" {
		where = append(where, "parent_id = ?")
		args = append(args, filter.ParentID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	q := `SELECT ` + leaveColumns + ` FROM leave_requests`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY seq`

	var rows []leaveRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting leave requests")
	}
	reqs := make([]leave.Request, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, row.request())
	}
	return reqs, nil
}

func (repo *leaveRepository) DecideLeaveRequest(ctx context.Context, req leave.Request) (leave.Request, error) {
	var decided leave.Request
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE leave_requests SET status = $1, decided_at = $2, decided_by = $3, version = $4
			WHERE id::text = $5 AND status = $6 AND version = $7`,
			string(req.Status), null.TimeFromPtr(req.DecidedAt), null.StringFrom(req.DecidedBy), req.Version,
			req.ID, string(leave.StatusPending), req.Version-1,
		)
		if err != nil {
			return errors.Wrap(err, "updating leave request")
		}

		// the stored row tells why nothing was updated
		stored, err := getLeaveRequest(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if !stored.IsPending() {
				return leave.ErrNotPending
			}
			return leave.ErrVersionConflict
		}
		decided = stored
		return nil
	})
	if err != nil {
		return leave.Request{}, err
	}
	return decided, nil
}

func (repo *leaveRepository) HasApprovedLeave(ctx context.Context, studentID string, d core.Date) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM leave_requests
			WHERE student_id = $1 AND status = $2 AND start_date <= $3 AND end_date >= $3
		)`,
		studentID, string(leave.StatusApproved), d,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking approved leave")
	}
	return exists, nil
}
