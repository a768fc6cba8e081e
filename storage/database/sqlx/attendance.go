package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
)

type sessionRow struct {
	ClassID     string         `db:"class_id"`
	Date        core.Date      `db:"date"`
	Entries     types.JSONText `db:"entries"`
	Version     int            `db:"version"`
	Finalized   bool           `db:"finalized"`
	FinalizedAt null.Time      `db:"finalized_at"`
	FinalizedBy null.String    `db:"finalized_by"`
}

func newSessionRow(s attendance.Session) (sessionRow, error) {
	entries, err := json.Marshal(s.Entries)
	if err != nil {
		return sessionRow{}, errors.Wrap(err, "encoding entries")
	}
	return sessionRow{
		ClassID:     s.ClassID,
		Date:        s.Date,
		Entries:     entries,
		Version:     s.Version,
		Finalized:   s.Finalized,
		FinalizedAt: null.TimeFromPtr(s.FinalizedAt),
		FinalizedBy: null.NewString(s.FinalizedBy, s.FinalizedBy != ""),
	}, nil
}

func (r sessionRow) session() (attendance.Session, error) {
	s := attendance.Session{
		ClassID:     r.ClassID,
		Date:        r.Date,
		Entries:     make([]attendance.Entry, 0),
		Version:     r.Version,
		Finalized:   r.Finalized,
		FinalizedBy: r.FinalizedBy.String,
	}
	if err := r.Entries.Unmarshal(&s.Entries); err != nil {
		return attendance.Session{}, errors.Wrap(err, "decoding entries")
	}
	if r.FinalizedAt.Valid {
		at := r.FinalizedAt.Time.UTC()
		s.FinalizedAt = &at
	}
	return s, nil
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ attendance.SessionStore = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) attendance.SessionStore {
	return &sessionRepository{db: db}
}

const sessionColumns = `class_id, date, entries, version, finalized, finalized_at, finalized_by`

func (repo *sessionRepository) GetSession(ctx context.Context, key attendance.Key) (attendance.Session, error) {
	return getSession(ctx, repo.db, key)
}

func getSession(ctx context.Context, q sqlx.QueryerContext, key attendance.Key) (attendance.Session, error) {
	var row sessionRow
	query := `SELECT ` + sessionColumns + ` FROM attendance_sessions WHERE class_id = $1 AND date = $2`
	if err := sqlx.GetContext(ctx, q, &row, query, key.ClassID, key.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, errors.Wrap(err, "selecting session")
	}
	return row.session()
}

func (repo *sessionRepository) PutSession(ctx context.Context, s attendance.Session) error {
	row, err := newSessionRow(s)
	if err != nil {
		return err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO attendance_sessions (`+sessionColumns+`)
		VALUES (:class_id, :date, :entries, :version, :finalized, :finalized_at, :finalized_by)
		ON CONFLICT (class_id, date) DO UPDATE SET
			entries = EXCLUDED.entries, version = EXCLUDED.version, finalized = EXCLUDED.finalized,
			finalized_at = EXCLUDED.finalized_at, finalized_by = EXCLUDED.finalized_by`,
		row,
	)
	return errors.Wrap(err, "upserting session")
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, s attendance.Session, prevVersion int) error {
	return updateSession(ctx, repo.db, s, prevVersion)
}

// updateSession replaces the working session only if its stored version is prevVersion.
func updateSession(ctx context.Context, ext sqlx.ExtContext, s attendance.Session, prevVersion int) error {
	row, err := newSessionRow(s)
	if err != nil {
		return err
	}
	res, err := ext.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET entries = $1, version = $2, finalized = $3, finalized_at = $4, finalized_by = $5
		WHERE class_id = $6 AND date = $7 AND version = $8`,
		row.Entries, row.Version, row.Finalized, row.FinalizedAt, row.FinalizedBy,
		row.ClassID, row.Date, prevVersion,
	)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err = getSession(ctx, ext, s.Key()); err != nil {
			return err
		}
		return attendance.ErrStaleSession
	}
	return nil
}

type ledgerRepository struct {
	db *sqlx.DB
}

var _ attendance.Ledger = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *sqlx.DB) attendance.Ledger {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) CommitSession(ctx context.Context, s attendance.Session, prevVersion int, batch []notification.SchoolNotification) error {
	row, err := newSessionRow(s)
	if err != nil {
		return err
	}
	finalizedAt := time.Now().UTC()
	if s.FinalizedAt != nil {
		finalizedAt = *s.FinalizedAt
	}

	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// the primary key keeps a single finalization per (class, date), even across instances
		res, err := tx.ExecContext(ctx, `
			INSERT INTO attendance_finalizations (class_id, date, entries, version, finalized_at, finalized_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (class_id, date) DO NOTHING`,
			row.ClassID, row.Date, row.Entries, row.Version, finalizedAt, s.FinalizedBy,
		)
		if err != nil {
			return errors.Wrap(err, "inserting finalization")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return attendance.ErrAlreadyFinalized
		}

		// marks racing the finalization either land before this update (stale) or fail after it
		if err = updateSession(ctx, tx, s, prevVersion); err != nil {
			return err
		}
		return insertNotifications(ctx, tx, batch)
	})
}

func (repo *ledgerRepository) GetCommittedSession(ctx context.Context, key attendance.Key) (attendance.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT class_id, date, entries, version, TRUE AS finalized, finalized_at, finalized_by
		FROM attendance_finalizations WHERE class_id = $1 AND date = $2`,
		key.ClassID, key.Date,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, errors.Wrap(err, "selecting finalization")
	}
	return row.session()
}
