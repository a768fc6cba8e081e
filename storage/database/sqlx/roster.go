package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/roster"
)

type (
	rosterRepository struct {
		db *sqlx.DB
	}

	studentRow struct {
		ID       string      `db:"id"`
		ParentID null.String `db:"parent_id"`
		Name     string      `db:"name"`
		Grade    string      `db:"grade"`
		ClassID  string      `db:"class_id"`
	}
)

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *sqlx.DB) roster.Repository {
	return &rosterRepository{db: db}
}

func (r studentRow) student() roster.Student {
	return roster.Student{
		ID:       r.ID,
		ParentID: r.ParentID.String,
		Name:     r.Name,
		Grade:    r.Grade,
		ClassID:  r.ClassID,
	}
}

const studentColumns = `id, parent_id, name, grade, class_id`

func (repo *rosterRepository) GetStudent(ctx context.Context, id string) (roster.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return roster.Student{}, roster.ErrStudentNotFound
		}
		return roster.Student{}, errors.Wrap(err, "selecting student")
	}
	return row.student(), nil
}

func (repo *rosterRepository) QueryClassStudents(ctx context.Context, classID string) ([]roster.Student, error) {
	var rows []studentRow
	q := `SELECT ` + studentColumns + ` FROM students WHERE class_id = $1 ORDER BY seq`
	if err := repo.db.SelectContext(ctx, &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "selecting class students")
	}

	students := make([]roster.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo *rosterRepository) GetGuardian(ctx context.Context, id string) (roster.Guardian, error) {
	var g roster.Guardian
	if err := repo.db.GetContext(ctx, &g, `SELECT id, name, email FROM guardians WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return roster.Guardian{}, roster.ErrGuardianNotFound
		}
		return roster.Guardian{}, errors.Wrap(err, "selecting guardian")
	}
	return g, nil
}

func (repo *rosterRepository) SaveRoster(ctx context.Context, imp roster.Import) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, g := range imp.Guardians {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO guardians (id, name, email) VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`,
				g.ID, g.Name, g.Email,
			)
			if err != nil {
				return errors.Wrapf(err, "upserting guardian %s", g.ID)
			}
		}
		for _, st := range imp.Students {
			row := studentRow{
				ID:       st.ID,
				ParentID: null.NewString(st.ParentID, st.HasGuardian()),
				Name:     st.Name,
				Grade:    st.Grade,
				ClassID:  st.ClassID,
			}
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO students (id, parent_id, name, grade, class_id)
				VALUES (:id, :parent_id, :name, :grade, :class_id)
				ON CONFLICT (id) DO UPDATE SET
					parent_id = EXCLUDED.parent_id, name = EXCLUDED.name,
					grade = EXCLUDED.grade, class_id = EXCLUDED.class_id`,
				row,
			)
			if err != nil {
				return errors.Wrapf(err, "upserting student %s", st.ID)
			}
		}
		return nil
	})
}
