package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
)

const classSelect = `SELECT c.id, c.teacher_id, c.classroom_id, c.period, c.date, c.attended,
		r.id AS "room.id", r.grade_letter AS "room.grade_letter", r.class_number AS "room.class_number",
		r.building_name AS "room.building_name", r.floor_number AS "room.floor_number"
	FROM scheduled_class c
	JOIN classroom r ON r.id = c.classroom_id`

// classOrderings whitelists the columns QueryClasses may sort on.
var classOrderings = map[string]string{
	"id":     "c.id",
	"date":   "c.date",
	"period": "c.period",
}

type classRow struct {
	ID          int          `db:"id"`
	TeacherID   int          `db:"teacher_id"`
	ClassroomID int          `db:"classroom_id"`
	Period      int          `db:"period"`
	Date        core.Date    `db:"date"`
	Attended    bool         `db:"attended"`
	Room        classroomRow `db:"room"`
}

func (row classRow) class() schedule.ScheduledClass {
	room := row.Room.classroom()
	return schedule.ScheduledClass{
		ID:          row.ID,
		TeacherID:   row.TeacherID,
		ClassroomID: row.ClassroomID,
		Period:      row.Period,
		Date:        row.Date,
		Attended:    row.Attended,
		Classroom:   &room,
	}
}

type classRepository struct {
	db sqlx.ExtContext
}

var (
	_ schedule.Repository = (*classRepository)(nil)
	_ ledger.ClassStore   = (*classRepository)(nil)
)

func NewClassRepository(db sqlx.ExtContext) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) get(ctx context.Context, query string, args ...interface{}) (schedule.ScheduledClass, error) {
	var row classRow
	if err := sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return schedule.ScheduledClass{}, trapNoRowsErr(err, schedule.ErrNotFound)
	}
	return row.class(), nil
}

func (repo *classRepository) CreateClass(ctx context.Context, c schedule.ScheduledClass) (schedule.ScheduledClass, error) {
	query := `INSERT INTO scheduled_class (teacher_id, classroom_id, period, date, attended)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := repo.db.QueryRowxContext(ctx, query, c.TeacherID, c.ClassroomID, c.Period, c.Date, c.Attended).Scan(&c.ID)
	if err != nil {
		if pqErrCode(err) == pqForeignKeyViolation {
			return schedule.ScheduledClass{}, errors.Wrap(classroom.ErrNotFound, err.Error())
		}
		return schedule.ScheduledClass{}, errors.Wrap(err, "inserting class")
	}
	return repo.GetClass(ctx, c.ID)
}

func (repo *classRepository) GetClass(ctx context.Context, id int) (schedule.ScheduledClass, error) {
	return repo.get(ctx, classSelect+` WHERE c.id = $1`, id)
}

func (repo *classRepository) GetClassForUpdate(ctx context.Context, id int) (schedule.ScheduledClass, error) {
	return repo.get(ctx, classSelect+` WHERE c.id = $1 FOR UPDATE OF c`, id)
}

func (repo *classRepository) SetAttended(ctx context.Context, id int, attended bool) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE scheduled_class SET attended = $2 WHERE id = $1`, id, attended)
	if err != nil {
		return errors.Wrap(err, "updating attended")
	}
	return checkAffected(res, schedule.ErrNotFound)
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter schedule.QueryFilter, orderings ...core.DBOrdering) ([]schedule.ScheduledClass, error) {
	var (
		where []string
		args  []interface{}
	)
	addCond := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.TeacherID != 0 {
		addCond("c.teacher_id = $%d", filter.TeacherID)
	}
	if !filter.Date.IsZero() {
		addCond("c.date = $%d", filter.Date)
	}
	if !filter.From.IsZero() {
		addCond("c.date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		addCond("c.date <= $%d", filter.To)
	}

	query := classSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + classOrderBy(orderings)

	var rows []classRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	classes := make([]schedule.ScheduledClass, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.class())
	}
	return classes, nil
}

func classOrderBy(orderings []core.DBOrdering) string {
	if len(orderings) == 0 {
		return "c.date ASC, c.period ASC, c.id ASC"
	}
	clauses := make([]string, 0, len(orderings)+1)
	for _, ord := range orderings {
		col, ok := classOrderings[ord.Field]
		if !ok {
			continue
		}
		dir := "DESC"
		if ord.Ascending {
			dir = "ASC"
		}
		clauses = append(clauses, col+" "+dir)
	}
	clauses = append(clauses, "c.id ASC")
	return strings.Join(clauses, ", ")
}

func (repo *classRepository) DeleteClass(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM scheduled_class WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return checkAffected(res, schedule.ErrNotFound)
}
