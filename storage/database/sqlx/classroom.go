package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/classroom"
)

const classroomColumns = `id, grade_letter, class_number, building_name, floor_number`

type classroomRow struct {
	ID           int         `db:"id"`
	GradeLetter  null.String `db:"grade_letter"`
	ClassNumber  null.Int    `db:"class_number"`
	BuildingName string      `db:"building_name"`
	FloorNumber  int         `db:"floor_number"`
}

func (row classroomRow) classroom() classroom.Classroom {
	return classroom.Classroom(row)
}

type classroomRepository struct {
	db sqlx.ExtContext
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db sqlx.ExtContext) *classroomRepository {
	return &classroomRepository{db: db}
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, c classroom.Classroom) (classroom.Classroom, error) {
	query := `INSERT INTO classroom (grade_letter, class_number, building_name, floor_number)
		VALUES ($1, $2, $3, $4) RETURNING id`
	err := repo.db.QueryRowxContext(ctx, query, c.GradeLetter, c.ClassNumber, c.BuildingName, c.FloorNumber).Scan(&c.ID)
	if err != nil {
		if pqErrCode(err) == pqUniqueViolation {
			return classroom.Classroom{}, classroom.ErrExists
		}
		return classroom.Classroom{}, errors.Wrap(err, "inserting classroom")
	}
	return c, nil
}

func (repo *classroomRepository) GetClassroom(ctx context.Context, id int) (classroom.Classroom, error) {
	var row classroomRow
	err := sqlx.GetContext(ctx, repo.db, &row, `SELECT `+classroomColumns+` FROM classroom WHERE id = $1`, id)
	if err != nil {
		return classroom.Classroom{}, trapNoRowsErr(err, classroom.ErrNotFound)
	}
	return row.classroom(), nil
}

func (repo *classroomRepository) GetClassroomByCode(ctx context.Context, gradeLetter string, classNumber *int) (classroom.Classroom, error) {
	var row classroomRow
	query := `SELECT ` + classroomColumns + ` FROM classroom
		WHERE grade_letter IS NOT DISTINCT FROM $1 AND class_number IS NOT DISTINCT FROM $2`
	err := sqlx.GetContext(ctx, repo.db, &row, query,
		null.NewString(gradeLetter, gradeLetter != ""),
		null.IntFromPtr(classNumber),
	)
	if err != nil {
		return classroom.Classroom{}, trapNoRowsErr(err, classroom.ErrNotFound)
	}
	return row.classroom(), nil
}

func (repo *classroomRepository) QueryClassrooms(ctx context.Context) ([]classroom.Classroom, error) {
	var rows []classroomRow
	query := `SELECT ` + classroomColumns + ` FROM classroom
		ORDER BY COALESCE(grade_letter, ''), COALESCE(class_number, 0), id`
	if err := sqlx.SelectContext(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting classrooms")
	}
	rooms := make([]classroom.Classroom, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.classroom())
	}
	return rooms, nil
}

func (repo *classroomRepository) DeleteClassroom(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM classroom WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return checkAffected(res, classroom.ErrNotFound)
}
