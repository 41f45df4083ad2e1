package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/teacher"
)

const teacherColumns = `id, username, first_name, last_name, email, monthly_hours, is_active, roles,
	password_hash, created_at, updated_at, last_login`

type teacherRow struct {
	ID           int            `db:"id"`
	Username     string         `db:"username"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	Email        string         `db:"email"`
	MonthlyHours int            `db:"monthly_hours"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func boilTeacher(t teacher.Teacher) teacherRow {
	roles := t.Roles
	if roles == nil {
		roles = []string{}
	}
	return teacherRow{
		ID:           t.ID,
		Username:     t.Username,
		FirstName:    t.FirstName,
		LastName:     t.LastName,
		Email:        t.Email,
		MonthlyHours: t.MonthlyHours,
		IsActive:     t.IsActive,
		Roles:        roles,
		PasswordHash: t.PasswordHash,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		LastLogin:    null.NewTime(t.LastLogin, !t.LastLogin.IsZero()),
	}
}

func unboilTeacher(row teacherRow) teacher.Teacher {
	return teacher.Teacher{
		ID:           row.ID,
		Username:     row.Username,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Email:        row.Email,
		MonthlyHours: row.MonthlyHours,
		IsActive:     row.IsActive,
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

type teacherRepository struct {
	db sqlx.ExtContext
}

var (
	_ teacher.Repository  = (*teacherRepository)(nil)
	_ ledger.TeacherStore = (*teacherRepository)(nil)
)

// NewTeacherRepository works over a *sqlx.DB or a *sqlx.Tx.
func NewTeacherRepository(db sqlx.ExtContext) *teacherRepository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) get(ctx context.Context, query string, args ...interface{}) (teacher.Teacher, error) {
	var row teacherRow
	if err := sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound)
	}
	return unboilTeacher(row), nil
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	row := boilTeacher(t)
	query := `INSERT INTO teacher
		(username, first_name, last_name, email, monthly_hours, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := repo.db.QueryRowxContext(ctx, query,
		row.Username, row.FirstName, row.LastName, row.Email, row.MonthlyHours, row.IsActive, row.Roles,
		row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin,
	).Scan(&t.ID)
	if err != nil {
		if pqErrCode(err) == pqUniqueViolation {
			return teacher.Teacher{}, teacher.ErrUsernameExists
		}
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return t, nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, id int) (teacher.Teacher, error) {
	return repo.get(ctx, `SELECT `+teacherColumns+` FROM teacher WHERE id = $1`, id)
}

func (repo *teacherRepository) GetTeacherByUsername(ctx context.Context, username string) (teacher.Teacher, error) {
	return repo.get(ctx,
		`SELECT `+teacherColumns+` FROM teacher WHERE username = $1 OR (email <> '' AND email = $1)
		ORDER BY username = $1 DESC LIMIT 1`,
		username,
	)
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, activeOnly bool) ([]teacher.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teacher`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY username`

	var rows []teacherRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting teachers")
	}
	teachers := make([]teacher.Teacher, 0, len(rows))
	for _, row := range rows {
		teachers = append(teachers, unboilTeacher(row))
	}
	return teachers, nil
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	row := boilTeacher(t)
	query := `UPDATE teacher SET
		username = $2, first_name = $3, last_name = $4, email = $5, is_active = $6, roles = $7,
		password_hash = $8, updated_at = $9, last_login = $10
		WHERE id = $1
		RETURNING monthly_hours, created_at`
	err := repo.db.QueryRowxContext(ctx, query,
		row.ID, row.Username, row.FirstName, row.LastName, row.Email, row.IsActive, row.Roles,
		row.PasswordHash, row.UpdatedAt, row.LastLogin,
	).Scan(&t.MonthlyHours, &t.CreatedAt)
	if err != nil {
		if pqErrCode(err) == pqUniqueViolation {
			return teacher.Teacher{}, teacher.ErrUsernameExists
		}
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM teacher WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return checkAffected(res, teacher.ErrNotFound)
}

func (repo *teacherRepository) GetTeacherForUpdate(ctx context.Context, id int) (teacher.Teacher, error) {
	return repo.get(ctx, `SELECT `+teacherColumns+` FROM teacher WHERE id = $1 FOR UPDATE`, id)
}

func (repo *teacherRepository) SetMonthlyHours(ctx context.Context, id int, hours int) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE teacher SET monthly_hours = $2 WHERE id = $1`, id, hours)
	if err != nil {
		return errors.Wrap(err, "updating monthly hours")
	}
	return checkAffected(res, teacher.ErrNotFound)
}
