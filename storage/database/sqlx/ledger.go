package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
)

type ledgerRepository struct {
	db sqlx.ExtContext
}

var (
	_ ledger.EntryStore      = (*ledgerRepository)(nil)
	_ ledger.AttendanceStore = (*ledgerRepository)(nil)
)

func NewLedgerRepository(db sqlx.ExtContext) *ledgerRepository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) GetEntry(ctx context.Context, teacherID int, date core.Date) (ledger.DailyHourEntry, error) {
	var e ledger.DailyHourEntry
	query := `SELECT id, teacher_id, date, hours_added FROM daily_hour_entry WHERE teacher_id = $1 AND date = $2`
	if err := sqlx.GetContext(ctx, repo.db, &e, query, teacherID, date); err != nil {
		return ledger.DailyHourEntry{}, trapNoRowsErr(err, ledger.ErrEntryNotFound)
	}
	return e, nil
}

func (repo *ledgerRepository) CreateEntry(ctx context.Context, e ledger.DailyHourEntry) (ledger.DailyHourEntry, error) {
	query := `INSERT INTO daily_hour_entry (teacher_id, date, hours_added) VALUES ($1, $2, $3) RETURNING id`
	if err := repo.db.QueryRowxContext(ctx, query, e.TeacherID, e.Date, e.HoursAdded).Scan(&e.ID); err != nil {
		if pqErrCode(err) == pqForeignKeyViolation {
			return ledger.DailyHourEntry{}, teacher.ErrNotFound
		}
		return ledger.DailyHourEntry{}, errors.Wrap(err, "inserting daily hour entry")
	}
	return e, nil
}

func (repo *ledgerRepository) SetEntryHours(ctx context.Context, id int, hours int) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE daily_hour_entry SET hours_added = $2 WHERE id = $1`, id, hours)
	if err != nil {
		return errors.Wrap(err, "updating daily hour entry")
	}
	return checkAffected(res, ledger.ErrEntryNotFound)
}

func (repo *ledgerRepository) QueryEntries(ctx context.Context, teacherID int, from, to core.Date) ([]ledger.DailyHourEntry, error) {
	entries := make([]ledger.DailyHourEntry, 0)
	query := `SELECT id, teacher_id, date, hours_added FROM daily_hour_entry
		WHERE teacher_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`
	if err := sqlx.SelectContext(ctx, repo.db, &entries, query, teacherID, from, to); err != nil {
		return nil, errors.Wrap(err, "selecting daily hour entries")
	}
	return entries, nil
}

func (repo *ledgerRepository) UpsertAttendance(ctx context.Context, r ledger.AttendanceRecord) (ledger.AttendanceRecord, error) {
	query := `INSERT INTO attendance_record (teacher_id, class_id, date, was_present, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (teacher_id, class_id, date) DO UPDATE
		SET was_present = EXCLUDED.was_present, updated_at = EXCLUDED.updated_at
		RETURNING id`
	err := repo.db.QueryRowxContext(ctx, query, r.TeacherID, r.ClassID, r.Date, r.WasPresent, r.UpdatedAt).Scan(&r.ID)
	if err != nil {
		if pqErrCode(err) == pqForeignKeyViolation {
			return ledger.AttendanceRecord{}, schedule.ErrNotFound
		}
		return ledger.AttendanceRecord{}, errors.Wrap(err, "upserting attendance record")
	}
	return r, nil
}

func (repo *ledgerRepository) QueryAttendance(ctx context.Context, teacherID int, date core.Date) ([]ledger.AttendanceRecord, error) {
	records := make([]ledger.AttendanceRecord, 0)
	query := `SELECT id, teacher_id, class_id, date, was_present, updated_at FROM attendance_record
		WHERE teacher_id = $1 AND date = $2
		ORDER BY class_id`
	if err := sqlx.SelectContext(ctx, repo.db, &records, query, teacherID, date); err != nil {
		return nil, errors.Wrap(err, "selecting attendance records")
	}
	return records, nil
}
