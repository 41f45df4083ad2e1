package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
)

const (
	// MaxDailyHours caps the hours accrued by a teacher on a single date.
	MaxDailyHours = 7
	// MinHours is the smallest explicit hours addition.
	MinHours = 1
)

var (
	ErrInvalidAmount    = errors.New("hours must be an integer between 1 and 7")
	ErrDailyCapExceeded = errors.New("cannot add more than 7 hours per day")
	ErrEmptyBatch       = errors.New("no classes submitted")
	ErrUnauthorized     = schedule.ErrUnauthorized
	ErrClassNotFound    = schedule.ErrNotFound
	ErrTeacherNotFound  = teacher.ErrNotFound

	// ErrEntryNotFound is returned by EntryStore.GetEntry when no hours were logged on that date yet.
	ErrEntryNotFound = errors.New("daily hour entry not found")
)

// DailyHourEntry is the hours accrued by a teacher on one date.
type DailyHourEntry struct {
	ID         int       `json:"id" db:"id"`
	TeacherID  int       `json:"teacher_id" db:"teacher_id"`
	Date       core.Date `json:"date" db:"date"`
	HoursAdded int       `json:"hours_added" db:"hours_added"`
}

// AttendanceRecord is the last submitted presence of a teacher for a class on a date.
type AttendanceRecord struct {
	ID         int       `json:"id" db:"id"`
	TeacherID  int       `json:"teacher_id" db:"teacher_id"`
	ClassID    int       `json:"class_id" db:"class_id"`
	Date       core.Date `json:"date" db:"date"`
	WasPresent bool      `json:"was_present" db:"was_present"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ClassAttendance is one line of a bulk attendance submission.
type ClassAttendance struct {
	ClassID    int  `json:"class_id" validate:"required,min=1"`
	WasPresent bool `json:"was_present"`
}

// HoursUpdate is the outcome of a write to the ledger.
type HoursUpdate struct {
	Teacher teacher.Teacher `json:"teacher"`
	Entry   DailyHourEntry  `json:"entry"`
}

// BatchResult is the outcome of SubmitAttendance.
type BatchResult struct {
	HoursUpdate
	Date    core.Date          `json:"date"`
	Delta   int                `json:"delta"`
	Records []AttendanceRecord `json:"records"`
}

// MonthlyReport compares the cached monthly total of a teacher with the aggregated ledger.
type MonthlyReport struct {
	TeacherID  int              `json:"teacher_id"`
	Month      core.Month       `json:"month"`
	Total      int              `json:"total"`
	Cached     int              `json:"cached"`
	Drift      bool             `json:"drift"`
	Reconciled bool             `json:"reconciled,omitempty"`
	Entries    []DailyHourEntry `json:"entries"`
}

type (
	// TeacherStore reads and locks teachers and writes their cached monthly total.
	TeacherStore interface {
		// GetTeacherForUpdate locks the teacher row until the end of the transaction.
		GetTeacherForUpdate(ctx context.Context, id int) (teacher.Teacher, error)
		SetMonthlyHours(ctx context.Context, id int, hours int) error
	}

	ClassStore interface {
		CreateClass(ctx context.Context, c schedule.ScheduledClass) (schedule.ScheduledClass, error)
		GetClass(ctx context.Context, id int) (schedule.ScheduledClass, error)
		// GetClassForUpdate locks the class row until the end of the transaction.
		GetClassForUpdate(ctx context.Context, id int) (schedule.ScheduledClass, error)
		SetAttended(ctx context.Context, id int, attended bool) error
	}

	EntryStore interface {
		GetEntry(ctx context.Context, teacherID int, date core.Date) (DailyHourEntry, error)
		CreateEntry(ctx context.Context, e DailyHourEntry) (DailyHourEntry, error)
		SetEntryHours(ctx context.Context, id int, hours int) error
		// QueryEntries returns the entries of a teacher between from and to (inclusive) ordered by date.
		QueryEntries(ctx context.Context, teacherID int, from, to core.Date) ([]DailyHourEntry, error)
	}

	AttendanceStore interface {
		// UpsertAttendance creates or replaces the record keyed by (teacher, class, date).
		UpsertAttendance(ctx context.Context, r AttendanceRecord) (AttendanceRecord, error)
		// QueryAttendance returns the records of a teacher on a date ordered by class.
		QueryAttendance(ctx context.Context, teacherID int, date core.Date) ([]AttendanceRecord, error)
	}

	// TxRepositories are the stores bound to one transaction.
	TxRepositories struct {
		Teachers   TeacherStore
		Classes    ClassStore
		Entries    EntryStore
		Attendance AttendanceStore
	}

	// TxManager runs fn in a transaction: committed if fn returns nil, rolled back otherwise.
	TxManager interface {
		WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
	}
)
