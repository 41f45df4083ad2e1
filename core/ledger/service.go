package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
)

// operation names reported to Metrics.CapRejected
const (
	opAddHours         = "add_hours"
	opSetAttendance    = "set_attendance"
	opSubmitAttendance = "submit_attendance"
	opCreateClass      = "create_class"
)

type ServiceDeps struct {
	TxManager TxManager

	// reads outside of transactions
	Entries    EntryStore
	Attendance AttendanceStore

	Logger   core.Logger
	Metrics  Metrics          // optional
	Now      func() time.Time // optional, defaults to time.Now
	Location *time.Location   // school time zone, defaults to UTC
}

// Service owns every write to the hours ledger and the cached monthly totals.
// Each write runs in one transaction that starts by locking the teacher row,
// so writers for the same teacher are serialized.
type Service struct {
	txm        TxManager
	entries    EntryStore
	attendance AttendanceStore
	logger     core.Logger
	metrics    Metrics
	now        func() time.Time
	loc        *time.Location
}

func NewService(deps ServiceDeps) *Service {
	svc := &Service{
		txm:        deps.TxManager,
		entries:    deps.Entries,
		attendance: deps.Attendance,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        deps.Now,
		loc:        deps.Location,
	}
	if svc.metrics == nil {
		svc.metrics = nopMetrics{}
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.loc == nil {
		svc.loc = time.UTC
	}
	return svc
}

// Today is the current date in the school time zone.
func (svc *Service) Today() core.Date {
	return core.DateIn(svc.now(), svc.loc)
}

// CurrentMonth is the month of Today.
func (svc *Service) CurrentMonth() core.Month {
	return core.MonthOf(svc.Today())
}

// AddHours accrues `hours` (1..7) on `date` (today if zero) for the teacher,
// creating the day's entry if needed and rejecting additions past the daily cap.
func (svc *Service) AddHours(ctx context.Context, teacherID int, date core.Date, hours int) (HoursUpdate, error) {
	if hours < MinHours || hours > MaxDailyHours {
		return HoursUpdate{}, ErrInvalidAmount
	}
	if date.IsZero() {
		date = svc.Today()
	}

	var res HoursUpdate
	err := svc.txm.WithTx(ctx, func(ctx context.Context, repos TxRepositories) error {
		t, err := repos.Teachers.GetTeacherForUpdate(ctx, teacherID)
		if err != nil {
			return wrap(err, "locking teacher")
		}
		entry, err := svc.accrue(ctx, repos, &t, date, hours)
		if err != nil {
			return err
		}
		res = HoursUpdate{Teacher: t, Entry: entry}
		return nil
	})
	if err != nil {
		svc.recordFailure(opAddHours, err)
		return HoursUpdate{}, wrap(err, "adding hours")
	}

	svc.metrics.HoursAccrued(hours)
	return res, nil
}

// SetAttendance sets the attended flag of a class on behalf of `actor`.
// Marking a class attended accrues one hour on the class date (subject to the daily cap);
// unmarking it releases that hour. Unchanged flags are a no-op.
func (svc *Service) SetAttendance(ctx context.Context, classID int, attended bool, actor teacher.Teacher) (schedule.ScheduledClass, error) {
	var (
		res   schedule.ScheduledClass
		delta int
	)
	err := svc.txm.WithTx(ctx, func(ctx context.Context, repos TxRepositories) error {
		cls, err := repos.Classes.GetClass(ctx, classID)
		if err != nil {
			return wrap(err, "getting class")
		}
		if !schedule.CanModify(actor, cls) {
			return ErrUnauthorized
		}

		// teacher first, then the class: same lock order as SubmitAttendance
		t, err := repos.Teachers.GetTeacherForUpdate(ctx, cls.TeacherID)
		if err != nil {
			return wrap(err, "locking teacher")
		}
		if cls, err = repos.Classes.GetClassForUpdate(ctx, classID); err != nil {
			return wrap(err, "locking class")
		}

		delta = attendanceDelta(cls.Attended, attended)
		switch {
		case delta > 0:
			_, err = svc.accrue(ctx, repos, &t, cls.Date, delta)
		case delta < 0:
			_, err = svc.release(ctx, repos, &t, cls.Date, -delta)
		}
		if err != nil {
			return err
		}

		if delta != 0 {
			if err := repos.Classes.SetAttended(ctx, cls.ID, attended); err != nil {
				return wrap(err, "setting attended")
			}
		}
		cls.Attended = attended
		res = cls
		return nil
	})
	if err != nil {
		svc.recordFailure(opSetAttendance, err)
		return schedule.ScheduledClass{}, wrap(err, "setting attendance")
	}

	if delta != 0 {
		svc.metrics.AttendanceToggled(attended)
		svc.recordDelta(delta)
	}
	return res, nil
}

// CreateClass persists a new class. A class created attended accrues its hour on the class date
// in the same transaction, subject to the daily cap; it satisfies schedule.Creator.
func (svc *Service) CreateClass(ctx context.Context, c schedule.ScheduledClass) (schedule.ScheduledClass, error) {
	attended := c.Attended
	c.Attended = false

	var res schedule.ScheduledClass
	err := svc.txm.WithTx(ctx, func(ctx context.Context, repos TxRepositories) error {
		t, err := repos.Teachers.GetTeacherForUpdate(ctx, c.TeacherID)
		if err != nil {
			return wrap(err, "locking teacher")
		}
		created, err := repos.Classes.CreateClass(ctx, c)
		if err != nil {
			return wrap(err, "creating class")
		}
		if attended {
			if _, err := svc.accrue(ctx, repos, &t, created.Date, 1); err != nil {
				return err
			}
			if err := repos.Classes.SetAttended(ctx, created.ID, true); err != nil {
				return wrap(err, "setting attended")
			}
			created.Attended = true
		}
		res = created
		return nil
	})
	if err != nil {
		svc.recordFailure(opCreateClass, err)
		return schedule.ScheduledClass{}, wrap(err, "creating class")
	}

	if attended {
		svc.metrics.AttendanceToggled(true)
		svc.metrics.HoursAccrued(1)
	}
	return res, nil
}

// SubmitAttendance records the presence of the teacher for several of their classes of `date`
// (today if zero) at once. The batch is all-or-nothing, and every class must be scheduled on `date`.
//
// Hours follow the stored attended flags, not the count of present entries: each class that becomes
// attended adds one hour to the ledger of `date` and each class that stops being attended removes one.
// Resubmitting an identical batch therefore moves nothing and reports a zero Delta.
func (svc *Service) SubmitAttendance(ctx context.Context, teacherID int, date core.Date, entries []ClassAttendance) (BatchResult, error) {
	if len(entries) == 0 {
		return BatchResult{}, ErrEmptyBatch
	}
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if e.ClassID <= 0 {
			return BatchResult{}, ErrClassNotFound
		}
		if _, dup := seen[e.ClassID]; dup {
			return BatchResult{}, core.NewFieldValidationError("classes", fmt.Sprintf("class %d submitted more than once", e.ClassID))
		}
		seen[e.ClassID] = struct{}{}
	}
	if date.IsZero() {
		date = svc.Today()
	}

	res := BatchResult{Date: date}
	err := svc.txm.WithTx(ctx, func(ctx context.Context, repos TxRepositories) error {
		t, err := repos.Teachers.GetTeacherForUpdate(ctx, teacherID)
		if err != nil {
			return wrap(err, "locking teacher")
		}

		// resolve every class before writing anything
		classes := make([]schedule.ScheduledClass, len(entries))
		for i, e := range entries {
			cls, err := repos.Classes.GetClassForUpdate(ctx, e.ClassID)
			if err != nil {
				return wrap(err, fmt.Sprintf("locking class %d", e.ClassID))
			}
			if cls.TeacherID != t.ID {
				return ErrClassNotFound
			}
			if !cls.Date.Equal(date) {
				return core.NewFieldValidationError("classes", fmt.Sprintf("class %d is not scheduled on %s", cls.ID, date))
			}
			classes[i] = cls
		}

		var delta int
		for i, e := range entries {
			delta += attendanceDelta(classes[i].Attended, e.WasPresent)
		}

		now := svc.now().UTC()
		records := make([]AttendanceRecord, 0, len(entries))
		for i, e := range entries {
			rec, err := repos.Attendance.UpsertAttendance(ctx, AttendanceRecord{
				TeacherID:  t.ID,
				ClassID:    e.ClassID,
				Date:       date,
				WasPresent: e.WasPresent,
				UpdatedAt:  now,
			})
			if err != nil {
				return wrap(err, "saving attendance record")
			}
			records = append(records, rec)

			if classes[i].Attended != e.WasPresent {
				if err := repos.Classes.SetAttended(ctx, e.ClassID, e.WasPresent); err != nil {
					return wrap(err, "setting attended")
				}
			}
		}

		var entry DailyHourEntry
		switch {
		case delta > 0:
			entry, err = svc.accrue(ctx, repos, &t, date, delta)
		case delta < 0:
			entry, err = svc.release(ctx, repos, &t, date, -delta)
		default:
			entry, err = currentEntry(ctx, repos.Entries, t.ID, date)
		}
		if err != nil {
			return err
		}

		res.HoursUpdate = HoursUpdate{Teacher: t, Entry: entry}
		res.Delta = delta
		res.Records = records
		return nil
	})
	if err != nil {
		svc.recordFailure(opSubmitAttendance, err)
		return BatchResult{}, wrap(err, "submitting attendance")
	}

	svc.metrics.BatchSubmitted(len(entries))
	svc.recordDelta(res.Delta)
	return res, nil
}

// MonthlyTotal is the sum of the teacher's daily entries over `month` (current month if zero).
func (svc *Service) MonthlyTotal(ctx context.Context, teacherID int, month core.Month) (int, error) {
	entries, err := svc.DailyEntries(ctx, teacherID, month)
	if err != nil {
		return 0, err
	}
	return sumHours(entries), nil
}

// DailyEntries returns the teacher's entries over `month` (current month if zero) ordered by date.
func (svc *Service) DailyEntries(ctx context.Context, teacherID int, month core.Month) ([]DailyHourEntry, error) {
	if month.IsZero() {
		month = svc.CurrentMonth()
	}
	entries, err := svc.entries.QueryEntries(ctx, teacherID, month.First(), month.Last())
	if err != nil {
		return nil, errors.Wrap(err, "querying daily entries")
	}
	return entries, nil
}

// DailyHours returns the hours accrued by the teacher on `date`, 0 if none.
func (svc *Service) DailyHours(ctx context.Context, teacherID int, date core.Date) (int, error) {
	entry, err := currentEntry(ctx, svc.entries, teacherID, date)
	if err != nil {
		return 0, err
	}
	return entry.HoursAdded, nil
}

// Attendance returns the attendance records submitted by the teacher for `date`.
func (svc *Service) Attendance(ctx context.Context, teacherID int, date core.Date) ([]AttendanceRecord, error) {
	records, err := svc.attendance.QueryAttendance(ctx, teacherID, date)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	return records, nil
}

// Verify compares the cached monthly total with the aggregated entries of `month`.
// The cache holds the running total of the current month, so only the current month is meaningful.
func (svc *Service) Verify(ctx context.Context, teacherID int, month core.Month) (MonthlyReport, error) {
	return svc.monthlyReport(ctx, teacherID, month, false)
}

// Reconcile sets the cached monthly total to the aggregated total of `month`.
// Run at the start of a month it resets the running total.
func (svc *Service) Reconcile(ctx context.Context, teacherID int, month core.Month) (MonthlyReport, error) {
	return svc.monthlyReport(ctx, teacherID, month, true)
}

func (svc *Service) monthlyReport(ctx context.Context, teacherID int, month core.Month, reconcile bool) (MonthlyReport, error) {
	if month.IsZero() {
		month = svc.CurrentMonth()
	}

	var report MonthlyReport
	err := svc.txm.WithTx(ctx, func(ctx context.Context, repos TxRepositories) error {
		t, err := repos.Teachers.GetTeacherForUpdate(ctx, teacherID)
		if err != nil {
			return wrap(err, "locking teacher")
		}
		entries, err := repos.Entries.QueryEntries(ctx, teacherID, month.First(), month.Last())
		if err != nil {
			return wrap(err, "querying daily entries")
		}
		if entries == nil {
			entries = []DailyHourEntry{}
		}

		report = MonthlyReport{
			TeacherID: teacherID,
			Month:     month,
			Total:     sumHours(entries),
			Cached:    t.MonthlyHours,
			Entries:   entries,
		}
		report.Drift = report.Total != report.Cached

		if reconcile && report.Drift {
			if err := repos.Teachers.SetMonthlyHours(ctx, teacherID, report.Total); err != nil {
				return wrap(err, "setting monthly hours")
			}
			report.Reconciled = true
		}
		return nil
	})
	if err != nil {
		return MonthlyReport{}, wrap(err, "building monthly report")
	}

	if report.Reconciled {
		svc.logger.Info(
			fmt.Sprintf("monthly hours of teacher %d reconciled for %s: %d -> %d", teacherID, month, report.Cached, report.Total),
			map[string]interface{}{"teacher_id": teacherID, "month": month.String(), "cached": report.Cached, "total": report.Total},
		)
		svc.metrics.Reconciled(report.Total - report.Cached)
	}
	return report, nil
}

// accrue adds `hours` to the teacher's entry of `date`, and to their cached total when `date`
// falls in the current month. The teacher row must be locked by the caller.
func (svc *Service) accrue(ctx context.Context, repos TxRepositories, t *teacher.Teacher, date core.Date, hours int) (DailyHourEntry, error) {
	entry, err := repos.Entries.GetEntry(ctx, t.ID, date)
	switch {
	case err == nil:
		if entry.HoursAdded+hours > MaxDailyHours {
			return DailyHourEntry{}, ErrDailyCapExceeded
		}
		entry.HoursAdded += hours
		if err := repos.Entries.SetEntryHours(ctx, entry.ID, entry.HoursAdded); err != nil {
			return DailyHourEntry{}, wrap(err, "updating daily entry")
		}
	case errors.Cause(err) == ErrEntryNotFound:
		if hours > MaxDailyHours {
			return DailyHourEntry{}, ErrDailyCapExceeded
		}
		entry, err = repos.Entries.CreateEntry(ctx, DailyHourEntry{TeacherID: t.ID, Date: date, HoursAdded: hours})
		if err != nil {
			return DailyHourEntry{}, wrap(err, "creating daily entry")
		}
	default:
		return DailyHourEntry{}, wrap(err, "getting daily entry")
	}

	if !svc.CurrentMonth().Contains(date) {
		return entry, nil
	}
	t.MonthlyHours += hours
	if err := repos.Teachers.SetMonthlyHours(ctx, t.ID, t.MonthlyHours); err != nil {
		return DailyHourEntry{}, wrap(err, "setting monthly hours")
	}
	return entry, nil
}

// release removes `hours` from the teacher's entry of `date`, and from their cached total when `date`
// falls in the current month, flooring both at zero. The entry is kept even when it drops to zero.
func (svc *Service) release(ctx context.Context, repos TxRepositories, t *teacher.Teacher, date core.Date, hours int) (DailyHourEntry, error) {
	entry, err := repos.Entries.GetEntry(ctx, t.ID, date)
	switch {
	case err == nil:
		newHours := entry.HoursAdded - hours
		if newHours < 0 {
			svc.logger.Warn(
				fmt.Sprintf("daily entry of teacher %d on %s clamped at zero", t.ID, date),
				map[string]interface{}{"teacher_id": t.ID, "date": date.String(), "hours_added": entry.HoursAdded, "released": hours},
			)
			newHours = 0
		}
		if newHours != entry.HoursAdded {
			if err := repos.Entries.SetEntryHours(ctx, entry.ID, newHours); err != nil {
				return DailyHourEntry{}, wrap(err, "updating daily entry")
			}
			entry.HoursAdded = newHours
		}
	case errors.Cause(err) == ErrEntryNotFound:
		svc.logger.Warn(
			fmt.Sprintf("no daily entry of teacher %d on %s to release hours from", t.ID, date),
			map[string]interface{}{"teacher_id": t.ID, "date": date.String(), "released": hours},
		)
		entry = DailyHourEntry{TeacherID: t.ID, Date: date}
	default:
		return DailyHourEntry{}, wrap(err, "getting daily entry")
	}

	if !svc.CurrentMonth().Contains(date) {
		return entry, nil
	}
	monthly := t.MonthlyHours - hours
	if monthly < 0 {
		svc.logger.Warn(
			fmt.Sprintf("monthly hours of teacher %d clamped at zero", t.ID),
			map[string]interface{}{"teacher_id": t.ID, "monthly_hours": t.MonthlyHours, "released": hours},
		)
		monthly = 0
	}
	t.MonthlyHours = monthly
	if err := repos.Teachers.SetMonthlyHours(ctx, t.ID, t.MonthlyHours); err != nil {
		return DailyHourEntry{}, wrap(err, "setting monthly hours")
	}
	return entry, nil
}

func (svc *Service) recordFailure(op string, err error) {
	if errors.Cause(err) == ErrDailyCapExceeded {
		svc.metrics.CapRejected(op)
	}
}

func (svc *Service) recordDelta(delta int) {
	switch {
	case delta > 0:
		svc.metrics.HoursAccrued(delta)
	case delta < 0:
		svc.metrics.HoursReleased(-delta)
	}
}

// attendanceDelta is +1 when a class becomes attended, -1 when it stops being attended, 0 otherwise.
func attendanceDelta(prev, next bool) int {
	switch {
	case !prev && next:
		return 1
	case prev && !next:
		return -1
	default:
		return 0
	}
}

func currentEntry(ctx context.Context, store EntryStore, teacherID int, date core.Date) (DailyHourEntry, error) {
	entry, err := store.GetEntry(ctx, teacherID, date)
	if errors.Cause(err) == ErrEntryNotFound {
		return DailyHourEntry{TeacherID: teacherID, Date: date}, nil
	}
	if err != nil {
		return DailyHourEntry{}, wrap(err, "getting daily entry")
	}
	return entry, nil
}

func sumHours(entries []DailyHourEntry) int {
	var total int
	for _, e := range entries {
		total += e.HoursAdded
	}
	return total
}

// wrap annotates err with msg, except for the ledger's own errors which are returned bare.
func wrap(err error, msg string) error {
	switch cause := errors.Cause(err); cause {
	case ErrInvalidAmount, ErrDailyCapExceeded, ErrEmptyBatch, ErrUnauthorized, ErrClassNotFound, ErrTeacherNotFound:
		return cause
	}
	if _, ok := errors.Cause(err).(*core.ValidationError); ok {
		return err
	}
	return errors.Wrap(err, msg)
}
