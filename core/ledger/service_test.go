package ledger_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	"github.com/trezcool/mahudhurio/tests"
)

type fakeMetrics struct {
	mu          sync.Mutex
	accrued     int
	released    int
	capRejected map[string]int
	toggles     []bool
	batches     []int
	reconciled  []int
}

func (m *fakeMetrics) HoursAccrued(h int) { m.mu.Lock(); m.accrued += h; m.mu.Unlock() }

func (m *fakeMetrics) HoursReleased(h int) { m.mu.Lock(); m.released += h; m.mu.Unlock() }

func (m *fakeMetrics) CapRejected(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capRejected == nil {
		m.capRejected = make(map[string]int)
	}
	m.capRejected[op]++
}

func (m *fakeMetrics) AttendanceToggled(a bool) { m.mu.Lock(); m.toggles = append(m.toggles, a); m.mu.Unlock() }

func (m *fakeMetrics) BatchSubmitted(n int) { m.mu.Lock(); m.batches = append(m.batches, n); m.mu.Unlock() }

func (m *fakeMetrics) Reconciled(d int) { m.mu.Lock(); m.reconciled = append(m.reconciled, d); m.mu.Unlock() }

type fixture struct {
	ctx        context.Context
	db         *inmemdb.DB
	teachers   interface {
		teacher.Repository
		ledger.TeacherStore
	}
	classrooms classroom.Repository
	classes    interface {
		schedule.Repository
		ledger.ClassStore
	}
	clock   *testutil.Clock
	metrics *fakeMetrics
	svc     *ledger.Service
	rooms   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.NewDB()
	entries := inmemdb.NewLedgerRepository(db)
	f := &fixture{
		ctx:        context.Background(),
		db:         db,
		teachers:   inmemdb.NewTeacherRepository(db),
		classrooms: inmemdb.NewClassroomRepository(db),
		classes:    inmemdb.NewClassRepository(db),
		clock:      testutil.NewClock(time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)),
		metrics:    &fakeMetrics{},
	}
	f.svc = ledger.NewService(ledger.ServiceDeps{
		TxManager:  inmemdb.NewTxManager(db),
		Entries:    entries,
		Attendance: entries,
		Logger:     logsvc.NewNopLogger(),
		Metrics:    f.metrics,
		Now:        f.clock.Now,
		Location:   time.UTC,
	})
	return f
}

func (f *fixture) teacher(t *testing.T, uname string) teacher.Teacher {
	return testutil.CreateTeacher(t, f.teachers, "Teacher", uname, uname+"@school.test", "", []string{teacher.RoleTeacher}, true)
}

func (f *fixture) class(t *testing.T, tchr teacher.Teacher, date core.Date, period int, attended bool) schedule.ScheduledClass {
	f.rooms++
	room := testutil.CreateClassroom(t, f.classrooms, "A", f.rooms)
	return testutil.CreateClass(t, f.svc, tchr, room, date, period, attended)
}

func (f *fixture) monthlyHours(t *testing.T, id int) int {
	t.Helper()
	tchr, err := f.teachers.GetTeacher(f.ctx, id)
	require.NoError(t, err)
	return tchr.MonthlyHours
}

func (f *fixture) dailyHours(t *testing.T, id int, date core.Date) int {
	t.Helper()
	h, err := f.svc.DailyHours(f.ctx, id, date)
	require.NoError(t, err)
	return h
}

func (f *fixture) attended(t *testing.T, id int) bool {
	t.Helper()
	c, err := f.classes.GetClass(f.ctx, id)
	require.NoError(t, err)
	return c.Attended
}

// assertConsistent checks that the cached total equals the aggregated entries of the current month.
func (f *fixture) assertConsistent(t *testing.T, id int) {
	t.Helper()
	report, err := f.svc.Verify(f.ctx, id, core.Month{})
	require.NoError(t, err)
	assert.False(t, report.Drift, "cached %d, aggregated %d", report.Cached, report.Total)
}

var (
	apr30      = core.NewDate(2024, 4, 30)
	may1, may2 = core.NewDate(2024, 5, 1), core.NewDate(2024, 5, 2)
)

func TestService_AddHours(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")

	res, err := f.svc.AddHours(f.ctx, tchr.ID, may1, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Entry.HoursAdded)
	assert.Equal(t, may1, res.Entry.Date)
	assert.Equal(t, 5, res.Teacher.MonthlyHours)
	assert.Equal(t, 5, f.monthlyHours(t, tchr.ID))

	_, err = f.svc.AddHours(f.ctx, tchr.ID, may1, 3)
	assert.Equal(t, ledger.ErrDailyCapExceeded, err)
	assert.Equal(t, 5, f.dailyHours(t, tchr.ID, may1))
	assert.Equal(t, 5, f.monthlyHours(t, tchr.ID))

	res, err = f.svc.AddHours(f.ctx, tchr.ID, may1, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Entry.HoursAdded)

	_, err = f.svc.AddHours(f.ctx, tchr.ID, may1, 1)
	assert.Equal(t, ledger.ErrDailyCapExceeded, err)

	// other days are independent
	res, err = f.svc.AddHours(f.ctx, tchr.ID, may2, 7)
	require.NoError(t, err)
	assert.Equal(t, 14, res.Teacher.MonthlyHours)

	assert.Equal(t, 2, f.metrics.capRejected["add_hours"])
	assert.Equal(t, 14, f.metrics.accrued)
	f.assertConsistent(t, tchr.ID)
}

func TestService_AddHours_InvalidInput(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")

	tests := []struct {
		name      string
		teacherID int
		hours     int
		wantErr   error
	}{
		{"zero", tchr.ID, 0, ledger.ErrInvalidAmount},
		{"negative", tchr.ID, -2, ledger.ErrInvalidAmount},
		{"above cap", tchr.ID, 8, ledger.ErrInvalidAmount},
		{"unknown teacher", 999, 1, ledger.ErrTeacherNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddHours(f.ctx, tt.teacherID, may1, tt.hours)
			assert.Equal(t, tt.wantErr, err)
		})
	}
	assert.Equal(t, 0, f.monthlyHours(t, tchr.ID))
}

func TestService_AddHours_DefaultsToToday(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")

	// 23:30 UTC on May 2nd is already May 3rd in Jerusalem
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	f.clock.Set(time.Date(2024, 5, 2, 23, 30, 0, 0, time.UTC))
	entries := inmemdb.NewLedgerRepository(f.db)
	svc := ledger.NewService(ledger.ServiceDeps{
		TxManager:  inmemdb.NewTxManager(f.db),
		Entries:    entries,
		Attendance: entries,
		Logger:     logsvc.NewNopLogger(),
		Now:        f.clock.Now,
		Location:   loc,
	})

	res, err := svc.AddHours(f.ctx, tchr.ID, core.Date{}, 2)
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2024, 5, 3), res.Entry.Date)
}

func TestService_AddHours_Concurrent(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(hours int) {
			defer wg.Done()
			if _, err := f.svc.AddHours(f.ctx, tchr.ID, may1, hours); err == nil {
				mu.Lock()
				accepted += hours
				mu.Unlock()
			} else {
				assert.Equal(t, ledger.ErrDailyCapExceeded, err)
			}
		}(i%3 + 1)
	}
	wg.Wait()

	assert.LessOrEqual(t, accepted, ledger.MaxDailyHours)
	assert.Equal(t, accepted, f.dailyHours(t, tchr.ID, may1))
	assert.Equal(t, accepted, f.monthlyHours(t, tchr.ID))
}

func TestService_SetAttendance(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	require.NoError(t, f.teachers.SetMonthlyHours(f.ctx, tchr.ID, 10))
	cls := f.class(t, tchr, may2, 1, false)

	res, err := f.svc.SetAttendance(f.ctx, cls.ID, true, tchr)
	require.NoError(t, err)
	assert.True(t, res.Attended)
	assert.True(t, f.attended(t, cls.ID))
	assert.Equal(t, 11, f.monthlyHours(t, tchr.ID))
	assert.Equal(t, 1, f.dailyHours(t, tchr.ID, may2))

	// unchanged flag: no-op
	res, err = f.svc.SetAttendance(f.ctx, cls.ID, true, tchr)
	require.NoError(t, err)
	assert.True(t, res.Attended)
	assert.Equal(t, 11, f.monthlyHours(t, tchr.ID))
	assert.Equal(t, 1, f.dailyHours(t, tchr.ID, may2))

	assert.Equal(t, []bool{true}, f.metrics.toggles)
}

func TestService_SetAttendance_RoundTrip(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	_, err := f.svc.AddHours(f.ctx, tchr.ID, may2, 3)
	require.NoError(t, err)
	cls := f.class(t, tchr, may2, 2, true)

	// the class brought its own hour
	assert.Equal(t, 4, f.dailyHours(t, tchr.ID, may2))

	before := f.monthlyHours(t, tchr.ID)
	for _, attended := range []bool{false, true} {
		_, err := f.svc.SetAttendance(f.ctx, cls.ID, attended, tchr)
		require.NoError(t, err)
		f.assertConsistent(t, tchr.ID)
	}
	assert.Equal(t, before, f.monthlyHours(t, tchr.ID))
	assert.Equal(t, 4, f.dailyHours(t, tchr.ID, may2))
	assert.Equal(t, 1, f.metrics.released)
}

func TestService_SetAttendance_CreatedAttended(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	_, err := f.svc.AddHours(f.ctx, tchr.ID, may1, 5)
	require.NoError(t, err)
	cls := f.class(t, tchr, may2, 1, true)

	_, err = f.svc.SetAttendance(f.ctx, cls.ID, false, tchr)
	require.NoError(t, err)
	assert.Equal(t, 5, f.monthlyHours(t, tchr.ID))
	assert.Equal(t, 5, f.dailyHours(t, tchr.ID, may1))
	assert.Equal(t, 0, f.dailyHours(t, tchr.ID, may2))
	f.assertConsistent(t, tchr.ID)
}

func TestService_SetAttendance_DailyCap(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	_, err := f.svc.AddHours(f.ctx, tchr.ID, may2, 7)
	require.NoError(t, err)
	cls := f.class(t, tchr, may2, 1, false)

	_, err = f.svc.SetAttendance(f.ctx, cls.ID, true, tchr)
	assert.Equal(t, ledger.ErrDailyCapExceeded, err)
	assert.False(t, f.attended(t, cls.ID))
	assert.Equal(t, 7, f.monthlyHours(t, tchr.ID))
	assert.Equal(t, 1, f.metrics.capRejected["set_attendance"])
}

func TestService_SetAttendance_Clamp(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	cls := f.class(t, tchr, may2, 1, true)
	// the cache drifted below the ledger
	require.NoError(t, f.teachers.SetMonthlyHours(f.ctx, tchr.ID, 0))

	res, err := f.svc.SetAttendance(f.ctx, cls.ID, false, tchr)
	require.NoError(t, err)
	assert.False(t, res.Attended)
	assert.Equal(t, 0, f.monthlyHours(t, tchr.ID))
	assert.Equal(t, 0, f.dailyHours(t, tchr.ID, may2))
}

func TestService_SetAttendance_Errors(t *testing.T) {
	f := newFixture(t)
	owner := f.teacher(t, "owner")
	other := f.teacher(t, "other")
	cls := f.class(t, owner, may2, 1, false)

	tests := []struct {
		name    string
		classID int
		actor   teacher.Teacher
		wantErr error
	}{
		{"not the owner", cls.ID, other, ledger.ErrUnauthorized},
		{"anonymous", cls.ID, teacher.Teacher{}, ledger.ErrUnauthorized},
		{"unknown class", 999, owner, ledger.ErrClassNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SetAttendance(f.ctx, tt.classID, true, tt.actor)
			assert.Equal(t, tt.wantErr, err)
		})
	}
	assert.False(t, f.attended(t, cls.ID))
	assert.Equal(t, 0, f.monthlyHours(t, owner.ID))
}

func TestService_SubmitAttendance(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	classA := f.class(t, tchr, may2, 1, false)
	classB := f.class(t, tchr, may2, 2, true)
	classC := f.class(t, tchr, may2, 3, false)

	res, err := f.svc.SubmitAttendance(f.ctx, tchr.ID, may2, []ledger.ClassAttendance{
		{ClassID: classA.ID, WasPresent: true},
		{ClassID: classB.ID, WasPresent: true},
		{ClassID: classC.ID, WasPresent: true},
	})
	require.NoError(t, err)
	// B was created attended: only A and C add an hour
	assert.Equal(t, 2, res.Delta)
	assert.Equal(t, may2, res.Date)
	assert.Equal(t, 3, res.Entry.HoursAdded)
	assert.Equal(t, 3, res.Teacher.MonthlyHours)
	require.Len(t, res.Records, 3)
	for _, id := range []int{classA.ID, classB.ID, classC.ID} {
		assert.True(t, f.attended(t, id))
	}

	// resubmitting flips C back: net -1, records are replaced
	res, err = f.svc.SubmitAttendance(f.ctx, tchr.ID, may2, []ledger.ClassAttendance{
		{ClassID: classA.ID, WasPresent: true},
		{ClassID: classC.ID, WasPresent: false},
	})
	require.NoError(t, err)
	assert.Equal(t, -1, res.Delta)
	assert.Equal(t, 2, res.Entry.HoursAdded)
	assert.False(t, f.attended(t, classC.ID))

	records, err := f.svc.Attendance(f.ctx, tchr.ID, may2)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.False(t, records[2].WasPresent)

	// no change at all: delta 0, the current entry is returned
	res, err = f.svc.SubmitAttendance(f.ctx, tchr.ID, may2, []ledger.ClassAttendance{{ClassID: classA.ID, WasPresent: true}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Delta)
	assert.Equal(t, 2, res.Entry.HoursAdded)

	assert.Equal(t, []int{3, 2, 1}, f.metrics.batches)
	f.assertConsistent(t, tchr.ID)
}

func TestService_SubmitAttendance_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	other := f.teacher(t, "other")
	classA := f.class(t, tchr, may2, 1, false)
	classB := f.class(t, tchr, may2, 2, true)
	foreign := f.class(t, other, may2, 1, false)

	tests := []struct {
		name    string
		entries []ledger.ClassAttendance
		wantErr error
	}{
		{"unknown class", []ledger.ClassAttendance{{classA.ID, true}, {classB.ID, false}, {999, true}}, ledger.ErrClassNotFound},
		{"class of another teacher", []ledger.ClassAttendance{{classA.ID, true}, {classB.ID, false}, {foreign.ID, true}}, ledger.ErrClassNotFound},
		{"invalid class id", []ledger.ClassAttendance{{classA.ID, true}, {0, true}}, ledger.ErrClassNotFound},
		{"empty batch", nil, ledger.ErrEmptyBatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitAttendance(f.ctx, tchr.ID, may2, tt.entries)
			assert.Equal(t, tt.wantErr, err)

			assert.False(t, f.attended(t, classA.ID))
			assert.True(t, f.attended(t, classB.ID))
			assert.False(t, f.attended(t, foreign.ID))
			assert.Equal(t, 1, f.monthlyHours(t, tchr.ID))
			records, err := f.svc.Attendance(f.ctx, tchr.ID, may2)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestService_SubmitAttendance_Duplicate(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	cls := f.class(t, tchr, may2, 1, false)

	_, err := f.svc.SubmitAttendance(f.ctx, tchr.ID, may2, []ledger.ClassAttendance{{cls.ID, true}, {cls.ID, false}})
	require.Error(t, err)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Contains(t, vErr.FieldErrors(), "classes")
	assert.False(t, f.attended(t, cls.ID))
}

func TestService_SubmitAttendance_OtherDay(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	onMay1 := f.class(t, tchr, may1, 1, false)
	onMay2 := f.class(t, tchr, may2, 1, false)

	_, err := f.svc.SubmitAttendance(f.ctx, tchr.ID, may2, []ledger.ClassAttendance{{onMay2.ID, true}, {onMay1.ID, true}})
	require.Error(t, err)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Contains(t, vErr.FieldErrors(), "classes")
	assert.False(t, f.attended(t, onMay1.ID))
	assert.False(t, f.attended(t, onMay2.ID))
	assert.Equal(t, 0, f.dailyHours(t, tchr.ID, may2))

	// submitted with its own date, the hour lands where unmarking looks for it
	_, err = f.svc.SubmitAttendance(f.ctx, tchr.ID, may1, []ledger.ClassAttendance{{onMay1.ID, true}})
	require.NoError(t, err)
	assert.Equal(t, 1, f.dailyHours(t, tchr.ID, may1))

	_, err = f.svc.SetAttendance(f.ctx, onMay1.ID, false, tchr)
	require.NoError(t, err)
	assert.Equal(t, 0, f.dailyHours(t, tchr.ID, may1))
	assert.Equal(t, 0, f.monthlyHours(t, tchr.ID))
	f.assertConsistent(t, tchr.ID)
}

func TestService_SubmitAttendance_DailyCap(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	_, err := f.svc.AddHours(f.ctx, tchr.ID, may2, 6)
	require.NoError(t, err)
	classA := f.class(t, tchr, may2, 1, false)
	classB := f.class(t, tchr, may2, 2, false)

	_, err = f.svc.SubmitAttendance(f.ctx, tchr.ID, may2, []ledger.ClassAttendance{{classA.ID, true}, {classB.ID, true}})
	assert.Equal(t, ledger.ErrDailyCapExceeded, err)
	assert.False(t, f.attended(t, classA.ID))
	assert.False(t, f.attended(t, classB.ID))
	assert.Equal(t, 6, f.monthlyHours(t, tchr.ID))
	assert.Equal(t, 1, f.metrics.capRejected["submit_attendance"])
}

func TestService_CreateClass(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	room := testutil.CreateClassroom(t, f.classrooms, "A", 1)
	newClass := func(date core.Date, period int, attended bool) schedule.ScheduledClass {
		return schedule.ScheduledClass{TeacherID: tchr.ID, ClassroomID: room.ID, Period: period, Date: date, Attended: attended}
	}

	cls, err := f.svc.CreateClass(f.ctx, newClass(may2, 1, false))
	require.NoError(t, err)
	assert.False(t, cls.Attended)
	assert.Equal(t, 0, f.monthlyHours(t, tchr.ID))

	cls, err = f.svc.CreateClass(f.ctx, newClass(may2, 2, true))
	require.NoError(t, err)
	assert.True(t, cls.Attended)
	assert.True(t, f.attended(t, cls.ID))
	assert.Equal(t, 1, f.dailyHours(t, tchr.ID, may2))
	assert.Equal(t, 1, f.monthlyHours(t, tchr.ID))
	assert.Equal(t, []bool{true}, f.metrics.toggles)

	// a full day rejects the class as a whole
	_, err = f.svc.AddHours(f.ctx, tchr.ID, may1, ledger.MaxDailyHours)
	require.NoError(t, err)
	_, err = f.svc.CreateClass(f.ctx, newClass(may1, 1, true))
	assert.Equal(t, ledger.ErrDailyCapExceeded, err)
	classes, err := f.classes.QueryClasses(f.ctx, schedule.QueryFilter{TeacherID: tchr.ID, Date: may1})
	require.NoError(t, err)
	assert.Empty(t, classes)
	assert.Equal(t, 1, f.metrics.capRejected["create_class"])

	_, err = f.svc.CreateClass(f.ctx, schedule.ScheduledClass{TeacherID: 999, ClassroomID: room.ID, Period: 1, Date: may2})
	assert.Equal(t, ledger.ErrTeacherNotFound, err)

	f.assertConsistent(t, tchr.ID)
}

func TestService_OutsideCurrentMonth(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")

	res, err := f.svc.AddHours(f.ctx, tchr.ID, apr30, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Entry.HoursAdded)
	assert.Equal(t, 0, res.Teacher.MonthlyHours)
	f.assertConsistent(t, tchr.ID)

	cls := f.class(t, tchr, apr30, 1, true)
	assert.Equal(t, 5, f.dailyHours(t, tchr.ID, apr30))
	_, err = f.svc.SetAttendance(f.ctx, cls.ID, false, tchr)
	require.NoError(t, err)
	assert.Equal(t, 4, f.dailyHours(t, tchr.ID, apr30))

	_, err = f.svc.AddHours(f.ctx, tchr.ID, may2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, f.monthlyHours(t, tchr.ID))
	f.assertConsistent(t, tchr.ID)

	april, err := f.svc.MonthlyTotal(f.ctx, tchr.ID, core.Month{Year: 2024, Month: time.April})
	require.NoError(t, err)
	assert.Equal(t, 4, april)
}

// TestService_CacheMatchesLedger runs random writes through every path and checks that
// each day's entry is its manual hours plus one hour per attended class of that day,
// and that the cached total matches the current month.
func TestService_CacheMatchesLedger(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	days := []core.Date{apr30, may1, may2, core.NewDate(2024, 5, 3)}
	rnd := rand.New(rand.NewSource(42))

	var classes []schedule.ScheduledClass
	for _, d := range days {
		for p := schedule.MinPeriod; p <= schedule.MaxPeriod; p++ {
			// some classes are created attended
			classes = append(classes, f.class(t, tchr, d, p, rnd.Intn(4) == 0))
		}
	}

	manual := make(map[core.Date]int)
	for i := 0; i < 400; i++ {
		switch rnd.Intn(3) {
		case 0:
			d, h := days[rnd.Intn(len(days))], rnd.Intn(4)+1
			if _, err := f.svc.AddHours(f.ctx, tchr.ID, d, h); err == nil {
				manual[d] += h
			}
		case 1:
			c := classes[rnd.Intn(len(classes))]
			_, _ = f.svc.SetAttendance(f.ctx, c.ID, rnd.Intn(2) == 0, tchr)
		case 2:
			// one batch in four is dated on another day than its classes
			day, date := rnd.Intn(len(days)), days[rnd.Intn(len(days))]
			if rnd.Intn(4) != 0 {
				date = days[day]
			}
			batch := make([]ledger.ClassAttendance, 0, 3)
			for _, p := range rnd.Perm(schedule.MaxPeriod)[:3] {
				batch = append(batch, ledger.ClassAttendance{
					ClassID:    classes[day*schedule.MaxPeriod+p].ID,
					WasPresent: rnd.Intn(2) == 0,
				})
			}
			_, _ = f.svc.SubmitAttendance(f.ctx, tchr.ID, date, batch)
		}
	}

	f.assertConsistent(t, tchr.ID)
	for i, d := range days {
		var attended int
		for _, c := range classes[i*schedule.MaxPeriod : (i+1)*schedule.MaxPeriod] {
			if f.attended(t, c.ID) {
				attended++
			}
		}
		hours := f.dailyHours(t, tchr.ID, d)
		assert.Equal(t, manual[d]+attended, hours, "ledger of %s", d)
		assert.LessOrEqual(t, hours, ledger.MaxDailyHours)
	}
}

func TestService_MonthlyTotal(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	for _, add := range []struct {
		date  core.Date
		hours int
	}{
		{core.NewDate(2024, 4, 30), 4},
		{may1, 5},
		{core.NewDate(2024, 5, 31), 2},
		{core.NewDate(2024, 6, 1), 1},
	} {
		_, err := f.svc.AddHours(f.ctx, tchr.ID, add.date, add.hours)
		require.NoError(t, err)
	}

	total, err := f.svc.MonthlyTotal(f.ctx, tchr.ID, core.Month{})
	require.NoError(t, err)
	assert.Equal(t, 7, total)

	total, err = f.svc.MonthlyTotal(f.ctx, tchr.ID, core.Month{Year: 2024, Month: time.April})
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	entries, err := f.svc.DailyEntries(f.ctx, tchr.ID, core.Month{Year: 2024, Month: time.May})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, may1, entries[0].Date)

	total, err = f.svc.MonthlyTotal(f.ctx, 999, core.Month{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestService_Reconcile(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	_, err := f.svc.AddHours(f.ctx, tchr.ID, may1, 4)
	require.NoError(t, err)
	require.NoError(t, f.teachers.SetMonthlyHours(f.ctx, tchr.ID, 9))

	report, err := f.svc.Verify(f.ctx, tchr.ID, core.Month{})
	require.NoError(t, err)
	assert.True(t, report.Drift)
	assert.False(t, report.Reconciled)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 9, report.Cached)
	assert.Equal(t, 9, f.monthlyHours(t, tchr.ID))

	report, err = f.svc.Reconcile(f.ctx, tchr.ID, core.Month{})
	require.NoError(t, err)
	assert.True(t, report.Reconciled)
	assert.Equal(t, 4, f.monthlyHours(t, tchr.ID))
	assert.Equal(t, []int{-5}, f.metrics.reconciled)

	// a new month starts with no entries: the running total resets
	f.clock.Set(time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC))
	report, err = f.svc.Reconcile(f.ctx, tchr.ID, core.Month{})
	require.NoError(t, err)
	assert.True(t, report.Reconciled)
	assert.Equal(t, 0, f.monthlyHours(t, tchr.ID))
	assert.Empty(t, report.Entries)

	_, err = f.svc.Reconcile(f.ctx, 999, core.Month{})
	assert.Equal(t, ledger.ErrTeacherNotFound, err)
}

func TestService_ContextCancelled(t *testing.T) {
	f := newFixture(t)
	tchr := f.teacher(t, "dlevi")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.AddHours(ctx, tchr.ID, may1, 2)
	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.Equal(t, 0, f.monthlyHours(t, tchr.ID))
}
