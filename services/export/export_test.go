package exportsvc

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
)

var (
	dana  = teacher.Teacher{ID: 3, Username: "dlevi", FirstName: "Dana", LastName: "Levi"}
	march = core.Month{Year: 2024, Month: time.March}

	entries = []ledger.DailyHourEntry{
		{ID: 1, TeacherID: 3, Date: core.NewDate(2024, 3, 4), HoursAdded: 2},
		{ID: 2, TeacherID: 3, Date: core.NewDate(2024, 3, 5), HoursAdded: 7},
	}
)

func TestHoursFilename(t *testing.T) {
	assert.Equal(t, "hours-dlevi-2024-03.csv", HoursFilename(dana, march, "csv"))
}

func TestHoursCSV(t *testing.T) {
	out, err := HoursCSV(entries)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,weekday,hours_added", lines[0])
	assert.Equal(t, "2024-03-04,Monday,2", lines[1])

	var rows []*HoursRow
	require.NoError(t, gocsv.UnmarshalBytes(out, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 7, rows[1].HoursAdded)
}

func TestHoursCSV_NoEntries(t *testing.T) {
	out, err := HoursCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "date,weekday,hours_added", strings.TrimSpace(string(out)))
}

func TestHoursWorkbook(t *testing.T) {
	report := ledger.MonthlyReport{TeacherID: 3, Month: march, Total: 9, Cached: 9, Entries: entries}

	buf, err := HoursWorkbook(dana, report)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{hoursSheet}, f.GetSheetList())
	rows, err := f.GetRows(hoursSheet)
	require.NoError(t, err)

	assert.Equal(t, []string{"Teacher", "Dana Levi"}, rows[0])
	assert.Equal(t, []string{"Month", "2024-03"}, rows[2])
	assert.Equal(t, []string{"Total hours", "9"}, rows[3])
	assert.Equal(t, []string{"Date", "Weekday", "Hours"}, rows[5])
	assert.Equal(t, []string{"2024-03-05", "Tuesday", "7"}, rows[7])
	assert.Len(t, rows, 8)
}

func TestScheduleCalendar(t *testing.T) {
	conf := core.NewTestConfig()
	room := classroom.Classroom{ID: 1, GradeLetter: null.StringFrom("B"), ClassNumber: null.IntFrom(3), BuildingName: "North", FloorNumber: 2}
	classes := []schedule.ScheduledClass{
		{ID: 10, TeacherID: 3, ClassroomID: 1, Period: 1, Date: core.NewDate(2024, 3, 4), Classroom: &room},
		{ID: 11, TeacherID: 3, ClassroomID: 1, Period: 3, Date: core.NewDate(2024, 3, 4)},
	}

	out := ScheduleCalendar(conf, dana, classes, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "class-10@Mahudhurio", first.Id())
	assert.Equal(t, "Period 1 - B3", first.GetProperty(ics.ComponentPropertySummary).Value)
	assert.Equal(t, "North, floor 2", first.GetProperty(ics.ComponentPropertyLocation).Value)
	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), start.UTC())

	second := events[1]
	assert.Equal(t, "Period 3", second.GetProperty(ics.ComponentPropertySummary).Value)
	end, err := second.GetEndAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 35, 0, 0, time.UTC), end.UTC())
}
