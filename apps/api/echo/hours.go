package echoapi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
	exportsvc "github.com/trezcool/mahudhurio/services/export"
)

// hoursApi serves the ledger of the authenticated teacher under /teachers/me.
type hoursApi struct {
	conf      *core.Config
	teachers  *teacher.Service
	schedules *schedule.Service
	ledger    *ledger.Service
	now       func() time.Time
}

func registerHoursAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := hoursApi{
		conf:      s.deps.Conf,
		teachers:  s.deps.TeacherSvc,
		schedules: s.deps.ScheduleSvc,
		ledger:    s.deps.LedgerSvc,
		now:       time.Now,
	}

	mg := g.Group("/teachers/me", jwt)
	mg.PATCH("/hours", api.addHours)
	mg.GET("/hours", api.monthlyHours)
	mg.GET("/hours/export.xlsx", api.exportXLSX)
	mg.GET("/hours/export.csv", api.exportCSV)
	mg.PATCH("/attendance", api.submitAttendance)
	mg.GET("/attendance", api.attendance)
	mg.GET("/schedule", api.dailySchedule)
	mg.GET("/schedule.ics", api.scheduleCalendar)
}

func (api *hoursApi) addHours(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}

	var data AddHoursRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddHoursRequest")
	}
	hours, err := data.Amount()
	if err != nil {
		return err
	}

	res, err := api.ledger.AddHours(ctx.Request().Context(), t.ID, data.Date, hours)
	if err != nil {
		return errors.Wrap(err, "adding hours")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *hoursApi) monthlyHours(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	month, err := monthParam(ctx, "month")
	if err != nil {
		return err
	}

	report, current, err := api.monthlyReport(ctx, t, month)
	if err != nil {
		return err
	}
	res := HoursResponse{
		Month:   report.Month,
		Total:   report.Total,
		Entries: report.Entries,
	}
	if current {
		res.Cached = &report.Cached
		res.Drift = report.Drift
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *hoursApi) exportXLSX(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	month, err := monthParam(ctx, "month")
	if err != nil {
		return err
	}

	report, _, err := api.monthlyReport(ctx, t, month)
	if err != nil {
		return err
	}
	buf, err := exportsvc.HoursWorkbook(t, report)
	if err != nil {
		return errors.Wrap(err, "building workbook")
	}

	attachment(ctx, exportsvc.HoursFilename(t, report.Month, "xlsx"))
	return ctx.Blob(http.StatusOK, exportsvc.XLSXContentType, buf.Bytes())
}

func (api *hoursApi) exportCSV(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	month, err := monthParam(ctx, "month")
	if err != nil {
		return err
	}
	if month.IsZero() {
		month = api.ledger.CurrentMonth()
	}

	entries, err := api.ledger.DailyEntries(ctx.Request().Context(), t.ID, month)
	if err != nil {
		return errors.Wrap(err, "querying daily entries")
	}
	out, err := exportsvc.HoursCSV(entries)
	if err != nil {
		return errors.Wrap(err, "building csv")
	}

	attachment(ctx, exportsvc.HoursFilename(t, month, "csv"))
	return ctx.Blob(http.StatusOK, exportsvc.CSVContentType, out)
}

func (api *hoursApi) submitAttendance(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}

	var data AttendanceRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttendanceRequest")
	}

	res, err := api.ledger.SubmitAttendance(ctx.Request().Context(), t.ID, data.Date, data.Classes)
	if err != nil {
		return errors.Wrap(err, "submitting attendance")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *hoursApi) attendance(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	date, err := dateParam(ctx, "date")
	if err != nil {
		return err
	}
	if date.IsZero() {
		date = api.ledger.Today()
	}

	records, err := api.ledger.Attendance(ctx.Request().Context(), t.ID, date)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if records == nil {
		records = []ledger.AttendanceRecord{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *hoursApi) dailySchedule(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	date, err := dateParam(ctx, "date")
	if err != nil {
		return err
	}
	if date.IsZero() {
		date = api.ledger.Today()
	}

	rctx := ctx.Request().Context()
	classes, err := api.schedules.DailySchedule(rctx, t.ID, date)
	if err != nil {
		return errors.Wrap(err, "querying daily schedule")
	}
	hours, err := api.ledger.DailyHours(rctx, t.ID, date)
	if err != nil {
		return errors.Wrap(err, "getting daily hours")
	}
	if classes == nil {
		classes = []schedule.ScheduledClass{}
	}
	return ctx.JSON(http.StatusOK, ScheduleResponse{Date: date, HoursAdded: hours, Classes: classes})
}

func (api *hoursApi) scheduleCalendar(ctx echo.Context) error {
	t, err := getContextTeacher(ctx, api.teachers)
	if err != nil {
		return errors.Wrap(err, "getting context teacher")
	}
	from, err := dateParam(ctx, "from")
	if err != nil {
		return err
	}
	to, err := dateParam(ctx, "to")
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return core.NewFieldValidationError("to", "must not be before from")
	}

	classes, err := api.schedules.Query(ctx.Request().Context(), schedule.QueryFilter{TeacherID: t.ID, From: from, To: to})
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}

	cal := exportsvc.ScheduleCalendar(api.conf, t, classes, api.now())
	attachment(ctx, fmt.Sprintf("schedule-%s.ics", t.Username))
	return ctx.Blob(http.StatusOK, exportsvc.CalendarContentType, []byte(cal))
}

// monthlyReport verifies the cache against the ledger for the current month.
// Other months only carry the aggregated total: the cache does not cover them.
func (api *hoursApi) monthlyReport(ctx echo.Context, t teacher.Teacher, month core.Month) (ledger.MonthlyReport, bool, error) {
	current := api.ledger.CurrentMonth()
	if month.IsZero() {
		month = current
	}
	rctx := ctx.Request().Context()

	if month == current {
		report, err := api.ledger.Verify(rctx, t.ID, month)
		if err != nil {
			return ledger.MonthlyReport{}, false, errors.Wrap(err, "verifying monthly hours")
		}
		return report, true, nil
	}

	entries, err := api.ledger.DailyEntries(rctx, t.ID, month)
	if err != nil {
		return ledger.MonthlyReport{}, false, errors.Wrap(err, "querying daily entries")
	}
	if entries == nil {
		entries = []ledger.DailyHourEntry{}
	}
	report := ledger.MonthlyReport{TeacherID: t.ID, Month: month, Entries: entries}
	for _, e := range entries {
		report.Total += e.HoursAdded
	}
	return report, false, nil
}

func attachment(ctx echo.Context, filename string) {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
}

type (
	// AddHoursRequest accepts the hours as a JSON number or a numeric string.
	AddHoursRequest struct {
		Hours interface{} `json:"hours"`
		Date  core.Date   `json:"date"`
	}

	AttendanceRequest struct {
		Date    core.Date                `json:"date"`
		Classes []ledger.ClassAttendance `json:"classes"`
	}

	HoursResponse struct {
		Month   core.Month              `json:"month"`
		Total   int                     `json:"total"`
		Cached  *int                    `json:"cached,omitempty"`
		Drift   bool                    `json:"drift"`
		Entries []ledger.DailyHourEntry `json:"entries"`
	}

	ScheduleResponse struct {
		Date       core.Date                 `json:"date"`
		HoursAdded int                       `json:"hours_added"`
		Classes    []schedule.ScheduledClass `json:"classes"`
	}
)

// Amount returns the requested hours as an integer; range checks are left to the ledger.
func (r AddHoursRequest) Amount() (int, error) {
	switch v := r.Hours.(type) {
	case nil:
		return 0, core.NewFieldValidationError("hours", "this field is required")
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || v > math.MaxInt32 || v < math.MinInt32 {
			return 0, ledger.ErrInvalidAmount
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, ledger.ErrInvalidAmount
		}
		return n, nil
	default:
		return 0, ledger.ErrInvalidAmount
	}
}
