package exportsvc

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
)

const CalendarContentType = "text/calendar; charset=utf-8"

// ScheduleCalendar renders the classes of a teacher as an iCalendar feed, one event per period.
// Period times come from the school configuration.
func ScheduleCalendar(conf *core.Config, t teacher.Teacher, classes []schedule.ScheduledClass, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(fmt.Sprintf("-//%s//Schedule//EN", conf.AppName))

	for _, c := range classes {
		start, end := conf.School.PeriodBounds(c.Date, c.Period)

		event := cal.AddEvent(fmt.Sprintf("class-%d@%s", c.ID, conf.AppName))
		event.SetDtStampTime(now.UTC())
		event.SetStartAt(start.UTC())
		event.SetEndAt(end.UTC())
		event.SetSummary(classSummary(c))
		if c.Classroom != nil {
			event.SetLocation(c.Classroom.BuildingName + fmt.Sprintf(", floor %d", c.Classroom.FloorNumber))
		}
		event.SetDescription(fmt.Sprintf("Period %d taught by %s", c.Period, t.FullName()))
	}
	return cal.Serialize()
}

func classSummary(c schedule.ScheduledClass) string {
	if c.Classroom == nil || c.Classroom.Code() == "" {
		return fmt.Sprintf("Period %d", c.Period)
	}
	return fmt.Sprintf("Period %d - %s", c.Period, c.Classroom.Code())
}
