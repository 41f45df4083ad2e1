package schedule

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/teacher"
)

const (
	MinPeriod = 1
	MaxPeriod = 6
)

var (
	ErrNotFound     = errors.New("class not found")
	ErrUnauthorized = errors.New("you are not the teacher of this class")
)

// ScheduledClass is one period taught by a teacher in a classroom on a date.
type ScheduledClass struct {
	ID          int                  `json:"id"`
	TeacherID   int                  `json:"teacher_id"`
	ClassroomID int                  `json:"classroom_id"`
	Period      int                  `json:"period"`
	Date        core.Date            `json:"date"`
	Attended    bool                 `json:"attended"`
	Classroom   *classroom.Classroom `json:"classroom,omitempty"`
}

// NewClass schedules a class for the acting teacher; the classroom is looked up by its code.
type NewClass struct {
	GradeLetter string    `json:"grade_letter" validate:"omitempty,max=1"`
	ClassNumber *int      `json:"class_number"`
	Period      int       `json:"period" validate:"required,min=1,max=6"`
	Date        core.Date `json:"date"`
	Attended    bool      `json:"attended"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.GradeLetter = core.CleanString(nc.GradeLetter)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	if nc.Date.IsZero() {
		return core.NewFieldValidationError("date", "this field is required")
	}
	return nil
}

// QueryFilter narrows QueryClasses; zero fields are ignored.
type QueryFilter struct {
	TeacherID int
	Date      core.Date
	From      core.Date // inclusive
	To        core.Date // inclusive
}

type Repository interface {
	CreateClass(ctx context.Context, c ScheduledClass) (ScheduledClass, error)
	GetClass(ctx context.Context, id int) (ScheduledClass, error)
	// QueryClasses orders by date then period unless orderings are given.
	// Allowed ordering fields: id, date, period.
	QueryClasses(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]ScheduledClass, error)
	DeleteClass(ctx context.Context, id int) error
}

// CanModify is the ownership policy of a ScheduledClass: only its own teacher may change it.
func CanModify(actor teacher.Teacher, c ScheduledClass) bool {
	return actor.ID != 0 && actor.ID == c.TeacherID
}

// Creator persists new classes. A class created attended must have its hour accrued
// in the same write, which the ledger service does.
type Creator interface {
	CreateClass(ctx context.Context, c ScheduledClass) (ScheduledClass, error)
}

type Service struct {
	repo       Repository
	classrooms classroom.Repository
	creator    Creator
}

func NewService(repo Repository, classrooms classroom.Repository, creator Creator) *Service {
	return &Service{repo: repo, classrooms: classrooms, creator: creator}
}

func (svc *Service) Create(ctx context.Context, actor teacher.Teacher, nc NewClass) (ScheduledClass, error) {
	room, err := svc.classrooms.GetClassroomByCode(ctx, nc.GradeLetter, nc.ClassNumber)
	if err != nil {
		return ScheduledClass{}, errors.Wrap(err, "finding classroom")
	}
	c := ScheduledClass{
		TeacherID:   actor.ID,
		ClassroomID: room.ID,
		Period:      nc.Period,
		Date:        nc.Date,
		Attended:    nc.Attended,
	}
	c, err = svc.creator.CreateClass(ctx, c)
	if err != nil {
		return ScheduledClass{}, errors.Wrap(err, "creating class")
	}
	c.Classroom = &room
	return c, nil
}

func (svc *Service) Get(ctx context.Context, id int) (ScheduledClass, error) {
	return svc.repo.GetClass(ctx, id)
}

// GetOwned returns the class if `actor` may modify it.
func (svc *Service) GetOwned(ctx context.Context, actor teacher.Teacher, id int) (ScheduledClass, error) {
	c, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return ScheduledClass{}, err
	}
	if !CanModify(actor, c) {
		return ScheduledClass{}, ErrUnauthorized
	}
	return c, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]ScheduledClass, error) {
	return svc.repo.QueryClasses(ctx, filter, orderings...)
}

// DailySchedule returns the classes of `teacherID` on `date` ordered by period.
func (svc *Service) DailySchedule(ctx context.Context, teacherID int, date core.Date) ([]ScheduledClass, error) {
	return svc.repo.QueryClasses(ctx, QueryFilter{TeacherID: teacherID, Date: date})
}

func (svc *Service) DeleteOwned(ctx context.Context, actor teacher.Teacher, id int) error {
	if _, err := svc.GetOwned(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteClass(ctx, id)
}
