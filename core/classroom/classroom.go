package classroom

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
)

var (
	ErrNotFound = errors.New("classroom not found")
	ErrExists   = errors.New("a classroom with this grade letter and class number already exists")
)

// Classroom is reference data: a physical room identified by grade letter and class number.
type Classroom struct {
	ID           int         `json:"id"`
	GradeLetter  null.String `json:"grade_letter"`
	ClassNumber  null.Int    `json:"class_number"`
	BuildingName string      `json:"building_name"`
	FloorNumber  int         `json:"floor_number"`
}

// Code is the short display name, e.g. "B3".
func (c Classroom) Code() string {
	code := c.GradeLetter.String
	if c.ClassNumber.Valid {
		code += strconv.Itoa(c.ClassNumber.Int)
	}
	return code
}

type NewClassroom struct {
	GradeLetter  string `json:"grade_letter" validate:"omitempty,max=1"`
	ClassNumber  *int   `json:"class_number" validate:"omitempty,min=1"`
	BuildingName string `json:"building_name" validate:"required,max=100"`
	FloorNumber  *int   `json:"floor_number" validate:"required"`
}

func (nc *NewClassroom) Validate(validate *validator.Validate) error {
	nc.GradeLetter = core.CleanString(nc.GradeLetter)
	nc.BuildingName = core.CleanString(nc.BuildingName)
	return validate.Struct(nc)
}

type Repository interface {
	CreateClassroom(ctx context.Context, c Classroom) (Classroom, error)
	GetClassroom(ctx context.Context, id int) (Classroom, error)
	// GetClassroomByCode treats an empty gradeLetter and a nil classNumber as NULL.
	GetClassroomByCode(ctx context.Context, gradeLetter string, classNumber *int) (Classroom, error)
	QueryClassrooms(ctx context.Context) ([]Classroom, error)
	DeleteClassroom(ctx context.Context, id int) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nc NewClassroom) (Classroom, error) {
	c := Classroom{
		GradeLetter:  null.NewString(nc.GradeLetter, nc.GradeLetter != ""),
		ClassNumber:  null.IntFromPtr(nc.ClassNumber),
		BuildingName: nc.BuildingName,
	}
	if nc.FloorNumber != nil {
		c.FloorNumber = *nc.FloorNumber
	}
	c, err := svc.repo.CreateClassroom(ctx, c)
	if errors.Cause(err) == ErrExists {
		return Classroom{}, core.NewValidationError(ErrExists)
	}
	return c, err
}

func (svc *Service) Get(ctx context.Context, id int) (Classroom, error) {
	return svc.repo.GetClassroom(ctx, id)
}

func (svc *Service) GetByCode(ctx context.Context, gradeLetter string, classNumber *int) (Classroom, error) {
	return svc.repo.GetClassroomByCode(ctx, core.CleanString(gradeLetter), classNumber)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Classroom, error) {
	return svc.repo.QueryClassrooms(ctx)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteClassroom(ctx, id)
}
