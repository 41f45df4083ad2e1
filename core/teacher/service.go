package teacher

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound       = errors.New("teacher not found")
	ErrUsernameExists = errors.New("a teacher with this username already exists")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, id int) (Teacher, error)
		// GetTeacherByUsername matches the username or the email.
		GetTeacherByUsername(ctx context.Context, username string) (Teacher, error)
		QueryTeachers(ctx context.Context, activeOnly bool) ([]Teacher, error)
		// UpdateTeacher saves the profile, password, roles and last login. MonthlyHours is owned by the ledger.
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		DeleteTeacher(ctx context.Context, id int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckUniqueness(uname string, exclTeachers ...Teacher) error {
	t, err := svc.repo.GetTeacherByUsername(context.Background(), uname)
	switch {
	case errors.Cause(err) == ErrNotFound:
		return nil
	case err != nil:
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, excl := range exclTeachers {
		if excl.ID == t.ID {
			return nil
		}
	}
	return core.NewValidationError(ErrUsernameExists, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
}

func (svc *Service) Create(ctx context.Context, nt NewTeacher, roles ...string) (Teacher, error) {
	now := NowFunc().UTC()
	if len(roles) == 0 {
		roles = []string{RoleTeacher}
	}
	t := Teacher{
		Username:  nt.Username,
		FirstName: nt.Name,
		LastName:  nt.LastName,
		Email:     nt.Email,
		IsActive:  true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.SetPassword(nt.Password); err != nil {
		return Teacher{}, errors.Wrap(err, "setting password")
	}
	t, err := svc.repo.CreateTeacher(ctx, t)
	if errors.Cause(err) == ErrUsernameExists {
		return Teacher{}, core.NewValidationError(ErrUsernameExists, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
	}
	return t, err
}

func (svc *Service) GetByID(ctx context.Context, id int) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (Teacher, error) {
	return svc.repo.GetTeacherByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) QueryActive(ctx context.Context) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, true)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, false)
}

func (svc *Service) SetLastLogin(ctx context.Context, t Teacher) (Teacher, error) {
	now := NowFunc().UTC()
	t.LastLogin = now
	t.UpdatedAt = now
	return svc.repo.UpdateTeacher(ctx, t)
}

func (svc *Service) SetPassword(ctx context.Context, t Teacher, pwd string) (Teacher, error) {
	if err := t.SetPassword(pwd); err != nil {
		return Teacher{}, errors.Wrap(err, "setting password")
	}
	t.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateTeacher(ctx, t)
}

// Save updates or creates a Teacher from the admin CLI.
func (svc *Service) Save(ctx context.Context, t Teacher) (Teacher, error) {
	now := NowFunc().UTC()
	t.UpdatedAt = now
	if t.ID == 0 {
		t.CreatedAt = now
		return svc.repo.CreateTeacher(ctx, t)
	}
	return svc.repo.UpdateTeacher(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteTeacher(ctx, id)
}
