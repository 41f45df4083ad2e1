package teacher

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/mahudhurio/core"
)

// Roles
const (
	RoleAdmin   = "admin:"
	RoleTeacher = "teacher:"
)

var AllRoles = []string{RoleAdmin, RoleTeacher}

type Teacher struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	MonthlyHours int       `json:"monthly_hours"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (t *Teacher) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	t.PasswordHash = hash
	return nil
}

func (t *Teacher) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(t.PasswordHash, []byte(pwd))
}

func (t *Teacher) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

func (t *Teacher) RoleStartsWith(prefix string) bool {
	for _, role := range t.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (t *Teacher) IsAdmin() bool {
	return t.RoleStartsWith(RoleAdmin)
}

// NewTeacher contains information needed to register a new Teacher.
type NewTeacher struct {
	Username string `json:"username" validate:"required,min=3,max=150,alphanum_"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,max=150"`
	LastName string `json:"last_name" validate:"omitempty,max=150"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (nt *NewTeacher) Clean() {
	nt.Username = core.CleanString(nt.Username, true /* lower */)
	nt.Name = core.CleanString(nt.Name)
	nt.LastName = core.CleanString(nt.LastName)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
}

func (nt *NewTeacher) Validate(validate *validator.Validate, svc *Service) error {
	nt.Clean()
	if err := validate.Struct(nt); err != nil {
		return err
	}
	return svc.CheckUniqueness(nt.Username)
}
