package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HasAnyRole reports whether any of the required roles is held.
// It fails closed: an empty held set never passes. An empty required set
// means "no role requirement" and passes for any authenticated caller.
func HasAnyRole(held, required []string) bool {
	if len(held) == 0 {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, req := range required {
		for _, role := range held {
			if role == req {
				return true
			}
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool   { return u.HasRole(RoleAdmin) }
func (u *User) IsTeacher() bool { return u.HasRole(RoleTeacher) }
func (u *User) IsStudent() bool { return u.HasRole(RoleStudent) }

// Profile carries the student-side attributes of a User. It exists for every
// user but its fields are only set for students.
type Profile struct {
	UserID           string      `json:"user_id"`
	RegistrationCode null.String `json:"registration_code"`
	GradeLevel       null.String `json:"grade_level"`
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name             string   `json:"name" validate:"required"`
	Email            string   `json:"email" validate:"required,email"`
	Password         string   `json:"password" validate:"required"`
	PasswordConfirm  string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles            []string `json:"roles" validate:"omitempty,allroles"`
	RegistrationCode string   `json:"registration_code"`
	GradeLevel       string   `json:"grade_level" validate:"omitempty,gradelevel"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.RegistrationCode = core.CleanString(nu.RegistrationCode, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	uu.Name = core.CleanString(uu.Name)
	if uu.Name == "" {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

// UpdateProfile defines what information may be provided to modify a student Profile.
type UpdateProfile struct {
	RegistrationCode string `json:"registration_code"`
	GradeLevel       string `json:"grade_level" validate:"omitempty,gradelevel"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.RegistrationCode = core.CleanString(up.RegistrationCode, true /* lower */)
	up.GradeLevel = core.CleanString(up.GradeLevel, true /* lower */)
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
