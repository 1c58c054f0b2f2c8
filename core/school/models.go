package school

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

// Activity kinds
const (
	ActivityIndividual = "individual"
	ActivityTeam       = "team"
)

type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// TeacherID is a display/default-owner convenience; the TeacherSubject
	// association is the single source of truth for authorization.
	TeacherID  null.String `json:"teacher_id"`
	GradeLevel null.String `json:"grade_level"`
	Capacity   int         `json:"capacity"`
	CreatedAt  time.Time   `json:"created_at"` // UTC
	UpdatedAt  time.Time   `json:"updated_at"` // UTC
}

// TeacherSubject is the authoritative many-to-many ownership link between
// teachers and subjects.
type TeacherSubject struct {
	TeacherID string `json:"teacher_id"`
	SubjectID string `json:"subject_id"`
}

// Enrollment is a student's registered membership in a subject; it is the
// sole basis for student-side access checks and activity visibility.
type Enrollment struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	SubjectID string    `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Activity struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
	// GradeLevel is copied from the subject at creation time, never
	// user-supplied.
	GradeLevel     null.String `json:"grade_level"`
	Kind           string      `json:"kind"`
	TeacherID      string      `json:"teacher_id"` // creator
	Deadline       null.Time   `json:"deadline"`
	Period         null.String `json:"period"`
	EvaluationKind null.String `json:"evaluation_kind"`
	Attachment     null.String `json:"attachment"`
	CreatedAt      time.Time   `json:"created_at"` // UTC
	UpdatedAt      time.Time   `json:"updated_at"` // UTC
}

// ActivityGrade is the single record backing both a student's submission and
// their grade for an activity; at most one row exists per
// (activity, enrollment) pair.
type ActivityGrade struct {
	ID           string       `json:"id"`
	ActivityID   string       `json:"activity_id"`
	EnrollmentID string       `json:"enrollment_id"`
	Grade        null.Float64 `json:"grade"`
	GradedBy     null.String  `json:"graded_by"`
	SubmittedBy  null.String  `json:"submitted_by"`
	TeamMembers  null.String  `json:"team_members"`
	Attachment   null.String  `json:"attachment"`
	CreatedAt    time.Time    `json:"created_at"` // UTC
	UpdatedAt    time.Time    `json:"updated_at"` // UTC
}

// NewSubject contains information needed to create a new Subject.
type NewSubject struct {
	Name       string `json:"name" validate:"required"`
	TeacherID  string `json:"teacher_id"`
	GradeLevel string `json:"grade_level" validate:"omitempty,gradelevel"`
	Capacity   int    `json:"capacity" validate:"omitempty,gt=0"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.GradeLevel = core.CleanString(ns.GradeLevel, true /* lower */)
	return validate.Struct(ns)
}

// UpdateSubject defines what information may be provided to modify an
// existing Subject. Empty fields keep their current value; GradeLevel may be
// cleared explicitly via ClearGradeLevel.
type UpdateSubject struct {
	Name            string `json:"name"`
	TeacherID       string `json:"teacher_id"`
	GradeLevel      string `json:"grade_level" validate:"omitempty,gradelevel"`
	ClearGradeLevel bool   `json:"clear_grade_level"`
	Capacity        int    `json:"capacity" validate:"omitempty,gt=0"`
}

func (us *UpdateSubject) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.GradeLevel = core.CleanString(us.GradeLevel, true /* lower */)
	return validate.Struct(us)
}

// NewActivity contains information needed to create a new Activity.
type NewActivity struct {
	SubjectID      string    `json:"subject_id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	Kind           string    `json:"kind" validate:"required,oneof=individual team"`
	Deadline       time.Time `json:"deadline"`
	Period         string    `json:"period"`
	EvaluationKind string    `json:"evaluation_kind"`
	Attachment     string    `json:"attachment"`
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Kind = core.CleanString(na.Kind, true /* lower */)
	return validate.Struct(na)
}

// UpdateActivity defines what information may be provided to modify an
// existing Activity. The owning subject and the copied grade level are fixed
// at creation.
type UpdateActivity struct {
	Name           string    `json:"name"`
	Kind           string    `json:"kind" validate:"omitempty,oneof=individual team"`
	Deadline       time.Time `json:"deadline"`
	Period         string    `json:"period"`
	EvaluationKind string    `json:"evaluation_kind"`
	Attachment     string    `json:"attachment"`
}

func (ua *UpdateActivity) Validate(validate *validator.Validate) error {
	ua.Name = core.CleanString(ua.Name)
	ua.Kind = core.CleanString(ua.Kind, true /* lower */)
	return validate.Struct(ua)
}

// NewSubmission is a student's hand-in for an activity.
type NewSubmission struct {
	SubmittedBy string `json:"submitted_by" validate:"required"`
	TeamMembers string `json:"team_members"`
	Attachment  string `json:"attachment"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.SubmittedBy = core.CleanString(ns.SubmittedBy)
	ns.TeamMembers = core.CleanString(ns.TeamMembers)
	return validate.Struct(ns)
}

// GradeInput is a teacher's mark for a student-activity pair.
type GradeInput struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Grade        float64 `json:"grade" validate:"gte=0"`
}

func (gi *GradeInput) Validate(validate *validator.Validate) error {
	return validate.Struct(gi)
}

// SubjectFilter narrows subject queries; fields combine with AND.
type SubjectFilter struct {
	TeacherID  string // subjects linked via TeacherSubject
	StudentID  string // subjects the student is enrolled in
	GradeLevel string
}

func (f *SubjectFilter) IsEmpty() bool {
	return f.TeacherID == "" && f.StudentID == "" && f.GradeLevel == ""
}
