package school

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the acting user may not act on the resource.
	ErrForbidden = errors.New("permission denied")
	// ErrSubmissionExists is returned on a duplicate submission for the same
	// activity and enrollment.
	ErrSubmissionExists = errors.New("a submission already exists for this activity")
)

type Repository interface {
	// subjects
	CreateSubject(ctx context.Context, subj Subject, exec ...core.DBExecutor) (Subject, error)
	GetSubjectByID(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
	QuerySubjects(ctx context.Context, filter *SubjectFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Subject, error)
	UpdateSubject(ctx context.Context, subj Subject, exec ...core.DBExecutor) (Subject, error)
	DeleteSubjectsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

	// teacher-subject associations
	AddTeacherSubject(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) error
	RemoveTeacherSubject(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) error
	TeacherSubjectExists(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) (bool, error)

	// enrollments
	CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
	GetEnrollmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (Enrollment, error)
	GetEnrollment(ctx context.Context, studentID, subjectID string, exec ...core.DBExecutor) (Enrollment, error)
	QueryEnrollments(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]Enrollment, error)
	DeleteEnrollment(ctx context.Context, studentID, subjectID string, exec ...core.DBExecutor) error
	EnrollmentExists(ctx context.Context, studentID, subjectID string, exec ...core.DBExecutor) (bool, error)
	// EnrolledStudentIDs returns ids of students enrolled in the subject whose
	// profile grade level matches the given level.
	EnrolledStudentIDs(ctx context.Context, subjectID string, level core.GradeLevel, exec ...core.DBExecutor) ([]string, error)
	// StudentIDsByGradeLevel returns ids of all active students at the given level.
	StudentIDsByGradeLevel(ctx context.Context, level core.GradeLevel, exec ...core.DBExecutor) ([]string, error)

	// activities
	CreateActivity(ctx context.Context, act Activity, exec ...core.DBExecutor) (Activity, error)
	GetActivityByID(ctx context.Context, id string, exec ...core.DBExecutor) (Activity, error)
	QueryActivities(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]Activity, error)
	UpdateActivity(ctx context.Context, act Activity, exec ...core.DBExecutor) (Activity, error)
	DeleteActivitiesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	ActivityTaughtBy(ctx context.Context, activityID, teacherID string, exec ...core.DBExecutor) (bool, error)

	// grades
	CreateActivityGrade(ctx context.Context, grade ActivityGrade, exec ...core.DBExecutor) (ActivityGrade, error)
	GetActivityGradeByID(ctx context.Context, id string, exec ...core.DBExecutor) (ActivityGrade, error)
	GetActivityGradeByPair(ctx context.Context, activityID, enrollmentID string, exec ...core.DBExecutor) (ActivityGrade, error)
	QueryActivityGrades(ctx context.Context, activityID string, exec ...core.DBExecutor) ([]ActivityGrade, error)
	UpdateActivityGrade(ctx context.Context, grade ActivityGrade, exec ...core.DBExecutor) (ActivityGrade, error)
	GradeTaughtBy(ctx context.Context, gradeID, teacherID string, exec ...core.DBExecutor) (bool, error)
	GradeOwnedBy(ctx context.Context, gradeID, studentID string, exec ...core.DBExecutor) (bool, error)
}

type Service interface {
	CreateSubject(ctx context.Context, ident user.Identity, ns NewSubject) (Subject, error)
	GetSubject(ctx context.Context, ident user.Identity, id string) (Subject, error)
	QuerySubjects(ctx context.Context, ident user.Identity) ([]Subject, error)
	UpdateSubject(ctx context.Context, ident user.Identity, id string, us UpdateSubject) (Subject, error)
	DeleteSubject(ctx context.Context, ident user.Identity, id string) error
	SubjectRoster(ctx context.Context, ident user.Identity, id string) ([]Enrollment, error)

	Enroll(ctx context.Context, ident user.Identity, subjectID, studentID string) (Enrollment, error)
	Unenroll(ctx context.Context, ident user.Identity, subjectID, studentID string) error
	UpdateStudentProfile(ctx context.Context, userID string, up user.UpdateProfile) (user.Profile, error)
	ResyncSubjectEnrollments(ctx context.Context, subjectID string) error
	ResyncStudentEnrollments(ctx context.Context, studentID string) error

	CreateActivity(ctx context.Context, ident user.Identity, na NewActivity) (Activity, error)
	GetActivity(ctx context.Context, ident user.Identity, id string) (ActivityInfo, error)
	QueryActivities(ctx context.Context, ident user.Identity, subjectID string) ([]ActivityInfo, error)
	UpdateActivity(ctx context.Context, ident user.Identity, id string, ua UpdateActivity) (Activity, error)
	DeleteActivity(ctx context.Context, ident user.Identity, id string) error

	SubmitWork(ctx context.Context, ident user.Identity, activityID string, ns NewSubmission) (ActivityGrade, error)
	GradeStudent(ctx context.Context, ident user.Identity, activityID string, gi GradeInput) (ActivityGrade, error)
	GetGrade(ctx context.Context, ident user.Identity, gradeID string) (GradeInfo, error)
	ListGrades(ctx context.Context, ident user.Identity, activityID string) ([]GradeInfo, error)
}

// ActivityInfo is an Activity annotated with the caller's derived status.
// Status is only set for student callers; there is no single status for a
// teacher looking at the whole class.
type ActivityInfo struct {
	Activity
	Status *Status `json:"status,omitempty"`
}

// GradeInfo pairs an enrollment with its grade row (nil when no submission
// exists yet) and the derived status.
type GradeInfo struct {
	EnrollmentID string         `json:"enrollment_id"`
	StudentID    string         `json:"student_id"`
	Row          *ActivityGrade `json:"row,omitempty"`
	Status       Status         `json:"status"`
}

type service struct {
	db     core.Transactor
	repo   Repository
	users  user.Repository
	access *Access
	log    core.Logger
}

var _ Service = (*service)(nil)

func NewService(db core.Transactor, repo Repository, users user.Repository, log core.Logger) Service {
	return &service{
		db:     db,
		repo:   repo,
		users:  users,
		access: NewAccess(repo),
		log:    log,
	}
}

func (svc *service) CreateSubject(ctx context.Context, ident user.Identity, ns NewSubject) (Subject, error) {
	now := time.Now().UTC()
	subj := Subject{
		ID:         uuid.New().String(),
		Name:       ns.Name,
		Capacity:   ns.Capacity,
		GradeLevel: null.NewString(ns.GradeLevel, ns.GradeLevel != ""),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// the creating teacher owns the subject; an admin may assign another owner
	// or create an unowned one.
	ownerID := ns.TeacherID
	if ownerID == "" && ident.IsTeacher() {
		ownerID = ident.UserID
	}
	subj.TeacherID = null.NewString(ownerID, ownerID != "")

	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if subj, err = svc.repo.CreateSubject(ctx, subj, exec); err != nil {
			return errors.Wrap(err, "creating subject")
		}
		if ownerID != "" {
			if err = svc.repo.AddTeacherSubject(ctx, ownerID, subj.ID, exec); err != nil {
				return errors.Wrap(err, "associating owner")
			}
		}
		if subj.GradeLevel.Valid {
			svc.enrollStudentsAtLevel(ctx, exec, subj.ID, core.GradeLevel(subj.GradeLevel.String))
		}
		return nil
	})
	return subj, err
}

func (svc *service) GetSubject(ctx context.Context, ident user.Identity, id string) (Subject, error) {
	subj, err := svc.repo.GetSubjectByID(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	if ident.IsAdmin() {
		return subj, nil
	}
	if ident.IsTeacher() {
		if ok, err := svc.access.CanTeachSubject(ctx, ident, id); err != nil {
			return Subject{}, err
		} else if ok {
			return subj, nil
		}
	}
	if ident.IsStudent() {
		if ok, err := svc.access.CanReadSubject(ctx, ident, id); err != nil {
			return Subject{}, err
		} else if ok {
			return subj, nil
		}
	}
	return Subject{}, ErrForbidden
}

func (svc *service) QuerySubjects(ctx context.Context, ident user.Identity) ([]Subject, error) {
	switch {
	case ident.IsAdmin():
		return svc.repo.QuerySubjects(ctx, nil, nil)
	case ident.IsTeacher():
		return svc.repo.QuerySubjects(ctx, &SubjectFilter{TeacherID: ident.UserID}, nil)
	case ident.IsStudent():
		return svc.repo.QuerySubjects(ctx, &SubjectFilter{StudentID: ident.UserID}, nil)
	}
	return nil, ErrForbidden
}

func (svc *service) UpdateSubject(ctx context.Context, ident user.Identity, id string, us UpdateSubject) (Subject, error) {
	var subj Subject

	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if subj, err = svc.repo.GetSubjectByID(ctx, id, exec); err != nil {
			return err
		}
		if ok, err := svc.access.CanTeachSubject(ctx, ident, id, exec); err != nil {
			return err
		} else if !ok {
			return ErrForbidden
		}

		prevLevel := subj.GradeLevel

		if us.Name != "" {
			subj.Name = us.Name
		}
		if us.Capacity > 0 {
			subj.Capacity = us.Capacity
		}
		switch {
		case us.ClearGradeLevel:
			subj.GradeLevel = null.String{}
		case us.GradeLevel != "":
			subj.GradeLevel = null.StringFrom(us.GradeLevel)
		}

		// ownership reassignment swaps the association and the display field
		// in the same transaction so they can never disagree.
		if us.TeacherID != "" && us.TeacherID != subj.TeacherID.String {
			if subj.TeacherID.Valid {
				if err = svc.repo.RemoveTeacherSubject(ctx, subj.TeacherID.String, id, exec); err != nil {
					return errors.Wrap(err, "removing previous owner")
				}
			}
			if err = svc.repo.AddTeacherSubject(ctx, us.TeacherID, id, exec); err != nil {
				return errors.Wrap(err, "associating new owner")
			}
			subj.TeacherID = null.StringFrom(us.TeacherID)
		}

		subj.UpdatedAt = time.Now().UTC()
		if subj, err = svc.repo.UpdateSubject(ctx, subj, exec); err != nil {
			return errors.Wrap(err, "updating subject")
		}

		if prevLevel != subj.GradeLevel {
			svc.syncSubjectGradeChange(ctx, exec, subj, prevLevel)
		}
		return nil
	})
	return subj, err
}

func (svc *service) DeleteSubject(ctx context.Context, ident user.Identity, id string) error {
	if _, err := svc.repo.GetSubjectByID(ctx, id); err != nil {
		return err
	}
	if ok, err := svc.access.CanTeachSubject(ctx, ident, id); err != nil {
		return err
	} else if !ok {
		return ErrForbidden
	}
	_, err := svc.repo.DeleteSubjectsByID(ctx, []string{id})
	return errors.Wrap(err, "deleting subject")
}

func (svc *service) SubjectRoster(ctx context.Context, ident user.Identity, id string) ([]Enrollment, error) {
	if _, err := svc.repo.GetSubjectByID(ctx, id); err != nil {
		return nil, err
	}
	if ok, err := svc.access.CanTeachSubject(ctx, ident, id); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrForbidden
	}
	return svc.repo.QueryEnrollments(ctx, id)
}
