package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Access decides whether a specific user may act on a specific resource.
//
// The TeacherSubject association is the single source of truth for teacher
// ownership; Subject.TeacherID alone never grants access. Every check is a
// single targeted existence query and admins short-circuit before any query.
type Access struct {
	repo Repository
}

func NewAccess(repo Repository) *Access {
	return &Access{repo: repo}
}

// CanTeachSubject reports whether the acting user may write the subject.
func (a *Access) CanTeachSubject(ctx context.Context, ident user.Identity, subjectID string, exec ...core.DBExecutor) (bool, error) {
	if ident.IsAdmin() {
		return true, nil
	}
	ok, err := a.repo.TeacherSubjectExists(ctx, ident.UserID, subjectID, exec...)
	return ok, errors.Wrap(err, "checking teacher-subject association")
}

// CanReadSubject reports whether the acting user may read the subject as a
// student, ie. is enrolled in it.
func (a *Access) CanReadSubject(ctx context.Context, ident user.Identity, subjectID string, exec ...core.DBExecutor) (bool, error) {
	if ident.IsAdmin() {
		return true, nil
	}
	ok, err := a.repo.EnrollmentExists(ctx, ident.UserID, subjectID, exec...)
	return ok, errors.Wrap(err, "checking enrollment")
}

// CanWriteActivity reports whether the acting user may write the activity.
// Ownership is transitive through the activity's owning subject so that
// subject-teacher reassignment immediately revokes/grants activity access;
// the activity's stored teacher id is not consulted.
func (a *Access) CanWriteActivity(ctx context.Context, ident user.Identity, activityID string, exec ...core.DBExecutor) (bool, error) {
	if ident.IsAdmin() {
		return true, nil
	}
	ok, err := a.repo.ActivityTaughtBy(ctx, activityID, ident.UserID, exec...)
	return ok, errors.Wrap(err, "checking activity ownership")
}

// CanWriteGrade reports whether the acting user may write the grade row:
// the row's activity must belong to a subject associated with them.
func (a *Access) CanWriteGrade(ctx context.Context, ident user.Identity, gradeID string, exec ...core.DBExecutor) (bool, error) {
	if ident.IsAdmin() {
		return true, nil
	}
	ok, err := a.repo.GradeTaughtBy(ctx, gradeID, ident.UserID, exec...)
	return ok, errors.Wrap(err, "checking grade ownership")
}

// CanReadGrade reports whether the acting user may read the grade row as a
// student: the row's enrollment must belong to them.
func (a *Access) CanReadGrade(ctx context.Context, ident user.Identity, gradeID string, exec ...core.DBExecutor) (bool, error) {
	if ident.IsAdmin() {
		return true, nil
	}
	ok, err := a.repo.GradeOwnedBy(ctx, gradeID, ident.UserID, exec...)
	return ok, errors.Wrap(err, "checking grade enrollment")
}
