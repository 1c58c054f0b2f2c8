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

// Enroll registers a student in a subject, regardless of grade level. It is
// idempotent: enrolling an already-enrolled student returns the existing
// record.
func (svc *service) Enroll(ctx context.Context, ident user.Identity, subjectID, studentID string) (Enrollment, error) {
	if _, err := svc.repo.GetSubjectByID(ctx, subjectID); err != nil {
		return Enrollment{}, err
	}
	if ok, err := svc.access.CanTeachSubject(ctx, ident, subjectID); err != nil {
		return Enrollment{}, err
	} else if !ok {
		return Enrollment{}, ErrForbidden
	}

	usr, err := svc.users.GetUserByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: "student not found"})
		}
		return Enrollment{}, err
	}
	if !usr.IsStudent() {
		return Enrollment{}, core.NewValidationError(errors.New("user is not a student"), core.FieldError{Field: "student_id", Error: "user is not a student"})
	}

	return svc.repo.CreateEnrollment(ctx, newEnrollment(studentID, subjectID))
}

// Unenroll removes a student from a subject. Removing an absent enrollment
// is a no-op.
func (svc *service) Unenroll(ctx context.Context, ident user.Identity, subjectID, studentID string) error {
	if _, err := svc.repo.GetSubjectByID(ctx, subjectID); err != nil {
		return err
	}
	if ok, err := svc.access.CanTeachSubject(ctx, ident, subjectID); err != nil {
		return err
	} else if !ok {
		return ErrForbidden
	}
	return svc.repo.DeleteEnrollment(ctx, studentID, subjectID)
}

// UpdateStudentProfile saves the student's profile and, when the grade level
// changed, re-synchronizes their enrollments: they leave subjects pinned to
// the old level and join subjects pinned to the new one.
func (svc *service) UpdateStudentProfile(ctx context.Context, userID string, up user.UpdateProfile) (user.Profile, error) {
	var prof user.Profile

	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		usr, err := svc.users.GetUserByID(ctx, userID, exec)
		if err != nil {
			return err
		}

		prof, err = svc.users.GetProfile(ctx, userID, exec)
		if err != nil && errors.Cause(err) != user.ErrNotFound {
			return err
		}
		prof.UserID = userID

		prevLevel := prof.GradeLevel
		if up.RegistrationCode != "" {
			prof.RegistrationCode = null.StringFrom(up.RegistrationCode)
		}
		if up.GradeLevel != "" {
			prof.GradeLevel = null.StringFrom(up.GradeLevel)
		}

		if prof, err = svc.users.UpsertProfile(ctx, prof, exec); err != nil {
			return errors.Wrap(err, "saving profile")
		}

		// unchanged levels sync nothing; an admin fixing a typo in the
		// registration code must not touch enrollments.
		if usr.IsStudent() && prevLevel != prof.GradeLevel {
			svc.syncStudentGradeChange(ctx, exec, userID, prevLevel, prof.GradeLevel)
		}
		return nil
	})
	return prof, err
}

// ResyncSubjectEnrollments replays grade-driven enrollment for a subject,
// picking up students that were skipped during an earlier partial sync. It is
// idempotent and never removes manual enrollments.
func (svc *service) ResyncSubjectEnrollments(ctx context.Context, subjectID string) error {
	return svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		subj, err := svc.repo.GetSubjectByID(ctx, subjectID, exec)
		if err != nil {
			return err
		}
		if subj.GradeLevel.Valid {
			svc.enrollStudentsAtLevel(ctx, exec, subj.ID, core.GradeLevel(subj.GradeLevel.String))
		}
		return nil
	})
}

// ResyncStudentEnrollments replays grade-driven enrollment for a single
// student against all subjects at their profile's grade level.
func (svc *service) ResyncStudentEnrollments(ctx context.Context, studentID string) error {
	return svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		prof, err := svc.users.GetProfile(ctx, studentID, exec)
		if err != nil {
			return err
		}
		if !prof.GradeLevel.Valid {
			return nil
		}
		subjects, err := svc.repo.QuerySubjects(ctx, &SubjectFilter{GradeLevel: prof.GradeLevel.String}, nil, exec)
		if err != nil {
			return errors.Wrap(err, "querying subjects")
		}
		for _, subj := range subjects {
			if _, err := svc.repo.CreateEnrollment(ctx, newEnrollment(studentID, subj.ID), exec); err != nil {
				svc.logSyncFailure(studentID, subj.ID, "enroll", err)
			}
		}
		return nil
	})
}

// syncSubjectGradeChange reconciles enrollments after a subject's grade level
// changed. Students whose profile matches the previous level leave; students
// matching the new level join. Per-student failures are logged and skipped so
// one bad record never aborts the rest of the batch.
func (svc *service) syncSubjectGradeChange(ctx context.Context, exec core.DBExecutor, subj Subject, prevLevel null.String) {
	if prevLevel.Valid {
		ids, err := svc.repo.EnrolledStudentIDs(ctx, subj.ID, core.GradeLevel(prevLevel.String), exec)
		if err != nil {
			svc.log.Error("listing enrolled students", "subject_id", subj.ID, "error", err)
		}
		for _, studentID := range ids {
			if err := svc.repo.DeleteEnrollment(ctx, studentID, subj.ID, exec); err != nil {
				svc.logSyncFailure(studentID, subj.ID, "unenroll", err)
			}
		}
	}
	if subj.GradeLevel.Valid {
		svc.enrollStudentsAtLevel(ctx, exec, subj.ID, core.GradeLevel(subj.GradeLevel.String))
	}
}

// syncStudentGradeChange reconciles a student's enrollments after their
// profile grade level changed.
func (svc *service) syncStudentGradeChange(ctx context.Context, exec core.DBExecutor, studentID string, prevLevel, newLevel null.String) {
	if prevLevel.Valid {
		subjects, err := svc.repo.QuerySubjects(ctx, &SubjectFilter{GradeLevel: prevLevel.String}, nil, exec)
		if err != nil {
			svc.log.Error("querying previous-level subjects", "student_id", studentID, "error", err)
		}
		for _, subj := range subjects {
			if err := svc.repo.DeleteEnrollment(ctx, studentID, subj.ID, exec); err != nil {
				svc.logSyncFailure(studentID, subj.ID, "unenroll", err)
			}
		}
	}
	if newLevel.Valid {
		subjects, err := svc.repo.QuerySubjects(ctx, &SubjectFilter{GradeLevel: newLevel.String}, nil, exec)
		if err != nil {
			svc.log.Error("querying new-level subjects", "student_id", studentID, "error", err)
		}
		for _, subj := range subjects {
			if _, err := svc.repo.CreateEnrollment(ctx, newEnrollment(studentID, subj.ID), exec); err != nil {
				svc.logSyncFailure(studentID, subj.ID, "enroll", err)
			}
		}
	}
}

// enrollStudentsAtLevel enrolls every student at the given grade level into
// the subject. Already-enrolled students are untouched; per-student failures
// are logged and skipped.
func (svc *service) enrollStudentsAtLevel(ctx context.Context, exec core.DBExecutor, subjectID string, level core.GradeLevel) {
	ids, err := svc.repo.StudentIDsByGradeLevel(ctx, level, exec)
	if err != nil {
		svc.log.Error("listing students by grade level", "subject_id", subjectID, "grade_level", level, "error", err)
		return
	}
	for _, studentID := range ids {
		if _, err := svc.repo.CreateEnrollment(ctx, newEnrollment(studentID, subjectID), exec); err != nil {
			svc.logSyncFailure(studentID, subjectID, "enroll", err)
		}
	}
}

func (svc *service) logSyncFailure(studentID, subjectID, op string, err error) {
	svc.log.Warn("enrollment sync failed for student, skipping",
		"student_id", studentID, "subject_id", subjectID, "op", op, "error", err)
}

func newEnrollment(studentID, subjectID string) Enrollment {
	return Enrollment{
		ID:        uuid.New().String(),
		StudentID: studentID,
		SubjectID: subjectID,
		CreatedAt: time.Now().UTC(),
	}
}
