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

// CreateActivity creates an activity under a subject the acting user teaches.
// The subject's grade level is copied onto the activity at creation time;
// later subject changes do not rewrite it.
func (svc *service) CreateActivity(ctx context.Context, ident user.Identity, na NewActivity) (Activity, error) {
	subj, err := svc.repo.GetSubjectByID(ctx, na.SubjectID)
	if err != nil {
		return Activity{}, err
	}
	if ok, err := svc.access.CanTeachSubject(ctx, ident, subj.ID); err != nil {
		return Activity{}, err
	} else if !ok {
		return Activity{}, ErrForbidden
	}

	now := time.Now().UTC()
	act := Activity{
		ID:             uuid.New().String(),
		SubjectID:      subj.ID,
		Name:           na.Name,
		Kind:           na.Kind,
		GradeLevel:     subj.GradeLevel,
		TeacherID:      ident.UserID,
		Deadline:       null.NewTime(na.Deadline, !na.Deadline.IsZero()),
		Period:         null.NewString(na.Period, na.Period != ""),
		EvaluationKind: null.NewString(na.EvaluationKind, na.EvaluationKind != ""),
		Attachment:     null.NewString(na.Attachment, na.Attachment != ""),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateActivity(ctx, act)
}

func (svc *service) GetActivity(ctx context.Context, ident user.Identity, id string) (ActivityInfo, error) {
	act, err := svc.repo.GetActivityByID(ctx, id)
	if err != nil {
		return ActivityInfo{}, err
	}
	info := ActivityInfo{Activity: act}

	if ident.IsAdmin() {
		return info, nil
	}
	if ident.IsTeacher() {
		if ok, err := svc.access.CanTeachSubject(ctx, ident, act.SubjectID); err != nil {
			return ActivityInfo{}, err
		} else if ok {
			return info, nil
		}
	}
	if ident.IsStudent() {
		enr, err := svc.repo.GetEnrollment(ctx, ident.UserID, act.SubjectID)
		switch errors.Cause(err) {
		case nil:
			status, err := svc.deriveStatusFor(ctx, act.ID, enr.ID)
			if err != nil {
				return ActivityInfo{}, err
			}
			info.Status = &status
			return info, nil
		case ErrNotFound:
			// not enrolled, fall through
		default:
			return ActivityInfo{}, err
		}
	}
	return ActivityInfo{}, ErrForbidden
}

// QueryActivities lists a subject's activities. For student callers each
// activity carries the caller's derived status.
// QueryActivities lists a subject's activities for the acting user. The reads
// run on one transaction so a grade landing mid-listing cannot skew the
// derived statuses.
func (svc *service) QueryActivities(ctx context.Context, ident user.Identity, subjectID string) ([]ActivityInfo, error) {
	var infos []ActivityInfo

	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetSubjectByID(ctx, subjectID, exec); err != nil {
			return err
		}

		var enr Enrollment
		annotate := false

		switch {
		case ident.IsAdmin():
		case ident.IsTeacher():
			ok, err := svc.access.CanTeachSubject(ctx, ident, subjectID, exec)
			if err != nil {
				return err
			}
			if !ok {
				return ErrForbidden
			}
		case ident.IsStudent():
			var err error
			if enr, err = svc.repo.GetEnrollment(ctx, ident.UserID, subjectID, exec); err != nil {
				if errors.Cause(err) == ErrNotFound {
					return ErrForbidden
				}
				return err
			}
			annotate = true
		default:
			return ErrForbidden
		}

		acts, err := svc.repo.QueryActivities(ctx, subjectID, exec)
		if err != nil {
			return err
		}
		infos = make([]ActivityInfo, len(acts))
		for i, act := range acts {
			infos[i] = ActivityInfo{Activity: act}
			if annotate {
				status, err := svc.deriveStatusFor(ctx, act.ID, enr.ID, exec)
				if err != nil {
					return err
				}
				infos[i].Status = &status
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

func (svc *service) UpdateActivity(ctx context.Context, ident user.Identity, id string, ua UpdateActivity) (Activity, error) {
	act, err := svc.repo.GetActivityByID(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	if ok, err := svc.access.CanWriteActivity(ctx, ident, id); err != nil {
		return Activity{}, err
	} else if !ok {
		return Activity{}, ErrForbidden
	}

	if ua.Name != "" {
		act.Name = ua.Name
	}
	if ua.Kind != "" {
		act.Kind = ua.Kind
	}
	if !ua.Deadline.IsZero() {
		act.Deadline = null.TimeFrom(ua.Deadline)
	}
	if ua.Period != "" {
		act.Period = null.StringFrom(ua.Period)
	}
	if ua.EvaluationKind != "" {
		act.EvaluationKind = null.StringFrom(ua.EvaluationKind)
	}
	if ua.Attachment != "" {
		act.Attachment = null.StringFrom(ua.Attachment)
	}
	act.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateActivity(ctx, act)
}

func (svc *service) DeleteActivity(ctx context.Context, ident user.Identity, id string) error {
	if _, err := svc.repo.GetActivityByID(ctx, id); err != nil {
		return err
	}
	if ok, err := svc.access.CanWriteActivity(ctx, ident, id); err != nil {
		return err
	} else if !ok {
		return ErrForbidden
	}
	_, err := svc.repo.DeleteActivitiesByID(ctx, []string{id})
	return errors.Wrap(err, "deleting activity")
}

// SubmitWork records a student's hand-in for an activity. Only enrolled
// students may submit, and only once per activity.
func (svc *service) SubmitWork(ctx context.Context, ident user.Identity, activityID string, ns NewSubmission) (ActivityGrade, error) {
	var row ActivityGrade

	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		act, err := svc.repo.GetActivityByID(ctx, activityID, exec)
		if err != nil {
			return err
		}
		enr, err := svc.repo.GetEnrollment(ctx, ident.UserID, act.SubjectID, exec)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return ErrForbidden
			}
			return err
		}

		now := time.Now().UTC()
		row = ActivityGrade{
			ID:           uuid.New().String(),
			ActivityID:   act.ID,
			EnrollmentID: enr.ID,
			SubmittedBy:  null.StringFrom(ns.SubmittedBy),
			TeamMembers:  null.NewString(ns.TeamMembers, ns.TeamMembers != ""),
			Attachment:   null.NewString(ns.Attachment, ns.Attachment != ""),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		row, err = svc.repo.CreateActivityGrade(ctx, row, exec)
		return err
	})
	return row, err
}

// GradeStudent records a teacher's mark for a student-activity pair. When the
// student already submitted, their row is updated in place; otherwise a
// grade-only row is created (graded without submission).
func (svc *service) GradeStudent(ctx context.Context, ident user.Identity, activityID string, gi GradeInput) (ActivityGrade, error) {
	var row ActivityGrade

	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		act, err := svc.repo.GetActivityByID(ctx, activityID, exec)
		if err != nil {
			return err
		}
		if ok, err := svc.access.CanWriteActivity(ctx, ident, activityID, exec); err != nil {
			return err
		} else if !ok {
			return ErrForbidden
		}

		enr, err := svc.repo.GetEnrollmentByID(ctx, gi.EnrollmentID, exec)
		if err != nil {
			return err
		}
		if enr.SubjectID != act.SubjectID {
			return core.NewValidationError(errors.New("enrollment does not belong to this subject"),
				core.FieldError{Field: "enrollment_id", Error: "enrollment does not belong to this subject"})
		}

		now := time.Now().UTC()
		row, err = svc.repo.GetActivityGradeByPair(ctx, activityID, enr.ID, exec)
		switch errors.Cause(err) {
		case nil:
			row.Grade = null.Float64From(gi.Grade)
			row.GradedBy = null.StringFrom(ident.UserID)
			row.UpdatedAt = now
			row, err = svc.repo.UpdateActivityGrade(ctx, row, exec)
			return err
		case ErrNotFound:
			row = ActivityGrade{
				ID:           uuid.New().String(),
				ActivityID:   activityID,
				EnrollmentID: enr.ID,
				Grade:        null.Float64From(gi.Grade),
				GradedBy:     null.StringFrom(ident.UserID),
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			row, err = svc.repo.CreateActivityGrade(ctx, row, exec)
			return err
		default:
			return err
		}
	})
	return row, err
}

func (svc *service) GetGrade(ctx context.Context, ident user.Identity, gradeID string) (GradeInfo, error) {
	row, err := svc.repo.GetActivityGradeByID(ctx, gradeID)
	if err != nil {
		return GradeInfo{}, err
	}

	allowed := false
	if ident.IsTeacher() || ident.IsAdmin() {
		if allowed, err = svc.access.CanWriteGrade(ctx, ident, gradeID); err != nil {
			return GradeInfo{}, err
		}
	}
	if !allowed && ident.IsStudent() {
		if allowed, err = svc.access.CanReadGrade(ctx, ident, gradeID); err != nil {
			return GradeInfo{}, err
		}
	}
	if !allowed {
		return GradeInfo{}, ErrForbidden
	}

	enr, err := svc.repo.GetEnrollmentByID(ctx, row.EnrollmentID)
	if err != nil {
		return GradeInfo{}, err
	}
	return GradeInfo{
		EnrollmentID: enr.ID,
		StudentID:    enr.StudentID,
		Row:          &row,
		Status:       DeriveStatus(&row),
	}, nil
}

// ListGrades returns the grade board for an activity. Teachers see one entry
// per enrolled student, including students with no submission yet; students
// see only their own entry. Enrollments and grade rows are read on one
// transaction so the board reflects a single snapshot.
func (svc *service) ListGrades(ctx context.Context, ident user.Identity, activityID string) ([]GradeInfo, error) {
	var infos []GradeInfo

	err := svc.db.WithinTx(ctx, func(exec core.DBExecutor) error {
		act, err := svc.repo.GetActivityByID(ctx, activityID, exec)
		if err != nil {
			return err
		}

		if ident.IsStudent() && !ident.IsAdmin() && !ident.IsTeacher() {
			enr, err := svc.repo.GetEnrollment(ctx, ident.UserID, act.SubjectID, exec)
			if err != nil {
				if errors.Cause(err) == ErrNotFound {
					return ErrForbidden
				}
				return err
			}
			info := GradeInfo{EnrollmentID: enr.ID, StudentID: enr.StudentID}
			row, err := svc.repo.GetActivityGradeByPair(ctx, activityID, enr.ID, exec)
			switch errors.Cause(err) {
			case nil:
				info.Row = &row
				info.Status = DeriveStatus(&row)
			case ErrNotFound:
				info.Status = DeriveStatus(nil)
			default:
				return err
			}
			infos = []GradeInfo{info}
			return nil
		}

		if ok, err := svc.access.CanWriteActivity(ctx, ident, activityID, exec); err != nil {
			return err
		} else if !ok {
			return ErrForbidden
		}

		enrollments, err := svc.repo.QueryEnrollments(ctx, act.SubjectID, exec)
		if err != nil {
			return err
		}
		rows, err := svc.repo.QueryActivityGrades(ctx, activityID, exec)
		if err != nil {
			return err
		}
		byEnrollment := make(map[string]*ActivityGrade, len(rows))
		for i := range rows {
			byEnrollment[rows[i].EnrollmentID] = &rows[i]
		}

		infos = make([]GradeInfo, len(enrollments))
		for i, enr := range enrollments {
			infos[i] = GradeInfo{
				EnrollmentID: enr.ID,
				StudentID:    enr.StudentID,
				Row:          byEnrollment[enr.ID],
				Status:       DeriveStatus(byEnrollment[enr.ID]),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

func (svc *service) deriveStatusFor(ctx context.Context, activityID, enrollmentID string, exec ...core.DBExecutor) (Status, error) {
	row, err := svc.repo.GetActivityGradeByPair(ctx, activityID, enrollmentID, exec...)
	switch errors.Cause(err) {
	case nil:
		return DeriveStatus(&row), nil
	case ErrNotFound:
		return DeriveStatus(nil), nil
	default:
		return Status{}, err
	}
}
