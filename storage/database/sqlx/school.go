package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) exec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

// subjects

type subjectRow struct {
	ID         string      `db:"id"`
	Name       string      `db:"name"`
	TeacherID  null.String `db:"teacher_id"`
	GradeLevel null.String `db:"grade_level"`
	Capacity   int         `db:"capacity"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (row subjectRow) toSubject() school.Subject {
	return school.Subject(row)
}

const subjectColumns = `id, name, teacher_id, grade_level, capacity, created_at, updated_at`

// columns clients may order query results by
var sortableSubjectColumns = map[string]bool{
	"name":        true,
	"grade_level": true,
	"capacity":    true,
	"created_at":  true,
	"updated_at":  true,
}

func (repo *schoolRepository) CreateSubject(ctx context.Context, subj school.Subject, exec ...core.DBExecutor) (school.Subject, error) {
	_, err := repo.exec(exec).ExecContext(ctx,
		`INSERT INTO subject (`+subjectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		subj.ID, subj.Name, subj.TeacherID, subj.GradeLevel, subj.Capacity, subj.CreatedAt, subj.UpdatedAt,
	)
	return subj, errors.Wrap(err, "inserting subject")
}

func (repo *schoolRepository) GetSubjectByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.Subject, error) {
	var row subjectRow
	err := sqlx.GetContext(ctx, repo.exec(exec), &row,
		`SELECT `+subjectColumns+` FROM subject WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.Subject{}, school.ErrNotFound
		}
		return school.Subject{}, errors.Wrap(err, "getting subject")
	}
	return row.toSubject(), nil
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context, filter *school.SubjectFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.Subject, error) {
	q := `SELECT ` + subjectColumns + ` FROM subject`
	var args []interface{}
	var conds []string

	if filter != nil && !filter.IsEmpty() {
		if filter.TeacherID != "" {
			args = append(args, filter.TeacherID)
			conds = append(conds, `EXISTS (SELECT 1 FROM teacher_subject ts WHERE ts.subject_id = subject.id AND ts.teacher_id = `+placeholder(len(args))+`)`)
		}
		if filter.StudentID != "" {
			args = append(args, filter.StudentID)
			conds = append(conds, `EXISTS (SELECT 1 FROM enrollment e WHERE e.subject_id = subject.id AND e.student_id = `+placeholder(len(args))+`)`)
		}
		if filter.GradeLevel != "" {
			args = append(args, filter.GradeLevel)
			conds = append(conds, `grade_level = `+placeholder(len(args)))
		}
	}
	q += whereClause(conds) + orderClause(ordering, sortableSubjectColumns, "name ASC")

	var rows []subjectRow
	if err := sqlx.SelectContext(ctx, repo.exec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]school.Subject, len(rows))
	for i, row := range rows {
		subjects[i] = row.toSubject()
	}
	return subjects, nil
}

func (repo *schoolRepository) UpdateSubject(ctx context.Context, subj school.Subject, exec ...core.DBExecutor) (school.Subject, error) {
	res, err := repo.exec(exec).ExecContext(ctx,
		`UPDATE subject SET name = $2, teacher_id = $3, grade_level = $4, capacity = $5, updated_at = $6 WHERE id = $1`,
		subj.ID, subj.Name, subj.TeacherID, subj.GradeLevel, subj.Capacity, subj.UpdatedAt,
	)
	if err != nil {
		return school.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Subject{}, school.ErrNotFound
	}
	return subj, nil
}

func (repo *schoolRepository) DeleteSubjectsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.exec(exec).ExecContext(ctx,
		`DELETE FROM subject WHERE id::text = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting subjects")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting subjects")
}

// teacher-subject associations

func (repo *schoolRepository) AddTeacherSubject(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) error {
	_, err := repo.exec(exec).ExecContext(ctx,
		`INSERT INTO teacher_subject (teacher_id, subject_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		teacherID, subjectID,
	)
	return errors.Wrap(err, "adding teacher-subject association")
}

func (repo *schoolRepository) RemoveTeacherSubject(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) error {
	_, err := repo.exec(exec).ExecContext(ctx,
		`DELETE FROM teacher_subject WHERE teacher_id = $1 AND subject_id = $2`,
		teacherID, subjectID,
	)
	return errors.Wrap(err, "removing teacher-subject association")
}

func (repo *schoolRepository) TeacherSubjectExists(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.exec(exec), &exists,
		`SELECT EXISTS (SELECT 1 FROM teacher_subject WHERE teacher_id = $1 AND subject_id = $2)`,
		teacherID, subjectID,
	)
	return exists, errors.Wrap(err, "checking teacher-subject association")
}

// enrollments

type enrollmentRow struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	SubjectID string    `db:"subject_id"`
	CreatedAt time.Time `db:"created_at"`
}

const enrollmentColumns = `id, student_id, subject_id, created_at`

func (repo *schoolRepository) CreateEnrollment(ctx context.Context, enr school.Enrollment, exec ...core.DBExecutor) (school.Enrollment, error) {
	db := repo.exec(exec)
	_, err := db.ExecContext(ctx,
		`INSERT INTO enrollment (`+enrollmentColumns+`) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (student_id, subject_id) DO NOTHING`,
		enr.ID, enr.StudentID, enr.SubjectID, enr.CreatedAt,
	)
	if err != nil {
		return school.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	// return the winning record, whether it was just inserted or already there
	return repo.GetEnrollment(ctx, enr.StudentID, enr.SubjectID, db)
}

func (repo *schoolRepository) GetEnrollmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.Enrollment, error) {
	var row enrollmentRow
	err := sqlx.GetContext(ctx, repo.exec(exec), &row,
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.Enrollment{}, school.ErrNotFound
		}
		return school.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return school.Enrollment(row), nil
}

func (repo *schoolRepository) GetEnrollment(ctx context.Context, studentID, subjectID string, exec ...core.DBExecutor) (school.Enrollment, error) {
	var row enrollmentRow
	err := sqlx.GetContext(ctx, repo.exec(exec), &row,
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE student_id = $1 AND subject_id = $2`,
		studentID, subjectID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.Enrollment{}, school.ErrNotFound
		}
		return school.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return school.Enrollment(row), nil
}

func (repo *schoolRepository) QueryEnrollments(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]school.Enrollment, error) {
	var rows []enrollmentRow
	err := sqlx.SelectContext(ctx, repo.exec(exec), &rows,
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE subject_id = $1 ORDER BY created_at ASC`,
		subjectID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]school.Enrollment, len(rows))
	for i, row := range rows {
		enrollments[i] = school.Enrollment(row)
	}
	return enrollments, nil
}

func (repo *schoolRepository) DeleteEnrollment(ctx context.Context, studentID, subjectID string, exec ...core.DBExecutor) error {
	_, err := repo.exec(exec).ExecContext(ctx,
		`DELETE FROM enrollment WHERE student_id = $1 AND subject_id = $2`,
		studentID, subjectID,
	)
	return errors.Wrap(err, "deleting enrollment")
}

func (repo *schoolRepository) EnrollmentExists(ctx context.Context, studentID, subjectID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.exec(exec), &exists,
		`SELECT EXISTS (SELECT 1 FROM enrollment WHERE student_id = $1 AND subject_id = $2)`,
		studentID, subjectID,
	)
	return exists, errors.Wrap(err, "checking enrollment")
}

func (repo *schoolRepository) EnrolledStudentIDs(ctx context.Context, subjectID string, level core.GradeLevel, exec ...core.DBExecutor) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, repo.exec(exec), &ids,
		`SELECT e.student_id
		 FROM enrollment e
		 JOIN student_profile p ON p.user_id = e.student_id
		 WHERE e.subject_id = $1 AND p.grade_level = $2`,
		subjectID, level.String(),
	)
	return ids, errors.Wrap(err, "listing enrolled students by grade level")
}

func (repo *schoolRepository) StudentIDsByGradeLevel(ctx context.Context, level core.GradeLevel, exec ...core.DBExecutor) ([]string, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, repo.exec(exec), &ids,
		`SELECT u.id
		 FROM app_user u
		 JOIN student_profile p ON p.user_id = u.id
		 WHERE p.grade_level = $1 AND u.is_active AND 'student' = ANY(u.roles)`,
		level.String(),
	)
	return ids, errors.Wrap(err, "listing students by grade level")
}

// activities

type activityRow struct {
	ID             string      `db:"id"`
	SubjectID      string      `db:"subject_id"`
	Name           string      `db:"name"`
	Kind           string      `db:"kind"`
	GradeLevel     null.String `db:"grade_level"`
	TeacherID      string      `db:"teacher_id"`
	Deadline       null.Time   `db:"deadline"`
	Period         null.String `db:"period"`
	EvaluationKind null.String `db:"evaluation_kind"`
	Attachment     null.String `db:"attachment"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func newActivityRow(act school.Activity) activityRow {
	return activityRow{
		ID:             act.ID,
		SubjectID:      act.SubjectID,
		Name:           act.Name,
		Kind:           act.Kind,
		GradeLevel:     act.GradeLevel,
		TeacherID:      act.TeacherID,
		Deadline:       act.Deadline,
		Period:         act.Period,
		EvaluationKind: act.EvaluationKind,
		Attachment:     act.Attachment,
		CreatedAt:      act.CreatedAt,
		UpdatedAt:      act.UpdatedAt,
	}
}

func (row activityRow) toActivity() school.Activity {
	return school.Activity{
		ID:             row.ID,
		SubjectID:      row.SubjectID,
		Name:           row.Name,
		Kind:           row.Kind,
		GradeLevel:     row.GradeLevel,
		TeacherID:      row.TeacherID,
		Deadline:       row.Deadline,
		Period:         row.Period,
		EvaluationKind: row.EvaluationKind,
		Attachment:     row.Attachment,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

const activityColumns = `id, subject_id, name, kind, grade_level, teacher_id, deadline, period, evaluation_kind, attachment, created_at, updated_at`

func (repo *schoolRepository) CreateActivity(ctx context.Context, act school.Activity, exec ...core.DBExecutor) (school.Activity, error) {
	row := newActivityRow(act)
	_, err := repo.exec(exec).ExecContext(ctx,
		`INSERT INTO activity (`+activityColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		row.ID, row.SubjectID, row.Name, row.Kind, row.GradeLevel, row.TeacherID,
		row.Deadline, row.Period, row.EvaluationKind, row.Attachment, row.CreatedAt, row.UpdatedAt,
	)
	return act, errors.Wrap(err, "inserting activity")
}

func (repo *schoolRepository) GetActivityByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.Activity, error) {
	var row activityRow
	err := sqlx.GetContext(ctx, repo.exec(exec), &row,
		`SELECT `+activityColumns+` FROM activity WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.Activity{}, school.ErrNotFound
		}
		return school.Activity{}, errors.Wrap(err, "getting activity")
	}
	return row.toActivity(), nil
}

func (repo *schoolRepository) QueryActivities(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]school.Activity, error) {
	var rows []activityRow
	err := sqlx.SelectContext(ctx, repo.exec(exec), &rows,
		`SELECT `+activityColumns+` FROM activity WHERE subject_id = $1 ORDER BY created_at ASC`,
		subjectID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	activities := make([]school.Activity, len(rows))
	for i, row := range rows {
		activities[i] = row.toActivity()
	}
	return activities, nil
}

func (repo *schoolRepository) UpdateActivity(ctx context.Context, act school.Activity, exec ...core.DBExecutor) (school.Activity, error) {
	row := newActivityRow(act)
	res, err := repo.exec(exec).ExecContext(ctx,
		`UPDATE activity
		 SET name = $2, kind = $3, deadline = $4, period = $5, evaluation_kind = $6, attachment = $7, updated_at = $8
		 WHERE id = $1`,
		row.ID, row.Name, row.Kind, row.Deadline, row.Period, row.EvaluationKind, row.Attachment, row.UpdatedAt,
	)
	if err != nil {
		return school.Activity{}, errors.Wrap(err, "updating activity")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Activity{}, school.ErrNotFound
	}
	return act, nil
}

func (repo *schoolRepository) DeleteActivitiesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.exec(exec).ExecContext(ctx,
		`DELETE FROM activity WHERE id::text = ANY($1)`, stringArray(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting activities")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting activities")
}

func (repo *schoolRepository) ActivityTaughtBy(ctx context.Context, activityID, teacherID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.exec(exec), &exists,
		`SELECT EXISTS (
			SELECT 1 FROM activity a
			JOIN teacher_subject ts ON ts.subject_id = a.subject_id
			WHERE a.id = $1 AND ts.teacher_id = $2
		)`,
		activityID, teacherID,
	)
	return exists, errors.Wrap(err, "checking activity ownership")
}

// grades

type gradeRow struct {
	ID           string       `db:"id"`
	ActivityID   string       `db:"activity_id"`
	EnrollmentID string       `db:"enrollment_id"`
	Grade        null.Float64 `db:"grade"`
	GradedBy     null.String  `db:"graded_by"`
	SubmittedBy  null.String  `db:"submitted_by"`
	TeamMembers  null.String  `db:"team_members"`
	Attachment   null.String  `db:"attachment"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func (row gradeRow) toGrade() school.ActivityGrade {
	return school.ActivityGrade(row)
}

const gradeColumns = `id, activity_id, enrollment_id, grade, graded_by, submitted_by, team_members, attachment, created_at, updated_at`

func (repo *schoolRepository) CreateActivityGrade(ctx context.Context, grade school.ActivityGrade, exec ...core.DBExecutor) (school.ActivityGrade, error) {
	_, err := repo.exec(exec).ExecContext(ctx,
		`INSERT INTO activity_grade (`+gradeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		grade.ID, grade.ActivityID, grade.EnrollmentID, grade.Grade, grade.GradedBy,
		grade.SubmittedBy, grade.TeamMembers, grade.Attachment, grade.CreatedAt, grade.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return school.ActivityGrade{}, school.ErrSubmissionExists
		}
		return school.ActivityGrade{}, errors.Wrap(err, "inserting grade")
	}
	return grade, nil
}

func (repo *schoolRepository) GetActivityGradeByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.ActivityGrade, error) {
	var row gradeRow
	err := sqlx.GetContext(ctx, repo.exec(exec), &row,
		`SELECT `+gradeColumns+` FROM activity_grade WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.ActivityGrade{}, school.ErrNotFound
		}
		return school.ActivityGrade{}, errors.Wrap(err, "getting grade")
	}
	return row.toGrade(), nil
}

func (repo *schoolRepository) GetActivityGradeByPair(ctx context.Context, activityID, enrollmentID string, exec ...core.DBExecutor) (school.ActivityGrade, error) {
	var row gradeRow
	err := sqlx.GetContext(ctx, repo.exec(exec), &row,
		`SELECT `+gradeColumns+` FROM activity_grade WHERE activity_id = $1 AND enrollment_id = $2`,
		activityID, enrollmentID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.ActivityGrade{}, school.ErrNotFound
		}
		return school.ActivityGrade{}, errors.Wrap(err, "getting grade")
	}
	return row.toGrade(), nil
}

func (repo *schoolRepository) QueryActivityGrades(ctx context.Context, activityID string, exec ...core.DBExecutor) ([]school.ActivityGrade, error) {
	var rows []gradeRow
	err := sqlx.SelectContext(ctx, repo.exec(exec), &rows,
		`SELECT `+gradeColumns+` FROM activity_grade WHERE activity_id = $1 ORDER BY created_at ASC`,
		activityID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]school.ActivityGrade, len(rows))
	for i, row := range rows {
		grades[i] = row.toGrade()
	}
	return grades, nil
}

func (repo *schoolRepository) UpdateActivityGrade(ctx context.Context, grade school.ActivityGrade, exec ...core.DBExecutor) (school.ActivityGrade, error) {
	res, err := repo.exec(exec).ExecContext(ctx,
		`UPDATE activity_grade
		 SET grade = $2, graded_by = $3, submitted_by = $4, team_members = $5, attachment = $6, updated_at = $7
		 WHERE id = $1`,
		grade.ID, grade.Grade, grade.GradedBy, grade.SubmittedBy, grade.TeamMembers, grade.Attachment, grade.UpdatedAt,
	)
	if err != nil {
		return school.ActivityGrade{}, errors.Wrap(err, "updating grade")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.ActivityGrade{}, school.ErrNotFound
	}
	return grade, nil
}

func (repo *schoolRepository) GradeTaughtBy(ctx context.Context, gradeID, teacherID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.exec(exec), &exists,
		`SELECT EXISTS (
			SELECT 1 FROM activity_grade g
			JOIN activity a ON a.id = g.activity_id
			JOIN teacher_subject ts ON ts.subject_id = a.subject_id
			WHERE g.id = $1 AND ts.teacher_id = $2
		)`,
		gradeID, teacherID,
	)
	return exists, errors.Wrap(err, "checking grade ownership")
}

func (repo *schoolRepository) GradeOwnedBy(ctx context.Context, gradeID, studentID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.exec(exec), &exists,
		`SELECT EXISTS (
			SELECT 1 FROM activity_grade g
			JOIN enrollment e ON e.id = g.enrollment_id
			WHERE g.id = $1 AND e.student_id = $2
		)`,
		gradeID, studentID,
	)
	return exists, errors.Wrap(err, "checking grade enrollment")
}
