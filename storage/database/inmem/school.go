package inmem

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

// subjects

func (repo *schoolRepository) CreateSubject(ctx context.Context, subj school.Subject, exec ...core.DBExecutor) (school.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.subjects[subj.ID] = &subj
	return subj, nil
}

func (repo *schoolRepository) GetSubjectByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if subj, ok := repo.db.subjects[id]; ok {
		return *subj, nil
	}
	return school.Subject{}, school.ErrNotFound
}

func (repo *schoolRepository) QuerySubjects(ctx context.Context, filter *school.SubjectFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subjects := make([]school.Subject, 0, len(repo.db.subjects))
	for _, subj := range repo.db.subjects {
		if filter != nil && !filter.IsEmpty() {
			if filter.TeacherID != "" && !repo.db.teacherSubjects[school.TeacherSubject{TeacherID: filter.TeacherID, SubjectID: subj.ID}] {
				continue
			}
			if filter.StudentID != "" && !repo.enrollmentExists(filter.StudentID, subj.ID) {
				continue
			}
			if filter.GradeLevel != "" && subj.GradeLevel.String != filter.GradeLevel {
				continue
			}
		}
		subjects = append(subjects, *subj)
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].Name == subjects[j].Name {
			return subjects[i].ID < subjects[j].ID
		}
		return strings.ToLower(subjects[i].Name) < strings.ToLower(subjects[j].Name)
	})
	return subjects, nil
}

func (repo *schoolRepository) UpdateSubject(ctx context.Context, subj school.Subject, exec ...core.DBExecutor) (school.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.subjects[subj.ID]; !ok {
		return school.Subject{}, school.ErrNotFound
	}
	repo.db.subjects[subj.ID] = &subj
	return subj, nil
}

func (repo *schoolRepository) DeleteSubjectsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.subjects[id]; !ok {
			continue
		}
		delete(repo.db.subjects, id)
		n++

		// emulate ON DELETE CASCADE
		for ts := range repo.db.teacherSubjects {
			if ts.SubjectID == id {
				delete(repo.db.teacherSubjects, ts)
			}
		}
		for enrID, enr := range repo.db.enrollments {
			if enr.SubjectID == id {
				delete(repo.db.enrollments, enrID)
				repo.deleteGradesByEnrollment(enrID)
			}
		}
		for actID, act := range repo.db.activities {
			if act.SubjectID == id {
				delete(repo.db.activities, actID)
				repo.deleteGradesByActivity(actID)
			}
		}
	}
	return n, nil
}

// teacher-subject associations

func (repo *schoolRepository) AddTeacherSubject(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.teacherSubjects[school.TeacherSubject{TeacherID: teacherID, SubjectID: subjectID}] = true
	return nil
}

func (repo *schoolRepository) RemoveTeacherSubject(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.teacherSubjects, school.TeacherSubject{TeacherID: teacherID, SubjectID: subjectID})
	return nil
}

func (repo *schoolRepository) TeacherSubjectExists(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.db.teacherSubjects[school.TeacherSubject{TeacherID: teacherID, SubjectID: subjectID}], nil
}

// enrollments

func (repo *schoolRepository) enrollmentExists(studentID, subjectID string) bool {
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.SubjectID == subjectID {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) getEnrollment(studentID, subjectID string) (school.Enrollment, bool) {
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.SubjectID == subjectID {
			return *enr, true
		}
	}
	return school.Enrollment{}, false
}

func (repo *schoolRepository) deleteGradesByEnrollment(enrollmentID string) {
	for id, g := range repo.db.grades {
		if g.EnrollmentID == enrollmentID {
			delete(repo.db.grades, id)
		}
	}
}

func (repo *schoolRepository) deleteGradesByActivity(activityID string) {
	for id, g := range repo.db.grades {
		if g.ActivityID == activityID {
			delete(repo.db.grades, id)
		}
	}
}

func (repo *schoolRepository) CreateEnrollment(ctx context.Context, enr school.Enrollment, exec ...core.DBExecutor) (school.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// emulate ON CONFLICT DO NOTHING on (student_id, subject_id)
	if existing, ok := repo.getEnrollment(enr.StudentID, enr.SubjectID); ok {
		return existing, nil
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *schoolRepository) GetEnrollmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if enr, ok := repo.db.enrollments[id]; ok {
		return *enr, nil
	}
	return school.Enrollment{}, school.ErrNotFound
}

func (repo *schoolRepository) GetEnrollment(ctx context.Context, studentID, subjectID string, exec ...core.DBExecutor) (school.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if enr, ok := repo.getEnrollment(studentID, subjectID); ok {
		return enr, nil
	}
	return school.Enrollment{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryEnrollments(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]school.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]school.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.SubjectID == subjectID {
			enrollments = append(enrollments, *enr)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool {
		if enrollments[i].CreatedAt.Equal(enrollments[j].CreatedAt) {
			return enrollments[i].ID < enrollments[j].ID
		}
		return enrollments[i].CreatedAt.Before(enrollments[j].CreatedAt)
	})
	return enrollments, nil
}

func (repo *schoolRepository) DeleteEnrollment(ctx context.Context, studentID, subjectID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.SubjectID == subjectID {
			delete(repo.db.enrollments, id)
			repo.deleteGradesByEnrollment(id)
		}
	}
	return nil
}

func (repo *schoolRepository) EnrollmentExists(ctx context.Context, studentID, subjectID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.enrollmentExists(studentID, subjectID), nil
}

func (repo *schoolRepository) EnrolledStudentIDs(ctx context.Context, subjectID string, level core.GradeLevel, exec ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids []string
	for _, enr := range repo.db.enrollments {
		if enr.SubjectID != subjectID {
			continue
		}
		if prof, ok := repo.db.profiles[enr.StudentID]; ok && prof.GradeLevel.String == level.String() {
			ids = append(ids, enr.StudentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *schoolRepository) StudentIDsByGradeLevel(ctx context.Context, level core.GradeLevel, exec ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids []string
	for userID, prof := range repo.db.profiles {
		if prof.GradeLevel.String != level.String() {
			continue
		}
		if usr, ok := repo.db.users[userID]; ok && usr.IsActive && usr.HasRole(user.RoleStudent) {
			ids = append(ids, userID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// activities

func (repo *schoolRepository) CreateActivity(ctx context.Context, act school.Activity, exec ...core.DBExecutor) (school.Activity, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.activities[act.ID] = &act
	return act, nil
}

func (repo *schoolRepository) GetActivityByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.Activity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if act, ok := repo.db.activities[id]; ok {
		return *act, nil
	}
	return school.Activity{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryActivities(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]school.Activity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	activities := make([]school.Activity, 0)
	for _, act := range repo.db.activities {
		if act.SubjectID == subjectID {
			activities = append(activities, *act)
		}
	}
	sort.Slice(activities, func(i, j int) bool {
		if activities[i].CreatedAt.Equal(activities[j].CreatedAt) {
			return activities[i].ID < activities[j].ID
		}
		return activities[i].CreatedAt.Before(activities[j].CreatedAt)
	})
	return activities, nil
}

func (repo *schoolRepository) UpdateActivity(ctx context.Context, act school.Activity, exec ...core.DBExecutor) (school.Activity, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.activities[act.ID]; !ok {
		return school.Activity{}, school.ErrNotFound
	}
	repo.db.activities[act.ID] = &act
	return act, nil
}

func (repo *schoolRepository) DeleteActivitiesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.activities[id]; ok {
			delete(repo.db.activities, id)
			repo.deleteGradesByActivity(id)
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) ActivityTaughtBy(ctx context.Context, activityID, teacherID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	act, ok := repo.db.activities[activityID]
	if !ok {
		return false, nil
	}
	return repo.db.teacherSubjects[school.TeacherSubject{TeacherID: teacherID, SubjectID: act.SubjectID}], nil
}

// grades

func (repo *schoolRepository) CreateActivityGrade(ctx context.Context, grade school.ActivityGrade, exec ...core.DBExecutor) (school.ActivityGrade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// emulate the UNIQUE (activity_id, enrollment_id) constraint
	for _, existing := range repo.db.grades {
		if existing.ActivityID == grade.ActivityID && existing.EnrollmentID == grade.EnrollmentID {
			return school.ActivityGrade{}, school.ErrSubmissionExists
		}
	}
	repo.db.grades[grade.ID] = &grade
	return grade, nil
}

func (repo *schoolRepository) GetActivityGradeByID(ctx context.Context, id string, exec ...core.DBExecutor) (school.ActivityGrade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		return *g, nil
	}
	return school.ActivityGrade{}, school.ErrNotFound
}

func (repo *schoolRepository) GetActivityGradeByPair(ctx context.Context, activityID, enrollmentID string, exec ...core.DBExecutor) (school.ActivityGrade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, g := range repo.db.grades {
		if g.ActivityID == activityID && g.EnrollmentID == enrollmentID {
			return *g, nil
		}
	}
	return school.ActivityGrade{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryActivityGrades(ctx context.Context, activityID string, exec ...core.DBExecutor) ([]school.ActivityGrade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grades := make([]school.ActivityGrade, 0)
	for _, g := range repo.db.grades {
		if g.ActivityID == activityID {
			grades = append(grades, *g)
		}
	}
	sort.Slice(grades, func(i, j int) bool {
		if grades[i].CreatedAt.Equal(grades[j].CreatedAt) {
			return grades[i].ID < grades[j].ID
		}
		return grades[i].CreatedAt.Before(grades[j].CreatedAt)
	})
	return grades, nil
}

func (repo *schoolRepository) UpdateActivityGrade(ctx context.Context, grade school.ActivityGrade, exec ...core.DBExecutor) (school.ActivityGrade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.grades[grade.ID]; !ok {
		return school.ActivityGrade{}, school.ErrNotFound
	}
	repo.db.grades[grade.ID] = &grade
	return grade, nil
}

func (repo *schoolRepository) GradeTaughtBy(ctx context.Context, gradeID, teacherID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	g, ok := repo.db.grades[gradeID]
	if !ok {
		return false, nil
	}
	act, ok := repo.db.activities[g.ActivityID]
	if !ok {
		return false, nil
	}
	return repo.db.teacherSubjects[school.TeacherSubject{TeacherID: teacherID, SubjectID: act.SubjectID}], nil
}

func (repo *schoolRepository) GradeOwnedBy(ctx context.Context, gradeID, studentID string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	g, ok := repo.db.grades[gradeID]
	if !ok {
		return false, nil
	}
	enr, ok := repo.db.enrollments[g.EnrollmentID]
	if !ok {
		return false, nil
	}
	return enr.StudentID == studentID, nil
}
