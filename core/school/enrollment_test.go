package school_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// flakyRepo rejects enrollment writes for one student to exercise the
// log-and-skip behavior of batch syncs.
type flakyRepo struct {
	school.Repository
	failStudentID string
}

func (r *flakyRepo) CreateEnrollment(ctx context.Context, enr school.Enrollment, exec ...core.DBExecutor) (school.Enrollment, error) {
	if enr.StudentID == r.failStudentID {
		return school.Enrollment{}, errors.New("constraint violation")
	}
	return r.Repository.CreateEnrollment(ctx, enr, exec...)
}

func TestService_Enroll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
	other := env.createUser(t, "other", []string{user.RoleTeacher})
	stud := env.createStudent(t, "stud", "")

	subj, err := env.svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra"})
	require.NoError(t, err)

	t.Run("unknown subject", func(t *testing.T) {
		_, err := env.svc.Enroll(ctx, ident(teacher), "nope", stud.ID)
		assert.ErrorIs(t, err, school.ErrNotFound)
	})

	t.Run("unrelated teacher is forbidden", func(t *testing.T) {
		_, err := env.svc.Enroll(ctx, ident(other), subj.ID, stud.ID)
		assert.ErrorIs(t, err, school.ErrForbidden)
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := env.svc.Enroll(ctx, ident(teacher), subj.ID, "nope")
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("non-student user", func(t *testing.T) {
		_, err := env.svc.Enroll(ctx, ident(teacher), subj.ID, other.ID)
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("enrolling twice returns the existing record", func(t *testing.T) {
		first, err := env.svc.Enroll(ctx, ident(teacher), subj.ID, stud.ID)
		require.NoError(t, err)

		second, err := env.svc.Enroll(ctx, ident(teacher), subj.ID, stud.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		roster, err := env.svc.SubjectRoster(ctx, ident(teacher), subj.ID)
		require.NoError(t, err)
		assert.Len(t, roster, 1)
	})
}

func TestService_Unenroll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
	stud := env.createStudent(t, "stud", "")

	subj, err := env.svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra"})
	require.NoError(t, err)

	// removing an absent enrollment is a no-op
	require.NoError(t, env.svc.Unenroll(ctx, ident(teacher), subj.ID, stud.ID))

	_, err = env.svc.Enroll(ctx, ident(teacher), subj.ID, stud.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Unenroll(ctx, ident(teacher), subj.ID, stud.ID))
	assert.False(t, env.isEnrolled(t, stud.ID, subj.ID))
}

func TestService_UpdateStudentProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
	stud := env.createStudent(t, "stud", "year_1")

	y1Subj, err := env.svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra I", GradeLevel: "year_1"})
	require.NoError(t, err)
	y2Subj, err := env.svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra II", GradeLevel: "year_2"})
	require.NoError(t, err)
	require.True(t, env.isEnrolled(t, stud.ID, y1Subj.ID))

	t.Run("registration code change leaves enrollments alone", func(t *testing.T) {
		prof, err := env.svc.UpdateStudentProfile(ctx, stud.ID, user.UpdateProfile{RegistrationCode: "reg-007"})
		require.NoError(t, err)
		assert.Equal(t, "reg-007", prof.RegistrationCode.String)
		assert.True(t, env.isEnrolled(t, stud.ID, y1Subj.ID))
		assert.False(t, env.isEnrolled(t, stud.ID, y2Subj.ID))
	})

	t.Run("grade change moves the student", func(t *testing.T) {
		prof, err := env.svc.UpdateStudentProfile(ctx, stud.ID, user.UpdateProfile{GradeLevel: "year_2"})
		require.NoError(t, err)
		assert.Equal(t, "year_2", prof.GradeLevel.String)
		assert.False(t, env.isEnrolled(t, stud.ID, y1Subj.ID))
		assert.True(t, env.isEnrolled(t, stud.ID, y2Subj.ID))
	})

	t.Run("registration code already taken", func(t *testing.T) {
		other := env.createStudent(t, "other", "year_1")
		_, err := env.svc.UpdateStudentProfile(ctx, other.ID, user.UpdateProfile{RegistrationCode: "reg-007"})
		assert.ErrorIs(t, err, user.ErrRegCodeExists)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.svc.UpdateStudentProfile(ctx, "nope", user.UpdateProfile{GradeLevel: "year_1"})
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}

func TestService_syncSkipsFailingStudents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
	good := env.createStudent(t, "good", "year_1")
	bad := env.createStudent(t, "bad", "year_1")

	repo := &flakyRepo{Repository: env.repo, failStudentID: bad.ID}
	svc := school.NewServiceMock(env.db, repo, env.usrRepo, discardLogger())

	subj, err := svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra", GradeLevel: "year_1"})
	require.NoError(t, err)

	// one student failing to enroll never aborts the rest of the batch
	assert.True(t, env.isEnrolled(t, good.ID, subj.ID))
	assert.False(t, env.isEnrolled(t, bad.ID, subj.ID))
}

// Grade-driven enrollment reflects the current profile-vs-subject matching,
// never its history: students enter and leave with every change on either
// side.
func TestService_gradeDrivenEnrollmentLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
	studA := env.createStudent(t, "a", "year_1")
	studB := env.createStudent(t, "b", "year_2")

	// subject pinned to year_1: A joins, B does not
	subj, err := env.svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra", GradeLevel: "year_1"})
	require.NoError(t, err)
	assert.True(t, env.isEnrolled(t, studA.ID, subj.ID))
	assert.False(t, env.isEnrolled(t, studB.ID, subj.ID))

	// B moves to year_1 and joins
	_, err = env.svc.UpdateStudentProfile(ctx, studB.ID, user.UpdateProfile{GradeLevel: "year_1"})
	require.NoError(t, err)
	assert.True(t, env.isEnrolled(t, studB.ID, subj.ID))

	// the subject moves to year_2: both leave, nobody matches anymore
	_, err = env.svc.UpdateSubject(ctx, ident(teacher), subj.ID, school.UpdateSubject{GradeLevel: "year_2"})
	require.NoError(t, err)
	assert.False(t, env.isEnrolled(t, studA.ID, subj.ID))
	assert.False(t, env.isEnrolled(t, studB.ID, subj.ID))
}

func TestService_ResyncSubjectEnrollments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
	skipped := env.createStudent(t, "skipped", "year_1")

	repo := &flakyRepo{Repository: env.repo, failStudentID: skipped.ID}
	svc := school.NewServiceMock(env.db, repo, env.usrRepo, discardLogger())

	subj, err := svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra", GradeLevel: "year_1"})
	require.NoError(t, err)
	require.False(t, env.isEnrolled(t, skipped.ID, subj.ID))

	// once the record is fixed, a resync picks the student up
	require.NoError(t, env.svc.ResyncSubjectEnrollments(ctx, subj.ID))
	assert.True(t, env.isEnrolled(t, skipped.ID, subj.ID))
}

func TestService_ResyncStudentEnrollments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
	stud := env.createStudent(t, "stud", "year_1")

	repo := &flakyRepo{Repository: env.repo, failStudentID: stud.ID}
	svc := school.NewServiceMock(env.db, repo, env.usrRepo, discardLogger())

	subj, err := svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra", GradeLevel: "year_1"})
	require.NoError(t, err)
	require.False(t, env.isEnrolled(t, stud.ID, subj.ID))

	require.NoError(t, env.svc.ResyncStudentEnrollments(ctx, stud.ID))
	assert.True(t, env.isEnrolled(t, stud.ID, subj.ID))

	// resync is idempotent
	require.NoError(t, env.svc.ResyncStudentEnrollments(ctx, stud.ID))
	roster, err := env.svc.SubjectRoster(ctx, ident(teacher), subj.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 1)
}
