package school_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database/inmem"
)

type testEnv struct {
	db      *inmem.DB
	repo    school.Repository
	usrRepo user.Repository
	svc     school.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := inmem.NewDB()
	repo := inmem.NewSchoolRepository(db)
	usrRepo := inmem.NewUserRepository(db)
	return &testEnv{
		db:      db,
		repo:    repo,
		usrRepo: usrRepo,
		svc:     school.NewServiceMock(db, repo, usrRepo, discardLogger()),
	}
}

func discardLogger() *logsvc.StdLogger {
	return logsvc.NewStdLogger(log.New(io.Discard, "", 0))
}

func (env *testEnv) createUser(t *testing.T, name string, roles []string) user.User {
	t.Helper()

	usr := user.User{
		ID:       uuid.New().String(),
		Name:     name,
		Email:    name + "@test.cd",
		IsActive: true,
		Roles:    roles,
	}
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func (env *testEnv) createStudent(t *testing.T, name, gradeLevel string) user.User {
	t.Helper()

	usr := env.createUser(t, name, []string{user.RoleStudent})
	if gradeLevel != "" {
		_, err := env.usrRepo.UpsertProfile(context.Background(), user.Profile{
			UserID:     usr.ID,
			GradeLevel: null.StringFrom(gradeLevel),
		})
		require.NoError(t, err)
	}
	return usr
}

func ident(usr user.User) user.Identity {
	return user.Identity{UserID: usr.ID, Roles: usr.Roles}
}

func (env *testEnv) isEnrolled(t *testing.T, studentID, subjectID string) bool {
	t.Helper()

	_, err := env.repo.GetEnrollment(context.Background(), studentID, subjectID)
	if err != nil {
		require.ErrorIs(t, err, school.ErrNotFound)
		return false
	}
	return true
}

func TestService_CreateSubject(t *testing.T) {
	ctx := context.Background()

	t.Run("teacher becomes owner", func(t *testing.T) {
		env := newTestEnv(t)
		teacher := env.createUser(t, "teach", []string{user.RoleTeacher})

		subj, err := env.svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra", Capacity: 30})
		require.NoError(t, err)
		assert.Equal(t, null.StringFrom(teacher.ID), subj.TeacherID)

		ok, err := env.repo.TeacherSubjectExists(ctx, teacher.ID, subj.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("admin assigns another owner", func(t *testing.T) {
		env := newTestEnv(t)
		admin := env.createUser(t, "admin", []string{user.RoleAdmin})
		teacher := env.createUser(t, "teach", []string{user.RoleTeacher})

		subj, err := env.svc.CreateSubject(ctx, ident(admin), school.NewSubject{Name: "Biology", TeacherID: teacher.ID})
		require.NoError(t, err)
		assert.Equal(t, null.StringFrom(teacher.ID), subj.TeacherID)

		ok, err := env.repo.TeacherSubjectExists(ctx, teacher.ID, subj.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("grade level auto-enrolls matching students", func(t *testing.T) {
		env := newTestEnv(t)
		teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
		y1 := env.createStudent(t, "y1", "year_1")
		y2 := env.createStudent(t, "y2", "year_2")

		subj, err := env.svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra", GradeLevel: "year_1"})
		require.NoError(t, err)

		assert.True(t, env.isEnrolled(t, y1.ID, subj.ID))
		assert.False(t, env.isEnrolled(t, y2.ID, subj.ID))
	})
}

func TestService_GetSubject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	admin := env.createUser(t, "admin", []string{user.RoleAdmin})
	owner := env.createUser(t, "owner", []string{user.RoleTeacher})
	other := env.createUser(t, "other", []string{user.RoleTeacher})
	stud := env.createStudent(t, "stud", "")
	outsider := env.createStudent(t, "outsider", "")

	subj, err := env.svc.CreateSubject(ctx, ident(owner), school.NewSubject{Name: "Algebra"})
	require.NoError(t, err)
	_, err = env.svc.Enroll(ctx, ident(owner), subj.ID, stud.ID)
	require.NoError(t, err)

	t.Run("unknown subject", func(t *testing.T) {
		_, err := env.svc.GetSubject(ctx, ident(admin), uuid.New().String())
		assert.ErrorIs(t, err, school.ErrNotFound)
	})
	t.Run("admin", func(t *testing.T) {
		got, err := env.svc.GetSubject(ctx, ident(admin), subj.ID)
		require.NoError(t, err)
		assert.Equal(t, subj.ID, got.ID)
	})
	t.Run("owning teacher", func(t *testing.T) {
		_, err := env.svc.GetSubject(ctx, ident(owner), subj.ID)
		assert.NoError(t, err)
	})
	t.Run("unrelated teacher", func(t *testing.T) {
		_, err := env.svc.GetSubject(ctx, ident(other), subj.ID)
		assert.ErrorIs(t, err, school.ErrForbidden)
	})
	t.Run("enrolled student", func(t *testing.T) {
		_, err := env.svc.GetSubject(ctx, ident(stud), subj.ID)
		assert.NoError(t, err)
	})
	t.Run("unenrolled student", func(t *testing.T) {
		_, err := env.svc.GetSubject(ctx, ident(outsider), subj.ID)
		assert.ErrorIs(t, err, school.ErrForbidden)
	})
}

func TestService_QuerySubjects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	admin := env.createUser(t, "admin", []string{user.RoleAdmin})
	t1 := env.createUser(t, "t1", []string{user.RoleTeacher})
	t2 := env.createUser(t, "t2", []string{user.RoleTeacher})
	stud := env.createStudent(t, "stud", "")

	s1, err := env.svc.CreateSubject(ctx, ident(t1), school.NewSubject{Name: "Algebra"})
	require.NoError(t, err)
	s2, err := env.svc.CreateSubject(ctx, ident(t2), school.NewSubject{Name: "Biology"})
	require.NoError(t, err)
	_, err = env.svc.Enroll(ctx, ident(t2), s2.ID, stud.ID)
	require.NoError(t, err)

	subjectIDs := func(subjects []school.Subject) []string {
		ids := make([]string, 0, len(subjects))
		for _, s := range subjects {
			ids = append(ids, s.ID)
		}
		return ids
	}

	t.Run("admin sees all", func(t *testing.T) {
		got, err := env.svc.QuerySubjects(ctx, ident(admin))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{s1.ID, s2.ID}, subjectIDs(got))
	})
	t.Run("teacher sees own", func(t *testing.T) {
		got, err := env.svc.QuerySubjects(ctx, ident(t1))
		require.NoError(t, err)
		assert.Equal(t, []string{s1.ID}, subjectIDs(got))
	})
	t.Run("student sees enrolled", func(t *testing.T) {
		got, err := env.svc.QuerySubjects(ctx, ident(stud))
		require.NoError(t, err)
		assert.Equal(t, []string{s2.ID}, subjectIDs(got))
	})
}

func TestService_UpdateSubject(t *testing.T) {
	ctx := context.Background()

	t.Run("reassignment swaps ownership", func(t *testing.T) {
		env := newTestEnv(t)
		admin := env.createUser(t, "admin", []string{user.RoleAdmin})
		old := env.createUser(t, "old", []string{user.RoleTeacher})
		replacement := env.createUser(t, "new", []string{user.RoleTeacher})

		subj, err := env.svc.CreateSubject(ctx, ident(old), school.NewSubject{Name: "Algebra"})
		require.NoError(t, err)

		got, err := env.svc.UpdateSubject(ctx, ident(admin), subj.ID, school.UpdateSubject{TeacherID: replacement.ID})
		require.NoError(t, err)
		assert.Equal(t, null.StringFrom(replacement.ID), got.TeacherID)

		// the previous owner's access is gone the moment the update lands
		_, err = env.svc.GetSubject(ctx, ident(old), subj.ID)
		assert.ErrorIs(t, err, school.ErrForbidden)
		_, err = env.svc.GetSubject(ctx, ident(replacement), subj.ID)
		assert.NoError(t, err)
	})

	t.Run("non-owner teacher is forbidden", func(t *testing.T) {
		env := newTestEnv(t)
		owner := env.createUser(t, "owner", []string{user.RoleTeacher})
		other := env.createUser(t, "other", []string{user.RoleTeacher})

		subj, err := env.svc.CreateSubject(ctx, ident(owner), school.NewSubject{Name: "Algebra"})
		require.NoError(t, err)

		_, err = env.svc.UpdateSubject(ctx, ident(other), subj.ID, school.UpdateSubject{Name: "Hijacked"})
		assert.ErrorIs(t, err, school.ErrForbidden)
	})

	t.Run("grade level change swaps auto-enrollments", func(t *testing.T) {
		env := newTestEnv(t)
		teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
		y1 := env.createStudent(t, "y1", "year_1")
		y2 := env.createStudent(t, "y2", "year_2")
		manual := env.createStudent(t, "manual", "year_3")

		subj, err := env.svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra", GradeLevel: "year_1"})
		require.NoError(t, err)
		_, err = env.svc.Enroll(ctx, ident(teacher), subj.ID, manual.ID)
		require.NoError(t, err)

		_, err = env.svc.UpdateSubject(ctx, ident(teacher), subj.ID, school.UpdateSubject{GradeLevel: "year_2"})
		require.NoError(t, err)

		assert.False(t, env.isEnrolled(t, y1.ID, subj.ID))
		assert.True(t, env.isEnrolled(t, y2.ID, subj.ID))
		// manually enrolled students of another level stay put
		assert.True(t, env.isEnrolled(t, manual.ID, subj.ID))
	})

	t.Run("clearing the grade level removes matching students", func(t *testing.T) {
		env := newTestEnv(t)
		teacher := env.createUser(t, "teach", []string{user.RoleTeacher})
		y1 := env.createStudent(t, "y1", "year_1")

		subj, err := env.svc.CreateSubject(ctx, ident(teacher), school.NewSubject{Name: "Algebra", GradeLevel: "year_1"})
		require.NoError(t, err)
		require.True(t, env.isEnrolled(t, y1.ID, subj.ID))

		_, err = env.svc.UpdateSubject(ctx, ident(teacher), subj.ID, school.UpdateSubject{ClearGradeLevel: true})
		require.NoError(t, err)
		assert.False(t, env.isEnrolled(t, y1.ID, subj.ID))
	})
}

func TestService_DeleteSubject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	owner := env.createUser(t, "owner", []string{user.RoleTeacher})
	other := env.createUser(t, "other", []string{user.RoleTeacher})

	subj, err := env.svc.CreateSubject(ctx, ident(owner), school.NewSubject{Name: "Algebra"})
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.DeleteSubject(ctx, ident(other), subj.ID), school.ErrForbidden)

	require.NoError(t, env.svc.DeleteSubject(ctx, ident(owner), subj.ID))
	_, err = env.svc.GetSubject(ctx, ident(owner), subj.ID)
	assert.ErrorIs(t, err, school.ErrNotFound)
}

func TestService_SubjectRoster(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	owner := env.createUser(t, "owner", []string{user.RoleTeacher})
	stud := env.createStudent(t, "stud", "")

	subj, err := env.svc.CreateSubject(ctx, ident(owner), school.NewSubject{Name: "Algebra"})
	require.NoError(t, err)
	enr, err := env.svc.Enroll(ctx, ident(owner), subj.ID, stud.ID)
	require.NoError(t, err)

	roster, err := env.svc.SubjectRoster(ctx, ident(owner), subj.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, enr.ID, roster[0].ID)

	_, err = env.svc.SubjectRoster(ctx, ident(stud), subj.ID)
	assert.ErrorIs(t, err, school.ErrForbidden)
}
