package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

func createTestSubject(t *testing.T, teacher user.User, name, gradeLevel string) school.Subject {
	t.Helper()

	subj, err := schSvc.CreateSubject(context.Background(),
		user.Identity{UserID: teacher.ID, Roles: teacher.Roles},
		school.NewSubject{Name: name, GradeLevel: gradeLevel})
	if err != nil {
		t.Fatalf("CreateSubject(): %v", err)
	}
	return subj
}

func createTestActivity(t *testing.T, teacher user.User, subjectID, name string) school.Activity {
	t.Helper()

	act, err := schSvc.CreateActivity(context.Background(),
		user.Identity{UserID: teacher.ID, Roles: teacher.Roles},
		school.NewActivity{SubjectID: subjectID, Name: name, Kind: "individual"})
	if err != nil {
		t.Fatalf("CreateActivity(): %v", err)
	}
	return act
}

func enrollTestStudent(t *testing.T, teacher, stud user.User, subjectID string) school.Enrollment {
	t.Helper()

	enr, err := schSvc.Enroll(context.Background(),
		user.Identity{UserID: teacher.ID, Roles: teacher.Roles}, subjectID, stud.ID)
	if err != nil {
		t.Fatalf("Enroll(): %v", err)
	}
	return enr
}

func Test_subjectApi_create(t *testing.T) {
	teacher := createTestUser(t, "subj-create-teacher", []string{user.RoleTeacher}, true)
	other := createTestUser(t, "subj-create-other", []string{user.RoleTeacher}, true)
	stud := createTestStudent(t, "subj-create-stud", "")

	tests := []httpTest{
		{
			name: "staff only", session: stud.ID,
			body:     marshallObj(t, school.NewSubject{Name: "Algebra"}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermissionDenied),
		},
		{
			name: "missing name", session: teacher.ID,
			body:     marshallObj(t, school.NewSubject{}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid grade level", session: teacher.ID,
			body:     marshallObj(t, school.NewSubject{Name: "Algebra", GradeLevel: "year_9"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "teacher cannot assign someone else", session: teacher.ID,
			body:     marshallObj(t, school.NewSubject{Name: "Algebra", TeacherID: other.ID}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermissionDenied),
		},
		{
			name: "created", session: teacher.ID,
			body:     marshallObj(t, school.NewSubject{Name: "Algebra", Capacity: 30}),
			wantCode: http.StatusCreated,
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/subjects"
	}
	runHTTPTests(t, tests)
}

func Test_subjectApi_retrieve(t *testing.T) {
	teacher := createTestUser(t, "subj-get-teacher", []string{user.RoleTeacher}, true)
	colleague := createTestUser(t, "subj-get-colleague", []string{user.RoleTeacher}, true)
	stud := createTestStudent(t, "subj-get-stud", "")

	subj := createTestSubject(t, teacher, "Biology", "")
	enrollTestStudent(t, teacher, stud, subj.ID)

	tests := []httpTest{
		{
			name: "unknown subject", path: "/v1/subjects/" + uuid.New().String(), session: teacher.ID,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
		{name: "owning teacher", path: "/v1/subjects/" + subj.ID, session: teacher.ID, wantCode: http.StatusOK},
		{name: "enrolled student", path: "/v1/subjects/" + subj.ID, session: stud.ID, wantCode: http.StatusOK},
		{
			name: "unrelated teacher", path: "/v1/subjects/" + subj.ID, session: colleague.ID,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermissionDenied),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, tests)
}

func Test_subjectApi_update(t *testing.T) {
	admin := createTestUser(t, "subj-upd-admin", []string{user.RoleAdmin}, true)
	teacher := createTestUser(t, "subj-upd-teacher", []string{user.RoleTeacher}, true)
	replacement := createTestUser(t, "subj-upd-replacement", []string{user.RoleTeacher}, true)

	subj := createTestSubject(t, teacher, "Chemistry", "")

	tests := []httpTest{
		{
			name: "teacher renames", session: teacher.ID, path: "/v1/subjects/" + subj.ID,
			body: marshallObj(t, school.UpdateSubject{Name: "Chemistry I"}), wantCode: http.StatusOK,
		},
		{
			name: "reassignment is admin only", session: teacher.ID, path: "/v1/subjects/" + subj.ID,
			body:     marshallObj(t, school.UpdateSubject{TeacherID: replacement.ID}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermissionDenied),
		},
		{
			name: "admin reassigns", session: admin.ID, path: "/v1/subjects/" + subj.ID,
			body: marshallObj(t, school.UpdateSubject{TeacherID: replacement.ID}), wantCode: http.StatusOK,
		},
		{
			name: "previous owner lost access", session: teacher.ID, path: "/v1/subjects/" + subj.ID,
			body:     marshallObj(t, school.UpdateSubject{Name: "Hijacked"}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermissionDenied),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPut
	}
	runHTTPTests(t, tests)
}

func Test_subjectApi_enrollments(t *testing.T) {
	teacher := createTestUser(t, "subj-enr-teacher", []string{user.RoleTeacher}, true)
	stud := createTestStudent(t, "subj-enr-stud", "")

	subj := createTestSubject(t, teacher, "Physics", "")

	body := marshallObj(t, EnrollRequest{StudentID: stud.ID})

	t.Run("student may not manage the roster", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodPost, "/v1/subjects/"+subj.ID+"/enrollments", stud.ID, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	var first school.Enrollment
	t.Run("teacher enrolls a student", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodPost, "/v1/subjects/"+subj.ID+"/enrollments", teacher.ID, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
	})

	t.Run("enrolling twice returns the same record", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodPost, "/v1/subjects/"+subj.ID+"/enrollments", teacher.ID, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var second school.Enrollment
		if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("failed! enrollment = %v; want %v", second.ID, first.ID)
		}
	})

	t.Run("roster lists the student", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodGet, "/v1/subjects/"+subj.ID+"/roster", teacher.ID)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var roster []school.Enrollment
		if err := json.Unmarshal(rec.Body.Bytes(), &roster); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if len(roster) != 1 || roster[0].StudentID != stud.ID {
			t.Errorf("failed! roster = %+v", roster)
		}
	})

	t.Run("unenroll", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodDelete, "/v1/subjects/"+subj.ID+"/enrollments/"+stud.ID, teacher.ID)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusNoContent)
		}
	})
}

func Test_activityApi_lifecycle(t *testing.T) {
	teacher := createTestUser(t, "act-teacher", []string{user.RoleTeacher}, true)
	stud := createTestStudent(t, "act-stud", "")
	outsider := createTestStudent(t, "act-outsider", "")

	subj := createTestSubject(t, teacher, "Geometry", "")
	enrollTestStudent(t, teacher, stud, subj.ID)

	var act school.Activity
	t.Run("teacher creates an activity", func(t *testing.T) {
		body := marshallObj(t, school.NewActivity{SubjectID: subj.ID, Name: "Homework 1", Kind: "individual"})
		req, rec := newSessionRequest(http.MethodPost, "/v1/activities", teacher.ID, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &act); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
	})

	t.Run("student listing carries the derived status", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodGet, "/v1/subjects/"+subj.ID+"/activities", stud.ID)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var infos []school.ActivityInfo
		if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if len(infos) != 1 || infos[0].Status == nil || infos[0].Status.Code != school.StatusPending {
			t.Errorf("failed! infos = %+v", infos)
		}
	})

	t.Run("teachers may not submit", func(t *testing.T) {
		body := marshallObj(t, school.NewSubmission{SubmittedBy: teacher.ID})
		req, rec := newSessionRequest(http.MethodPost, "/v1/activities/"+act.ID+"/submissions", teacher.ID, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("outsider student may not submit", func(t *testing.T) {
		body := marshallObj(t, school.NewSubmission{SubmittedBy: outsider.ID})
		req, rec := newSessionRequest(http.MethodPost, "/v1/activities/"+act.ID+"/submissions", outsider.ID, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	var row school.ActivityGrade
	t.Run("enrolled student submits once", func(t *testing.T) {
		body := marshallObj(t, school.NewSubmission{SubmittedBy: stud.ID, Attachment: "hw1.pdf"})
		req, rec := newSessionRequest(http.MethodPost, "/v1/activities/"+act.ID+"/submissions", stud.ID, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &row); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
	})

	t.Run("second submission conflicts", func(t *testing.T) {
		body := marshallObj(t, school.NewSubmission{SubmittedBy: stud.ID})
		req, rec := newSessionRequest(http.MethodPost, "/v1/activities/"+act.ID+"/submissions", stud.ID, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: school.ErrSubmissionExists.Error()}),
		}, rec)
	})

	t.Run("teacher grades the submission", func(t *testing.T) {
		body := marshallObj(t, school.GradeInput{EnrollmentID: row.EnrollmentID, Grade: 16})
		req, rec := newSessionRequest(http.MethodPost, "/v1/activities/"+act.ID+"/grades", teacher.ID, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("student sees their graded status", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodGet, "/v1/activities/"+act.ID+"/grades", stud.ID)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var infos []school.GradeInfo
		if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if len(infos) != 1 || infos[0].Status.Code != school.StatusGraded {
			t.Errorf("failed! infos = %+v", infos)
		}
	})

	t.Run("grade detail is owner or staff only", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodGet, "/v1/grades/"+row.ID, outsider.ID)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}

		req, rec = newSessionRequest(http.MethodGet, "/v1/grades/"+row.ID, stud.ID)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_subjectApi_resync(t *testing.T) {
	admin := createTestUser(t, "resync-admin", []string{user.RoleAdmin}, true)
	teacher := createTestUser(t, "resync-teacher", []string{user.RoleTeacher}, true)

	subj := createTestSubject(t, teacher, "History", "year_3")
	// the student appears after the subject's initial sync ran
	stud := createTestStudent(t, "resync-stud", "year_3")

	t.Run("admin only", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodPost, "/v1/subjects/"+subj.ID+"/resync", teacher.ID)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("resync enrolls matching students", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodPost, "/v1/subjects/"+subj.ID+"/resync", admin.ID)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		if _, err := schRepo.GetEnrollment(context.Background(), stud.ID, subj.ID); err != nil {
			t.Errorf("GetEnrollment(): %v", err)
		}
	})
}
