package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/user"
)

func Test_userApi_login(t *testing.T) {
	usr := createTestUser(t, "login-usr", []string{user.RoleTeacher}, true)
	inactive := createTestUser(t, "login-inactive", []string{user.RoleTeacher}, false)

	authFailed := marshallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{
			name: "unknown email", wantCode: http.StatusBadRequest, wantData: authFailed,
			body: marshallObj(t, LoginRequest{Email: "nobody@test.cd", Password: "Test1234!"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest, wantData: authFailed,
			body: marshallObj(t, LoginRequest{Email: usr.Email, Password: "nope"}),
		},
		{
			name: "inactive account", wantCode: http.StatusBadRequest, wantData: authFailed,
			body: marshallObj(t, LoginRequest{Email: inactive.Email, Password: "Test1234!"}),
		},
		{
			name: "missing fields", wantCode: http.StatusBadRequest,
			body: marshallObj(t, LoginRequest{}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newSessionRequest(http.MethodPost, "/v1/users/login", "", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("login sets the session cookie", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodPost, "/v1/users/login", "",
			marshallObj(t, LoginRequest{Email: usr.Email, Password: "Test1234!"}))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == sessionCookieName {
				cookie = c
			}
		}
		if cookie == nil {
			t.Fatal("failed! no session cookie set")
		}
		if cookie.Value != usr.ID {
			t.Errorf("failed! cookie = %v; want %v", cookie.Value, usr.ID)
		}
		if !cookie.HttpOnly {
			t.Error("failed! session cookie must be HttpOnly")
		}

		var respData user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if respData.Email != usr.Email {
			t.Errorf("failed! email = %v; want %v", respData.Email, usr.Email)
		}
	})
}

func Test_userApi_logout(t *testing.T) {
	usr := createTestUser(t, "logout-usr", []string{user.RoleTeacher}, true)

	req, rec := newSessionRequest(http.MethodPost, "/v1/users/logout", usr.ID)
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge >= 0 {
			t.Error("failed! session cookie not cleared")
		}
	}
}

func Test_userApi_authErrors(t *testing.T) {
	admin := createTestUser(t, "autherr-admin", []string{user.RoleAdmin}, true)
	student := createTestStudent(t, "autherr-stud", "")
	roleless := createTestUser(t, "autherr-roleless", nil, true)
	inactive := createTestUser(t, "autherr-inactive", []string{user.RoleAdmin}, false)

	tests := []httpTest{
		{name: "no session", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errNotAuthenticated)},
		{name: "unknown session", session: uuid.New().String(), wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errNotAuthenticated)},
		{name: "inactive user", session: inactive.ID, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errNotAuthenticated)},
		{name: "no role assigned", session: roleless.ID, wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "no role assigned"})},
		{name: "role without permission", session: student.ID, wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermissionDenied)},
		{name: "admin allowed", session: admin.ID, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/users"
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newSessionRequest(tt.method, tt.path, tt.session, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	admin := createTestUser(t, "retrieve-admin", []string{user.RoleAdmin}, true)
	stud := createTestStudent(t, "retrieve-stud", "")
	other := createTestStudent(t, "retrieve-other", "")

	tests := []httpTest{
		{name: "self allowed", path: "/v1/users/" + stud.ID, session: stud.ID, wantCode: http.StatusOK},
		{
			name: "other user forbidden", path: "/v1/users/" + other.ID, session: stud.ID,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermissionDenied),
		},
		{name: "admin allowed", path: "/v1/users/" + stud.ID, session: admin.ID, wantCode: http.StatusOK},
		{
			name: "unknown user", path: "/v1/users/" + uuid.New().String(), session: admin.ID,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
	}
	runHTTPTests(t, tests)
}

func Test_userApi_register(t *testing.T) {
	admin := createTestUser(t, "register-admin", []string{user.RoleAdmin}, true)
	teacher := createTestUser(t, "register-teacher", []string{user.RoleTeacher}, true)

	newUser := func(email string) []byte {
		return marshallObj(t, user.NewUser{
			Name:            "Reg",
			Email:           email,
			Password:        "Test1234!",
			PasswordConfirm: "Test1234!",
			Roles:           []string{user.RoleStudent},
		})
	}

	tests := []httpTest{
		{
			name: "admin only", session: teacher.ID, body: newUser("reg1@test.cd"),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errPermissionDenied),
		},
		{name: "created", session: admin.ID, body: newUser("reg1@test.cd"), wantCode: http.StatusCreated},
		{
			name: "duplicate email conflicts", session: admin.ID, body: newUser("reg1@test.cd"),
			wantCode: http.StatusConflict, wantData: marshallObj(t, httpErr{Error: user.ErrEmailExists.Error()}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/users/register"
	}
	runHTTPTests(t, tests)
}

func Test_userApi_profile(t *testing.T) {
	admin := createTestUser(t, "profile-admin", []string{user.RoleAdmin}, true)
	stud := createTestStudent(t, "profile-stud", "year_1")

	t.Run("student reads their own profile", func(t *testing.T) {
		req, rec := newSessionRequest(http.MethodGet, "/v1/users/"+stud.ID+"/profile", stud.ID)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		var prof user.Profile
		if err := json.Unmarshal(rec.Body.Bytes(), &prof); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if prof.GradeLevel.String != "year_1" {
			t.Errorf("failed! grade_level = %v; want year_1", prof.GradeLevel.String)
		}
	})

	t.Run("students may not edit their own grade", func(t *testing.T) {
		body := marshallObj(t, user.UpdateProfile{GradeLevel: "year_2"})
		req, rec := newSessionRequest(http.MethodPut, "/v1/users/"+stud.ID+"/profile", stud.ID, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("admin updates the profile", func(t *testing.T) {
		body := marshallObj(t, user.UpdateProfile{GradeLevel: "year_2", RegistrationCode: "reg-001"})
		req, rec := newSessionRequest(http.MethodPut, "/v1/users/"+stud.ID+"/profile", admin.ID, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %s", rec.Code, rec.Body.String())
		}
		prof, err := usrRepo.GetProfile(context.Background(), stud.ID)
		if err != nil {
			t.Fatalf("GetProfile(): %v", err)
		}
		if prof.GradeLevel.String != "year_2" {
			t.Errorf("failed! grade_level = %v; want year_2", prof.GradeLevel.String)
		}
	})

	t.Run("invalid grade level is rejected", func(t *testing.T) {
		body := marshallObj(t, user.UpdateProfile{GradeLevel: "year_9"})
		req, rec := newSessionRequest(http.MethodPut, "/v1/users/"+stud.ID+"/profile", admin.ID, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusBadRequest)
		}
	})
}
