package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/school"
)

type subjectApi struct {
	deps *ServerDeps
}

func registerSubjectAPI(g *echo.Group, auth echo.MiddlewareFunc, deps *ServerDeps) {
	api := subjectApi{deps: deps}

	sg := g.Group("/subjects", auth)
	sg.POST("", api.create, staffMiddleware())
	sg.GET("", api.query)

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, staffMiddleware())
	dg.GET("/roster", api.roster, staffMiddleware())
	dg.POST("/enrollments", api.enroll, staffMiddleware())
	dg.DELETE("/enrollments/:studentID", api.unenroll, staffMiddleware())
	dg.GET("/activities", api.queryActivities)
	dg.POST("/resync", api.resync, adminMiddleware())
}

// Handlers

func (api *subjectApi) create(ctx echo.Context) error {
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	// only admins may hand a subject to another teacher
	if data.TeacherID != "" && data.TeacherID != ident.UserID && !ident.IsAdmin() {
		return errHttpForbidden
	}

	subj, err := api.deps.SchoolSvc.CreateSubject(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subj)
}

func (api *subjectApi) query(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	subjects, err := api.deps.SchoolSvc.QuerySubjects(ctx.Request().Context(), ident)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *subjectApi) retrieve(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	subj, err := api.deps.SchoolSvc.GetSubject(ctx.Request().Context(), ident, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subj)
}

func (api *subjectApi) update(ctx echo.Context) error {
	var data school.UpdateSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	// ownership reassignment is an admin call
	if data.TeacherID != "" && !ident.IsAdmin() {
		return errHttpForbidden
	}

	subj, err := api.deps.SchoolSvc.UpdateSubject(ctx.Request().Context(), ident, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subj)
}

func (api *subjectApi) destroy(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	if err := api.deps.SchoolSvc.DeleteSubject(ctx.Request().Context(), ident, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *subjectApi) roster(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	enrollments, err := api.deps.SchoolSvc.SubjectRoster(ctx.Request().Context(), ident, ctx.Param("id"))
	if err != nil {
		return err
	}
	if enrollments == nil {
		enrollments = []school.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *subjectApi) enroll(ctx echo.Context) error {
	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	enr, err := api.deps.SchoolSvc.Enroll(ctx.Request().Context(), ident, ctx.Param("id"), data.StudentID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *subjectApi) unenroll(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	if err := api.deps.SchoolSvc.Unenroll(ctx.Request().Context(), ident, ctx.Param("id"), ctx.Param("studentID")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *subjectApi) queryActivities(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	activities, err := api.deps.SchoolSvc.QueryActivities(ctx.Request().Context(), ident, ctx.Param("id"))
	if err != nil {
		return err
	}
	if activities == nil {
		activities = []school.ActivityInfo{}
	}
	return ctx.JSON(http.StatusOK, activities)
}

// resync replays grade-driven enrollment for the subject, picking up
// students that were skipped during an earlier partial sync.
func (api *subjectApi) resync(ctx echo.Context) error {
	if err := api.deps.SchoolSvc.ResyncSubjectEnrollments(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Enrollments synchronized."})
}
