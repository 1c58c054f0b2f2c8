package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type activityApi struct {
	deps *ServerDeps
}

func registerActivityAPI(g *echo.Group, auth echo.MiddlewareFunc, deps *ServerDeps) {
	api := activityApi{deps: deps}

	ag := g.Group("/activities", auth)
	ag.POST("", api.create, staffMiddleware())

	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, staffMiddleware())
	dg.POST("/submissions", api.submit, roleMiddleware(user.RoleStudent))
	dg.POST("/grades", api.grade, staffMiddleware())
	dg.GET("/grades", api.queryGrades)

	gg := g.Group("/grades", auth)
	gg.GET("/:id", api.retrieveGrade)
}

// Handlers

func (api *activityApi) create(ctx echo.Context) error {
	var data school.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	act, err := api.deps.SchoolSvc.CreateActivity(ctx.Request().Context(), ident, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, act)
}

func (api *activityApi) retrieve(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	act, err := api.deps.SchoolSvc.GetActivity(ctx.Request().Context(), ident, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, act)
}

func (api *activityApi) update(ctx echo.Context) error {
	var data school.UpdateActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateActivity")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	act, err := api.deps.SchoolSvc.UpdateActivity(ctx.Request().Context(), ident, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, act)
}

func (api *activityApi) destroy(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	if err := api.deps.SchoolSvc.DeleteActivity(ctx.Request().Context(), ident, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *activityApi) submit(ctx echo.Context) error {
	var data school.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	row, err := api.deps.SchoolSvc.SubmitWork(ctx.Request().Context(), ident, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, row)
}

func (api *activityApi) grade(ctx echo.Context) error {
	var data school.GradeInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	row, err := api.deps.SchoolSvc.GradeStudent(ctx.Request().Context(), ident, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, row)
}

func (api *activityApi) queryGrades(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	grades, err := api.deps.SchoolSvc.ListGrades(ctx.Request().Context(), ident, ctx.Param("id"))
	if err != nil {
		return err
	}
	if grades == nil {
		grades = []school.GradeInfo{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *activityApi) retrieveGrade(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	info, err := api.deps.SchoolSvc.GetGrade(ctx.Request().Context(), ident, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, info)
}
