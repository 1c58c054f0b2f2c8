package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/user"
)

// roleMiddleware lets the request through when the resolved identity holds
// any of the given roles. It fails closed: an identity without roles never
// passes, and no roles given means any authenticated caller passes.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ident, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			if user.HasAnyRole(ident.Roles, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}

func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin, user.RoleTeacher)
}

// selfOrAdminMiddleware restricts `/:id` detail endpoints to the user
// themselves or an admin.
func selfOrAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ident, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			if ident.IsAdmin() || ident.UserID == ctx.Param("id") {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
