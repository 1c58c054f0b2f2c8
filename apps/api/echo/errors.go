package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errNoRoleAssigned       = echo.NewHTTPError(http.StatusForbidden, "no role assigned")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to handle our errors. signalShutdown is called in order to gracefully
// shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch cause := errors.Cause(err); cause {
		case user.ErrUnauthenticated, user.ErrSessionInvalid:
			code = errUnauthorized.Code
			message = errUnauthorized.Message
		case user.ErrNoRoleAssigned:
			code = errNoRoleAssigned.Code
			message = errNoRoleAssigned.Message
		case school.ErrForbidden:
			code = errHttpForbidden.Code
			message = errHttpForbidden.Message
		case user.ErrNotFound, school.ErrNotFound:
			code = errHttpNotFound.Code
			message = errHttpNotFound.Message
		case user.ErrEmailExists, user.ErrRegCodeExists, school.ErrSubmissionExists:
			code = http.StatusConflict
			message = cause.Error()
		default:
			code, message = handleErrorTypes(err, ctx, logger, translator, signalShutdown)
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func handleErrorTypes(err error, ctx echo.Context, logger core.Logger, translator ut.Translator, signalShutdown func()) (int, interface{}) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message

	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return http.StatusBadRequest, fldErrs

	case *core.ValidationError:
		if m := origErr.FieldMap(); m != nil {
			return http.StatusBadRequest, m
		}
		return http.StatusBadRequest, origErr.Error()

	default: // any other error is a server error
		msg := http.StatusText(http.StatusInternalServerError)

		var usr user.User
		if ident, iErr := getContextIdentity(ctx); iErr == nil {
			usr.ID = ident.UserID
			usr.Roles = ident.Roles
		}
		logger.Error(msg, errors.Wrap(err, msg), usr)

		// shutting down...
		if core.IsShutdown(err) {
			signalShutdown()
		}
		return http.StatusInternalServerError, msg
	}
}
