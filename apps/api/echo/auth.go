package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/user"
)

const (
	// sessionCookieName carries the session id; its value is the user id.
	sessionCookieName  = "session"
	contextIdentityKey = "identity"
)

// sessionMiddleware resolves the session cookie into a user.Identity and
// stashes it in the request context. Requests without a valid session are
// rejected before any handler runs.
func sessionMiddleware(resolver *user.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var sessionID string
			if cookie, err := ctx.Cookie(sessionCookieName); err == nil {
				sessionID = cookie.Value
			}

			ident, err := resolver.Resolve(ctx.Request().Context(), sessionID)
			if err != nil {
				return err
			}
			ctx.Set(contextIdentityKey, ident)
			return next(ctx)
		}
	}
}

func getContextIdentity(ctx echo.Context) (user.Identity, error) {
	if ident, ok := ctx.Get(contextIdentityKey).(user.Identity); ok {
		return ident, nil
	}
	return user.Identity{}, errUnauthorized
}

func setSessionCookie(ctx echo.Context, usr user.User, ttl time.Duration) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    usr.ID,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func authenticate(ctx echo.Context, email, pwd string, deps *ServerDeps) (user.User, error) {
	usr, err := deps.UserSvc.Authenticate(ctx.Request().Context(), email, pwd)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "authenticating")
	}
	return usr, nil
}
