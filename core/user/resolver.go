package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// ErrUnauthenticated is returned when no session identifier is presented.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrSessionInvalid is returned when the session identifier does not
	// resolve to an active user.
	ErrSessionInvalid = errors.New("invalid session")
	// ErrNoRoleAssigned is returned for a valid session whose user holds no
	// role: onboarding is incomplete, which is distinct from a forbidden
	// resource access.
	ErrNoRoleAssigned = errors.New("no role assigned")
)

// Identity is the resolved acting user of a request.
type Identity struct {
	UserID string
	Roles  []string
}

func (id Identity) IsAdmin() bool   { return HasAnyRole(id.Roles, []string{RoleAdmin}) }
func (id Identity) IsTeacher() bool { return HasAnyRole(id.Roles, []string{RoleTeacher}) }
func (id Identity) IsStudent() bool { return HasAnyRole(id.Roles, []string{RoleStudent}) }

// Resolver resolves an opaque session identifier into an Identity.
//
// Resolutions are memoized in the injected cache for the configured TTL to
// avoid a role lookup on every request; entries expire on TTL only, so role
// changes may take up to the TTL to become visible.
type Resolver struct {
	repo  Repository
	cache core.Cache
	ttl   time.Duration
}

func NewResolver(repo Repository, cache core.Cache, ttl time.Duration) *Resolver {
	return &Resolver{repo: repo, cache: cache, ttl: ttl}
}

// resolution is the memoized outcome of a session lookup; invalid sessions
// are memoized too, so a dead session does not hit the store on every request.
type resolution struct {
	ident   Identity
	invalid bool
}

func (r *Resolver) Resolve(ctx context.Context, sessionID string) (Identity, error) {
	if sessionID == "" {
		return Identity{}, ErrUnauthenticated
	}

	if cached, ok := r.cache.Get(cacheKey(sessionID)); ok {
		if res, ok := cached.(resolution); ok {
			if res.invalid {
				return Identity{}, ErrSessionInvalid
			}
			return res.ident, identityErr(res.ident)
		}
	}

	usr, err := r.repo.GetUserByID(ctx, sessionID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			r.cache.Set(cacheKey(sessionID), resolution{invalid: true}, r.ttl)
			return Identity{}, ErrSessionInvalid
		}
		return Identity{}, errors.Wrap(err, "finding session user")
	}
	if !usr.IsActive {
		r.cache.Set(cacheKey(sessionID), resolution{invalid: true}, r.ttl)
		return Identity{}, ErrSessionInvalid
	}

	ident := Identity{UserID: usr.ID, Roles: usr.Roles}
	r.cache.Set(cacheKey(sessionID), resolution{ident: ident}, r.ttl)
	return ident, identityErr(ident)
}

// Invalidate drops the cached resolution for a session, if any.
func (r *Resolver) Invalidate(sessionID string) {
	r.cache.Delete(cacheKey(sessionID))
}

func identityErr(ident Identity) error {
	if len(ident.Roles) == 0 {
		return ErrNoRoleAssigned
	}
	return nil
}

func cacheKey(sessionID string) string { return "session:" + sessionID }
