package authz

import (
	"github.com/labstack/echo/v4"

	"github.com/EUDYDEV/eproject-saas/pkg/jwtutil"
)

// actorContextKey is where the auth middleware stores the request actor.
const actorContextKey = "actor"

// Actor is the per-request authorization context, built once from the session
// claims when a request comes in and passed by value from there on. Roles are
// already canonical here.
type Actor struct {
	UserID        uint
	Username      string
	Email         string
	Role          Role
	PlatformRole  string
	BranchID      *uint
	ScopeBranchID *uint
	UIMode        string
	Authenticated bool
}

// Anonymous is the actor for unauthenticated requests.
func Anonymous() Actor {
	return Actor{}
}

// ActorFromClaims builds the request actor from validated session claims.
func ActorFromClaims(claims *jwtutil.SessionClaims) Actor {
	if claims == nil {
		return Anonymous()
	}
	return Actor{
		UserID:        claims.UserID,
		Username:      claims.Username,
		Email:         claims.Email,
		Role:          NormalizeRole(claims.Role),
		PlatformRole:  NormalizePlatformRole(claims.PlatformRole),
		BranchID:      claims.BranchID,
		ScopeBranchID: claims.ScopeBranchID,
		UIMode:        claims.UIMode,
		Authenticated: claims.UserID != 0,
	}
}

// ActorFromEcho retrieves the actor stored by the auth middleware. Requests
// that never went through it resolve to the anonymous actor.
func ActorFromEcho(c echo.Context) Actor {
	actor, ok := c.Get(actorContextKey).(Actor)
	if !ok {
		return Anonymous()
	}
	return actor
}

// StoreActor places the actor in the Echo context for downstream handlers.
func StoreActor(c echo.Context, actor Actor) {
	c.Set(actorContextKey, actor)
}

// IsSuperAdmin reports whether the actor holds the platform override role.
func (a Actor) IsSuperAdmin() bool {
	return a.Authenticated && a.PlatformRole == SuperAdminPlatform
}

// IsFounder reports whether the actor holds the Founder role.
func (a Actor) IsFounder() bool {
	return a.Authenticated && a.Role == RoleFounder
}
