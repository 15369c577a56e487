package shared

import (
	"context"

	"github.com/cadencehr/cadence/internal/authz"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Actor is the authenticated identity every decision is made for. It is
// threaded explicitly through resolver calls; the engine holds no ambient
// session reference.
type Actor struct {
	UserID        int64
	TenantID      int64
	Role          authz.Role
	Impersonating bool
}

// IsSuperAdmin reports whether the actor carries the universal-grant role.
func (a Actor) IsSuperAdmin() bool {
	return a.Role == authz.RoleSuperAdmin
}

type actorContextKey struct{}

// ContextWithActor stores the resolved actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
