package auth

import (
	"log/slog"
	"net/http"

	"github.com/cadencehr/cadence/internal/platform/httpx"
	"github.com/cadencehr/cadence/internal/shared"
)

// Middleware resolves the session into an explicit Actor and guards
// authenticated routes. Downstream code receives the actor from context
// instead of reaching into ambient session state.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// WithActor loads the signed-in user and attaches a shared.Actor to the
// request context. Anonymous requests pass through without one.
func (m Middleware) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.UserID() == 0 {
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.Service.User(r.Context(), sess.UserID())
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("resolve actor", slog.Int64("user_id", sess.UserID()), slog.Any("error", err))
			}
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		actor := shared.Actor{
			UserID:        user.ID,
			TenantID:      sess.TenantID(),
			Role:          user.Role,
			Impersonating: sess.Impersonating(),
		}
		if actor.TenantID == 0 {
			actor.TenantID = user.TenantID
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireActor rejects requests without a resolved actor.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.ActorFromContext(r.Context()); !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
