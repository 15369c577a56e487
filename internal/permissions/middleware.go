package permissions

import (
	"log/slog"
	"net/http"

	"github.com/cadencehr/cadence/internal/authz"
	"github.com/cadencehr/cadence/internal/platform/httpx"
	"github.com/cadencehr/cadence/internal/shared"
)

// DecisionMetrics counts guard verdicts. Satisfied by observability.Metrics.
type DecisionMetrics interface {
	RecordDecision(module, action, outcome string)
}

// Middleware wires authorization guards for HTTP handlers. A failed
// permission read surfaces as a server error, never as a silent deny:
// callers must be able to distinguish "unknown" from "forbidden".
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Metrics DecisionMetrics
}

// Require ensures the current actor may perform action on module.
func (m Middleware) Require(module authz.Module, action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			allowed, err := m.Service.Can(r.Context(), actor, module, action)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorization check", slog.String("module", string(module)), slog.String("action", string(action)), slog.Any("error", err))
				}
				m.record(module, action, "unavailable")
				httpx.Problem(w, http.StatusInternalServerError, "Authorization Unavailable", "permission data could not be loaded")
				return
			}
			if !allowed {
				m.record(module, action, "denied")
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			m.record(module, action, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

// RequireModule ensures the current actor can access the module at all.
func (m Middleware) RequireModule(module authz.Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			allowed, err := m.Service.CanAccessModule(r.Context(), actor, module)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("module access check", slog.String("module", string(module)), slog.Any("error", err))
				}
				m.record(module, "", "unavailable")
				httpx.Problem(w, http.StatusInternalServerError, "Authorization Unavailable", "permission data could not be loaded")
				return
			}
			if !allowed {
				m.record(module, "", "denied")
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			m.record(module, "", "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) record(module authz.Module, action authz.Action, outcome string) {
	if m.Metrics == nil {
		return
	}
	m.Metrics.RecordDecision(string(module), string(action), outcome)
}
