package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cadencehr/cadence/internal/platform/httpx"
	"github.com/cadencehr/cadence/internal/shared"
)

// AuditRecorder receives a record for sign-ins and impersonation
// sessions. Recording is best-effort.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler wires HTTP endpoints for authentication and impersonation.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	audit          AuditRecorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, audit AuditRecorder) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		audit:          audit,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/impersonate/{userID}", h.startImpersonation)
	r.Post("/impersonate/stop", h.stopImpersonation)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	UserID        int64  `json:"user_id"`
	TenantID      int64  `json:"tenant_id"`
	Role          string `json:"role"`
	Impersonating bool   `json:"impersonating"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(user.ID, user.TenantID)
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, time.Now().Add(h.sessionManager.TTL()), r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, sessionResponse{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     string(user.Role),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

// startImpersonation rescopes a platform operator's session onto a
// target user. The tenant state gate forces the session read-only for as
// long as it is impersonating.
func (h *Handler) startImpersonation(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if !actor.IsSuperAdmin() {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}

	targetID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || targetID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", "userID must be a positive integer")
		return
	}
	target, err := h.service.User(r.Context(), targetID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.StartImpersonation(actor.UserID, target.ID, target.TenantID)
	h.recordAudit(r.Context(), actor.UserID, "auth.impersonate.start", strconv.FormatInt(target.ID, 10), map[string]any{"tenant_id": target.TenantID})

	httpx.JSON(w, http.StatusOK, sessionResponse{
		UserID:        target.ID,
		TenantID:      target.TenantID,
		Role:          string(target.Role),
		Impersonating: true,
	})
}

func (h *Handler) stopImpersonation(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || !sess.Impersonating() {
		httpx.Problem(w, http.StatusConflict, "Not Impersonating", "session is not impersonating")
		return
	}
	operatorID := sess.ImpersonatorID()
	operator, err := h.service.User(r.Context(), operatorID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	sess.StopImpersonation(operator.TenantID)
	h.recordAudit(r.Context(), operatorID, "auth.impersonate.stop", strconv.FormatInt(operatorID, 10), nil)

	httpx.JSON(w, http.StatusOK, sessionResponse{
		UserID:   operator.ID,
		TenantID: operator.TenantID,
		Role:     string(operator.Role),
	})
}

func (h *Handler) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if h.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actorID, Action: action, Entity: "session", EntityID: entityID, Meta: meta}
	if err := h.audit.Record(ctx, log); err != nil {
		h.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
