package tenants

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cadencehr/cadence/internal/platform/httpx"
	"github.com/cadencehr/cadence/internal/shared"
)

// Handler exposes platform-level tenant administration. Every route is
// restricted to super_admin operators.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers tenant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.requireSuperAdmin)
	r.Post("/", h.create)
	r.Get("/{tenantID}", h.get)
	r.Put("/{tenantID}/plan", h.setPlan)
}

func (h *Handler) requireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.ActorFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if !actor.IsSuperAdmin() {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createTenantRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
}

type tenantResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenant, err := h.service.Create(r.Context(), req.Name)
	if err != nil {
		h.logger.Error("create tenant", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Tenant Creation Failed", "tenant could not be created")
		return
	}
	httpx.JSON(w, http.StatusCreated, tenantResponse{ID: tenant.ID, Name: tenant.Name, Slug: tenant.Slug})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseTenantID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Tenant", err.Error())
		return
	}
	tenant, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get tenant", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Tenant Unavailable", "tenant could not be loaded")
		return
	}
	httpx.JSON(w, http.StatusOK, tenantResponse{ID: tenant.ID, Name: tenant.Name, Slug: tenant.Slug})
}

type setPlanRequest struct {
	Code    string   `json:"code" validate:"required"`
	Modules []string `json:"modules" validate:"required"`
}

func (h *Handler) setPlan(w http.ResponseWriter, r *http.Request) {
	id, err := parseTenantID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Tenant", err.Error())
		return
	}
	var req setPlanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetPlan(r.Context(), id, req.Code, req.Modules); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Invalid Plan", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseTenantID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("tenantID must be a positive integer")
	}
	return id, nil
}
