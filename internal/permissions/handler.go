package permissions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cadencehr/cadence/internal/authz"
	"github.com/cadencehr/cadence/internal/platform/httpx"
	"github.com/cadencehr/cadence/internal/shared"
)

// Handler exposes the decision endpoints consumed by presentation
// adapters and the matrix editor endpoints used by administrators.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers permission routes. Decision reads are open to any
// signed-in actor; matrix editing requires the settings.update grant.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/decisions/can", h.decide)
	r.Get("/decisions/modules", h.accessibleModules)
	r.Get("/catalog", h.catalog)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ModuleSettings, authz.ActionUpdate))
		r.Route("/matrix/users/{userID}", func(r chi.Router) {
			r.Get("/", h.userGrid)
			r.Post("/stage", h.stageForUser)
			r.Post("/commit", h.commitForUser)
			r.Post("/discard", h.discardForUser)
		})
		r.Route("/matrix/roles/{role}", func(r chi.Router) {
			r.Get("/", h.roleGrid)
			r.Post("/stage", h.stageForRole)
			r.Post("/commit", h.commitForRole)
			r.Post("/discard", h.discardForRole)
		})
	})
}

type decisionResponse struct {
	Module  string `json:"module"`
	Action  string `json:"action,omitempty"`
	Allowed bool   `json:"allowed"`
}

// decide answers can(actor, module, action). Load failures surface as a
// 5xx problem so the UI can render "unknown" instead of a false deny.
func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	module, err := authz.ParseModule(r.URL.Query().Get("module"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Module", err.Error())
		return
	}
	action, err := authz.ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Action", err.Error())
		return
	}

	allowed, err := h.service.Can(r.Context(), actor, module, action)
	if err != nil {
		h.logger.Error("decision", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Authorization Unavailable", "permission data could not be loaded")
		return
	}
	httpx.JSON(w, http.StatusOK, decisionResponse{Module: string(module), Action: string(action), Allowed: allowed})
}

type moduleEntry struct {
	Module     string `json:"module"`
	Label      string `json:"label"`
	Accessible bool   `json:"accessible"`
}

// accessibleModules answers canAccessModule for every catalog module in
// one call, driving navigation rendering.
func (h *Handler) accessibleModules(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	snap, err := h.service.Snapshot(r.Context(), actor)
	if err != nil {
		h.logger.Error("module access", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Authorization Unavailable", "permission data could not be loaded")
		return
	}
	entries := make([]moduleEntry, 0, len(authz.Modules()))
	for _, m := range authz.Modules() {
		entries = append(entries, moduleEntry{
			Module:     string(m),
			Label:      authz.ModuleLabel(m),
			Accessible: snap.CanAccessModule(m),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": entries})
}

type catalogEntry struct {
	Module  string   `json:"module"`
	Label   string   `json:"label"`
	Actions []string `json:"actions"`
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	catalog, err := h.service.Catalog(r.Context(), actor.TenantID)
	if err != nil {
		h.logger.Error("catalog", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Catalog Unavailable", "catalog could not be loaded")
		return
	}
	entries := make([]catalogEntry, 0, len(authz.Modules()))
	for _, m := range authz.Modules() {
		actions := catalog.ActionsFor(m)
		raw := make([]string, len(actions))
		for i, a := range actions {
			raw[i] = string(a)
		}
		entries = append(entries, catalogEntry{Module: string(m), Label: authz.ModuleLabel(m), Actions: raw})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"catalog": entries})
}

type gridCell struct {
	Action    string `json:"action"`
	Label     string `json:"label"`
	Effective bool   `json:"effective"`
	Override  string `json:"override,omitempty"`
	Staged    *bool  `json:"staged,omitempty"`
}

type gridModule struct {
	Module string     `json:"module"`
	Label  string     `json:"label"`
	Cells  []gridCell `json:"cells"`
}

func (h *Handler) userGrid(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	userID, err := parseUserID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
		return
	}
	snap, err := h.service.TargetSnapshot(r.Context(), actor.TenantID, userID)
	if err != nil {
		h.respondTargetError(w, err)
		return
	}
	staged := h.service.Staged(actor.TenantID, UserTarget(userID))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"role":    string(snap.Role),
		"grid":    buildGrid(snap.Catalog, snap.EffectiveGrant, snap.Overrides, staged),
	})
}

func (h *Handler) roleGrid(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	role, err := authz.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
		return
	}
	grid, err := h.service.RoleGrid(r.Context(), actor.TenantID, role)
	if err != nil {
		h.respondTargetError(w, err)
		return
	}
	catalog, err := h.service.Catalog(r.Context(), actor.TenantID)
	if err != nil {
		h.respondTargetError(w, err)
		return
	}
	staged := h.service.Staged(actor.TenantID, RoleTarget(role))
	lookup := func(m authz.Module, a authz.Action) bool { return grid[authz.GrantKey{Module: m, Action: a}] }
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role": string(role),
		"grid": buildGrid(catalog, lookup, nil, staged),
	})
}

type stageRequest struct {
	Module    string `json:"module" validate:"required"`
	Action    string `json:"action" validate:"required_without=AllModule"`
	AllModule bool   `json:"all_module"`
	Granted   bool   `json:"granted"`
}

func (h *Handler) stageForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
		return
	}
	h.stage(w, r, UserTarget(userID))
}

func (h *Handler) stageForRole(w http.ResponseWriter, r *http.Request) {
	role, err := authz.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
		return
	}
	h.stage(w, r, RoleTarget(role))
}

func (h *Handler) stage(w http.ResponseWriter, r *http.Request, target Target) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req stageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	module, err := authz.ParseModule(req.Module)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Module", err.Error())
		return
	}

	if req.AllModule {
		err = h.service.StageAllInModule(r.Context(), actor.TenantID, target, module, req.Granted)
	} else {
		var action authz.Action
		action, err = authz.ParseAction(req.Action)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Unknown Action", err.Error())
			return
		}
		err = h.service.Stage(r.Context(), actor.TenantID, target, module, action, req.Granted)
	}
	if err != nil {
		h.respondTargetError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"staged": len(h.service.Staged(actor.TenantID, target))})
}

func (h *Handler) commitForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
		return
	}
	h.commit(w, r, UserTarget(userID))
}

func (h *Handler) commitForRole(w http.ResponseWriter, r *http.Request) {
	role, err := authz.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
		return
	}
	h.commit(w, r, RoleTarget(role))
}

// commit persists the staged batch. On failure the buffer is retained so
// the administrator can retry; the error carries an actionable message.
func (h *Handler) commit(w http.ResponseWriter, r *http.Request, target Target) {
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Commit(r.Context(), actor.TenantID, actor.UserID, target); err != nil {
		switch {
		case errors.Is(err, ErrNothingStaged):
			httpx.Problem(w, http.StatusConflict, "Nothing Staged", "no pending edits for this target")
		case errors.Is(err, ErrSuperAdminTarget), errors.Is(err, ErrUnknownCatalogKey):
			httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
		default:
			h.logger.Error("matrix commit", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Commit Failed", "changes were not saved; your edits are still staged, retry to save them")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) discardForUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	userID, err := parseUserID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
		return
	}
	h.service.Discard(actor.TenantID, UserTarget(userID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) discardForRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	role, err := authz.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
		return
	}
	h.service.Discard(actor.TenantID, RoleTarget(role))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondTargetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSuperAdminTarget), errors.Is(err, ErrUnknownCatalogKey):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Target", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error("matrix editor", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Permissions Unavailable", "permission data could not be loaded")
	}
}

func parseUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("userID must be a positive integer")
	}
	return id, nil
}

func buildGrid(catalog authz.Catalog, effective func(authz.Module, authz.Action) bool, overrides map[authz.GrantKey]authz.OverrideState, staged map[authz.GrantKey]bool) []gridModule {
	modules := make([]gridModule, 0, len(authz.Modules()))
	for _, m := range authz.Modules() {
		entry := gridModule{Module: string(m), Label: authz.ModuleLabel(m)}
		for _, a := range catalog.ActionsFor(m) {
			key := authz.GrantKey{Module: m, Action: a}
			cell := gridCell{
				Action:    string(a),
				Label:     authz.ActionLabel(a),
				Effective: effective(m, a),
			}
			if state, ok := overrides[key]; ok {
				cell.Override = string(state)
			}
			if value, ok := staged[key]; ok {
				v := value
				cell.Staged = &v
			}
			entry.Cells = append(entry.Cells, cell)
		}
		modules = append(modules, entry)
	}
	return modules
}
