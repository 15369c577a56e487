package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencehr/cadence/internal/authz"
	"github.com/cadencehr/cadence/internal/shared"
)

// Store is the persistence port for the permission matrix.
type Store interface {
	RoleDefaults(ctx context.Context, tenantID int64) ([]RoleDefault, error)
	UserOverrides(ctx context.Context, tenantID, userID int64) ([]UserOverride, error)
	ReplaceUserOverrides(ctx context.Context, tenantID, userID int64, changes []Change) error
	ReplaceRoleDefaults(ctx context.Context, tenantID int64, role authz.Role, changes []Change) error
	ModuleActions(ctx context.Context, tenantID int64) (authz.Catalog, error)
	SeedTenantDefaults(ctx context.Context, tenantID int64) error
}

// TenantProvider supplies the billing facts a decision depends on. Both
// reads happen fresh per decision; the write gate is never cached.
type TenantProvider interface {
	Subscription(ctx context.Context, tenantID int64) (authz.Subscription, error)
	Entitlement(ctx context.Context, tenantID int64) (authz.Entitlement, error)
}

// Directory resolves a user's role inside a tenant, used to refuse
// override edits targeting super_admin accounts.
type Directory interface {
	UserRole(ctx context.Context, tenantID, userID int64) (authz.Role, error)
}

// AuditRecorder receives a record for every committed batch. Recording is
// best-effort and never changes the commit outcome.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service composes the matrix store, tenant provider and pending-change
// buffer into the decision and editing surface consumed by handlers and
// jobs.
type Service struct {
	store     Store
	tenants   TenantProvider
	directory Directory
	cache     *MatrixCache
	buffer    *Buffer
	audit     AuditRecorder
	logger    *slog.Logger
	clock     func() time.Time
}

// NewService constructs a Service. Cache and audit may be nil.
func NewService(store Store, tenants TenantProvider, directory Directory, cache *MatrixCache, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		tenants:   tenants,
		directory: directory,
		cache:     cache,
		buffer:    NewBuffer(),
		audit:     audit,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot assembles the full decision input set for an actor. Matrix
// rows may come from the versioned cache; subscription state and plan
// entitlement are always read fresh so the trial boundary and plan
// changes are observed without a reload. Storage errors surface to the
// caller: an unknown answer is distinct from a denied one.
func (s *Service) Snapshot(ctx context.Context, actor shared.Actor) (authz.Snapshot, error) {
	matrix, err := s.cache.Fetch(ctx, actor.TenantID, actor.Role, actor.UserID, func(ctx context.Context) (Matrix, error) {
		return s.loadMatrix(ctx, actor.TenantID, actor.Role, actor.UserID)
	})
	if err != nil {
		return authz.Snapshot{}, err
	}

	sub, err := s.tenants.Subscription(ctx, actor.TenantID)
	if err != nil {
		return authz.Snapshot{}, fmt.Errorf("permissions: load subscription: %w", err)
	}
	entitlement, err := s.tenants.Entitlement(ctx, actor.TenantID)
	if err != nil {
		return authz.Snapshot{}, fmt.Errorf("permissions: load entitlement: %w", err)
	}

	catalog := matrix.Catalog
	if catalog == nil {
		catalog = authz.DefaultCatalog()
	}
	return authz.Snapshot{
		Role:        actor.Role,
		State:       authz.DeriveState(sub, actor.Impersonating, s.clock()),
		Entitlement: entitlement,
		Catalog:     catalog,
		Defaults:    matrix.Defaults,
		Overrides:   matrix.Overrides,
	}, nil
}

// Can reports whether the actor may perform action on module.
func (s *Service) Can(ctx context.Context, actor shared.Actor, module authz.Module, action authz.Action) (bool, error) {
	snap, err := s.Snapshot(ctx, actor)
	if err != nil {
		return false, err
	}
	return snap.Can(module, action), nil
}

// CanAccessModule reports whether the module is reachable for the actor.
func (s *Service) CanAccessModule(ctx context.Context, actor shared.Actor, module authz.Module) (bool, error) {
	snap, err := s.Snapshot(ctx, actor)
	if err != nil {
		return false, err
	}
	return snap.CanAccessModule(module), nil
}

// Catalog returns the tenant's effective module/action catalog.
func (s *Service) Catalog(ctx context.Context, tenantID int64) (authz.Catalog, error) {
	catalog, err := s.store.ModuleActions(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = authz.DefaultCatalog()
	}
	return catalog, nil
}

// Stage buffers one matrix edit for the target. Invalid targets and
// module/action pairs outside the tenant catalog are rejected here,
// before anything reaches the network. Staging a value identical to the
// currently effective one is legal and harmless.
func (s *Service) Stage(ctx context.Context, tenantID int64, target Target, module authz.Module, action authz.Action, granted bool) error {
	catalog, err := s.validateTarget(ctx, tenantID, target)
	if err != nil {
		return err
	}
	if !catalog.Supports(module, action) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownCatalogKey, module, action)
	}
	s.buffer.Stage(tenantID, target, module, action, granted)
	return nil
}

// StageAllInModule stages every supported action of the module at once,
// backing the tri-state select-all control.
func (s *Service) StageAllInModule(ctx context.Context, tenantID int64, target Target, module authz.Module, granted bool) error {
	catalog, err := s.validateTarget(ctx, tenantID, target)
	if err != nil {
		return err
	}
	actions := catalog.ActionsFor(module)
	if len(actions) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCatalogKey, module)
	}
	s.buffer.StageAllInModule(tenantID, target, module, actions, granted)
	return nil
}

// Staged exposes the target's pending edits for the editor UI.
func (s *Service) Staged(tenantID int64, target Target) map[authz.GrantKey]bool {
	return s.buffer.Staged(tenantID, target)
}

// Commit persists the target's staged edits as one atomic batch. The
// buffer is cleared only after the store confirms success; on failure it
// is retained so the administrator can retry without re-entering edits.
func (s *Service) Commit(ctx context.Context, tenantID, editorID int64, target Target) error {
	catalog, err := s.validateTarget(ctx, tenantID, target)
	if err != nil {
		return err
	}
	changes := s.buffer.Changes(tenantID, target, catalog)
	if len(changes) == 0 {
		return ErrNothingStaged
	}

	switch target.Kind {
	case TargetUser:
		err = s.store.ReplaceUserOverrides(ctx, tenantID, target.UserID, changes)
	case TargetRole:
		err = s.store.ReplaceRoleDefaults(ctx, tenantID, target.Role, changes)
	}
	if err != nil {
		return fmt.Errorf("permissions: commit %s: %w", target.key(), err)
	}

	s.buffer.Clear(tenantID, target)
	if bumpErr := s.cache.Bump(ctx); bumpErr != nil {
		s.logger.Warn("matrix cache bump failed", slog.Any("error", bumpErr))
	}
	s.recordCommit(ctx, tenantID, editorID, target, changes)
	return nil
}

// Discard clears the target's staged edits without persisting anything.
// Persisted override rows are untouched; this is "drop my pending edits",
// not "delete existing overrides".
func (s *Service) Discard(tenantID int64, target Target) {
	s.buffer.Clear(tenantID, target)
}

// Provision seeds the built-in role defaults for a new tenant.
func (s *Service) Provision(ctx context.Context, tenantID int64) error {
	if err := s.store.SeedTenantDefaults(ctx, tenantID); err != nil {
		return err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("matrix cache bump failed", slog.Any("error", err))
	}
	return nil
}

// TargetSnapshot loads the decision inputs for the user being edited in
// the matrix editor, resolving their role through the directory. The
// editor renders effective grants from it; staged edits overlay client-side.
func (s *Service) TargetSnapshot(ctx context.Context, tenantID, userID int64) (authz.Snapshot, error) {
	if s.directory == nil {
		return authz.Snapshot{}, errors.New("permissions: directory not configured")
	}
	role, err := s.directory.UserRole(ctx, tenantID, userID)
	if err != nil {
		return authz.Snapshot{}, fmt.Errorf("permissions: resolve target role: %w", err)
	}
	if role == authz.RoleSuperAdmin {
		return authz.Snapshot{}, ErrSuperAdminTarget
	}
	return s.Snapshot(ctx, shared.Actor{UserID: userID, TenantID: tenantID, Role: role})
}

// RoleGrid returns the stored default grants for one role.
func (s *Service) RoleGrid(ctx context.Context, tenantID int64, role authz.Role) (map[authz.GrantKey]bool, error) {
	if role == authz.RoleSuperAdmin {
		return nil, ErrSuperAdminTarget
	}
	defaults, err := s.store.RoleDefaults(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("permissions: load role defaults: %w", err)
	}
	grid := make(map[authz.GrantKey]bool)
	for _, row := range defaults {
		if row.Role != role {
			continue
		}
		grid[authz.GrantKey{Module: row.Module, Action: row.Action}] = row.Granted
	}
	return grid, nil
}

func (s *Service) loadMatrix(ctx context.Context, tenantID int64, role authz.Role, userID int64) (Matrix, error) {
	defaults, err := s.store.RoleDefaults(ctx, tenantID)
	if err != nil {
		return Matrix{}, fmt.Errorf("permissions: load role defaults: %w", err)
	}
	overrides, err := s.store.UserOverrides(ctx, tenantID, userID)
	if err != nil {
		return Matrix{}, fmt.Errorf("permissions: load user overrides: %w", err)
	}
	catalog, err := s.store.ModuleActions(ctx, tenantID)
	if err != nil {
		return Matrix{}, fmt.Errorf("permissions: load catalog: %w", err)
	}

	matrix := Matrix{
		Catalog:   catalog,
		Defaults:  make(map[authz.GrantKey]bool),
		Overrides: make(map[authz.GrantKey]authz.OverrideState, len(overrides)),
	}
	for _, row := range defaults {
		if row.Role != role {
			continue
		}
		matrix.Defaults[authz.GrantKey{Module: row.Module, Action: row.Action}] = row.Granted
	}
	for _, row := range overrides {
		matrix.Overrides[authz.GrantKey{Module: row.Module, Action: row.Action}] = row.State
	}
	return matrix, nil
}

func (s *Service) validateTarget(ctx context.Context, tenantID int64, target Target) (authz.Catalog, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if target.Kind == TargetUser && s.directory != nil {
		role, err := s.directory.UserRole(ctx, tenantID, target.UserID)
		if err != nil {
			return nil, fmt.Errorf("permissions: resolve target role: %w", err)
		}
		if role == authz.RoleSuperAdmin {
			return nil, ErrSuperAdminTarget
		}
	}
	return s.Catalog(ctx, tenantID)
}

func (s *Service) recordCommit(ctx context.Context, tenantID, editorID int64, target Target, changes []Change) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"tenant_id": tenantID,
		"target":    target.key(),
		"changes":   len(changes),
	}
	log := shared.AuditLog{
		ActorID:  editorID,
		Action:   "permissions.matrix.commit",
		Entity:   "permission_matrix",
		EntityID: target.key(),
		Meta:     meta,
		At:       s.clock(),
	}
	if err := s.audit.Record(ctx, log); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
