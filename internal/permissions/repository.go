package permissions

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cadencehr/cadence/internal/authz"
	"github.com/cadencehr/cadence/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the permission
// matrix. Batch writes are the only mutation path for overrides and run
// inside a single transaction so a failed commit leaves zero rows altered.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RoleDefaults returns every stored default grant for the tenant.
func (r *Repository) RoleDefaults(ctx context.Context, tenantID int64) ([]RoleDefault, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role, module, action, granted
		FROM role_defaults
		WHERE tenant_id = $1
		ORDER BY role, module, action`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("permissions: list role defaults: %w", err)
	}
	defer rows.Close()

	var defaults []RoleDefault
	for rows.Next() {
		var (
			role, module, action string
			granted              bool
		)
		if err := rows.Scan(&role, &module, &action, &granted); err != nil {
			return nil, fmt.Errorf("permissions: scan role default: %w", err)
		}
		rd, err := parseRoleDefault(role, module, action, granted)
		if err != nil {
			return nil, err
		}
		defaults = append(defaults, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("permissions: iterate role defaults: %w", err)
	}
	return defaults, nil
}

// UserOverrides returns the override rows for one user. A user with no
// rows yields an empty slice, which resolves to the role default for
// every cell.
func (r *Repository) UserOverrides(ctx context.Context, tenantID, userID int64) ([]UserOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT module, action, state
		FROM user_overrides
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY module, action`, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("permissions: list user overrides: %w", err)
	}
	defer rows.Close()

	var overrides []UserOverride
	for rows.Next() {
		var module, action, state string
		if err := rows.Scan(&module, &action, &state); err != nil {
			return nil, fmt.Errorf("permissions: scan user override: %w", err)
		}
		ov, err := parseUserOverride(module, action, state)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, ov)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("permissions: iterate user overrides: %w", err)
	}
	return overrides, nil
}

// ReplaceUserOverrides writes a staged batch for one user atomically:
// prior rows for the touched (module, action) keys are replaced, rows for
// untouched keys are left alone. Rows are scoped to exactly one
// (tenant, user) pair; the batch never broadens to other users.
func (r *Repository) ReplaceUserOverrides(ctx context.Context, tenantID, userID int64, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, change := range changes {
			state := authz.OverrideDeny
			if change.Granted {
				state = authz.OverrideAllow
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO user_overrides (tenant_id, user_id, module, action, state, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
				ON CONFLICT (tenant_id, user_id, module, action)
				DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
				tenantID, userID, string(change.Module), string(change.Action), string(state)); err != nil {
				return fmt.Errorf("permissions: write override %s/%s: %w", change.Module, change.Action, err)
			}
		}
		return nil
	})
}

// ReplaceRoleDefaults overwrites default grants for one role atomically.
// Defaults are never deleted, only overwritten.
func (r *Repository) ReplaceRoleDefaults(ctx context.Context, tenantID int64, role authz.Role, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, change := range changes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_defaults (tenant_id, role, module, action, granted, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
				ON CONFLICT (tenant_id, role, module, action)
				DO UPDATE SET granted = EXCLUDED.granted, updated_at = NOW()`,
				tenantID, string(role), string(change.Module), string(change.Action), change.Granted); err != nil {
				return fmt.Errorf("permissions: write role default %s/%s: %w", change.Module, change.Action, err)
			}
		}
		return nil
	})
}

// ModuleActions derives the tenant's effective action catalog from its
// stored role defaults. Tenants without rows get a nil catalog, which the
// service resolves to the built-in table.
func (r *Repository) ModuleActions(ctx context.Context, tenantID int64) (authz.Catalog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT module, action
		FROM role_defaults
		WHERE tenant_id = $1
		ORDER BY module, action`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("permissions: list module actions: %w", err)
	}
	defer rows.Close()

	catalog := make(authz.Catalog)
	for rows.Next() {
		var module, action string
		if err := rows.Scan(&module, &action); err != nil {
			return nil, fmt.Errorf("permissions: scan module action: %w", err)
		}
		m, err := authz.ParseModule(module)
		if err != nil {
			return nil, err
		}
		a, err := authz.ParseAction(action)
		if err != nil {
			return nil, err
		}
		catalog[m] = append(catalog[m], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("permissions: iterate module actions: %w", err)
	}
	if len(catalog) == 0 {
		return nil, nil
	}
	return catalog, nil
}

// SeedTenantDefaults writes the built-in baseline for a freshly
// provisioned tenant. Existing cells are left untouched so re-running the
// provisioning job is safe.
func (r *Repository) SeedTenantDefaults(ctx context.Context, tenantID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, row := range SeedDefaults() {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_defaults (tenant_id, role, module, action, granted, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
				ON CONFLICT (tenant_id, role, module, action) DO NOTHING`,
				tenantID, string(row.Role), string(row.Module), string(row.Action), row.Granted); err != nil {
				return fmt.Errorf("permissions: seed defaults: %w", err)
			}
		}
		return nil
	})
}

func parseRoleDefault(role, module, action string, granted bool) (RoleDefault, error) {
	r, err := authz.ParseRole(role)
	if err != nil {
		return RoleDefault{}, err
	}
	m, err := authz.ParseModule(module)
	if err != nil {
		return RoleDefault{}, err
	}
	a, err := authz.ParseAction(action)
	if err != nil {
		return RoleDefault{}, err
	}
	return RoleDefault{Role: r, Module: m, Action: a, Granted: granted}, nil
}

func parseUserOverride(module, action, state string) (UserOverride, error) {
	m, err := authz.ParseModule(module)
	if err != nil {
		return UserOverride{}, err
	}
	a, err := authz.ParseAction(action)
	if err != nil {
		return UserOverride{}, err
	}
	var st authz.OverrideState
	switch authz.OverrideState(state) {
	case authz.OverrideAllow:
		st = authz.OverrideAllow
	case authz.OverrideDeny:
		st = authz.OverrideDeny
	default:
		return UserOverride{}, fmt.Errorf("permissions: unknown override state %q", state)
	}
	return UserOverride{Module: m, Action: a, State: st}, nil
}
