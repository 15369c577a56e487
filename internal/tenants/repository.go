package tenants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cadencehr/cadence/internal/authz"
)

// Repository provides PostgreSQL backed persistence for tenants, their
// subscriptions and plan entitlements.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a tenant by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, slug, created_at
		FROM tenants WHERE id = $1`, id).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("tenants: get: %w", err)
	}
	return t, nil
}

// Create inserts a tenant with its initial subscription row.
func (r *Repository) Create(ctx context.Context, name, slug string, status authz.SubscriptionStatus, trialEndsAt time.Time) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (name, slug, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name, slug, created_at`, name, slug).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	if err != nil {
		return Tenant{}, fmt.Errorf("tenants: create: %w", err)
	}
	var trial any
	if !trialEndsAt.IsZero() {
		trial = trialEndsAt
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO tenant_subscriptions (tenant_id, status, account_active, trial_ends_at, updated_at)
		VALUES ($1, $2, TRUE, $3, NOW())`, t.ID, string(status), trial); err != nil {
		return Tenant{}, fmt.Errorf("tenants: create subscription: %w", err)
	}
	return t, nil
}

// Subscription reads the billing facts the write gate derives from.
// A missing row is an error, never a guess: billing state must not be
// defaulted.
func (r *Repository) Subscription(ctx context.Context, tenantID int64) (authz.Subscription, error) {
	var (
		status        string
		accountActive bool
		trialEndsAt   *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT status, account_active, trial_ends_at
		FROM tenant_subscriptions WHERE tenant_id = $1`, tenantID).Scan(&status, &accountActive, &trialEndsAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Subscription{}, ErrNotFound
		}
		return authz.Subscription{}, fmt.Errorf("tenants: subscription: %w", err)
	}
	parsed, err := authz.ParseSubscriptionStatus(status)
	if err != nil {
		return authz.Subscription{}, err
	}
	sub := authz.Subscription{Status: parsed, AccountActive: accountActive}
	if trialEndsAt != nil {
		sub.TrialEndsAt = *trialEndsAt
	}
	return sub, nil
}

// Entitlement reads the plan's module entitlement. Tenants without a plan
// row resolve to the unset value, which the engine treats as unrestricted
// for backward compatibility.
func (r *Repository) Entitlement(ctx context.Context, tenantID int64) (authz.Entitlement, error) {
	var (
		code    string
		modules []string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT plan_code, modules
		FROM tenant_plans WHERE tenant_id = $1`, tenantID).Scan(&code, &modules)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Entitlement{}, nil
		}
		return authz.Entitlement{}, fmt.Errorf("tenants: entitlement: %w", err)
	}
	return Plan{TenantID: tenantID, Code: code, Modules: modules}.Entitlement()
}

// SetPlan replaces the tenant's plan row.
func (r *Repository) SetPlan(ctx context.Context, tenantID int64, code string, modules []string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tenant_plans (tenant_id, plan_code, modules, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id)
		DO UPDATE SET plan_code = EXCLUDED.plan_code, modules = EXCLUDED.modules, updated_at = NOW()`,
		tenantID, code, modules)
	if err != nil {
		return fmt.Errorf("tenants: set plan: %w", err)
	}
	return nil
}

// ActiveTenantIDs lists tenants with a writable subscription, used by the
// warmup job to bound its scope.
func (r *Repository) ActiveTenantIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id FROM tenant_subscriptions
		WHERE account_active AND status IN ('active', 'trialing')
		ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("tenants: active ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("tenants: scan active id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenants: iterate active ids: %w", err)
	}
	return ids, nil
}
