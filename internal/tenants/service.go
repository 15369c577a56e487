package tenants

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cadencehr/cadence/internal/authz"
)

// RepositoryPort defines data access methods for tenants.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Tenant, error)
	Create(ctx context.Context, name, slug string, status authz.SubscriptionStatus, trialEndsAt time.Time) (Tenant, error)
	Subscription(ctx context.Context, tenantID int64) (authz.Subscription, error)
	Entitlement(ctx context.Context, tenantID int64) (authz.Entitlement, error)
	SetPlan(ctx context.Context, tenantID int64, code string, modules []string) error
	ActiveTenantIDs(ctx context.Context) ([]int64, error)
}

// Provisioner enqueues the background seeding of a new tenant's role
// defaults.
type Provisioner interface {
	EnqueueTenantProvision(ctx context.Context, tenantID int64) error
}

// Service handles tenant lifecycle and serves as the billing-facts
// provider for the authorization engine.
type Service struct {
	repo        RepositoryPort
	provisioner Provisioner
	logger      *slog.Logger
}

// NewService builds Service instance. Provisioner may be nil in tests.
func NewService(repo RepositoryPort, provisioner Provisioner, logger *slog.Logger) *Service {
	return &Service{repo: repo, provisioner: provisioner, logger: logger}
}

// Get returns one tenant.
func (s *Service) Get(ctx context.Context, id int64) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// Create provisions a tenant on a 14-day trial and queues the role
// default seeding job.
func (s *Service) Create(ctx context.Context, name string) (Tenant, error) {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
	tenant, err := s.repo.Create(ctx, strings.TrimSpace(name), slug, authz.StatusTrialing, time.Now().UTC().AddDate(0, 0, 14))
	if err != nil {
		return Tenant{}, err
	}
	if s.provisioner != nil {
		if err := s.provisioner.EnqueueTenantProvision(ctx, tenant.ID); err != nil {
			s.logger.Error("enqueue tenant provision", slog.Int64("tenant_id", tenant.ID), slog.Any("error", err))
		}
	}
	return tenant, nil
}

// Subscription implements permissions.TenantProvider.
func (s *Service) Subscription(ctx context.Context, tenantID int64) (authz.Subscription, error) {
	return s.repo.Subscription(ctx, tenantID)
}

// Entitlement implements permissions.TenantProvider.
func (s *Service) Entitlement(ctx context.Context, tenantID int64) (authz.Entitlement, error) {
	return s.repo.Entitlement(ctx, tenantID)
}

// SetPlan replaces a tenant's plan entitlement.
func (s *Service) SetPlan(ctx context.Context, tenantID int64, code string, modules []string) error {
	for _, raw := range modules {
		if raw == EntitlementAllSentinel {
			continue
		}
		if _, err := authz.ParseModule(raw); err != nil {
			return err
		}
	}
	return s.repo.SetPlan(ctx, tenantID, code, modules)
}

// ActiveTenantIDs lists tenants eligible for snapshot warmup.
func (s *Service) ActiveTenantIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ActiveTenantIDs(ctx)
}
