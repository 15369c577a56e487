package tenants

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cadencehr/cadence/internal/authz"
)

type fakeRepo struct {
	created     []Tenant
	createdSlug string
	status      authz.SubscriptionStatus
	trialEndsAt time.Time

	plans map[int64][]string
}

func (f *fakeRepo) Get(_ context.Context, id int64) (Tenant, error) {
	return Tenant{ID: id}, nil
}

func (f *fakeRepo) Create(_ context.Context, name, slug string, status authz.SubscriptionStatus, trialEndsAt time.Time) (Tenant, error) {
	t := Tenant{ID: int64(len(f.created) + 1), Name: name, Slug: slug}
	f.created = append(f.created, t)
	f.createdSlug = slug
	f.status = status
	f.trialEndsAt = trialEndsAt
	return t, nil
}

func (f *fakeRepo) Subscription(_ context.Context, _ int64) (authz.Subscription, error) {
	return authz.Subscription{Status: f.status, AccountActive: true, TrialEndsAt: f.trialEndsAt}, nil
}

func (f *fakeRepo) Entitlement(_ context.Context, tenantID int64) (authz.Entitlement, error) {
	return Plan{TenantID: tenantID, Modules: f.plans[tenantID]}.Entitlement()
}

func (f *fakeRepo) SetPlan(_ context.Context, tenantID int64, _ string, modules []string) error {
	if f.plans == nil {
		f.plans = make(map[int64][]string)
	}
	f.plans[tenantID] = modules
	return nil
}

func (f *fakeRepo) ActiveTenantIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.created))
	for _, t := range f.created {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

type fakeProvisioner struct {
	enqueued []int64
}

func (f *fakeProvisioner) EnqueueTenantProvision(_ context.Context, tenantID int64) error {
	f.enqueued = append(f.enqueued, tenantID)
	return nil
}

func newTestService() (*Service, *fakeRepo, *fakeProvisioner) {
	repo := &fakeRepo{}
	prov := &fakeProvisioner{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, prov, logger), repo, prov
}

func TestCreateStartsTrialAndQueuesSeeding(t *testing.T) {
	svc, repo, prov := newTestService()

	tenant, err := svc.Create(context.Background(), "  Acme Payroll Co ")
	require.NoError(t, err)
	require.Equal(t, "Acme Payroll Co", tenant.Name)
	require.Equal(t, "acme-payroll-co", repo.createdSlug)
	require.Equal(t, authz.StatusTrialing, repo.status)
	require.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 14), repo.trialEndsAt, time.Minute)
	require.Equal(t, []int64{tenant.ID}, prov.enqueued)
}

func TestSetPlanRejectsUnknownModules(t *testing.T) {
	svc, repo, _ := newTestService()

	require.Error(t, svc.SetPlan(context.Background(), 1, "growth", []string{"leave", "timetravel"}))
	require.Empty(t, repo.plans)

	require.NoError(t, svc.SetPlan(context.Background(), 1, "growth", []string{"leave", "payroll"}))
	require.NoError(t, svc.SetPlan(context.Background(), 2, "enterprise", []string{EntitlementAllSentinel}))
}

func TestPlanEntitlement(t *testing.T) {
	// No plan row keeps the tenant fully open.
	ent, err := Plan{}.Entitlement()
	require.NoError(t, err)
	require.True(t, ent.IsUnset())
	require.True(t, ent.Allows(authz.ModulePayroll))

	// The sentinel grants everything explicitly.
	ent, err = Plan{Modules: []string{EntitlementAllSentinel}}.Entitlement()
	require.NoError(t, err)
	require.True(t, ent.IsAll())
	require.False(t, ent.IsUnset())

	// A module list entitles exactly those modules.
	ent, err = Plan{Modules: []string{"leave", "attendance"}}.Entitlement()
	require.NoError(t, err)
	require.True(t, ent.Allows(authz.ModuleLeave))
	require.False(t, ent.Allows(authz.ModulePayroll))

	// An empty non-nil list is a real record entitling nothing.
	ent, err = Plan{Modules: []string{}}.Entitlement()
	require.NoError(t, err)
	require.False(t, ent.IsUnset())
	require.False(t, ent.Allows(authz.ModuleLeave))

	_, err = Plan{Modules: []string{"bogus"}}.Entitlement()
	require.Error(t, err)
}
