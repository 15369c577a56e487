package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writableState() TenantState {
	return DeriveState(Subscription{Status: StatusActive, AccountActive: true}, false, time.Now())
}

func baseSnapshot(role Role) Snapshot {
	return Snapshot{
		Role:        role,
		State:       writableState(),
		Entitlement: EntitleAll(),
		Catalog:     DefaultCatalog(),
		Defaults:    map[GrantKey]bool{},
		Overrides:   map[GrantKey]OverrideState{},
	}
}

func TestSuperAdminBypassesEveryGate(t *testing.T) {
	snap := baseSnapshot(RoleSuperAdmin)
	snap.State = DeriveState(Subscription{Status: StatusTrialing, AccountActive: false, TrialEndsAt: time.Now().Add(-time.Hour)}, true, time.Now())
	snap.Entitlement = EntitleModules(ModuleDashboard)

	for _, m := range Modules() {
		for _, a := range Actions() {
			require.True(t, snap.Can(m, a), "super_admin denied %s/%s", m, a)
		}
		require.True(t, snap.CanAccessModule(m))
	}
}

func TestWriteLockDominatesRoleAndOverride(t *testing.T) {
	cases := map[string]TenantState{
		"frozen":        DeriveState(Subscription{Status: StatusActive, AccountActive: false}, false, time.Now()),
		"trial expired": DeriveState(Subscription{Status: StatusTrialing, AccountActive: true, TrialEndsAt: time.Now().Add(-time.Minute)}, false, time.Now()),
		"past due":      DeriveState(Subscription{Status: StatusPastDue, AccountActive: true}, false, time.Now()),
		"paused":        DeriveState(Subscription{Status: StatusPaused, AccountActive: true}, false, time.Now()),
		"canceled":      DeriveState(Subscription{Status: StatusCanceled, AccountActive: true}, false, time.Now()),
		"impersonating": DeriveState(Subscription{Status: StatusActive, AccountActive: true}, true, time.Now()),
	}
	for name, state := range cases {
		snap := baseSnapshot(RoleCompanyAdmin)
		snap.State = state
		snap.Defaults[GrantKey{ModulePayroll, ActionUpdate}] = true
		snap.Overrides[GrantKey{ModulePayroll, ActionApprove}] = OverrideAllow

		for _, a := range Actions() {
			if a == ActionRead {
				continue
			}
			require.False(t, snap.Can(ModulePayroll, a), "%s: expected %s denied", name, a)
		}
	}
}

func TestFrozenTenantStaysReadable(t *testing.T) {
	snap := baseSnapshot(RoleCompanyAdmin)
	snap.State = DeriveState(Subscription{Status: StatusActive, AccountActive: false}, false, time.Now())
	snap.Defaults[GrantKey{ModulePayroll, ActionRead}] = true
	snap.Defaults[GrantKey{ModulePayroll, ActionUpdate}] = true

	require.True(t, snap.Can(ModulePayroll, ActionRead))
	require.False(t, snap.Can(ModulePayroll, ActionUpdate))
	require.True(t, snap.CanAccessModule(ModulePayroll))

	// Without a read grant the frozen tenant hides the module.
	snap.Defaults[GrantKey{ModulePayroll, ActionRead}] = false
	require.False(t, snap.CanAccessModule(ModulePayroll))
}

func TestEntitlementDominatesGrants(t *testing.T) {
	snap := baseSnapshot(RoleHRManager)
	snap.Entitlement = EntitleModules(ModuleDashboard, ModuleEmployees)
	snap.Defaults[GrantKey{ModulePayroll, ActionRead}] = true
	snap.Overrides[GrantKey{ModulePayroll, ActionUpdate}] = OverrideAllow

	for _, a := range Actions() {
		require.False(t, snap.Can(ModulePayroll, a))
	}
	require.False(t, snap.CanAccessModule(ModulePayroll))
	require.True(t, snap.Can(ModuleEmployees, ActionRead) == snap.EffectiveGrant(ModuleEmployees, ActionRead))
}

func TestOverridePrecedence(t *testing.T) {
	snap := baseSnapshot(RoleManager)
	snap.Defaults[GrantKey{ModuleLeave, ActionApprove}] = false
	snap.Defaults[GrantKey{ModuleLeave, ActionRead}] = true

	// explicit_allow beats a false role default.
	snap.Overrides[GrantKey{ModuleLeave, ActionApprove}] = OverrideAllow
	require.True(t, snap.Can(ModuleLeave, ActionApprove))

	// explicit_deny beats a true role default.
	snap.Overrides[GrantKey{ModuleLeave, ActionRead}] = OverrideDeny
	require.False(t, snap.Can(ModuleLeave, ActionRead))

	// unset falls back to the role default.
	delete(snap.Overrides, GrantKey{ModuleLeave, ActionApprove})
	require.False(t, snap.Can(ModuleLeave, ActionApprove))
}

func TestAbsentRowsFailClosedWhileEntitlementFailsOpen(t *testing.T) {
	// Permission side: no default row, no override row, answer is deny.
	snap := baseSnapshot(RoleEmployee)
	require.False(t, snap.Can(ModuleEmployees, ActionRead))

	// Entitlement side: an unset (zero value) entitlement allows every
	// module. Legacy-compat asymmetry; see the Entitlement doc comment.
	snap.Entitlement = Entitlement{}
	snap.Defaults[GrantKey{ModuleEmployees, ActionRead}] = true
	require.True(t, snap.Can(ModuleEmployees, ActionRead))
	for _, m := range Modules() {
		require.True(t, snap.Entitlement.Allows(m))
	}
}

func TestImpersonationIsReadOnlyVisibility(t *testing.T) {
	snap := baseSnapshot(RoleCompanyAdmin)
	snap.State = DeriveState(Subscription{Status: StatusActive, AccountActive: true}, true, time.Now())
	snap.Defaults[GrantKey{ModuleEmployees, ActionRead}] = true
	snap.Defaults[GrantKey{ModuleEmployees, ActionUpdate}] = true

	require.True(t, snap.Can(ModuleEmployees, ActionRead))
	require.False(t, snap.Can(ModuleEmployees, ActionUpdate))
	require.True(t, snap.CanAccessModule(ModuleEmployees))
}

func TestCanAccessModuleRequiresSomeGrant(t *testing.T) {
	snap := baseSnapshot(RoleEmployee)
	require.False(t, snap.CanAccessModule(ModuleLeave))

	snap.Defaults[GrantKey{ModuleLeave, ActionRead}] = true
	require.True(t, snap.CanAccessModule(ModuleLeave))

	// An override alone is enough to surface the module.
	snap2 := baseSnapshot(RoleEmployee)
	snap2.Overrides[GrantKey{ModuleLeave, ActionCreate}] = OverrideAllow
	require.True(t, snap2.CanAccessModule(ModuleLeave))
}

func TestWriteLockKeepsGrantedModulesInNavigation(t *testing.T) {
	// The module's only grant is a non-read action. A write lock blocks
	// the action itself but must not empty the navigation.
	states := map[string]TenantState{
		"trial expired": DeriveState(Subscription{Status: StatusTrialing, AccountActive: true, TrialEndsAt: time.Now().Add(-time.Minute)}, false, time.Now()),
		"past due":      DeriveState(Subscription{Status: StatusPastDue, AccountActive: true}, false, time.Now()),
		"impersonating": DeriveState(Subscription{Status: StatusActive, AccountActive: true}, true, time.Now()),
	}
	for name, state := range states {
		snap := baseSnapshot(RoleManager)
		snap.State = state
		snap.Defaults[GrantKey{ModuleLeave, ActionApprove}] = true

		require.False(t, snap.Can(ModuleLeave, ActionApprove), name)
		require.True(t, snap.CanAccessModule(ModuleLeave), name)
	}
}
