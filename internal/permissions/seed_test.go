package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cadencehr/cadence/internal/authz"
)

func TestSeedDefaultsCoversFullCatalog(t *testing.T) {
	rows := SeedDefaults()

	cells := 0
	catalog := authz.DefaultCatalog()
	for _, m := range authz.Modules() {
		cells += len(catalog.ActionsFor(m))
	}
	require.Len(t, rows, cells*len(authz.EditableRoles()))

	for _, row := range rows {
		require.NotEqual(t, authz.RoleSuperAdmin, row.Role)
		require.True(t, catalog.Supports(row.Module, row.Action))
	}
}

func TestSeedDefaultsBaseline(t *testing.T) {
	byRole := make(map[authz.Role]map[authz.GrantKey]bool)
	for _, row := range SeedDefaults() {
		if byRole[row.Role] == nil {
			byRole[row.Role] = make(map[authz.GrantKey]bool)
		}
		byRole[row.Role][authz.GrantKey{Module: row.Module, Action: row.Action}] = row.Granted
	}

	// Employees read their own data but never touch settings.
	require.True(t, byRole[authz.RoleEmployee][authz.GrantKey{Module: authz.ModuleLeave, Action: authz.ActionCreate}])
	require.False(t, byRole[authz.RoleEmployee][authz.GrantKey{Module: authz.ModuleSettings, Action: authz.ActionUpdate}])

	// Approval starts at manager.
	require.False(t, byRole[authz.RoleEmployee][authz.GrantKey{Module: authz.ModuleLeave, Action: authz.ActionApprove}])
	require.True(t, byRole[authz.RoleManager][authz.GrantKey{Module: authz.ModuleLeave, Action: authz.ActionApprove}])

	// Billing is company-admin territory.
	require.False(t, byRole[authz.RoleHRManager][authz.GrantKey{Module: authz.ModuleBilling, Action: authz.ActionUpdate}])
	require.True(t, byRole[authz.RoleCompanyAdmin][authz.GrantKey{Module: authz.ModuleBilling, Action: authz.ActionUpdate}])
}
