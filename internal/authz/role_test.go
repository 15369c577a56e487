package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleOrderingIsTotal(t *testing.T) {
	roles := Roles()
	for i := 1; i < len(roles); i++ {
		require.Greater(t, Rank(roles[i]), Rank(roles[i-1]))
	}
}

func TestHasMinimumRole(t *testing.T) {
	require.True(t, HasMinimumRole(RoleHRManager, RoleManager))
	require.True(t, HasMinimumRole(RoleManager, RoleManager))
	require.False(t, HasMinimumRole(RoleEmployee, RoleManager))
	require.True(t, HasMinimumRole(RoleSuperAdmin, RoleCompanyAdmin))

	// Unknown roles rank 0 and satisfy nothing but the trivial requirement.
	require.False(t, HasMinimumRole(Role("contractor"), RoleEmployee))
	require.False(t, HasMinimumRole(Role(""), RoleEmployee))
	require.True(t, HasMinimumRole(Role(""), Role("")))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("hr_manager")
	require.NoError(t, err)
	require.Equal(t, RoleHRManager, r)

	_, err = ParseRole("owner")
	require.Error(t, err)
}

func TestEditableRolesExcludeSuperAdmin(t *testing.T) {
	for _, r := range EditableRoles() {
		require.NotEqual(t, RoleSuperAdmin, r)
	}
	require.Len(t, EditableRoles(), len(Roles())-1)
}

func TestCatalogParsersRejectUnknownIdentifiers(t *testing.T) {
	m, err := ParseModule("payroll")
	require.NoError(t, err)
	require.Equal(t, ModulePayroll, m)
	_, err = ParseModule("timesheets")
	require.Error(t, err)

	a, err := ParseAction("approve")
	require.NoError(t, err)
	require.Equal(t, ActionApprove, a)
	_, err = ParseAction("archive")
	require.Error(t, err)
}
