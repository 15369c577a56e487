package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cadencehr/cadence/internal/authz"
)

func TestBufferLastWriteWins(t *testing.T) {
	b := NewBuffer()
	target := UserTarget(7)

	b.Stage(1, target, authz.ModulePayroll, authz.ActionExport, true)
	b.Stage(1, target, authz.ModulePayroll, authz.ActionExport, false)
	b.Stage(1, target, authz.ModulePayroll, authz.ActionExport, true)

	staged := b.Staged(1, target)
	require.Len(t, staged, 1)
	require.True(t, staged[authz.GrantKey{Module: authz.ModulePayroll, Action: authz.ActionExport}])
}

func TestBufferIsolatesTargets(t *testing.T) {
	b := NewBuffer()
	alice := UserTarget(1)
	bob := UserTarget(2)
	managers := RoleTarget(authz.RoleManager)

	b.Stage(1, alice, authz.ModuleLeave, authz.ActionApprove, true)
	b.Stage(1, managers, authz.ModuleLeave, authz.ActionApprove, false)

	require.Equal(t, 1, b.Len(1, alice))
	require.Equal(t, 1, b.Len(1, managers))
	require.Equal(t, 0, b.Len(1, bob))

	b.Clear(1, alice)
	require.Equal(t, 0, b.Len(1, alice))
	require.Equal(t, 1, b.Len(1, managers))
}

func TestBufferIsolatesTenants(t *testing.T) {
	b := NewBuffer()
	managers := RoleTarget(authz.RoleManager)

	b.Stage(1, managers, authz.ModuleLeave, authz.ActionApprove, true)

	// The same role name in another tenant is a different entry.
	require.Equal(t, 0, b.Len(2, managers))
	require.Empty(t, b.Staged(2, managers))
	require.Nil(t, b.Changes(2, managers, authz.DefaultCatalog()))

	b.Clear(2, managers)
	require.Equal(t, 1, b.Len(1, managers))
}

func TestBufferStageAllInModule(t *testing.T) {
	b := NewBuffer()
	target := RoleTarget(authz.RoleEmployee)
	actions := authz.DefaultCatalog().ActionsFor(authz.ModuleEmployees)

	b.StageAllInModule(1, target, authz.ModuleEmployees, actions, true)
	require.Equal(t, len(actions), b.Len(1, target))

	// Unchecking one cell afterwards keeps the rest staged true.
	b.Stage(1, target, authz.ModuleEmployees, authz.ActionDelete, false)
	staged := b.Staged(1, target)
	require.False(t, staged[authz.GrantKey{Module: authz.ModuleEmployees, Action: authz.ActionDelete}])
	require.True(t, staged[authz.GrantKey{Module: authz.ModuleEmployees, Action: authz.ActionRead}])
}

func TestBufferChangesFollowCatalogOrder(t *testing.T) {
	b := NewBuffer()
	target := UserTarget(3)
	catalog := authz.DefaultCatalog()

	// Staged out of catalog order on purpose.
	b.Stage(1, target, authz.ModuleReports, authz.ActionExport, true)
	b.Stage(1, target, authz.ModuleDashboard, authz.ActionRead, false)
	b.Stage(1, target, authz.ModuleLeave, authz.ActionApprove, true)

	changes := b.Changes(1, target, catalog)
	require.Len(t, changes, 3)
	require.Equal(t, authz.ModuleDashboard, changes[0].Module)
	require.Equal(t, authz.ModuleLeave, changes[1].Module)
	require.Equal(t, authz.ModuleReports, changes[2].Module)
}

func TestBufferChangesEmptyWhenNothingStaged(t *testing.T) {
	b := NewBuffer()
	require.Nil(t, b.Changes(1, UserTarget(5), authz.DefaultCatalog()))
}

func TestBufferStagedReturnsCopy(t *testing.T) {
	b := NewBuffer()
	target := UserTarget(9)
	b.Stage(1, target, authz.ModuleSettings, authz.ActionUpdate, true)

	staged := b.Staged(1, target)
	staged[authz.GrantKey{Module: authz.ModuleSettings, Action: authz.ActionUpdate}] = false

	require.True(t, b.Staged(1, target)[authz.GrantKey{Module: authz.ModuleSettings, Action: authz.ActionUpdate}])
}
