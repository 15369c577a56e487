package authz

// OverrideState is a per-user explicit allow or deny. Absence of an entry
// means unset, which falls back to the role default.
type OverrideState string

const (
	OverrideAllow OverrideState = "allow"
	OverrideDeny  OverrideState = "deny"
)

// GrantKey addresses one cell of the permission matrix.
type GrantKey struct {
	Module Module
	Action Action
}

// Snapshot is the complete input set for one actor's decisions: role,
// tenant gate, entitlement, catalog, role defaults and user overrides.
// It holds no ambient session reference and performs no I/O, so every
// decision is deterministic and unit-testable. Loaders re-query it
// whenever tenant state, role or permission data changes.
type Snapshot struct {
	Role        Role
	State       TenantState
	Entitlement Entitlement
	Catalog     Catalog
	Defaults    map[GrantKey]bool
	Overrides   map[GrantKey]OverrideState
}

// Can decides whether the actor may perform action on module.
//
// Evaluation is a strict layered short-circuit with no backtracking:
//
//  1. super_admin passes unconditionally, bypassing even the frozen and
//     impersonation gates so break-glass access stays possible.
//  2. Any non-read action is denied while the tenant write gate is shut.
//     Billing facts dominate role and override resolution.
//  3. A module outside the plan entitlement is denied outright.
//  4. An explicit user override wins over the role default; with no
//     override and no default row the answer is deny.
func (s Snapshot) Can(m Module, a Action) bool {
	if s.Role == RoleSuperAdmin {
		return true
	}
	if a != ActionRead && !s.State.CanWrite {
		return false
	}
	if !s.Entitlement.Allows(m) {
		return false
	}
	key := GrantKey{Module: m, Action: a}
	switch s.Overrides[key] {
	case OverrideAllow:
		return true
	case OverrideDeny:
		return false
	}
	return s.Defaults[key]
}

// CanAccessModule decides whether the module should be reachable at all
// for the actor (navigation-level check).
//
// A frozen tenant that is not trial-expired stays viewable: access
// reduces to the read permission, distinguishing frozen (view-only) from
// the other unwritable states. Otherwise the composite is entitled AND
// at least one action granted, evaluated over the grant layer so a
// write lock blocks operations without emptying the navigation.
func (s Snapshot) CanAccessModule(m Module) bool {
	if s.Role == RoleSuperAdmin {
		return true
	}
	if s.State.Frozen && !s.State.TrialExpired {
		return s.Can(m, ActionRead)
	}
	if !s.Entitlement.Allows(m) {
		return false
	}
	for _, a := range s.Catalog.ActionsFor(m) {
		if s.EffectiveGrant(m, a) {
			return true
		}
	}
	return false
}

// EffectiveGrant resolves the override/default layer only, ignoring the
// global gates. The matrix editor uses it to show the stored value of a
// cell while the tenant is read-only.
func (s Snapshot) EffectiveGrant(m Module, a Action) bool {
	key := GrantKey{Module: m, Action: a}
	switch s.Overrides[key] {
	case OverrideAllow:
		return true
	case OverrideDeny:
		return false
	}
	return s.Defaults[key]
}
