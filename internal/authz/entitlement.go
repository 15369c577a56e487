package authz

// Entitlement is the plan-level gate deciding which modules a tenant may
// use at all, independent of role or per-action permission.
//
// The zero value is "unset": tenants provisioned before entitlement lists
// existed carry no record, and the historical behaviour treats that as no
// restriction. This is deliberately fail-open while permission lookups are
// fail-closed; the asymmetry is legacy-compat and must not be unified
// without product sign-off.
type Entitlement struct {
	all      bool
	explicit bool
	modules  map[Module]struct{}
}

// EntitleAll returns the sentinel entitlement granting every module.
func EntitleAll() Entitlement {
	return Entitlement{all: true, explicit: true}
}

// EntitleModules returns an entitlement restricted to the given modules.
func EntitleModules(modules ...Module) Entitlement {
	set := make(map[Module]struct{}, len(modules))
	for _, m := range modules {
		set[m] = struct{}{}
	}
	return Entitlement{explicit: true, modules: set}
}

// Allows reports whether the module is entitled under the plan.
func (e Entitlement) Allows(m Module) bool {
	if !e.explicit || e.all {
		return true
	}
	_, ok := e.modules[m]
	return ok
}

// IsAll reports whether the entitlement is the grant-everything sentinel.
func (e Entitlement) IsAll() bool {
	return e.explicit && e.all
}

// IsUnset reports whether no entitlement record exists for the tenant.
func (e Entitlement) IsUnset() bool {
	return !e.explicit
}

// Modules returns the explicit module list, nil for all/unset.
func (e Entitlement) Modules() []Module {
	if !e.explicit || e.all {
		return nil
	}
	out := make([]Module, 0, len(e.modules))
	for _, m := range Modules() {
		if _, ok := e.modules[m]; ok {
			out = append(out, m)
		}
	}
	return out
}
