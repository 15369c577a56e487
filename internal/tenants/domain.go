package tenants

import (
	"errors"
	"time"

	"github.com/cadencehr/cadence/internal/authz"
)

// ErrNotFound indicates that the requested tenant does not exist.
var ErrNotFound = errors.New("tenants: not found")

// Tenant is one customer account on the platform.
type Tenant struct {
	ID        int64
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Plan carries the billing plan and its module entitlement. A nil Modules
// slice means no entitlement record exists (legacy tenants); the sentinel
// "*" entry means every module is entitled.
type Plan struct {
	TenantID int64
	Code     string
	Modules  []string
}

// EntitlementAllSentinel marks a plan row granting every module.
const EntitlementAllSentinel = "*"

// Entitlement converts the stored plan row into the engine's value.
func (p Plan) Entitlement() (authz.Entitlement, error) {
	if p.Modules == nil {
		return authz.Entitlement{}, nil
	}
	modules := make([]authz.Module, 0, len(p.Modules))
	for _, raw := range p.Modules {
		if raw == EntitlementAllSentinel {
			return authz.EntitleAll(), nil
		}
		m, err := authz.ParseModule(raw)
		if err != nil {
			return authz.Entitlement{}, err
		}
		modules = append(modules, m)
	}
	return authz.EntitleModules(modules...), nil
}
