package authz

import "fmt"

// Role is a ranked membership level for an actor within a tenant.
type Role string

const (
	RoleEmployee     Role = "employee"
	RoleManager      Role = "manager"
	RoleHRManager    Role = "hr_manager"
	RoleCompanyAdmin Role = "company_admin"
	RoleSuperAdmin   Role = "super_admin"
)

var roleRanks = map[Role]int{
	RoleEmployee:     1,
	RoleManager:      2,
	RoleHRManager:    3,
	RoleCompanyAdmin: 4,
	RoleSuperAdmin:   5,
}

// Rank returns the ordering position of a role. Unknown roles rank 0,
// so an actor with a missing or unrecognised role satisfies nothing.
func Rank(r Role) int {
	return roleRanks[r]
}

// HasMinimumRole reports whether the actor role ranks at or above required.
func HasMinimumRole(actor, required Role) bool {
	return Rank(actor) >= Rank(required)
}

// ParseRole validates a raw role identifier.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if _, ok := roleRanks[r]; !ok {
		return "", fmt.Errorf("authz: unknown role %q", raw)
	}
	return r, nil
}

// Roles lists every role in ascending rank order.
func Roles() []Role {
	return []Role{RoleEmployee, RoleManager, RoleHRManager, RoleCompanyAdmin, RoleSuperAdmin}
}

// EditableRoles lists the roles whose defaults may be edited in the
// permission matrix. super_admin is a universal-grant sentinel and is
// excluded: overrides for it would be meaningless.
func EditableRoles() []Role {
	return []Role{RoleEmployee, RoleManager, RoleHRManager, RoleCompanyAdmin}
}
