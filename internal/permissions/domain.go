package permissions

import (
	"errors"
	"fmt"

	"github.com/cadencehr/cadence/internal/authz"
)

var (
	// ErrSuperAdminTarget rejects staging or committing overrides for the
	// super_admin role before any network call is made.
	ErrSuperAdminTarget = errors.New("permissions: super_admin grants cannot be edited")
	// ErrUnknownCatalogKey rejects module/action pairs outside the tenant catalog.
	ErrUnknownCatalogKey = errors.New("permissions: module/action not in catalog")
	// ErrNothingStaged indicates a commit with an empty buffer.
	ErrNothingStaged = errors.New("permissions: nothing staged for target")
)

// RoleDefault is the tenant-configurable baseline grant for one matrix cell.
type RoleDefault struct {
	Role    authz.Role
	Module  authz.Module
	Action  authz.Action
	Granted bool
}

// UserOverride is a per-user explicit allow or deny that takes precedence
// over the role default. Absence of a row means unset.
type UserOverride struct {
	Module authz.Module
	Action authz.Action
	State  authz.OverrideState
}

// Change is one staged matrix edit. Granted true persists as an explicit
// allow, false as an explicit deny (for user targets) or as the stored
// default value (for role targets).
type Change struct {
	Module  authz.Module
	Action  authz.Action
	Granted bool
}

// TargetKind distinguishes the two editable layers of the matrix.
type TargetKind string

const (
	TargetUser TargetKind = "user"
	TargetRole TargetKind = "role"
)

// Target identifies whose matrix an administrator is editing: a single
// user's override layer or a role's default layer.
type Target struct {
	Kind   TargetKind
	UserID int64
	Role   authz.Role
}

// UserTarget addresses a user's override layer.
func UserTarget(userID int64) Target {
	return Target{Kind: TargetUser, UserID: userID}
}

// RoleTarget addresses a role's default layer.
func RoleTarget(role authz.Role) Target {
	return Target{Kind: TargetRole, Role: role}
}

// Validate rejects targets that must never reach storage.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetUser:
		if t.UserID <= 0 {
			return fmt.Errorf("permissions: invalid user target %d", t.UserID)
		}
	case TargetRole:
		if t.Role == authz.RoleSuperAdmin {
			return ErrSuperAdminTarget
		}
		if _, err := authz.ParseRole(string(t.Role)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("permissions: unknown target kind %q", t.Kind)
	}
	return nil
}

func (t Target) key() string {
	if t.Kind == TargetRole {
		return "role:" + string(t.Role)
	}
	return fmt.Sprintf("user:%d", t.UserID)
}

// scopedKey namespaces the target by tenant. Two tenants editing the
// same role name stage into disjoint buffer entries.
func (t Target) scopedKey(tenantID int64) string {
	return fmt.Sprintf("%d:%s", tenantID, t.key())
}
