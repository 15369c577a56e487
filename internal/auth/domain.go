package auth

import (
	"time"

	"github.com/cadencehr/cadence/internal/authz"
)

// User represents an authenticated user account within a tenant.
type User struct {
	ID           int64
	TenantID     int64
	Email        string
	Name         string
	Role         authz.Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
