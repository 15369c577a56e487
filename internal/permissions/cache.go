package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cadencehr/cadence/internal/authz"
)

const (
	cacheVersionKey = "authz:matrix:version"
	bumpChannel     = "authz.bump"
)

// Matrix bundles the stored permission rows for one (tenant, role, user)
// combination: the tenant catalog, the role's default grants and the
// user's override rows. Tenant gate state and entitlement are deliberately
// not part of it; they are derived fresh on every decision so a session
// outliving the trial boundary observes the flip immediately.
type Matrix struct {
	Catalog   authz.Catalog
	Defaults  map[authz.GrantKey]bool
	Overrides map[authz.GrantKey]authz.OverrideState
}

// MatrixCache stores matrix rows in Redis behind a global version
// counter. Invalidation is bump-on-write: every batch commit or provisioning
// write increments the version, orphaning all cached entries at once.
// There is no timer-based invalidation beyond the safety TTL.
type MatrixCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMatrixCache instantiates the cache helper. A nil client degrades to
// pass-through loading.
func NewMatrixCache(client *redis.Client, ttl time.Duration) *MatrixCache {
	return &MatrixCache{client: client, ttl: ttl}
}

// Fetch loads cached matrix rows or populates them via the loader.
// Loader errors surface to the caller untouched so a failed permission
// read is never silently converted into a deny.
func (c *MatrixCache) Fetch(ctx context.Context, tenantID int64, role authz.Role, userID int64, loader func(context.Context) (Matrix, error)) (Matrix, error) {
	if loader == nil {
		return Matrix{}, errors.New("permissions: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key, err := c.buildKey(ctx, tenantID, role, userID)
	if err != nil {
		return Matrix{}, err
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var payload matrixPayload
		if unmarshalErr := json.Unmarshal(raw, &payload); unmarshalErr == nil {
			return payload.toMatrix(), nil
		}
		// A corrupt entry falls through to a fresh load.
	} else if !errors.Is(err, redis.Nil) {
		return Matrix{}, fmt.Errorf("permissions: cache get: %w", err)
	}

	matrix, err := loader(ctx)
	if err != nil {
		return Matrix{}, err
	}
	data, err := json.Marshal(newMatrixPayload(matrix))
	if err != nil {
		return Matrix{}, fmt.Errorf("permissions: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return Matrix{}, fmt.Errorf("permissions: cache set: %w", err)
	}
	return matrix, nil
}

// Bump invalidates every cached matrix by incrementing the global version
// and announcing the change.
func (c *MatrixCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return fmt.Errorf("permissions: cache bump: %w", err)
	}
	return c.client.Publish(ctx, bumpChannel, ver).Err()
}

func (c *MatrixCache) buildKey(ctx context.Context, tenantID int64, role authz.Role, userID int64) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	// The role is part of the key so a role change never reuses the
	// previous role's default grants.
	return fmt.Sprintf("authz:matrix:%d:%s:%d:%d", tenantID, role, userID, ver), nil
}

func (c *MatrixCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, fmt.Errorf("permissions: cache version init: %w", err)
		}
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("permissions: cache version: %w", err)
	}
	return ver, nil
}

// matrixPayload is the wire form of Matrix. The resolver keys its maps by
// GrantKey structs, which JSON cannot use as object keys, so grants
// flatten to row lists for storage.
type matrixPayload struct {
	Catalog   map[string][]string `json:"catalog,omitempty"`
	Defaults  []grantRow          `json:"defaults,omitempty"`
	Overrides []overrideRow       `json:"overrides,omitempty"`
}

type grantRow struct {
	Module  string `json:"module"`
	Action  string `json:"action"`
	Granted bool   `json:"granted"`
}

type overrideRow struct {
	Module string `json:"module"`
	Action string `json:"action"`
	State  string `json:"state"`
}

func newMatrixPayload(m Matrix) matrixPayload {
	var payload matrixPayload
	if len(m.Catalog) > 0 {
		payload.Catalog = make(map[string][]string, len(m.Catalog))
		for module, actions := range m.Catalog {
			for _, a := range actions {
				payload.Catalog[string(module)] = append(payload.Catalog[string(module)], string(a))
			}
		}
	}
	for key, granted := range m.Defaults {
		payload.Defaults = append(payload.Defaults, grantRow{Module: string(key.Module), Action: string(key.Action), Granted: granted})
	}
	for key, state := range m.Overrides {
		payload.Overrides = append(payload.Overrides, overrideRow{Module: string(key.Module), Action: string(key.Action), State: string(state)})
	}
	return payload
}

func (p matrixPayload) toMatrix() Matrix {
	matrix := Matrix{
		Defaults:  make(map[authz.GrantKey]bool, len(p.Defaults)),
		Overrides: make(map[authz.GrantKey]authz.OverrideState, len(p.Overrides)),
	}
	if len(p.Catalog) > 0 {
		matrix.Catalog = make(authz.Catalog, len(p.Catalog))
		for module, actions := range p.Catalog {
			for _, a := range actions {
				matrix.Catalog[authz.Module(module)] = append(matrix.Catalog[authz.Module(module)], authz.Action(a))
			}
		}
	}
	for _, row := range p.Defaults {
		matrix.Defaults[authz.GrantKey{Module: authz.Module(row.Module), Action: authz.Action(row.Action)}] = row.Granted
	}
	for _, row := range p.Overrides {
		matrix.Overrides[authz.GrantKey{Module: authz.Module(row.Module), Action: authz.Action(row.Action)}] = authz.OverrideState(row.State)
	}
	return matrix
}
