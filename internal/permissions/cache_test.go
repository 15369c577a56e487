package permissions

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/cadencehr/cadence/internal/authz"
)

func newTestCache(t *testing.T) *MatrixCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMatrixCache(client, time.Minute)
}

func sampleMatrix() Matrix {
	return Matrix{
		Catalog: authz.Catalog{authz.ModuleLeave: {authz.ActionRead, authz.ActionApprove}},
		Defaults: map[authz.GrantKey]bool{
			{Module: authz.ModuleLeave, Action: authz.ActionRead}:    true,
			{Module: authz.ModuleLeave, Action: authz.ActionApprove}: false,
		},
		Overrides: map[authz.GrantKey]authz.OverrideState{
			{Module: authz.ModuleLeave, Action: authz.ActionApprove}: authz.OverrideAllow,
		},
	}
}

func TestMatrixCachePopulatesAndHits(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (Matrix, error) {
		calls++
		return sampleMatrix(), nil
	}

	got, err := cache.Fetch(ctx, 1, authz.RoleEmployee, 10, loader)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.True(t, got.Defaults[authz.GrantKey{Module: authz.ModuleLeave, Action: authz.ActionRead}])

	// Second fetch for the same (tenant, role, user) skips the loader.
	got, err = cache.Fetch(ctx, 1, authz.RoleEmployee, 10, loader)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, authz.OverrideAllow, got.Overrides[authz.GrantKey{Module: authz.ModuleLeave, Action: authz.ActionApprove}])
	require.Equal(t, []authz.Action{authz.ActionRead, authz.ActionApprove}, got.Catalog[authz.ModuleLeave])
}

func TestMatrixCacheKeySeparatesRoles(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (Matrix, error) {
		calls++
		return sampleMatrix(), nil
	}

	_, err := cache.Fetch(ctx, 1, authz.RoleEmployee, 10, loader)
	require.NoError(t, err)

	// A role change must not reuse the previous role's defaults.
	_, err = cache.Fetch(ctx, 1, authz.RoleManager, 10, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestMatrixCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (Matrix, error) {
		calls++
		return sampleMatrix(), nil
	}

	_, err := cache.Fetch(ctx, 1, authz.RoleEmployee, 10, loader)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	require.NoError(t, cache.Bump(ctx))

	_, err = cache.Fetch(ctx, 1, authz.RoleEmployee, 10, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestMatrixCacheNilClientPassesThrough(t *testing.T) {
	var cache *MatrixCache
	got, err := cache.Fetch(context.Background(), 1, authz.RoleEmployee, 10, func(context.Context) (Matrix, error) {
		return sampleMatrix(), nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, got.Defaults)
	require.NoError(t, cache.Bump(context.Background()))
}

func TestMatrixCacheLoaderErrorSurfaces(t *testing.T) {
	cache := newTestCache(t)
	wantErr := errors.New("pool exhausted")
	_, err := cache.Fetch(context.Background(), 1, authz.RoleEmployee, 10, func(context.Context) (Matrix, error) {
		return Matrix{}, wantErr
	})
	require.ErrorIs(t, err, wantErr)
}
