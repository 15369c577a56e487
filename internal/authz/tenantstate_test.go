package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveStateTrialBoundaryUsesClock(t *testing.T) {
	sub := Subscription{
		Status:        StatusTrialing,
		AccountActive: true,
		TrialEndsAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	before := DeriveState(sub, false, sub.TrialEndsAt.Add(-time.Second))
	require.False(t, before.TrialExpired)
	require.True(t, before.CanWrite)

	// The same subscription row flips read-only once the clock passes the
	// boundary, without any status column change.
	after := DeriveState(sub, false, sub.TrialEndsAt.Add(time.Second))
	require.True(t, after.TrialExpired)
	require.False(t, after.CanWrite)
}

func TestDeriveStateTrialWithoutEndDateNeverExpires(t *testing.T) {
	state := DeriveState(Subscription{Status: StatusTrialing, AccountActive: true}, false, time.Now())
	require.False(t, state.TrialExpired)
	require.True(t, state.CanWrite)
}

func TestDeriveStateLockedStatuses(t *testing.T) {
	for _, status := range []SubscriptionStatus{StatusPastDue, StatusPaused, StatusCanceled, StatusTrialExpired} {
		state := DeriveState(Subscription{Status: status, AccountActive: true}, false, time.Now())
		require.False(t, state.CanWrite, "status %s should lock writes", status)
		require.False(t, state.Frozen)
	}
}

func TestDeriveStateFrozenAndImpersonation(t *testing.T) {
	frozen := DeriveState(Subscription{Status: StatusActive, AccountActive: false}, false, time.Now())
	require.True(t, frozen.Frozen)
	require.False(t, frozen.CanWrite)

	imp := DeriveState(Subscription{Status: StatusActive, AccountActive: true}, true, time.Now())
	require.True(t, imp.Impersonating)
	require.False(t, imp.CanWrite)
}

func TestParseSubscriptionStatus(t *testing.T) {
	status, err := ParseSubscriptionStatus("past_due")
	require.NoError(t, err)
	require.Equal(t, StatusPastDue, status)

	_, err = ParseSubscriptionStatus("suspended")
	require.Error(t, err)
}
