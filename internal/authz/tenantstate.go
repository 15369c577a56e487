package authz

import (
	"fmt"
	"time"
)

// SubscriptionStatus enumerates billing lifecycle states for a tenant.
type SubscriptionStatus string

const (
	StatusActive       SubscriptionStatus = "active"
	StatusTrialing     SubscriptionStatus = "trialing"
	StatusTrialExpired SubscriptionStatus = "trial_expired"
	StatusPastDue      SubscriptionStatus = "past_due"
	StatusPaused       SubscriptionStatus = "paused"
	StatusCanceled     SubscriptionStatus = "canceled"
)

var knownStatuses = map[SubscriptionStatus]struct{}{
	StatusActive:       {},
	StatusTrialing:     {},
	StatusTrialExpired: {},
	StatusPastDue:      {},
	StatusPaused:       {},
	StatusCanceled:     {},
}

// ParseSubscriptionStatus validates a raw status identifier.
func ParseSubscriptionStatus(raw string) (SubscriptionStatus, error) {
	s := SubscriptionStatus(raw)
	if _, ok := knownStatuses[s]; !ok {
		return "", fmt.Errorf("authz: unknown subscription status %q", raw)
	}
	return s, nil
}

// Subscription carries the billing fields the write gate derives from.
type Subscription struct {
	Status        SubscriptionStatus
	AccountActive bool
	TrialEndsAt   time.Time
}

// TenantState is the global write gate derived from subscription status
// and the viewer's impersonation flag. It is recomputed at each decision
// point rather than cached, so a session outliving a trial boundary
// observes the flip without a reload.
type TenantState struct {
	Frozen        bool
	TrialExpired  bool
	Impersonating bool
	CanWrite      bool
}

// DeriveState computes the tenant gate against the supplied clock.
//
// Trial expiry is checked live against now instead of trusting the cached
// status column, which may lag the actual boundary.
func DeriveState(sub Subscription, impersonating bool, now time.Time) TenantState {
	frozen := !sub.AccountActive
	trialExpired := sub.Status == StatusTrialing && !sub.TrialEndsAt.IsZero() && sub.TrialEndsAt.Before(now)

	lockedStatus := false
	switch sub.Status {
	case StatusPastDue, StatusPaused, StatusCanceled, StatusTrialExpired:
		lockedStatus = true
	}

	return TenantState{
		Frozen:        frozen,
		TrialExpired:  trialExpired,
		Impersonating: impersonating,
		CanWrite:      !frozen && !trialExpired && !lockedStatus && !impersonating,
	}
}
