package entitlements

import (
	"testing"

	"github.com/TimoBecker/LingoPulse/app/models"
	"github.com/stretchr/testify/assert"
)

func TestHasPremiumAccess(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		status string
		beta   bool
		want   bool
	}{
		{name: "admin overrides everything", role: "admin", status: "free", want: true},
		{name: "legacy role grants access", role: "legacy", want: true},
		{name: "premium role grants access", role: "premium", want: true},
		{name: "beta flag grants access without subscription", role: "free", beta: true, want: true},
		{name: "trial status grants access", role: "free", status: "trial", want: true},
		{name: "premium status grants access", role: "free", status: "premium", want: true},
		{name: "free user has no access", role: "free", status: "free", want: false},
		{name: "empty inputs deny access", want: false},
		{name: "unknown role falls through to status", role: "banana", status: "trial", want: true},
		{name: "unknown role and status deny", role: "banana", status: "banana", want: false},
		{name: "case and whitespace are tolerated", role: " Admin ", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPremiumAccess(tt.role, tt.status, tt.beta))
		})
	}
}

// Exhaustive grid over the documented input domain: the function must never
// panic and must grant access iff one of the positive signals is present.
func TestHasPremiumAccessTotality(t *testing.T) {
	roles := []string{"", "free", "premium", "legacy", "admin"}
	statuses := []string{"", "free", "trial", "premium"}

	for _, role := range roles {
		for _, status := range statuses {
			for _, beta := range []bool{true, false} {
				got := HasPremiumAccess(role, status, beta)
				want := role == "admin" || role == "legacy" || role == "premium" ||
					beta || status == "trial" || status == "premium"
				if got != want {
					t.Fatalf("HasPremiumAccess(%q, %q, %v) = %v, want %v", role, status, beta, got, want)
				}
			}
		}
	}
}

func TestHasPremiumAccessForUser(t *testing.T) {
	assert.False(t, HasPremiumAccessForUser(nil))

	u := &models.User{Role: models.ROLE_FREE, SubscriptionStatus: models.SUB_STATUS_FREE}
	assert.False(t, HasPremiumAccessForUser(u))

	u.IsBetaUser = true
	assert.True(t, HasPremiumAccessForUser(u))
}
