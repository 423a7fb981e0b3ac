package entitlements

import (
	"strings"

	"github.com/TimoBecker/LingoPulse/app/models"
)

// HasPremiumAccess is the single source of truth for premium gating. Every
// access-gated read path must consult this function instead of re-deriving
// the decision from role or subscription fields.
//
// It is total: unknown or empty inputs fall through to the "no access"
// branch, never to an error.
func HasPremiumAccess(role, subscriptionStatus string, isBetaUser bool) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case models.ROLE_ADMIN:
		// administrative override, unconditional
		return true
	case models.ROLE_LEGACY, models.ROLE_PREMIUM:
		return true
	}

	if isBetaUser {
		// permanent founder grant, independent of the billing relationship
		return true
	}

	switch strings.ToLower(strings.TrimSpace(subscriptionStatus)) {
	case models.SUB_STATUS_PREMIUM, models.SUB_STATUS_TRIAL:
		return true
	}

	return false
}

// HasPremiumAccessForUser derives the access decision from a user row; a nil
// user means no access.
func HasPremiumAccessForUser(u *models.User) bool {
	if u == nil {
		return false
	}
	return HasPremiumAccess(u.Role, u.SubscriptionStatus, u.IsBetaUser)
}
