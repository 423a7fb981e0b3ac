package billing

import (
	"strings"
	"time"

	"github.com/TimoBecker/LingoPulse/app/models"
)

// minPeriodLength is the shortest provider-supplied period the state machine
// accepts; anything shorter is treated as malformed and recomputed.
const minPeriodLength = 24 * time.Hour

// PlanTypeFromProduct maps a provider product identifier to an internal plan
// type. Yearly products carry a year marker; everything else bills monthly.
func PlanTypeFromProduct(productID string) string {
	p := strings.ToLower(strings.TrimSpace(productID))
	if strings.Contains(p, "year") || strings.Contains(p, "annual") {
		return models.PlanTypeYearly
	}
	return models.PlanTypeMonthly
}

// CanonicalPeriodEnd computes the plan's canonical period boundary anchored
// at the period start.
func CanonicalPeriodEnd(planType string, start time.Time) time.Time {
	if planType == models.PlanTypeYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// ValidatedPeriodEnd accepts a provider-supplied end only if it lies strictly
// more than one full day after the start; otherwise the end is recomputed
// from the plan's canonical duration. This protects the access boundary from
// malformed or clock-skewed payloads.
func ValidatedPeriodEnd(planType string, start time.Time, supplied *time.Time) time.Time {
	if supplied != nil && supplied.Sub(start) > minPeriodLength {
		return *supplied
	}
	return CanonicalPeriodEnd(planType, start)
}
