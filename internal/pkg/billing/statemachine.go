package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TimoBecker/LingoPulse/app/models"
	"gorm.io/gorm"
)

// applyEvent drives the subscription state machine for one canonical event:
// it computes the next status and period bounds, upserts the subscription,
// appends exactly one history row and updates the owner's role. The returned
// bool reports whether the event actually mutated state (false for stale
// events rejected by the monotonic guard).
//
// Cancellation and expiration are deliberately distinct transitions: a
// cancellation means "do not renew" and keeps the role until the paid period
// elapses, while an expiration confirms the period is over and downgrades
// immediately.
func (s *Service) applyEvent(ctx context.Context, ev CanonicalEvent, entry *models.WebhookLog, note string, now time.Time) (*models.Subscription, bool, error) {
	existing, err := s.repo.GetSubscriptionByUser(ctx, ev.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	// Monotonic guard: an event older than the last applied one reflects
	// provider state we have already moved past. Recording it as processed
	// without mutation keeps retries of the stale delivery quiet.
	if existing != nil && existing.LastEventAt != nil && ev.OccurredAt != nil &&
		ev.OccurredAt.Before(*existing.LastEventAt) {
		return existing, false, nil
	}

	switch ev.Type {
	case EventPurchase, EventRenewal, EventUncancellation:
		return s.applyEntitlingEvent(ctx, ev, existing, entry, note, now)
	case EventCancellation:
		return s.applyCancellation(ctx, ev, existing, entry, note, now)
	case EventExpiration:
		return s.applyExpiration(ctx, ev, existing, entry, note, now)
	default:
		// EventUnknown is logged upstream and never applied.
		return existing, false, nil
	}
}

func (s *Service) applyEntitlingEvent(ctx context.Context, ev CanonicalEvent, existing *models.Subscription, entry *models.WebhookLog, note string, now time.Time) (*models.Subscription, bool, error) {
	planType := PlanTypeFromProduct(ev.ProductID)
	if ev.ProductID == "" && existing != nil {
		planType = existing.PlanType
	}

	start := now
	if ev.PeriodStart != nil {
		start = *ev.PeriodStart
	}
	end := ValidatedPeriodEnd(planType, start, ev.PeriodEnd)

	status := models.SubscriptionStatusActive
	if ev.TrialEnd != nil && now.Before(*ev.TrialEnd) {
		status = models.SubscriptionStatusTrial
	}

	sub := &models.Subscription{
		UserID:             ev.UserID,
		PlanType:           planType,
		Status:             status,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		TrialStart:         ev.TrialStart,
		TrialEnd:           ev.TrialEnd,
		CanceledAt:         nil, // purchase and un-cancel clear a pending cancellation
		ExternalRef:        ev.ExternalRef,
		LastEventAt:        eventClock(ev, now),
	}
	if existing != nil {
		sub.FounderDiscount = existing.FounderDiscount
		sub.DiscountPercent = existing.DiscountPercent
		if sub.ExternalRef == "" {
			sub.ExternalRef = existing.ExternalRef
		}
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, false, err
	}

	action := models.HistoryActionRenewed
	fromPlan := ""
	if existing == nil {
		action = models.HistoryActionCreated
	} else {
		fromPlan = existing.PlanType
	}
	if err := s.appendHistory(ctx, sub, action, fromPlan, planType, note, now); err != nil {
		return nil, false, err
	}

	subStatus := models.SUB_STATUS_PREMIUM
	if status == models.SubscriptionStatusTrial {
		subStatus = models.SUB_STATUS_TRIAL
	}
	if err := s.grantPremiumRole(ctx, ev.UserID, subStatus); err != nil {
		return nil, false, err
	}

	linkLogEntry(entry, sub)
	return sub, true, nil
}

func (s *Service) applyCancellation(ctx context.Context, ev CanonicalEvent, existing *models.Subscription, entry *models.WebhookLog, note string, now time.Time) (*models.Subscription, bool, error) {
	canceledAt := now
	if ev.CanceledAt != nil {
		canceledAt = *ev.CanceledAt
	}

	sub := existing
	if sub == nil {
		// Cancellation for a user we never saw a purchase for: record the
		// terminal state so a late-arriving purchase event cannot silently
		// resurrect it without a newer timestamp.
		planType := PlanTypeFromProduct(ev.ProductID)
		start := now
		if ev.PeriodStart != nil {
			start = *ev.PeriodStart
		}
		end := ValidatedPeriodEnd(planType, start, ev.PeriodEnd)
		sub = &models.Subscription{
			UserID:             ev.UserID,
			PlanType:           planType,
			CurrentPeriodStart: &start,
			CurrentPeriodEnd:   &end,
			ExternalRef:        ev.ExternalRef,
		}
	}

	sub.Status = models.SubscriptionStatusCanceled
	sub.CanceledAt = &canceledAt
	sub.LastEventAt = eventClock(ev, now)
	// CurrentPeriodEnd stays untouched: it is the access boundary the user
	// already paid for.
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, false, err
	}

	if err := s.appendHistory(ctx, sub, models.HistoryActionCanceled, sub.PlanType, sub.PlanType, note, now); err != nil {
		return nil, false, err
	}

	// No role change here. The user keeps premium until the paid period
	// elapses; the expiry sweep or a provider expiration event finishes the
	// downgrade.
	linkLogEntry(entry, sub)
	return sub, true, nil
}

func (s *Service) applyExpiration(ctx context.Context, ev CanonicalEvent, existing *models.Subscription, entry *models.WebhookLog, note string, now time.Time) (*models.Subscription, bool, error) {
	sub := existing
	if sub == nil {
		sub = &models.Subscription{
			UserID:      ev.UserID,
			PlanType:    PlanTypeFromProduct(ev.ProductID),
			ExternalRef: ev.ExternalRef,
		}
	}

	sub.Status = models.SubscriptionStatusPastDue
	sub.LastEventAt = eventClock(ev, now)
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, false, err
	}

	if err := s.appendHistory(ctx, sub, models.HistoryActionExpired, sub.PlanType, sub.PlanType, note, now); err != nil {
		return nil, false, err
	}

	// The provider confirmed the paid period is over, so the downgrade is
	// immediate.
	if err := s.revokePremiumRole(ctx, ev.UserID); err != nil {
		return nil, false, err
	}

	linkLogEntry(entry, sub)
	return sub, true, nil
}

func (s *Service) appendHistory(ctx context.Context, sub *models.Subscription, action, fromPlan, toPlan, note string, now time.Time) error {
	return s.repo.AppendHistory(ctx, &models.SubscriptionHistory{
		SubscriptionID: sub.ID,
		Action:         action,
		FromPlan:       fromPlan,
		ToPlan:         toPlan,
		EffectiveDate:  now,
		Notes:          note,
	})
}

// grantPremiumRole sets the premium role and entitlement cache on the owner.
// Admins keep their role; the cache still tracks the billing state.
func (s *Service) grantPremiumRole(ctx context.Context, userID uint, subStatus string) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.Role != models.ROLE_ADMIN && user.Role != models.ROLE_LEGACY {
		user.Role = models.ROLE_PREMIUM
	}
	user.SubscriptionStatus = subStatus
	return s.repo.SaveUser(ctx, user)
}

// revokePremiumRole downgrades a billing-granted premium role back to free.
// Admin and legacy roles are never touched by billing events.
func (s *Service) revokePremiumRole(ctx context.Context, userID uint) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.Role == models.ROLE_PREMIUM {
		user.Role = models.ROLE_FREE
	}
	user.SubscriptionStatus = models.SUB_STATUS_FREE
	return s.repo.SaveUser(ctx, user)
}

func eventClock(ev CanonicalEvent, now time.Time) *time.Time {
	if ev.OccurredAt != nil {
		return ev.OccurredAt
	}
	return &now
}

func linkLogEntry(entry *models.WebhookLog, sub *models.Subscription) {
	if entry == nil || sub == nil {
		return
	}
	entry.SubscriptionID = &sub.ID
	userID := sub.UserID
	entry.UserID = &userID
}
