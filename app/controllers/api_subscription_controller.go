package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/TimoBecker/LingoPulse/app/models"
	"github.com/TimoBecker/LingoPulse/app/repository"
	"github.com/TimoBecker/LingoPulse/internal/pkg/billing"
	"github.com/TimoBecker/LingoPulse/internal/pkg/entitlements"
	"github.com/TimoBecker/LingoPulse/internal/pkg/metrics/counter"
	"github.com/TimoBecker/LingoPulse/internal/pkg/session"
	"github.com/TimoBecker/LingoPulse/internal/pkg/usercontext"
)

// HandleSubscriptionSync re-derives the caller's subscription from a client
// entitlement snapshot. This is the repair path for missed webhooks: the
// mobile client sends what the store SDK reports and the server replays it
// through the same state machine the webhooks use.
func HandleSubscriptionSync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var snapshot billing.EntitlementSnapshot
	if err := c.BodyParser(&snapshot); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Malformed JSON body"})
	}

	svc := billingService()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sub, user, err := svc.Reconcile(ctx, userCtx.UserID, snapshot)
	if err != nil {
		if errors.Is(err, billing.ErrNoActiveEntitlement) {
			countSync("no_entitlement")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no_active_entitlement", "message": "Snapshot contains no active entitlement"})
		}
		countSync("failed")
		log.Errorf("[Sync] Reconciliation failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sync_failed"})
	}
	countSync("ok")

	// The role may have just changed; refresh the session cache so the next
	// request sees it without a DB read.
	if user != nil {
		_ = session.SetSessionValue(c, USER_ROLE, user.Role)
	}

	return c.JSON(syncResponse(sub, user))
}

// HandleGetEntitlement returns the caller's effective entitlement. Internal
// failures degrade to the free tier instead of erroring: a learner who paid
// is re-synced later, a learner who did not must never see premium by
// accident.
func HandleGetEntitlement(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		log.Errorf("[Entitlement] Could not load user %d: %v", userCtx.UserID, err)
		return c.JSON(fiber.Map{"role": models.ROLE_FREE, "has_premium_access": false})
	}

	response := fiber.Map{
		"role":                user.Role,
		"subscription_status": user.SubscriptionStatus,
		"is_beta_user":        user.IsBetaUser,
		"has_premium_access":  entitlements.HasPremiumAccessForUser(user),
	}

	subRepo := repository.GetGlobalFactory().GetSubscriptionRepository()
	sub, err := subRepo.GetByUserID(userCtx.UserID)
	if err == nil {
		response["subscription"] = subscriptionBody(sub)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Entitlement] Could not load subscription for user %d: %v", userCtx.UserID, err)
	}

	return c.JSON(response)
}

// HandleGetSubscriptionHistory returns the audit trail of the caller's
// subscription, newest first.
func HandleGetSubscriptionHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	subRepo := repository.GetGlobalFactory().GetSubscriptionRepository()
	sub, err := subRepo.GetByUserID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"history": []fiber.Map{}})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}

	history, err := subRepo.GetHistory(sub.ID, 50)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load history"})
	}

	entries := make([]fiber.Map, 0, len(history))
	for _, h := range history {
		entries = append(entries, fiber.Map{
			"action":         h.Action,
			"from_plan":      h.FromPlan,
			"to_plan":        h.ToPlan,
			"effective_date": h.EffectiveDate.UTC().Format(time.RFC3339),
			"notes":          h.Notes,
		})
	}

	return c.JSON(fiber.Map{"history": entries})
}

// syncResponse maps the reconciliation outcome to the JSON success body. A
// nil subscription means the sync was absorbed by the dedup window.
func syncResponse(sub *models.Subscription, user *models.User) fiber.Map {
	body := fiber.Map{"success": true}
	if user != nil {
		body["role"] = user.Role
		body["subscription_status"] = user.SubscriptionStatus
		body["has_premium_access"] = entitlements.HasPremiumAccessForUser(user)
	}
	if sub != nil {
		body["subscription"] = subscriptionBody(sub)
	}
	return body
}

func subscriptionBody(sub *models.Subscription) fiber.Map {
	return fiber.Map{
		"plan_type":            sub.PlanType,
		"status":               sub.Status,
		"current_period_start": formatTimePtr(sub.CurrentPeriodStart),
		"current_period_end":   formatTimePtr(sub.CurrentPeriodEnd),
		"canceled_at":          formatTimePtr(sub.CanceledAt),
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func countSync(outcome string) {
	if err := counter.AddSyncRequest(outcome); err != nil {
		log.Warnf("[Sync] Could not count outcome %s: %v", outcome, err)
	}
}
