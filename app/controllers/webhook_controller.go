package controllers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/TimoBecker/LingoPulse/internal/pkg/billing"
	"github.com/TimoBecker/LingoPulse/internal/pkg/cache"
	"github.com/TimoBecker/LingoPulse/internal/pkg/database"
	"github.com/TimoBecker/LingoPulse/internal/pkg/env"
	"github.com/TimoBecker/LingoPulse/internal/pkg/metrics/counter"
	"github.com/TimoBecker/LingoPulse/internal/pkg/payloadarchive"
)

// DefaultWebhookSource tags event log rows when no source override is set.
const DefaultWebhookSource = "revenuecat"

var (
	archiveOnce   sync.Once
	archiveClient *payloadarchive.Client
)

// WebhookSource returns the configured provider source tag.
func WebhookSource() string {
	return env.GetEnv("BILLING_WEBHOOK_SOURCE", DefaultWebhookSource)
}

// billingService builds the billing service with its optional collaborators:
// the redis sync limiter and the S3 payload archive.
func billingService() *billing.Service {
	svc := billing.NewServiceFromDB(database.GetDB())

	if client := cache.GetClient(); client != nil {
		svc = svc.WithSyncLimiter(billing.NewRedisSyncLimiter(client))
	}

	archiveOnce.Do(func() {
		client, err := payloadarchive.NewFromEnv()
		if err != nil {
			log.Warnf("[Webhook] Payload archive unavailable: %v", err)
			return
		}
		archiveClient = client
	})
	if archiveClient != nil {
		svc = svc.WithArchiver(archiveClient)
	}

	return svc
}

// HandleBillingWebhook processes one inbound provider event. The credential
// check already happened in the webhook auth middleware; everything here runs
// against the raw body so normalization sees exactly the delivered bytes.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	source := WebhookSource()

	svc := billingService()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := svc.ProcessWebhook(ctx, source, rawBody)
	countWebhook(source, result, err)

	if err != nil {
		if isValidationError(err) {
			log.Warnf("[Webhook] Rejected payload from %s: %v", GetClientIP(c), err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": err.Error()})
		}
		log.Errorf("[Webhook] Processing failed for event %s: %v", result.EventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	return c.JSON(webhookResponse(result))
}

// webhookResponse maps a processing result to the JSON success body.
// Duplicates and stale events come back 200 so providers stop re-delivering.
func webhookResponse(result billing.ProcessResult) fiber.Map {
	body := fiber.Map{
		"success":    true,
		"result":     result.Outcome,
		"event_id":   result.EventID,
		"event_type": result.EventType,
	}
	if result.Message != "" {
		body["message"] = result.Message
	}
	if result.UserID != 0 {
		body["user_id"] = result.UserID
	}
	if result.SubscriptionID != 0 {
		body["subscription_id"] = result.SubscriptionID
	}
	return body
}

// isValidationError reports whether the error should answer 400 instead of 500.
func isValidationError(err error) bool {
	return errors.Is(err, billing.ErrInvalidUserID) || errors.Is(err, billing.ErrInvalidPayload)
}

func countWebhook(source string, result billing.ProcessResult, err error) {
	outcome := result.Outcome
	if err != nil {
		outcome = "failed"
		if isValidationError(err) {
			outcome = "invalid"
		}
	}
	if cErr := counter.AddWebhookOutcome(source, outcome); cErr != nil {
		log.Warnf("[Webhook] Could not count outcome %s: %v", outcome, cErr)
	}
	if result.EventType != "" {
		if cErr := counter.AddWebhookEventType(source, result.EventType); cErr != nil {
			log.Warnf("[Webhook] Could not count event type %s: %v", result.EventType, cErr)
		}
	}
}
