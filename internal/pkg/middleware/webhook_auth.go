package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/TimoBecker/LingoPulse/internal/pkg/billing"
	"github.com/TimoBecker/LingoPulse/internal/pkg/database"
	"github.com/TimoBecker/LingoPulse/internal/pkg/env"
	"github.com/TimoBecker/LingoPulse/internal/pkg/metrics/counter"
)

// rejectedDeliverySink records a delivery that failed the credential check, so
// rejected payloads stay auditable alongside accepted ones.
type rejectedDeliverySink func(c *fiber.Ctx, source, message string)

// WebhookAuthMiddleware verifies the shared-secret credential on inbound
// billing webhooks. With no secret configured the check fails closed in
// production and is waved through with a warning in dev, so local testing
// works without provider credentials. Every rejection leaves an invalid log
// row before the 401 goes out.
func WebhookAuthMiddleware(source string) fiber.Handler {
	return webhookAuth(source, recordRejectedDelivery)
}

func webhookAuth(source string, reject rejectedDeliverySink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		secret := env.GetEnv("BILLING_WEBHOOK_SECRET", "")
		if secret == "" {
			if env.IsDev() {
				log.Warn("[Webhook] No BILLING_WEBHOOK_SECRET configured, accepting unverified payload (dev only)")
				return c.Next()
			}
			reject(c, source, "webhook credential not configured")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "webhook credential not configured",
			})
		}

		credential := billing.CredentialFromHeaders(c.Get(fiber.HeaderAuthorization), c.Get("X-Webhook-Signature"))
		if !billing.VerifyWebhookCredential(credential, secret) {
			reject(c, source, "invalid webhook credential")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "invalid webhook credential",
			})
		}

		return c.Next()
	}
}

// recordRejectedDelivery counts the rejection and persists the invalid log
// row carrying the raw body.
func recordRejectedDelivery(c *fiber.Ctx, source, message string) {
	if err := counter.AddWebhookOutcome(source, "unauthorized"); err != nil {
		log.Warnf("[Webhook] Could not count unauthorized delivery: %v", err)
	}

	raw := append([]byte(nil), c.BodyRaw()...)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	billing.NewServiceFromDB(database.GetDB()).RecordRejectedDelivery(ctx, source, raw, message)
}
