package controllers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/TimoBecker/LingoPulse/internal/pkg/billing"
	"github.com/stretchr/testify/assert"
)

func TestWebhookResponse(t *testing.T) {
	t.Parallel()

	full := webhookResponse(billing.ProcessResult{
		Outcome:        "processed",
		EventID:        "evt_1",
		EventType:      "purchase",
		UserID:         42,
		SubscriptionID: 7,
	})
	assert.Equal(t, true, full["success"])
	assert.Equal(t, "processed", full["result"])
	assert.Equal(t, uint(42), full["user_id"])
	assert.Equal(t, uint(7), full["subscription_id"])
	assert.NotContains(t, full, "message")

	skipped := webhookResponse(billing.ProcessResult{
		Outcome: "skipped",
		Message: "already processed",
		EventID: "evt_1",
	})
	assert.Equal(t, "already processed", skipped["message"])
	assert.NotContains(t, skipped, "user_id", "zero user id must not leak into the body")
	assert.NotContains(t, skipped, "subscription_id")
}

func TestIsValidationError(t *testing.T) {
	t.Parallel()

	assert.True(t, isValidationError(billing.ErrInvalidUserID))
	assert.True(t, isValidationError(billing.ErrInvalidPayload))
	assert.True(t, isValidationError(fmt.Errorf("normalize: %w", billing.ErrInvalidPayload)))
	assert.False(t, isValidationError(errors.New("storage unavailable")))
	assert.False(t, isValidationError(nil))
}
