package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEventEnvelope(t *testing.T) {
	raw := []byte(`{
		"event": {
			"id": "evt_42",
			"type": "INITIAL_PURCHASE",
			"app_user_id": 42,
			"product_id": "lingopulse_monthly",
			"purchased_at_ms": 1735689600000,
			"expiration_at_ms": 1738368000000,
			"event_timestamp_ms": 1735689601000,
			"original_transaction_id": "txn_100"
		}
	}`)

	ev, err := NormalizeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "evt_42", ev.EventID)
	assert.Equal(t, EventPurchase, ev.Type)
	assert.Equal(t, "INITIAL_PURCHASE", ev.RawType)
	assert.Equal(t, uint(42), ev.UserID)
	assert.Equal(t, "lingopulse_monthly", ev.ProductID)
	assert.Equal(t, "txn_100", ev.ExternalRef)
	require.NotNil(t, ev.PeriodStart)
	assert.Equal(t, time.UnixMilli(1735689600000).UTC(), *ev.PeriodStart)
	require.NotNil(t, ev.PeriodEnd)
	require.NotNil(t, ev.OccurredAt)
	assert.Nil(t, ev.TrialStart)
	assert.Nil(t, ev.CanceledAt)
}

func TestNormalizeEventBareObject(t *testing.T) {
	raw := []byte(`{"type": "RENEWAL", "app_user_id": "7", "product_id": "lingopulse_yearly"}`)

	ev, err := NormalizeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, EventRenewal, ev.Type)
	assert.Equal(t, uint(7), ev.UserID)
	assert.Nil(t, ev.PeriodStart)
	assert.Nil(t, ev.PeriodEnd)
}

func TestNormalizeEventRFC3339Dates(t *testing.T) {
	raw := []byte(`{"type": "RENEWAL", "app_user_id": 7, "period_start": "2025-01-01T00:00:00Z", "period_end": "2025-02-01T00:00:00Z"}`)

	ev, err := NormalizeEvent(raw)
	require.NoError(t, err)
	require.NotNil(t, ev.PeriodStart)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *ev.PeriodStart)
	require.NotNil(t, ev.PeriodEnd)
}

func TestNormalizeEventMalformedDatesAreNil(t *testing.T) {
	raw := []byte(`{"type": "RENEWAL", "app_user_id": 7, "purchased_at_ms": "not-a-date", "expiration_at_ms": -5}`)

	ev, err := NormalizeEvent(raw)
	require.NoError(t, err)
	assert.Nil(t, ev.PeriodStart)
	assert.Nil(t, ev.PeriodEnd)
}

func TestNormalizeEventUnknownType(t *testing.T) {
	raw := []byte(`{"type": "BILLING_ISSUE", "app_user_id": 7}`)

	ev, err := NormalizeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, ev.Type)
	assert.Equal(t, "BILLING_ISSUE", ev.RawType)
}

func TestNormalizeEventUserIDValidation(t *testing.T) {
	for _, raw := range []string{
		`{"type": "RENEWAL"}`,
		`{"type": "RENEWAL", "app_user_id": "abc"}`,
		`{"type": "RENEWAL", "app_user_id": 0}`,
		`{"type": "RENEWAL", "app_user_id": -3}`,
	} {
		_, err := NormalizeEvent([]byte(raw))
		if !errors.Is(err, ErrInvalidUserID) {
			t.Fatalf("payload %s: expected ErrInvalidUserID, got %v", raw, err)
		}
	}
}

func TestNormalizeEventUnparseableBody(t *testing.T) {
	_, err := NormalizeEvent([]byte("not json at all"))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

// Re-delivery of a byte-identical payload without a provider id must derive
// the same event id both times.
func TestNormalizeEventDerivedIDIsStable(t *testing.T) {
	raw := []byte(`{"type": "RENEWAL", "app_user_id": 7, "product_id": "lingopulse_monthly", "purchased_at_ms": 1735689600000, "transaction_id": "txn_9"}`)

	first, err := NormalizeEvent(raw)
	require.NoError(t, err)
	second, err := NormalizeEvent(raw)
	require.NoError(t, err)

	assert.NotEmpty(t, first.EventID)
	assert.True(t, len(first.EventID) > 5)
	assert.Equal(t, first.EventID, second.EventID)

	// A different payload maps to a different identifier.
	other, err := NormalizeEvent([]byte(`{"type": "RENEWAL", "app_user_id": 8, "transaction_id": "txn_9"}`))
	require.NoError(t, err)
	assert.NotEqual(t, first.EventID, other.EventID)
}
