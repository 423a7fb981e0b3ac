package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// providerEvent is the tolerant wire shape of a billing provider event. Date
// and id fields use json.RawMessage so a malformed field degrades to nil
// instead of failing the whole payload.
type providerEvent struct {
	ID                    string          `json:"id"`
	Type                  string          `json:"type"`
	AppUserID             json.RawMessage `json:"app_user_id"`
	ProductID             string          `json:"product_id"`
	PurchasedAt           json.RawMessage `json:"purchased_at_ms"`
	PeriodStart           json.RawMessage `json:"period_start"`
	ExpirationAt          json.RawMessage `json:"expiration_at_ms"`
	PeriodEnd             json.RawMessage `json:"period_end"`
	TrialStartAt          json.RawMessage `json:"trial_start_at_ms"`
	TrialEndAt            json.RawMessage `json:"trial_end_at_ms"`
	CanceledAt            json.RawMessage `json:"canceled_at_ms"`
	EventTimestamp        json.RawMessage `json:"event_timestamp_ms"`
	TransactionID         string          `json:"transaction_id"`
	OriginalTransactionID string          `json:"original_transaction_id"`
	SubscriptionID        string          `json:"subscription_id"`
}

type eventEnvelope struct {
	Event *providerEvent `json:"event"`
}

// NormalizeEvent maps a raw provider payload, either `{"event": {...}}` or a
// bare event object, into the canonical shape. Missing or malformed optional
// fields become nil; a missing or non-numeric user id is the only hard
// failure because no mutation can proceed without an owner.
func NormalizeEvent(raw []byte) (CanonicalEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return CanonicalEvent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	ev := envelope.Event
	if ev == nil {
		var bare providerEvent
		if err := json.Unmarshal(raw, &bare); err != nil {
			return CanonicalEvent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		ev = &bare
	}

	userID, err := parseUserID(ev.AppUserID)
	if err != nil {
		return CanonicalEvent{}, err
	}

	canonical := CanonicalEvent{
		EventID:     strings.TrimSpace(ev.ID),
		Type:        canonicalEventType(ev.Type),
		RawType:     strings.TrimSpace(ev.Type),
		UserID:      userID,
		ProductID:   strings.TrimSpace(ev.ProductID),
		PeriodStart: parseFlexTime(ev.PurchasedAt, ev.PeriodStart),
		PeriodEnd:   parseFlexTime(ev.ExpirationAt, ev.PeriodEnd),
		TrialStart:  parseFlexTime(ev.TrialStartAt),
		TrialEnd:    parseFlexTime(ev.TrialEndAt),
		CanceledAt:  parseFlexTime(ev.CanceledAt),
		OccurredAt:  parseFlexTime(ev.EventTimestamp),
		ExternalRef: firstNonEmpty(ev.SubscriptionID, ev.OriginalTransactionID, ev.TransactionID),
	}

	if canonical.EventID == "" {
		canonical.EventID = deriveEventID(canonical, ev.TransactionID)
	}
	return canonical, nil
}

func canonicalEventType(raw string) EventType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "INITIAL_PURCHASE", "NON_RENEWING_PURCHASE", "PURCHASE":
		return EventPurchase
	case "RENEWAL":
		return EventRenewal
	case "CANCELLATION":
		return EventCancellation
	case "UNCANCELLATION":
		return EventUncancellation
	case "EXPIRATION":
		return EventExpiration
	default:
		return EventUnknown
	}
}

// deriveEventID builds a deterministic identifier from the stable field
// subset so byte-identical re-deliveries map to the same key even when the
// provider omits an id. Truncated to 32 hex chars.
func deriveEventID(ev CanonicalEvent, transactionID string) string {
	var start int64
	if ev.PeriodStart != nil {
		start = ev.PeriodStart.Unix()
	}
	seed := fmt.Sprintf("%s|%d|%s|%s|%d", ev.RawType, ev.UserID, ev.ExternalRef, transactionID, start)
	sum := sha256.Sum256([]byte(seed))
	return "hash:" + hex.EncodeToString(sum[:])[:32]
}

// parseUserID accepts a JSON number or numeric string; anything else is a
// hard validation failure.
func parseUserID(raw json.RawMessage) (uint, error) {
	if len(raw) == 0 {
		return 0, ErrInvalidUserID
	}
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidUserID
	}
	return uint(id), nil
}

// parseFlexTime interprets the first non-empty candidate as either an
// epoch-milliseconds number or an RFC3339 string. Malformed values yield nil.
func parseFlexTime(candidates ...json.RawMessage) *time.Time {
	for _, raw := range candidates {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		s := strings.TrimSpace(string(raw))
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			if ms <= 0 {
				continue
			}
			t := time.UnixMilli(ms).UTC()
			return &t
		}
		unquoted := strings.Trim(s, `"`)
		if t, err := time.Parse(time.RFC3339, unquoted); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
