package billing

import (
	"errors"
	"time"
)

// EventType is the canonical, provider-agnostic classification of a billing
// occurrence. Unknown provider types map to EventUnknown and are logged but
// never applied to the subscription state machine.
type EventType string

const (
	EventPurchase       EventType = "PURCHASE"
	EventRenewal        EventType = "RENEWAL"
	EventCancellation   EventType = "CANCELLATION"
	EventUncancellation EventType = "UNCANCELLATION"
	EventExpiration     EventType = "EXPIRATION"
	EventUnknown        EventType = "UNKNOWN"
)

// CanonicalEvent is the normalized shape every provider payload is mapped
// into before it touches the state machine.
type CanonicalEvent struct {
	EventID     string // provider-supplied id, or deterministically derived
	Type        EventType
	RawType     string // provider's original type string, kept for the log
	UserID      uint
	ProductID   string
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	TrialStart  *time.Time
	TrialEnd    *time.Time
	CanceledAt  *time.Time
	OccurredAt  *time.Time // provider event timestamp, used for the stale-event guard
	ExternalRef string     // provider-side subscription/transaction id
}

// SnapshotEntitlement is one entry of the client-observed entitlement state
// reported by the on-device purchase SDK.
type SnapshotEntitlement struct {
	ProductIdentifier string     `json:"product_identifier"`
	IsActive          bool       `json:"is_active"`
	LatestPurchaseAt  *time.Time `json:"latest_purchase_date,omitempty"`
	ExpirationAt      *time.Time `json:"expiration_date,omitempty"`
}

// EntitlementSnapshot is the reconciliation input a client sends right after
// an on-device purchase completes.
type EntitlementSnapshot struct {
	Entitlements        map[string]SnapshotEntitlement `json:"entitlements"`
	ActiveSubscriptions []string                       `json:"active_subscriptions"`
}

// Disposition is the idempotency guard's decision for an inbound event.
type Disposition int

const (
	DispositionProcess Disposition = iota
	DispositionRetry
	DispositionSkip
)

var (
	// ErrInvalidUserID marks payloads whose user identifier is missing or not
	// a positive integer. No subscription mutation can proceed without an
	// owner, so this is a hard validation failure.
	ErrInvalidUserID = errors.New("billing: missing or non-numeric user id")

	// ErrInvalidPayload marks bodies that are not parseable JSON at all.
	ErrInvalidPayload = errors.New("billing: unparseable event payload")

	// ErrNoActiveEntitlement is returned by the reconciliation path when the
	// client snapshot shows nothing active. Callers treat it as a no-op
	// client condition, not a server fault.
	ErrNoActiveEntitlement = errors.New("billing: snapshot has no active entitlement")
)
