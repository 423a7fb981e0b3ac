package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/TimoBecker/LingoPulse/app/models"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// SourceReconciliation tags log entries created by the client-initiated sync
// path, as opposed to the configured webhook provider source.
const SourceReconciliation = "reconciliation"

// syncWindow is the de-duplication window for reconciliation calls per user.
// Two sync calls inside the window count as one; this is log hygiene, not a
// correctness requirement.
const syncWindow = 5 * time.Second

// SyncLimiter bounds reconciliation churn. TryAcquire reports whether the
// caller won the window for the given key.
type SyncLimiter interface {
	TryAcquire(key string, ttl time.Duration) bool
}

// PayloadArchiver mirrors raw webhook payloads to long-term storage. The
// archive is best-effort forensics; failures never affect the request.
type PayloadArchiver interface {
	ArchivePayload(ctx context.Context, source, eventID string, payload []byte) error
}

// Service processes billing provider events and client reconciliation
// snapshots into local subscription state. All storage access goes through
// the injected Repository; the service itself holds no ambient state.
type Service struct {
	repo     Repository
	limiter  SyncLimiter
	archiver PayloadArchiver
	now      func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// WithSyncLimiter attaches a reconciliation de-duplication window.
func (s *Service) WithSyncLimiter(l SyncLimiter) *Service {
	s.limiter = l
	return s
}

// WithArchiver attaches a payload archive target.
func (s *Service) WithArchiver(a PayloadArchiver) *Service {
	s.archiver = a
	return s
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ProcessResult describes the outcome of one inbound event for the HTTP
// layer and the counters.
type ProcessResult struct {
	Outcome        string // processed | skipped | ignored
	Message        string
	EventID        string
	EventType      string
	UserID         uint
	SubscriptionID uint
}

// ProcessWebhook runs the full pipeline for a raw provider payload:
// normalize, guard, apply, record. Signature verification happens in the
// HTTP layer before this is called. Validation failures are logged with
// status invalid and returned as errors so the caller can answer 400-class;
// duplicate deliveries come back as successful skips.
func (s *Service) ProcessWebhook(ctx context.Context, source string, raw []byte) (ProcessResult, error) {
	now := s.now()

	ev, err := NormalizeEvent(raw)
	if err != nil {
		s.recordInvalid(ctx, source, raw, err)
		return ProcessResult{}, err
	}

	guard, err := s.guardEvent(ctx, source, ev, raw, now)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("event log insert: %w", err)
	}

	result := ProcessResult{
		EventID:   ev.EventID,
		EventType: string(ev.Type),
		UserID:    ev.UserID,
	}

	if guard.Disposition == DispositionSkip {
		result.Outcome = "skipped"
		result.Message = guard.Reason
		if guard.Entry.SubscriptionID != nil {
			result.SubscriptionID = *guard.Entry.SubscriptionID
		}
		return result, nil
	}

	entry := guard.Entry
	note := fmt.Sprintf("webhook %s", eventNote(ev))

	if ev.Type == EventUnknown {
		// Logged for forensics, never applied.
		s.finishLog(ctx, entry, models.WebhookStatusProcessed, "unknown event type, not applied", now)
		result.Outcome = "ignored"
		result.Message = "unknown event type"
		return result, nil
	}

	sub, applied, err := s.applyEvent(ctx, ev, entry, note, now)
	if err != nil {
		s.finishLog(ctx, entry, models.WebhookStatusFailed, err.Error(), now)
		return result, fmt.Errorf("apply %s event: %w", ev.Type, err)
	}

	msg := ""
	if !applied {
		msg = "stale event ignored"
	}
	s.finishLog(ctx, entry, models.WebhookStatusProcessed, msg, now)
	s.archive(ctx, source, ev.EventID, raw)

	result.Outcome = "processed"
	result.Message = msg
	if sub != nil {
		result.SubscriptionID = sub.ID
	}
	return result, nil
}

// Reconcile re-derives subscription state from a client-observed entitlement
// snapshot, reusing the state machine and the event log so the webhook and
// sync paths cannot diverge. Returns ErrNoActiveEntitlement when the
// snapshot shows nothing active.
func (s *Service) Reconcile(ctx context.Context, userID uint, snapshot EntitlementSnapshot) (*models.Subscription, *models.User, error) {
	now := s.now()

	ent, ok := activeEntitlement(snapshot)
	if !ok {
		return nil, nil, ErrNoActiveEntitlement
	}

	if s.limiter != nil {
		key := fmt.Sprintf("billing:sync:%d", userID)
		if !s.limiter.TryAcquire(key, syncWindow) {
			// A sync just ran for this user; report current state instead of
			// re-deriving the same bounds again.
			return s.currentState(ctx, userID)
		}
	}

	start := now
	if ent.LatestPurchaseAt != nil {
		start = *ent.LatestPurchaseAt
	}

	existing, err := s.repo.GetSubscriptionByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	evType := EventPurchase
	if existing != nil {
		evType = EventRenewal
	}

	ev := CanonicalEvent{
		Type:        evType,
		RawType:     string(evType),
		UserID:      userID,
		ProductID:   ent.ProductIdentifier,
		PeriodStart: &start,
		PeriodEnd:   ent.ExpirationAt,
		OccurredAt:  &start,
		ExternalRef: ent.ProductIdentifier,
	}
	// Deterministic id: the same snapshot always maps to the same log key,
	// so rapid repeated sync calls collapse into one processed event.
	ev.EventID = reconcileEventID(userID, ent.ProductIdentifier, start)

	guard, err := s.guardEvent(ctx, SourceReconciliation, ev, []byte("{}"), now)
	if err != nil {
		return nil, nil, fmt.Errorf("event log insert: %w", err)
	}
	if guard.Disposition == DispositionSkip {
		return s.currentState(ctx, userID)
	}

	sub, _, err := s.applyEvent(ctx, ev, guard.Entry, "manual sync", now)
	if err != nil {
		s.finishLog(ctx, guard.Entry, models.WebhookStatusFailed, err.Error(), now)
		return nil, nil, fmt.Errorf("apply manual sync: %w", err)
	}
	s.finishLog(ctx, guard.Entry, models.WebhookStatusProcessed, "", now)

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return sub, nil, err
	}
	return sub, user, nil
}

// ExpireLapsed downgrades canceled subscriptions whose paid period has
// elapsed. It backs the periodic sweep job and returns how many rows it
// transitioned.
func (s *Service) ExpireLapsed(ctx context.Context, now time.Time, limit int) (int, error) {
	subs, err := s.repo.ListLapsedCanceled(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range subs {
		ev := CanonicalEvent{
			Type:       EventExpiration,
			RawType:    string(EventExpiration),
			UserID:     subs[i].UserID,
			OccurredAt: &now,
		}
		if _, _, err := s.applyExpiration(ctx, ev, &subs[i], nil, "subscription period lapsed (sweep)", now); err != nil {
			return expired, fmt.Errorf("expire subscription %d: %w", subs[i].ID, err)
		}
		expired++
	}
	return expired, nil
}

func (s *Service) currentState(ctx context.Context, userID uint) (*models.Subscription, *models.User, error) {
	sub, err := s.repo.GetSubscriptionByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return sub, nil, err
	}
	return sub, user, nil
}

// recordInvalid keeps the audit trail for payloads that fail validation.
func (s *Service) recordInvalid(ctx context.Context, source string, raw []byte, cause error) {
	s.RecordRejectedDelivery(ctx, source, raw, cause.Error())
}

// RecordRejectedDelivery writes an invalid log row for a payload that was
// turned away before processing, whether it failed validation or the
// credential check in the auth layer. The log key is derived from the body so
// retries of the same broken delivery land on the same row.
func (s *Service) RecordRejectedDelivery(ctx context.Context, source string, raw []byte, message string) {
	sum := sha256.Sum256(raw)
	entry := &models.WebhookLog{
		Source:       source,
		EventID:      "hash:" + hex.EncodeToString(sum[:])[:32],
		EventType:    string(EventUnknown),
		Payload:      string(raw),
		Status:       models.WebhookStatusInvalid,
		ErrorMessage: message,
	}
	if _, _, err := s.repo.CreateLogIfNotExists(ctx, entry); err != nil {
		log.Warnf("[Billing] Could not record invalid payload: %v", err)
	}
}

func (s *Service) finishLog(ctx context.Context, entry *models.WebhookLog, status, errMsg string, now time.Time) {
	if entry == nil {
		return
	}
	entry.Status = status
	entry.ErrorMessage = errMsg
	entry.ProcessedAt = &now
	if err := s.repo.UpdateLog(ctx, entry); err != nil {
		log.Errorf("[Billing] Could not update log entry %d: %v", entry.ID, err)
	}
}

func (s *Service) archive(ctx context.Context, source, eventID string, raw []byte) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchivePayload(ctx, source, eventID, raw); err != nil {
		log.Warnf("[Billing] Payload archive failed for %s/%s: %v", source, eventID, err)
	}
}

// activeEntitlement picks the entitlement the snapshot reports as active,
// falling back to the active product list when the entitlement map is empty.
func activeEntitlement(snapshot EntitlementSnapshot) (SnapshotEntitlement, bool) {
	for _, ent := range snapshot.Entitlements {
		if ent.IsActive {
			return ent, true
		}
	}
	for _, productID := range snapshot.ActiveSubscriptions {
		if productID != "" {
			return SnapshotEntitlement{ProductIdentifier: productID, IsActive: true}, true
		}
	}
	return SnapshotEntitlement{}, false
}

func reconcileEventID(userID uint, productID string, start time.Time) string {
	seed := fmt.Sprintf("sync|%d|%s|%d", userID, productID, start.Unix())
	sum := sha256.Sum256([]byte(seed))
	return "hash:" + hex.EncodeToString(sum[:])[:32]
}

func eventNote(ev CanonicalEvent) string {
	if ev.RawType != "" && ev.RawType != string(ev.Type) {
		return fmt.Sprintf("%s (%s)", ev.Type, ev.RawType)
	}
	return string(ev.Type)
}
