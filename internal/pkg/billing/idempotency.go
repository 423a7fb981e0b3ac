package billing

import (
	"context"
	"time"

	"github.com/TimoBecker/LingoPulse/app/models"
)

// retryGrace is how long a `received` log row is assumed to belong to an
// in-flight delivery. Rows younger than this are concurrent duplicates and
// skipped; older ones are crashed attempts and re-processed in place.
const retryGrace = 30 * time.Second

// GuardResult is the idempotency guard's decision plus the log row the rest
// of the pipeline must use.
type GuardResult struct {
	Disposition Disposition
	Reason      string
	Entry       *models.WebhookLog
}

// guardEvent inserts the `received` log row for an inbound event, or
// classifies the existing row for the same (source, event_id) key:
//
//	processed            -> skip, the effect already happened
//	duplicate / invalid  -> skip, historical dead end
//	failed               -> retry, reuse the row
//	received (fresh)     -> skip, a concurrent delivery owns it
//	received (stale)     -> retry, the previous attempt died mid-flight
func (s *Service) guardEvent(ctx context.Context, source string, ev CanonicalEvent, raw []byte, now time.Time) (GuardResult, error) {
	userID := ev.UserID
	entry := &models.WebhookLog{
		Source:    source,
		EventID:   ev.EventID,
		EventType: string(ev.Type),
		Payload:   string(raw),
		UserID:    &userID,
		Status:    models.WebhookStatusReceived,
	}

	created, stored, err := s.repo.CreateLogIfNotExists(ctx, entry)
	if err != nil {
		return GuardResult{}, err
	}
	if created {
		return GuardResult{Disposition: DispositionProcess, Entry: stored}, nil
	}

	switch stored.Status {
	case models.WebhookStatusProcessed:
		return GuardResult{Disposition: DispositionSkip, Reason: "already processed", Entry: stored}, nil
	case models.WebhookStatusDuplicate:
		return GuardResult{Disposition: DispositionSkip, Reason: "duplicate", Entry: stored}, nil
	case models.WebhookStatusInvalid:
		return GuardResult{Disposition: DispositionSkip, Reason: "previously invalid", Entry: stored}, nil
	case models.WebhookStatusFailed:
		return GuardResult{Disposition: DispositionRetry, Entry: stored}, nil
	case models.WebhookStatusReceived:
		if now.Sub(stored.CreatedAt) < retryGrace {
			return GuardResult{Disposition: DispositionSkip, Reason: "concurrent delivery in progress", Entry: stored}, nil
		}
		return GuardResult{Disposition: DispositionRetry, Entry: stored}, nil
	default:
		return GuardResult{Disposition: DispositionSkip, Reason: "unknown log status " + stored.Status, Entry: stored}, nil
	}
}
