package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/TimoBecker/LingoPulse/internal/pkg/billing"
	"github.com/TimoBecker/LingoPulse/internal/pkg/database"
)

const defaultExpirySweepBatch = 200

// processExpirySweepJob downgrades canceled subscriptions whose paid period
// has elapsed. Providers usually send an expiration event for this, but not
// reliably; the sweep closes the gap so nobody keeps premium past the
// boundary they paid for.
func (q *Queue) processExpirySweepJob(ctx context.Context, job *Job) error {
	payload, err := ExpirySweepJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid expiry sweep payload: %w", err)
	}

	limit := payload.BatchLimit
	if limit <= 0 {
		limit = defaultExpirySweepBatch
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	expired, err := svc.ExpireLapsed(ctx, time.Now(), limit)
	if err != nil {
		return fmt.Errorf("expiry sweep: %w", err)
	}

	if expired > 0 {
		log.Infof("[JobQueue] Expiry sweep downgraded %d lapsed subscriptions", expired)
	} else {
		log.Debug("[JobQueue] Expiry sweep found nothing to downgrade")
	}
	return nil
}
