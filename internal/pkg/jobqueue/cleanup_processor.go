package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/TimoBecker/LingoPulse/app/models"
	"github.com/TimoBecker/LingoPulse/internal/pkg/database"
)

const (
	defaultLogRetentionDays = 90
	defaultLogCleanupBatch  = 1000
)

// processLogCleanupJob prunes terminal webhook log rows past the retention
// window. Rows in `received` or `failed` are kept regardless of age so a
// crashed delivery never loses its retry anchor.
func (q *Queue) processLogCleanupJob(ctx context.Context, job *Job) error {
	payload, err := LogCleanupJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid log cleanup payload: %w", err)
	}

	retention := payload.RetentionDays
	if retention <= 0 {
		retention = defaultLogRetentionDays
	}
	limit := payload.BatchLimit
	if limit <= 0 {
		limit = defaultLogCleanupBatch
	}

	cutoff := time.Now().AddDate(0, 0, -retention)
	result := database.GetDB().WithContext(ctx).
		Where("created_at < ? AND status IN ?", cutoff,
			[]string{models.WebhookStatusProcessed, models.WebhookStatusDuplicate, models.WebhookStatusInvalid}).
		Limit(limit).
		Delete(&models.WebhookLog{})
	if result.Error != nil {
		return fmt.Errorf("log cleanup: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		log.Infof("[JobQueue] Log cleanup removed %d entries older than %d days", result.RowsAffected, retention)
	}
	return nil
}
