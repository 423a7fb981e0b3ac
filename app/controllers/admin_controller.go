package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/TimoBecker/LingoPulse/app/repository"
	"github.com/TimoBecker/LingoPulse/internal/pkg/jobqueue"
	"github.com/TimoBecker/LingoPulse/internal/pkg/metrics/counter"
	"github.com/TimoBecker/LingoPulse/internal/pkg/statistics"
)

// HandleAdminWebhookStats returns the operational view of the webhook
// pipeline: live redis counters, database counts for the last 24 hours and
// the newest log entries.
func HandleAdminWebhookStats(c *fiber.Ctx) error {
	outcomes, err := counter.OutcomeCounts()
	if err != nil {
		log.Warnf("[Admin] Could not read outcome counters: %v", err)
		outcomes = map[string]map[string]int64{}
	}
	eventTypes, err := counter.EventTypeCounts()
	if err != nil {
		log.Warnf("[Admin] Could not read event type counters: %v", err)
		eventTypes = map[string]map[string]int64{}
	}
	syncs, err := counter.SyncCounts()
	if err != nil {
		log.Warnf("[Admin] Could not read sync counters: %v", err)
		syncs = map[string]int64{}
	}

	since := time.Now().Add(-24 * time.Hour)
	logRepo := repository.GetGlobalFactory().GetWebhookLogRepository()

	byStatus, err := logRepo.CountByStatus(since)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load log counts"})
	}
	byEventType, err := logRepo.CountByEventType(since)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load log counts"})
	}

	recent, err := logRepo.ListRecent(20)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load recent entries"})
	}
	entries := make([]fiber.Map, 0, len(recent))
	for _, e := range recent {
		entries = append(entries, fiber.Map{
			"id":         e.ID,
			"source":     e.Source,
			"event_id":   e.EventID,
			"event_type": e.EventType,
			"status":     e.Status,
			"error":      e.ErrorMessage,
			"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	subCounts, err := repository.GetGlobalFactory().GetSubscriptionRepository().CountByStatus()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription counts"})
	}

	stats := statistics.GetStatistics()

	queueRepo := repository.GetGlobalFactory().GetQueueRepository()
	pending, err := queueRepo.GetListLength(jobqueue.JobQueueKey)
	if err != nil {
		log.Warnf("[Admin] Could not read queue length: %v", err)
	}
	processing, err := queueRepo.GetListLength(jobqueue.JobProcessingKey)
	if err != nil {
		log.Warnf("[Admin] Could not read processing length: %v", err)
	}

	return c.JSON(fiber.Map{
		"queue": fiber.Map{
			"pending":    pending,
			"processing": processing,
		},
		"totals": fiber.Map{
			"users":         stats.TotalUsers,
			"premium_users": stats.PremiumUsers,
			"events_today":  stats.TodayEvents,
		},
		"counters": fiber.Map{
			"outcomes":    outcomes,
			"event_types": eventTypes,
			"syncs":       syncs,
		},
		"last_24h": fiber.Map{
			"by_status":     byStatus,
			"by_event_type": byEventType,
		},
		"subscriptions": subCounts,
		"recent":        entries,
	})
}

// HandleAdminResetCounters clears the live redis counters.
func HandleAdminResetCounters(c *fiber.Ctx) error {
	if err := counter.ResetAll(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to reset counters"})
	}
	statistics.ResetCacheUpdateTimer()
	return c.JSON(fiber.Map{"success": true})
}
