package repository

import (
	"time"

	"github.com/TimoBecker/LingoPulse/app/models"
	"gorm.io/gorm"
)

// webhookLogRepository implements the WebhookLogRepository interface
type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository instance
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

// GetByID retrieves a log entry by its ID
func (r *webhookLogRepository) GetByID(id uint) (*models.WebhookLog, error) {
	var entry models.WebhookLog
	err := r.db.First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetByEventID retrieves a log entry by its deduplication key
func (r *webhookLogRepository) GetByEventID(source, eventID string) (*models.WebhookLog, error) {
	var entry models.WebhookLog
	err := r.db.Where("source = ? AND event_id = ?", source, eventID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListRecent retrieves the newest log entries across all sources
func (r *webhookLogRepository) ListRecent(limit int) ([]models.WebhookLog, error) {
	var entries []models.WebhookLog
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// ListByUserID retrieves the newest log entries attributed to a user
func (r *webhookLogRepository) ListByUserID(userID uint, limit int) ([]models.WebhookLog, error) {
	var entries []models.WebhookLog
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// CountByStatus returns log entry counts grouped by status since the given time
func (r *webhookLogRepository) CountByStatus(since time.Time) (map[string]int64, error) {
	return r.countGrouped("status", since)
}

// CountByEventType returns log entry counts grouped by event type since the given time
func (r *webhookLogRepository) CountByEventType(since time.Time) (map[string]int64, error) {
	return r.countGrouped("event_type", since)
}

func (r *webhookLogRepository) countGrouped(column string, since time.Time) (map[string]int64, error) {
	type row struct {
		Key   string
		Total int64
	}
	var rows []row
	err := r.db.Model(&models.WebhookLog{}).
		Select(column+" AS `key`, COUNT(*) AS total").
		Where("created_at >= ?", since).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Key] = r.Total
	}
	return counts, nil
}
