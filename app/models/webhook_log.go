package models

import "time"

const (
	WebhookStatusReceived  = "received"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
	WebhookStatusInvalid   = "invalid"
	WebhookStatusDuplicate = "duplicate"
)

// WebhookLog stores every inbound billing event attempt with deduplication
// metadata for idempotent processing. The unique (source, event_id) index is
// the arbiter for concurrent deliveries of the same event; at most one row
// per key ever reaches status processed.
type WebhookLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Source         string     `gorm:"type:varchar(20);not null;index:ux_webhook_logs_source_event,unique,priority:1;index" json:"source"`
	EventID        string     `gorm:"type:varchar(191);not null;index:ux_webhook_logs_source_event,unique,priority:2" json:"event_id"`
	EventType      string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload        string     `gorm:"type:longtext;not null" json:"payload"`
	UserID         *uint      `gorm:"index" json:"user_id,omitempty"`
	SubscriptionID *uint      `gorm:"index" json:"subscription_id,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'received';index" json:"status"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message"`
	ProcessedAt    *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
