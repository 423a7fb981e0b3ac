package models

import "time"

const (
	HistoryActionCreated  = "created"
	HistoryActionRenewed  = "renewed"
	HistoryActionCanceled = "canceled"
	HistoryActionExpired  = "expired"
)

// SubscriptionHistory is the append-only audit trail of subscription state
// transitions. Rows are never mutated or deleted; together they form a
// replayable ledger independent of the mutable Subscription row.
type SubscriptionHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"not null;index" json:"subscription_id"`
	Action         string    `gorm:"type:varchar(20);not null;index" json:"action"`
	FromPlan       string    `gorm:"type:varchar(20)" json:"from_plan"`
	ToPlan         string    `gorm:"type:varchar(20)" json:"to_plan"`
	EffectiveDate  time.Time `gorm:"type:timestamp;not null" json:"effective_date"`
	Notes          string    `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
