package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PlanTypeMonthly = "monthly"
	PlanTypeYearly  = "yearly"
)

const (
	SubscriptionStatusTrial    = "trial"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
)

// Subscription mirrors the provider-side subscription for a user. At most one
// row exists per user; it is soft-transitioned through statuses and never
// hard-deleted.
type Subscription struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             uint       `gorm:"not null;uniqueIndex:ux_subscriptions_user" json:"user_id"`
	PlanType           string     `gorm:"type:varchar(20);not null;default:'monthly'" json:"plan_type" validate:"oneof=monthly yearly"`
	Status             string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status" validate:"oneof=trial active canceled past_due"`
	CurrentPeriodStart *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `gorm:"type:timestamp;default:null;index" json:"current_period_end,omitempty"`
	TrialStart         *time.Time `gorm:"type:timestamp;default:null" json:"trial_start,omitempty"`
	TrialEnd           *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	CanceledAt         *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	ExternalRef        string     `gorm:"type:varchar(191);index" json:"external_ref"`
	FounderDiscount    bool       `gorm:"default:false" json:"founder_discount"`
	DiscountPercent    int        `gorm:"default:0" json:"discount_percent" validate:"gte=0,lte=100"`
	LastEventAt        *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

// IsTrialWindowOpen reports whether the trial window covers the given instant.
func (s *Subscription) IsTrialWindowOpen(now time.Time) bool {
	return s.TrialEnd != nil && now.Before(*s.TrialEnd)
}

// IsPeriodElapsed reports whether the paid-through boundary has passed. A
// subscription without a period end is treated as elapsed so access never
// hangs open on missing data.
func (s *Subscription) IsPeriodElapsed(now time.Time) bool {
	if s.CurrentPeriodEnd == nil {
		return true
	}
	return !now.Before(*s.CurrentPeriodEnd)
}

// IsEntitling reports whether this subscription currently grants premium
// access: trial and active always do, canceled keeps access until the paid
// period elapses, past_due never does.
func (s *Subscription) IsEntitling(now time.Time) bool {
	switch s.Status {
	case SubscriptionStatusTrial, SubscriptionStatusActive:
		return true
	case SubscriptionStatusCanceled:
		return !s.IsPeriodElapsed(now)
	default:
		return false
	}
}
