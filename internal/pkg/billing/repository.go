package billing

import (
	"context"
	"time"

	"github.com/TimoBecker/LingoPulse/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service. Every method
// takes the request context so the HTTP layer's deadline bounds the storage
// work too.
type Repository interface {
	CreateLogIfNotExists(ctx context.Context, entry *models.WebhookLog) (bool, *models.WebhookLog, error)
	UpdateLog(ctx context.Context, entry *models.WebhookLog) error
	GetSubscriptionByUser(ctx context.Context, userID uint) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	AppendHistory(ctx context.Context, h *models.SubscriptionHistory) error
	GetUser(ctx context.Context, userID uint) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
	ListLapsedCanceled(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateLogIfNotExists inserts a log row unless one already exists for the
// (source, event_id) key. The unique index is the arbiter under concurrent
// deliveries: the loser of the race sees created=false plus the winner's row
// instead of a constraint error.
func (r *gormRepository) CreateLogIfNotExists(ctx context.Context, entry *models.WebhookLog) (bool, *models.WebhookLog, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(entry)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookLog
	if err := r.db.WithContext(ctx).Where("source = ? AND event_id = ?", entry.Source, entry.EventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) UpdateLog(ctx context.Context, entry *models.WebhookLog) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *gormRepository) GetSubscriptionByUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_type",
			"status",
			"current_period_start",
			"current_period_end",
			"trial_start",
			"trial_end",
			"canceled_at",
			"external_ref",
			"last_event_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.WithContext(ctx).Where("user_id = ?", sub.UserID).First(sub).Error
}

func (r *gormRepository) AppendHistory(ctx context.Context, h *models.SubscriptionHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *gormRepository) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SaveUser(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

// ListLapsedCanceled returns canceled subscriptions whose paid period has
// elapsed, for the expiry sweeper.
func (r *gormRepository) ListLapsedCanceled(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND current_period_end IS NOT NULL AND current_period_end <= ?",
			models.SubscriptionStatusCanceled, now).
		Limit(limit).
		Find(&subs).Error
	return subs, err
}
