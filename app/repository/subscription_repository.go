package repository

import (
	"github.com/TimoBecker/LingoPulse/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// GetByID retrieves a subscription by its ID
func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByUserID retrieves the subscription row for a user. There is at most one
// per user.
func (r *subscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByStatus retrieves a paginated list of subscriptions in the given status
func (r *subscriptionRepository) ListByStatus(status string, offset, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status = ?", status).
		Order("updated_at DESC").
		Offset(offset).Limit(limit).
		Find(&subs).Error
	return subs, err
}

// CountByStatus returns subscription counts grouped by status
func (r *subscriptionRepository) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := r.db.Model(&models.Subscription{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

// GetHistory retrieves the newest audit rows for a subscription
func (r *subscriptionRepository) GetHistory(subscriptionID uint, limit int) ([]models.SubscriptionHistory, error) {
	var history []models.SubscriptionHistory
	err := r.db.Where("subscription_id = ?", subscriptionID).
		Order("effective_date DESC, id DESC").
		Limit(limit).
		Find(&history).Error
	return history, err
}
