package repository

import (
	"time"

	"github.com/TimoBecker/LingoPulse/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	CountByRole(role string) (int64, error)
	Search(query string) ([]models.User, error)
}

// SubscriptionRepository defines the interface for subscription reads. Writes
// go through the billing service so every mutation passes the event log.
type SubscriptionRepository interface {
	GetByID(id uint) (*models.Subscription, error)
	GetByUserID(userID uint) (*models.Subscription, error)
	ListByStatus(status string, offset, limit int) ([]models.Subscription, error)
	CountByStatus() (map[string]int64, error)
	GetHistory(subscriptionID uint, limit int) ([]models.SubscriptionHistory, error)
}

// WebhookLogRepository defines the interface for event log inspection
type WebhookLogRepository interface {
	GetByID(id uint) (*models.WebhookLog, error)
	GetByEventID(source, eventID string) (*models.WebhookLog, error)
	ListRecent(limit int) ([]models.WebhookLog, error)
	ListByUserID(userID uint, limit int) ([]models.WebhookLog, error)
	CountByStatus(since time.Time) (map[string]int64, error)
	CountByEventType(since time.Time) (map[string]int64, error)
}

// QueueRepository defines the interface for cache/queue operations
type QueueRepository interface {
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	GetListLength(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
	WebhookLog   WebhookLogRepository
	Queue        QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
		WebhookLog:   NewWebhookLogRepository(db),
		Queue:        NewQueueRepository(),
	}
}
