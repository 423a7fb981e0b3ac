package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/TimoBecker/LingoPulse/app/models"
	"github.com/TimoBecker/LingoPulse/internal/pkg/cache"
	"github.com/TimoBecker/LingoPulse/internal/pkg/database"
)

const (
	CacheKeyUsersTotal   = "statistics:users:total"
	CacheKeyPremiumTotal = "statistics:premium:total"
	CacheKeyEventsDaily  = "statistics:events:daily:%s" // Format with date YYYY-MM-DD
	CacheExpiration      = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers for the admin dashboard
type StatisticsData struct {
	TotalUsers   int
	PremiumUsers int
	TodayEvents  int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached aggregates are older than the interval
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached aggregates when they are stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded call to refresh
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	var premiumUsers int64
	if err := db.Model(&models.User{}).Where("role = ?", models.ROLE_PREMIUM).Count(&premiumUsers).Error; err != nil {
		log.Printf("Error counting premium users: %v", err)
		return err
	}

	var todayEvents int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.WebhookLog{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayEvents).Error; err != nil {
		log.Printf("Error counting today's webhook events: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsersTotal, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyPremiumTotal, strconv.FormatInt(premiumUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching premium users: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyEventsDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayEvents, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's webhook events: %v", err)
		return err
	}

	return nil
}

// GetStatistics returns the current aggregates, refreshing the cache when needed
func GetStatistics() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TotalUsers:   readCachedInt(CacheKeyUsersTotal),
		PremiumUsers: readCachedInt(CacheKeyPremiumTotal),
		TodayEvents:  readCachedInt(fmt.Sprintf(CacheKeyEventsDaily, time.Now().Format("2006-01-02"))),
	}
}

func readCachedInt(key string) int {
	val, err := cache.Get(key)
	if err != nil {
		return 0
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}
