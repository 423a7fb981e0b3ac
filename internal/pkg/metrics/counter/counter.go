package counter

import (
	"context"
	"strconv"
	"strings"

	"github.com/TimoBecker/LingoPulse/internal/pkg/cache"
)

const (
	webhookOutcomesKey = "webhook:counters:outcomes"
	webhookEventsKey   = "webhook:counters:events"
	syncRequestsKey    = "sync:counters:requests"
)

// AddWebhookOutcome increments the live counter for one processing outcome
// (processed, skipped, ignored, invalid, failed, unauthorized) per source.
func AddWebhookOutcome(source, outcome string) error {
	ctx := context.Background()
	field := source + "|" + outcome
	return cache.GetClient().HIncrBy(ctx, webhookOutcomesKey, field, 1).Err()
}

// AddWebhookEventType increments the live counter for one provider event type
// per source.
func AddWebhookEventType(source, eventType string) error {
	ctx := context.Background()
	field := source + "|" + eventType
	return cache.GetClient().HIncrBy(ctx, webhookEventsKey, field, 1).Err()
}

// AddSyncRequest increments the live counter for client reconciliation calls.
func AddSyncRequest(outcome string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, syncRequestsKey, outcome, 1).Err()
}

// OutcomeCounts returns the live outcome counters as source -> outcome -> count.
func OutcomeCounts() (map[string]map[string]int64, error) {
	return readGrouped(webhookOutcomesKey)
}

// EventTypeCounts returns the live event type counters as source -> type -> count.
func EventTypeCounts() (map[string]map[string]int64, error) {
	return readGrouped(webhookEventsKey)
}

// SyncCounts returns the live reconciliation counters keyed by outcome.
func SyncCounts() (map[string]int64, error) {
	ctx := context.Background()
	data, err := cache.GetClient().HGetAll(ctx, syncRequestsKey).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(data))
	for field, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		counts[field] = n
	}
	return counts, nil
}

// ResetAll clears the live counters. Used by the admin stats reset action.
func ResetAll() error {
	ctx := context.Background()
	return cache.GetClient().Del(ctx, webhookOutcomesKey, webhookEventsKey, syncRequestsKey).Err()
}

// readGrouped loads a hash whose fields are "source|label" and nests it by
// source. Fields that do not match the shape are skipped.
func readGrouped(redisKey string) (map[string]map[string]int64, error) {
	ctx := context.Background()
	data, err := cache.GetClient().HGetAll(ctx, redisKey).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]map[string]int64)
	for field, v := range data {
		source, label, ok := strings.Cut(field, "|")
		if !ok {
			continue
		}
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		if counts[source] == nil {
			counts[source] = make(map[string]int64)
		}
		counts[source][label] = n
	}
	return counts, nil
}
