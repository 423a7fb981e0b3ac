package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/TimoBecker/LingoPulse/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory Repository with the same conflict semantics as
// the GORM implementation: unique (source, event_id) log keys and a single
// subscription row per user.
type fakeRepo struct {
	logs      map[string]*models.WebhookLog
	subs      map[uint]*models.Subscription
	users     map[uint]*models.User
	history   []models.SubscriptionHistory
	nextLogID uint
	nextSubID uint

	failUpsert error // consumed by the next UpsertSubscription call
}

func newFakeRepo(users ...*models.User) *fakeRepo {
	f := &fakeRepo{
		logs:  make(map[string]*models.WebhookLog),
		subs:  make(map[uint]*models.Subscription),
		users: make(map[uint]*models.User),
	}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func logKey(source, eventID string) string { return source + "|" + eventID }

func (f *fakeRepo) CreateLogIfNotExists(ctx context.Context, entry *models.WebhookLog) (bool, *models.WebhookLog, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	key := logKey(entry.Source, entry.EventID)
	if stored, ok := f.logs[key]; ok {
		return false, stored, nil
	}
	f.nextLogID++
	entry.ID = f.nextLogID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	f.logs[key] = entry
	return true, entry, nil
}

func (f *fakeRepo) UpdateLog(ctx context.Context, entry *models.WebhookLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.logs[logKey(entry.Source, entry.EventID)] = entry
	return nil
}

func (f *fakeRepo) GetSubscriptionByUser(ctx context.Context, userID uint) (*models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub, ok := f.subs[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeRepo) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failUpsert != nil {
		err := f.failUpsert
		f.failUpsert = nil
		return err
	}
	if existing, ok := f.subs[sub.UserID]; ok {
		existing.PlanType = sub.PlanType
		existing.Status = sub.Status
		existing.CurrentPeriodStart = sub.CurrentPeriodStart
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
		existing.TrialStart = sub.TrialStart
		existing.TrialEnd = sub.TrialEnd
		existing.CanceledAt = sub.CanceledAt
		existing.ExternalRef = sub.ExternalRef
		existing.LastEventAt = sub.LastEventAt
		*sub = *existing
		return nil
	}
	f.nextSubID++
	sub.ID = f.nextSubID
	cp := *sub
	f.subs[sub.UserID] = &cp
	return nil
}

func (f *fakeRepo) AppendHistory(ctx context.Context, h *models.SubscriptionHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.history = append(f.history, *h)
	return nil
}

func (f *fakeRepo) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeRepo) SaveUser(ctx context.Context, u *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) ListLapsedCanceled(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.Status == models.SubscriptionStatusCanceled &&
			sub.CurrentPeriodEnd != nil && !now.Before(*sub.CurrentPeriodEnd) {
			out = append(out, *sub)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) historyActions() []string {
	actions := make([]string, 0, len(f.history))
	for _, h := range f.history {
		actions = append(actions, h.Action)
	}
	return actions
}

type fixedLimiter struct{ allow bool }

func (l fixedLimiter) TryAcquire(string, time.Duration) bool { return l.allow }

var baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, now *time.Time) *Service {
	return NewService(repo).WithClock(func() time.Time { return *now })
}

func purchasePayload(userID uint, product string, purchasedAt time.Time, eventTS time.Time) []byte {
	return []byte(fmt.Sprintf(
		`{"event":{"id":"evt_p_%d","type":"INITIAL_PURCHASE","app_user_id":%d,"product_id":%q,"purchased_at_ms":%d,"event_timestamp_ms":%d,"original_transaction_id":"txn_%d"}}`,
		eventTS.UnixMilli(), userID, product, purchasedAt.UnixMilli(), eventTS.UnixMilli(), userID))
}

func TestProcessWebhookFirstPurchase(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE, SubscriptionStatus: models.SUB_STATUS_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	res, err := svc.ProcessWebhook(context.Background(), "revenuecat", purchasePayload(42, "lingopulse_monthly", baseTime, baseTime))
	require.NoError(t, err)

	assert.Equal(t, "processed", res.Outcome)
	assert.Equal(t, uint(42), res.UserID)
	assert.NotZero(t, res.SubscriptionID)

	sub := repo.subs[42]
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, models.PlanTypeMonthly, sub.PlanType)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, baseTime.AddDate(0, 1, 0), *sub.CurrentPeriodEnd)

	assert.Equal(t, models.ROLE_PREMIUM, repo.users[42].Role)
	assert.Equal(t, models.SUB_STATUS_PREMIUM, repo.users[42].SubscriptionStatus)
	assert.Equal(t, []string{models.HistoryActionCreated}, repo.historyActions())

	entry := repo.logs[logKey("revenuecat", "evt_p_"+fmt.Sprint(baseTime.UnixMilli()))]
	require.NotNil(t, entry)
	assert.Equal(t, models.WebhookStatusProcessed, entry.Status)
	require.NotNil(t, entry.SubscriptionID)
	assert.Equal(t, sub.ID, *entry.SubscriptionID)
}

func TestProcessWebhookDuplicateDelivery(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)
	payload := purchasePayload(42, "lingopulse_monthly", baseTime, baseTime)

	_, err := svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)

	res, err := svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)

	assert.Equal(t, "skipped", res.Outcome)
	assert.Equal(t, "already processed", res.Message)
	assert.Len(t, repo.history, 1, "duplicate delivery must not append history")
	assert.Len(t, repo.subs, 1)
}

func TestProcessWebhookTrialPurchase(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 9, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	trialEnd := baseTime.AddDate(0, 0, 7)
	payload := []byte(fmt.Sprintf(
		`{"event":{"id":"evt_t1","type":"INITIAL_PURCHASE","app_user_id":9,"product_id":"lingopulse_monthly","purchased_at_ms":%d,"trial_start_at_ms":%d,"trial_end_at_ms":%d,"event_timestamp_ms":%d}}`,
		baseTime.UnixMilli(), baseTime.UnixMilli(), trialEnd.UnixMilli(), baseTime.UnixMilli()))

	_, err := svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusTrial, repo.subs[9].Status)
	assert.Equal(t, models.SUB_STATUS_TRIAL, repo.users[9].SubscriptionStatus)
	assert.Equal(t, models.ROLE_PREMIUM, repo.users[9].Role)
}

// An event carrying a period end equal to its start must not corrupt the
// access boundary; the end is recomputed from the plan duration.
func TestProcessWebhookMalformedPeriodEnd(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	payload := []byte(fmt.Sprintf(
		`{"event":{"id":"evt_m1","type":"INITIAL_PURCHASE","app_user_id":42,"product_id":"lingopulse_yearly","purchased_at_ms":%d,"expiration_at_ms":%d,"event_timestamp_ms":%d}}`,
		baseTime.UnixMilli(), baseTime.UnixMilli(), baseTime.UnixMilli()))

	_, err := svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)

	sub := repo.subs[42]
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, baseTime.AddDate(1, 0, 0), *sub.CurrentPeriodEnd)
}

func TestProcessWebhookCancelThenExpire(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	_, err := svc.ProcessWebhook(context.Background(), "revenuecat", purchasePayload(42, "lingopulse_monthly", baseTime, baseTime))
	require.NoError(t, err)
	periodEnd := *repo.subs[42].CurrentPeriodEnd

	// Cancellation: do-not-renew, access stays until the paid boundary.
	cancelTS := baseTime.Add(time.Hour)
	cancelPayload := []byte(fmt.Sprintf(
		`{"event":{"id":"evt_c1","type":"CANCELLATION","app_user_id":42,"canceled_at_ms":%d,"event_timestamp_ms":%d}}`,
		cancelTS.UnixMilli(), cancelTS.UnixMilli()))
	now = cancelTS
	_, err = svc.ProcessWebhook(context.Background(), "revenuecat", cancelPayload)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusCanceled, repo.subs[42].Status)
	assert.Equal(t, periodEnd, *repo.subs[42].CurrentPeriodEnd, "cancellation must not move the access boundary")
	assert.Equal(t, models.ROLE_PREMIUM, repo.users[42].Role, "cancellation must not revoke paid access")

	// No expiration event from the provider: the sweep finishes the
	// downgrade once the period has elapsed.
	sweepTime := periodEnd.Add(time.Minute)
	expired, err := svc.ExpireLapsed(context.Background(), sweepTime, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, models.SubscriptionStatusPastDue, repo.subs[42].Status)
	assert.Equal(t, models.ROLE_FREE, repo.users[42].Role)
	assert.Equal(t, models.SUB_STATUS_FREE, repo.users[42].SubscriptionStatus)
	assert.Equal(t, []string{
		models.HistoryActionCreated,
		models.HistoryActionCanceled,
		models.HistoryActionExpired,
	}, repo.historyActions())
}

func TestProcessWebhookExpirationDowngradesImmediately(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	_, err := svc.ProcessWebhook(context.Background(), "revenuecat", purchasePayload(42, "lingopulse_monthly", baseTime, baseTime))
	require.NoError(t, err)

	expireTS := baseTime.AddDate(0, 1, 1)
	now = expireTS
	payload := []byte(fmt.Sprintf(
		`{"event":{"id":"evt_e1","type":"EXPIRATION","app_user_id":42,"event_timestamp_ms":%d}}`, expireTS.UnixMilli()))
	_, err = svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusPastDue, repo.subs[42].Status)
	assert.Equal(t, models.ROLE_FREE, repo.users[42].Role)
}

// A stale renewal delivered after a newer cancellation must not resurrect
// the subscription.
func TestProcessWebhookStaleEventIgnored(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	_, err := svc.ProcessWebhook(context.Background(), "revenuecat", purchasePayload(42, "lingopulse_monthly", baseTime, baseTime))
	require.NoError(t, err)

	cancelTS := baseTime.Add(2 * time.Hour)
	now = cancelTS
	cancelPayload := []byte(fmt.Sprintf(
		`{"event":{"id":"evt_c2","type":"CANCELLATION","app_user_id":42,"event_timestamp_ms":%d}}`, cancelTS.UnixMilli()))
	_, err = svc.ProcessWebhook(context.Background(), "revenuecat", cancelPayload)
	require.NoError(t, err)

	// Renewal timestamped before the cancellation arrives late.
	staleTS := baseTime.Add(time.Hour)
	stalePayload := []byte(fmt.Sprintf(
		`{"event":{"id":"evt_r_stale","type":"RENEWAL","app_user_id":42,"product_id":"lingopulse_monthly","purchased_at_ms":%d,"event_timestamp_ms":%d}}`,
		staleTS.UnixMilli(), staleTS.UnixMilli()))
	res, err := svc.ProcessWebhook(context.Background(), "revenuecat", stalePayload)
	require.NoError(t, err)

	assert.Equal(t, "processed", res.Outcome)
	assert.Equal(t, "stale event ignored", res.Message)
	assert.Equal(t, models.SubscriptionStatusCanceled, repo.subs[42].Status)
	assert.Equal(t, []string{models.HistoryActionCreated, models.HistoryActionCanceled}, repo.historyActions())
}

func TestProcessWebhookUnknownEventNotApplied(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	payload := []byte(`{"event":{"id":"evt_u1","type":"BILLING_ISSUE","app_user_id":42}}`)
	res, err := svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)

	assert.Equal(t, "ignored", res.Outcome)
	assert.Empty(t, repo.subs)
	assert.Empty(t, repo.history)
	assert.Equal(t, models.WebhookStatusProcessed, repo.logs[logKey("revenuecat", "evt_u1")].Status)
}

func TestProcessWebhookInvalidUserIsLogged(t *testing.T) {
	repo := newFakeRepo()
	now := baseTime
	svc := newTestService(repo, &now)

	_, err := svc.ProcessWebhook(context.Background(), "revenuecat", []byte(`{"event":{"type":"RENEWAL","app_user_id":"abc"}}`))
	assert.ErrorIs(t, err, ErrInvalidUserID)

	require.Len(t, repo.logs, 1)
	for _, entry := range repo.logs {
		assert.Equal(t, models.WebhookStatusInvalid, entry.Status)
		assert.NotEmpty(t, entry.ErrorMessage)
	}
}

func TestProcessWebhookRetryAfterFailure(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)
	payload := purchasePayload(42, "lingopulse_monthly", baseTime, baseTime)

	repo.failUpsert = fmt.Errorf("storage unavailable")
	_, err := svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.Error(t, err)

	key := logKey("revenuecat", "evt_p_"+fmt.Sprint(baseTime.UnixMilli()))
	assert.Equal(t, models.WebhookStatusFailed, repo.logs[key].Status)

	// Re-delivery reuses the failed row and completes.
	res, err := svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)
	assert.Equal(t, "processed", res.Outcome)
	assert.Equal(t, models.WebhookStatusProcessed, repo.logs[key].Status)
	assert.Len(t, repo.logs, 1, "retry must reuse the existing log row")
	assert.Len(t, repo.history, 1)
}

func TestProcessWebhookConcurrentReceivedIsSkipped(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)
	payload := purchasePayload(42, "lingopulse_monthly", baseTime, baseTime)

	// Another delivery holds the row in `received` right now.
	eventID := "evt_p_" + fmt.Sprint(baseTime.UnixMilli())
	repo.logs[logKey("revenuecat", eventID)] = &models.WebhookLog{
		ID: 1, Source: "revenuecat", EventID: eventID,
		Status: models.WebhookStatusReceived, CreatedAt: baseTime,
	}

	res, err := svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)
	assert.Equal(t, "skipped", res.Outcome)
	assert.Empty(t, repo.history)
}

func TestProcessWebhookStaleReceivedIsRetried(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)
	payload := purchasePayload(42, "lingopulse_monthly", baseTime, baseTime)

	// A previous attempt died mid-flight well past the grace window.
	eventID := "evt_p_" + fmt.Sprint(baseTime.UnixMilli())
	repo.logs[logKey("revenuecat", eventID)] = &models.WebhookLog{
		ID: 1, Source: "revenuecat", EventID: eventID, Payload: string(payload),
		Status: models.WebhookStatusReceived, CreatedAt: baseTime.Add(-time.Minute),
	}

	res, err := svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)
	assert.Equal(t, "processed", res.Outcome)
	assert.Len(t, repo.history, 1)
}

func TestProcessWebhookKeepsAdminRole(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 1, Role: models.ROLE_ADMIN})
	now := baseTime
	svc := newTestService(repo, &now)

	_, err := svc.ProcessWebhook(context.Background(), "revenuecat", purchasePayload(1, "lingopulse_monthly", baseTime, baseTime))
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_ADMIN, repo.users[1].Role)

	expireTS := baseTime.AddDate(0, 2, 0)
	now = expireTS
	payload := []byte(fmt.Sprintf(
		`{"event":{"id":"evt_e_admin","type":"EXPIRATION","app_user_id":1,"event_timestamp_ms":%d}}`, expireTS.UnixMilli()))
	_, err = svc.ProcessWebhook(context.Background(), "revenuecat", payload)
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_ADMIN, repo.users[1].Role, "billing events never touch the admin role")
}

func TestReconcileCreatesSubscription(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	purchase := baseTime.Add(-time.Minute)
	expiration := purchase.AddDate(0, 1, 0)
	snapshot := EntitlementSnapshot{
		Entitlements: map[string]SnapshotEntitlement{
			"premium": {
				ProductIdentifier: "lingopulse_monthly",
				IsActive:          true,
				LatestPurchaseAt:  &purchase,
				ExpirationAt:      &expiration,
			},
		},
	}

	sub, user, err := svc.Reconcile(context.Background(), 7, snapshot)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, expiration, *sub.CurrentPeriodEnd)
	assert.Equal(t, models.ROLE_PREMIUM, user.Role)

	require.Len(t, repo.history, 1)
	assert.Equal(t, "manual sync", repo.history[0].Notes)

	// Immediate repeat with the same snapshot maps to the same event id and
	// is absorbed by the idempotency guard.
	sub2, _, err := svc.Reconcile(context.Background(), 7, snapshot)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, sub2.ID)
	assert.Len(t, repo.history, 1, "repeated sync must not append history")
}

func TestReconcileNoActiveEntitlement(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	_, _, err := svc.Reconcile(context.Background(), 7, EntitlementSnapshot{})
	assert.ErrorIs(t, err, ErrNoActiveEntitlement)

	_, _, err = svc.Reconcile(context.Background(), 7, EntitlementSnapshot{
		Entitlements: map[string]SnapshotEntitlement{
			"premium": {ProductIdentifier: "lingopulse_monthly", IsActive: false},
		},
	})
	assert.ErrorIs(t, err, ErrNoActiveEntitlement)
	assert.Empty(t, repo.subs)
}

func TestReconcileFallsBackToActiveSubscriptions(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	sub, _, err := svc.Reconcile(context.Background(), 7, EntitlementSnapshot{
		ActiveSubscriptions: []string{"lingopulse_yearly"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PlanTypeYearly, sub.PlanType)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, baseTime.AddDate(1, 0, 0), *sub.CurrentPeriodEnd)
}

func TestReconcileDedupWindow(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 7, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now).WithSyncLimiter(fixedLimiter{allow: false})

	snapshot := EntitlementSnapshot{ActiveSubscriptions: []string{"lingopulse_monthly"}}
	sub, user, err := svc.Reconcile(context.Background(), 7, snapshot)
	require.NoError(t, err)
	assert.Nil(t, sub, "inside the window no mutation happens")
	assert.Equal(t, models.ROLE_FREE, user.Role)
	assert.Empty(t, repo.logs)
}

// A deadline that has already passed must stop the pipeline at the first
// storage call instead of running to completion.
func TestProcessWebhookHonorsCanceledContext(t *testing.T) {
	repo := newFakeRepo(&models.User{ID: 42, Role: models.ROLE_FREE})
	now := baseTime
	svc := newTestService(repo, &now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ProcessWebhook(ctx, "revenuecat", purchasePayload(42, "lingopulse_monthly", baseTime, baseTime))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.subs, "no state change after the deadline")
	assert.Empty(t, repo.history)
}

func TestRecordRejectedDelivery(t *testing.T) {
	repo := newFakeRepo()
	now := baseTime
	svc := newTestService(repo, &now)

	raw := []byte(`{"event":{"id":"evt_x","type":"RENEWAL"}}`)
	svc.RecordRejectedDelivery(context.Background(), "revenuecat", raw, "invalid webhook credential")

	require.Len(t, repo.logs, 1)
	for _, entry := range repo.logs {
		assert.Equal(t, models.WebhookStatusInvalid, entry.Status)
		assert.Equal(t, "invalid webhook credential", entry.ErrorMessage)
		assert.Equal(t, string(raw), entry.Payload)
		assert.Contains(t, entry.EventID, "hash:")
	}

	// The same rejected body maps to the same row, not a second one.
	svc.RecordRejectedDelivery(context.Background(), "revenuecat", raw, "invalid webhook credential")
	assert.Len(t, repo.logs, 1)
}
