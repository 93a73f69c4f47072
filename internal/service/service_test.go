package service

import (
	"sync"
	"testing"
	"time"

	"github.com/vhvplatform/go-smart-notification-service/internal/digest"
	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/focus"
	"github.com/vhvplatform/go-smart-notification-service/internal/repository/sqlite"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
	"github.com/vhvplatform/go-smart-notification-service/internal/testutil"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	items []*domain.Notification
}

func (d *recordingDispatcher) Enqueue(n *domain.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, n)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

type services struct {
	store         *sqlite.Store
	clock         *testutil.Clock
	dispatcher    *recordingDispatcher
	prefs         *PreferenceService
	notifications *NotificationService
	focus         *FocusService
	digests       *DigestService
	insights      *InsightsService
}

func newServices(t *testing.T) *services {
	t.Helper()
	store := testutil.NewStore(t)
	clock := testutil.NewClock(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC))
	dispatcher := &recordingDispatcher{}
	log := logger.Nop()

	prefs := NewPreferenceService(store.Preferences(), log, clock.Now)
	return &services{
		store:      store,
		clock:      clock,
		dispatcher: dispatcher,
		prefs:      prefs,
		notifications: NewNotificationService(store.Notifications(), prefs, focus.NewGate(store.FocusBlocks()),
			store.Analytics(), dispatcher, log, clock.Now),
		focus:    NewFocusService(store.FocusBlocks(), prefs, log, clock.Now),
		digests:  NewDigestService(digest.NewGenerator(store.Notifications()), prefs, clock.Now),
		insights: NewInsightsService(store.Notifications(), store.Analytics(), prefs, clock.Now),
	}
}

func createRequest(userID string, opts ...func(*domain.CreateNotificationRequest)) *domain.CreateNotificationRequest {
	req := &domain.CreateNotificationRequest{
		UserID:  userID,
		Title:   "Task assigned",
		Message: "You have been assigned to the migration task",
		Type:    domain.NotificationTypeTaskAssigned,
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

func ptr[T any](v T) *T { return &v }
