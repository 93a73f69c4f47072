package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/realtime"
	"github.com/vhvplatform/go-smart-notification-service/internal/repository/sqlite"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
	"github.com/vhvplatform/go-smart-notification-service/internal/testutil"
)

var now = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

type fakePusher struct {
	mu    sync.Mutex
	err   error
	calls []realtime.Payload
}

func (p *fakePusher) Push(_ context.Context, _, _ string, payload realtime.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, payload)
	return p.err
}

func (p *fakePusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func setup(t *testing.T, pusher Pusher) (*Dispatcher, *sqlite.Store) {
	t.Helper()
	store := testutil.NewStore(t)
	d := NewDispatcher(pusher, store.Notifications(), store.Preferences(), logger.Nop(), Options{
		Workers: 2,
		Now:     func() time.Time { return now },
	})
	return d, store
}

func persist(t *testing.T, store *sqlite.Store, opts ...func(*domain.Notification)) *domain.Notification {
	t.Helper()
	n := testutil.Notification("user-1", "org-1", now, opts...)
	require.NoError(t, store.Notifications().Create(context.Background(), n))
	return n
}

func reload(t *testing.T, store *sqlite.Store, n *domain.Notification) *domain.Notification {
	t.Helper()
	got, err := store.Notifications().FindByID(context.Background(), n.ID, n.UserID, n.OrganizationID)
	require.NoError(t, err)
	return got
}

func TestDeliver_Success(t *testing.T) {
	pusher := &fakePusher{}
	d, store := setup(t, pusher)
	n := persist(t, store)

	d.Deliver(context.Background(), n)

	got := reload(t, store, n)
	assert.Equal(t, 1, got.DeliveryAttempts)
	assert.Equal(t, []domain.Channel{domain.ChannelInApp}, got.DeliveredChannels)
	assert.Empty(t, got.FailedChannels)
	require.Equal(t, 1, pusher.count())
	assert.Equal(t, n.ID, pusher.calls[0].ID)
}

func TestDeliver_FailureIsRecordedNotRaised(t *testing.T) {
	d, store := setup(t, &fakePusher{err: realtime.ErrNotConnected})
	n := persist(t, store)

	d.Deliver(context.Background(), n)

	got := reload(t, store, n)
	assert.Equal(t, 1, got.DeliveryAttempts)
	assert.Empty(t, got.DeliveredChannels)
	assert.Equal(t, []domain.Channel{domain.ChannelInApp}, got.FailedChannels)
	assert.NotNil(t, got.LastDeliveryAttempt)
}

func TestDeliver_DeferredIsNotPushed(t *testing.T) {
	pusher := &fakePusher{}
	d, store := setup(t, pusher)
	n := persist(t, store, testutil.WithSchedule(now.Add(time.Hour)))

	d.Deliver(context.Background(), n)

	assert.Zero(t, pusher.count())
	assert.Zero(t, reload(t, store, n).DeliveryAttempts)
}

func TestDeliver_DisabledRecipientSkipped(t *testing.T) {
	pusher := &fakePusher{}
	d, store := setup(t, pusher)
	prefs := domain.DefaultPreference("pref-1", "user-1", "org-1", now)
	prefs.Enabled = false
	require.NoError(t, store.Preferences().Create(context.Background(), prefs))
	n := persist(t, store)

	d.Deliver(context.Background(), n)

	got := reload(t, store, n)
	assert.Zero(t, pusher.count())
	assert.Equal(t, 1, got.DeliveryAttempts, "skip is recorded so deferred release ignores it")
	assert.Empty(t, got.DeliveredChannels)
	assert.Empty(t, got.FailedChannels)
}

func TestDeliver_InAppNotRequested(t *testing.T) {
	pusher := &fakePusher{}
	d, store := setup(t, pusher)
	n := persist(t, store, func(n *domain.Notification) { n.DeliveryChannels = []domain.Channel{domain.ChannelEmail} })

	d.Deliver(context.Background(), n)

	assert.Zero(t, pusher.count())
	assert.Zero(t, reload(t, store, n).DeliveryAttempts)
}

func TestDispatcher_WorkerPool(t *testing.T) {
	pusher := &fakePusher{}
	d, store := setup(t, pusher)
	d.Start()
	d.Start()

	var items []*domain.Notification
	for i := 0; i < 10; i++ {
		items = append(items, persist(t, store))
	}
	for _, n := range items {
		d.Enqueue(n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Equal(t, 10, pusher.count())
	for _, n := range items {
		assert.Equal(t, 1, reload(t, store, n).DeliveryAttempts)
	}

	d.Enqueue(persist(t, store))
	assert.Equal(t, 10, pusher.count(), "enqueue after stop is dropped")
}

func TestDispatcher_StopHonorsContext(t *testing.T) {
	block := make(chan struct{})
	d, store := setup(t, blockingPusher(block))
	d.Start()
	d.Enqueue(persist(t, store))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Stop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	close(block)
}

type blockingPusher chan struct{}

func (b blockingPusher) Push(ctx context.Context, _, _ string, _ realtime.Payload) error {
	<-b
	return nil
}
