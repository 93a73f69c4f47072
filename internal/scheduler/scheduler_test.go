package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-smart-notification-service/internal/delivery"
	"github.com/vhvplatform/go-smart-notification-service/internal/digest"
	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/realtime"
	"github.com/vhvplatform/go-smart-notification-service/internal/repository/sqlite"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
	"github.com/vhvplatform/go-smart-notification-service/internal/testutil"
)

type recordingCreator struct {
	mu    sync.Mutex
	store *sqlite.Store
	reqs  []*domain.CreateNotificationRequest
	now   func() time.Time
}

func (c *recordingCreator) Create(ctx context.Context, orgID string, req *domain.CreateNotificationRequest) (*domain.Notification, error) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	c.mu.Unlock()

	n := testutil.Notification(req.UserID, orgID, c.now(), func(n *domain.Notification) {
		n.Title = req.Title
		n.Message = req.Message
		n.Type = req.Type
		n.Source = req.Source
		n.AutoGenerated = req.AutoGenerated
	})
	return n, c.store.Notifications().Create(ctx, n)
}

func (c *recordingCreator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

type failingPrefs struct {
	PreferenceReader
	failFor string
}

func (f failingPrefs) Get(ctx context.Context, userID, orgID string) (*domain.NotificationPreference, error) {
	if userID == f.failFor {
		return nil, errors.New("preference backend unavailable")
	}
	return f.PreferenceReader.Get(ctx, userID, orgID)
}

type countingPusher struct {
	mu  sync.Mutex
	ids []string
}

func (p *countingPusher) Push(_ context.Context, _, _ string, payload realtime.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, payload.ID)
	return nil
}

type fixture struct {
	store   *sqlite.Store
	clock   *testutil.Clock
	creator *recordingCreator
	pusher  *countingPusher
	sched   *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	clock := testutil.NewClock(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC))
	creator := &recordingCreator{store: store, now: clock.Now}
	pusher := &countingPusher{}
	dispatcher := delivery.NewDispatcher(pusher, store.Notifications(), store.Preferences(), logger.Nop(),
		delivery.Options{Now: clock.Now})

	sched := New(store.Directory(), store.Preferences(), digest.NewGenerator(store.Notifications()), creator,
		store.Notifications(), dispatcher, logger.Nop(), Options{
			WakeInterval: 5 * time.Minute,
			Tolerance:    4 * time.Minute,
			Workers:      2,
			Now:          clock.Now,
		})
	return &fixture{store: store, clock: clock, creator: creator, pusher: pusher, sched: sched}
}

func (f *fixture) addUser(t *testing.T, orgID, userID, tz, digestTime string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Directory().UpsertOrganization(ctx, orgID, true))
	require.NoError(t, f.store.Directory().UpsertUser(ctx, userID, orgID, true))
	p := domain.DefaultPreference(uuid.NewString(), userID, orgID, f.clock.Now())
	p.Timezone = tz
	p.DailyDigestTime = digestTime
	require.NoError(t, f.store.Preferences().Create(ctx, p))
}

func TestRunCycle_NewYorkDigestFiresOnce(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "org-1", "user-1", "America/New_York", "08:00")
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ctx := context.Background()

	for h := 1; h <= 3; h++ {
		require.NoError(t, f.store.Notifications().Create(ctx,
			testutil.Notification("user-1", "org-1", time.Date(2024, 3, 4, h, 0, 0, 0, ny))))
	}

	report := f.sched.RunCycle(ctx, time.Date(2024, 3, 4, 8, 3, 0, 0, ny))
	assert.Equal(t, 1, report.Fired)
	require.Equal(t, 1, f.creator.count())
	req := f.creator.reqs[0]
	assert.Equal(t, domain.NotificationTypeReminder, req.Type)
	assert.Equal(t, "user-1", req.UserID)
	assert.Equal(t, "You have 3 notifications today.", req.Message)
	assert.Equal(t, DigestSource, req.Source)
	assert.True(t, req.AutoGenerated)

	report = f.sched.RunCycle(ctx, time.Date(2024, 3, 4, 8, 9, 0, 0, ny))
	assert.Zero(t, report.Fired)
	assert.Equal(t, 1, f.creator.count())
}

func TestRunCycle_FiredGuardWithinTolerance(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "org-1", "user-1", "UTC", "08:00")
	ctx := context.Background()

	assert.Equal(t, 1, f.sched.RunCycle(ctx, time.Date(2024, 3, 4, 7, 58, 0, 0, time.UTC)).Fired)
	assert.Zero(t, f.sched.RunCycle(ctx, time.Date(2024, 3, 4, 8, 3, 0, 0, time.UTC)).Fired)
	assert.Equal(t, 1, f.sched.RunCycle(ctx, time.Date(2024, 3, 5, 8, 1, 0, 0, time.UTC)).Fired, "next local day fires again")
	assert.Equal(t, 2, f.creator.count())
}

func TestRunCycle_WakeSequenceNeverMissesOrDuplicates(t *testing.T) {
	for _, offset := range []time.Duration{0, time.Minute, 2*time.Minute + 30*time.Second, 4 * time.Minute, 4*time.Minute + 59*time.Second} {
		f := newFixture(t)
		f.addUser(t, "org-1", "user-1", "UTC", "08:00")
		ctx := context.Background()

		wake := time.Date(2024, 3, 4, 7, 50, 0, 0, time.UTC).Add(offset)
		for i := 0; i < 6; i++ {
			f.sched.RunCycle(ctx, wake)
			wake = wake.Add(5 * time.Minute)
		}
		assert.Equal(t, 1, f.creator.count(), "offset %s", offset)
	}
}

func TestRunCycle_DisabledOrMissingPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, "org-1", "user-1", "UTC", "08:00")
	disabled := false
	_, err := f.store.Preferences().Update(ctx, "user-1", "org-1",
		&domain.PreferenceUpdate{DailyDigestEnabled: &disabled}, time.Now())
	require.NoError(t, err)

	require.NoError(t, f.store.Directory().UpsertUser(ctx, "user-no-prefs", "org-1", true))

	report := f.sched.RunCycle(ctx, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	assert.Zero(t, report.Fired)
	assert.Zero(t, report.Failures)
	assert.Equal(t, 2, report.Users)
}

func TestRunCycle_UnitFailureIsolated(t *testing.T) {
	f := newFixture(t)
	f.sched.prefs = failingPrefs{PreferenceReader: f.store.Preferences(), failFor: "user-broken"}

	f.addUser(t, "org-1", "user-broken", "UTC", "08:00")
	f.addUser(t, "org-1", "user-ok", "UTC", "08:00")
	f.addUser(t, "org-2", "user-other", "UTC", "08:00")

	report := f.sched.RunCycle(context.Background(), time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 2, report.Fired)
	assert.Equal(t, 2, report.Organizations)
}

func TestRunCycle_ReleasesDeferredOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := f.clock.Now()

	deferred := testutil.Notification("user-1", "org-1", base, testutil.WithSchedule(base.Add(30*time.Minute)))
	require.NoError(t, f.store.Notifications().Create(ctx, deferred))

	assert.Zero(t, f.sched.RunCycle(ctx, base).Released)

	f.clock.Set(base.Add(31 * time.Minute))
	assert.Equal(t, 1, f.sched.RunCycle(ctx, f.clock.Now()).Released)
	assert.Equal(t, []string{deferred.ID}, f.pusher.ids)

	f.clock.Advance(5 * time.Minute)
	assert.Zero(t, f.sched.RunCycle(ctx, f.clock.Now()).Released)
	assert.Len(t, f.pusher.ids, 1)
}

func TestDailyDigestDue(t *testing.T) {
	p := domain.DefaultPreference("p", "u", "o", time.Now())
	p.Timezone = "Asia/Tokyo"
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	target, due := DailyDigestDue(p, time.Date(2024, 3, 4, 8, 4, 0, 0, tokyo), 4*time.Minute)
	assert.True(t, due)
	assert.True(t, target.Equal(time.Date(2024, 3, 4, 8, 0, 0, 0, tokyo)))
	assert.Equal(t, "Asia/Tokyo", target.Location().String())

	_, due = DailyDigestDue(p, time.Date(2024, 3, 4, 8, 4, 1, 0, tokyo), 4*time.Minute)
	assert.False(t, due)

	p.DailyDigestEnabled = false
	_, due = DailyDigestDue(p, time.Date(2024, 3, 4, 8, 0, 0, 0, tokyo), 4*time.Minute)
	assert.False(t, due)
}

func TestDailyDigestDue_MidnightMatchesNextDayTarget(t *testing.T) {
	p := domain.DefaultPreference("p", "u", "o", time.Now())
	p.DailyDigestTime = "00:00"

	target, due := DailyDigestDue(p, time.Date(2024, 3, 4, 23, 57, 0, 0, time.UTC), 4*time.Minute)
	assert.True(t, due)
	assert.True(t, target.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))

	target, due = DailyDigestDue(p, time.Date(2024, 3, 5, 0, 3, 0, 0, time.UTC), 4*time.Minute)
	assert.True(t, due)
	assert.True(t, target.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))

	_, due = DailyDigestDue(p, time.Date(2024, 3, 4, 23, 55, 0, 0, time.UTC), 4*time.Minute)
	assert.False(t, due)
}

func TestRunCycle_MidnightDigestFiresOnceAcrossDayBoundary(t *testing.T) {
	for _, offset := range []time.Duration{0, 30 * time.Second, 2 * time.Minute, 4*time.Minute + 30*time.Second} {
		f := newFixture(t)
		f.addUser(t, "org-1", "user-1", "UTC", "00:00")
		ctx := context.Background()

		wake := time.Date(2024, 3, 4, 23, 40, 0, 0, time.UTC).Add(offset)
		for i := 0; i < 8; i++ {
			f.sched.RunCycle(ctx, wake)
			wake = wake.Add(5 * time.Minute)
		}
		assert.Equal(t, 1, f.creator.count(), "offset %s", offset)
	}
}

func TestRunCycle_DigestInSpringForwardGapFiresOnce(t *testing.T) {
	for _, offset := range []time.Duration{0, time.Minute, 3*time.Minute + 30*time.Second} {
		f := newFixture(t)
		f.addUser(t, "org-1", "user-1", "America/New_York", "02:30")
		ctx := context.Background()

		// 2024-03-10 local clocks jump from 02:00 to 03:00
		wake := time.Date(2024, 3, 10, 4, 0, 0, 0, time.UTC).Add(offset)
		for wake.Before(time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)) {
			f.sched.RunCycle(ctx, wake)
			wake = wake.Add(5 * time.Minute)
		}
		assert.Equal(t, 1, f.creator.count(), "offset %s", offset)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sched.Start())
	first := f.sched.cron
	require.NoError(t, f.sched.Start())
	assert.Same(t, first, f.sched.cron)
	assert.Len(t, first.Entries(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.sched.Stop(ctx))
	require.NoError(t, f.sched.Stop(ctx))
}
