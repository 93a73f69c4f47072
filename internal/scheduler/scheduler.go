package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vhvplatform/go-smart-notification-service/internal/digest"
	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/metrics"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// DigestSource identifies the reminder notifications created by the scheduler
const DigestSource = "scheduler_daily_digest"

// Directory lists active organizations and their active users
type Directory interface {
	ActiveOrganizations(ctx context.Context) ([]string, error)
	ActiveUsers(ctx context.Context, orgID string) ([]string, error)
}

// PreferenceReader reads stored preferences without creating defaults
type PreferenceReader interface {
	Get(ctx context.Context, userID, orgID string) (*domain.NotificationPreference, error)
}

// DigestGenerator aggregates a period's notifications
type DigestGenerator interface {
	Generate(ctx context.Context, userID, orgID string, digestType domain.DigestType, start, end time.Time) (*domain.Digest, error)
}

// NotificationCreator persists a notification through the normal creation path
type NotificationCreator interface {
	Create(ctx context.Context, orgID string, req *domain.CreateNotificationRequest) (*domain.Notification, error)
}

// DueSource finds deferred notifications whose scheduled time has passed
type DueSource interface {
	FindDueUndelivered(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error)
}

// Deliverer makes the single delivery attempt for a notification
type Deliverer interface {
	Deliver(ctx context.Context, n *domain.Notification)
}

// Options configures the scheduling loop
type Options struct {
	WakeInterval time.Duration
	Tolerance    time.Duration
	Workers      int
	ReleaseBatch int
	Now          func() time.Time
}

// CycleReport summarizes one scheduling cycle
type CycleReport struct {
	Organizations int
	Users         int
	Fired         int
	Released      int
	Failures      int
}

type firedKey struct {
	orgID  string
	userID string
	day    string
}

// Scheduler fires daily digests at each user's local digest time and releases
// notifications deferred by focus blocks
type Scheduler struct {
	directory Directory
	prefs     PreferenceReader
	digests   DigestGenerator
	creator   NotificationCreator
	due       DueSource
	deliverer Deliverer
	log       *logger.Logger
	opts      Options

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	started bool

	firedMu sync.Mutex
	fired   map[firedKey]time.Time
}

// New creates a scheduler. Start begins the wake timer.
func New(directory Directory, prefs PreferenceReader, digests DigestGenerator, creator NotificationCreator,
	due DueSource, deliverer Deliverer, log *logger.Logger, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ReleaseBatch <= 0 {
		opts.ReleaseBatch = 500
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		directory: directory,
		prefs:     prefs,
		digests:   digests,
		creator:   creator,
		due:       due,
		deliverer: deliverer,
		log:       log,
		opts:      opts,
		fired:     make(map[firedKey]time.Time),
	}
}

// Start registers the wake timer. A second call is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.opts.WakeInterval <= 0 || s.opts.Tolerance <= 0 {
		return fmt.Errorf("scheduler needs a positive wake interval and tolerance")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cronLog := s.log.CronLogger()
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	c.Schedule(cron.Every(s.opts.WakeInterval), cron.FuncJob(func() {
		s.RunCycle(ctx, s.opts.Now())
	}))
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.started = true
	s.log.Info("Digest scheduler started", "wake_interval", s.opts.WakeInterval, "tolerance", s.opts.Tolerance)
	return nil
}

// Stop halts the wake timer and waits for a running cycle to finish. If ctx
// ends first the running cycle is cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.started = false
	s.mu.Unlock()

	s.log.Info("Stopping digest scheduler")
	defer cancel()
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunCycle performs one scheduling pass at now. Failures of one organization
// or user are logged and do not stop the others.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) CycleReport {
	start := time.Now()
	defer func() { metrics.SchedulerCycleDuration.Observe(time.Since(start).Seconds()) }()

	s.pruneFired(now)

	var (
		mu     sync.Mutex
		report CycleReport
	)
	orgs, err := s.directory.ActiveOrganizations(ctx)
	if err != nil {
		s.log.Error("Failed to list organizations", "error", err)
		report.Failures++
	}
	report.Organizations = len(orgs)

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for _, orgID := range orgs {
		orgID := orgID
		g.Go(func() error {
			r := s.runOrganization(ctx, orgID, now)
			mu.Lock()
			report.Users += r.Users
			report.Fired += r.Fired
			report.Failures += r.Failures
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	released, err := s.releaseDue(ctx, now)
	if err != nil {
		s.log.Error("Failed to release deferred notifications", "error", err)
		report.Failures++
	}
	report.Released = released

	s.log.Debug("Scheduling cycle finished",
		"organizations", report.Organizations, "users", report.Users,
		"fired", report.Fired, "released", report.Released, "failures", report.Failures)
	return report
}

func (s *Scheduler) runOrganization(ctx context.Context, orgID string, now time.Time) (report CycleReport) {
	defer func() {
		if r := recover(); r != nil {
			s.unitFailed("organization", orgID, "", fmt.Errorf("panic: %v", r))
			report.Failures++
		}
	}()

	users, err := s.directory.ActiveUsers(ctx, orgID)
	if err != nil {
		s.unitFailed("organization", orgID, "", err)
		report.Failures++
		return report
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			return report
		}
		fired, err := s.runUser(ctx, orgID, userID, now)
		if err != nil {
			s.unitFailed("user", orgID, userID, err)
			report.Failures++
			continue
		}
		report.Users++
		if fired {
			report.Fired++
		}
	}
	return report
}

func (s *Scheduler) runUser(ctx context.Context, orgID, userID string, now time.Time) (fired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	prefs, err := s.prefs.Get(ctx, userID, orgID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading preferences: %w", err)
	}

	target, due := DailyDigestDue(prefs, now, s.opts.Tolerance)
	if !due {
		return false, nil
	}
	key := firedKey{orgID: orgID, userID: userID, day: target.Format("2006-01-02")}
	if s.alreadyFired(key) {
		return false, nil
	}

	start, end := digest.DailyPeriod(target, target.Location())
	d, err := s.digests.Generate(ctx, userID, orgID, domain.DigestDaily, start, end)
	if err != nil {
		return false, fmt.Errorf("generating daily digest: %w", err)
	}

	summary := digest.Summarize(d)
	_, err = s.creator.Create(ctx, orgID, &domain.CreateNotificationRequest{
		UserID:        userID,
		Title:         summary.Title,
		Message:       summary.Message,
		Type:          domain.NotificationTypeReminder,
		Priority:      domain.PriorityNormal,
		ContextData:   summary.ContextData,
		AutoGenerated: true,
		Source:        DigestSource,
	})
	if err != nil {
		return false, fmt.Errorf("creating digest reminder: %w", err)
	}

	s.markFired(key, now)
	metrics.DigestsFired.WithLabelValues(string(domain.DigestDaily)).Inc()
	s.log.Info("Daily digest fired", "tenant_id", orgID, "user_id", userID, "total", d.TotalNotifications)
	return true, nil
}

// DailyDigestDue reports whether now lies within tolerance of the user's
// daily digest time and returns the matched target in the user's zone. The
// targets of the previous, current and next local day are all considered so
// a window straddling midnight is matched from either side.
func DailyDigestDue(p *domain.NotificationPreference, now time.Time, tolerance time.Duration) (time.Time, bool) {
	local := now.In(p.Location())
	if !p.DailyDigestEnabled || p.DailyDigestTime == "" {
		return local, false
	}
	clock, err := domain.ParseClock(p.DailyDigestTime)
	if err != nil {
		return local, false
	}

	var (
		target  time.Time
		nearest time.Duration = -1
	)
	for _, days := range []int{-1, 0, 1} {
		candidate := clock.On(local.AddDate(0, 0, days))
		diff := local.Sub(candidate)
		if diff < 0 {
			diff = -diff
		}
		if nearest < 0 || diff < nearest {
			target, nearest = candidate, diff
		}
	}
	return target, nearest <= tolerance
}

func (s *Scheduler) releaseDue(ctx context.Context, now time.Time) (int, error) {
	items, err := s.due.FindDueUndelivered(ctx, now, s.opts.ReleaseBatch)
	if err != nil {
		return 0, err
	}
	for _, n := range items {
		if ctx.Err() != nil {
			break
		}
		s.deliverer.Deliver(ctx, n)
	}
	return len(items), nil
}

func (s *Scheduler) unitFailed(unit, orgID, userID string, err error) {
	metrics.SchedulingUnitFailures.WithLabelValues(unit).Inc()
	s.log.Error("Scheduling unit failed",
		"tenant_id", orgID, "user_id", userID,
		"error", apperrors.NewSchedulingUnitFailure(unit, err))
}

func (s *Scheduler) alreadyFired(key firedKey) bool {
	s.firedMu.Lock()
	defer s.firedMu.Unlock()
	_, ok := s.fired[key]
	return ok
}

func (s *Scheduler) markFired(key firedKey, at time.Time) {
	s.firedMu.Lock()
	defer s.firedMu.Unlock()
	s.fired[key] = at
}

// pruneFired forgets firings older than two days; no later wake can match them
func (s *Scheduler) pruneFired(now time.Time) {
	s.firedMu.Lock()
	defer s.firedMu.Unlock()
	for key, at := range s.fired {
		if now.Sub(at) > 48*time.Hour {
			delete(s.fired, key)
		}
	}
}
