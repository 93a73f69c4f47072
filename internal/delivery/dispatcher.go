// Package delivery pushes persisted notifications to the in-app channel.
// Each notification gets one best-effort attempt whose outcome is recorded on
// the notification and never reported to the caller that created it.
package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/metrics"
	"github.com/vhvplatform/go-smart-notification-service/internal/queue"
	"github.com/vhvplatform/go-smart-notification-service/internal/realtime"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// Pusher delivers a payload to the recipient's open connections
type Pusher interface {
	Push(ctx context.Context, userID, orgID string, payload realtime.Payload) error
}

// Tracker records delivery outcomes. A nil result records a skipped attempt.
type Tracker interface {
	RecordDelivery(ctx context.Context, id string, result *domain.DeliveryResult, at time.Time) error
}

// PreferenceReader reads stored preferences without creating defaults
type PreferenceReader interface {
	Get(ctx context.Context, userID, orgID string) (*domain.NotificationPreference, error)
}

// Options configures a Dispatcher
type Options struct {
	Workers int
	Timeout time.Duration
	Now     func() time.Time
}

// Dispatcher runs a pool of workers draining a priority queue of pushes
type Dispatcher struct {
	queue   *queue.PriorityQueue
	pusher  Pusher
	tracker Tracker
	prefs   PreferenceReader
	log     *logger.Logger
	opts    Options

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher. Start launches its workers.
func NewDispatcher(pusher Pusher, tracker Tracker, prefs PreferenceReader, log *logger.Logger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		queue:   queue.NewPriorityQueue(),
		pusher:  pusher,
		tracker: tracker,
		prefs:   prefs,
		log:     log,
		opts:    opts,
	}
}

// Start launches the worker pool. Calling it again is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
		d.log.Info("Delivery dispatcher started", "workers", d.opts.Workers)
	})
}

// Enqueue schedules n for delivery without blocking. Jobs offered after Stop are dropped.
func (d *Dispatcher) Enqueue(n *domain.Notification) {
	if !d.queue.Push(&queue.DeliveryJob{Notification: n, EnqueuedAt: d.opts.Now()}) {
		d.log.Warn("Dispatcher stopped, dropping delivery", "notification_id", n.ID, "tenant_id", n.OrganizationID)
		return
	}
	metrics.DeliveryQueueSize.Set(float64(d.queue.Len()))
}

// Stop drains queued jobs and waits for the workers, or for ctx to end
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(d.queue.Close)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.log.Info("Delivery dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		job, ok := d.queue.Pop()
		if !ok {
			return
		}
		metrics.DeliveryQueueSize.Set(float64(d.queue.Len()))
		metrics.DeliveryQueueWait.Observe(job.WaitedFor(d.opts.Now()).Seconds())
		d.Deliver(context.Background(), job.Notification)
	}
}

// Deliver makes the single in-app attempt for n. Failures are logged and
// recorded in failed_channels; nothing is returned to the caller.
func (d *Dispatcher) Deliver(ctx context.Context, n *domain.Notification) {
	if !n.WantsChannel(domain.ChannelInApp) {
		return
	}
	now := d.opts.Now()
	if n.IsDeferred(now) {
		// released by the scheduler once scheduled_for passes
		return
	}
	log := d.log.With("notification_id", n.ID, "user_id", n.UserID, "tenant_id", n.OrganizationID)

	if !d.enabledFor(ctx, n, log) {
		metrics.Deliveries.WithLabelValues(string(domain.ChannelInApp), "skipped").Inc()
		if err := d.tracker.RecordDelivery(ctx, n.ID, nil, now); err != nil {
			log.Error("Failed to record skipped delivery", "error", err)
		}
		return
	}

	pushCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	start := time.Now()
	err := d.pusher.Push(pushCtx, n.UserID, n.OrganizationID, realtime.NewPayload(n))
	cancel()
	metrics.DeliveryDuration.WithLabelValues(string(domain.ChannelInApp)).Observe(time.Since(start).Seconds())

	result := &domain.DeliveryResult{Channel: domain.ChannelInApp, Delivered: err == nil, At: now}
	if err != nil {
		metrics.Deliveries.WithLabelValues(string(domain.ChannelInApp), "failed").Inc()
		log.Warn("In-app delivery failed", "error", apperrors.NewDeliveryFailure(string(domain.ChannelInApp), err))
	} else {
		metrics.Deliveries.WithLabelValues(string(domain.ChannelInApp), "delivered").Inc()
	}

	if err := d.tracker.RecordDelivery(ctx, n.ID, result, now); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		log.Error("Failed to record delivery outcome", "error", err)
	}
}

// enabledFor reports whether the recipient accepts pushes. Missing or
// unreadable preferences count as enabled.
func (d *Dispatcher) enabledFor(ctx context.Context, n *domain.Notification, log *logger.Logger) bool {
	prefs, err := d.prefs.Get(ctx, n.UserID, n.OrganizationID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Warn("Failed to read preferences for delivery", "error", err)
		}
		return true
	}
	return prefs.Enabled
}
