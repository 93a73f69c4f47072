// Package testutil holds fixtures shared by the package test suites.
package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/repository/sqlite"
)

// NewStore creates an in-memory SQLite store with all migrations applied.
// It is closed automatically when the test completes.
func NewStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

// Clock is a settable clock for injecting into components under test
type Clock struct {
	now time.Time
}

// NewClock returns a clock frozen at t
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current frozen time
func (c *Clock) Now() time.Time {
	return c.now
}

// Set moves the clock to t
func (c *Clock) Set(t time.Time) {
	c.now = t
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// Notification builds a persisted-shape notification for (userID, orgID) with
// sensible defaults, then applies opts
func Notification(userID, orgID string, createdAt time.Time, opts ...func(*domain.Notification)) *domain.Notification {
	n := &domain.Notification{
		ID:                uuid.NewString(),
		UserID:            userID,
		OrganizationID:    orgID,
		Title:             "Task assigned",
		Message:           "You have a new task",
		Type:              domain.NotificationTypeTaskAssigned,
		Priority:          domain.PriorityNormal,
		RelevanceScore:    domain.DefaultRelevanceScore,
		ContextData:       map[string]any{},
		DeliveryChannels:  []domain.Channel{domain.ChannelInApp},
		DeliveredChannels: []domain.Channel{},
		FailedChannels:    []domain.Channel{},
		TimezoneAware:     true,
		Tags:              []string{},
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// WithPriority sets the notification priority
func WithPriority(p domain.NotificationPriority) func(*domain.Notification) {
	return func(n *domain.Notification) { n.Priority = p }
}

// WithRelevance sets the relevance score
func WithRelevance(score float64) func(*domain.Notification) {
	return func(n *domain.Notification) { n.RelevanceScore = score }
}

// WithType sets the notification type
func WithType(t domain.NotificationType) func(*domain.Notification) {
	return func(n *domain.Notification) { n.Type = t }
}

// WithProject links the notification to a project
func WithProject(id string) func(*domain.Notification) {
	return func(n *domain.Notification) { n.ProjectID = id }
}

// WithTask links the notification to a task
func WithTask(id string) func(*domain.Notification) {
	return func(n *domain.Notification) { n.TaskID = id }
}

// WithExpiry sets expires_at
func WithExpiry(t time.Time) func(*domain.Notification) {
	return func(n *domain.Notification) { n.ExpiresAt = &t }
}

// WithSchedule sets scheduled_for
func WithSchedule(t time.Time) func(*domain.Notification) {
	return func(n *domain.Notification) { n.ScheduledFor = &t }
}

// Read marks the notification read
func Read(n *domain.Notification) {
	n.IsRead = true
}

// ActionRequired flags the notification as needing action
func ActionRequired(n *domain.Notification) {
	n.ActionRequired = true
}
