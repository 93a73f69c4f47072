package service

import (
	"context"
	"time"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
)

// NotificationStore persists notifications. Every lookup is scoped by (user, organization).
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	FindByID(ctx context.Context, id, userID, orgID string) (*domain.Notification, error)
	Query(ctx context.Context, f domain.NotificationFilter, p domain.Pagination) ([]*domain.Notification, int, error)
	UpdateStatus(ctx context.Context, id, userID, orgID string, patch domain.StatusPatch, now time.Time) (*domain.Notification, error)
	MarkRead(ctx context.Context, ids []string, userID, orgID string, now time.Time) (int64, error)
	MarkAllRead(ctx context.Context, userID, orgID string, now time.Time) (int64, error)
	Delete(ctx context.Context, id, userID, orgID string) error
}

// PreferenceStore persists one preference record per (user, organization)
type PreferenceStore interface {
	Get(ctx context.Context, userID, orgID string) (*domain.NotificationPreference, error)
	Create(ctx context.Context, p *domain.NotificationPreference) error
	// Update writes only the supplied fields and returns the stored record
	Update(ctx context.Context, userID, orgID string, u *domain.PreferenceUpdate, now time.Time) (*domain.NotificationPreference, error)
}

// FocusBlockStore persists focus blocks
type FocusBlockStore interface {
	Create(ctx context.Context, b *domain.FocusBlock) error
	FindActive(ctx context.Context, userID, orgID string, now time.Time) ([]*domain.FocusBlock, error)
	List(ctx context.Context, userID, orgID string, includePast bool, now time.Time) ([]*domain.FocusBlock, error)
	Delete(ctx context.Context, id, userID, orgID string) error
}

// AnalyticsStore persists per-notification engagement
type AnalyticsStore interface {
	FindByNotification(ctx context.Context, notificationID, userID, orgID string) (*domain.NotificationAnalytics, error)
	Save(ctx context.Context, a *domain.NotificationAnalytics) error
	ListSince(ctx context.Context, userID, orgID string, since time.Time) ([]*domain.NotificationAnalytics, error)
}

// Dispatcher accepts persisted notifications for asynchronous delivery
type Dispatcher interface {
	Enqueue(n *domain.Notification)
}
