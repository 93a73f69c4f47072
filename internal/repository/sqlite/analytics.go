package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
)

// AnalyticsStore persists per-notification engagement records in SQLite
type AnalyticsStore struct {
	db *sqlx.DB
}

// Analytics returns the analytics store backed by s
func (s *Store) Analytics() *AnalyticsStore {
	return &AnalyticsStore{db: s.db}
}

type analyticsRow struct {
	ID                string          `db:"id"`
	NotificationID    string          `db:"notification_id"`
	UserID            string          `db:"user_id"`
	OrganizationID    string          `db:"organization_id"`
	OpenedAt          sql.NullInt64   `db:"opened_at"`
	TimeToOpen        sql.NullInt64   `db:"time_to_open"`
	RelevanceFeedback sql.NullFloat64 `db:"relevance_feedback"`
	UserRating        sql.NullInt64   `db:"user_rating"`
	MarkedAsSpam      bool            `db:"marked_as_spam"`
	ChannelUsed       string          `db:"channel_used"`
	CreatedAt         int64           `db:"created_at"`
	UpdatedAt         int64           `db:"updated_at"`
}

func toAnalyticsRow(a *domain.NotificationAnalytics) *analyticsRow {
	row := &analyticsRow{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		UserID:         a.UserID,
		OrganizationID: a.OrganizationID,
		OpenedAt:       nullMillis(a.OpenedAt),
		MarkedAsSpam:   a.MarkedAsSpam,
		ChannelUsed:    string(a.ChannelUsed),
		CreatedAt:      toMillis(a.CreatedAt),
		UpdatedAt:      toMillis(a.UpdatedAt),
	}
	if a.TimeToOpenSeconds != nil {
		row.TimeToOpen = sql.NullInt64{Int64: int64(*a.TimeToOpenSeconds), Valid: true}
	}
	if a.RelevanceFeedback != nil {
		row.RelevanceFeedback = sql.NullFloat64{Float64: *a.RelevanceFeedback, Valid: true}
	}
	if a.UserRating != nil {
		row.UserRating = sql.NullInt64{Int64: int64(*a.UserRating), Valid: true}
	}
	return row
}

func (r *analyticsRow) toDomain() *domain.NotificationAnalytics {
	a := &domain.NotificationAnalytics{
		ID:             r.ID,
		NotificationID: r.NotificationID,
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		OpenedAt:       fromNullMillis(r.OpenedAt),
		MarkedAsSpam:   r.MarkedAsSpam,
		ChannelUsed:    domain.Channel(r.ChannelUsed),
		CreatedAt:      fromMillis(r.CreatedAt),
		UpdatedAt:      fromMillis(r.UpdatedAt),
	}
	if r.TimeToOpen.Valid {
		v := int(r.TimeToOpen.Int64)
		a.TimeToOpenSeconds = &v
	}
	if r.RelevanceFeedback.Valid {
		v := r.RelevanceFeedback.Float64
		a.RelevanceFeedback = &v
	}
	if r.UserRating.Valid {
		v := int(r.UserRating.Int64)
		a.UserRating = &v
	}
	return a
}

// FindByNotification returns the record for one notification of (userID, orgID)
func (s *AnalyticsStore) FindByNotification(ctx context.Context, notificationID, userID, orgID string) (*domain.NotificationAnalytics, error) {
	var row analyticsRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM notification_analytics
		WHERE notification_id = ? AND user_id = ? AND organization_id = ?`,
		notificationID, userID, orgID)
	if isNoRows(err) {
		return nil, apperrors.NewNotFoundError("Analytics not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("getting analytics for %s: %w", notificationID, err)
	}
	return row.toDomain(), nil
}

// Save inserts or replaces the record for a (notification, user) pair
func (s *AnalyticsStore) Save(ctx context.Context, a *domain.NotificationAnalytics) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notification_analytics (
			id, notification_id, user_id, organization_id, opened_at, time_to_open,
			relevance_feedback, user_rating, marked_as_spam, channel_used, created_at, updated_at
		) VALUES (
			:id, :notification_id, :user_id, :organization_id, :opened_at, :time_to_open,
			:relevance_feedback, :user_rating, :marked_as_spam, :channel_used, :created_at, :updated_at
		)
		ON CONFLICT(notification_id, user_id) DO UPDATE SET
			opened_at = excluded.opened_at,
			time_to_open = excluded.time_to_open,
			relevance_feedback = excluded.relevance_feedback,
			user_rating = excluded.user_rating,
			marked_as_spam = excluded.marked_as_spam,
			channel_used = excluded.channel_used,
			updated_at = excluded.updated_at`,
		toAnalyticsRow(a))
	if err != nil {
		return fmt.Errorf("saving analytics for %s: %w", a.NotificationID, err)
	}
	return nil
}

// ListSince returns the owner's records created at or after since
func (s *AnalyticsStore) ListSince(ctx context.Context, userID, orgID string, since time.Time) ([]*domain.NotificationAnalytics, error) {
	var rows []analyticsRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM notification_analytics
		WHERE user_id = ? AND organization_id = ? AND created_at >= ?
		ORDER BY created_at`, userID, orgID, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("listing analytics: %w", err)
	}
	out := make([]*domain.NotificationAnalytics, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
