package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
)

// NotificationStore persists notifications in SQLite
type NotificationStore struct {
	db *sqlx.DB
}

// Notifications returns the notification store backed by s
func (s *Store) Notifications() *NotificationStore {
	return &NotificationStore{db: s.db}
}

type notificationRow struct {
	ID                   string        `db:"id"`
	UserID               string        `db:"user_id"`
	OrganizationID       string        `db:"organization_id"`
	Title                string        `db:"title"`
	Message              string        `db:"message"`
	ShortDescription     string        `db:"short_description"`
	Category             string        `db:"category"`
	Type                 string        `db:"notification_type"`
	Priority             string        `db:"priority"`
	ProjectID            string        `db:"project_id"`
	TaskID               string        `db:"task_id"`
	ContextCardID        string        `db:"context_card_id"`
	DecisionLogID        string        `db:"decision_log_id"`
	HandoffSummaryID     string        `db:"handoff_summary_id"`
	RelevanceScore       float64       `db:"relevance_score"`
	ContextData          string        `db:"context_data"`
	ActionRequired       bool          `db:"action_required"`
	AutoGenerated        bool          `db:"auto_generated"`
	DeliveryChannels     string        `db:"delivery_channels"`
	ScheduledFor         sql.NullInt64 `db:"scheduled_for"`
	TimezoneAware        bool          `db:"timezone_aware"`
	WorkHoursOnly        bool          `db:"work_hours_only"`
	DeliveryAttempts     int           `db:"delivery_attempts"`
	DeliveredChannels    string        `db:"delivered_channels"`
	FailedChannels       string        `db:"failed_channels"`
	LastDeliveryAttempt  sql.NullInt64 `db:"last_delivery_attempt"`
	IsRead               bool          `db:"is_read"`
	ReadAt               sql.NullInt64 `db:"read_at"`
	IsDismissed          bool          `db:"is_dismissed"`
	DismissedAt          sql.NullInt64 `db:"dismissed_at"`
	ActionTaken          bool          `db:"action_taken"`
	ActionTakenAt        sql.NullInt64 `db:"action_taken_at"`
	ThreadID             string        `db:"thread_id"`
	ParentNotificationID string        `db:"parent_notification_id"`
	Source               string        `db:"source"`
	Tags                 string        `db:"tags"`
	ExpiresAt            sql.NullInt64 `db:"expires_at"`
	CreatedAt            int64         `db:"created_at"`
	UpdatedAt            int64         `db:"updated_at"`
}

func toNotificationRow(n *domain.Notification) (*notificationRow, error) {
	contextData, err := encodeJSON(nonNilMap(n.ContextData))
	if err != nil {
		return nil, fmt.Errorf("marshaling context_data: %w", err)
	}
	requested, err := encodeJSON(nonNilChannels(n.DeliveryChannels))
	if err != nil {
		return nil, fmt.Errorf("marshaling delivery_channels: %w", err)
	}
	delivered, err := encodeJSON(nonNilChannels(n.DeliveredChannels))
	if err != nil {
		return nil, fmt.Errorf("marshaling delivered_channels: %w", err)
	}
	failed, err := encodeJSON(nonNilChannels(n.FailedChannels))
	if err != nil {
		return nil, fmt.Errorf("marshaling failed_channels: %w", err)
	}
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeJSON(tags)
	if err != nil {
		return nil, fmt.Errorf("marshaling tags: %w", err)
	}

	return &notificationRow{
		ID:                   n.ID,
		UserID:               n.UserID,
		OrganizationID:       n.OrganizationID,
		Title:                n.Title,
		Message:              n.Message,
		ShortDescription:     n.ShortDescription,
		Category:             n.Category,
		Type:                 string(n.Type),
		Priority:             string(n.Priority),
		ProjectID:            n.ProjectID,
		TaskID:               n.TaskID,
		ContextCardID:        n.ContextCardID,
		DecisionLogID:        n.DecisionLogID,
		HandoffSummaryID:     n.HandoffSummaryID,
		RelevanceScore:       n.RelevanceScore,
		ContextData:          contextData,
		ActionRequired:       n.ActionRequired,
		AutoGenerated:        n.AutoGenerated,
		DeliveryChannels:     requested,
		ScheduledFor:         nullMillis(n.ScheduledFor),
		TimezoneAware:        n.TimezoneAware,
		WorkHoursOnly:        n.WorkHoursOnly,
		DeliveryAttempts:     n.DeliveryAttempts,
		DeliveredChannels:    delivered,
		FailedChannels:       failed,
		LastDeliveryAttempt:  nullMillis(n.LastDeliveryAttempt),
		IsRead:               n.IsRead,
		ReadAt:               nullMillis(n.ReadAt),
		IsDismissed:          n.IsDismissed,
		DismissedAt:          nullMillis(n.DismissedAt),
		ActionTaken:          n.ActionTaken,
		ActionTakenAt:        nullMillis(n.ActionTakenAt),
		ThreadID:             n.ThreadID,
		ParentNotificationID: n.ParentNotificationID,
		Source:               n.Source,
		Tags:                 tagsJSON,
		ExpiresAt:            nullMillis(n.ExpiresAt),
		CreatedAt:            toMillis(n.CreatedAt),
		UpdatedAt:            toMillis(n.UpdatedAt),
	}, nil
}

func (r *notificationRow) toDomain() (*domain.Notification, error) {
	n := &domain.Notification{
		ID:                   r.ID,
		UserID:               r.UserID,
		OrganizationID:       r.OrganizationID,
		Title:                r.Title,
		Message:              r.Message,
		ShortDescription:     r.ShortDescription,
		Category:             r.Category,
		Type:                 domain.NotificationType(r.Type),
		Priority:             domain.NotificationPriority(r.Priority),
		ProjectID:            r.ProjectID,
		TaskID:               r.TaskID,
		ContextCardID:        r.ContextCardID,
		DecisionLogID:        r.DecisionLogID,
		HandoffSummaryID:     r.HandoffSummaryID,
		RelevanceScore:       r.RelevanceScore,
		ActionRequired:       r.ActionRequired,
		AutoGenerated:        r.AutoGenerated,
		ScheduledFor:         fromNullMillis(r.ScheduledFor),
		TimezoneAware:        r.TimezoneAware,
		WorkHoursOnly:        r.WorkHoursOnly,
		DeliveryAttempts:     r.DeliveryAttempts,
		LastDeliveryAttempt:  fromNullMillis(r.LastDeliveryAttempt),
		IsRead:               r.IsRead,
		ReadAt:               fromNullMillis(r.ReadAt),
		IsDismissed:          r.IsDismissed,
		DismissedAt:          fromNullMillis(r.DismissedAt),
		ActionTaken:          r.ActionTaken,
		ActionTakenAt:        fromNullMillis(r.ActionTakenAt),
		ThreadID:             r.ThreadID,
		ParentNotificationID: r.ParentNotificationID,
		Source:               r.Source,
		ExpiresAt:            fromNullMillis(r.ExpiresAt),
		CreatedAt:            fromMillis(r.CreatedAt),
		UpdatedAt:            fromMillis(r.UpdatedAt),
		ContextData:          map[string]any{},
		DeliveryChannels:     []domain.Channel{},
		DeliveredChannels:    []domain.Channel{},
		FailedChannels:       []domain.Channel{},
		Tags:                 []string{},
	}

	decoders := []struct {
		field string
		raw   string
		dst   any
	}{
		{"context_data", r.ContextData, &n.ContextData},
		{"delivery_channels", r.DeliveryChannels, &n.DeliveryChannels},
		{"delivered_channels", r.DeliveredChannels, &n.DeliveredChannels},
		{"failed_channels", r.FailedChannels, &n.FailedChannels},
		{"tags", r.Tags, &n.Tags},
	}
	for _, d := range decoders {
		if err := decodeJSON(d.raw, d.dst); err != nil {
			return nil, fmt.Errorf("unmarshaling %s for notification %s: %w", d.field, r.ID, err)
		}
	}
	return n, nil
}

const insertNotification = `
	INSERT INTO notifications (
		id, user_id, organization_id, title, message, short_description, category,
		notification_type, priority, project_id, task_id, context_card_id, decision_log_id,
		handoff_summary_id, relevance_score, context_data, action_required, auto_generated,
		delivery_channels, scheduled_for, timezone_aware, work_hours_only, delivery_attempts,
		delivered_channels, failed_channels, last_delivery_attempt, is_read, read_at,
		is_dismissed, dismissed_at, action_taken, action_taken_at, thread_id,
		parent_notification_id, source, tags, expires_at, created_at, updated_at
	) VALUES (
		:id, :user_id, :organization_id, :title, :message, :short_description, :category,
		:notification_type, :priority, :project_id, :task_id, :context_card_id, :decision_log_id,
		:handoff_summary_id, :relevance_score, :context_data, :action_required, :auto_generated,
		:delivery_channels, :scheduled_for, :timezone_aware, :work_hours_only, :delivery_attempts,
		:delivered_channels, :failed_channels, :last_delivery_attempt, :is_read, :read_at,
		:is_dismissed, :dismissed_at, :action_taken, :action_taken_at, :thread_id,
		:parent_notification_id, :source, :tags, :expires_at, :created_at, :updated_at
	)`

// Create inserts a notification. ID and timestamps must already be assigned.
func (s *NotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	row, err := toNotificationRow(n)
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, insertNotification, row); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("Notification already exists", err)
		}
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// FindByID returns the notification if it belongs to (userID, orgID)
func (s *NotificationStore) FindByID(ctx context.Context, id, userID, orgID string) (*domain.Notification, error) {
	return findNotification(ctx, s.db, id, userID, orgID)
}

func findNotification(ctx context.Context, q sqlx.QueryerContext, id, userID, orgID string) (*domain.Notification, error) {
	var row notificationRow
	err := sqlx.GetContext(ctx, q, &row,
		"SELECT * FROM notifications WHERE id = ? AND user_id = ? AND organization_id = ?",
		id, userID, orgID)
	if isNoRows(err) {
		return nil, apperrors.NewNotFoundError("Notification not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return row.toDomain()
}

func buildNotificationWhere(f domain.NotificationFilter) (string, []any) {
	conditions := []string{"user_id = ?", "organization_id = ?"}
	args := []any{f.UserID, f.OrganizationID}

	if f.UnreadOnly {
		conditions = append(conditions, "is_read = 0")
	}
	if f.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.Type != "" {
		conditions = append(conditions, "notification_type = ?")
		args = append(args, string(f.Type))
	}
	if f.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.CreatedFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, toMillis(*f.CreatedFrom))
	}
	if f.CreatedTo != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, toMillis(*f.CreatedTo))
	}
	if f.Visible != nil {
		at := toMillis(*f.Visible)
		conditions = append(conditions,
			"(expires_at IS NULL OR expires_at > ?)",
			"(scheduled_for IS NULL OR scheduled_for <= ?)")
		args = append(args, at, at)
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Query returns matching notifications newest first, plus the total match count
func (s *NotificationStore) Query(ctx context.Context, f domain.NotificationFilter, p domain.Pagination) ([]*domain.Notification, int, error) {
	where, args := buildNotificationWhere(f)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notifications"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	query := "SELECT * FROM notifications" + where + " ORDER BY created_at DESC, id"
	if p.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", p.Limit, p.Offset)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("querying notifications: %w", err)
	}

	out := make([]*domain.Notification, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, nil
}

// UpdateStatus applies a read/dismiss/action patch to a scoped notification
func (s *NotificationStore) UpdateStatus(ctx context.Context, id, userID, orgID string, patch domain.StatusPatch, now time.Time) (*domain.Notification, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := findNotification(ctx, tx, id, userID, orgID)
	if err != nil {
		return nil, err
	}
	patch.Apply(n, now)

	_, err = tx.ExecContext(ctx, `
		UPDATE notifications SET
			is_read = ?, read_at = ?, is_dismissed = ?, dismissed_at = ?,
			action_taken = ?, action_taken_at = ?, updated_at = ?
		WHERE id = ?`,
		n.IsRead, nullMillis(n.ReadAt), n.IsDismissed, nullMillis(n.DismissedAt),
		n.ActionTaken, nullMillis(n.ActionTakenAt), toMillis(n.UpdatedAt),
		n.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating notification %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing notification %s: %w", id, err)
	}
	return n, nil
}

// MarkRead marks the scoped subset of ids read and returns how many changed
func (s *NotificationStore) MarkRead(ctx context.Context, ids []string, userID, orgID string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{toMillis(now), toMillis(now), userID, orgID}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?, updated_at = ?
		WHERE user_id = ? AND organization_id = ? AND is_read = 0
		AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return res.RowsAffected()
}

// MarkAllRead marks every unread notification of the owner read
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID, orgID string, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?, updated_at = ?
		WHERE user_id = ? AND organization_id = ? AND is_read = 0`,
		toMillis(now), toMillis(now), userID, orgID)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return res.RowsAffected()
}

// RecordDelivery increments the attempt count and records the channel outcome.
// A nil result records an attempt that was skipped without touching a channel.
func (s *NotificationStore) RecordDelivery(ctx context.Context, id string, result *domain.DeliveryResult, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current struct {
		Delivered string `db:"delivered_channels"`
		Failed    string `db:"failed_channels"`
	}
	err = tx.GetContext(ctx, &current,
		"SELECT delivered_channels, failed_channels FROM notifications WHERE id = ?", id)
	if isNoRows(err) {
		return apperrors.NewNotFoundError("Notification not found", nil)
	}
	if err != nil {
		return fmt.Errorf("loading delivery state for %s: %w", id, err)
	}

	var delivered, failed []domain.Channel
	if err := decodeJSON(current.Delivered, &delivered); err != nil {
		return fmt.Errorf("unmarshaling delivered_channels: %w", err)
	}
	if err := decodeJSON(current.Failed, &failed); err != nil {
		return fmt.Errorf("unmarshaling failed_channels: %w", err)
	}
	if result != nil {
		if result.Delivered {
			delivered = addChannel(delivered, result.Channel)
		} else {
			failed = addChannel(failed, result.Channel)
		}
	}

	deliveredJSON, err := encodeJSON(nonNilChannels(delivered))
	if err != nil {
		return err
	}
	failedJSON, err := encodeJSON(nonNilChannels(failed))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE notifications SET
			delivery_attempts = delivery_attempts + 1,
			delivered_channels = ?, failed_channels = ?,
			last_delivery_attempt = ?, updated_at = ?
		WHERE id = ?`,
		deliveredJSON, failedJSON, toMillis(at), toMillis(at), id)
	if err != nil {
		return fmt.Errorf("recording delivery for %s: %w", id, err)
	}
	return tx.Commit()
}

// Delete removes a scoped notification
func (s *NotificationStore) Delete(ctx context.Context, id, userID, orgID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ? AND user_id = ? AND organization_id = ?",
		id, userID, orgID)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("Notification not found", nil)
	}
	return nil
}

// FindDueUndelivered returns deferred notifications whose scheduled time has
// passed, that request in-app delivery and were never attempted
func (s *NotificationStore) FindDueUndelivered(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error) {
	at := toMillis(now)
	query := `
		SELECT * FROM notifications
		WHERE scheduled_for IS NOT NULL AND scheduled_for <= ?
		AND delivery_attempts = 0
		AND (expires_at IS NULL OR expires_at > ?)
		AND delivery_channels LIKE ?
		ORDER BY scheduled_for`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, at, at, `%"`+string(domain.ChannelInApp)+`"%`); err != nil {
		return nil, fmt.Errorf("querying due notifications: %w", err)
	}
	out := make([]*domain.Notification, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func addChannel(set []domain.Channel, c domain.Channel) []domain.Channel {
	for _, existing := range set {
		if existing == c {
			return set
		}
	}
	return append(set, c)
}

func nonNilChannels(c []domain.Channel) []domain.Channel {
	if c == nil {
		return []domain.Channel{}
	}
	return c
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
