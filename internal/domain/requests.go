package domain

import "time"

// CreateNotificationRequest represents a request to create a notification
type CreateNotificationRequest struct {
	UserID           string               `json:"user_id" binding:"required"`
	Title            string               `json:"title" binding:"required"`
	Message          string               `json:"message" binding:"required"`
	ShortDescription string               `json:"short_description,omitempty"`
	Category         string               `json:"category,omitempty"`
	Type             NotificationType     `json:"notification_type" binding:"required"`
	Priority         NotificationPriority `json:"priority,omitempty"`

	ProjectID        string `json:"project_id,omitempty"`
	TaskID           string `json:"task_id,omitempty"`
	ContextCardID    string `json:"context_card_id,omitempty"`
	DecisionLogID    string `json:"decision_log_id,omitempty"`
	HandoffSummaryID string `json:"handoff_summary_id,omitempty"`

	RelevanceScore *float64       `json:"relevance_score,omitempty"`
	ContextData    map[string]any `json:"context_data,omitempty"`
	ActionRequired bool           `json:"action_required"`
	AutoGenerated  bool           `json:"auto_generated"`

	DeliveryChannels []Channel  `json:"delivery_channels,omitempty"`
	ScheduledFor     *time.Time `json:"scheduled_for,omitempty"`
	TimezoneAware    *bool      `json:"timezone_aware,omitempty"`
	WorkHoursOnly    bool       `json:"work_hours_only"`

	ThreadID             string `json:"thread_id,omitempty"`
	ParentNotificationID string `json:"parent_notification_id,omitempty"`

	Source    string     `json:"source,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ListNotificationsRequest holds caller-supplied listing parameters
type ListNotificationsRequest struct {
	Page       int                  `form:"page"`
	PageSize   int                  `form:"size"`
	UnreadOnly bool                 `form:"unread_only"`
	Priority   NotificationPriority `form:"priority"`
	Type       NotificationType     `form:"notification_type"`
	ProjectID  string               `form:"project_id"`
	Grouped    bool                 `form:"grouped,default=true"`
}

// Listing page size bounds
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps pagination to sane bounds
func (r *ListNotificationsRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
}

// NotificationFilter is the store-level query predicate. Owner scope is always applied.
type NotificationFilter struct {
	UserID         string
	OrganizationID string
	UnreadOnly     bool
	Priority       NotificationPriority
	Type           NotificationType
	ProjectID      string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	// Visible excludes expired and not-yet-due records as of this instant
	Visible *time.Time
}

// Pagination bounds a store query. A zero Limit returns every match.
type Pagination struct {
	Offset int
	Limit  int
}

// NotificationGroup is one bucket of a grouped listing
type NotificationGroup struct {
	Key           string          `json:"key"`
	Title         string          `json:"title"`
	Notifications []*Notification `json:"notifications"`
}

// NotificationListResponse is the listing result
type NotificationListResponse struct {
	Notifications   []*Notification     `json:"notifications"`
	Total           int                 `json:"total"`
	UnreadCount     int                 `json:"unread_count"`
	UrgentCount     int                 `json:"urgent_count"`
	Page            int                 `json:"page"`
	PageSize        int                 `json:"size"`
	HasMore         bool                `json:"has_more"`
	FocusModeActive bool                `json:"focus_mode_active"`
	Groups          []NotificationGroup `json:"groups,omitempty"`
}

// MarkReadRequest marks a set of notifications read
type MarkReadRequest struct {
	NotificationIDs []string `json:"notification_ids" binding:"required,min=1"`
}

// CreateFocusBlockRequest represents a request to create a focus block
type CreateFocusBlockRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
	Timezone  string    `json:"timezone,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// EnableFocusModeRequest optionally bounds focus mode to a duration
type EnableFocusModeRequest struct {
	DurationMinutes *int `json:"duration_minutes,omitempty"`
}

// Focus mode duration bounds in minutes
const (
	MinFocusMinutes = 15
	MaxFocusMinutes = 480
)
