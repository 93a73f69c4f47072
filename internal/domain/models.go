package domain

import (
	"strings"
	"time"
)

// NotificationType classifies what a notification is about
type NotificationType string

const (
	NotificationTypeTaskAssigned           NotificationType = "task_assigned"
	NotificationTypeTaskStatusChanged      NotificationType = "task_status_changed"
	NotificationTypeTaskDueSoon            NotificationType = "task_due_soon"
	NotificationTypeTaskOverdue            NotificationType = "task_overdue"
	NotificationTypeTaskComment            NotificationType = "task_comment"
	NotificationTypeTaskCompleted          NotificationType = "task_completed"
	NotificationTypeProjectStatusChanged   NotificationType = "project_status_changed"
	NotificationTypeProjectMilestone       NotificationType = "project_milestone"
	NotificationTypeProjectDeadline        NotificationType = "project_deadline"
	NotificationTypeProjectMemberAdded     NotificationType = "project_member_added"
	NotificationTypeProjectComment         NotificationType = "project_comment"
	NotificationTypeHandoffReceived        NotificationType = "handoff_received"
	NotificationTypeHandoffReviewed        NotificationType = "handoff_reviewed"
	NotificationTypeHandoffReminder        NotificationType = "handoff_reminder"
	NotificationTypeDecisionLogged         NotificationType = "decision_logged"
	NotificationTypeDecisionReviewDue      NotificationType = "decision_review_due"
	NotificationTypeDecisionStatusChanged  NotificationType = "decision_status_changed"
	NotificationTypeContextCardLinked      NotificationType = "context_card_linked"
	NotificationTypeKnowledgeArticleShared NotificationType = "knowledge_article_shared"
	NotificationTypeMention                NotificationType = "mention"
	NotificationTypeSystemAlert            NotificationType = "system_alert"
	NotificationTypeReminder               NotificationType = "reminder"
	NotificationTypeUrgentActionRequired   NotificationType = "urgent_action_required"
)

var notificationTypes = map[NotificationType]struct{}{
	NotificationTypeTaskAssigned:           {},
	NotificationTypeTaskStatusChanged:      {},
	NotificationTypeTaskDueSoon:            {},
	NotificationTypeTaskOverdue:            {},
	NotificationTypeTaskComment:            {},
	NotificationTypeTaskCompleted:          {},
	NotificationTypeProjectStatusChanged:   {},
	NotificationTypeProjectMilestone:       {},
	NotificationTypeProjectDeadline:        {},
	NotificationTypeProjectMemberAdded:     {},
	NotificationTypeProjectComment:         {},
	NotificationTypeHandoffReceived:        {},
	NotificationTypeHandoffReviewed:        {},
	NotificationTypeHandoffReminder:        {},
	NotificationTypeDecisionLogged:         {},
	NotificationTypeDecisionReviewDue:      {},
	NotificationTypeDecisionStatusChanged:  {},
	NotificationTypeContextCardLinked:      {},
	NotificationTypeKnowledgeArticleShared: {},
	NotificationTypeMention:                {},
	NotificationTypeSystemAlert:            {},
	NotificationTypeReminder:               {},
	NotificationTypeUrgentActionRequired:   {},
}

// Valid reports whether t is one of the known notification types
func (t NotificationType) Valid() bool {
	_, ok := notificationTypes[t]
	return ok
}

// IsDecision reports whether t belongs to the decision family
func (t NotificationType) IsDecision() bool {
	switch t {
	case NotificationTypeDecisionLogged, NotificationTypeDecisionReviewDue, NotificationTypeDecisionStatusChanged:
		return true
	}
	return false
}

// IsHandoff reports whether t belongs to the handoff family
func (t NotificationType) IsHandoff() bool {
	switch t {
	case NotificationTypeHandoffReceived, NotificationTypeHandoffReviewed, NotificationTypeHandoffReminder:
		return true
	}
	return false
}

// ParseNotificationType parses a case-insensitive notification type
func ParseNotificationType(s string) (NotificationType, bool) {
	t := NotificationType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// NotificationPriority is totally ordered: low < normal < high < urgent < critical
type NotificationPriority string

const (
	PriorityLow      NotificationPriority = "low"
	PriorityNormal   NotificationPriority = "normal"
	PriorityHigh     NotificationPriority = "high"
	PriorityUrgent   NotificationPriority = "urgent"
	PriorityCritical NotificationPriority = "critical"
)

var priorityRank = map[NotificationPriority]int{
	PriorityLow:      0,
	PriorityNormal:   1,
	PriorityHigh:     2,
	PriorityUrgent:   3,
	PriorityCritical: 4,
}

// Rank returns the position of p in the total order, or -1 if p is unknown
func (p NotificationPriority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return -1
}

// Valid reports whether p is one of the five defined priorities
func (p NotificationPriority) Valid() bool {
	return p.Rank() >= 0
}

// AtLeast reports whether p is greater than or equal to min in the total order
func (p NotificationPriority) AtLeast(min NotificationPriority) bool {
	return p.Rank() >= min.Rank()
}

// IsUrgent reports whether p is urgent or critical
func (p NotificationPriority) IsUrgent() bool {
	return p == PriorityUrgent || p == PriorityCritical
}

// ParsePriority parses a case-insensitive priority
func ParsePriority(s string) (NotificationPriority, bool) {
	p := NotificationPriority(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// Channel is a delivery channel a notification may be requested on
type Channel string

const (
	ChannelInApp   Channel = "in_app"
	ChannelEmail   Channel = "email"
	ChannelPush    Channel = "push"
	ChannelSlack   Channel = "slack"
	ChannelTeams   Channel = "teams"
	ChannelSMS     Channel = "sms"
	ChannelWebhook Channel = "webhook"
)

// Valid reports whether c is a known channel
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelSlack, ChannelTeams, ChannelSMS, ChannelWebhook:
		return true
	}
	return false
}

// Default values applied at creation
const (
	DefaultRelevanceScore = 0.5
)

// Notification represents one delivery-eligible event owned by a recipient within an organization
type Notification struct {
	ID             string `json:"id" bson:"_id"`
	UserID         string `json:"user_id" bson:"user_id"`
	OrganizationID string `json:"organization_id" bson:"organization_id"`

	Title            string               `json:"title" bson:"title"`
	Message          string               `json:"message" bson:"message"`
	ShortDescription string               `json:"short_description,omitempty" bson:"short_description,omitempty"`
	Category         string               `json:"category,omitempty" bson:"category,omitempty"`
	Type             NotificationType     `json:"notification_type" bson:"notification_type"`
	Priority         NotificationPriority `json:"priority" bson:"priority"`

	ProjectID        string `json:"project_id,omitempty" bson:"project_id,omitempty"`
	TaskID           string `json:"task_id,omitempty" bson:"task_id,omitempty"`
	ContextCardID    string `json:"context_card_id,omitempty" bson:"context_card_id,omitempty"`
	DecisionLogID    string `json:"decision_log_id,omitempty" bson:"decision_log_id,omitempty"`
	HandoffSummaryID string `json:"handoff_summary_id,omitempty" bson:"handoff_summary_id,omitempty"`

	RelevanceScore float64        `json:"relevance_score" bson:"relevance_score"`
	ContextData    map[string]any `json:"context_data" bson:"context_data"`
	ActionRequired bool           `json:"action_required" bson:"action_required"`
	AutoGenerated  bool           `json:"auto_generated" bson:"auto_generated"`

	DeliveryChannels    []Channel  `json:"delivery_channels" bson:"delivery_channels"`
	ScheduledFor        *time.Time `json:"scheduled_for,omitempty" bson:"scheduled_for,omitempty"`
	TimezoneAware       bool       `json:"timezone_aware" bson:"timezone_aware"`
	WorkHoursOnly       bool       `json:"work_hours_only" bson:"work_hours_only"`
	DeliveryAttempts    int        `json:"delivery_attempts" bson:"delivery_attempts"`
	DeliveredChannels   []Channel  `json:"delivered_channels" bson:"delivered_channels"`
	FailedChannels      []Channel  `json:"failed_channels" bson:"failed_channels"`
	LastDeliveryAttempt *time.Time `json:"last_delivery_attempt,omitempty" bson:"last_delivery_attempt,omitempty"`

	IsRead        bool       `json:"is_read" bson:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty" bson:"read_at,omitempty"`
	IsDismissed   bool       `json:"is_dismissed" bson:"is_dismissed"`
	DismissedAt   *time.Time `json:"dismissed_at,omitempty" bson:"dismissed_at,omitempty"`
	ActionTaken   bool       `json:"action_taken" bson:"action_taken"`
	ActionTakenAt *time.Time `json:"action_taken_at,omitempty" bson:"action_taken_at,omitempty"`

	ThreadID             string `json:"thread_id,omitempty" bson:"thread_id,omitempty"`
	ParentNotificationID string `json:"parent_notification_id,omitempty" bson:"parent_notification_id,omitempty"`

	Source    string     `json:"source,omitempty" bson:"source,omitempty"`
	Tags      []string   `json:"tags" bson:"tags"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// IsExpired reports whether the notification has an expiry at or before now
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// IsDeferred reports whether the notification is scheduled for a time after now
func (n *Notification) IsDeferred(now time.Time) bool {
	return n.ScheduledFor != nil && n.ScheduledFor.After(now)
}

// WantsChannel reports whether c was requested for delivery
func (n *Notification) WantsChannel(c Channel) bool {
	for _, requested := range n.DeliveryChannels {
		if requested == c {
			return true
		}
	}
	return false
}

// StatusPatch describes the post-creation mutations a recipient may apply.
// Priority and relevance score are immutable after creation and have no patch field.
type StatusPatch struct {
	Read        *bool
	Dismissed   *bool
	ActionTaken *bool
}

// Apply mutates n according to the patch, stamping timestamps at now
func (p StatusPatch) Apply(n *Notification, now time.Time) {
	if p.Read != nil {
		n.IsRead = *p.Read
		if *p.Read {
			if n.ReadAt == nil {
				n.ReadAt = &now
			}
		} else {
			n.ReadAt = nil
		}
	}
	if p.Dismissed != nil {
		n.IsDismissed = *p.Dismissed
		if *p.Dismissed {
			n.DismissedAt = &now
		} else {
			n.DismissedAt = nil
		}
	}
	if p.ActionTaken != nil {
		n.ActionTaken = *p.ActionTaken
		if *p.ActionTaken {
			n.ActionTakenAt = &now
		} else {
			n.ActionTakenAt = nil
		}
	}
	n.UpdatedAt = now
}

// DeliveryResult records the outcome of one channel attempt
type DeliveryResult struct {
	Channel   Channel
	Delivered bool
	At        time.Time
}

// Event represents a platform event consumed from RabbitMQ
type Event struct {
	Type           string         `json:"type"`
	OrganizationID string         `json:"organization_id"`
	RecipientIDs   []string       `json:"recipient_ids"`
	ActorID        string         `json:"actor_id,omitempty"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Priority       string         `json:"priority,omitempty"`
	ProjectID      string         `json:"project_id,omitempty"`
	TaskID         string         `json:"task_id,omitempty"`
	DecisionLogID  string         `json:"decision_log_id,omitempty"`
	HandoffID      string         `json:"handoff_summary_id,omitempty"`
	ContextCardID  string         `json:"context_card_id,omitempty"`
	ActionRequired bool           `json:"action_required,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}
