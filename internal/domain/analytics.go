package domain

import "time"

// NotificationAnalytics tracks engagement with a single notification
type NotificationAnalytics struct {
	ID                string     `json:"id" bson:"_id"`
	NotificationID    string     `json:"notification_id" bson:"notification_id"`
	UserID            string     `json:"user_id" bson:"user_id"`
	OrganizationID    string     `json:"organization_id" bson:"organization_id"`
	OpenedAt          *time.Time `json:"opened_at,omitempty" bson:"opened_at,omitempty"`
	TimeToOpenSeconds *int       `json:"time_to_open,omitempty" bson:"time_to_open,omitempty"`
	RelevanceFeedback *float64   `json:"relevance_feedback,omitempty" bson:"relevance_feedback,omitempty"`
	UserRating        *int       `json:"user_rating,omitempty" bson:"user_rating,omitempty"`
	MarkedAsSpam      bool       `json:"marked_as_spam" bson:"marked_as_spam"`
	ChannelUsed       Channel    `json:"channel_used,omitempty" bson:"channel_used,omitempty"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" bson:"updated_at"`
}

// Feedback is a user's assessment of one notification
type Feedback struct {
	RelevanceFeedback *float64 `json:"relevance_feedback,omitempty"`
	UserRating        *int     `json:"user_rating,omitempty"`
	MarkedAsSpam      *bool    `json:"marked_as_spam,omitempty"`
}

// Insights summarizes engagement over a trailing period
type Insights struct {
	PeriodDays           int                `json:"period_days"`
	TotalNotifications   int                `json:"total_notifications"`
	EngagementRate       float64            `json:"engagement_rate"`
	AverageRelevance     float64            `json:"average_relevance"`
	MostEngagedTypes     []NotificationType `json:"most_engaged_types"`
	LeastEngagedTypes    []NotificationType `json:"least_engaged_types"`
	OptimalDeliveryHours []int              `json:"optimal_delivery_hours"`
	Recommendations      []string           `json:"recommendations"`
}
