package domain

import "time"

// DigestType selects the digest period
type DigestType string

const (
	DigestDaily  DigestType = "daily"
	DigestWeekly DigestType = "weekly"
)

// Valid reports whether t is daily or weekly
func (t DigestType) Valid() bool {
	return t == DigestDaily || t == DigestWeekly
}

// ProjectSummary aggregates one project's notifications within a digest period
type ProjectSummary struct {
	Total       int                      `json:"total"`
	UrgentCount int                      `json:"urgent_count"`
	Types       map[NotificationType]int `json:"types"`
}

// Digest is a read-only summary of notifications over [PeriodStart, PeriodEnd)
type Digest struct {
	UserID              string                    `json:"user_id"`
	OrganizationID      string                    `json:"organization_id"`
	DigestType          DigestType                `json:"digest_type"`
	PeriodStart         time.Time                 `json:"period_start"`
	PeriodEnd           time.Time                 `json:"period_end"`
	TotalNotifications  int                       `json:"total_notifications"`
	UrgentItems         []*Notification           `json:"urgent_items"`
	ProjectUpdates      map[string]ProjectSummary `json:"project_updates"`
	ActionItems         []*Notification           `json:"action_items"`
	KnowledgeHighlights []string                  `json:"knowledge_highlights"`
}
