// Package relevance implements the listing pipeline: visibility, caller and
// preference filters, ordering, pagination and context-aware grouping.
// Every function is pure and leaves its input slice untouched.
package relevance

import (
	"sort"
	"time"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
)

// Group keys
const (
	GroupUrgent    = "urgent"
	GroupDecisions = "decisions"
	GroupHandoffs  = "handoffs"
	GroupMentions  = "mentions"
	GroupOther     = "other"

	projectPrefix = "project:"
	taskPrefix    = "task:"
)

// Listing carries the per-request inputs of List
type Listing struct {
	Request     domain.ListNotificationsRequest
	Preferences *domain.NotificationPreference
	Now         time.Time
	// StandingFocus is true while the user's recurring focus window is open
	StandingFocus bool
}

// List runs the full pipeline over the owner's notifications
func List(items []*domain.Notification, l Listing) *domain.NotificationListResponse {
	req := l.Request
	req.Normalize()

	filtered := Visible(items, l.Now)
	filtered = FilterByRequest(filtered, req)
	filtered = FilterByPreferences(filtered, l.Preferences)
	if l.StandingFocus {
		filtered = WithholdBelowUrgent(filtered)
	}
	Sort(filtered)

	resp := &domain.NotificationListResponse{
		Total:           len(filtered),
		Page:            req.Page,
		PageSize:        req.PageSize,
		FocusModeActive: l.StandingFocus,
	}
	for _, n := range filtered {
		if n.IsRead {
			continue
		}
		resp.UnreadCount++
		if n.Priority.IsUrgent() {
			resp.UrgentCount++
		}
	}

	offset := (req.Page - 1) * req.PageSize
	resp.Notifications = Paginate(filtered, offset, req.PageSize)
	resp.HasMore = offset+len(resp.Notifications) < resp.Total

	if req.Grouped && l.Preferences != nil && l.Preferences.ContextAwareGrouping {
		resp.Groups = Group(resp.Notifications)
	}
	return resp
}

// Visible drops expired and not-yet-due notifications
func Visible(items []*domain.Notification, now time.Time) []*domain.Notification {
	return keep(items, func(n *domain.Notification) bool {
		return !n.IsExpired(now) && !n.IsDeferred(now)
	})
}

// FilterByRequest applies the caller's unread, priority, type and project filters
func FilterByRequest(items []*domain.Notification, req domain.ListNotificationsRequest) []*domain.Notification {
	return keep(items, func(n *domain.Notification) bool {
		if req.UnreadOnly && n.IsRead {
			return false
		}
		if req.Priority != "" && n.Priority != req.Priority {
			return false
		}
		if req.Type != "" && n.Type != req.Type {
			return false
		}
		if req.ProjectID != "" && n.ProjectID != req.ProjectID {
			return false
		}
		return true
	})
}

// FilterByPreferences applies urgent-only or minimum priority, then the relevance threshold
func FilterByPreferences(items []*domain.Notification, prefs *domain.NotificationPreference) []*domain.Notification {
	if prefs == nil {
		return keep(items, func(*domain.Notification) bool { return true })
	}
	return keep(items, func(n *domain.Notification) bool {
		switch {
		case prefs.UrgentOnlyMode:
			if !n.Priority.IsUrgent() {
				return false
			}
		case prefs.MinimumPriority != "":
			if !n.Priority.AtLeast(prefs.MinimumPriority) {
				return false
			}
		}
		if prefs.AIFilteringEnabled && n.RelevanceScore < prefs.RelevanceThreshold {
			return false
		}
		return true
	})
}

// WithholdBelowUrgent keeps only urgent and critical notifications
func WithholdBelowUrgent(items []*domain.Notification) []*domain.Notification {
	return keep(items, func(n *domain.Notification) bool { return n.Priority.IsUrgent() })
}

// Sort orders items in place by priority, relevance and recency, all descending
func Sort(items []*domain.Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra > rb
		}
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// Paginate returns the window [offset, offset+limit) of items
func Paginate(items []*domain.Notification, offset, limit int) []*domain.Notification {
	if offset >= len(items) {
		return []*domain.Notification{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// Classify returns the primary bucket key of n
func Classify(n *domain.Notification) string {
	switch {
	case n.ProjectID != "":
		return projectPrefix + n.ProjectID
	case n.TaskID != "":
		return taskPrefix + n.TaskID
	case n.Type.IsDecision():
		return GroupDecisions
	case n.Type.IsHandoff():
		return GroupHandoffs
	case n.Type == domain.NotificationTypeMention:
		return GroupMentions
	default:
		return GroupOther
	}
}

// Group buckets items by context. Urgent and critical items also appear in the
// urgent bucket, which is listed first. Empty buckets are omitted.
func Group(items []*domain.Notification) []domain.NotificationGroup {
	var urgent []*domain.Notification
	var projects, tasks []string
	buckets := make(map[string][]*domain.Notification)

	for _, n := range items {
		if n.Priority.IsUrgent() {
			urgent = append(urgent, n)
		}
		key := Classify(n)
		if _, seen := buckets[key]; !seen {
			switch {
			case n.ProjectID != "":
				projects = append(projects, key)
			case n.TaskID != "":
				tasks = append(tasks, key)
			}
		}
		buckets[key] = append(buckets[key], n)
	}

	groups := make([]domain.NotificationGroup, 0, len(buckets)+1)
	if len(urgent) > 0 {
		groups = append(groups, domain.NotificationGroup{Key: GroupUrgent, Title: "Urgent", Notifications: urgent})
	}
	for _, key := range projects {
		groups = append(groups, domain.NotificationGroup{Key: key, Title: "Project " + key[len(projectPrefix):], Notifications: buckets[key]})
	}
	for _, key := range tasks {
		groups = append(groups, domain.NotificationGroup{Key: key, Title: "Task " + key[len(taskPrefix):], Notifications: buckets[key]})
	}
	for _, fixed := range []struct{ key, title string }{
		{GroupDecisions, "Decisions"},
		{GroupHandoffs, "Handoffs"},
		{GroupMentions, "Mentions"},
		{GroupOther, "Other"},
	} {
		if len(buckets[fixed.key]) > 0 {
			groups = append(groups, domain.NotificationGroup{Key: fixed.key, Title: fixed.title, Notifications: buckets[fixed.key]})
		}
	}
	return groups
}

func keep(items []*domain.Notification, pred func(*domain.Notification) bool) []*domain.Notification {
	out := make([]*domain.Notification, 0, len(items))
	for _, n := range items {
		if pred(n) {
			out = append(out, n)
		}
	}
	return out
}
