// Package digest aggregates a period's notifications into a read-only summary.
package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
)

// MaxActionItems bounds the action item list of a digest
const MaxActionItems = 5

// Source returns notifications matching a filter
type Source interface {
	Query(ctx context.Context, f domain.NotificationFilter, p domain.Pagination) ([]*domain.Notification, int, error)
}

// Generator builds digests from stored notifications. It never writes.
type Generator struct {
	source Source
}

// NewGenerator creates a new digest generator
func NewGenerator(source Source) *Generator {
	return &Generator{source: source}
}

// Generate summarizes notifications of (userID, orgID) created in [start, end)
func (g *Generator) Generate(ctx context.Context, userID, orgID string, digestType domain.DigestType, start, end time.Time) (*domain.Digest, error) {
	items, _, err := g.source.Query(ctx, domain.NotificationFilter{
		UserID:         userID,
		OrganizationID: orgID,
		CreatedFrom:    &start,
		CreatedTo:      &end,
	}, domain.Pagination{})
	if err != nil {
		return nil, fmt.Errorf("loading digest period: %w", err)
	}
	return Build(userID, orgID, digestType, start, end, items), nil
}

// Build aggregates items, which must already be restricted to the period
func Build(userID, orgID string, digestType domain.DigestType, start, end time.Time, items []*domain.Notification) *domain.Digest {
	ordered := make([]*domain.Notification, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra > rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	d := &domain.Digest{
		UserID:              userID,
		OrganizationID:      orgID,
		DigestType:          digestType,
		PeriodStart:         start,
		PeriodEnd:           end,
		TotalNotifications:  len(ordered),
		UrgentItems:         []*domain.Notification{},
		ProjectUpdates:      map[string]domain.ProjectSummary{},
		ActionItems:         []*domain.Notification{},
		KnowledgeHighlights: []string{},
	}

	for _, n := range ordered {
		urgent := n.Priority.IsUrgent()
		if urgent {
			d.UrgentItems = append(d.UrgentItems, n)
		}
		if n.ActionRequired && !n.ActionTaken && len(d.ActionItems) < MaxActionItems {
			d.ActionItems = append(d.ActionItems, n)
		}
		if n.ProjectID == "" {
			continue
		}
		summary, ok := d.ProjectUpdates[n.ProjectID]
		if !ok {
			summary.Types = map[domain.NotificationType]int{}
		}
		summary.Total++
		if urgent {
			summary.UrgentCount++
		}
		summary.Types[n.Type]++
		d.ProjectUpdates[n.ProjectID] = summary
	}
	return d
}

// DailyPeriod returns [local midnight of day, next local midnight) in UTC
func DailyPeriod(day time.Time, loc *time.Location) (time.Time, time.Time) {
	start := domain.LocalMidnight(day, loc)
	y, m, d := start.Date()
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC()
}

// WeeklyPeriod returns the Monday-started local week containing day, in UTC
func WeeklyPeriod(day time.Time, loc *time.Location) (time.Time, time.Time) {
	midnight := domain.LocalMidnight(day, loc)
	back := (int(midnight.Weekday()) + 6) % 7
	y, m, d := midnight.Date()
	start := time.Date(y, m, d-back, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d-back+7, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC()
}

// Period resolves the period of digestType containing day in loc
func Period(digestType domain.DigestType, day time.Time, loc *time.Location) (time.Time, time.Time) {
	if digestType == domain.DigestWeekly {
		return WeeklyPeriod(day, loc)
	}
	return DailyPeriod(day, loc)
}

// ParseLocalDate parses YYYY-MM-DD as a calendar day in loc
func ParseLocalDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %q", s)
	}
	return t, nil
}

// SummaryDraft is the reminder notification persisted when a digest fires
type SummaryDraft struct {
	Title       string
	Message     string
	ContextData map[string]any
}

// Summarize produces the counts-only reminder for d
func Summarize(d *domain.Digest) SummaryDraft {
	projects := make(map[string]any, len(d.ProjectUpdates))
	for id, s := range d.ProjectUpdates {
		projects[id] = map[string]any{"total": s.Total, "urgent_count": s.UrgentCount}
	}
	title, span := "Daily Digest", "today"
	if d.DigestType == domain.DigestWeekly {
		title, span = "Weekly Digest", "this week"
	}
	return SummaryDraft{
		Title:   title,
		Message: fmt.Sprintf("You have %d notifications %s.", d.TotalNotifications, span),
		ContextData: map[string]any{
			"digest_type":        string(d.DigestType),
			"period_start":       d.PeriodStart.Format(time.RFC3339),
			"period_end":         d.PeriodEnd.Format(time.RFC3339),
			"urgent_count":       len(d.UrgentItems),
			"action_items_count": len(d.ActionItems),
			"project_summaries":  projects,
		},
	}
}
