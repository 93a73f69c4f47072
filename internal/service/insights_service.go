package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
)

// Insight period bounds in days
const (
	DefaultInsightDays = 30
	MinInsightDays     = 7
	MaxInsightDays     = 90
)

const insightRankSize = 3

// InsightsService computes engagement insights from stored notifications and analytics
type InsightsService struct {
	notifications NotificationStore
	analytics     AnalyticsStore
	prefs         *PreferenceService
	now           func() time.Time
}

// NewInsightsService creates a new insights service
func NewInsightsService(notifications NotificationStore, analytics AnalyticsStore, prefs *PreferenceService, now func() time.Time) *InsightsService {
	return &InsightsService{notifications: notifications, analytics: analytics, prefs: prefs, now: now}
}

// Insights summarizes the caller's engagement over the trailing days (0 selects the default)
func (s *InsightsService) Insights(ctx context.Context, userID, orgID string, days int) (*domain.Insights, error) {
	if days == 0 {
		days = DefaultInsightDays
	}
	if days < MinInsightDays || days > MaxInsightDays {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("days must be between %d and %d", MinInsightDays, MaxInsightDays), nil)
	}

	prefs, err := s.prefs.GetOrCreate(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	since := s.now().UTC().AddDate(0, 0, -days)

	items, _, err := s.notifications.Query(ctx, domain.NotificationFilter{
		UserID:         userID,
		OrganizationID: orgID,
		CreatedFrom:    &since,
	}, domain.Pagination{})
	if err != nil {
		return nil, err
	}
	records, err := s.analytics.ListSince(ctx, userID, orgID, since)
	if err != nil {
		return nil, err
	}
	return ComputeInsights(days, items, records, prefs.Location()), nil
}

// ComputeInsights derives insights from a period's notifications and their analytics.
// Opened hours are bucketed in loc.
func ComputeInsights(days int, items []*domain.Notification, records []*domain.NotificationAnalytics, loc *time.Location) *domain.Insights {
	opened := make(map[string]time.Time, len(records))
	for _, a := range records {
		if a.OpenedAt != nil {
			opened[a.NotificationID] = *a.OpenedAt
		}
	}

	type typeStats struct{ total, engaged int }
	byType := map[domain.NotificationType]*typeStats{}
	hours := map[int]int{}
	var engaged, scored int
	var relevanceSum float64

	for _, n := range items {
		st, ok := byType[n.Type]
		if !ok {
			st = &typeStats{}
			byType[n.Type] = st
		}
		st.total++
		if at, ok := opened[n.ID]; ok {
			st.engaged++
			engaged++
			hours[at.In(loc).Hour()]++
		}
		if n.RelevanceScore > 0 {
			relevanceSum += n.RelevanceScore
			scored++
		}
	}

	out := &domain.Insights{
		PeriodDays:           days,
		TotalNotifications:   len(items),
		AverageRelevance:     domain.DefaultRelevanceScore,
		MostEngagedTypes:     []domain.NotificationType{},
		LeastEngagedTypes:    []domain.NotificationType{},
		OptimalDeliveryHours: []int{},
		Recommendations:      []string{},
	}
	if len(items) > 0 {
		out.EngagementRate = float64(engaged) / float64(len(items))
	}
	if scored > 0 {
		out.AverageRelevance = relevanceSum / float64(scored)
	}

	types := make([]domain.NotificationType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	rate := func(t domain.NotificationType) float64 {
		return float64(byType[t].engaged) / float64(byType[t].total)
	}
	sort.Slice(types, func(i, j int) bool {
		if ri, rj := rate(types[i]), rate(types[j]); ri != rj {
			return ri > rj
		}
		return types[i] < types[j]
	})
	out.MostEngagedTypes = append(out.MostEngagedTypes, types[:min(insightRankSize, len(types))]...)
	out.LeastEngagedTypes = append(out.LeastEngagedTypes, types[max(0, len(types)-insightRankSize):]...)

	ranked := make([]int, 0, len(hours))
	for h := range hours {
		ranked = append(ranked, h)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if hours[ranked[i]] != hours[ranked[j]] {
			return hours[ranked[i]] > hours[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	out.OptimalDeliveryHours = append(out.OptimalDeliveryHours, ranked[:min(insightRankSize, len(ranked))]...)

	if out.EngagementRate < 0.3 {
		out.Recommendations = append(out.Recommendations,
			"Consider reducing notification frequency or improving relevance filtering")
	}
	if out.AverageRelevance < 0.4 {
		out.Recommendations = append(out.Recommendations,
			"Enable AI-powered relevance filtering to reduce noise")
	}
	if len(out.OptimalDeliveryHours) > 0 {
		labels := make([]string, len(out.OptimalDeliveryHours))
		for i, h := range out.OptimalDeliveryHours {
			labels[i] = fmt.Sprintf("%02d:00", h)
		}
		out.Recommendations = append(out.Recommendations,
			"Consider scheduling digests during your most active hours: "+strings.Join(labels, ", "))
	}
	return out
}
