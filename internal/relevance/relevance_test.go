package relevance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/testutil"
)

var now = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func prefs() *domain.NotificationPreference {
	return domain.DefaultPreference("pref-1", "user-1", "org-1", now)
}

func build(opts ...func(*domain.Notification)) *domain.Notification {
	return testutil.Notification("user-1", "org-1", now.Add(-time.Hour), opts...)
}

func ids(items []*domain.Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.Title)
	}
	return out
}

func titled(title string) func(*domain.Notification) {
	return func(n *domain.Notification) { n.Title = title }
}

func createdAt(t time.Time) func(*domain.Notification) {
	return func(n *domain.Notification) { n.CreatedAt = t }
}

func TestList_SortOrder(t *testing.T) {
	items := []*domain.Notification{
		build(titled("low"), testutil.WithPriority(domain.PriorityLow)),
		build(titled("high-old"), testutil.WithPriority(domain.PriorityHigh), testutil.WithRelevance(0.8), createdAt(now.Add(-3*time.Hour))),
		build(titled("critical"), testutil.WithPriority(domain.PriorityCritical), testutil.WithRelevance(0.4)),
		build(titled("high-new"), testutil.WithPriority(domain.PriorityHigh), testutil.WithRelevance(0.8), createdAt(now.Add(-time.Minute))),
		build(titled("high-relevant"), testutil.WithPriority(domain.PriorityHigh), testutil.WithRelevance(0.95)),
	}

	resp := List(items, Listing{Preferences: prefs(), Now: now})

	assert.Equal(t, []string{"critical", "high-relevant", "high-new", "high-old", "low"}, ids(resp.Notifications))
	for i := 1; i < len(resp.Notifications); i++ {
		prev, cur := resp.Notifications[i-1], resp.Notifications[i]
		assert.GreaterOrEqual(t, prev.Priority.Rank(), cur.Priority.Rank())
	}
}

func TestList_UrgentOnlyMode(t *testing.T) {
	p := prefs()
	p.UrgentOnlyMode = true

	var items []*domain.Notification
	for _, pr := range []domain.NotificationPriority{domain.PriorityLow, domain.PriorityNormal, domain.PriorityUrgent, domain.PriorityCritical} {
		items = append(items, build(titled(string(pr)), testutil.WithPriority(pr)))
	}

	resp := List(items, Listing{Preferences: p, Now: now})

	assert.Equal(t, []string{"critical", "urgent"}, ids(resp.Notifications))
	assert.Equal(t, 2, resp.Total)
}

func TestList_MinimumPriority(t *testing.T) {
	p := prefs()
	p.MinimumPriority = domain.PriorityHigh

	items := []*domain.Notification{
		build(titled("normal"), testutil.WithPriority(domain.PriorityNormal)),
		build(titled("high"), testutil.WithPriority(domain.PriorityHigh)),
		build(titled("urgent"), testutil.WithPriority(domain.PriorityUrgent)),
	}

	resp := List(items, Listing{Preferences: p, Now: now})
	assert.Equal(t, []string{"urgent", "high"}, ids(resp.Notifications))
}

func TestList_RelevanceThreshold(t *testing.T) {
	p := prefs()
	a := build(titled("a"), testutil.WithRelevance(0.2))

	resp := List([]*domain.Notification{a}, Listing{Preferences: p, Now: now})
	assert.Empty(t, resp.Notifications)

	a.RelevanceScore = 0.35
	resp = List([]*domain.Notification{a}, Listing{Preferences: p, Now: now})
	assert.Equal(t, []string{"a"}, ids(resp.Notifications))

	p.AIFilteringEnabled = false
	a.RelevanceScore = 0.1
	resp = List([]*domain.Notification{a}, Listing{Preferences: p, Now: now})
	assert.Len(t, resp.Notifications, 1, "threshold ignored when AI filtering is off")
}

func TestList_ExpiredNeverListed(t *testing.T) {
	items := []*domain.Notification{
		build(titled("expired"), testutil.WithExpiry(now.Add(-time.Second)), testutil.WithPriority(domain.PriorityCritical)),
		build(titled("expires-now"), testutil.WithExpiry(now)),
		build(titled("live"), testutil.WithExpiry(now.Add(time.Hour))),
	}

	for _, req := range []domain.ListNotificationsRequest{
		{},
		{Priority: domain.PriorityCritical},
		{UnreadOnly: true},
	} {
		resp := List(items, Listing{Request: req, Preferences: prefs(), Now: now})
		for _, n := range resp.Notifications {
			assert.NotEqual(t, "expired", n.Title)
			assert.NotEqual(t, "expires-now", n.Title)
		}
	}
}

func TestList_FutureScheduledBecomesVisible(t *testing.T) {
	n := build(titled("deferred"), testutil.WithSchedule(now.Add(30*time.Minute)))

	resp := List([]*domain.Notification{n}, Listing{Preferences: prefs(), Now: now})
	assert.Empty(t, resp.Notifications)

	resp = List([]*domain.Notification{n}, Listing{Preferences: prefs(), Now: now.Add(30 * time.Minute)})
	assert.Equal(t, []string{"deferred"}, ids(resp.Notifications))
}

func TestList_CallerFilters(t *testing.T) {
	items := []*domain.Notification{
		build(titled("read"), testutil.Read, testutil.WithProject("p1")),
		build(titled("mention"), testutil.WithType(domain.NotificationTypeMention)),
		build(titled("p1"), testutil.WithProject("p1"), testutil.WithPriority(domain.PriorityHigh)),
	}

	tests := []struct {
		name string
		req  domain.ListNotificationsRequest
		want []string
	}{
		{"unread only", domain.ListNotificationsRequest{UnreadOnly: true}, []string{"p1", "mention"}},
		{"priority", domain.ListNotificationsRequest{Priority: domain.PriorityHigh}, []string{"p1"}},
		{"type", domain.ListNotificationsRequest{Type: domain.NotificationTypeMention}, []string{"mention"}},
		{"project", domain.ListNotificationsRequest{ProjectID: "p1"}, []string{"p1", "read"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := List(items, Listing{Request: tt.req, Preferences: prefs(), Now: now})
			assert.ElementsMatch(t, tt.want, ids(resp.Notifications))
		})
	}
}

func TestList_CountsOverUnpaginatedSet(t *testing.T) {
	var items []*domain.Notification
	for i := 0; i < 5; i++ {
		items = append(items, build(testutil.WithPriority(domain.PriorityUrgent)))
	}
	for i := 0; i < 3; i++ {
		items = append(items, build(testutil.Read, testutil.WithPriority(domain.PriorityCritical)))
	}
	items = append(items, build())

	resp := List(items, Listing{
		Request:     domain.ListNotificationsRequest{Page: 2, PageSize: 4},
		Preferences: prefs(),
		Now:         now,
	})

	assert.Len(t, resp.Notifications, 4)
	assert.Equal(t, 9, resp.Total)
	assert.Equal(t, 6, resp.UnreadCount)
	assert.Equal(t, 5, resp.UrgentCount)
	assert.True(t, resp.HasMore)

	resp = List(items, Listing{
		Request:     domain.ListNotificationsRequest{Page: 3, PageSize: 4},
		Preferences: prefs(),
		Now:         now,
	})
	assert.Len(t, resp.Notifications, 1)
	assert.False(t, resp.HasMore)

	resp = List(items, Listing{
		Request:     domain.ListNotificationsRequest{Page: 9, PageSize: 4},
		Preferences: prefs(),
		Now:         now,
	})
	assert.Empty(t, resp.Notifications)
}

func TestList_StandingFocusWithholdsBelowUrgent(t *testing.T) {
	items := []*domain.Notification{
		build(titled("high"), testutil.WithPriority(domain.PriorityHigh)),
		build(titled("urgent"), testutil.WithPriority(domain.PriorityUrgent)),
	}

	resp := List(items, Listing{Preferences: prefs(), Now: now, StandingFocus: true})
	assert.True(t, resp.FocusModeActive)
	assert.Equal(t, []string{"urgent"}, ids(resp.Notifications))
}

func TestGroup(t *testing.T) {
	items := []*domain.Notification{
		build(titled("proj-urgent"), testutil.WithProject("p1"), testutil.WithTask("t9"), testutil.WithPriority(domain.PriorityUrgent)),
		build(titled("task"), testutil.WithTask("t1")),
		build(titled("decision"), testutil.WithType(domain.NotificationTypeDecisionLogged)),
		build(titled("handoff"), testutil.WithType(domain.NotificationTypeHandoffReminder)),
		build(titled("mention"), testutil.WithType(domain.NotificationTypeMention), testutil.WithPriority(domain.PriorityCritical)),
		build(titled("other"), testutil.WithType(domain.NotificationTypeSystemAlert)),
		build(titled("proj-2"), testutil.WithProject("p1")),
	}

	groups := Group(items)

	byKey := make(map[string][]string)
	var keys []string
	for _, g := range groups {
		keys = append(keys, g.Key)
		byKey[g.Key] = ids(g.Notifications)
	}
	assert.Equal(t, []string{"urgent", "project:p1", "task:t1", "decisions", "handoffs", "mentions", "other"}, keys)
	assert.Equal(t, []string{"proj-urgent", "mention"}, byKey["urgent"])
	assert.Equal(t, []string{"proj-urgent", "proj-2"}, byKey["project:p1"])
	assert.Equal(t, []string{"task"}, byKey["task:t1"])
	assert.Equal(t, []string{"mention"}, byKey["mentions"])
	assert.NotContains(t, byKey, "task:t9", "project membership takes precedence")
}

func TestList_GroupingRequiresPreference(t *testing.T) {
	items := []*domain.Notification{build(testutil.WithProject("p1"))}

	resp := List(items, Listing{Request: domain.ListNotificationsRequest{Grouped: true}, Preferences: prefs(), Now: now})
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "project:p1", resp.Groups[0].Key)

	p := prefs()
	p.ContextAwareGrouping = false
	resp = List(items, Listing{Request: domain.ListNotificationsRequest{Grouped: true}, Preferences: p, Now: now})
	assert.Nil(t, resp.Groups)

	resp = List(items, Listing{Request: domain.ListNotificationsRequest{Grouped: false}, Preferences: prefs(), Now: now})
	assert.Nil(t, resp.Groups)
}
