package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/testutil"
)

func TestCreate_AppliesDefaultsAndEnqueues(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	n, err := s.notifications.Create(ctx, "org-1", createRequest("user-1"))
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "org-1", n.OrganizationID)
	assert.Equal(t, domain.PriorityNormal, n.Priority)
	assert.Equal(t, domain.DefaultRelevanceScore, n.RelevanceScore)
	assert.Equal(t, []domain.Channel{domain.ChannelInApp}, n.DeliveryChannels)
	assert.True(t, n.TimezoneAware)
	assert.Nil(t, n.ScheduledFor)
	assert.Equal(t, s.clock.Now(), n.CreatedAt)

	stored, err := s.notifications.Get(ctx, n.ID, "user-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, n.Title, stored.Title)
	assert.Equal(t, 1, s.dispatcher.count())
}

func TestCreate_Validation(t *testing.T) {
	s := newServices(t)
	past := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		opt  func(*domain.CreateNotificationRequest)
	}{
		{"missing title", func(r *domain.CreateNotificationRequest) { r.Title = "" }},
		{"missing message", func(r *domain.CreateNotificationRequest) { r.Message = "" }},
		{"title too long", func(r *domain.CreateNotificationRequest) { r.Title = strings.Repeat("a", 256) }},
		{"short description too long", func(r *domain.CreateNotificationRequest) { r.ShortDescription = strings.Repeat("a", 501) }},
		{"category too long", func(r *domain.CreateNotificationRequest) { r.Category = strings.Repeat("a", 101) }},
		{"source too long", func(r *domain.CreateNotificationRequest) { r.Source = strings.Repeat("a", 101) }},
		{"relevance above one", func(r *domain.CreateNotificationRequest) { r.RelevanceScore = ptr(1.5) }},
		{"negative relevance", func(r *domain.CreateNotificationRequest) { r.RelevanceScore = ptr(-0.1) }},
		{"unknown priority", func(r *domain.CreateNotificationRequest) { r.Priority = "blocker" }},
		{"unknown type", func(r *domain.CreateNotificationRequest) { r.Type = "gossip" }},
		{"unknown channel", func(r *domain.CreateNotificationRequest) { r.DeliveryChannels = []domain.Channel{"pager"} }},
		{"scheduled in the past", func(r *domain.CreateNotificationRequest) { r.ScheduledFor = &past }},
		{"already expired", func(r *domain.CreateNotificationRequest) { r.ExpiresAt = &past }},
		{"missing parent", func(r *domain.CreateNotificationRequest) { r.ParentNotificationID = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.notifications.Create(context.Background(), "org-1", createRequest("user-1", tt.opt))
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}
	assert.Zero(t, s.dispatcher.count())
}

func TestCreate_ParentMustShareScope(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	root, err := s.notifications.Create(ctx, "org-1", createRequest("user-1"))
	require.NoError(t, err)
	reply, err := s.notifications.Create(ctx, "org-1", createRequest("user-1", func(r *domain.CreateNotificationRequest) {
		r.ParentNotificationID = root.ID
	}))
	require.NoError(t, err)
	_, err = s.notifications.Create(ctx, "org-1", createRequest("user-1", func(r *domain.CreateNotificationRequest) {
		r.ParentNotificationID = reply.ID
	}))
	require.NoError(t, err)

	_, err = s.notifications.Create(ctx, "org-2", createRequest("user-1", func(r *domain.CreateNotificationRequest) {
		r.ParentNotificationID = root.ID
	}))
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreate_RejectsCorruptThreadCycle(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	now := s.clock.Now()

	a := testutil.Notification("user-1", "org-1", now)
	b := testutil.Notification("user-1", "org-1", now)
	a.ParentNotificationID = b.ID
	b.ParentNotificationID = a.ID
	require.NoError(t, s.store.Notifications().Create(ctx, a))
	require.NoError(t, s.store.Notifications().Create(ctx, b))

	_, err := s.notifications.Create(ctx, "org-1", createRequest("user-1", func(r *domain.CreateNotificationRequest) {
		r.ParentNotificationID = a.ID
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestCreate_DefersDuringFocusBlock(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	now := s.clock.Now()
	end := now.Add(time.Hour)

	_, err := s.focus.CreateBlock(ctx, "user-1", "org-1", &domain.CreateFocusBlockRequest{
		StartTime: now.Add(-10 * time.Minute),
		EndTime:   end,
	})
	require.NoError(t, err)

	n, err := s.notifications.Create(ctx, "org-1", createRequest("user-1"))
	require.NoError(t, err)
	require.NotNil(t, n.ScheduledFor)
	assert.True(t, n.ScheduledFor.Equal(end))

	early := now.Add(30 * time.Minute)
	n, err = s.notifications.Create(ctx, "org-1", createRequest("user-1", func(r *domain.CreateNotificationRequest) {
		r.ScheduledFor = &early
	}))
	require.NoError(t, err)
	assert.True(t, n.ScheduledFor.Equal(end), "an earlier explicit schedule moves to the block end")

	late := now.Add(3 * time.Hour)
	n, err = s.notifications.Create(ctx, "org-1", createRequest("user-1", func(r *domain.CreateNotificationRequest) {
		r.ScheduledFor = &late
	}))
	require.NoError(t, err)
	assert.True(t, n.ScheduledFor.Equal(end), "a later explicit schedule also resumes at the block end")

	other, err := s.notifications.Create(ctx, "org-1", createRequest("user-2"))
	require.NoError(t, err)
	assert.Nil(t, other.ScheduledFor, "blocks only affect their owner")
}

func TestList_HidesDeferredUntilDue(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	now := s.clock.Now()

	_, err := s.focus.CreateBlock(ctx, "user-1", "org-1", &domain.CreateFocusBlockRequest{StartTime: now, EndTime: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = s.notifications.Create(ctx, "org-1", createRequest("user-1"))
	require.NoError(t, err)

	resp, err := s.notifications.List(ctx, "user-1", "org-1", domain.ListNotificationsRequest{})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)

	s.clock.Advance(time.Hour)
	resp, err = s.notifications.List(ctx, "user-1", "org-1", domain.ListNotificationsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 1, resp.UnreadCount)
}

func TestList_AppliesPreferencesAndStandingFocus(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	for _, p := range []domain.NotificationPriority{domain.PriorityLow, domain.PriorityNormal, domain.PriorityUrgent} {
		_, err := s.notifications.Create(ctx, "org-1", createRequest("user-1", func(r *domain.CreateNotificationRequest) {
			r.Priority = p
		}))
		require.NoError(t, err)
	}
	_, err := s.notifications.Create(ctx, "org-1", createRequest("user-1", func(r *domain.CreateNotificationRequest) {
		r.RelevanceScore = ptr(0.1)
	}))
	require.NoError(t, err)

	resp, err := s.notifications.List(ctx, "user-1", "org-1", domain.ListNotificationsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total, "low relevance item is filtered")
	assert.Equal(t, domain.PriorityUrgent, resp.Notifications[0].Priority)
	assert.Equal(t, 1, resp.UrgentCount)
	assert.False(t, resp.FocusModeActive)

	_, err = s.prefs.Update(ctx, "user-1", "org-1", &domain.PreferenceUpdate{FocusModeEnabled: ptr(true)})
	require.NoError(t, err)
	resp, err = s.notifications.List(ctx, "user-1", "org-1", domain.ListNotificationsRequest{})
	require.NoError(t, err)
	assert.True(t, resp.FocusModeActive)
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, domain.PriorityUrgent, resp.Notifications[0].Priority)
}

func TestStatusOperationsAreScoped(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	n, err := s.notifications.Create(ctx, "org-1", createRequest("user-1"))
	require.NoError(t, err)

	_, err = s.notifications.Get(ctx, n.ID, "user-2", "org-1")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.notifications.MarkRead(ctx, n.ID, "user-1", "org-2")
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(s.notifications.Delete(ctx, n.ID, "user-2", "org-1")))

	dismissed, err := s.notifications.Dismiss(ctx, n.ID, "user-1", "org-1")
	require.NoError(t, err)
	assert.True(t, dismissed.IsDismissed)

	acted, err := s.notifications.MarkActionTaken(ctx, n.ID, "user-1", "org-1")
	require.NoError(t, err)
	assert.True(t, acted.ActionTaken)
	assert.NotNil(t, acted.ActionTakenAt)

	require.NoError(t, s.notifications.Delete(ctx, n.ID, "user-1", "org-1"))
	_, err = s.notifications.Get(ctx, n.ID, "user-1", "org-1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMarkRead_RecordsFirstOpen(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	n, err := s.notifications.Create(ctx, "org-1", createRequest("user-1"))
	require.NoError(t, err)

	s.clock.Advance(90 * time.Second)
	read, err := s.notifications.MarkRead(ctx, n.ID, "user-1", "org-1")
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	a, err := s.store.Analytics().FindByNotification(ctx, n.ID, "user-1", "org-1")
	require.NoError(t, err)
	require.NotNil(t, a.OpenedAt)
	require.NotNil(t, a.TimeToOpenSeconds)
	assert.Equal(t, 90, *a.TimeToOpenSeconds)

	s.clock.Advance(time.Hour)
	_, err = s.notifications.MarkRead(ctx, n.ID, "user-1", "org-1")
	require.NoError(t, err)
	a, err = s.store.Analytics().FindByNotification(ctx, n.ID, "user-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, 90, *a.TimeToOpenSeconds, "first open is kept")
}

func TestMarkManyAndAllRead(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		n, err := s.notifications.Create(ctx, "org-1", createRequest("user-1"))
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	_, err := s.notifications.MarkManyRead(ctx, nil, "user-1", "org-1")
	assert.True(t, apperrors.IsValidation(err))

	changed, err := s.notifications.MarkManyRead(ctx, ids[:2], "user-2", "org-1")
	require.NoError(t, err)
	assert.Zero(t, changed)

	changed, err = s.notifications.MarkManyRead(ctx, ids[:2], "user-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = s.notifications.MarkAllRead(ctx, "user-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)
}

func TestSubmitFeedback(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	n, err := s.notifications.Create(ctx, "org-1", createRequest("user-1"))
	require.NoError(t, err)

	err = s.notifications.SubmitFeedback(ctx, n.ID, "user-1", "org-1", domain.Feedback{UserRating: ptr(6)})
	assert.True(t, apperrors.IsValidation(err))
	err = s.notifications.SubmitFeedback(ctx, n.ID, "user-1", "org-1", domain.Feedback{RelevanceFeedback: ptr(1.2)})
	assert.True(t, apperrors.IsValidation(err))
	err = s.notifications.SubmitFeedback(ctx, n.ID, "user-2", "org-1", domain.Feedback{UserRating: ptr(3)})
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, s.notifications.SubmitFeedback(ctx, n.ID, "user-1", "org-1",
		domain.Feedback{UserRating: ptr(4), RelevanceFeedback: ptr(0.8)}))
	require.NoError(t, s.notifications.SubmitFeedback(ctx, n.ID, "user-1", "org-1",
		domain.Feedback{MarkedAsSpam: ptr(true)}))

	a, err := s.store.Analytics().FindByNotification(ctx, n.ID, "user-1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, 4, *a.UserRating)
	assert.InDelta(t, 0.8, *a.RelevanceFeedback, 1e-9)
	assert.True(t, a.MarkedAsSpam)
}
