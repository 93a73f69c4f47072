package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
)

func TestCreateBlock_Validation(t *testing.T) {
	s := newServices(t)
	now := s.clock.Now()

	_, err := s.focus.CreateBlock(context.Background(), "user-1", "org-1", &domain.CreateFocusBlockRequest{
		StartTime: now, EndTime: now,
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = s.focus.CreateBlock(context.Background(), "user-1", "org-1", &domain.CreateFocusBlockRequest{
		StartTime: now, EndTime: now.Add(time.Hour), Timezone: "Mars/Olympus",
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestBlocks_ListAndDelete(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	now := s.clock.Now()

	past, err := s.focus.CreateBlock(ctx, "user-1", "org-1", &domain.CreateFocusBlockRequest{
		StartTime: now.Add(-3 * time.Hour), EndTime: now.Add(-2 * time.Hour), Timezone: "Europe/Berlin",
	})
	require.NoError(t, err)
	upcoming, err := s.focus.CreateBlock(ctx, "user-1", "org-1", &domain.CreateFocusBlockRequest{
		StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	current, err := s.focus.ListBlocks(ctx, "user-1", "org-1", false)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, upcoming.ID, current[0].ID)

	all, err := s.focus.ListBlocks(ctx, "user-1", "org-1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.True(t, apperrors.IsNotFound(s.focus.DeleteBlock(ctx, past.ID, "user-2", "org-1")))
	require.NoError(t, s.focus.DeleteBlock(ctx, past.ID, "user-1", "org-1"))
	assert.True(t, apperrors.IsNotFound(s.focus.DeleteBlock(ctx, past.ID, "user-1", "org-1")))
}

func TestEnable_WithDurationCreatesBlock(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	now := s.clock.Now()

	status, err := s.focus.Enable(ctx, "user-1", "org-1", &domain.EnableFocusModeRequest{DurationMinutes: ptr(60)})
	require.NoError(t, err)
	assert.True(t, status.FocusModeEnabled)
	require.NotNil(t, status.ActiveUntil)
	assert.True(t, status.ActiveUntil.Equal(now.Add(time.Hour)))

	prefs, err := s.prefs.GetOrCreate(ctx, "user-1", "org-1")
	require.NoError(t, err)
	assert.True(t, prefs.FocusModeEnabled)

	n, err := s.notifications.Create(ctx, "org-1", createRequest("user-1"))
	require.NoError(t, err)
	require.NotNil(t, n.ScheduledFor)
	assert.True(t, n.ScheduledFor.Equal(now.Add(time.Hour)))
}

func TestEnable_DurationBounds(t *testing.T) {
	s := newServices(t)
	for _, minutes := range []int{0, 14, 481} {
		_, err := s.focus.Enable(context.Background(), "user-1", "org-1", &domain.EnableFocusModeRequest{DurationMinutes: ptr(minutes)})
		assert.True(t, apperrors.IsValidation(err), "minutes=%d", minutes)
	}

	status, err := s.focus.Enable(context.Background(), "user-1", "org-1", &domain.EnableFocusModeRequest{})
	require.NoError(t, err)
	assert.Nil(t, status.ActiveUntil)
}

func TestDisable_ClearsFlagOnly(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	now := s.clock.Now()

	_, err := s.focus.Enable(ctx, "user-1", "org-1", &domain.EnableFocusModeRequest{DurationMinutes: ptr(30)})
	require.NoError(t, err)

	status, err := s.focus.Disable(ctx, "user-1", "org-1")
	require.NoError(t, err)
	assert.False(t, status.FocusModeEnabled)

	current, err := s.focus.Status(ctx, "user-1", "org-1")
	require.NoError(t, err)
	assert.False(t, current.FocusModeEnabled)
	require.NotNil(t, current.ActiveUntil, "the block created on enable stays in force")
	assert.True(t, current.ActiveUntil.Equal(now.Add(30*time.Minute)))

	s.clock.Advance(31 * time.Minute)
	current, err = s.focus.Status(ctx, "user-1", "org-1")
	require.NoError(t, err)
	assert.Nil(t, current.ActiveUntil)
}
