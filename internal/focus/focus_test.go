package focus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/testutil"
)

// Monday
var now = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func block(userID, orgID string, start, end time.Time) *domain.FocusBlock {
	return &domain.FocusBlock{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: orgID,
		StartTime:      start,
		EndTime:        end,
		Timezone:       "UTC",
		CreatedAt:      start,
	}
}

func TestGate_ResumeAtEarliestEnd(t *testing.T) {
	store := testutil.NewStore(t)
	blocks := store.FocusBlocks()
	ctx := context.Background()

	require.NoError(t, blocks.Create(ctx, block("user-1", "org-1", now.Add(-time.Hour), now.Add(2*time.Hour))))
	require.NoError(t, blocks.Create(ctx, block("user-1", "org-1", now.Add(-time.Minute), now.Add(45*time.Minute))))
	require.NoError(t, blocks.Create(ctx, block("user-1", "org-1", now.Add(time.Hour), now.Add(3*time.Hour))))
	require.NoError(t, blocks.Create(ctx, block("user-1", "org-2", now.Add(-time.Hour), now.Add(10*time.Minute))))

	gate := NewGate(blocks)

	at, err := gate.ResumeAt(ctx, "user-1", "org-1", now)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.True(t, at.Equal(now.Add(45*time.Minute)))

	at, err = gate.ResumeAt(ctx, "user-2", "org-1", now)
	require.NoError(t, err)
	assert.Nil(t, at)

	at, err = gate.ResumeAt(ctx, "user-1", "org-1", now.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.True(t, at.Equal(now.Add(3*time.Hour)), "first block end is exclusive")

	at, err = gate.ResumeAt(ctx, "user-1", "org-1", now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, at)
}

func TestEarliestEnd_IgnoresInactive(t *testing.T) {
	blocks := []*domain.FocusBlock{
		block("u", "o", now.Add(time.Minute), now.Add(5*time.Minute)),
		block("u", "o", now.Add(-time.Hour), now),
		block("u", "o", now, now.Add(time.Hour)),
	}
	end := EarliestEnd(blocks, now)
	require.NotNil(t, end)
	assert.True(t, end.Equal(now.Add(time.Hour)))
}

func TestInStandingWindow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name   string
		start  string
		end    string
		days   []string
		tz     string
		at     time.Time
		active bool
	}{
		{"inside", "09:00", "12:00", nil, "UTC", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), true},
		{"end exclusive", "09:00", "12:00", nil, "UTC", time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), false},
		{"before", "09:00", "12:00", nil, "UTC", time.Date(2024, 3, 4, 8, 59, 0, 0, time.UTC), false},
		{"day listed", "09:00", "12:00", []string{"monday"}, "UTC", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), true},
		{"day not listed", "09:00", "12:00", []string{"Tuesday"}, "UTC", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), false},
		{"local timezone", "09:00", "12:00", nil, "America/New_York", time.Date(2024, 3, 4, 10, 0, 0, 0, ny), true},
		{"utc hour outside local window", "09:00", "12:00", nil, "America/New_York", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), false},
		{"wraps evening", "22:00", "06:00", []string{"monday"}, "UTC", time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC), true},
		{"wraps morning belongs to previous day", "22:00", "06:00", []string{"monday"}, "UTC", time.Date(2024, 3, 5, 5, 0, 0, 0, time.UTC), true},
		{"wraps morning previous day unlisted", "22:00", "06:00", []string{"monday"}, "UTC", time.Date(2024, 3, 4, 5, 0, 0, 0, time.UTC), false},
		{"wraps gap", "22:00", "06:00", nil, "UTC", time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), false},
		{"no window", "", "", nil, "UTC", now, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.DefaultPreference("p", "u", "o", now)
			p.FocusModeEnabled = true
			p.FocusModeStartTime = tt.start
			p.FocusModeEndTime = tt.end
			p.FocusModeDays = tt.days
			p.Timezone = tt.tz
			assert.Equal(t, tt.active, InStandingWindow(p, tt.at))
		})
	}
}

func TestInStandingWindow_Disabled(t *testing.T) {
	p := domain.DefaultPreference("p", "u", "o", now)
	p.FocusModeStartTime = "00:00"
	p.FocusModeEndTime = "23:59"
	assert.False(t, InStandingWindow(p, now))
	assert.False(t, InStandingWindow(nil, now))
}
