// Package focus decides when a user is in focus: explicit focus blocks defer
// new notifications, the recurring focus window only narrows listings.
package focus

import (
	"context"
	"fmt"
	"time"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
)

// BlockFinder returns the focus blocks active at now
type BlockFinder interface {
	FindActive(ctx context.Context, userID, orgID string, now time.Time) ([]*domain.FocusBlock, error)
}

// Gate assigns scheduled_for to notifications created inside a focus block
type Gate struct {
	blocks BlockFinder
}

// NewGate creates a new suppression gate
func NewGate(blocks BlockFinder) *Gate {
	return &Gate{blocks: blocks}
}

// ResumeAt returns the end of the earliest-ending block active at now, or nil
// when the user is not inside any block
func (g *Gate) ResumeAt(ctx context.Context, userID, orgID string, now time.Time) (*time.Time, error) {
	blocks, err := g.blocks.FindActive(ctx, userID, orgID, now)
	if err != nil {
		return nil, fmt.Errorf("finding active focus blocks: %w", err)
	}
	return EarliestEnd(blocks, now), nil
}

// EarliestEnd returns the minimum end time among blocks active at now
func EarliestEnd(blocks []*domain.FocusBlock, now time.Time) *time.Time {
	var earliest *time.Time
	for _, b := range blocks {
		if !b.ActiveAt(now) {
			continue
		}
		if earliest == nil || b.EndTime.Before(*earliest) {
			end := b.EndTime
			earliest = &end
		}
	}
	return earliest
}

// InStandingWindow reports whether the recurring focus window of p is open at now.
// Focus mode enabled without a start/end pair counts as open until disabled.
// Windows with end before start wrap past midnight and belong to the day they start on.
// An empty day list matches every day.
func InStandingWindow(p *domain.NotificationPreference, now time.Time) bool {
	if p == nil || !p.FocusModeEnabled {
		return false
	}
	if p.FocusModeStartTime == "" || p.FocusModeEndTime == "" {
		return true
	}
	start, err := domain.ParseClock(p.FocusModeStartTime)
	if err != nil {
		return false
	}
	end, err := domain.ParseClock(p.FocusModeEndTime)
	if err != nil {
		return false
	}

	local := now.In(p.Location())
	minute := local.Hour()*60 + local.Minute()
	day := local.Weekday()

	switch {
	case start.Minutes() == end.Minutes():
		// whole day
	case start.Minutes() < end.Minutes():
		if minute < start.Minutes() || minute >= end.Minutes() {
			return false
		}
	default:
		switch {
		case minute >= start.Minutes():
		case minute < end.Minutes():
			day = (day + 6) % 7
		default:
			return false
		}
	}
	return dayListed(p.FocusModeDays, day)
}

func dayListed(days []string, day time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if wd, ok := domain.ParseWeekday(d); ok && wd == day {
			return true
		}
	}
	return false
}
