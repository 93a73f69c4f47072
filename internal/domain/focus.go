package domain

import "time"

// FocusBlock is an explicit suppression interval [StartTime, EndTime).
// Blocks are never mutated; changes are delete and recreate.
type FocusBlock struct {
	ID             string    `json:"id" bson:"_id"`
	UserID         string    `json:"user_id" bson:"user_id"`
	OrganizationID string    `json:"organization_id" bson:"organization_id"`
	StartTime      time.Time `json:"start_time" bson:"start_time"`
	EndTime        time.Time `json:"end_time" bson:"end_time"`
	Timezone       string    `json:"timezone" bson:"timezone"`
	Reason         string    `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// ActiveAt reports whether StartTime <= now < EndTime
func (b *FocusBlock) ActiveAt(now time.Time) bool {
	return !now.Before(b.StartTime) && now.Before(b.EndTime)
}

// FocusModeStatus is returned by focus mode enable/disable
type FocusModeStatus struct {
	FocusModeEnabled bool       `json:"focus_mode_enabled"`
	ActiveUntil      *time.Time `json:"active_until,omitempty"`
	Message          string     `json:"message"`
}
