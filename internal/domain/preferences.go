package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // IANA zones for minimal containers
)

// NotificationPreference holds per-user delivery preferences within an organization.
// One record per (user, organization), created lazily with DefaultPreference.
type NotificationPreference struct {
	ID             string `json:"id" bson:"_id"`
	UserID         string `json:"user_id" bson:"user_id"`
	OrganizationID string `json:"organization_id" bson:"organization_id"`

	Enabled            bool     `json:"enabled" bson:"enabled"`
	FocusModeEnabled   bool     `json:"focus_mode_enabled" bson:"focus_mode_enabled"`
	FocusModeStartTime string   `json:"focus_mode_start_time,omitempty" bson:"focus_mode_start_time,omitempty"`
	FocusModeEndTime   string   `json:"focus_mode_end_time,omitempty" bson:"focus_mode_end_time,omitempty"`
	FocusModeDays      []string `json:"focus_mode_days" bson:"focus_mode_days"`

	WorkStartTime string   `json:"work_start_time" bson:"work_start_time"`
	WorkEndTime   string   `json:"work_end_time" bson:"work_end_time"`
	WorkDays      []string `json:"work_days" bson:"work_days"`
	Timezone      string   `json:"timezone" bson:"timezone"`

	UrgentOnlyMode  bool                 `json:"urgent_only_mode" bson:"urgent_only_mode"`
	MinimumPriority NotificationPriority `json:"minimum_priority" bson:"minimum_priority"`

	DailyDigestEnabled  bool   `json:"daily_digest_enabled" bson:"daily_digest_enabled"`
	DailyDigestTime     string `json:"daily_digest_time" bson:"daily_digest_time"`
	WeeklyDigestEnabled bool   `json:"weekly_digest_enabled" bson:"weekly_digest_enabled"`
	WeeklyDigestDay     string `json:"weekly_digest_day" bson:"weekly_digest_day"`
	WeeklyDigestTime    string `json:"weekly_digest_time" bson:"weekly_digest_time"`

	AIFilteringEnabled   bool    `json:"ai_filtering_enabled" bson:"ai_filtering_enabled"`
	RelevanceThreshold   float64 `json:"relevance_threshold" bson:"relevance_threshold"`
	ContextAwareGrouping bool    `json:"context_aware_grouping" bson:"context_aware_grouping"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Preference defaults
const (
	DefaultTimezone           = "UTC"
	DefaultRelevanceThreshold = 0.3
	DefaultDigestTime         = "08:00"
	DefaultWorkStart          = "09:00"
	DefaultWorkEnd            = "17:00"
)

// DefaultPreference builds the record persisted on first access
func DefaultPreference(id, userID, orgID string, now time.Time) *NotificationPreference {
	return &NotificationPreference{
		ID:                   id,
		UserID:               userID,
		OrganizationID:       orgID,
		Enabled:              true,
		FocusModeDays:        []string{},
		WorkStartTime:        DefaultWorkStart,
		WorkEndTime:          DefaultWorkEnd,
		WorkDays:             []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		Timezone:             DefaultTimezone,
		MinimumPriority:      PriorityLow,
		DailyDigestEnabled:   true,
		DailyDigestTime:      DefaultDigestTime,
		WeeklyDigestDay:      "monday",
		WeeklyDigestTime:     DefaultDigestTime,
		AIFilteringEnabled:   true,
		RelevanceThreshold:   DefaultRelevanceThreshold,
		ContextAwareGrouping: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Location resolves the stored timezone, falling back to UTC for unknown names
func (p *NotificationPreference) Location() *time.Location {
	return LoadLocation(p.Timezone)
}

// PreferenceUpdate is a partial update. Nil fields are left untouched.
type PreferenceUpdate struct {
	Enabled            *bool     `json:"enabled,omitempty"`
	FocusModeEnabled   *bool     `json:"focus_mode_enabled,omitempty"`
	FocusModeStartTime *string   `json:"focus_mode_start_time,omitempty"`
	FocusModeEndTime   *string   `json:"focus_mode_end_time,omitempty"`
	FocusModeDays      *[]string `json:"focus_mode_days,omitempty"`

	WorkStartTime *string   `json:"work_start_time,omitempty"`
	WorkEndTime   *string   `json:"work_end_time,omitempty"`
	WorkDays      *[]string `json:"work_days,omitempty"`
	Timezone      *string   `json:"timezone,omitempty"`

	UrgentOnlyMode  *bool                 `json:"urgent_only_mode,omitempty"`
	MinimumPriority *NotificationPriority `json:"minimum_priority,omitempty"`

	DailyDigestEnabled  *bool   `json:"daily_digest_enabled,omitempty"`
	DailyDigestTime     *string `json:"daily_digest_time,omitempty"`
	WeeklyDigestEnabled *bool   `json:"weekly_digest_enabled,omitempty"`
	WeeklyDigestDay     *string `json:"weekly_digest_day,omitempty"`
	WeeklyDigestTime    *string `json:"weekly_digest_time,omitempty"`

	AIFilteringEnabled   *bool    `json:"ai_filtering_enabled,omitempty"`
	RelevanceThreshold   *float64 `json:"relevance_threshold,omitempty"`
	ContextAwareGrouping *bool    `json:"context_aware_grouping,omitempty"`
}

// Validate checks every supplied field
func (u *PreferenceUpdate) Validate() error {
	clocks := map[string]*string{
		"focus_mode_start_time": u.FocusModeStartTime,
		"focus_mode_end_time":   u.FocusModeEndTime,
		"work_start_time":       u.WorkStartTime,
		"work_end_time":         u.WorkEndTime,
		"daily_digest_time":     u.DailyDigestTime,
		"weekly_digest_time":    u.WeeklyDigestTime,
	}
	for field, v := range clocks {
		if v == nil {
			continue
		}
		if _, err := ParseClock(*v); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}

	for field, days := range map[string]*[]string{"focus_mode_days": u.FocusModeDays, "work_days": u.WorkDays} {
		if days == nil {
			continue
		}
		for _, d := range *days {
			if _, ok := ParseWeekday(d); !ok {
				return fmt.Errorf("%s: unknown weekday %q", field, d)
			}
		}
	}
	if u.WeeklyDigestDay != nil {
		if _, ok := ParseWeekday(*u.WeeklyDigestDay); !ok {
			return fmt.Errorf("weekly_digest_day: unknown weekday %q", *u.WeeklyDigestDay)
		}
	}

	if u.Timezone != nil {
		if _, err := time.LoadLocation(*u.Timezone); err != nil {
			return fmt.Errorf("timezone: unknown zone %q", *u.Timezone)
		}
	}
	if u.MinimumPriority != nil && !u.MinimumPriority.Valid() {
		return fmt.Errorf("minimum_priority: invalid priority %q", *u.MinimumPriority)
	}
	if u.RelevanceThreshold != nil && (*u.RelevanceThreshold < 0 || *u.RelevanceThreshold > 1) {
		return fmt.Errorf("relevance_threshold: must be within [0,1], got %v", *u.RelevanceThreshold)
	}
	return nil
}

// FieldChange is one stored field set by a partial update
type FieldChange struct {
	Field string
	Value any
}

// Changes lists the supplied fields under their stored names, in a fixed
// order. Weekday names are normalized and priorities are plain strings.
func (u *PreferenceUpdate) Changes() []FieldChange {
	var out []FieldChange
	add := func(field string, value any) {
		out = append(out, FieldChange{Field: field, Value: value})
	}
	addBool := func(field string, v *bool) {
		if v != nil {
			add(field, *v)
		}
	}
	addString := func(field string, v *string) {
		if v != nil {
			add(field, *v)
		}
	}
	addDays := func(field string, v *[]string) {
		if v != nil {
			add(field, normalizeDays(*v))
		}
	}

	addBool("enabled", u.Enabled)
	addBool("focus_mode_enabled", u.FocusModeEnabled)
	addString("focus_mode_start_time", u.FocusModeStartTime)
	addString("focus_mode_end_time", u.FocusModeEndTime)
	addDays("focus_mode_days", u.FocusModeDays)

	addString("work_start_time", u.WorkStartTime)
	addString("work_end_time", u.WorkEndTime)
	addDays("work_days", u.WorkDays)
	addString("timezone", u.Timezone)

	addBool("urgent_only_mode", u.UrgentOnlyMode)
	if u.MinimumPriority != nil {
		add("minimum_priority", string(*u.MinimumPriority))
	}

	addBool("daily_digest_enabled", u.DailyDigestEnabled)
	addString("daily_digest_time", u.DailyDigestTime)
	addBool("weekly_digest_enabled", u.WeeklyDigestEnabled)
	if u.WeeklyDigestDay != nil {
		add("weekly_digest_day", strings.ToLower(strings.TrimSpace(*u.WeeklyDigestDay)))
	}
	addString("weekly_digest_time", u.WeeklyDigestTime)

	addBool("ai_filtering_enabled", u.AIFilteringEnabled)
	if u.RelevanceThreshold != nil {
		add("relevance_threshold", *u.RelevanceThreshold)
	}
	addBool("context_aware_grouping", u.ContextAwareGrouping)
	return out
}

func normalizeDays(days []string) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, strings.ToLower(strings.TrimSpace(d)))
	}
	return out
}
