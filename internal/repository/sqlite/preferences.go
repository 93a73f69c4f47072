package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
)

// PreferenceStore persists notification preferences in SQLite
type PreferenceStore struct {
	db *sqlx.DB
}

// Preferences returns the preference store backed by s
func (s *Store) Preferences() *PreferenceStore {
	return &PreferenceStore{db: s.db}
}

type preferenceRow struct {
	ID                   string  `db:"id"`
	UserID               string  `db:"user_id"`
	OrganizationID       string  `db:"organization_id"`
	Enabled              bool    `db:"enabled"`
	FocusModeEnabled     bool    `db:"focus_mode_enabled"`
	FocusModeStartTime   string  `db:"focus_mode_start_time"`
	FocusModeEndTime     string  `db:"focus_mode_end_time"`
	FocusModeDays        string  `db:"focus_mode_days"`
	WorkStartTime        string  `db:"work_start_time"`
	WorkEndTime          string  `db:"work_end_time"`
	WorkDays             string  `db:"work_days"`
	Timezone             string  `db:"timezone"`
	UrgentOnlyMode       bool    `db:"urgent_only_mode"`
	MinimumPriority      string  `db:"minimum_priority"`
	DailyDigestEnabled   bool    `db:"daily_digest_enabled"`
	DailyDigestTime      string  `db:"daily_digest_time"`
	WeeklyDigestEnabled  bool    `db:"weekly_digest_enabled"`
	WeeklyDigestDay      string  `db:"weekly_digest_day"`
	WeeklyDigestTime     string  `db:"weekly_digest_time"`
	AIFilteringEnabled   bool    `db:"ai_filtering_enabled"`
	RelevanceThreshold   float64 `db:"relevance_threshold"`
	ContextAwareGrouping bool    `db:"context_aware_grouping"`
	CreatedAt            int64   `db:"created_at"`
	UpdatedAt            int64   `db:"updated_at"`
}

func toPreferenceRow(p *domain.NotificationPreference) (*preferenceRow, error) {
	focusDays, err := encodeJSON(nonNilStrings(p.FocusModeDays))
	if err != nil {
		return nil, fmt.Errorf("marshaling focus_mode_days: %w", err)
	}
	workDays, err := encodeJSON(nonNilStrings(p.WorkDays))
	if err != nil {
		return nil, fmt.Errorf("marshaling work_days: %w", err)
	}
	return &preferenceRow{
		ID:                   p.ID,
		UserID:               p.UserID,
		OrganizationID:       p.OrganizationID,
		Enabled:              p.Enabled,
		FocusModeEnabled:     p.FocusModeEnabled,
		FocusModeStartTime:   p.FocusModeStartTime,
		FocusModeEndTime:     p.FocusModeEndTime,
		FocusModeDays:        focusDays,
		WorkStartTime:        p.WorkStartTime,
		WorkEndTime:          p.WorkEndTime,
		WorkDays:             workDays,
		Timezone:             p.Timezone,
		UrgentOnlyMode:       p.UrgentOnlyMode,
		MinimumPriority:      string(p.MinimumPriority),
		DailyDigestEnabled:   p.DailyDigestEnabled,
		DailyDigestTime:      p.DailyDigestTime,
		WeeklyDigestEnabled:  p.WeeklyDigestEnabled,
		WeeklyDigestDay:      p.WeeklyDigestDay,
		WeeklyDigestTime:     p.WeeklyDigestTime,
		AIFilteringEnabled:   p.AIFilteringEnabled,
		RelevanceThreshold:   p.RelevanceThreshold,
		ContextAwareGrouping: p.ContextAwareGrouping,
		CreatedAt:            toMillis(p.CreatedAt),
		UpdatedAt:            toMillis(p.UpdatedAt),
	}, nil
}

func (r *preferenceRow) toDomain() (*domain.NotificationPreference, error) {
	p := &domain.NotificationPreference{
		ID:                   r.ID,
		UserID:               r.UserID,
		OrganizationID:       r.OrganizationID,
		Enabled:              r.Enabled,
		FocusModeEnabled:     r.FocusModeEnabled,
		FocusModeStartTime:   r.FocusModeStartTime,
		FocusModeEndTime:     r.FocusModeEndTime,
		FocusModeDays:        []string{},
		WorkStartTime:        r.WorkStartTime,
		WorkEndTime:          r.WorkEndTime,
		WorkDays:             []string{},
		Timezone:             r.Timezone,
		UrgentOnlyMode:       r.UrgentOnlyMode,
		MinimumPriority:      domain.NotificationPriority(r.MinimumPriority),
		DailyDigestEnabled:   r.DailyDigestEnabled,
		DailyDigestTime:      r.DailyDigestTime,
		WeeklyDigestEnabled:  r.WeeklyDigestEnabled,
		WeeklyDigestDay:      r.WeeklyDigestDay,
		WeeklyDigestTime:     r.WeeklyDigestTime,
		AIFilteringEnabled:   r.AIFilteringEnabled,
		RelevanceThreshold:   r.RelevanceThreshold,
		ContextAwareGrouping: r.ContextAwareGrouping,
		CreatedAt:            fromMillis(r.CreatedAt),
		UpdatedAt:            fromMillis(r.UpdatedAt),
	}
	if err := decodeJSON(r.FocusModeDays, &p.FocusModeDays); err != nil {
		return nil, fmt.Errorf("unmarshaling focus_mode_days: %w", err)
	}
	if err := decodeJSON(r.WorkDays, &p.WorkDays); err != nil {
		return nil, fmt.Errorf("unmarshaling work_days: %w", err)
	}
	return p, nil
}

// Get returns the preference record for (userID, orgID)
func (s *PreferenceStore) Get(ctx context.Context, userID, orgID string) (*domain.NotificationPreference, error) {
	var row preferenceRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM notification_preferences WHERE user_id = ? AND organization_id = ?",
		userID, orgID)
	if isNoRows(err) {
		return nil, apperrors.NewNotFoundError("Preferences not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("getting preferences for %s: %w", userID, err)
	}
	return row.toDomain()
}

// Create inserts a preference record. A concurrent insert for the same owner yields CONFLICT.
func (s *PreferenceStore) Create(ctx context.Context, p *domain.NotificationPreference) error {
	row, err := toPreferenceRow(p)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO notification_preferences (
			id, user_id, organization_id, enabled, focus_mode_enabled, focus_mode_start_time,
			focus_mode_end_time, focus_mode_days, work_start_time, work_end_time, work_days,
			timezone, urgent_only_mode, minimum_priority, daily_digest_enabled, daily_digest_time,
			weekly_digest_enabled, weekly_digest_day, weekly_digest_time, ai_filtering_enabled,
			relevance_threshold, context_aware_grouping, created_at, updated_at
		) VALUES (
			:id, :user_id, :organization_id, :enabled, :focus_mode_enabled, :focus_mode_start_time,
			:focus_mode_end_time, :focus_mode_days, :work_start_time, :work_end_time, :work_days,
			:timezone, :urgent_only_mode, :minimum_priority, :daily_digest_enabled, :daily_digest_time,
			:weekly_digest_enabled, :weekly_digest_day, :weekly_digest_time, :ai_filtering_enabled,
			:relevance_threshold, :context_aware_grouping, :created_at, :updated_at
		)`, row)
	if isUniqueViolation(err) {
		return apperrors.NewConflictError("Preferences already exist", err)
	}
	if err != nil {
		return fmt.Errorf("creating preferences for %s: %w", p.UserID, err)
	}
	return nil
}

// Update sets the supplied fields of the (userID, orgID) record and returns
// the result. The write and the read back share one transaction.
func (s *PreferenceStore) Update(ctx context.Context, userID, orgID string, u *domain.PreferenceUpdate, now time.Time) (*domain.NotificationPreference, error) {
	sets := []string{"updated_at = ?"}
	args := []any{toMillis(now)}
	for _, c := range u.Changes() {
		value := c.Value
		if days, ok := value.([]string); ok {
			encoded, err := encodeJSON(days)
			if err != nil {
				return nil, fmt.Errorf("marshaling %s: %w", c.Field, err)
			}
			value = encoded
		}
		sets = append(sets, c.Field+" = ?")
		args = append(args, value)
	}
	args = append(args, userID, orgID)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning preferences update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE notification_preferences SET "+strings.Join(sets, ", ")+
			" WHERE user_id = ? AND organization_id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating preferences for %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NewNotFoundError("Preferences not found", nil)
	}

	var row preferenceRow
	if err := tx.GetContext(ctx, &row,
		"SELECT * FROM notification_preferences WHERE user_id = ? AND organization_id = ?",
		userID, orgID); err != nil {
		return nil, fmt.Errorf("reading updated preferences for %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing preferences update: %w", err)
	}
	return row.toDomain()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
