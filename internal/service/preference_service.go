package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// PreferenceService resolves and updates notification preferences
type PreferenceService struct {
	store PreferenceStore
	log   *logger.Logger
	now   func() time.Time
}

// NewPreferenceService creates a new preference service
func NewPreferenceService(store PreferenceStore, log *logger.Logger, now func() time.Time) *PreferenceService {
	return &PreferenceService{store: store, log: log, now: now}
}

// GetOrCreate returns the stored preferences, persisting defaults on first access
func (s *PreferenceService) GetOrCreate(ctx context.Context, userID, orgID string) (*domain.NotificationPreference, error) {
	prefs, err := s.store.Get(ctx, userID, orgID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	prefs = domain.DefaultPreference(uuid.NewString(), userID, orgID, s.now().UTC())
	if err := s.store.Create(ctx, prefs); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// created concurrently
			return s.store.Get(ctx, userID, orgID)
		}
		return nil, err
	}
	s.log.Info("Created default notification preferences", "user_id", userID, "tenant_id", orgID)
	return prefs, nil
}

// Update merges the supplied fields into the stored preferences
func (s *PreferenceService) Update(ctx context.Context, userID, orgID string, update *domain.PreferenceUpdate) (*domain.NotificationPreference, error) {
	if err := update.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), err)
	}

	if _, err := s.GetOrCreate(ctx, userID, orgID); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, userID, orgID, update, s.now().UTC())
}

// setFocusMode flips the standing focus mode flag
func (s *PreferenceService) setFocusMode(ctx context.Context, userID, orgID string, enabled bool) (*domain.NotificationPreference, error) {
	return s.Update(ctx, userID, orgID, &domain.PreferenceUpdate{FocusModeEnabled: &enabled})
}
