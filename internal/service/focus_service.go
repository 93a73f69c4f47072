package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/focus"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// FocusService manages focus blocks and the focus mode flag
type FocusService struct {
	blocks FocusBlockStore
	prefs  *PreferenceService
	log    *logger.Logger
	now    func() time.Time
}

// NewFocusService creates a new focus service
func NewFocusService(blocks FocusBlockStore, prefs *PreferenceService, log *logger.Logger, now func() time.Time) *FocusService {
	return &FocusService{blocks: blocks, prefs: prefs, log: log, now: now}
}

// CreateBlock stores an explicit suppression interval
func (s *FocusService) CreateBlock(ctx context.Context, userID, orgID string, req *domain.CreateFocusBlockRequest) (*domain.FocusBlock, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, apperrors.NewValidationError("end_time must be after start_time", nil)
	}
	tz := req.Timezone
	if tz == "" {
		tz = domain.DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid timezone %q", tz), err)
	}

	b := &domain.FocusBlock{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: orgID,
		StartTime:      req.StartTime.UTC(),
		EndTime:        req.EndTime.UTC(),
		Timezone:       tz,
		Reason:         req.Reason,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.blocks.Create(ctx, b); err != nil {
		return nil, err
	}
	s.log.Info("Focus block created", "user_id", userID, "tenant_id", orgID, "start", b.StartTime, "end", b.EndTime)
	return b, nil
}

// ListBlocks returns the caller's blocks, newest start first
func (s *FocusService) ListBlocks(ctx context.Context, userID, orgID string, includePast bool) ([]*domain.FocusBlock, error) {
	return s.blocks.List(ctx, userID, orgID, includePast, s.now().UTC())
}

// DeleteBlock removes one of the caller's blocks
func (s *FocusService) DeleteBlock(ctx context.Context, id, userID, orgID string) error {
	return s.blocks.Delete(ctx, id, userID, orgID)
}

// Enable turns focus mode on. A duration additionally creates a block starting now.
func (s *FocusService) Enable(ctx context.Context, userID, orgID string, req *domain.EnableFocusModeRequest) (*domain.FocusModeStatus, error) {
	if req.DurationMinutes != nil {
		if d := *req.DurationMinutes; d < domain.MinFocusMinutes || d > domain.MaxFocusMinutes {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("duration_minutes must be between %d and %d", domain.MinFocusMinutes, domain.MaxFocusMinutes), nil)
		}
	}

	prefs, err := s.prefs.setFocusMode(ctx, userID, orgID, true)
	if err != nil {
		return nil, err
	}

	status := &domain.FocusModeStatus{FocusModeEnabled: true, Message: "Focus mode enabled"}
	if req.DurationMinutes != nil {
		now := s.now().UTC()
		b, err := s.CreateBlock(ctx, userID, orgID, &domain.CreateFocusBlockRequest{
			StartTime: now,
			EndTime:   now.Add(time.Duration(*req.DurationMinutes) * time.Minute),
			Timezone:  prefs.Timezone,
			Reason:    "Focus mode",
		})
		if err != nil {
			return nil, err
		}
		status.ActiveUntil = &b.EndTime
		status.Message = fmt.Sprintf("Focus mode enabled for %d minutes", *req.DurationMinutes)
	}
	return status, nil
}

// Disable clears the focus mode flag. Existing blocks stay in force.
func (s *FocusService) Disable(ctx context.Context, userID, orgID string) (*domain.FocusModeStatus, error) {
	if _, err := s.prefs.setFocusMode(ctx, userID, orgID, false); err != nil {
		return nil, err
	}
	return &domain.FocusModeStatus{FocusModeEnabled: false, Message: "Focus mode disabled"}, nil
}

// Status reports the focus mode flag and the end of the current suppression, if any
func (s *FocusService) Status(ctx context.Context, userID, orgID string) (*domain.FocusModeStatus, error) {
	prefs, err := s.prefs.GetOrCreate(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	active, err := s.blocks.FindActive(ctx, userID, orgID, now)
	if err != nil {
		return nil, err
	}
	status := &domain.FocusModeStatus{
		FocusModeEnabled: prefs.FocusModeEnabled,
		ActiveUntil:      focus.EarliestEnd(active, now),
		Message:          "Focus mode disabled",
	}
	if focus.InStandingWindow(prefs, now) || status.ActiveUntil != nil {
		status.Message = "Focus mode active"
	} else if prefs.FocusModeEnabled {
		status.Message = "Focus mode enabled"
	}
	return status, nil
}
