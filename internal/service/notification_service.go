package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	"github.com/vhvplatform/go-smart-notification-service/internal/focus"
	"github.com/vhvplatform/go-smart-notification-service/internal/metrics"
	"github.com/vhvplatform/go-smart-notification-service/internal/relevance"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
)

// Field limits for created notifications
const (
	maxTitleLength            = 255
	maxShortDescriptionLength = 500
	maxCategoryLength         = 100
	maxSourceLength           = 100
	maxThreadDepth            = 64
)

// NotificationService handles notification business logic
type NotificationService struct {
	store      NotificationStore
	prefs      *PreferenceService
	gate       *focus.Gate
	analytics  AnalyticsStore
	dispatcher Dispatcher
	log        *logger.Logger
	now        func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(store NotificationStore, prefs *PreferenceService, gate *focus.Gate, analytics AnalyticsStore,
	dispatcher Dispatcher, log *logger.Logger, now func() time.Time) *NotificationService {
	return &NotificationService{
		store:      store,
		prefs:      prefs,
		gate:       gate,
		analytics:  analytics,
		dispatcher: dispatcher,
		log:        log,
		now:        now,
	}
}

// Create validates req, applies the focus block gate, persists the notification
// for req.UserID in orgID and hands it to the dispatcher
func (s *NotificationService) Create(ctx context.Context, orgID string, req *domain.CreateNotificationRequest) (*domain.Notification, error) {
	now := s.now().UTC()
	n, err := s.build(orgID, req, now)
	if err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, n); err != nil {
		return nil, err
	}

	resumeAt, err := s.gate.ResumeAt(ctx, n.UserID, orgID, now)
	if err != nil {
		return nil, err
	}
	if resumeAt != nil {
		n.ScheduledFor = resumeAt
		metrics.NotificationsSuppressed.Inc()
	}

	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type), string(n.Priority)).Inc()
	s.log.Info("Notification created",
		"notification_id", n.ID, "user_id", n.UserID, "tenant_id", orgID,
		"type", n.Type, "priority", n.Priority, "deferred", n.ScheduledFor != nil)

	s.dispatcher.Enqueue(n)
	return n, nil
}

func (s *NotificationService) build(orgID string, req *domain.CreateNotificationRequest, now time.Time) (*domain.Notification, error) {
	switch {
	case req.UserID == "":
		return nil, apperrors.NewValidationError("user_id is required", nil)
	case req.Title == "":
		return nil, apperrors.NewValidationError("title is required", nil)
	case req.Message == "":
		return nil, apperrors.NewValidationError("message is required", nil)
	}
	for field, limit := range map[string]struct {
		value string
		max   int
	}{
		"title":             {req.Title, maxTitleLength},
		"short_description": {req.ShortDescription, maxShortDescriptionLength},
		"category":          {req.Category, maxCategoryLength},
		"source":            {req.Source, maxSourceLength},
	} {
		if utf8.RuneCountInString(limit.value) > limit.max {
			return nil, apperrors.NewValidationError(fmt.Sprintf("%s exceeds %d characters", field, limit.max), nil)
		}
	}

	if !req.Type.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid notification_type %q", req.Type), nil)
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid priority %q", req.Priority), nil)
	}

	score := domain.DefaultRelevanceScore
	if req.RelevanceScore != nil {
		score = *req.RelevanceScore
		if score < 0 || score > 1 {
			return nil, apperrors.NewValidationError("relevance_score must be within [0,1]", nil)
		}
	}

	channels := req.DeliveryChannels
	if len(channels) == 0 {
		channels = []domain.Channel{domain.ChannelInApp}
	}
	for _, c := range channels {
		if !c.Valid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid delivery channel %q", c), nil)
		}
	}

	if req.ScheduledFor != nil && req.ScheduledFor.Before(now) {
		return nil, apperrors.NewValidationError("scheduled_for must not be in the past", nil)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, apperrors.NewValidationError("expires_at must be in the future", nil)
	}

	timezoneAware := true
	if req.TimezoneAware != nil {
		timezoneAware = *req.TimezoneAware
	}
	contextData := req.ContextData
	if contextData == nil {
		contextData = map[string]any{}
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	return &domain.Notification{
		ID:                   uuid.NewString(),
		UserID:               req.UserID,
		OrganizationID:       orgID,
		Title:                req.Title,
		Message:              req.Message,
		ShortDescription:     req.ShortDescription,
		Category:             req.Category,
		Type:                 req.Type,
		Priority:             priority,
		ProjectID:            req.ProjectID,
		TaskID:               req.TaskID,
		ContextCardID:        req.ContextCardID,
		DecisionLogID:        req.DecisionLogID,
		HandoffSummaryID:     req.HandoffSummaryID,
		RelevanceScore:       score,
		ContextData:          contextData,
		ActionRequired:       req.ActionRequired,
		AutoGenerated:        req.AutoGenerated,
		DeliveryChannels:     channels,
		ScheduledFor:         utcPtr(req.ScheduledFor),
		TimezoneAware:        timezoneAware,
		WorkHoursOnly:        req.WorkHoursOnly,
		DeliveredChannels:    []domain.Channel{},
		FailedChannels:       []domain.Channel{},
		ThreadID:             req.ThreadID,
		ParentNotificationID: req.ParentNotificationID,
		Source:               req.Source,
		Tags:                 tags,
		ExpiresAt:            utcPtr(req.ExpiresAt),
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// checkParent requires the parent to exist in the same scope and its ancestor
// chain to be acyclic and free of n
func (s *NotificationService) checkParent(ctx context.Context, n *domain.Notification) error {
	seen := map[string]struct{}{n.ID: {}}
	parentID := n.ParentNotificationID
	for depth := 0; parentID != ""; depth++ {
		if depth >= maxThreadDepth {
			return apperrors.NewValidationError("notification thread is too deep", nil)
		}
		if _, dup := seen[parentID]; dup {
			return apperrors.NewValidationError("parent_notification_id would create a cycle", nil)
		}
		seen[parentID] = struct{}{}

		parent, err := s.store.FindByID(ctx, parentID, n.UserID, n.OrganizationID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewValidationError("parent notification not found", err)
		}
		if err != nil {
			return err
		}
		parentID = parent.ParentNotificationID
	}
	return nil
}

// List returns the caller's notifications after the relevance pipeline
func (s *NotificationService) List(ctx context.Context, userID, orgID string, req domain.ListNotificationsRequest) (*domain.NotificationListResponse, error) {
	now := s.now().UTC()
	prefs, err := s.prefs.GetOrCreate(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	items, _, err := s.store.Query(ctx, domain.NotificationFilter{
		UserID:         userID,
		OrganizationID: orgID,
		UnreadOnly:     req.UnreadOnly,
		Priority:       req.Priority,
		Type:           req.Type,
		ProjectID:      req.ProjectID,
		Visible:        &now,
	}, domain.Pagination{})
	if err != nil {
		return nil, err
	}

	return relevance.List(items, relevance.Listing{
		Request:       req,
		Preferences:   prefs,
		Now:           now,
		StandingFocus: focus.InStandingWindow(prefs, now),
	}), nil
}

// Get returns one of the caller's notifications
func (s *NotificationService) Get(ctx context.Context, id, userID, orgID string) (*domain.Notification, error) {
	return s.store.FindByID(ctx, id, userID, orgID)
}

// MarkRead marks one notification read and records when it was first opened
func (s *NotificationService) MarkRead(ctx context.Context, id, userID, orgID string) (*domain.Notification, error) {
	read := true
	n, err := s.store.UpdateStatus(ctx, id, userID, orgID, domain.StatusPatch{Read: &read}, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.recordOpened(ctx, n); err != nil {
		s.log.Warn("Failed to record notification open", "notification_id", id, "tenant_id", orgID, "error", err)
	}
	return n, nil
}

// MarkManyRead marks the given ids read and returns how many changed
func (s *NotificationService) MarkManyRead(ctx context.Context, ids []string, userID, orgID string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperrors.NewValidationError("notification_ids is required", nil)
	}
	return s.store.MarkRead(ctx, ids, userID, orgID, s.now().UTC())
}

// MarkAllRead marks every unread notification of the caller read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID, orgID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID, orgID, s.now().UTC())
}

// Dismiss marks a notification dismissed
func (s *NotificationService) Dismiss(ctx context.Context, id, userID, orgID string) (*domain.Notification, error) {
	dismissed := true
	return s.store.UpdateStatus(ctx, id, userID, orgID, domain.StatusPatch{Dismissed: &dismissed}, s.now().UTC())
}

// MarkActionTaken records that the caller acted on a notification
func (s *NotificationService) MarkActionTaken(ctx context.Context, id, userID, orgID string) (*domain.Notification, error) {
	taken := true
	return s.store.UpdateStatus(ctx, id, userID, orgID, domain.StatusPatch{ActionTaken: &taken}, s.now().UTC())
}

// Delete removes one of the caller's notifications
func (s *NotificationService) Delete(ctx context.Context, id, userID, orgID string) error {
	return s.store.Delete(ctx, id, userID, orgID)
}

// SubmitFeedback stores the caller's assessment of a notification
func (s *NotificationService) SubmitFeedback(ctx context.Context, id, userID, orgID string, fb domain.Feedback) error {
	if fb.RelevanceFeedback != nil && (*fb.RelevanceFeedback < 0 || *fb.RelevanceFeedback > 1) {
		return apperrors.NewValidationError("relevance_feedback must be within [0,1]", nil)
	}
	if fb.UserRating != nil && (*fb.UserRating < 1 || *fb.UserRating > 5) {
		return apperrors.NewValidationError("user_rating must be between 1 and 5", nil)
	}

	n, err := s.store.FindByID(ctx, id, userID, orgID)
	if err != nil {
		return err
	}
	a, err := s.analyticsFor(ctx, n)
	if err != nil {
		return err
	}
	if fb.RelevanceFeedback != nil {
		a.RelevanceFeedback = fb.RelevanceFeedback
	}
	if fb.UserRating != nil {
		a.UserRating = fb.UserRating
	}
	if fb.MarkedAsSpam != nil && *fb.MarkedAsSpam {
		a.MarkedAsSpam = true
	}
	a.UpdatedAt = s.now().UTC()
	return s.analytics.Save(ctx, a)
}

func (s *NotificationService) recordOpened(ctx context.Context, n *domain.Notification) error {
	a, err := s.analyticsFor(ctx, n)
	if err != nil {
		return err
	}
	if a.OpenedAt != nil {
		return nil
	}
	opened := s.now().UTC()
	if n.ReadAt != nil {
		opened = *n.ReadAt
	}
	seconds := int(opened.Sub(n.CreatedAt).Seconds())
	a.OpenedAt = &opened
	a.TimeToOpenSeconds = &seconds
	a.ChannelUsed = domain.ChannelInApp
	a.UpdatedAt = opened
	return s.analytics.Save(ctx, a)
}

func (s *NotificationService) analyticsFor(ctx context.Context, n *domain.Notification) (*domain.NotificationAnalytics, error) {
	a, err := s.analytics.FindByNotification(ctx, n.ID, n.UserID, n.OrganizationID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	now := s.now().UTC()
	return &domain.NotificationAnalytics{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		UserID:         n.UserID,
		OrganizationID: n.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
