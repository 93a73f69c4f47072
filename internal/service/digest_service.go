package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vhvplatform/go-smart-notification-service/internal/digest"
	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
)

// DigestService resolves digest periods in the caller's timezone. It never writes notifications.
type DigestService struct {
	generator *digest.Generator
	prefs     *PreferenceService
	now       func() time.Time
}

// NewDigestService creates a new digest service
func NewDigestService(generator *digest.Generator, prefs *PreferenceService, now func() time.Time) *DigestService {
	return &DigestService{generator: generator, prefs: prefs, now: now}
}

// Daily returns the daily digest for date (YYYY-MM-DD, empty for today)
func (s *DigestService) Daily(ctx context.Context, userID, orgID, date string) (*domain.Digest, error) {
	return s.Run(ctx, userID, orgID, domain.DigestDaily, date)
}

// Run returns the digest of the given type for the period containing date
func (s *DigestService) Run(ctx context.Context, userID, orgID string, digestType domain.DigestType, date string) (*domain.Digest, error) {
	if digestType == "" {
		digestType = domain.DigestDaily
	}
	if !digestType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid digest_type %q", digestType), nil)
	}

	prefs, err := s.prefs.GetOrCreate(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	loc := prefs.Location()

	day := s.now().In(loc)
	if date != "" {
		day, err = digest.ParseLocalDate(date, loc)
		if err != nil {
			return nil, apperrors.NewValidationError("date must be formatted YYYY-MM-DD", err)
		}
	}

	start, end := digest.Period(digestType, day, loc)
	return s.generator.Generate(ctx, userID, orgID, digestType, start, end)
}
