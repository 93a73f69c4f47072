package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
)

// FocusBlockStore persists focus blocks in SQLite
type FocusBlockStore struct {
	db *sqlx.DB
}

// FocusBlocks returns the focus block store backed by s
func (s *Store) FocusBlocks() *FocusBlockStore {
	return &FocusBlockStore{db: s.db}
}

type focusBlockRow struct {
	ID             string `db:"id"`
	UserID         string `db:"user_id"`
	OrganizationID string `db:"organization_id"`
	StartTime      int64  `db:"start_time"`
	EndTime        int64  `db:"end_time"`
	Timezone       string `db:"timezone"`
	Reason         string `db:"reason"`
	CreatedAt      int64  `db:"created_at"`
}

func (r *focusBlockRow) toDomain() *domain.FocusBlock {
	return &domain.FocusBlock{
		ID:             r.ID,
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		StartTime:      fromMillis(r.StartTime),
		EndTime:        fromMillis(r.EndTime),
		Timezone:       r.Timezone,
		Reason:         r.Reason,
		CreatedAt:      fromMillis(r.CreatedAt),
	}
}

// Create inserts a focus block
func (s *FocusBlockStore) Create(ctx context.Context, b *domain.FocusBlock) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO focus_blocks (id, user_id, organization_id, start_time, end_time, timezone, reason, created_at)
		VALUES (:id, :user_id, :organization_id, :start_time, :end_time, :timezone, :reason, :created_at)`,
		&focusBlockRow{
			ID:             b.ID,
			UserID:         b.UserID,
			OrganizationID: b.OrganizationID,
			StartTime:      toMillis(b.StartTime),
			EndTime:        toMillis(b.EndTime),
			Timezone:       b.Timezone,
			Reason:         b.Reason,
			CreatedAt:      toMillis(b.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("creating focus block: %w", err)
	}
	return nil
}

// FindActive returns blocks of (userID, orgID) with start <= now < end
func (s *FocusBlockStore) FindActive(ctx context.Context, userID, orgID string, now time.Time) ([]*domain.FocusBlock, error) {
	at := toMillis(now)
	return s.selectBlocks(ctx, `
		SELECT * FROM focus_blocks
		WHERE user_id = ? AND organization_id = ? AND start_time <= ? AND end_time > ?
		ORDER BY end_time`, userID, orgID, at, at)
}

// List returns the owner's blocks, latest start first. Past blocks (end <= now) are
// omitted unless includePast is set.
func (s *FocusBlockStore) List(ctx context.Context, userID, orgID string, includePast bool, now time.Time) ([]*domain.FocusBlock, error) {
	if includePast {
		return s.selectBlocks(ctx, `
			SELECT * FROM focus_blocks WHERE user_id = ? AND organization_id = ?
			ORDER BY start_time DESC`, userID, orgID)
	}
	return s.selectBlocks(ctx, `
		SELECT * FROM focus_blocks WHERE user_id = ? AND organization_id = ? AND end_time > ?
		ORDER BY start_time DESC`, userID, orgID, toMillis(now))
}

func (s *FocusBlockStore) selectBlocks(ctx context.Context, query string, args ...any) ([]*domain.FocusBlock, error) {
	var rows []focusBlockRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying focus blocks: %w", err)
	}
	out := make([]*domain.FocusBlock, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// Delete removes a block owned by (userID, orgID)
func (s *FocusBlockStore) Delete(ctx context.Context, id, userID, orgID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM focus_blocks WHERE id = ? AND user_id = ? AND organization_id = ?",
		id, userID, orgID)
	if err != nil {
		return fmt.Errorf("deleting focus block %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("Focus block not found", nil)
	}
	return nil
}
