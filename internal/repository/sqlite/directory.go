package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Directory reads the organization and user registry kept by the platform
type Directory struct {
	db *sqlx.DB
}

// Directory returns the directory backed by s
func (s *Store) Directory() *Directory {
	return &Directory{db: s.db}
}

// ActiveOrganizations returns ids of active organizations
func (d *Directory) ActiveOrganizations(ctx context.Context) ([]string, error) {
	var ids []string
	if err := d.db.SelectContext(ctx, &ids, "SELECT id FROM organizations WHERE is_active = 1 ORDER BY id"); err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	return ids, nil
}

// ActiveUsers returns ids of active users in orgID
func (d *Directory) ActiveUsers(ctx context.Context, orgID string) ([]string, error) {
	var ids []string
	err := d.db.SelectContext(ctx, &ids,
		"SELECT id FROM users WHERE organization_id = ? AND is_active = 1 ORDER BY id", orgID)
	if err != nil {
		return nil, fmt.Errorf("listing users of %s: %w", orgID, err)
	}
	return ids, nil
}

// UpsertOrganization registers or updates an organization
func (d *Directory) UpsertOrganization(ctx context.Context, id string, active bool) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO organizations (id, is_active) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET is_active = excluded.is_active`, id, active)
	if err != nil {
		return fmt.Errorf("upserting organization %s: %w", id, err)
	}
	return nil
}

// UpsertUser registers or updates a user membership
func (d *Directory) UpsertUser(ctx context.Context, id, orgID string, active bool) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, is_active) VALUES (?, ?, ?)
		ON CONFLICT(organization_id, id) DO UPDATE SET is_active = excluded.is_active`, id, orgID, active)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", id, err)
	}
	return nil
}
