package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/vhvplatform/go-smart-notification-service/internal/shared/mongodb"
)

// Collections owned by the platform's tenant and identity services
const (
	organizationsCollection = "organizations"
	usersCollection         = "users"
)

// DirectoryRepository reads active organizations and users
type DirectoryRepository struct {
	client *mongodb.MongoClient
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(client *mongodb.MongoClient) *DirectoryRepository {
	return &DirectoryRepository{client: client}
}

// ActiveOrganizations returns ids of active organizations
func (r *DirectoryRepository) ActiveOrganizations(ctx context.Context) ([]string, error) {
	return r.distinctIDs(ctx, organizationsCollection, bson.M{"is_active": true})
}

// ActiveUsers returns ids of active users in orgID
func (r *DirectoryRepository) ActiveUsers(ctx context.Context, orgID string) ([]string, error) {
	return r.distinctIDs(ctx, usersCollection, bson.M{"organization_id": orgID, "is_active": true})
}

func (r *DirectoryRepository) distinctIDs(ctx context.Context, collection string, filter bson.M) ([]string, error) {
	values, err := r.client.Collection(collection).Distinct(ctx, "_id", filter)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}
