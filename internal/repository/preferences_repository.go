package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/mongodb"
)

const preferencesCollection = "notification_preferences"

// PreferencesRepository handles notification preferences data operations
type PreferencesRepository struct {
	client *mongodb.MongoClient
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(client *mongodb.MongoClient) *PreferencesRepository {
	return &PreferencesRepository{client: client}
}

// EnsureIndexes enforces one preference record per (organization, user)
func (r *PreferencesRepository) EnsureIndexes(ctx context.Context) error {
	return r.client.CreateIndexes(ctx, preferencesCollection, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetName("owner_unique_idx").SetUnique(true),
		},
	})
}

// Get retrieves preferences for a specific user
func (r *PreferencesRepository) Get(ctx context.Context, userID, orgID string) (*domain.NotificationPreference, error) {
	var prefs domain.NotificationPreference
	filter := bson.M{"organization_id": orgID, "user_id": userID}
	err := r.client.Collection(preferencesCollection).FindOne(ctx, filter).Decode(&prefs)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NewNotFoundError("Preferences not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("getting preferences for %s: %w", userID, err)
	}
	return &prefs, nil
}

// Create inserts preferences. A concurrent insert for the same owner yields CONFLICT.
func (r *PreferencesRepository) Create(ctx context.Context, prefs *domain.NotificationPreference) error {
	_, err := r.client.Collection(preferencesCollection).InsertOne(ctx, prefs)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.NewConflictError("Preferences already exist", err)
	}
	if err != nil {
		return fmt.Errorf("creating preferences for %s: %w", prefs.UserID, err)
	}
	return nil
}

// Update sets the supplied fields of the (userID, orgID) record and returns the result
func (r *PreferencesRepository) Update(ctx context.Context, userID, orgID string, u *domain.PreferenceUpdate, now time.Time) (*domain.NotificationPreference, error) {
	filter := bson.M{"organization_id": orgID, "user_id": userID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var prefs domain.NotificationPreference
	err := r.client.Collection(preferencesCollection).
		FindOneAndUpdate(ctx, filter, preferenceSetDocument(u, now), opts).
		Decode(&prefs)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NewNotFoundError("Preferences not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("updating preferences for %s: %w", userID, err)
	}
	return &prefs, nil
}

func preferenceSetDocument(u *domain.PreferenceUpdate, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	for _, c := range u.Changes() {
		set[c.Field] = c.Value
	}
	return bson.M{"$set": set}
}
