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

const analyticsCollection = "notification_analytics"

// AnalyticsRepository handles per-notification engagement records
type AnalyticsRepository struct {
	client *mongodb.MongoClient
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(client *mongodb.MongoClient) *AnalyticsRepository {
	return &AnalyticsRepository{client: client}
}

// EnsureIndexes creates the analytics indexes
func (r *AnalyticsRepository) EnsureIndexes(ctx context.Context) error {
	return r.client.CreateIndexes(ctx, analyticsCollection, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "notification_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetName("notification_user_unique_idx").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("owner_created_idx"),
		},
	})
}

// FindByNotification returns the record for one notification of (userID, orgID)
func (r *AnalyticsRepository) FindByNotification(ctx context.Context, notificationID, userID, orgID string) (*domain.NotificationAnalytics, error) {
	var a domain.NotificationAnalytics
	filter := bson.M{"notification_id": notificationID, "user_id": userID, "organization_id": orgID}
	err := r.client.Collection(analyticsCollection).FindOne(ctx, filter).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NewNotFoundError("Analytics not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("getting analytics for %s: %w", notificationID, err)
	}
	return &a, nil
}

// Save inserts or replaces the record for a (notification, user) pair
func (r *AnalyticsRepository) Save(ctx context.Context, a *domain.NotificationAnalytics) error {
	filter := bson.M{"notification_id": a.NotificationID, "user_id": a.UserID}
	_, err := r.client.Collection(analyticsCollection).ReplaceOne(ctx, filter, a, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving analytics for %s: %w", a.NotificationID, err)
	}
	return nil
}

// ListSince returns the owner's records created at or after since
func (r *AnalyticsRepository) ListSince(ctx context.Context, userID, orgID string, since time.Time) ([]*domain.NotificationAnalytics, error) {
	filter := bson.M{"user_id": userID, "organization_id": orgID, "created_at": bson.M{"$gte": since}}
	cursor, err := r.client.Collection(analyticsCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing analytics: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*domain.NotificationAnalytics{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decoding analytics: %w", err)
	}
	return records, nil
}
