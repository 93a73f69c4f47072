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

const notificationsCollection = "smart_notifications"

// NotificationRepository handles notification data operations
type NotificationRepository struct {
	client *mongodb.MongoClient
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(client *mongodb.MongoClient) *NotificationRepository {
	return &NotificationRepository{client: client}
}

// EnsureIndexes creates the indexes listing, digests and deferred release rely on
func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("owner_created_idx"),
		},
		{
			Keys: bson.D{
				{Key: "scheduled_for", Value: 1},
				{Key: "delivery_attempts", Value: 1},
			},
			Options: options.Index().SetName("due_delivery_idx").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("expires_at_idx").SetSparse(true),
		},
	}
	return r.client.CreateIndexes(ctx, notificationsCollection, indexes)
}

func ownerFilter(id, userID, orgID string) bson.M {
	return bson.M{"_id": id, "user_id": userID, "organization_id": orgID}
}

// Create inserts a notification. ID and timestamps must already be assigned.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.client.Collection(notificationsCollection).InsertOne(ctx, n)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.NewConflictError("Notification already exists", err)
	}
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// FindByID finds a notification by ID within (userID, orgID).
// Records outside that scope are reported exactly like missing ones.
func (r *NotificationRepository) FindByID(ctx context.Context, id, userID, orgID string) (*domain.Notification, error) {
	var n domain.Notification
	err := r.client.Collection(notificationsCollection).FindOne(ctx, ownerFilter(id, userID, orgID)).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NewNotFoundError("Notification not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return &n, nil
}

func buildNotificationFilter(f domain.NotificationFilter) bson.M {
	filter := bson.M{"user_id": f.UserID, "organization_id": f.OrganizationID}

	if f.UnreadOnly {
		filter["is_read"] = false
	}
	if f.Priority != "" {
		filter["priority"] = f.Priority
	}
	if f.Type != "" {
		filter["notification_type"] = f.Type
	}
	if f.ProjectID != "" {
		filter["project_id"] = f.ProjectID
	}

	created := bson.M{}
	if f.CreatedFrom != nil {
		created["$gte"] = *f.CreatedFrom
	}
	if f.CreatedTo != nil {
		created["$lt"] = *f.CreatedTo
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	if f.Visible != nil {
		// a nil equality also matches documents where the field is absent
		filter["$and"] = bson.A{
			bson.M{"$or": bson.A{bson.M{"expires_at": nil}, bson.M{"expires_at": bson.M{"$gt": *f.Visible}}}},
			bson.M{"$or": bson.A{bson.M{"scheduled_for": nil}, bson.M{"scheduled_for": bson.M{"$lte": *f.Visible}}}},
		}
	}
	return filter
}

// Query returns matching notifications newest first, plus the total match count
func (r *NotificationRepository) Query(ctx context.Context, f domain.NotificationFilter, p domain.Pagination) ([]*domain.Notification, int, error) {
	filter := buildNotificationFilter(f)
	coll := r.client.Collection(notificationsCollection)

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if p.Limit > 0 {
		opts.SetSkip(int64(p.Offset)).SetLimit(int64(p.Limit))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []*domain.Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, fmt.Errorf("decoding notifications: %w", err)
	}
	return notifications, int(total), nil
}

// UpdateStatus applies a read/dismiss/action patch to a scoped notification
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id, userID, orgID string, patch domain.StatusPatch, now time.Time) (*domain.Notification, error) {
	n, err := r.FindByID(ctx, id, userID, orgID)
	if err != nil {
		return nil, err
	}
	patch.Apply(n, now)

	update := bson.M{"$set": bson.M{
		"is_read":         n.IsRead,
		"read_at":         n.ReadAt,
		"is_dismissed":    n.IsDismissed,
		"dismissed_at":    n.DismissedAt,
		"action_taken":    n.ActionTaken,
		"action_taken_at": n.ActionTakenAt,
		"updated_at":      n.UpdatedAt,
	}}
	res, err := r.client.Collection(notificationsCollection).UpdateOne(ctx, ownerFilter(id, userID, orgID), update)
	if err != nil {
		return nil, fmt.Errorf("updating notification %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return nil, apperrors.NewNotFoundError("Notification not found", nil)
	}
	return n, nil
}

// MarkRead marks the scoped subset of ids read and returns how many changed
func (r *NotificationRepository) MarkRead(ctx context.Context, ids []string, userID, orgID string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"_id":             bson.M{"$in": ids},
		"user_id":         userID,
		"organization_id": orgID,
		"is_read":         false,
	}
	update := bson.M{"$set": bson.M{"is_read": true, "read_at": now, "updated_at": now}}

	res, err := r.client.Collection(notificationsCollection).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

// MarkAllRead marks every unread notification of the owner read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID, orgID string, now time.Time) (int64, error) {
	filter := bson.M{"user_id": userID, "organization_id": orgID, "is_read": false}
	update := bson.M{"$set": bson.M{"is_read": true, "read_at": now, "updated_at": now}}

	res, err := r.client.Collection(notificationsCollection).UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

// RecordDelivery increments the attempt count and records the channel outcome.
// A nil result records an attempt that was skipped without touching a channel.
func (r *NotificationRepository) RecordDelivery(ctx context.Context, id string, result *domain.DeliveryResult, at time.Time) error {
	update := bson.M{
		"$inc": bson.M{"delivery_attempts": 1},
		"$set": bson.M{"last_delivery_attempt": at, "updated_at": at},
	}
	if result != nil {
		field := "failed_channels"
		if result.Delivered {
			field = "delivered_channels"
		}
		update["$addToSet"] = bson.M{field: result.Channel}
	}

	res, err := r.client.Collection(notificationsCollection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("recording delivery for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NewNotFoundError("Notification not found", nil)
	}
	return nil
}

// Delete removes a scoped notification
func (r *NotificationRepository) Delete(ctx context.Context, id, userID, orgID string) error {
	res, err := r.client.Collection(notificationsCollection).DeleteOne(ctx, ownerFilter(id, userID, orgID))
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NewNotFoundError("Notification not found", nil)
	}
	return nil
}

// FindDueUndelivered returns deferred notifications whose scheduled time has
// passed, that request in-app delivery and were never attempted
func (r *NotificationRepository) FindDueUndelivered(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error) {
	filter := bson.M{
		"scheduled_for":     bson.M{"$ne": nil, "$lte": now},
		"delivery_attempts": 0,
		"delivery_channels": domain.ChannelInApp,
		"$or":               bson.A{bson.M{"expires_at": nil}, bson.M{"expires_at": bson.M{"$gt": now}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_for", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.client.Collection(notificationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying due notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []*domain.Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("decoding due notifications: %w", err)
	}
	return notifications, nil
}
