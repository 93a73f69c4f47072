package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vhvplatform/go-smart-notification-service/internal/domain"
	apperrors "github.com/vhvplatform/go-smart-notification-service/internal/shared/errors"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/mongodb"
)

const focusBlocksCollection = "focus_blocks"

// FocusBlockRepository handles focus block data operations
type FocusBlockRepository struct {
	client *mongodb.MongoClient
}

// NewFocusBlockRepository creates a new focus block repository
func NewFocusBlockRepository(client *mongodb.MongoClient) *FocusBlockRepository {
	return &FocusBlockRepository{client: client}
}

// EnsureIndexes creates the owner/end index used by the suppression gate
func (r *FocusBlockRepository) EnsureIndexes(ctx context.Context) error {
	return r.client.CreateIndexes(ctx, focusBlocksCollection, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "end_time", Value: 1},
			},
			Options: options.Index().SetName("owner_end_idx"),
		},
	})
}

// Create inserts a focus block
func (r *FocusBlockRepository) Create(ctx context.Context, b *domain.FocusBlock) error {
	if _, err := r.client.Collection(focusBlocksCollection).InsertOne(ctx, b); err != nil {
		return fmt.Errorf("creating focus block: %w", err)
	}
	return nil
}

// FindActive returns blocks of (userID, orgID) with start <= now < end, earliest end first
func (r *FocusBlockRepository) FindActive(ctx context.Context, userID, orgID string, now time.Time) ([]*domain.FocusBlock, error) {
	filter := bson.M{
		"user_id":         userID,
		"organization_id": orgID,
		"start_time":      bson.M{"$lte": now},
		"end_time":        bson.M{"$gt": now},
	}
	return r.find(ctx, filter, bson.D{{Key: "end_time", Value: 1}})
}

// List returns the owner's blocks, latest start first. Past blocks are omitted unless includePast is set.
func (r *FocusBlockRepository) List(ctx context.Context, userID, orgID string, includePast bool, now time.Time) ([]*domain.FocusBlock, error) {
	filter := bson.M{"user_id": userID, "organization_id": orgID}
	if !includePast {
		filter["end_time"] = bson.M{"$gt": now}
	}
	return r.find(ctx, filter, bson.D{{Key: "start_time", Value: -1}})
}

func (r *FocusBlockRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]*domain.FocusBlock, error) {
	cursor, err := r.client.Collection(focusBlocksCollection).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("querying focus blocks: %w", err)
	}
	defer cursor.Close(ctx)

	blocks := []*domain.FocusBlock{}
	if err := cursor.All(ctx, &blocks); err != nil {
		return nil, fmt.Errorf("decoding focus blocks: %w", err)
	}
	return blocks, nil
}

// Delete removes a block owned by (userID, orgID)
func (r *FocusBlockRepository) Delete(ctx context.Context, id, userID, orgID string) error {
	res, err := r.client.Collection(focusBlocksCollection).DeleteOne(ctx, ownerFilter(id, userID, orgID))
	if err != nil {
		return fmt.Errorf("deleting focus block %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NewNotFoundError("Focus block not found", nil)
	}
	return nil
}
