// internal/app/store/levelhistory/levelhistorystore.go
package levelhistorystore

import (
	"context"
	"time"

	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("level_history")}
}

// Append records one level change. History is append-only.
func (s *Store) Append(ctx context.Context, h models.LevelHistory) error {
	h.ID = primitive.NewObjectID()
	h.CreatedAt = time.Now().UTC()
	_, err := s.c.InsertOne(ctx, h)
	return err
}

// ListByUser returns a user's level changes, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.LevelHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.LevelHistory
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
