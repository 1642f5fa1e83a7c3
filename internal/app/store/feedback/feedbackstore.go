// internal/app/store/feedback/feedbackstore.go
package feedbackstore

import (
	"context"
	"errors"
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
	return &Store{c: db.Collection("feedback")}
}

var errBadRating = errors.New("rating must be between 1 and 5")

// Create stores one feedback entry.
func (s *Store) Create(ctx context.Context, fb models.Feedback) (models.Feedback, error) {
	if fb.Rating < 1 || fb.Rating > 5 {
		return models.Feedback{}, errBadRating
	}
	fb.ID = primitive.NewObjectID()
	fb.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, fb); err != nil {
		return models.Feedback{}, err
	}
	return fb, nil
}

// ListBySession returns a session's feedback, oldest first.
func (s *Store) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]models.Feedback, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Feedback
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByAuthor returns the feedback a user submitted for one session,
// oldest first.
func (s *Store) ListByAuthor(ctx context.Context, sessionID, fromUserID primitive.ObjectID) ([]models.Feedback, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"session_id": sessionID, "from_user_id": fromUserID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Feedback
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListReceived returns the peer feedback a user received in one
// session, oldest first.
func (s *Store) ListReceived(ctx context.Context, sessionID, toUserID primitive.ObjectID) ([]models.Feedback, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"session_id": sessionID, "to_user_id": toUserID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Feedback
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAboutUser returns peer feedback written about a user, newest first.
func (s *Store) ListAboutUser(ctx context.Context, userID primitive.ObjectID) ([]models.Feedback, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"to_user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Feedback
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SessionAverage computes the mean rating of session-level feedback
// (entries with no to_user_id) and the number of entries. Returns
// (0, 0, nil) when there is no feedback yet.
func (s *Store) SessionAverage(ctx context.Context, sessionID primitive.ObjectID) (float64, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"session_id": sessionID,
			"to_user_id": bson.M{"$exists": false},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"avg":   bson.M{"$avg": "$rating"},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	defer cur.Close(ctx)

	var res struct {
		Avg   float64 `bson:"avg"`
		Count int64   `bson:"count"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&res); err != nil {
			return 0, 0, err
		}
	}
	return res.Avg, res.Count, nil
}
