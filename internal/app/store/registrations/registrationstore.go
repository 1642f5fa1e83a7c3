// internal/app/store/registrations/registrationstore.go
package registrationstore

import (
	"context"
	"errors"
	"time"

	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("registrations")}
}

// ErrDuplicateRegistration is returned when the user is already
// registered for the session.
var ErrDuplicateRegistration = errors.New("user is already registered for this session")

// Add registers a user for a session. The unique (session_id, user_id)
// index makes double registration impossible even under races.
func (s *Store) Add(ctx context.Context, sessionID, userID primitive.ObjectID, asModerator bool) (models.Registration, error) {
	reg := models.Registration{
		ID:          primitive.NewObjectID(),
		SessionID:   sessionID,
		UserID:      userID,
		AsModerator: asModerator,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, reg); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Registration{}, ErrDuplicateRegistration
		}
		return models.Registration{}, err
	}
	return reg, nil
}

// Remove deletes the registration for (sessionID, userID). Returns the
// number of documents removed (0 or 1).
func (s *Store) Remove(ctx context.Context, sessionID, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"session_id": sessionID, "user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Get loads the registration for (sessionID, userID). Returns
// mongo.ErrNoDocuments when the user is not registered.
func (s *Store) Get(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.Registration, error) {
	var reg models.Registration
	if err := s.c.FindOne(ctx, bson.M{"session_id": sessionID, "user_id": userID}).Decode(&reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Exists reports whether the user is registered for the session.
func (s *Store) Exists(ctx context.Context, sessionID, userID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"session_id": sessionID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListBySession returns a session's registrations in registration order.
// The _id tiebreaker keeps the order stable when two registrations land
// in the same millisecond.
func (s *Store) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]models.Registration, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var regs []models.Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

// ListByUser returns all of a user's registrations, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Registration, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var regs []models.Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

// CountParticipants counts non-moderator registrations for a session,
// for enforcing max_participants.
func (s *Store) CountParticipants(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"session_id": sessionID, "as_moderator": false})
}

// SetAttended records the attendance outcome for (sessionID, userID).
func (s *Store) SetAttended(ctx context.Context, sessionID, userID primitive.ObjectID, attended bool) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "user_id": userID},
		bson.M{"$set": bson.M{"attended": attended}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListUnverified returns registrations with no attendance outcome yet.
// Used by finalization to find no-show candidates.
func (s *Store) ListUnverified(ctx context.Context, sessionID primitive.ObjectID) ([]models.Registration, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"session_id": sessionID,
		"attended":   bson.M{"$exists": false},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var regs []models.Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}
