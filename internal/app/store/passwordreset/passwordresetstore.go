// internal/app/store/passwordreset/passwordresetstore.go
package passwordresetstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultExpiry is how long a reset link stays valid.
const DefaultExpiry = time.Hour

var (
	// ErrNotFound is returned when a reset token is missing or already used.
	ErrNotFound = errors.New("reset token not found")
	// ErrExpired is returned when the reset token has lapsed.
	ErrExpired = errors.New("reset token expired")
)

// Reset is a pending password reset. One per user; requesting a new
// link invalidates the old one.
type Reset struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id"`
	Token     string             `bson:"token"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Store manages password reset tokens.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a Store. A non-positive expiry falls back to DefaultExpiry.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{c: db.Collection("password_resets"), expiry: expiry}
}

// EnsureIndexes creates the TTL and lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_pwreset_expires_ttl").SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetName("uniq_pwreset_token").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_pwreset_user"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create replaces any pending reset for the user with a fresh token and
// returns the plain token for delivery by email.
func (s *Store) Create(ctx context.Context, userID primitive.ObjectID) (string, error) {
	if _, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return "", err
	}

	now := time.Now()
	reset := Reset{
		UserID:    userID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, reset); err != nil {
		return "", err
	}
	return reset.Token, nil
}

// Consume looks up the token, deletes every pending reset for its user,
// and returns the user ID. Expired tokens are deleted and rejected.
func (s *Store) Consume(ctx context.Context, token string) (primitive.ObjectID, error) {
	var reset Reset
	err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&reset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return primitive.NilObjectID, ErrNotFound
		}
		return primitive.NilObjectID, err
	}

	if _, err := s.c.DeleteMany(ctx, bson.M{"user_id": reset.UserID}); err != nil {
		return primitive.NilObjectID, err
	}

	// The TTL monitor sweeps only once a minute, so check again here.
	if time.Now().After(reset.ExpiresAt) {
		return primitive.NilObjectID, ErrExpired
	}
	return reset.UserID, nil
}
