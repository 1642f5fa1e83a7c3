// internal/app/store/settings/settingstore.go
package settingstore

import (
	"context"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Setting keys used by the application. Defaults are seeded at startup
// and admins can tune the values at runtime.
const (
	KeyUnregisterCutoffHours = "unregister_cutoff_hours"
	KeyMaxNoShows            = "max_no_shows"
	KeyBlacklistDurationDays = "blacklist_duration_days"
	KeyDefaultRoomSize       = "default_room_size"
)

// Fallback values used when a key has not been seeded or was deleted.
const (
	DefaultUnregisterCutoffHours = 24
	DefaultMaxNoShows            = 3
	DefaultBlacklistDurationDays = 30
	DefaultRoomSize              = 5
)

// Defaults returns the seed map for SeedDefaults.
func Defaults() map[string]string {
	return map[string]string{
		KeyUnregisterCutoffHours: strconv.Itoa(DefaultUnregisterCutoffHours),
		KeyMaxNoShows:            strconv.Itoa(DefaultMaxNoShows),
		KeyBlacklistDurationDays: strconv.Itoa(DefaultBlacklistDurationDays),
		KeyDefaultRoomSize:       strconv.Itoa(DefaultRoomSize),
	}
}

// Store provides access to the app_settings collection, one document
// per key.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("app_settings")}
}

type setting struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Key       string             `bson:"key"`
	Value     string             `bson:"value"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// GetString returns the value for key, or fallback when unset.
func (s *Store) GetString(ctx context.Context, key, fallback string) (string, error) {
	var doc setting
	err := s.c.FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return doc.Value, nil
}

// GetInt returns the value for key parsed as an integer, or fallback
// when unset or unparsable.
func (s *Store) GetInt(ctx context.Context, key string, fallback int) (int, error) {
	v, err := s.GetString(ctx, key, "")
	if err != nil {
		return fallback, err
	}
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, nil
	}
	return n, nil
}

// Set upserts the value for key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	update := bson.M{
		"$set": bson.M{
			"key":        key,
			"value":      value,
			"updated_at": time.Now().UTC(),
		},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, bson.M{"key": key}, update, opts)
	return err
}

// SetInt upserts an integer value for key.
func (s *Store) SetInt(ctx context.Context, key string, value int) error {
	return s.Set(ctx, key, strconv.Itoa(value))
}

// SeedDefaults inserts default values for any keys that are missing,
// without overwriting admin-tuned settings.
func (s *Store) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	for key, value := range defaults {
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"key":        key,
				"value":      value,
				"updated_at": time.Now().UTC(),
			},
		}
		opts := options.Update().SetUpsert(true)
		if _, err := s.c.UpdateOne(ctx, bson.M{"key": key}, update, opts); err != nil {
			return err
		}
	}
	return nil
}
