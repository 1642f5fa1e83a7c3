// internal/app/store/authsessions/authsessionstore.go
package authsessionstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Session creation sources.
const (
	CreatedByLogin     = "login"
	CreatedByHeartbeat = "heartbeat"
)

// Session end reasons.
const (
	EndedByLogout   = "logout"
	EndedByInactive = "inactive"
)

// Session tracks one signed-in stretch for activity monitoring.
type Session struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       primitive.ObjectID `bson:"user_id"`
	LoginAt      time.Time          `bson:"login_at"`
	LogoutAt     *time.Time         `bson:"logout_at,omitempty"`
	LastActiveAt time.Time          `bson:"last_active_at"`
	CreatedBy    string             `bson:"created_by,omitempty"`
	EndReason    string             `bson:"end_reason,omitempty"`
	IP           string             `bson:"ip"`
	UserAgent    string             `bson:"user_agent,omitempty"`
	DurationSecs int64              `bson:"duration_secs,omitempty"`
}

// Store manages login activity sessions.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("auth_sessions")}
}

// EnsureIndexes creates indexes for the active-session and history queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "logout_at", Value: 1}, {Key: "last_active_at", Value: -1}},
			Options: options.Index().SetName("idx_authsessions_active"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "login_at", Value: -1}},
			Options: options.Index().SetName("idx_authsessions_user"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Create starts a new session, closing any sessions the user still has
// open so at most one is active per user.
func (s *Store) Create(ctx context.Context, userID primitive.ObjectID, ip, userAgent, createdBy string) (Session, error) {
	now := time.Now().UTC()

	_, _ = s.c.UpdateMany(ctx,
		bson.M{"user_id": userID, "logout_at": nil},
		bson.M{"$set": bson.M{
			"logout_at":  now,
			"end_reason": EndedByInactive,
		}},
	)

	sess := Session{
		ID:           primitive.NewObjectID(),
		UserID:       userID,
		LoginAt:      now,
		LastActiveAt: now,
		CreatedBy:    createdBy,
		IP:           ip,
		UserAgent:    userAgent,
	}
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Close ends the user's open session with the given reason and records
// its duration.
func (s *Store) Close(ctx context.Context, userID primitive.ObjectID, reason string) error {
	var sess Session
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "logout_at": nil}).Decode(&sess)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": sess.ID}, bson.M{"$set": bson.M{
		"logout_at":     now,
		"end_reason":    reason,
		"duration_secs": int64(now.Sub(sess.LoginAt).Seconds()),
	}})
	return err
}

// Touch updates last_active_at for the user's open session. Returns
// false when there is no open session, so the caller can recreate one.
func (s *Store) Touch(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "logout_at": nil},
		bson.M{"$set": bson.M{"last_active_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// GetActiveByUser returns the user's open sessions.
func (s *Store) GetActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]Session, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "logout_at": nil})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sessions []Session
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CloseInactive closes open sessions idle past the threshold. Returns
// the number of sessions closed.
func (s *Store) CloseInactive(ctx context.Context, threshold time.Duration) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx,
		bson.M{
			"logout_at":      nil,
			"last_active_at": bson.M{"$lt": now.Add(-threshold)},
		},
		bson.M{"$set": bson.M{
			"logout_at":  now,
			"end_reason": EndedByInactive,
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
