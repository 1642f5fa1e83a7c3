package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a member with the given name, email, and reported
// English level.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string, scale models.LevelScale, value string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:                primitive.NewObjectID(),
		FullName:          name,
		FullNameCI:        text.Fold(name),
		Email:             email,
		Role:              models.RoleMember,
		Status:            "active",
		EmailVerified:     true,
		EnglishLevelType:  scale,
		EnglishLevelValue: value,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateUserWithRole inserts a user with an explicit role.
func (f *Fixtures) CreateUserWithRole(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:            primitive.NewObjectID(),
		FullName:      name,
		FullNameCI:    text.Fold(name),
		Email:         email,
		Role:          role,
		Status:        "active",
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// SetOverride patches a proficiency override directly onto a user doc.
func (f *Fixtures) SetOverride(ctx context.Context, userID primitive.ObjectID, bucket models.LevelBucket) {
	f.t.Helper()

	_, err := f.db.Collection("users").UpdateOne(ctx,
		map[string]interface{}{"_id": userID},
		map[string]interface{}{"$set": map[string]interface{}{"proficiency_override": bucket}},
	)
	if err != nil {
		f.t.Fatalf("failed to set override: %v", err)
	}
}

// CreateSession inserts an open club session starting at the given time.
func (f *Fixtures) CreateSession(ctx context.Context, title string, startAt time.Time) models.ClubSession {
	f.t.Helper()

	now := time.Now().UTC()
	cs := models.ClubSession{
		ID:              primitive.NewObjectID(),
		Title:           title,
		TitleCI:         text.Fold(title),
		StartAt:         startAt,
		DurationMinutes: 60,
		MaxParticipants: 50,
		Status:          models.SessionOpen,
		AttendanceCode:  "42",
		CreatedBy:       primitive.NewObjectID(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := f.db.Collection("club_sessions").InsertOne(ctx, cs); err != nil {
		f.t.Fatalf("failed to create test session: %v", err)
	}
	return cs
}

// CreateRegistration registers a user for a session.
func (f *Fixtures) CreateRegistration(ctx context.Context, sessionID, userID primitive.ObjectID, asModerator bool) models.Registration {
	f.t.Helper()

	reg := models.Registration{
		ID:          primitive.NewObjectID(),
		SessionID:   sessionID,
		UserID:      userID,
		AsModerator: asModerator,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := f.db.Collection("registrations").InsertOne(ctx, reg); err != nil {
		f.t.Fatalf("failed to create test registration: %v", err)
	}
	return reg
}

// CreateRoom inserts one breakout room for a session.
func (f *Fixtures) CreateRoom(ctx context.Context, sessionID primitive.ObjectID, roomIndex int, bucket models.LevelBucket) models.BreakoutRoom {
	f.t.Helper()

	room := models.BreakoutRoom{
		ID:          primitive.NewObjectID(),
		SessionID:   sessionID,
		RoomIndex:   roomIndex,
		LevelBucket: string(bucket),
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := f.db.Collection("breakout_rooms").InsertOne(ctx, room); err != nil {
		f.t.Fatalf("failed to create test room: %v", err)
	}
	return room
}

// CreateRoomMember places a user in a room.
func (f *Fixtures) CreateRoomMember(ctx context.Context, sessionID, roomID, userID primitive.ObjectID) models.RoomMember {
	f.t.Helper()

	m := models.RoomMember{
		ID:        primitive.NewObjectID(),
		SessionID: sessionID,
		RoomID:    roomID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("room_members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test room member: %v", err)
	}
	return m
}

// CreateRoomModerator assigns a moderator to a room.
func (f *Fixtures) CreateRoomModerator(ctx context.Context, sessionID, roomID, userID primitive.ObjectID) models.RoomModerator {
	f.t.Helper()

	m := models.RoomModerator{
		ID:        primitive.NewObjectID(),
		SessionID: sessionID,
		RoomID:    roomID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("room_moderators").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test room moderator: %v", err)
	}
	return m
}
