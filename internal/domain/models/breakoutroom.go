// internal/domain/models/breakoutroom.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BreakoutRoom is one small-group room generated for a session.
//
// RoomIndex is 1-based and unique within the session; it is assigned
// continuously across level buckets at generation time. LevelBucket is
// the bucket the room was seeded with; it is informational only and is
// not updated when members are moved later.
type BreakoutRoom struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	SessionID   primitive.ObjectID `bson:"session_id" json:"session_id"`
	RoomIndex   int                `bson:"room_index" json:"room_index"`
	LevelBucket string             `bson:"level_bucket" json:"level_bucket"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// RoomMember joins a participant to a breakout room. SessionID is
// denormalized from the room so a unique (session_id, user_id) index can
// enforce one room per participant per session.
type RoomMember struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID primitive.ObjectID `bson:"session_id" json:"session_id"`
	RoomID    primitive.ObjectID `bson:"room_id" json:"room_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// RoomModerator joins a moderator to a breakout room. Unlike RoomMember
// there is no per-session uniqueness constraint; assignments are rebuilt
// wholesale on each generation and mutation operations never touch them.
type RoomModerator struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID primitive.ObjectID `bson:"session_id" json:"session_id"`
	RoomID    primitive.ObjectID `bson:"room_id" json:"room_id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
