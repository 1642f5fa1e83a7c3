// internal/domain/models/clubsession.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Club session lifecycle states.
const (
	SessionDraft     = "draft"
	SessionOpen      = "open"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// ClubSession is one scheduled conversation meeting.
//
// AttendanceCode is a short code moderators read out during the call;
// registrants enter it afterwards to verify attendance.
type ClubSession struct {
	ID              primitive.ObjectID `bson:"_id" json:"id"`
	Title           string             `bson:"title" json:"title"`
	TitleCI         string             `bson:"title_ci" json:"-"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	StartAt         time.Time          `bson:"start_at" json:"start_at"`
	DurationMinutes int                `bson:"duration_minutes" json:"duration_minutes"`
	MaxParticipants int                `bson:"max_participants" json:"max_participants"`
	Status          string             `bson:"status" json:"status"`

	AttendanceCode string `bson:"attendance_code" json:"-"`

	MeetingLink     string `bson:"meeting_link,omitempty" json:"meeting_link,omitempty"`
	MeetingID       string `bson:"meeting_id,omitempty" json:"meeting_id,omitempty"`
	MeetingPassword string `bson:"meeting_password,omitempty" json:"-"`

	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Registration is the authoritative join between users and club sessions.
// Exactly one document per (session_id, user_id).
//
// Attended is nil until the user verifies (true) or finalization marks
// them a no-show (false).
type Registration struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID   primitive.ObjectID `bson:"session_id" json:"session_id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	AsModerator bool               `bson:"as_moderator" json:"as_moderator"`
	Attended    *bool              `bson:"attended,omitempty" json:"attended,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}
