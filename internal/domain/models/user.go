// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles, lowest to highest privilege.
const (
	RoleMember     = "member"
	RoleModerator  = "moderator"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// User represents members, moderators, and admins.
//
// NOTE:
//   - Session registration is not embedded on User.
//     Use the registrations collection to discover a user's sessions.
//   - EnglishLevelType/EnglishLevelValue hold the raw self-reported score;
//     ProficiencyOverride (when set by an admin) beats normalization.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`    // stored lowercase, unique
	AuthMethod string             `bson:"auth_method,omitempty" json:"auth_method,omitempty"`
	Role       string             `bson:"role" json:"role"`
	Status     string             `bson:"status,omitempty" json:"status,omitempty"`

	PasswordHash  string `bson:"password_hash,omitempty" json:"-"`
	EmailVerified bool   `bson:"email_verified" json:"email_verified"`

	EnglishLevelType    LevelScale   `bson:"english_level_type,omitempty" json:"english_level_type,omitempty"`
	EnglishLevelValue   string       `bson:"english_level_value,omitempty" json:"english_level_value,omitempty"`
	ProficiencyOverride *LevelBucket `bson:"proficiency_override,omitempty" json:"proficiency_override,omitempty"`

	NoShowCount      int        `bson:"no_show_count" json:"no_show_count"`
	BlacklistedUntil *time.Time `bson:"blacklisted_until,omitempty" json:"blacklisted_until,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CanModerate reports whether the role carries moderator privileges.
func CanModerate(role string) bool {
	switch role {
	case RoleModerator, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}
