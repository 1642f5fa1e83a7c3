// internal/app/system/breakout/views.go
package breakout

import (
	"github.com/chitchatclub/chitchatclub/internal/app/system/levels"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
)

// UserView is the roster-facing projection of a user: raw reported level
// plus the effective bucket after overrides.
type UserView struct {
	ID                string            `json:"id"`
	FullName          string            `json:"full_name"`
	Email             string            `json:"email"`
	EnglishLevelType  models.LevelScale `json:"english_level_type,omitempty"`
	EnglishLevelValue string            `json:"english_level_value,omitempty"`
	ProficiencyLevel  string            `json:"proficiency_level"`
	Override          string            `json:"override,omitempty"`
}

// RoomView is one breakout room with its resolved members and moderators.
type RoomView struct {
	ID          string     `json:"id"`
	RoomIndex   int        `json:"room_index"`
	LevelBucket string     `json:"level_bucket"`
	Members     []UserView `json:"members"`
	Moderators  []UserView `json:"moderators"`
}

// NewUserView projects a user for roster output.
func NewUserView(u models.User) UserView {
	v := UserView{
		ID:                u.ID.Hex(),
		FullName:          u.FullName,
		Email:             u.Email,
		EnglishLevelType:  u.EnglishLevelType,
		EnglishLevelValue: u.EnglishLevelValue,
		ProficiencyLevel:  levels.Effective(u).Label(),
	}
	if u.ProficiencyOverride != nil {
		v.Override = string(*u.ProficiencyOverride)
	}
	return v
}
