// internal/domain/models/levelhistory.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LevelHistory records one change to a user's reported English level,
// who made it, and why. History is append-only.
type LevelHistory struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`

	PreviousType  LevelScale `bson:"previous_type,omitempty" json:"previous_type,omitempty"`
	PreviousValue string     `bson:"previous_value,omitempty" json:"previous_value,omitempty"`
	NewType       LevelScale `bson:"new_type,omitempty" json:"new_type,omitempty"`
	NewValue      string     `bson:"new_value,omitempty" json:"new_value,omitempty"`

	ChangedBy primitive.ObjectID `bson:"changed_by" json:"changed_by"`
	Reason    string             `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
