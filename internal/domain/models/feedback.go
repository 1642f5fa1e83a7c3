// internal/domain/models/feedback.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feedback is a rating plus optional text a registrant leaves after a
// session. ToUserID is nil for feedback about the session itself and set
// for peer feedback about another registrant.
type Feedback struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SessionID  primitive.ObjectID  `bson:"session_id" json:"session_id"`
	FromUserID primitive.ObjectID  `bson:"from_user_id" json:"from_user_id"`
	ToUserID   *primitive.ObjectID `bson:"to_user_id,omitempty" json:"to_user_id,omitempty"`
	Rating     int                 `bson:"rating" json:"rating"`
	Text       string              `bson:"text,omitempty" json:"text,omitempty"`
	Anonymous  bool                `bson:"anonymous" json:"anonymous"`
	CreatedAt  time.Time           `bson:"created_at" json:"created_at"`
}
