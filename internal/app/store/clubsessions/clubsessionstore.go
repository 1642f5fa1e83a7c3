// internal/app/store/clubsessions/clubsessionstore.go
package clubsessionstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/chitchatclub/chitchatclub/internal/app/system/normalize"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("club_sessions")}
}

var (
	errBadStatus = errors.New(`status must be "draft"|"open"|"completed"|"cancelled"`)
	errNoTitle   = errors.New("title is required")
)

// Create inserts a new session. The attendance code is generated here so
// every session has one from the start; it is only disclosed to
// moderators.
func (s *Store) Create(ctx context.Context, cs models.ClubSession) (models.ClubSession, error) {
	cs.ID = primitive.NewObjectID()
	cs.Title = normalize.Name(cs.Title)
	if cs.Title == "" {
		return models.ClubSession{}, errNoTitle
	}
	cs.TitleCI = text.Fold(cs.Title)
	if cs.Status == "" {
		cs.Status = models.SessionDraft
	}
	if !validStatus(cs.Status) {
		return models.ClubSession{}, errBadStatus
	}
	if cs.AttendanceCode == "" {
		cs.AttendanceCode = GenerateAttendanceCode()
	}

	now := time.Now().UTC()
	cs.CreatedAt = now
	cs.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, cs); err != nil {
		return models.ClubSession{}, err
	}
	return cs, nil
}

// GetByID loads a session by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ClubSession, error) {
	var cs models.ClubSession
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

// Update holds the fields an admin may change on a session. Nil pointers
// leave the stored value untouched.
type Update struct {
	Title           *string
	Description     *string
	StartAt         *time.Time
	DurationMinutes *int
	MaxParticipants *int
	MeetingLink     *string
	MeetingID       *string
	MeetingPassword *string
}

// Apply patches the given session document.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, upd Update) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Title != nil {
		title := normalize.Name(*upd.Title)
		if title == "" {
			return errNoTitle
		}
		set["title"] = title
		set["title_ci"] = text.Fold(title)
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.StartAt != nil {
		set["start_at"] = *upd.StartAt
	}
	if upd.DurationMinutes != nil {
		set["duration_minutes"] = *upd.DurationMinutes
	}
	if upd.MaxParticipants != nil {
		set["max_participants"] = *upd.MaxParticipants
	}
	if upd.MeetingLink != nil {
		set["meeting_link"] = *upd.MeetingLink
	}
	if upd.MeetingID != nil {
		set["meeting_id"] = *upd.MeetingID
	}
	if upd.MeetingPassword != nil {
		set["meeting_password"] = *upd.MeetingPassword
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetStatus moves a session through its lifecycle.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	if !validStatus(status) {
		return errBadStatus
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// RegenerateAttendanceCode replaces the attendance code and returns the
// new value.
func (s *Store) RegenerateAttendanceCode(ctx context.Context, id primitive.ObjectID) (string, error) {
	code := GenerateAttendanceCode()
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"attendance_code": code,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		return "", err
	}
	if res.MatchedCount == 0 {
		return "", mongo.ErrNoDocuments
	}
	return code, nil
}

// ListByStatus returns sessions with the given status, soonest first.
func (s *Store) ListByStatus(ctx context.Context, status string) ([]models.ClubSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ClubSession
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUpcoming returns open sessions starting after now, soonest first,
// up to limit.
func (s *Store) ListUpcoming(ctx context.Context, limit int64) ([]models.ClubSession, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "start_at", Value: 1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{
		"status":   models.SessionOpen,
		"start_at": bson.M{"$gt": time.Now().UTC()},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ClubSession
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll returns every session, newest start first.
func (s *Store) ListAll(ctx context.Context) ([]models.ClubSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ClubSession
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateAttendanceCode produces a two-digit numeric code ("00".."99")
// that moderators announce during the call.
func GenerateAttendanceCode() string {
	b := make([]byte, 1)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	return fmt.Sprintf("%02d", int(b[0])%100)
}

func validStatus(status string) bool {
	switch status {
	case models.SessionDraft, models.SessionOpen, models.SessionCompleted, models.SessionCancelled:
		return true
	}
	return false
}
