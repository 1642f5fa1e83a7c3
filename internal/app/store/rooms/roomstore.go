// internal/app/store/rooms/roomstore.go
package roomstore

import (
	"context"
	"errors"
	"time"

	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages the three collections backing a session's breakout
// layout: breakout_rooms, room_members, and room_moderators.
type Store struct {
	rooms      *mongo.Collection
	members    *mongo.Collection
	moderators *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		rooms:      db.Collection("breakout_rooms"),
		members:    db.Collection("room_members"),
		moderators: db.Collection("room_moderators"),
	}
}

// ErrDuplicateMember is returned when the user already sits in a room
// for this session.
var ErrDuplicateMember = errors.New("user is already in a room for this session")

// DeleteBySession removes every room, member, and moderator assignment
// for the session. Generation starts from a clean slate.
func (s *Store) DeleteBySession(ctx context.Context, sessionID primitive.ObjectID) error {
	filter := bson.M{"session_id": sessionID}
	if _, err := s.moderators.DeleteMany(ctx, filter); err != nil {
		return err
	}
	if _, err := s.members.DeleteMany(ctx, filter); err != nil {
		return err
	}
	_, err := s.rooms.DeleteMany(ctx, filter)
	return err
}

// InsertRoom creates one breakout room document.
func (s *Store) InsertRoom(ctx context.Context, sessionID primitive.ObjectID, roomIndex int, bucket models.LevelBucket) (models.BreakoutRoom, error) {
	room := models.BreakoutRoom{
		ID:          primitive.NewObjectID(),
		SessionID:   sessionID,
		RoomIndex:   roomIndex,
		LevelBucket: string(bucket),
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.rooms.InsertOne(ctx, room); err != nil {
		return models.BreakoutRoom{}, err
	}
	return room, nil
}

// InsertMember places a participant in a room. The unique
// (session_id, user_id) index rejects a second placement in any room of
// the same session.
func (s *Store) InsertMember(ctx context.Context, sessionID, roomID, userID primitive.ObjectID) error {
	m := models.RoomMember{
		SessionID: sessionID,
		RoomID:    roomID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.members.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateMember
		}
		return err
	}
	return nil
}

// InsertModerator assigns a moderator to a room. Moderators may cover
// several rooms, so there is no uniqueness constraint.
func (s *Store) InsertModerator(ctx context.Context, sessionID, roomID, userID primitive.ObjectID) error {
	m := models.RoomModerator{
		SessionID: sessionID,
		RoomID:    roomID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.moderators.InsertOne(ctx, m)
	return err
}

// GetRoom loads one room by ObjectID.
func (s *Store) GetRoom(ctx context.Context, roomID primitive.ObjectID) (*models.BreakoutRoom, error) {
	var room models.BreakoutRoom
	if err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRoomsBySession returns the session's rooms ordered by room index.
func (s *Store) ListRoomsBySession(ctx context.Context, sessionID primitive.ObjectID) ([]models.BreakoutRoom, error) {
	opts := options.Find().SetSort(bson.D{{Key: "room_index", Value: 1}})
	cur, err := s.rooms.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rooms []models.BreakoutRoom
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// ListMembersByRoom returns the member assignments for one room in
// placement order.
func (s *Store) ListMembersByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.RoomMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.members.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []models.RoomMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListModeratorsByRoom returns the moderator assignments for one room.
func (s *Store) ListModeratorsByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.RoomModerator, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.moderators.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var mods []models.RoomModerator
	if err := cur.All(ctx, &mods); err != nil {
		return nil, err
	}
	return mods, nil
}

// FindMembership returns the user's room membership within a session, or
// mongo.ErrNoDocuments if they are not placed.
func (s *Store) FindMembership(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.RoomMember, error) {
	var m models.RoomMember
	err := s.members.FindOne(ctx, bson.M{"session_id": sessionID, "user_id": userID}).Decode(&m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RemoveMember drops the user's membership in the given room. Returns
// the number of documents removed (0 or 1).
func (s *Store) RemoveMember(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	res, err := s.members.DeleteOne(ctx, bson.M{"room_id": roomID, "user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// CountMembers counts participants currently placed in a room.
func (s *Store) CountMembers(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	return s.members.CountDocuments(ctx, bson.M{"room_id": roomID})
}

// ListAssignmentsByUser returns every room a moderator covers, across
// all sessions.
func (s *Store) ListAssignmentsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.RoomModerator, error) {
	cur, err := s.moderators.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var mods []models.RoomModerator
	if err := cur.All(ctx, &mods); err != nil {
		return nil, err
	}
	return mods, nil
}

// IsMember reports whether a user is assigned to a room.
func (s *Store) IsMember(ctx context.Context, roomID, userID primitive.ObjectID) (bool, error) {
	n, err := s.members.CountDocuments(ctx, bson.M{"room_id": roomID, "user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListRoomsByModerator returns the rooms a moderator covers in a session.
func (s *Store) ListRoomsByModerator(ctx context.Context, sessionID, userID primitive.ObjectID) ([]models.RoomModerator, error) {
	cur, err := s.moderators.Find(ctx, bson.M{"session_id": sessionID, "user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var mods []models.RoomModerator
	if err := cur.All(ctx, &mods); err != nil {
		return nil, err
	}
	return mods, nil
}
