// internal/app/system/breakout/engine.go
package breakout

import (
	"context"
	"errors"

	clubsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/clubsessions"
	registrationstore "github.com/chitchatclub/chitchatclub/internal/app/store/registrations"
	roomstore "github.com/chitchatclub/chitchatclub/internal/app/store/rooms"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/apierr"
	"github.com/chitchatclub/chitchatclub/internal/app/system/txn"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Engine applies partition plans and room mutations to storage. All
// failures callers can act on come back as apierr typed errors.
type Engine struct {
	log      *zap.Logger
	client   *mongo.Client
	sessions *clubsessionstore.Store
	regs     *registrationstore.Store
	users    *userstore.Store
	rooms    *roomstore.Store
}

// NewEngine builds an Engine over the given database. The client is
// needed to run multi-collection writes in a transaction.
func NewEngine(client *mongo.Client, db *mongo.Database, log *zap.Logger) *Engine {
	return &Engine{
		log:      log,
		client:   client,
		sessions: clubsessionstore.New(db),
		regs:     registrationstore.New(db),
		users:    userstore.New(db),
		rooms:    roomstore.New(db),
	}
}

// Generate rebuilds the session's breakout layout from its current
// roster: any existing rooms and assignments are discarded first, then
// the partition plan is applied. The whole rebuild runs in a
// transaction, so readers never observe a half-generated layout.
func (e *Engine) Generate(ctx context.Context, sessionID primitive.ObjectID, roomSize int) ([]RoomView, error) {
	if _, err := e.sessions.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierr.NotFound("session %s not found", sessionID.Hex())
		}
		return nil, err
	}

	roster, err := e.loadRoster(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	plan := Plan(roster, roomSize)

	err = txn.WithTransaction(ctx, e.client, e.log, func(ctx context.Context) error {
		if err := e.rooms.DeleteBySession(ctx, sessionID); err != nil {
			return err
		}
		roomIDs := make([]primitive.ObjectID, len(plan.Rooms))
		for i, planned := range plan.Rooms {
			room, err := e.rooms.InsertRoom(ctx, sessionID, planned.Index, planned.Bucket)
			if err != nil {
				return err
			}
			roomIDs[i] = room.ID
			for _, u := range planned.Members {
				if err := e.rooms.InsertMember(ctx, sessionID, room.ID, u.ID); err != nil {
					return err
				}
			}
		}
		if len(plan.ModeratorRooms) > 0 {
			for i, mod := range plan.Moderators {
				roomID := roomIDs[plan.ModeratorRooms[i]]
				if err := e.rooms.InsertModerator(ctx, sessionID, roomID, mod.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("breakout rooms generated",
		zap.String("session_id", sessionID.Hex()),
		zap.Int("rooms", len(plan.Rooms)),
		zap.Int("moderators", len(plan.Moderators)))

	return e.ListRooms(ctx, sessionID)
}

// ListRooms returns the session's rooms with resolved members and
// moderators, ordered by room index.
func (e *Engine) ListRooms(ctx context.Context, sessionID primitive.ObjectID) ([]RoomView, error) {
	if _, err := e.sessions.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierr.NotFound("session %s not found", sessionID.Hex())
		}
		return nil, err
	}

	rooms, err := e.rooms.ListRoomsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		v, err := e.roomView(ctx, room)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// AddMember places a participant into a room by hand. The participant
// does not have to be on the session roster; room capacity is
// deliberately not enforced here, a human is making the call. The
// participant must not already sit in another room of the session.
func (e *Engine) AddMember(ctx context.Context, roomID, userID primitive.ObjectID) (RoomView, error) {
	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return RoomView{}, apierr.NotFound("room %s not found", roomID.Hex())
		}
		return RoomView{}, err
	}
	if _, err := e.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return RoomView{}, apierr.NotFound("user %s not found", userID.Hex())
		}
		return RoomView{}, err
	}

	// Pre-check in addition to the unique index so callers get a clean
	// conflict instead of a duplicate-key error.
	if _, err := e.rooms.FindMembership(ctx, room.SessionID, userID); err == nil {
		return RoomView{}, apierr.Conflict("user is already in a room for this session")
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return RoomView{}, err
	}

	if err := e.rooms.InsertMember(ctx, room.SessionID, roomID, userID); err != nil {
		if errors.Is(err, roomstore.ErrDuplicateMember) {
			return RoomView{}, apierr.Conflict("user is already in a room for this session")
		}
		return RoomView{}, err
	}
	return e.roomView(ctx, *room)
}

// RemoveMember takes a participant out of a room.
func (e *Engine) RemoveMember(ctx context.Context, roomID, userID primitive.ObjectID) (RoomView, error) {
	room, err := e.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return RoomView{}, apierr.NotFound("room %s not found", roomID.Hex())
		}
		return RoomView{}, err
	}

	removed, err := e.rooms.RemoveMember(ctx, roomID, userID)
	if err != nil {
		return RoomView{}, err
	}
	if removed == 0 {
		return RoomView{}, apierr.NotFound("user is not a member of this room")
	}
	return e.roomView(ctx, *room)
}

// MoveMember relocates a participant from one room to another within the
// same session and returns the updated source and target rooms, in that
// order.
func (e *Engine) MoveMember(ctx context.Context, userID, fromRoomID, toRoomID primitive.ObjectID) ([]RoomView, error) {
	if fromRoomID == toRoomID {
		return nil, apierr.BadRequest("source and target rooms are the same")
	}

	from, err := e.rooms.GetRoom(ctx, fromRoomID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierr.NotFound("room %s not found", fromRoomID.Hex())
		}
		return nil, err
	}
	to, err := e.rooms.GetRoom(ctx, toRoomID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierr.NotFound("room %s not found", toRoomID.Hex())
		}
		return nil, err
	}
	if from.SessionID != to.SessionID {
		return nil, apierr.BadRequest("rooms belong to different sessions")
	}

	err = txn.WithTransaction(ctx, e.client, e.log, func(ctx context.Context) error {
		removed, err := e.rooms.RemoveMember(ctx, fromRoomID, userID)
		if err != nil {
			return err
		}
		if removed == 0 {
			return apierr.NotFound("user is not a member of the source room")
		}
		return e.rooms.InsertMember(ctx, to.SessionID, toRoomID, userID)
	})
	if err != nil {
		return nil, err
	}

	fromView, err := e.roomView(ctx, *from)
	if err != nil {
		return nil, err
	}
	toView, err := e.roomView(ctx, *to)
	if err != nil {
		return nil, err
	}
	return []RoomView{fromView, toView}, nil
}

// Roommates returns the room the user sits in for the given session.
func (e *Engine) Roommates(ctx context.Context, sessionID, userID primitive.ObjectID) (RoomView, error) {
	m, err := e.rooms.FindMembership(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return RoomView{}, apierr.NotFound("user has no room in this session")
		}
		return RoomView{}, err
	}
	room, err := e.rooms.GetRoom(ctx, m.RoomID)
	if err != nil {
		return RoomView{}, err
	}
	return e.roomView(ctx, *room)
}

// loadRoster turns the session's registrations into planner input,
// preserving registration order. Registrations whose user record has
// vanished are skipped.
func (e *Engine) loadRoster(ctx context.Context, sessionID primitive.ObjectID) ([]RosterEntry, error) {
	regs, err := e.regs.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(regs))
	for i, reg := range regs {
		ids[i] = reg.UserID
	}
	users, err := e.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	roster := make([]RosterEntry, 0, len(regs))
	for _, reg := range regs {
		u, ok := byID[reg.UserID]
		if !ok {
			continue
		}
		roster = append(roster, RosterEntry{User: u, Moderator: reg.AsModerator})
	}
	return roster, nil
}

func (e *Engine) roomView(ctx context.Context, room models.BreakoutRoom) (RoomView, error) {
	v := RoomView{
		ID:          room.ID.Hex(),
		RoomIndex:   room.RoomIndex,
		LevelBucket: room.LevelBucket,
		Members:     []UserView{},
		Moderators:  []UserView{},
	}

	members, err := e.rooms.ListMembersByRoom(ctx, room.ID)
	if err != nil {
		return RoomView{}, err
	}
	mods, err := e.rooms.ListModeratorsByRoom(ctx, room.ID)
	if err != nil {
		return RoomView{}, err
	}

	ids := make([]primitive.ObjectID, 0, len(members)+len(mods))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	for _, m := range mods {
		ids = append(ids, m.UserID)
	}
	users, err := e.users.GetByIDs(ctx, ids)
	if err != nil {
		return RoomView{}, err
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, m := range members {
		if u, ok := byID[m.UserID]; ok {
			v.Members = append(v.Members, NewUserView(u))
		}
	}
	for _, m := range mods {
		if u, ok := byID[m.UserID]; ok {
			v.Moderators = append(v.Moderators, NewUserView(u))
		}
	}
	return v, nil
}
