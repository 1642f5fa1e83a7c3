// internal/app/features/rooms/handler.go
package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	settingstore "github.com/chitchatclub/chitchatclub/internal/app/store/settings"
	"github.com/chitchatclub/chitchatclub/internal/app/system/apierr"
	"github.com/chitchatclub/chitchatclub/internal/app/system/authz"
	"github.com/chitchatclub/chitchatclub/internal/app/system/breakout"
	"github.com/chitchatclub/chitchatclub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves breakout room generation and roster adjustments.
type Handler struct {
	Engine   *breakout.Engine
	Settings *settingstore.Store
	Log      *zap.Logger
	Errs     *apierr.Logger
}

// NewHandler creates a rooms handler.
func NewHandler(engine *breakout.Engine, settings *settingstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Engine:   engine,
		Settings: settings,
		Log:      logger,
		Errs:     apierr.NewLogger(logger),
	}
}

func oidParam(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apierr.BadRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

type generateRequest struct {
	SessionID string `json:"session_id"`
	RoomSize  int    `json:"room_size"`
}

// ServeGenerate handles POST /rooms/generate. A zero room size falls
// back to the configured default. Regeneration discards the previous
// layout for the session.
func (h *Handler) ServeGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	sessionID, err := primitive.ObjectIDFromHex(req.SessionID)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid session_id %q", req.SessionID))
		return
	}
	if req.RoomSize < 0 {
		apierr.WriteError(w, apierr.BadRequest("room_size must not be negative"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	roomSize := req.RoomSize
	if roomSize == 0 {
		roomSize, err = h.Settings.GetInt(ctx, settingstore.KeyDefaultRoomSize, settingstore.DefaultRoomSize)
		if err != nil {
			h.Errs.ServerError(w, r, "failed to load settings", err)
			return
		}
	}

	rooms, err := h.Engine.Generate(ctx, sessionID, roomSize)
	if err != nil {
		h.Errs.Fail(w, r, "failed to generate rooms", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"rooms": rooms, "room_size": roomSize})
}

// ServeListBySession handles GET /rooms/session/{sessionID} (moderator
// or admin).
func (h *Handler) ServeListBySession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := oidParam(r, "sessionID")
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rooms, err := h.Engine.ListRooms(ctx, sessionID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to list rooms", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

type memberRequest struct {
	UserID string `json:"user_id"`
}

// ServeAddMember handles POST /rooms/{roomID}/members.
func (h *Handler) ServeAddMember(w http.ResponseWriter, r *http.Request) {
	roomID, err := oidParam(r, "roomID")
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid user_id %q", req.UserID))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	room, err := h.Engine.AddMember(ctx, roomID, userID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to add room member", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, room)
}

// ServeRemoveMember handles DELETE /rooms/{roomID}/members/{userID}.
func (h *Handler) ServeRemoveMember(w http.ResponseWriter, r *http.Request) {
	roomID, err := oidParam(r, "roomID")
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	userID, err := oidParam(r, "userID")
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	room, err := h.Engine.RemoveMember(ctx, roomID, userID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to remove room member", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, room)
}

type moveRequest struct {
	UserID     string `json:"user_id"`
	FromRoomID string `json:"from_room_id"`
	ToRoomID   string `json:"to_room_id"`
}

// ServeMoveMember handles POST /rooms/move. Both affected rooms come
// back so clients can refresh in one round trip.
func (h *Handler) ServeMoveMember(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid user_id %q", req.UserID))
		return
	}
	fromID, err := primitive.ObjectIDFromHex(req.FromRoomID)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid from_room_id %q", req.FromRoomID))
		return
	}
	toID, err := primitive.ObjectIDFromHex(req.ToRoomID)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid to_room_id %q", req.ToRoomID))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rooms, err := h.Engine.MoveMember(ctx, userID, fromID, toID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to move room member", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// ServeMyRoom handles GET /rooms/session/{sessionID}/mine. Registrants
// use it to find their assigned room and roommates.
func (h *Handler) ServeMyRoom(w http.ResponseWriter, r *http.Request) {
	sessionID, err := oidParam(r, "sessionID")
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		apierr.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	room, err := h.Engine.Roommates(ctx, sessionID, userID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to load room", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, room)
}

// ServeExportCSV handles GET /rooms/session/{sessionID}/export.csv
// (moderator or admin).
func (h *Handler) ServeExportCSV(w http.ResponseWriter, r *http.Request) {
	sessionID, err := oidParam(r, "sessionID")
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	csvBody, err := h.Engine.ExportCSV(ctx, sessionID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to export rooms", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "rooms-"+sessionID.Hex()+".csv"))
	w.WriteHeader(http.StatusOK)

	// UTF-8 BOM for Excel
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		h.Log.Error("CSV write failed (BOM)", zap.Error(err))
		return
	}
	_, _ = w.Write([]byte(csvBody))
}
