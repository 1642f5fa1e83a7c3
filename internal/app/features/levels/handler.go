// internal/app/features/levels/handler.go
package levels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	levelhistorystore "github.com/chitchatclub/chitchatclub/internal/app/store/levelhistory"
	registrationstore "github.com/chitchatclub/chitchatclub/internal/app/store/registrations"
	roomstore "github.com/chitchatclub/chitchatclub/internal/app/store/rooms"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/apierr"
	"github.com/chitchatclub/chitchatclub/internal/app/system/authz"
	syslevels "github.com/chitchatclub/chitchatclub/internal/app/system/levels"
	"github.com/chitchatclub/chitchatclub/internal/app/system/timeouts"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves English level reporting, admin overrides, and history.
type Handler struct {
	Users   *userstore.Store
	History *levelhistorystore.Store
	Regs    *registrationstore.Store
	Rooms   *roomstore.Store
	Log     *zap.Logger
	Errs    *apierr.Logger
}

// NewHandler creates a levels handler.
func NewHandler(users *userstore.Store, history *levelhistorystore.Store, regs *registrationstore.Store, rooms *roomstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Users:   users,
		History: history,
		Regs:    regs,
		Rooms:   rooms,
		Log:     logger,
		Errs:    apierr.NewLogger(logger),
	}
}

type updateLevelRequest struct {
	EnglishLevelType  string `json:"english_level_type"`
	EnglishLevelValue string `json:"english_level_value"`
}

// ServeUpdateMine handles PUT /levels/me. Users report a new score for
// themselves; the change lands in the history trail.
func (h *Handler) ServeUpdateMine(w http.ResponseWriter, r *http.Request) {
	var req updateLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	scale := models.LevelScale(strings.ToUpper(strings.TrimSpace(req.EnglishLevelType)))
	if !models.IsValidLevelScale(string(scale)) {
		apierr.WriteError(w, apierr.BadRequest("unknown english_level_type %q", req.EnglishLevelType))
		return
	}
	value := strings.TrimSpace(req.EnglishLevelValue)
	if value == "" {
		apierr.WriteError(w, apierr.BadRequest("english_level_value is required"))
		return
	}

	_, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to load account", err)
		return
	}

	if err := h.Users.UpdateLevel(ctx, userID, scale, value); err != nil {
		h.Errs.Fail(w, r, "failed to update level", err)
		return
	}

	if err := h.History.Append(ctx, models.LevelHistory{
		UserID:        userID,
		PreviousType:  u.EnglishLevelType,
		PreviousValue: u.EnglishLevelValue,
		NewType:       scale,
		NewValue:      value,
		ChangedBy:     userID,
		Reason:        "self-reported",
	}); err != nil {
		h.Log.Warn("failed to append level history",
			zap.Error(err),
			zap.String("user_id", userID.Hex()))
	}

	bucket := syslevels.Normalize(scale, value)
	apierr.WriteJSON(w, http.StatusOK, map[string]string{
		"english_level_type":  string(scale),
		"english_level_value": value,
		"proficiency_bucket":  string(bucket),
		"proficiency_level":   bucket.Label(),
	})
}

type updateUserLevelRequest struct {
	EnglishLevelType  string `json:"english_level_type"`
	EnglishLevelValue string `json:"english_level_value"`
	Reason            string `json:"reason"`
}

// ServeUpdateUser handles PUT /levels/user/{userID} (moderator or
// admin). Admins can adjust anyone; moderators only users they have
// actually met, through a shared session or a room they moderate.
func (h *Handler) ServeUpdateUser(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "userID")
	targetID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid user id %q", raw))
		return
	}

	var req updateUserLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	scale := models.LevelScale(strings.ToUpper(strings.TrimSpace(req.EnglishLevelType)))
	if !models.IsValidLevelScale(string(scale)) {
		apierr.WriteError(w, apierr.BadRequest("unknown english_level_type %q", req.EnglishLevelType))
		return
	}
	value := strings.TrimSpace(req.EnglishLevelValue)
	if value == "" {
		apierr.WriteError(w, apierr.BadRequest("english_level_value is required"))
		return
	}

	role, _, callerID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if role == models.RoleModerator {
		ok, err := h.moderatorKnowsUser(ctx, callerID, targetID)
		if err != nil {
			h.Errs.ServerError(w, r, "failed to check moderator relationship", err)
			return
		}
		if !ok {
			apierr.WriteJSON(w, http.StatusForbidden, map[string]string{
				"error": "moderators can only update levels of users from their own sessions or rooms",
			})
			return
		}
	}

	target, err := h.Users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("user not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load user", err)
		return
	}

	if err := h.Users.UpdateLevel(ctx, targetID, scale, value); err != nil {
		h.Errs.Fail(w, r, "failed to update level", err)
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "moderator assessment"
	}
	if err := h.History.Append(ctx, models.LevelHistory{
		UserID:        targetID,
		PreviousType:  target.EnglishLevelType,
		PreviousValue: target.EnglishLevelValue,
		NewType:       scale,
		NewValue:      value,
		ChangedBy:     callerID,
		Reason:        reason,
	}); err != nil {
		h.Log.Warn("failed to append level history",
			zap.Error(err),
			zap.String("user_id", targetID.Hex()))
	}

	bucket := syslevels.Normalize(scale, value)
	apierr.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id":             targetID.Hex(),
		"english_level_type":  string(scale),
		"english_level_value": value,
		"proficiency_bucket":  string(bucket),
		"proficiency_level":   bucket.Label(),
	})
}

// moderatorKnowsUser reports whether the moderator shares a session
// registration with the target or moderates a room the target sits in.
func (h *Handler) moderatorKnowsUser(ctx context.Context, moderatorID, targetID primitive.ObjectID) (bool, error) {
	regs, err := h.Regs.ListByUser(ctx, moderatorID)
	if err != nil {
		return false, err
	}
	for _, reg := range regs {
		shared, err := h.Regs.Exists(ctx, reg.SessionID, targetID)
		if err != nil {
			return false, err
		}
		if shared {
			return true, nil
		}
	}

	assignments, err := h.Rooms.ListAssignmentsByUser(ctx, moderatorID)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		member, err := h.Rooms.IsMember(ctx, a.RoomID, targetID)
		if err != nil {
			return false, err
		}
		if member {
			return true, nil
		}
	}
	return false, nil
}

type overrideRequest struct {
	Bucket string `json:"bucket"` // empty clears the override
	Reason string `json:"reason"`
}

// ServeSetOverride handles PUT /levels/override/{userID} (admin). An
// empty bucket clears the override so normalization applies again.
func (h *Handler) ServeSetOverride(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "userID")
	userID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid user id %q", raw))
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	var bucket *models.LevelBucket
	name := strings.ToUpper(strings.TrimSpace(req.Bucket))
	if name != "" {
		b, ok := models.BucketFromName(name)
		if !ok {
			apierr.WriteError(w, apierr.BadRequest("unknown bucket %q", req.Bucket))
			return
		}
		bucket = &b
	}

	_, _, adminID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("user not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load user", err)
		return
	}

	if err := h.Users.SetOverride(ctx, userID, bucket); err != nil {
		h.Errs.Fail(w, r, "failed to set override", err)
		return
	}

	prev := ""
	if u.ProficiencyOverride != nil {
		prev = string(*u.ProficiencyOverride)
	}
	next := ""
	if bucket != nil {
		next = string(*bucket)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "admin override"
	}
	if err := h.History.Append(ctx, models.LevelHistory{
		UserID:        userID,
		PreviousValue: prev,
		NewValue:      next,
		ChangedBy:     adminID,
		Reason:        reason,
	}); err != nil {
		h.Log.Warn("failed to append level history",
			zap.Error(err),
			zap.String("user_id", userID.Hex()))
	}

	fresh, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to reload user", err)
		return
	}
	effective := syslevels.Effective(*fresh)
	apierr.WriteJSON(w, http.StatusOK, map[string]string{
		"override":           next,
		"proficiency_bucket": string(effective),
		"proficiency_level":  effective.Label(),
	})
}

// ServeHistory handles GET /levels/history/{userID} (admin).
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "userID")
	userID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid user id %q", raw))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("user not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load user", err)
		return
	}

	history, err := h.History.ListByUser(ctx, userID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list level history", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"history": history})
}

// ServePreview handles GET /levels/preview?scale=IELTS&value=6.5. It
// shows what bucket a score would normalize to without saving anything.
func (h *Handler) ServePreview(w http.ResponseWriter, r *http.Request) {
	scale := models.LevelScale(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("scale"))))
	if !models.IsValidLevelScale(string(scale)) {
		apierr.WriteError(w, apierr.BadRequest("unknown scale %q", r.URL.Query().Get("scale")))
		return
	}
	value := strings.TrimSpace(r.URL.Query().Get("value"))

	bucket := syslevels.Normalize(scale, value)
	apierr.WriteJSON(w, http.StatusOK, map[string]string{
		"proficiency_bucket": string(bucket),
		"proficiency_level":  bucket.Label(),
	})
}
