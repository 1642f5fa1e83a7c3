// internal/app/features/attendance/handler.go
package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	clubsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/clubsessions"
	registrationstore "github.com/chitchatclub/chitchatclub/internal/app/store/registrations"
	settingstore "github.com/chitchatclub/chitchatclub/internal/app/store/settings"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/apierr"
	"github.com/chitchatclub/chitchatclub/internal/app/system/authz"
	"github.com/chitchatclub/chitchatclub/internal/app/system/timeouts"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves attendance verification and no-show finalization.
type Handler struct {
	Sessions *clubsessionstore.Store
	Regs     *registrationstore.Store
	Users    *userstore.Store
	Settings *settingstore.Store
	Log      *zap.Logger
	Errs     *apierr.Logger
}

// NewHandler creates an attendance handler.
func NewHandler(sessions *clubsessionstore.Store, regs *registrationstore.Store, users *userstore.Store, settings *settingstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Sessions: sessions,
		Regs:     regs,
		Users:    users,
		Settings: settings,
		Log:      logger,
		Errs:     apierr.NewLogger(logger),
	}
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

// ServeVerify handles POST /attendance/verify. The registrant submits
// the code announced during the call to confirm they attended.
func (h *Handler) ServeVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	sessionID, err := primitive.ObjectIDFromHex(req.SessionID)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid session_id %q", req.SessionID))
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		apierr.WriteError(w, apierr.BadRequest("code is required"))
		return
	}

	_, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cs, err := h.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load session", err)
		return
	}

	if cs.Status != models.SessionCompleted {
		apierr.WriteError(w, apierr.BadRequest("session is not yet completed"))
		return
	}

	reg, err := h.Regs.Get(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.BadRequest("not registered for this session"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load registration", err)
		return
	}
	if reg.Attended != nil && *reg.Attended {
		apierr.WriteError(w, apierr.BadRequest("attendance already verified"))
		return
	}

	// A wrong code is not an error, the caller just has not verified.
	if code != cs.AttendanceCode {
		apierr.WriteJSON(w, http.StatusOK, map[string]bool{"attended": false})
		return
	}

	if err := h.Regs.SetAttended(ctx, sessionID, userID, true); err != nil {
		h.Errs.ServerError(w, r, "failed to record attendance", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]bool{"attended": true})
}

type finalizeRequest struct {
	SessionID string `json:"session_id"`
}

// finalizeResult reports what finalization did.
type finalizeResult struct {
	NoShows     int      `json:"no_shows"`
	Blacklisted []string `json:"blacklisted"`
}

// ServeFinalize handles POST /attendance/finalize (admin). Every
// registrant who never verified is marked a no-show; users whose
// no-show count reaches the configured limit are blacklisted for the
// configured number of days.
func (h *Handler) ServeFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	sessionID, err := primitive.ObjectIDFromHex(req.SessionID)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid session_id %q", req.SessionID))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	cs, err := h.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load session", err)
		return
	}
	if cs.Status != models.SessionCompleted {
		apierr.WriteError(w, apierr.BadRequest("session must be completed to finalize attendance"))
		return
	}

	maxNoShows, err := h.Settings.GetInt(ctx, settingstore.KeyMaxNoShows, settingstore.DefaultMaxNoShows)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to load settings", err)
		return
	}
	blacklistDays, err := h.Settings.GetInt(ctx, settingstore.KeyBlacklistDurationDays, settingstore.DefaultBlacklistDurationDays)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to load settings", err)
		return
	}

	unverified, err := h.Regs.ListUnverified(ctx, sessionID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list unverified registrations", err)
		return
	}

	result := finalizeResult{Blacklisted: []string{}}
	until := time.Now().UTC().AddDate(0, 0, blacklistDays)
	for _, reg := range unverified {
		if err := h.Regs.SetAttended(ctx, sessionID, reg.UserID, false); err != nil {
			h.Errs.ServerError(w, r, "failed to mark no-show", err)
			return
		}
		count, err := h.Users.IncNoShow(ctx, reg.UserID)
		if err != nil {
			h.Errs.ServerError(w, r, "failed to increment no-show count", err)
			return
		}
		result.NoShows++

		if count >= maxNoShows {
			if err := h.Users.SetBlacklist(ctx, reg.UserID, until); err != nil {
				h.Errs.ServerError(w, r, "failed to blacklist user", err)
				return
			}
			result.Blacklisted = append(result.Blacklisted, reg.UserID.Hex())
			h.Log.Info("user blacklisted for repeated no-shows",
				zap.String("user_id", reg.UserID.Hex()),
				zap.Int("no_show_count", count),
				zap.Time("until", until))
		}
	}

	apierr.WriteJSON(w, http.StatusOK, result)
}

// settingDefaults maps the tunable keys to their fallback values.
var settingDefaults = map[string]int{
	settingstore.KeyUnregisterCutoffHours: settingstore.DefaultUnregisterCutoffHours,
	settingstore.KeyMaxNoShows:            settingstore.DefaultMaxNoShows,
	settingstore.KeyBlacklistDurationDays: settingstore.DefaultBlacklistDurationDays,
	settingstore.KeyDefaultRoomSize:       settingstore.DefaultRoomSize,
}

// ServeGetSettings handles GET /attendance/settings (admin). It returns
// the effective value of every tunable.
func (h *Handler) ServeGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	out := make(map[string]int, len(settingDefaults))
	for key, fallback := range settingDefaults {
		v, err := h.Settings.GetInt(ctx, key, fallback)
		if err != nil {
			h.Errs.ServerError(w, r, "failed to load settings", err)
			return
		}
		out[key] = v
	}
	apierr.WriteJSON(w, http.StatusOK, out)
}

// ServeUpdateSettings handles PATCH /attendance/settings (admin). The
// body carries a partial map of tunables.
func (h *Handler) ServeUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]int
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	if len(updates) == 0 {
		apierr.WriteError(w, apierr.BadRequest("no settings given"))
		return
	}
	for key, v := range updates {
		if _, known := settingDefaults[key]; !known {
			apierr.WriteError(w, apierr.BadRequest("unknown setting %q", key))
			return
		}
		if v <= 0 {
			apierr.WriteError(w, apierr.BadRequest("%s must be positive", key))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	for key, v := range updates {
		if err := h.Settings.SetInt(ctx, key, v); err != nil {
			h.Errs.ServerError(w, r, "failed to store setting", err)
			return
		}
		h.Log.Info("setting updated", zap.String("key", key), zap.Int("value", v))
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type clearBlacklistRequest struct {
	UserID string `json:"user_id"`
}

// ServeClearBlacklist handles POST /attendance/clear-blacklist (admin).
// It lifts the block and resets the no-show count.
func (h *Handler) ServeClearBlacklist(w http.ResponseWriter, r *http.Request) {
	var req clearBlacklistRequest
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

	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("user not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load user", err)
		return
	}

	if err := h.Users.ClearBlacklist(ctx, userID); err != nil {
		h.Errs.ServerError(w, r, "failed to clear blacklist", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "blacklist cleared"})
}
