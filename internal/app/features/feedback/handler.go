// internal/app/features/feedback/handler.go
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	feedbackstore "github.com/chitchatclub/chitchatclub/internal/app/store/feedback"
	registrationstore "github.com/chitchatclub/chitchatclub/internal/app/store/registrations"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/apierr"
	"github.com/chitchatclub/chitchatclub/internal/app/system/authz"
	"github.com/chitchatclub/chitchatclub/internal/app/system/htmlsanitize"
	"github.com/chitchatclub/chitchatclub/internal/app/system/timeouts"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves post-session feedback.
type Handler struct {
	Feedback *feedbackstore.Store
	Regs     *registrationstore.Store
	Users    *userstore.Store
	Log      *zap.Logger
	Errs     *apierr.Logger
}

// NewHandler creates a feedback handler.
func NewHandler(feedback *feedbackstore.Store, regs *registrationstore.Store, users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Feedback: feedback,
		Regs:     regs,
		Users:    users,
		Log:      logger,
		Errs:     apierr.NewLogger(logger),
	}
}

type submitRequest struct {
	SessionID string `json:"session_id"`
	ToUserID  string `json:"to_user_id"`
	Rating    int    `json:"rating"`
	Text      string `json:"text"`
	Anonymous bool   `json:"anonymous"`
}

// ServeSubmit handles POST /feedback. Only registrants of the session
// may leave feedback, and peer feedback requires the subject to be a
// registrant of the same session.
func (h *Handler) ServeSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	sessionID, err := primitive.ObjectIDFromHex(req.SessionID)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid session_id %q", req.SessionID))
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		apierr.WriteError(w, apierr.BadRequest("rating must be between 1 and 5"))
		return
	}

	_, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	registered, err := h.Regs.Exists(ctx, sessionID, userID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to check registration", err)
		return
	}
	if !registered {
		apierr.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "feedback is limited to session registrants"})
		return
	}

	fb := models.Feedback{
		SessionID:  sessionID,
		FromUserID: userID,
		Rating:     req.Rating,
		Text:       strings.TrimSpace(htmlsanitize.StripTags(req.Text)),
		Anonymous:  req.Anonymous,
	}

	if req.ToUserID != "" {
		toID, err := primitive.ObjectIDFromHex(req.ToUserID)
		if err != nil {
			apierr.WriteError(w, apierr.BadRequest("invalid to_user_id %q", req.ToUserID))
			return
		}
		if toID == userID {
			apierr.WriteError(w, apierr.BadRequest("cannot leave feedback about yourself"))
			return
		}
		peerRegistered, err := h.Regs.Exists(ctx, sessionID, toID)
		if err != nil {
			h.Errs.ServerError(w, r, "failed to check peer registration", err)
			return
		}
		if !peerRegistered {
			apierr.WriteError(w, apierr.BadRequest("to_user_id is not registered for this session"))
			return
		}
		fb.ToUserID = &toID
	}

	created, err := h.Feedback.Create(ctx, fb)
	if err != nil {
		h.Errs.Fail(w, r, "failed to store feedback", err)
		return
	}

	apierr.WriteJSON(w, http.StatusCreated, created)
}

// entryView is a feedback entry with the author resolved, or hidden for
// anonymous entries.
type entryView struct {
	ID        string `json:"id"`
	FromName  string `json:"from_name,omitempty"`
	ToUserID  string `json:"to_user_id,omitempty"`
	Rating    int    `json:"rating"`
	Text      string `json:"text,omitempty"`
	Anonymous bool   `json:"anonymous"`
}

// ServeListBySession handles GET /feedback/session/{sessionID}
// (moderator or admin). Anonymous entries never expose the author.
func (h *Handler) ServeListBySession(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "sessionID")
	sessionID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid session id %q", raw))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Feedback.ListBySession(ctx, sessionID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list feedback", err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(list))
	for _, fb := range list {
		if !fb.Anonymous {
			ids = append(ids, fb.FromUserID)
		}
	}
	names := make(map[primitive.ObjectID]string)
	if len(ids) > 0 {
		users, err := h.Users.GetByIDs(ctx, ids)
		if err != nil {
			h.Errs.ServerError(w, r, "failed to resolve authors", err)
			return
		}
		for _, u := range users {
			names[u.ID] = u.FullName
		}
	}

	views := make([]entryView, 0, len(list))
	for _, fb := range list {
		v := entryView{
			ID:        fb.ID.Hex(),
			Rating:    fb.Rating,
			Text:      fb.Text,
			Anonymous: fb.Anonymous,
		}
		if !fb.Anonymous {
			v.FromName = names[fb.FromUserID]
		}
		if fb.ToUserID != nil {
			v.ToUserID = fb.ToUserID.Hex()
		}
		views = append(views, v)
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"feedback": views})
}

// ServeMine handles GET /feedback/session/{sessionID}/mine. It lists
// the feedback the caller submitted for the session.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "sessionID")
	sessionID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid session id %q", raw))
		return
	}

	_, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Feedback.ListByAuthor(ctx, sessionID, userID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list feedback", err)
		return
	}

	views := make([]entryView, 0, len(list))
	for _, fb := range list {
		v := entryView{
			ID:        fb.ID.Hex(),
			Rating:    fb.Rating,
			Text:      fb.Text,
			Anonymous: fb.Anonymous,
		}
		if fb.ToUserID != nil {
			v.ToUserID = fb.ToUserID.Hex()
		}
		views = append(views, v)
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"feedback": views})
}

// ServeReceived handles GET /feedback/session/{sessionID}/received. It
// lists peer feedback the caller received in the session. Authors are
// never exposed here.
func (h *Handler) ServeReceived(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "sessionID")
	sessionID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid session id %q", raw))
		return
	}

	_, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Feedback.ListReceived(ctx, sessionID, userID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list feedback", err)
		return
	}

	views := make([]entryView, 0, len(list))
	for _, fb := range list {
		views = append(views, entryView{
			ID:        fb.ID.Hex(),
			Rating:    fb.Rating,
			Text:      fb.Text,
			Anonymous: fb.Anonymous,
		})
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"feedback": views})
}

// ServeSessionAverage handles GET /feedback/session/{sessionID}/average.
func (h *Handler) ServeSessionAverage(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "sessionID")
	sessionID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid session id %q", raw))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	avg, count, err := h.Feedback.SessionAverage(ctx, sessionID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to compute average", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{
		"average": math.Round(avg*100) / 100,
		"count":   count,
	})
}

// ServeAboutUser handles GET /feedback/user/{userID} (admin). It lists
// peer feedback written about a user across sessions.
func (h *Handler) ServeAboutUser(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.Feedback.ListAboutUser(ctx, userID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list feedback", err)
		return
	}

	views := make([]entryView, 0, len(list))
	for _, fb := range list {
		views = append(views, entryView{
			ID:        fb.ID.Hex(),
			Rating:    fb.Rating,
			Text:      fb.Text,
			Anonymous: fb.Anonymous,
		})
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"feedback": views})
}
