// internal/app/features/sessions/handler.go
package sessions

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
	"github.com/chitchatclub/chitchatclub/internal/app/system/htmlsanitize"
	"github.com/chitchatclub/chitchatclub/internal/app/system/levels"
	"github.com/chitchatclub/chitchatclub/internal/app/system/mailer"
	"github.com/chitchatclub/chitchatclub/internal/app/system/timeouts"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves club session scheduling and registration.
type Handler struct {
	Sessions *clubsessionstore.Store
	Regs     *registrationstore.Store
	Users    *userstore.Store
	Settings *settingstore.Store
	Mail     *mailer.Mailer
	SiteName string
	Log      *zap.Logger
	Errs     *apierr.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(sessions *clubsessionstore.Store, regs *registrationstore.Store, users *userstore.Store, settings *settingstore.Store, mail *mailer.Mailer, siteName string, logger *zap.Logger) *Handler {
	return &Handler{
		Sessions: sessions,
		Regs:     regs,
		Users:    users,
		Settings: settings,
		Mail:     mail,
		SiteName: siteName,
		Log:      logger,
		Errs:     apierr.NewLogger(logger),
	}
}

// sessionView is the session shape returned to clients. Meeting details
// and the attendance code are filled in only when the caller is allowed
// to see them.
type sessionView struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxParticipants int       `json:"max_participants"`
	Status          string    `json:"status"`

	Registered      int64 `json:"registered"`
	CallerJoined    bool  `json:"caller_joined"`
	CallerModerates bool  `json:"caller_moderates"`

	MeetingLink     string `json:"meeting_link,omitempty"`
	MeetingID       string `json:"meeting_id,omitempty"`
	MeetingPassword string `json:"meeting_password,omitempty"`
	AttendanceCode  string `json:"attendance_code,omitempty"`
}

func newSessionView(cs models.ClubSession) sessionView {
	return sessionView{
		ID:              cs.ID.Hex(),
		Title:           cs.Title,
		Description:     cs.Description,
		StartAt:         cs.StartAt,
		DurationMinutes: cs.DurationMinutes,
		MaxParticipants: cs.MaxParticipants,
		Status:          cs.Status,
	}
}

func sessionIDParam(r *http.Request) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, "sessionID")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apierr.BadRequest("invalid session id %q", raw)
	}
	return id, nil
}

// ServeList handles GET /sessions. Without a status filter it returns
// upcoming open sessions; admins can pass ?status= or ?all=1.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		list []models.ClubSession
		err  error
	)
	switch {
	case r.URL.Query().Get("all") != "" && authz.IsAdmin(r):
		list, err = h.Sessions.ListAll(ctx)
	case r.URL.Query().Get("status") != "" && authz.IsAdmin(r):
		list, err = h.Sessions.ListByStatus(ctx, strings.ToLower(r.URL.Query().Get("status")))
	default:
		list, err = h.Sessions.ListUpcoming(ctx, 100)
	}
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list sessions", err)
		return
	}

	views := make([]sessionView, 0, len(list))
	for _, cs := range list {
		views = append(views, newSessionView(cs))
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// ServeUpcoming handles GET /sessions/upcoming. It returns the next
// three open sessions, a shape the club homepage renders.
func (h *Handler) ServeUpcoming(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Sessions.ListUpcoming(ctx, 3)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list upcoming sessions", err)
		return
	}

	views := make([]sessionView, 0, len(list))
	for _, cs := range list {
		v := newSessionView(cs)
		count, err := h.Regs.CountParticipants(ctx, cs.ID)
		if err != nil {
			h.Errs.ServerError(w, r, "failed to count registrations", err)
			return
		}
		v.Registered = count
		views = append(views, v)
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// ServeAnnounce handles POST /sessions/{sessionID}/announce (admin). It
// emails every registrant the session details.
func (h *Handler) ServeAnnounce(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	cs, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load session", err)
		return
	}

	regs, err := h.Regs.ListBySession(ctx, cs.ID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list registrations", err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(regs))
	for _, reg := range regs {
		ids = append(ids, reg.UserID)
	}
	recipients, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to resolve registrants", err)
		return
	}

	sent := 0
	for _, u := range recipients {
		email := mailer.BuildSessionAnnouncement(mailer.SessionAnnouncementData{
			SiteName:    h.SiteName,
			Title:       cs.Title,
			StartAt:     cs.StartAt,
			MeetingLink: cs.MeetingLink,
		})
		email.To = u.Email
		if err := h.Mail.Send(email); err != nil {
			h.Log.Warn("failed to send session announcement",
				zap.Error(err),
				zap.String("to", u.Email),
				zap.String("session_id", cs.ID.Hex()))
			continue
		}
		sent++
	}

	h.Log.Info("session announced",
		zap.String("session_id", cs.ID.Hex()),
		zap.Int("recipients", sent))
	apierr.WriteJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

// ServeDetail handles GET /sessions/{sessionID}. Meeting details are
// included only for moderators, admins, and registrants with a verified
// email. The attendance code is included only for moderators and admins.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cs, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load session", err)
		return
	}

	view := newSessionView(*cs)

	count, err := h.Regs.CountParticipants(ctx, cs.ID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to count registrations", err)
		return
	}
	view.Registered = count

	role, _, userID, signedIn := authz.UserCtx(r)
	canModerate := models.CanModerate(role)
	var verifiedRegistrant bool
	if signedIn {
		reg, err := h.Regs.Get(ctx, cs.ID, userID)
		switch {
		case err == nil:
			view.CallerJoined = true
			view.CallerModerates = reg.AsModerator
			if u, uerr := h.Users.GetByID(ctx, userID); uerr == nil && u.EmailVerified {
				verifiedRegistrant = true
			}
		case !errors.Is(err, mongo.ErrNoDocuments):
			h.Errs.ServerError(w, r, "failed to load registration", err)
			return
		}
	}

	if canModerate || verifiedRegistrant {
		view.MeetingLink = cs.MeetingLink
		view.MeetingID = cs.MeetingID
		view.MeetingPassword = cs.MeetingPassword
	}
	if canModerate {
		view.AttendanceCode = cs.AttendanceCode
	}

	apierr.WriteJSON(w, http.StatusOK, view)
}

type createRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxParticipants int       `json:"max_participants"`
	MeetingLink     string    `json:"meeting_link"`
	MeetingID       string    `json:"meeting_id"`
	MeetingPassword string    `json:"meeting_password"`
}

// ServeCreate handles POST /sessions (admin).
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		apierr.WriteError(w, apierr.BadRequest("title is required"))
		return
	}
	if req.StartAt.IsZero() {
		apierr.WriteError(w, apierr.BadRequest("start_at is required"))
		return
	}
	if req.DurationMinutes < 0 || req.MaxParticipants < 0 {
		apierr.WriteError(w, apierr.BadRequest("duration_minutes and max_participants must not be negative"))
		return
	}

	_, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cs, err := h.Sessions.Create(ctx, models.ClubSession{
		Title:           htmlsanitize.StripTags(req.Title),
		Description:     htmlsanitize.Sanitize(req.Description),
		StartAt:         req.StartAt,
		DurationMinutes: req.DurationMinutes,
		MaxParticipants: req.MaxParticipants,
		Status:          models.SessionDraft,
		MeetingLink:     strings.TrimSpace(req.MeetingLink),
		MeetingID:       strings.TrimSpace(req.MeetingID),
		MeetingPassword: req.MeetingPassword,
		CreatedBy:       userID,
	})
	if err != nil {
		h.Errs.Fail(w, r, "failed to create session", err)
		return
	}

	view := newSessionView(cs)
	view.MeetingLink = cs.MeetingLink
	view.MeetingID = cs.MeetingID
	view.MeetingPassword = cs.MeetingPassword
	view.AttendanceCode = cs.AttendanceCode
	apierr.WriteJSON(w, http.StatusCreated, view)
}

type updateRequest struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	StartAt         *time.Time `json:"start_at"`
	DurationMinutes *int       `json:"duration_minutes"`
	MaxParticipants *int       `json:"max_participants"`
	MeetingLink     *string    `json:"meeting_link"`
	MeetingID       *string    `json:"meeting_id"`
	MeetingPassword *string    `json:"meeting_password"`
}

// ServeUpdate handles PATCH /sessions/{sessionID} (admin). Absent
// fields are left untouched.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	upd := clubsessionstore.Update{
		StartAt:         req.StartAt,
		DurationMinutes: req.DurationMinutes,
		MaxParticipants: req.MaxParticipants,
		MeetingID:       req.MeetingID,
		MeetingPassword: req.MeetingPassword,
	}
	if req.Title != nil {
		clean := htmlsanitize.StripTags(*req.Title)
		upd.Title = &clean
	}
	if req.Description != nil {
		clean := htmlsanitize.Sanitize(*req.Description)
		upd.Description = &clean
	}
	if req.MeetingLink != nil {
		clean := strings.TrimSpace(*req.MeetingLink)
		upd.MeetingLink = &clean
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Sessions.Apply(ctx, id, upd); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.Fail(w, r, "failed to update session", err)
		return
	}

	cs, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to reload session", err)
		return
	}
	view := newSessionView(*cs)
	view.MeetingLink = cs.MeetingLink
	view.MeetingID = cs.MeetingID
	view.MeetingPassword = cs.MeetingPassword
	apierr.WriteJSON(w, http.StatusOK, view)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeSetStatus handles POST /sessions/{sessionID}/status (admin).
func (h *Handler) ServeSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	switch status {
	case models.SessionDraft, models.SessionOpen, models.SessionCompleted, models.SessionCancelled:
	default:
		apierr.WriteError(w, apierr.BadRequest("unknown status %q", req.Status))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Sessions.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.Fail(w, r, "failed to set session status", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

// ServeRegenerateCode handles POST /sessions/{sessionID}/attendance-code
// (admin). It invalidates the old code immediately.
func (h *Handler) ServeRegenerateCode(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	code, err := h.Sessions.RegenerateAttendanceCode(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to regenerate attendance code", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"attendance_code": code})
}

type registerRequest struct {
	AsModerator bool `json:"as_moderator"`
}

// ServeRegister handles POST /sessions/{sessionID}/register. Blacklisted
// users cannot register, moderator slots need moderator privileges, and
// participant slots honor the session capacity.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	var req registerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
			return
		}
	}

	role, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cs, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load session", err)
		return
	}
	if cs.Status != models.SessionOpen {
		apierr.WriteError(w, apierr.Conflict("session is not open for registration"))
		return
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to load account", err)
		return
	}
	if u.BlacklistedUntil != nil {
		if u.BlacklistedUntil.After(time.Now()) {
			apierr.WriteJSON(w, http.StatusForbidden, map[string]string{
				"error": "registration blocked until " + u.BlacklistedUntil.UTC().Format("2006-01-02"),
			})
			return
		}
		// The block has lapsed. Wipe it so the no-show count starts fresh.
		if err := h.Users.ClearBlacklist(ctx, userID); err != nil {
			h.Errs.ServerError(w, r, "failed to clear expired blacklist", err)
			return
		}
	}

	if req.AsModerator && !models.CanModerate(role) {
		apierr.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "moderator registration requires moderator privileges"})
		return
	}

	if !req.AsModerator && cs.MaxParticipants > 0 {
		count, err := h.Regs.CountParticipants(ctx, cs.ID)
		if err != nil {
			h.Errs.ServerError(w, r, "failed to count registrations", err)
			return
		}
		if count >= int64(cs.MaxParticipants) {
			apierr.WriteError(w, apierr.Conflict("session is full"))
			return
		}
	}

	reg, err := h.Regs.Add(ctx, cs.ID, userID, req.AsModerator)
	if err != nil {
		if errors.Is(err, registrationstore.ErrDuplicateRegistration) {
			apierr.WriteError(w, apierr.Conflict("already registered for this session"))
			return
		}
		h.Errs.ServerError(w, r, "failed to register", err)
		return
	}

	apierr.WriteJSON(w, http.StatusCreated, reg)
}

// ServeUnregister handles DELETE /sessions/{sessionID}/register. Users
// can withdraw up to the cutoff before the session starts.
func (h *Handler) ServeUnregister(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	_, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cs, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load session", err)
		return
	}

	cutoffHours, err := h.Settings.GetInt(ctx, settingstore.KeyUnregisterCutoffHours, settingstore.DefaultUnregisterCutoffHours)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to load settings", err)
		return
	}
	cutoff := cs.StartAt.Add(-time.Duration(cutoffHours) * time.Hour)
	if time.Now().After(cutoff) {
		apierr.WriteError(w, apierr.Conflict("cannot unregister within %d hours of the session start", cutoffHours))
		return
	}

	removed, err := h.Regs.Remove(ctx, cs.ID, userID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to unregister", err)
		return
	}
	if removed == 0 {
		apierr.WriteError(w, apierr.NotFound("not registered for this session"))
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}

// registrantView pairs a registration with the user's profile basics.
type registrantView struct {
	UserID           string `json:"user_id"`
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	AsModerator      bool   `json:"as_moderator"`
	Attended         *bool  `json:"attended,omitempty"`
	ProficiencyLevel string `json:"proficiency_level"`
}

// ServeRegistrants handles GET /sessions/{sessionID}/registrations
// (moderator or admin).
func (h *Handler) ServeRegistrants(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Sessions.GetByID(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("session not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load session", err)
		return
	}

	regs, err := h.Regs.ListBySession(ctx, id)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list registrations", err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(regs))
	for _, reg := range regs {
		ids = append(ids, reg.UserID)
	}
	users, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to load registrants", err)
		return
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]registrantView, 0, len(regs))
	for _, reg := range regs {
		u, ok := byID[reg.UserID]
		if !ok {
			continue // account deleted after registering
		}
		views = append(views, registrantView{
			UserID:           u.ID.Hex(),
			FullName:         u.FullName,
			Email:            u.Email,
			AsModerator:      reg.AsModerator,
			Attended:         reg.Attended,
			ProficiencyLevel: levels.Effective(u).Label(),
		})
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"registrations": views})
}

// ServeMyRegistrations handles GET /sessions/mine.
func (h *Handler) ServeMyRegistrations(w http.ResponseWriter, r *http.Request) {
	_, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	regs, err := h.Regs.ListByUser(ctx, userID)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to list registrations", err)
		return
	}

	type mine struct {
		Session     sessionView `json:"session"`
		AsModerator bool        `json:"as_moderator"`
		Attended    *bool       `json:"attended,omitempty"`
	}
	out := make([]mine, 0, len(regs))
	for _, reg := range regs {
		cs, err := h.Sessions.GetByID(ctx, reg.SessionID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue // session deleted
			}
			h.Errs.ServerError(w, r, "failed to load session", err)
			return
		}
		out = append(out, mine{Session: newSessionView(*cs), AsModerator: reg.AsModerator, Attended: reg.Attended})
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]any{"registrations": out})
}
