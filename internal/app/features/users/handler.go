// internal/app/features/users/handler.go
package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/apierr"
	"github.com/chitchatclub/chitchatclub/internal/app/system/authz"
	"github.com/chitchatclub/chitchatclub/internal/app/system/htmlsanitize"
	"github.com/chitchatclub/chitchatclub/internal/app/system/levels"
	"github.com/chitchatclub/chitchatclub/internal/app/system/normalize"
	"github.com/chitchatclub/chitchatclub/internal/app/system/timeouts"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves member administration and profile updates.
type Handler struct {
	Users *userstore.Store
	Log   *zap.Logger
	Errs  *apierr.Logger
}

// NewHandler creates a users handler.
func NewHandler(users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Users: users,
		Log:   logger,
		Errs:  apierr.NewLogger(logger),
	}
}

// memberView is the admin-facing projection of a user.
type memberView struct {
	ID               string `json:"id"`
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	EmailVerified    bool   `json:"email_verified"`
	ProficiencyLevel string `json:"proficiency_level"`
	NoShowCount      int    `json:"no_show_count"`
	Blacklisted      bool   `json:"blacklisted"`
}

func newMemberView(u models.User) memberView {
	return memberView{
		ID:               u.ID.Hex(),
		FullName:         u.FullName,
		Email:            u.Email,
		Role:             u.Role,
		EmailVerified:    u.EmailVerified,
		ProficiencyLevel: levels.Effective(u).Label(),
		NoShowCount:      u.NoShowCount,
		Blacklisted:      u.BlacklistedUntil != nil,
	}
}

// ServeSearch handles GET /users/search?q= (admin). Matching is
// case- and diacritic-insensitive on name and email.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	q := normalize.QueryParam(r.URL.Query().Get("q"))
	if q == "" {
		apierr.WriteError(w, apierr.BadRequest("q is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	users, err := h.Users.Search(ctx, q, 50)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to search users", err)
		return
	}

	views := make([]memberView, 0, len(users))
	for _, u := range users {
		views = append(views, newMemberView(u))
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"users": views})
}

type roleRequest struct {
	Role string `json:"role"`
}

// ServeSetRole handles POST /users/{userID}/role (admin). Only a
// superadmin may grant or revoke the admin roles.
func (h *Handler) ServeSetRole(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "userID")
	userID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid user id %q", raw))
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	role := normalize.Role(req.Role)
	switch role {
	case models.RoleMember, models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin:
	default:
		apierr.WriteError(w, apierr.BadRequest("unknown role %q", req.Role))
		return
	}

	callerRole, _, callerID, _ := authz.UserCtx(r)
	if (role == models.RoleAdmin || role == models.RoleSuperAdmin) && callerRole != models.RoleSuperAdmin {
		apierr.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "only a superadmin can grant admin roles"})
		return
	}
	if userID == callerID {
		apierr.WriteError(w, apierr.BadRequest("cannot change your own role"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	target, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("user not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load user", err)
		return
	}
	if (target.Role == models.RoleAdmin || target.Role == models.RoleSuperAdmin) && callerRole != models.RoleSuperAdmin {
		apierr.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "only a superadmin can change an admin's role"})
		return
	}

	if err := h.Users.SetRole(ctx, userID, role); err != nil {
		h.Errs.Fail(w, r, "failed to set role", err)
		return
	}

	h.Log.Info("user role changed",
		zap.String("user_id", userID.Hex()),
		zap.String("role", role),
		zap.String("changed_by", callerID.Hex()))

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"role": role})
}

type profileRequest struct {
	FullName string `json:"full_name"`
}

// ServeUpdateProfile handles PATCH /users/me.
func (h *Handler) ServeUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	name := htmlsanitize.StripTags(strings.TrimSpace(req.FullName))
	if name == "" {
		apierr.WriteError(w, apierr.BadRequest("full_name is required"))
		return
	}

	_, _, userID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, userID, name); err != nil {
		h.Errs.Fail(w, r, "failed to update profile", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"full_name": name})
}

// ServeGet handles GET /users/{userID} (admin).
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "userID")
	userID, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid user id %q", raw))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
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

	apierr.WriteJSON(w, http.StatusOK, newMemberView(*u))
}
