// internal/app/features/accounts/handler.go
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	authsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/authsessions"
	emailverifystore "github.com/chitchatclub/chitchatclub/internal/app/store/emailverify"
	passwordresetstore "github.com/chitchatclub/chitchatclub/internal/app/store/passwordreset"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/apierr"
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/app/system/authz"
	"github.com/chitchatclub/chitchatclub/internal/app/system/htmlsanitize"
	"github.com/chitchatclub/chitchatclub/internal/app/system/inputval"
	"github.com/chitchatclub/chitchatclub/internal/app/system/levels"
	"github.com/chitchatclub/chitchatclub/internal/app/system/mailer"
	"github.com/chitchatclub/chitchatclub/internal/app/system/normalize"
	"github.com/chitchatclub/chitchatclub/internal/app/system/ratelimit"
	"github.com/chitchatclub/chitchatclub/internal/app/system/timeouts"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// Handler serves account registration, login, and email verification.
type Handler struct {
	Users        *userstore.Store
	Verify       *emailverifystore.Store
	Resets       *passwordresetstore.Store
	AuthSessions *authsessionstore.Store
	Mail         *mailer.Mailer
	SM           *auth.SessionManager
	Log          *zap.Logger
	Errs         *apierr.Logger
	Limiter      *ratelimit.LoginLimiter

	// BaseURL is the external origin used to build magic links,
	// e.g. "https://club.example.org".
	BaseURL  string
	SiteName string
}

// NewHandler creates an accounts handler.
func NewHandler(users *userstore.Store, verify *emailverifystore.Store, resets *passwordresetstore.Store, authSessions *authsessionstore.Store, mail *mailer.Mailer, sm *auth.SessionManager, baseURL, siteName string, logger *zap.Logger) *Handler {
	return &Handler{
		Users:        users,
		Verify:       verify,
		Resets:       resets,
		AuthSessions: authSessions,
		Mail:         mail,
		SM:           sm,
		Log:          logger,
		Errs:         apierr.NewLogger(logger),
		Limiter:      ratelimit.NewLoginLimiter(),
		BaseURL:      strings.TrimRight(baseURL, "/"),
		SiteName:     siteName,
	}
}

// profileView is the account shape returned to the signed-in user.
type profileView struct {
	ID                string              `json:"id"`
	FullName          string              `json:"full_name"`
	Email             string              `json:"email"`
	Role              string              `json:"role"`
	EmailVerified     bool                `json:"email_verified"`
	EnglishLevelType  models.LevelScale   `json:"english_level_type,omitempty"`
	EnglishLevelValue string              `json:"english_level_value,omitempty"`
	ProficiencyLevel  string              `json:"proficiency_level"`
	Override          *models.LevelBucket `json:"proficiency_override,omitempty"`
	NoShowCount       int                 `json:"no_show_count"`
	BlacklistedUntil  *string             `json:"blacklisted_until,omitempty"`
}

func newProfileView(u models.User) profileView {
	v := profileView{
		ID:                u.ID.Hex(),
		FullName:          u.FullName,
		Email:             u.Email,
		Role:              u.Role,
		EmailVerified:     u.EmailVerified,
		EnglishLevelType:  u.EnglishLevelType,
		EnglishLevelValue: u.EnglishLevelValue,
		ProficiencyLevel:  levels.Effective(u).Label(),
		Override:          u.ProficiencyOverride,
		NoShowCount:       u.NoShowCount,
	}
	if u.BlacklistedUntil != nil {
		s := u.BlacklistedUntil.UTC().Format("2006-01-02T15:04:05Z")
		v.BlacklistedUntil = &s
	}
	return v
}

type registerRequest struct {
	FullName          string `json:"full_name"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	EnglishLevelType  string `json:"english_level_type"`
	EnglishLevelValue string `json:"english_level_value"`
}

// ServeRegister handles POST /auth/register. It creates a member
// account and emails a verification code.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	fullName := htmlsanitize.StripTags(normalize.Name(req.FullName))
	email := normalize.Email(req.Email)

	if fullName == "" {
		apierr.WriteError(w, apierr.BadRequest("full_name is required"))
		return
	}
	if !inputval.IsValidEmail(email) {
		apierr.WriteError(w, apierr.BadRequest("invalid email address"))
		return
	}
	if !inputval.IsValidPassword(req.Password) {
		apierr.WriteError(w, apierr.BadRequest("password must be at least %d characters", inputval.MinPasswordLength))
		return
	}
	scale := models.LevelScale(strings.ToUpper(strings.TrimSpace(req.EnglishLevelType)))
	if scale != "" && !models.IsValidLevelScale(string(scale)) {
		apierr.WriteError(w, apierr.BadRequest("unknown english_level_type %q", req.EnglishLevelType))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to hash password", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		FullName:          fullName,
		Email:             email,
		AuthMethod:        "internal",
		Role:              models.RoleMember,
		PasswordHash:      string(hash),
		EnglishLevelType:  scale,
		EnglishLevelValue: strings.TrimSpace(req.EnglishLevelValue),
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			apierr.WriteError(w, apierr.Conflict("an account with this email already exists"))
			return
		}
		h.Errs.Fail(w, r, "failed to create account", err)
		return
	}

	h.sendVerification(ctx, u.ID, u.Email)

	apierr.WriteJSON(w, http.StatusCreated, newProfileView(u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ServeLogin handles POST /auth/login.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}

	email := normalize.Email(req.Email)
	if email == "" || req.Password == "" {
		apierr.WriteError(w, apierr.BadRequest("email and password are required"))
		return
	}

	if ok, reason := h.Limiter.Check(r, email); !ok {
		apierr.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": reason})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.writeInvalidCredentials(w)
			return
		}
		h.Errs.ServerError(w, r, "failed to look up user", err)
		return
	}

	if normalize.Status(u.Status) == "disabled" {
		h.writeInvalidCredentials(w)
		return
	}
	if u.PasswordHash == "" {
		// Google-only account, no password to check.
		h.writeInvalidCredentials(w)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		h.writeInvalidCredentials(w)
		return
	}

	if err := h.SM.SignIn(w, r, &auth.SessionUser{
		ID:            u.ID.Hex(),
		Name:          u.FullName,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}); err != nil {
		h.Errs.ServerError(w, r, "failed to establish session", err)
		return
	}

	h.Limiter.ResetEmail(email)

	if _, err := h.AuthSessions.Create(ctx, u.ID, r.RemoteAddr, r.UserAgent(), authsessionstore.CreatedByLogin); err != nil {
		h.Log.Warn("login: failed to record auth session",
			zap.Error(err),
			zap.String("user_id", u.ID.Hex()))
	}

	apierr.WriteJSON(w, http.StatusOK, newProfileView(*u))
}

func (h *Handler) writeInvalidCredentials(w http.ResponseWriter) {
	// Identical response for unknown email and wrong password.
	apierr.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
}

// ServeLogout handles POST /auth/logout.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)

	if err := h.SM.SignOut(w, r); err != nil {
		h.Log.Warn("logout: failed to clear session cookie", zap.Error(err))
	}

	if ok {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		if err := h.AuthSessions.Close(ctx, userID, authsessionstore.EndedByLogout); err != nil {
			h.Log.Warn("logout: failed to close auth session",
				zap.Error(err),
				zap.String("user_id", userID.Hex()))
		}
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// ServeMe handles GET /auth/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		apierr.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			apierr.WriteError(w, apierr.NotFound("account not found"))
			return
		}
		h.Errs.ServerError(w, r, "failed to load account", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, newProfileView(*u))
}

type verifyRequest struct {
	Code string `json:"code"`
}

// ServeVerifyCode handles POST /auth/verify. The signed-in user submits
// the emailed code to mark their address verified.
func (h *Handler) ServeVerifyCode(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		apierr.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		apierr.WriteError(w, apierr.BadRequest("code is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Verify.VerifyCode(ctx, userID, code); err != nil {
		h.writeVerifyError(w, r, err)
		return
	}

	h.finishVerification(ctx, w, r, userID)
}

// ServeVerifyToken handles GET /auth/verify?token=..., the magic link
// from the verification email. It does not require a session.
func (h *Handler) ServeVerifyToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		apierr.WriteError(w, apierr.BadRequest("token is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	v, err := h.Verify.VerifyToken(ctx, token)
	if err != nil {
		h.writeVerifyError(w, r, err)
		return
	}

	h.finishVerification(ctx, w, r, v.UserID)
}

func (h *Handler) finishVerification(ctx context.Context, w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) {
	if err := h.Users.MarkVerified(ctx, userID); err != nil {
		h.Errs.ServerError(w, r, "failed to mark email verified", err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"email_verified": true})
}

func (h *Handler) writeVerifyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, emailverifystore.ErrNotFound):
		apierr.WriteError(w, apierr.NotFound("no pending verification, request a new code"))
	case errors.Is(err, emailverifystore.ErrInvalidCode):
		apierr.WriteError(w, apierr.BadRequest("invalid verification code"))
	case errors.Is(err, emailverifystore.ErrTooManyAttempts):
		apierr.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many attempts, request a new code"})
	default:
		h.Errs.ServerError(w, r, "verification failed", err)
	}
}

// ServeResend handles POST /auth/verify/resend.
func (h *Handler) ServeResend(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		apierr.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to load account", err)
		return
	}
	if u.EmailVerified {
		apierr.WriteError(w, apierr.Conflict("email is already verified"))
		return
	}

	res, err := h.Verify.Create(ctx, u.ID, u.Email, true)
	if err != nil {
		if errors.Is(err, emailverifystore.ErrTooManyResends) {
			apierr.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many resend requests, try again later"})
			return
		}
		h.Errs.ServerError(w, r, "failed to create verification", err)
		return
	}
	h.deliverVerification(u.Email, res)

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "verification email sent"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ServeChangePassword handles POST /auth/password.
func (h *Handler) ServeChangePassword(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		apierr.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	if !inputval.IsValidPassword(req.NewPassword) {
		apierr.WriteError(w, apierr.BadRequest("new password must be at least %d characters", inputval.MinPasswordLength))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Errs.Fail(w, r, "failed to load account", err)
		return
	}
	if u.PasswordHash == "" {
		apierr.WriteError(w, apierr.BadRequest("this account signs in with Google and has no password"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)) != nil {
		apierr.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "current password is incorrect"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to hash password", err)
		return
	}
	if err := h.Users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		h.Errs.ServerError(w, r, "failed to update password", err)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ServeForgotPassword handles POST /auth/password/forgot. The response
// never reveals whether the address has an account.
func (h *Handler) ServeForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	email := normalize.Email(req.Email)
	if email == "" {
		apierr.WriteError(w, apierr.BadRequest("email is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			h.Errs.ServerError(w, r, "failed to look up account", err)
			return
		}
	} else if u.PasswordHash != "" {
		token, err := h.Resets.Create(ctx, u.ID)
		if err != nil {
			h.Errs.ServerError(w, r, "failed to create reset token", err)
			return
		}
		msg := mailer.BuildPasswordResetEmail(mailer.PasswordResetEmailData{
			SiteName:  h.SiteName,
			FullName:  u.FullName,
			ResetLink: fmt.Sprintf("%s/reset-password?token=%s", h.BaseURL, token),
			ExpiresIn: "1 hour",
		})
		msg.To = u.Email
		if err := h.Mail.Send(msg); err != nil {
			h.Log.Warn("failed to send password reset email",
				zap.Error(err),
				zap.String("email", u.Email))
		}
	}

	apierr.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "if that address has an account, a reset link is on its way",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ServeResetPassword handles POST /auth/password/reset.
func (h *Handler) ServeResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		apierr.WriteError(w, apierr.BadRequest("token is required"))
		return
	}
	if !inputval.IsValidPassword(req.NewPassword) {
		apierr.WriteError(w, apierr.BadRequest("new password must be at least %d characters", inputval.MinPasswordLength))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	userID, err := h.Resets.Consume(ctx, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, passwordresetstore.ErrNotFound):
			apierr.WriteError(w, apierr.BadRequest("invalid or expired reset link"))
		case errors.Is(err, passwordresetstore.ErrExpired):
			apierr.WriteError(w, apierr.BadRequest("reset link has expired, request a new one"))
		default:
			h.Errs.ServerError(w, r, "failed to consume reset token", err)
		}
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		h.Errs.ServerError(w, r, "failed to hash password", err)
		return
	}
	if err := h.Users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		h.Errs.ServerError(w, r, "failed to update password", err)
		return
	}

	h.Log.Info("password reset", zap.String("user_id", userID.Hex()))
	apierr.WriteJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// sendVerification creates a verification record and emails it. Delivery
// problems are logged, not surfaced, so registration still succeeds.
func (h *Handler) sendVerification(ctx context.Context, userID primitive.ObjectID, email string) {
	res, err := h.Verify.Create(ctx, userID, email, false)
	if err != nil {
		h.Log.Warn("failed to create email verification",
			zap.Error(err),
			zap.String("user_id", userID.Hex()))
		return
	}
	h.deliverVerification(email, res)
}

func (h *Handler) deliverVerification(email string, res *emailverifystore.CreateResult) {
	msg := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		SiteName:  h.SiteName,
		Code:      res.Code,
		MagicLink: fmt.Sprintf("%s/auth/verify?token=%s", h.BaseURL, res.Token),
		ExpiresIn: h.expiryText(),
	})
	msg.To = email
	if err := h.Mail.Send(msg); err != nil {
		h.Log.Warn("failed to send verification email",
			zap.Error(err),
			zap.String("email", email))
	}
}

func (h *Handler) expiryText() string {
	mins := int(h.Verify.Expiry().Minutes())
	if mins <= 0 {
		mins = int(emailverifystore.DefaultExpiry.Minutes())
	}
	if mins == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", mins)
}
