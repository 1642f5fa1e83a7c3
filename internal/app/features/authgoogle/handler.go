// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	authsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/authsessions"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/app/system/normalize"
	"github.com/chitchatclub/chitchatclub/internal/app/system/timeouts"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateCookieName = "oauth_state"
	stateCookieAge  = 600 // seconds

	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Handler handles Google OAuth sign-in. Accounts that do not exist yet
// are provisioned as members with the email pre-verified, since Google
// has already confirmed the address.
type Handler struct {
	Users        *userstore.Store
	AuthSessions *authsessionstore.Store
	SM           *auth.SessionManager
	Log          *zap.Logger

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://club.example.org/oauth/google/callback"
	SuccessURL   string // where the browser lands after sign-in
	FailureURL   string // where errors are reported, gets ?error=<code>

	// UserInfoURL is Google's userinfo endpoint. Overridable in tests.
	UserInfoURL string

	sc *securecookie.SecureCookie
}

// NewHandler creates a Google OAuth handler. stateKey signs the state
// cookie that protects the callback against CSRF.
func NewHandler(users *userstore.Store, authSessions *authsessionstore.Store, sm *auth.SessionManager, clientID, clientSecret, baseURL, successURL, failureURL, stateKey string, logger *zap.Logger) *Handler {
	return &Handler{
		Users:        users,
		AuthSessions: authSessions,
		SM:           sm,
		Log:          logger,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  strings.TrimRight(baseURL, "/") + "/oauth/google/callback",
		SuccessURL:   successURL,
		FailureURL:   failureURL,
		UserInfoURL:  defaultUserInfoURL,
		sc:           securecookie.New([]byte(stateKey), nil),
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured reports whether Google OAuth credentials are present.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// statePayload travels in the signed state cookie between the redirect
// to Google and the callback.
type statePayload struct {
	State  string `json:"state"`
	Return string `json:"return"`
}

// ServeLogin handles GET /oauth/google. It sets the state cookie and
// redirects to Google's consent screen.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.redirectFailure(w, r, "google_not_configured")
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		h.redirectFailure(w, r, "internal")
		return
	}

	encoded, err := h.sc.Encode(stateCookieName, statePayload{
		State:  state,
		Return: r.URL.Query().Get("return"),
	})
	if err != nil {
		h.Log.Error("failed to encode OAuth state cookie", zap.Error(err))
		h.redirectFailure(w, r, "internal")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   stateCookieAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// ServeCallback handles GET /oauth/google/callback. It validates the
// state cookie, exchanges the code, looks up or provisions the account,
// and signs the user in.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth denied",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		h.redirectFailure(w, r, "google_denied")
		return
	}

	payload, ok := h.readState(r)
	clearStateCookie(w)
	if !ok || payload.State == "" || payload.State != r.URL.Query().Get("state") {
		h.Log.Warn("invalid or missing OAuth state")
		h.redirectFailure(w, r, "invalid_state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectFailure(w, r, "invalid_code")
		return
	}

	token, err := h.oauth2Config().Exchange(r.Context(), code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectFailure(w, r, "token_exchange")
		return
	}

	info, err := fetchGoogleUserInfo(r.Context(), token, h.UserInfoURL)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.redirectFailure(w, r, "user_info")
		return
	}
	if info.Email == "" {
		h.redirectFailure(w, r, "user_info")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.lookupOrProvision(ctx, info)
	if err != nil {
		if errors.Is(err, errUserDisabled) {
			h.redirectFailure(w, r, "account_disabled")
			return
		}
		h.Log.Error("Google OAuth user lookup failed", zap.Error(err))
		h.redirectFailure(w, r, "internal")
		return
	}

	if err := h.SM.SignIn(w, r, &auth.SessionUser{
		ID:            u.ID.Hex(),
		Name:          u.FullName,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}); err != nil {
		h.Log.Error("failed to establish session after OAuth",
			zap.Error(err),
			zap.String("user_id", u.ID.Hex()))
		h.redirectFailure(w, r, "session")
		return
	}

	if _, err := h.AuthSessions.Create(ctx, u.ID, extractIP(r), r.UserAgent(), authsessionstore.CreatedByLogin); err != nil {
		h.Log.Warn("failed to record auth session",
			zap.Error(err),
			zap.String("user_id", u.ID.Hex()))
	}

	h.Log.Info("user signed in via Google OAuth", zap.String("user_id", u.ID.Hex()))

	http.Redirect(w, r, urlutil.SafeReturn(payload.Return, "", h.SuccessURL), http.StatusSeeOther)
}

var errUserDisabled = errors.New("user disabled")

// lookupOrProvision finds the account for a Google identity by email,
// creating a member account on first sign-in.
func (h *Handler) lookupOrProvision(ctx context.Context, info *googleUserInfo) (*models.User, error) {
	u, err := h.Users.GetByEmail(ctx, info.Email)
	if err == nil {
		if normalize.Status(u.Status) == "disabled" {
			return nil, errUserDisabled
		}
		if !u.EmailVerified && normalize.AuthMethod(u.AuthMethod) == "google" {
			if err := h.Users.MarkVerified(ctx, u.ID); err == nil {
				u.EmailVerified = true
			}
		}
		return u, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = info.Email
	}
	created, err := h.Users.Create(ctx, models.User{
		FullName:      name,
		Email:         info.Email,
		AuthMethod:    "google",
		Role:          models.RoleMember,
		EmailVerified: true,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			// Lost a race with a concurrent first sign-in.
			return h.Users.GetByEmail(ctx, info.Email)
		}
		return nil, err
	}
	h.Log.Info("provisioned account from Google sign-in",
		zap.String("user_id", created.ID.Hex()),
		zap.String("email", created.Email))
	return &created, nil
}

func (h *Handler) readState(r *http.Request) (statePayload, bool) {
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return statePayload{}, false
	}
	var payload statePayload
	if err := h.sc.Decode(stateCookieName, c.Value, &payload); err != nil {
		return statePayload{}, false
	}
	return payload, true
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (h *Handler) redirectFailure(w http.ResponseWriter, r *http.Request, code string) {
	dest := h.FailureURL
	if dest == "" {
		dest = "/"
	}
	sep := "?"
	if strings.Contains(dest, "?") {
		sep = "&"
	}
	http.Redirect(w, r, dest+sep+"error="+code, http.StatusSeeOther)
}

// googleUserInfo is the subset of Google's userinfo response we use.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token, userInfoURL string) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	info.Email = normalize.Email(info.Email)
	return &info, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
