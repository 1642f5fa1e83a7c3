// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"context"
	"net/http"

	authsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/authsessions"
	"github.com/chitchatclub/chitchatclub/internal/app/system/authz"
	"github.com/chitchatclub/chitchatclub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler records activity heartbeats against the user's auth session.
type Handler struct {
	Sessions *authsessionstore.Store
	Log      *zap.Logger
}

// NewHandler creates a heartbeat handler.
func NewHandler(sessions *authsessionstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Sessions: sessions, Log: logger}
}

// ServeHeartbeat handles POST /heartbeat. It bumps last_active_at on the
// user's open auth session, recreating one when inactivity closed it.
// Failures are swallowed: a heartbeat must never break the client.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	touched, err := h.Sessions.Touch(ctx, userID)
	if err != nil {
		h.Log.Warn("heartbeat: failed to touch auth session",
			zap.Error(err),
			zap.String("user_id", userID.Hex()))
		w.WriteHeader(http.StatusOK)
		return
	}

	if !touched {
		if _, err := h.Sessions.Create(ctx, userID, r.RemoteAddr, r.UserAgent(), authsessionstore.CreatedByHeartbeat); err != nil {
			h.Log.Warn("heartbeat: failed to recreate auth session",
				zap.Error(err),
				zap.String("user_id", userID.Hex()))
		}
	}

	w.WriteHeader(http.StatusOK)
}
