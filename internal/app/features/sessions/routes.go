// internal/app/features/sessions/routes.go
package sessions

import (
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for session endpoints, mounted at /sessions.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Get("/upcoming", h.ServeUpcoming)
	r.Get("/mine", h.ServeMyRegistrations)
	r.Get("/{sessionID}", h.ServeDetail)
	r.Post("/{sessionID}/register", h.ServeRegister)
	r.Delete("/{sessionID}/register", h.ServeUnregister)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin))
		r.Get("/{sessionID}/registrations", h.ServeRegistrants)
	})

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))
		r.Post("/", h.ServeCreate)
		r.Patch("/{sessionID}", h.ServeUpdate)
		r.Post("/{sessionID}/status", h.ServeSetStatus)
		r.Post("/{sessionID}/attendance-code", h.ServeRegenerateCode)
		r.Post("/{sessionID}/announce", h.ServeAnnounce)
	})

	return r
}
