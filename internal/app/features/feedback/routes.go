// internal/app/features/feedback/routes.go
package feedback

import (
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for feedback endpoints, mounted at
// /feedback.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Post("/", h.ServeSubmit)
	r.Get("/session/{sessionID}/mine", h.ServeMine)
	r.Get("/session/{sessionID}/received", h.ServeReceived)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin))
		r.Get("/session/{sessionID}", h.ServeListBySession)
		r.Get("/session/{sessionID}/average", h.ServeSessionAverage)
	})

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))
		r.Get("/user/{userID}", h.ServeAboutUser)
	})

	return r
}
