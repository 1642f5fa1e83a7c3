// internal/app/features/levels/routes.go
package levels

import (
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for level endpoints, mounted at /levels.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Put("/me", h.ServeUpdateMine)
	r.Get("/preview", h.ServePreview)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin))
		r.Put("/user/{userID}", h.ServeUpdateUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))
		r.Put("/override/{userID}", h.ServeSetOverride)
		r.Get("/history/{userID}", h.ServeHistory)
	})

	return r
}
