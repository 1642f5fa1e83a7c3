// internal/app/features/users/routes.go
package users

import (
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for user endpoints, mounted at /users.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Patch("/me", h.ServeUpdateProfile)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))
		r.Get("/search", h.ServeSearch)
		r.Get("/{userID}", h.ServeGet)
		r.Post("/{userID}/role", h.ServeSetRole)
	})

	return r
}
