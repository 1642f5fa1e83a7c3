// internal/app/features/attendance/routes.go
package attendance

import (
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for attendance endpoints, mounted at
// /attendance.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Post("/verify", h.ServeVerify)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))
		r.Post("/finalize", h.ServeFinalize)
		r.Post("/clear-blacklist", h.ServeClearBlacklist)
		r.Get("/settings", h.ServeGetSettings)
		r.Patch("/settings", h.ServeUpdateSettings)
	})

	return r
}
