// internal/app/features/rooms/routes.go
package rooms

import (
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for breakout room endpoints, mounted at
// /rooms.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/session/{sessionID}/mine", h.ServeMyRoom)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireRole(models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin))
		r.Post("/generate", h.ServeGenerate)
		r.Get("/session/{sessionID}", h.ServeListBySession)
		r.Get("/session/{sessionID}/export.csv", h.ServeExportCSV)
		r.Post("/{roomID}/members", h.ServeAddMember)
		r.Delete("/{roomID}/members/{userID}", h.ServeRemoveMember)
		r.Post("/move", h.ServeMoveMember)
	})

	return r
}
