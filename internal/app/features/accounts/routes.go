// internal/app/features/accounts/routes.go
package accounts

import (
	"github.com/chitchatclub/chitchatclub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for account endpoints, mounted at /auth.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.ServeRegister)
	r.Post("/login", h.ServeLogin)
	r.Post("/logout", h.ServeLogout)
	r.Get("/verify", h.ServeVerifyToken)
	r.Post("/password/forgot", h.ServeForgotPassword)
	r.Post("/password/reset", h.ServeResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(sm.RequireSignedIn)
		r.Get("/me", h.ServeMe)
		r.Post("/verify", h.ServeVerifyCode)
		r.Post("/verify/resend", h.ServeResend)
		r.Post("/password", h.ServeChangePassword)
	})

	return r
}
