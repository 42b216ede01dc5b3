package wire

import (
	"net/http"

	"mfa-service/internal/adaptor"
	"mfa-service/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireUser configures profile, MFA settings and admin user management
func wireUser(r chi.Router, userHandler *adaptor.UserHandler, authenticated func(http.Handler) http.Handler, log *zap.Logger) {
	r.With(authenticated).Route("/api/user", func(r chi.Router) {
		r.Get("/profile", userHandler.GetProfile)

		r.Post("/mfa/enable", userHandler.RequestEnableMFA)
		r.Post("/mfa/enable/confirm", userHandler.ConfirmEnableMFA)
		r.Post("/mfa/disable", userHandler.RequestDisableMFA)
		r.Post("/mfa/disable/confirm", userHandler.ConfirmDisableMFA)
	})

	// Admin: valid session AND admin role
	r.With(authenticated, middleware.Admin(log)).Route("/api/admin/users", func(r chi.Router) {
		r.Get("/", userHandler.GetAllUsers)       // GET /api/admin/users?page=1&per_page=10
		r.Delete("/{id}", userHandler.DeleteUser) // DELETE /api/admin/users/{user-id}
	})
}
