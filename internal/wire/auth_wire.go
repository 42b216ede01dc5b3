package wire

import (
	"net/http"

	"mfa-service/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireAuth(r chi.Router, authHandler *adaptor.AuthHandler, authenticated func(http.Handler) http.Handler) {
	// Public
	r.Post("/api/register", authHandler.Register)
	r.Post("/api/login", authHandler.Login)
	r.Post("/api/login/mfa", authHandler.CompleteMFALogin)
	r.Post("/api/send-otp", authHandler.SendOTP)
	r.Post("/api/verify-email", authHandler.VerifyEmail)
	r.Post("/api/password/forgot", authHandler.ForgotPassword)
	r.Post("/api/password/reset", authHandler.ResetPassword)

	// Protected
	r.With(authenticated).Post("/api/logout", authHandler.Logout)
}
