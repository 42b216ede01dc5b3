package wire

import (
	"net/http"

	"mfa-service/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireNotification(r chi.Router, notificationHandler *adaptor.NotificationHandler, authenticated func(http.Handler) http.Handler) {
	r.With(authenticated).Route("/api/notifications", func(r chi.Router) {
		r.Get("/", notificationHandler.List)
		r.Patch("/{id}/read", notificationHandler.MarkRead)
	})
}
