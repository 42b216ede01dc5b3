package adaptor

import (
	"mfa-service/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Notification *NotificationHandler
	Health       *HealthHandler
}

func NewHandler(service *usecase.Service, checks map[string]HealthCheck, log *zap.Logger) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(service.Auth, log),
		User:         NewUserHandler(service.User, log),
		Notification: NewNotificationHandler(service.Notification, log),
		Health:       NewHealthHandler(checks, log),
	}
}
