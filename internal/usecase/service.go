package usecase

import (
	"time"

	"mfa-service/internal/data/repository"
	"mfa-service/internal/worker"
	"mfa-service/pkg/auth"
	"mfa-service/pkg/mailer"
	"mfa-service/pkg/metrics"
	"mfa-service/pkg/utils"

	"go.uber.org/zap"
)

type EmailSender interface {
	Send(email mailer.Email) error
}

// Deps are the collaborators that live outside the database
type Deps struct {
	Mailer     EmailSender
	Limiter    RateLimiter
	Challenges *auth.ChallengeManager
	Clock      utils.Clock
	Metrics    *metrics.Metrics
	Tasks      TaskRunner
}

type Service struct {
	Auth         AuthService
	User         UserService
	MFA          MFAService
	Notification NotificationService
}

func NewService(repo *repository.Repository, deps Deps, config *utils.Config, log *zap.Logger) *Service {
	if deps.Clock == nil {
		deps.Clock = utils.SystemClock()
	}
	if deps.Tasks == nil {
		deps.Tasks = worker.NewTasks(30*time.Second, log)
	}

	notification := NewNotificationService(repo.Notification, deps.Mailer, deps.Clock, log)
	mfa := NewMFAService(repo.OTP, notification, deps.Limiter, deps.Clock, config.OTP, deps.Metrics, log)

	return &Service{
		Auth:         NewAuthService(repo, mfa, notification, deps.Challenges, deps.Tasks, deps.Clock, config, log),
		User:         NewUserService(repo.User, mfa, notification, deps.Clock, log),
		MFA:          mfa,
		Notification: notification,
	}
}
