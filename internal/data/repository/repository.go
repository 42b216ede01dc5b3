package repository

import (
	"errors"

	"mfa-service/pkg/database"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ErrNotFound is returned by updates that matched no row
var ErrNotFound = errors.New("record not found")

var (
	// ErrOTPIssueConflict means a concurrent issue for the same user and
	// purpose committed first
	ErrOTPIssueConflict  = errors.New("OTP issue already in progress")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")
)

const uniqueViolation = "23505"

// uniqueConstraint returns the violated constraint name, or "" when err is
// not a unique violation
func uniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

type Repository struct {
	User         UserRepository
	Session      SessionRepository
	OTP          OTPRepository
	Notification NotificationRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User:         NewUserRepository(db, log),
		Session:      NewSessionRepository(db, log),
		OTP:          NewOTPRepository(db, log),
		Notification: NewNotificationRepository(db, log),
	}
}
