package usecase

import (
	"time"

	"mfa-service/pkg/utils"
)

var (
	ErrInvalidOrExpiredOTP  = utils.NewDomainError("invalid or expired OTP")
	ErrOTPLocked            = utils.NewDomainError("too many failed attempts, request a new OTP")
	ErrIncorrectOTP         = utils.NewDomainError("incorrect OTP")
	ErrOTPIssueInProgress   = utils.NewTooManyRequestsError("another OTP request is in progress, please retry", time.Second)
	ErrInvalidPurpose       = utils.NewDomainError("invalid OTP purpose")
	ErrInvalidCredentials   = utils.NewUnauthorizedError("invalid credentials")
	ErrInvalidChallenge     = utils.NewUnauthorizedError("invalid or expired challenge token")
	ErrAccountDeactivated   = utils.NewForbiddenError("account is deactivated")
	ErrUserNotFound         = utils.NewNotFoundError("user not found")
	ErrNotificationNotFound = utils.NewNotFoundError("notification not found")
	ErrEmailTaken           = utils.NewDomainError("email already registered")
	ErrUsernameTaken        = utils.NewDomainError("username already taken")
	ErrEmailAlreadyVerified = utils.NewDomainError("email already verified")
	ErrEmailNotVerified     = utils.NewDomainError("verify your email before enabling MFA")
	ErrMFAAlreadyEnabled    = utils.NewDomainError("MFA already enabled")
	ErrMFANotEnabled        = utils.NewDomainError("MFA is not enabled")
	ErrInvalidUserID        = utils.NewDomainError("invalid user ID")
	ErrInvalidNotification  = utils.NewDomainError("invalid notification ID")
)

func validationError(errs map[string]string) error {
	return utils.NewDomainError("validation failed: " + utils.FormatValidationErrors(errs))
}
