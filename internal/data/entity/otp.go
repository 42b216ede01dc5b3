package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type OTPPurpose string

const (
	OTPPurposeEmailVerification OTPPurpose = "email_verification"
	OTPPurposePasswordReset     OTPPurpose = "password_reset"
	OTPPurposeLogin             OTPPurpose = "login"
	OTPPurposeMFAEnable         OTPPurpose = "mfa_enable"
	OTPPurposeMFADisable        OTPPurpose = "mfa_disable"
)

func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeEmailVerification, OTPPurposePasswordReset,
		OTPPurposeLogin, OTPPurposeMFAEnable, OTPPurposeMFADisable:
		return true
	}
	return false
}

var (
	ErrInvalidExpiry      = errors.New("otp expiry must be a positive number of minutes")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPAlreadyVerified = errors.New("otp already verified")
	ErrOTPSuperseded      = errors.New("otp superseded by a newer code")
	ErrOTPLocked          = errors.New("otp locked after too many attempts")
)

// OTP is a one-time code issued to a user. Only the bcrypt hash of the code
// is kept. ExpiresAt is fixed when the credential is built.
type OTP struct {
	BaseSimple
	UserID       uuid.UUID  `db:"user_id"`
	CodeHash     string     `db:"code_hash"`
	Purpose      OTPPurpose `db:"purpose"`
	IssuedAt     time.Time  `db:"issued_at"`
	ExpiresAt    time.Time  `db:"expires_at"`
	Verified     bool       `db:"verified"`
	VerifiedAt   *time.Time `db:"verified_at"`
	Attempts     int        `db:"attempts"`
	MaxAttempts  int        `db:"max_attempts"`
	SupersededAt *time.Time `db:"superseded_at"`
}

// NewOTP builds an unverified credential valid for expiryMinutes from now.
// maxAttempts <= 0 means no attempt limit.
func NewOTP(userID uuid.UUID, purpose OTPPurpose, codeHash string, expiryMinutes, maxAttempts int, now time.Time) (*OTP, error) {
	if expiryMinutes <= 0 {
		return nil, ErrInvalidExpiry
	}

	issuedAt := now.UTC()
	return &OTP{
		BaseSimple: BaseSimple{
			ID:        uuid.New(),
			CreatedAt: issuedAt,
		},
		UserID:      userID,
		CodeHash:    codeHash,
		Purpose:     purpose,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(time.Duration(expiryMinutes) * time.Minute),
		MaxAttempts: maxAttempts,
	}, nil
}

// IsExpired checks against the wall clock
func (o *OTP) IsExpired() bool {
	return o.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether now is at or after ExpiresAt
func (o *OTP) IsExpiredAt(now time.Time) bool {
	return !now.UTC().Before(o.ExpiresAt.UTC())
}

func (o *OTP) IsSuperseded() bool {
	return o.SupersededAt != nil
}

func (o *OTP) IsLocked() bool {
	return o.MaxAttempts > 0 && o.Attempts >= o.MaxAttempts
}

// RemainingAttempts returns -1 when attempts are unlimited
func (o *OTP) RemainingAttempts() int {
	if o.MaxAttempts <= 0 {
		return -1
	}
	if left := o.MaxAttempts - o.Attempts; left > 0 {
		return left
	}
	return 0
}

// IsUsable reports whether the code may still be checked
func (o *OTP) IsUsable(now time.Time) bool {
	return o.CheckUsable(now) == nil
}

// MarkVerified flips Verified exactly once
func (o *OTP) MarkVerified(now time.Time) error {
	if err := o.CheckUsable(now); err != nil {
		return err
	}

	at := now.UTC()
	o.Verified = true
	o.VerifiedAt = &at
	return nil
}

// CheckUsable returns the terminal state that blocks verification, if any
func (o *OTP) CheckUsable(now time.Time) error {
	switch {
	case o.Verified:
		return ErrOTPAlreadyVerified
	case o.IsSuperseded():
		return ErrOTPSuperseded
	case o.IsExpiredAt(now):
		return ErrOTPExpired
	case o.IsLocked():
		return ErrOTPLocked
	}
	return nil
}
