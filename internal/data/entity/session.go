package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session is an opaque bearer token handed out after every factor passed
type Session struct {
	BaseSimple
	UserID    uuid.UUID  `db:"user_id"`
	Token     uuid.UUID  `db:"token"`
	UserAgent *string    `db:"user_agent"`
	IPAddress *string    `db:"ip_address"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
}

// NewSession builds a session valid for ttl from now. Empty client details
// are stored as NULL.
func NewSession(userID, token uuid.UUID, ttl time.Duration, userAgent, ipAddress string, now time.Time) *Session {
	s := &Session{
		BaseSimple: BaseSimple{ID: uuid.New(), CreatedAt: now},
		UserID:     userID,
		Token:      token,
		ExpiresAt:  now.Add(ttl),
	}
	if userAgent != "" {
		s.UserAgent = &userAgent
	}
	if ipAddress != "" {
		s.IPAddress = &ipAddress
	}
	return s
}

func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsValidAt reports whether the token still authenticates at now
func (s *Session) IsValidAt(now time.Time) bool {
	return !s.IsRevoked() && now.Before(s.ExpiresAt)
}
