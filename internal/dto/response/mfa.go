package response

import (
	"time"

	"mfa-service/internal/data/entity"
)

type ChallengeResponse struct {
	ChallengeID string            `json:"challenge_id"`
	Purpose     entity.OTPPurpose `json:"purpose"`
	ExpiresAt   time.Time         `json:"expires_at"`
	ExpiresIn   int               `json:"expires_in"`
	// Token is only set for login challenges
	Token string `json:"token,omitempty"`
}

func ChallengeToResponse(otp *entity.OTP, now time.Time) *ChallengeResponse {
	return &ChallengeResponse{
		ChallengeID: otp.ID.String(),
		Purpose:     otp.Purpose,
		ExpiresAt:   otp.ExpiresAt,
		ExpiresIn:   int(otp.ExpiresAt.Sub(now).Seconds()),
	}
}
