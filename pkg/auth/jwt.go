package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const challengeIssuer = "mfa-service"

var ErrInvalidChallenge = errors.New("invalid challenge token")

// ChallengeClaims identify a login that passed the password step and is
// waiting for its second factor
type ChallengeClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	ChallengeID uuid.UUID `json:"challenge_id"`
	jwt.RegisteredClaims
}

// ChallengeManager signs and checks MFA challenge tokens
type ChallengeManager struct {
	secret []byte
}

func NewChallengeManager(secret string) *ChallengeManager {
	return &ChallengeManager{secret: []byte(secret)}
}

// Issue signs a token that expires together with the OTP it points at
func (m *ChallengeManager) Issue(userID, challengeID uuid.UUID, issuedAt, expiresAt time.Time) (string, error) {
	claims := &ChallengeClaims{
		UserID:      userID,
		ChallengeID: challengeID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        challengeID.String(),
			Subject:   userID.String(),
			Issuer:    challengeIssuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse validates signature, issuer and expiry against now
func (m *ChallengeManager) Parse(tokenString string, now time.Time) (*ChallengeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ChallengeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithIssuer(challengeIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidChallenge, err)
	}

	claims, ok := token.Claims.(*ChallengeClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidChallenge
	}

	return claims, nil
}
