package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateSessionToken returns the opaque bearer token stored on a session
func GenerateSessionToken() uuid.UUID {
	return uuid.New()
}

// GenerateOTP returns a zero-padded numeric code drawn from crypto/rand
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
