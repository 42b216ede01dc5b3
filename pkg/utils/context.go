package utils

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID uuid.UUID
	Role   string
	Token  string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UserID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.UserID, ok
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.Role, ok
}

// GetTokenFromContext returns the bearer token stored by AuthSession
func GetTokenFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.Token == "" {
		return "", false
	}
	return p.Token, true
}

// SetUserContext attaches a caller without a session token
func SetUserContext(ctx context.Context, userID uuid.UUID, role string) context.Context {
	return WithPrincipal(ctx, Principal{UserID: userID, Role: role})
}
