package auth

import (
	"context"
	"time"
)

// JWTService issues and verifies bearer tokens. The token subject is the
// authenticated principal, e.g. "google-oauth2|1234".
type JWTService interface {
	// GenerateToken creates a signed access token for principal.
	GenerateToken(ctx context.Context, principal string) (string, error)

	// ValidateToken verifies tokenString and returns its claims, or one of
	// ErrInvalidToken, ErrExpiredToken, ErrTokenNotYetValid, ErrEmptyPrincipal.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the verified contents of a token.
type Claims struct {
	// Principal is the token subject.
	Principal string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
