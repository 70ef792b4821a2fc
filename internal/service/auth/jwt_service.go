// Package auth provides JWT-based account identity for the API. Accounts are
// provisioned elsewhere; this service only issues and validates the bearer
// tokens that carry an account id.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed JWT access token for the account.
	// Returns the token string or an error if token generation fails.
	GenerateToken(ctx context.Context, accountID uuid.UUID) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns the claims containing the account id if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
type Claims struct {
	// AccountID is the unique identifier of the account the token was issued for.
	AccountID uuid.UUID `json:"aid,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
