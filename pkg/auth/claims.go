package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
)

// AccessTokenPayload captures the identity data carried in a JWT. Tokens
// are minted by the external auth service; this backend only verifies them.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Phone  string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims is the typed JWT presented by clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Email  string         `json:"email,omitempty"`
	Phone  string         `json:"phone,omitempty"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
