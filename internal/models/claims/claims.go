package claims

import (
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Auth carries the authenticated user identity inside a JWT.
type Auth struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"user_id"`
}
