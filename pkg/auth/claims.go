package auth

import (
	"github.com/clinicore-health/clinicore-backend/pkg/rbac"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	Role        rbac.Role
	Permissions []string
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	Role        rbac.Role `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}
