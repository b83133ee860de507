package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims represents custom JWT claims issued by the auth service
type JWTClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// Clinician context resolved from a JWT
type Clinician struct {
	UserID uuid.UUID
	Role   string
}
