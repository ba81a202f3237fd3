package dto

import (
	"time"

	"github.com/emberfall/emberfall-api/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse returns the identity plus its session credential.
type AuthResponse struct {
	User      domain.Identity `json:"user"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
}
