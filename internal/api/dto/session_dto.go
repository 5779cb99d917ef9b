package dto

import "time"

// LoginRequest payload for dashboard login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DutyEntry is one on-duty moderator.
type DutyEntry struct {
	UserID string `json:"user_id"`
}
