package domain

import "time"

// DashboardRole enumerates access levels for the staff HTTP API.
type DashboardRole string

const (
	DashboardRoleAdmin  DashboardRole = "ADMIN"
	DashboardRoleViewer DashboardRole = "VIEWER"
)

// DashboardUser is an operator account for the staff HTTP API. It is unrelated
// to chat-platform identities; moderators are recognized by their guild roles.
type DashboardUser struct {
	ID           string
	Username     string
	PasswordHash string
	Role         DashboardRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
