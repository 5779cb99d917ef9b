package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketbox/internal/api/dto"
	"github.com/spec-kit/ticketbox/internal/auth"
	"github.com/spec-kit/ticketbox/internal/repository"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

// SessionHandler manages dashboard login.
type SessionHandler struct {
	users  repository.DashboardUserRepository
	tokens *auth.TokenManager
}

// NewSessionHandler constructs handler.
func NewSessionHandler(users repository.DashboardUserRepository, tokens *auth.TokenManager) *SessionHandler {
	return &SessionHandler{users: users, tokens: tokens}
}

// Login POST /auth/login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	user, err := h.users.GetByUsername(c.Context(), req.Username)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.AuthResponse{Token: token, ExpiresAt: expiresAt}})
}
