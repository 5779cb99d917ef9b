package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketbox/internal/api/dto"
	"github.com/spec-kit/ticketbox/internal/service"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

// DutyHandler exposes the on-duty roster.
type DutyHandler struct {
	duty *service.DutyService
}

// NewDutyHandler constructs handler.
func NewDutyHandler(duty *service.DutyService) *DutyHandler {
	return &DutyHandler{duty: duty}
}

// ListOnDuty GET /guilds/:guildID/duty.
func (h *DutyHandler) ListOnDuty(c *fiber.Ctx) error {
	guildID := c.Params("guildID")
	if guildID == "" {
		return apperrors.NewValidationError("guild id required", nil)
	}
	userIDs, err := h.duty.ListOnDuty(c.Context(), guildID)
	if err != nil {
		return err
	}
	items := make([]dto.DutyEntry, 0, len(userIDs))
	for _, id := range userIDs {
		items = append(items, dto.DutyEntry{UserID: id})
	}
	return c.JSON(fiber.Map{"data": items})
}

// SetDuty PUT /guilds/:guildID/duty/:userID.
func (h *DutyHandler) SetDuty(c *fiber.Ctx) error {
	guildID := c.Params("guildID")
	userID := c.Params("userID")
	if guildID == "" || userID == "" {
		return apperrors.NewValidationError("guild id and user id required", nil)
	}
	var req struct {
		OnDuty bool `json:"on_duty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.duty.SetOnDuty(c.Context(), guildID, userID, req.OnDuty); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user_id": userID, "on_duty": req.OnDuty}})
}
