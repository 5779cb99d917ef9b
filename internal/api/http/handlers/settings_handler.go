package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketbox/internal/api/dto"
	"github.com/spec-kit/ticketbox/internal/service"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

// SettingsHandler exposes per-guild configuration.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings GET /guilds/:guildID/settings.
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	guildID := c.Params("guildID")
	if guildID == "" {
		return apperrors.NewValidationError("guild id required", nil)
	}
	resolved, err := h.settings.Resolve(c.Context(), guildID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromSettings(resolved)})
}

// UpdateSettings PATCH /guilds/:guildID/settings.
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	guildID := c.Params("guildID")
	if guildID == "" {
		return apperrors.NewValidationError("guild id required", nil)
	}
	var req dto.UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	updated, err := h.settings.Update(c.Context(), guildID, service.SettingsPatch{
		ModeratorRoleIDs:       req.ModeratorRoleIDs,
		OnDutyRoleID:           req.OnDutyRoleID,
		TicketsCategoryID:      req.TicketsCategoryID,
		ArchiveCategoryID:      req.ArchiveCategoryID,
		LogChannelID:           req.LogChannelID,
		AuditLogChannelID:      req.AuditLogChannelID,
		FallbackPingModerators: req.FallbackPingModerators,
		TranscriptEnabled:      req.TranscriptEnabled,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromSettings(updated)})
}
