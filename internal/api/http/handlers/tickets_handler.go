package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketbox/internal/api/dto"
	"github.com/spec-kit/ticketbox/internal/repository"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// TicketsHandler exposes read-only ticket views for the dashboard.
type TicketsHandler struct {
	tickets repository.TicketRepository
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets repository.TicketRepository) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// ListTickets GET /guilds/:guildID/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	guildID := c.Params("guildID")
	if guildID == "" {
		return apperrors.NewValidationError("guild id required", nil)
	}
	limit, offset := parsePagination(c)

	tickets, err := h.tickets.ListByGuild(c.Context(), guildID, limit, offset)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

func parsePagination(c *fiber.Ctx) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
