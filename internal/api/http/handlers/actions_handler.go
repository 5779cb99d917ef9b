package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketbox/internal/api/dto"
	"github.com/spec-kit/ticketbox/internal/domain"
	"github.com/spec-kit/ticketbox/internal/service"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

// ActionsHandler drives ticket lifecycle operations on behalf of a chat
// actor. The actor's standing (owner, moderator) is resolved from the guild,
// not from the dashboard session; the dashboard only relays who acted.
type ActionsHandler struct {
	engine *service.LifecycleEngine
}

// NewActionsHandler constructs handler.
func NewActionsHandler(engine *service.LifecycleEngine) *ActionsHandler {
	return &ActionsHandler{engine: engine}
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

type createTicketRequest struct {
	GuildID   string  `json:"guild_id"`
	CreatorID string  `json:"creator_id"`
	TargetID  string  `json:"target_id"`
	Subject   *string `json:"subject"`
}

type participantRequest struct {
	ActorID string `json:"actor_id"`
	UserID  string `json:"user_id"`
}

// CreateTicket POST /tickets.
func (h *ActionsHandler) CreateTicket(c *fiber.Ctx) error {
	var req createTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.GuildID == "" || req.CreatorID == "" {
		return apperrors.NewValidationError("guild_id and creator_id required", nil)
	}
	if req.TargetID == "" {
		req.TargetID = req.CreatorID
	}
	if req.Subject != nil && strings.TrimSpace(*req.Subject) == "" {
		req.Subject = nil
	}

	ticket, err := h.engine.Create(c.Context(), service.CreateInput{
		GuildID:   req.GuildID,
		CreatorID: req.CreatorID,
		TargetID:  req.TargetID,
		Subject:   req.Subject,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// Transition POST /channels/:channelID/:action for resolve, reopen, close,
// archive, and reopen-request.
func (h *ActionsHandler) Transition(c *fiber.Ctx) error {
	var req actorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActorID == "" {
		return apperrors.NewValidationError("actor_id required", nil)
	}
	channelID := c.Params("channelID")

	var (
		ticket *domain.Ticket
		err    error
	)
	switch action := c.Params("action"); action {
	case "resolve":
		ticket, err = h.engine.Resolve(c.Context(), channelID, req.ActorID)
	case "reopen":
		ticket, err = h.engine.Reopen(c.Context(), channelID, req.ActorID)
	case "close":
		ticket, err = h.engine.Close(c.Context(), channelID, req.ActorID)
	case "archive":
		ticket, err = h.engine.Archive(c.Context(), channelID, req.ActorID)
	case "reopen-request":
		if err := h.engine.RequestReopen(c.Context(), channelID, req.ActorID); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": fiber.Map{"requested": true}})
	default:
		return apperrors.NewValidationError("unknown action", map[string]any{"action": action})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// AddParticipant POST /channels/:channelID/participants.
func (h *ActionsHandler) AddParticipant(c *fiber.Ctx) error {
	var req participantRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActorID == "" || req.UserID == "" {
		return apperrors.NewValidationError("actor_id and user_id required", nil)
	}
	ticket, err := h.engine.AddParticipant(c.Context(), c.Params("channelID"), req.ActorID, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}

// RemoveParticipant DELETE /channels/:channelID/participants/:userID.
func (h *ActionsHandler) RemoveParticipant(c *fiber.Ctx) error {
	var req actorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActorID == "" {
		return apperrors.NewValidationError("actor_id required", nil)
	}
	ticket, err := h.engine.RemoveParticipant(c.Context(), c.Params("channelID"), req.ActorID, c.Params("userID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(ticket)})
}
