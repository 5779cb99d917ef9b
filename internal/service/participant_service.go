package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbox/internal/chat"
	"github.com/spec-kit/ticketbox/internal/domain"
	"github.com/spec-kit/ticketbox/internal/events"
	"github.com/spec-kit/ticketbox/internal/repository"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

// ParticipantService maintains the explicit participant list on top of the
// fixed creator/target pair. Archived-state checks belong to the caller; the
// lifecycle engine refuses both operations once a ticket is sealed.
type ParticipantService struct {
	tickets    repository.TicketRepository
	transport  chat.ChannelTransport
	access     *AccessService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewParticipantService constructs the service.
func NewParticipantService(tickets repository.TicketRepository, transport chat.ChannelTransport, access *AccessService, dispatcher events.Dispatcher, logger *zap.Logger) *ParticipantService {
	return &ParticipantService{
		tickets:    tickets,
		transport:  transport,
		access:     access,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Add grants the user view, send, and history on the ticket channel and
// appends it to the persisted list when not already present. Adding an
// existing participant re-applies the grant but leaves the list unchanged.
func (s *ParticipantService) Add(ctx context.Context, ticket *domain.Ticket, actorID, userID string) error {
	s.access.GrantMemberAccess(ctx, ticket.ChannelID, userID)

	if ticket.HasParticipant(userID) {
		return nil
	}
	updated := append(append([]string{}, ticket.Participants...), userID)
	if err := s.tickets.WriteParticipants(ctx, ticket.ID, updated); err != nil {
		return apperrors.NewPersistenceFailure("persist participant list", err)
	}
	ticket.Participants = updated

	publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventParticipantAdded,
		GuildID:   ticket.GuildID,
		TicketID:  ticket.ID,
		ChannelID: ticket.ChannelID,
		ActorID:   actorID,
		Payload:   events.ParticipantChangedPayload{UserID: userID},
	})
	return nil
}

// Remove revokes the user's channel overwrite and drops it from the persisted
// list. Protected identities (the creator, the target, moderators, and
// administrators) are silently refused; they are not "participants".
func (s *ParticipantService) Remove(ctx context.Context, ticket *domain.Ticket, settings domain.GuildSettings, actorID, userID string) error {
	if userID == ticket.CreatorID || userID == ticket.TargetID {
		return nil
	}
	member, err := s.transport.FetchMember(ctx, ticket.GuildID, userID)
	if err != nil {
		s.logger.Debug("member lookup failed during removal",
			zap.String("guild_id", ticket.GuildID),
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	if member.Administrator || member.HasRole(settings.ModeratorRoleIDs...) {
		return nil
	}

	s.access.ClearMemberOverwrite(ctx, ticket.ChannelID, userID)

	if !ticket.HasParticipant(userID) {
		return nil
	}
	updated := make([]string, 0, len(ticket.Participants))
	for _, id := range ticket.Participants {
		if id != userID {
			updated = append(updated, id)
		}
	}
	if err := s.tickets.WriteParticipants(ctx, ticket.ID, updated); err != nil {
		return apperrors.NewPersistenceFailure("persist participant list", err)
	}
	ticket.Participants = updated

	publish(ctx, s.dispatcher, events.Event{
		Type:      events.EventParticipantRemoved,
		GuildID:   ticket.GuildID,
		TicketID:  ticket.ID,
		ChannelID: ticket.ChannelID,
		ActorID:   actorID,
		Payload:   events.ParticipantChangedPayload{UserID: userID},
	})
	return nil
}
