package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbox/internal/chat"
	"github.com/spec-kit/ticketbox/internal/domain"
	"github.com/spec-kit/ticketbox/internal/events"
)

// ActionLogService mirrors ticket activity into the guild's log channel as
// short embeds. Everything here is best-effort: a missing or misconfigured
// log channel never affects the action that produced the event.
type ActionLogService struct {
	dispatcher events.Dispatcher
	transport  chat.ChannelTransport
	settings   *SettingsService
	logger     *zap.Logger
}

// NewActionLogService creates the service.
func NewActionLogService(dispatcher events.Dispatcher, transport chat.ChannelTransport, settings *SettingsService, logger *zap.Logger) *ActionLogService {
	return &ActionLogService{
		dispatcher: dispatcher,
		transport:  transport,
		settings:   settings,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *ActionLogService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	a.dispatcher.Subscribe(events.EventTicketStateChanged, a.handleStateChanged)
	a.dispatcher.Subscribe(events.EventParticipantAdded, a.handleParticipantAdded)
	a.dispatcher.Subscribe(events.EventParticipantRemoved, a.handleParticipantRemoved)
	a.dispatcher.Subscribe(events.EventReopenRequested, a.handleReopenRequested)
	a.dispatcher.Subscribe(events.EventTranscriptReady, a.handleTranscriptReady)
}

func (a *ActionLogService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	description := fmt.Sprintf("<@%s> opened a ticket for <@%s>.", payload.CreatorID, payload.TargetID)
	if payload.CreatorID == payload.TargetID {
		description = fmt.Sprintf("<@%s> opened a ticket.", payload.CreatorID)
	}
	a.post(ctx, event, "Ticket opened", description)
	return nil
}

func (a *ActionLogService) handleStateChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStateChangedPayload)
	if !ok {
		return nil
	}
	title := map[domain.TicketState]string{
		domain.TicketStateResolvedPending: "Ticket resolved",
		domain.TicketStateClosed:          "Ticket closed",
		domain.TicketStateArchived:        "Ticket archived",
		domain.TicketStateOpen:            "Ticket reopened",
	}[payload.NewState]
	if title == "" {
		title = "Ticket updated"
	}
	a.post(ctx, event, title, fmt.Sprintf("<@%s> moved <#%s> from `%s` to `%s`.",
		event.ActorID, event.ChannelID, payload.OldState, payload.NewState))
	return nil
}

func (a *ActionLogService) handleParticipantAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ParticipantChangedPayload)
	if !ok {
		return nil
	}
	a.post(ctx, event, "Participant added",
		fmt.Sprintf("<@%s> added <@%s> to <#%s>.", event.ActorID, payload.UserID, event.ChannelID))
	return nil
}

func (a *ActionLogService) handleParticipantRemoved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ParticipantChangedPayload)
	if !ok {
		return nil
	}
	a.post(ctx, event, "Participant removed",
		fmt.Sprintf("<@%s> removed <@%s> from <#%s>.", event.ActorID, payload.UserID, event.ChannelID))
	return nil
}

func (a *ActionLogService) handleReopenRequested(ctx context.Context, event events.Event) error {
	a.post(ctx, event, "Reopen requested",
		fmt.Sprintf("<@%s> asked to reopen <#%s>.", event.ActorID, event.ChannelID))
	return nil
}

func (a *ActionLogService) handleTranscriptReady(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TranscriptReadyPayload)
	if !ok {
		return nil
	}
	a.post(ctx, event, "Transcript saved",
		fmt.Sprintf("Transcript for ticket `%s`: %s", event.TicketID, payload.TranscriptURL))
	return nil
}

func (a *ActionLogService) post(ctx context.Context, event events.Event, title, description string) {
	guildSettings, err := a.settings.Resolve(ctx, event.GuildID)
	if err != nil {
		a.logger.Warn("settings lookup failed for action log", zap.String("guild_id", event.GuildID), zap.Error(err))
		return
	}
	if guildSettings.LogChannelID == "" {
		return
	}
	embed := &chat.Embed{
		Title:       title,
		Description: description,
		Fields: []chat.EmbedField{
			{Name: "Ticket", Value: fmt.Sprintf("`%s`", event.TicketID), Inline: true},
		},
	}
	if _, err := a.transport.SendMessage(ctx, guildSettings.LogChannelID, chat.Outbound{Embed: embed}); err != nil {
		a.logger.Warn("action log post failed",
			zap.String("guild_id", event.GuildID),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
