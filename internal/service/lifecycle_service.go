package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbox/internal/chat"
	"github.com/spec-kit/ticketbox/internal/domain"
	"github.com/spec-kit/ticketbox/internal/events"
	"github.com/spec-kit/ticketbox/internal/observability"
	"github.com/spec-kit/ticketbox/internal/repository"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

// LifecycleEngine validates and applies ticket state transitions, keeping the
// channel permissions, the persisted record, the in-channel header, and the
// audit record consistent as one logical unit. Transitions for the same
// ticket are serialized through a per-channel lock so concurrent requests are
// strictly ordered.
type LifecycleEngine struct {
	tickets      repository.TicketRepository
	access       *AccessService
	participants *ParticipantService
	audit        *AuditService
	transcript   *TranscriptService
	settings     *SettingsService
	duty         *DutyService
	transport    chat.ChannelTransport
	dispatcher   events.Dispatcher
	metrics      *observability.Metrics
	logger       *zap.Logger
	locks        keyedMutex
}

// LifecycleDependencies bundles collaborators for the engine.
type LifecycleDependencies struct {
	TicketRepo   repository.TicketRepository
	Access       *AccessService
	Participants *ParticipantService
	Audit        *AuditService
	Transcript   *TranscriptService
	Settings     *SettingsService
	Duty         *DutyService
	Transport    chat.ChannelTransport
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewLifecycleEngine constructs the engine.
func NewLifecycleEngine(deps LifecycleDependencies) *LifecycleEngine {
	return &LifecycleEngine{
		tickets:      deps.TicketRepo,
		access:       deps.Access,
		participants: deps.Participants,
		audit:        deps.Audit,
		transcript:   deps.Transcript,
		settings:     deps.Settings,
		duty:         deps.Duty,
		transport:    deps.Transport,
		dispatcher:   deps.Dispatcher,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}
}

// CreateInput describes a ticket creation request. Self-opened tickets set
// CreatorID == TargetID.
type CreateInput struct {
	GuildID   string
	CreatorID string
	TargetID  string
	Subject   *string
}

// Create provisions the ticket channel and its record as one attempt: channel
// creation and record insertion must both succeed or the attempt fails.
func (e *LifecycleEngine) Create(ctx context.Context, input CreateInput) (*domain.Ticket, error) {
	guildSettings, err := e.settings.Resolve(ctx, input.GuildID)
	if err != nil {
		return nil, err
	}

	target, err := e.transport.FetchMember(ctx, input.GuildID, input.TargetID)
	if err != nil {
		return nil, apperrors.NewTransportFailure("fetch target member", err)
	}

	id := newTicketKey()
	channelID, err := e.transport.CreateChannel(ctx, chat.ChannelCreate{
		GuildID:    input.GuildID,
		Name:       fmt.Sprintf("ticket-%s-%s", id, channelSlug(target.Username)),
		ParentID:   guildSettings.TicketsCategoryID,
		Overwrites: e.access.TicketOverwrites(input.GuildID, input.TargetID, guildSettings),
	})
	if err != nil {
		return nil, apperrors.NewTransportFailure("create ticket channel", err)
	}

	ticket := &domain.Ticket{
		ID:           id,
		GuildID:      input.GuildID,
		ChannelID:    channelID,
		CreatorID:    input.CreatorID,
		TargetID:     input.TargetID,
		Subject:      input.Subject,
		State:        domain.TicketStateOpen,
		Participants: []string{},
	}
	if err := e.tickets.Insert(ctx, ticket); err != nil {
		e.logger.Error("ticket insert failed after channel creation",
			zap.String("ticket_id", id),
			zap.String("channel_id", channelID),
			zap.Error(err))
		return nil, apperrors.NewPersistenceFailure("insert ticket", err)
	}

	e.sendInitialHeader(ctx, ticket, guildSettings)
	if _, err := e.audit.Ensure(ctx, ticket); err != nil {
		e.logger.Warn("audit entry creation failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	publish(ctx, e.dispatcher, events.Event{
		Type:      events.EventTicketCreated,
		GuildID:   ticket.GuildID,
		TicketID:  ticket.ID,
		ChannelID: ticket.ChannelID,
		ActorID:   input.CreatorID,
		Payload: events.TicketCreatedPayload{
			CreatorID: ticket.CreatorID,
			TargetID:  ticket.TargetID,
			Subject:   ticket.Subject,
		},
	})
	return ticket, nil
}

// Resolve moves an OPEN ticket to RESOLVED_PENDING_REVIEW. Allowed for the
// creator, the target, or a moderator.
func (e *LifecycleEngine) Resolve(ctx context.Context, channelID, actorUserID string) (*domain.Ticket, error) {
	unlock := e.locks.lock(channelID)
	defer unlock()

	ticket, guildSettings, actor, err := e.loadForAction(ctx, channelID, actorUserID)
	if err != nil {
		return nil, err
	}
	if !actor.Moderator && !actor.IsOwner(ticket) {
		return nil, apperrors.NewAuthorizationError("only the ticket owner or a moderator can mark it resolved")
	}
	if err := e.checkTransition(ticket, domain.TicketStateResolvedPending); err != nil {
		return nil, err
	}

	e.access.ReadOnlyAll(ctx, ticket.GuildID, ticket.ChannelID, guildSettings)
	e.access.LockMemberSend(ctx, ticket.ChannelID, ticket.TargetID)

	if err := e.commitState(ctx, ticket, domain.TicketStateResolvedPending, actor); err != nil {
		return nil, err
	}
	e.finishTransition(ctx, ticket, actor, domain.TicketStateOpen)
	return ticket, nil
}

// Reopen returns a RESOLVED_PENDING_REVIEW or CLOSED ticket to OPEN.
// Moderator only; archived tickets cannot be reopened.
func (e *LifecycleEngine) Reopen(ctx context.Context, channelID, actorUserID string) (*domain.Ticket, error) {
	unlock := e.locks.lock(channelID)
	defer unlock()

	ticket, guildSettings, actor, err := e.loadForAction(ctx, channelID, actorUserID)
	if err != nil {
		return nil, err
	}
	if !actor.Moderator {
		return nil, apperrors.NewAuthorizationError("only moderators can reopen tickets")
	}
	if err := e.checkTransition(ticket, domain.TicketStateOpen); err != nil {
		return nil, err
	}
	previous := ticket.State

	e.access.OpenFor(ctx, ticket.ChannelID, ticket.TargetID, guildSettings)
	e.access.UnlockMemberSend(ctx, ticket.ChannelID, ticket.TargetID)

	if err := e.commitState(ctx, ticket, domain.TicketStateOpen, actor); err != nil {
		return nil, err
	}
	e.finishTransition(ctx, ticket, actor, previous)
	return ticket, nil
}

// Close moves any non-archived, non-closed ticket to CLOSED. Moderator only.
func (e *LifecycleEngine) Close(ctx context.Context, channelID, actorUserID string) (*domain.Ticket, error) {
	unlock := e.locks.lock(channelID)
	defer unlock()

	ticket, guildSettings, actor, err := e.loadForAction(ctx, channelID, actorUserID)
	if err != nil {
		return nil, err
	}
	if !actor.Moderator {
		return nil, apperrors.NewAuthorizationError("only moderators can close tickets")
	}
	if err := e.checkTransition(ticket, domain.TicketStateClosed); err != nil {
		return nil, err
	}
	previous := ticket.State

	e.access.ReadOnlyAll(ctx, ticket.GuildID, ticket.ChannelID, guildSettings)

	if err := e.commitState(ctx, ticket, domain.TicketStateClosed, actor); err != nil {
		return nil, err
	}
	e.finishTransition(ctx, ticket, actor, previous)
	return ticket, nil
}

// Archive seals a CLOSED ticket permanently: individual overwrites for the
// creator, target, and every registered participant are removed, the channel
// is relocated to the archive grouping, and (when enabled) a transcript is
// generated. Moderator only; archive is only reachable from CLOSED.
func (e *LifecycleEngine) Archive(ctx context.Context, channelID, actorUserID string) (*domain.Ticket, error) {
	unlock := e.locks.lock(channelID)
	defer unlock()

	ticket, guildSettings, actor, err := e.loadForAction(ctx, channelID, actorUserID)
	if err != nil {
		return nil, err
	}
	if !actor.Moderator {
		return nil, apperrors.NewAuthorizationError("only moderators can archive tickets")
	}
	if err := e.checkTransition(ticket, domain.TicketStateArchived); err != nil {
		return nil, err
	}

	e.access.ReadOnlyAll(ctx, ticket.GuildID, ticket.ChannelID, guildSettings)

	if err := e.commitState(ctx, ticket, domain.TicketStateArchived, actor); err != nil {
		return nil, err
	}

	// Individual overwrite removals are best-effort: the channel becomes
	// invisible to non-staff regardless once the default-role view is gone.
	for _, userID := range ticket.KnownParticipants() {
		e.access.ClearMemberOverwrite(ctx, ticket.ChannelID, userID)
	}
	e.access.MoveToArchive(ctx, ticket.ChannelID, guildSettings)

	e.refreshHeader(ctx, ticket)

	transcriptErr := error(nil)
	if guildSettings.TranscriptEnabled && guildSettings.AuditLogChannelID != "" {
		// Generate updates the audit record itself, with the expanded
		// participant union.
		url, err := e.transcript.Generate(ctx, ticket)
		if err != nil {
			transcriptErr = err
			e.logger.Warn("transcript generation failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		} else if url != "" {
			publish(ctx, e.dispatcher, events.Event{
				Type:      events.EventTranscriptReady,
				GuildID:   ticket.GuildID,
				TicketID:  ticket.ID,
				ChannelID: ticket.ChannelID,
				ActorID:   actor.UserID,
				Payload:   events.TranscriptReadyPayload{TranscriptURL: url},
			})
		}
	} else if err := e.audit.Update(ctx, ticket, true); err != nil {
		e.logger.Warn("audit update failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	e.metrics.RecordTransition(string(domain.TicketStateClosed), string(domain.TicketStateArchived), true)
	publish(ctx, e.dispatcher, events.Event{
		Type:      events.EventTicketStateChanged,
		GuildID:   ticket.GuildID,
		TicketID:  ticket.ID,
		ChannelID: ticket.ChannelID,
		ActorID:   actor.UserID,
		Payload: events.TicketStateChangedPayload{
			OldState: domain.TicketStateClosed,
			NewState: domain.TicketStateArchived,
		},
	})

	// The archive itself has completed; a transcript failure is reported but
	// never rolls it back.
	return ticket, transcriptErr
}

// RequestReopen posts a reopen request ping into the ticket channel on behalf
// of the creator or target. No state changes.
func (e *LifecycleEngine) RequestReopen(ctx context.Context, channelID, actorUserID string) error {
	ticket, guildSettings, actor, err := e.loadForAction(ctx, channelID, actorUserID)
	if err != nil {
		return err
	}
	if !actor.IsOwner(ticket) {
		return apperrors.NewAuthorizationError("only the ticket owner can request reopening")
	}
	if ticket.State == domain.TicketStateOpen {
		return apperrors.NewInvalidTransition("ticket is already open", nil)
	}
	if ticket.State == domain.TicketStateArchived {
		return apperrors.NewInvalidTransition("archived tickets cannot be reopened", nil)
	}

	content := fmt.Sprintf("<@%s> requested to reopen this ticket.", actor.UserID)
	if mentions := e.duty.NotifyMentions(ctx, guildSettings); mentions != "" {
		content += " Notifying:" + mentions
	}
	if _, err := e.transport.SendMessage(ctx, ticket.ChannelID, chat.Outbound{Content: content}); err != nil {
		return apperrors.NewTransportFailure("post reopen request", err)
	}

	publish(ctx, e.dispatcher, events.Event{
		Type:      events.EventReopenRequested,
		GuildID:   ticket.GuildID,
		TicketID:  ticket.ID,
		ChannelID: ticket.ChannelID,
		ActorID:   actor.UserID,
	})
	return nil
}

// AddParticipant grants a user access to the ticket. Moderator only; archived
// tickets are sealed.
func (e *LifecycleEngine) AddParticipant(ctx context.Context, channelID, actorUserID, userID string) (*domain.Ticket, error) {
	unlock := e.locks.lock(channelID)
	defer unlock()

	ticket, _, actor, err := e.loadForAction(ctx, channelID, actorUserID)
	if err != nil {
		return nil, err
	}
	if !actor.Moderator {
		return nil, apperrors.NewAuthorizationError("only moderators can add participants")
	}
	if ticket.State == domain.TicketStateArchived {
		return nil, apperrors.NewInvalidTransition("archived tickets are sealed; participants cannot be modified", nil)
	}
	if err := e.participants.Add(ctx, ticket, actor.UserID, userID); err != nil {
		return nil, err
	}
	if err := e.audit.Update(ctx, ticket, false); err != nil {
		e.logger.Warn("audit update failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return ticket, nil
}

// RemoveParticipant revokes a user's access to the ticket. Moderator only;
// archived tickets are sealed.
func (e *LifecycleEngine) RemoveParticipant(ctx context.Context, channelID, actorUserID, userID string) (*domain.Ticket, error) {
	unlock := e.locks.lock(channelID)
	defer unlock()

	ticket, guildSettings, actor, err := e.loadForAction(ctx, channelID, actorUserID)
	if err != nil {
		return nil, err
	}
	if !actor.Moderator {
		return nil, apperrors.NewAuthorizationError("only moderators can remove participants")
	}
	if ticket.State == domain.TicketStateArchived {
		return nil, apperrors.NewInvalidTransition("archived tickets are sealed; participants cannot be modified", nil)
	}
	if err := e.participants.Remove(ctx, ticket, guildSettings, actor.UserID, userID); err != nil {
		return nil, err
	}
	if err := e.audit.Update(ctx, ticket, false); err != nil {
		e.logger.Warn("audit update failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	return ticket, nil
}

var allowedTransitions = map[domain.TicketState][]domain.TicketState{
	domain.TicketStateOpen:            {domain.TicketStateResolvedPending, domain.TicketStateClosed},
	domain.TicketStateResolvedPending: {domain.TicketStateOpen, domain.TicketStateClosed},
	domain.TicketStateClosed:          {domain.TicketStateOpen, domain.TicketStateArchived},
	domain.TicketStateArchived:        {},
}

func (e *LifecycleEngine) checkTransition(ticket *domain.Ticket, next domain.TicketState) error {
	for _, candidate := range allowedTransitions[ticket.State] {
		if candidate == next {
			return nil
		}
	}
	e.metrics.RecordTransition(string(ticket.State), string(next), false)
	return apperrors.NewInvalidTransition(
		fmt.Sprintf("cannot move ticket from %s to %s", ticket.State, next),
		map[string]any{"from": ticket.State, "to": next},
	)
}

func (e *LifecycleEngine) loadForAction(ctx context.Context, channelID, actorUserID string) (*domain.Ticket, domain.GuildSettings, domain.Actor, error) {
	ticket, err := e.tickets.GetByChannel(ctx, channelID)
	if err != nil {
		return nil, domain.GuildSettings{}, domain.Actor{}, apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
	}
	guildSettings, err := e.settings.Resolve(ctx, ticket.GuildID)
	if err != nil {
		return nil, domain.GuildSettings{}, domain.Actor{}, err
	}
	actor := e.resolveActor(ctx, ticket.GuildID, actorUserID, guildSettings)
	return ticket, guildSettings, actor, nil
}

// resolveActor derives moderator standing from the member's roles. A failed
// member lookup yields a non-moderator actor rather than an error; the
// authorization checks then reject anything staff-only.
func (e *LifecycleEngine) resolveActor(ctx context.Context, guildID, userID string, settings domain.GuildSettings) domain.Actor {
	actor := domain.Actor{UserID: userID}
	member, err := e.transport.FetchMember(ctx, guildID, userID)
	if err != nil {
		e.logger.Debug("member lookup failed", zap.String("user_id", userID), zap.Error(err))
		return actor
	}
	actor.Moderator = member.Administrator || member.HasRole(settings.ModeratorRoleIDs...)
	return actor
}

func (e *LifecycleEngine) commitState(ctx context.Context, ticket *domain.Ticket, next domain.TicketState, actor domain.Actor) error {
	if err := e.tickets.SetState(ctx, ticket.ID, next); err != nil {
		return apperrors.NewPersistenceFailure("write ticket state", err)
	}
	switch next {
	case domain.TicketStateClosed:
		if err := e.tickets.WriteClosedBy(ctx, ticket.ID, actor.UserID); err != nil {
			return apperrors.NewPersistenceFailure("write closed-by", err)
		}
		ticket.ClosedBy = &actor.UserID
	case domain.TicketStateArchived:
		if err := e.tickets.WriteArchivedBy(ctx, ticket.ID, actor.UserID); err != nil {
			return apperrors.NewPersistenceFailure("write archived-by", err)
		}
		ticket.ArchivedBy = &actor.UserID
	}
	ticket.State = next
	return nil
}

// finishTransition performs the trailing side effects shared by non-archive
// transitions: header refresh, audit update, metrics, and the state event.
func (e *LifecycleEngine) finishTransition(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, previous domain.TicketState) {
	e.refreshHeader(ctx, ticket)
	if err := e.audit.Update(ctx, ticket, false); err != nil {
		e.logger.Warn("audit update failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
	e.metrics.RecordTransition(string(previous), string(ticket.State), true)
	publish(ctx, e.dispatcher, events.Event{
		Type:      events.EventTicketStateChanged,
		GuildID:   ticket.GuildID,
		TicketID:  ticket.ID,
		ChannelID: ticket.ChannelID,
		ActorID:   actor.UserID,
		Payload: events.TicketStateChangedPayload{
			OldState: previous,
			NewState: ticket.State,
		},
	})
}

// refreshHeader edits the in-channel status message in place, recreating it
// (and persisting the new id) when missing. Best-effort.
func (e *LifecycleEngine) refreshHeader(ctx context.Context, ticket *domain.Ticket) {
	embed := headerEmbed(ticket)
	if ticket.HeaderMessageID != nil {
		if _, err := e.transport.FetchMessage(ctx, ticket.ChannelID, *ticket.HeaderMessageID); err == nil {
			if err := e.transport.EditMessage(ctx, ticket.ChannelID, *ticket.HeaderMessageID, chat.Outbound{Embed: embed}); err != nil {
				e.logger.Warn("header edit failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			}
			return
		}
	}
	messageID, err := e.transport.SendMessage(ctx, ticket.ChannelID, chat.Outbound{Embed: embed})
	if err != nil {
		e.logger.Warn("header send failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	if err := e.tickets.WriteHeaderMessageID(ctx, ticket.ID, messageID); err != nil {
		e.logger.Warn("header id persist failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	ticket.HeaderMessageID = &messageID
}

func (e *LifecycleEngine) sendInitialHeader(ctx context.Context, ticket *domain.Ticket, settings domain.GuildSettings) {
	content := fmt.Sprintf("<@%s>", ticket.TargetID)
	if mentions := e.duty.NotifyMentions(ctx, settings); mentions != "" {
		content += mentions
	}
	messageID, err := e.transport.SendMessage(ctx, ticket.ChannelID, chat.Outbound{
		Content: content,
		Embed:   headerEmbed(ticket),
	})
	if err != nil {
		e.logger.Warn("header send failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	if err := e.tickets.WriteHeaderMessageID(ctx, ticket.ID, messageID); err != nil {
		e.logger.Warn("header id persist failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	ticket.HeaderMessageID = &messageID
}

func headerEmbed(ticket *domain.Ticket) *chat.Embed {
	subject := "Use this channel to discuss the issue."
	if ticket.Subject != nil && *ticket.Subject != "" {
		subject = *ticket.Subject
	}
	return &chat.Embed{
		Title: "Support Ticket",
		Fields: []chat.EmbedField{
			{Name: "Target user", Value: fmt.Sprintf("<@%s>", ticket.TargetID), Inline: true},
			{Name: "Status", Value: fmt.Sprintf("`%s`", ticket.State), Inline: true},
			{Name: "Subject", Value: subject},
		},
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9-]+`)

// channelSlug derives a channel-name-safe fragment from a username.
func channelSlug(username string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(username), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 20 {
		slug = slug[:20]
	}
	if slug == "" {
		slug = "user"
	}
	return slug
}

func newTicketKey() string {
	return strings.ToLower(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// keyedMutex serializes work per key. Entries are never evicted; the key
// space is bounded by the number of live ticket channels in one process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &sync.Mutex{}
		k.locks[key] = entry
	}
	k.mu.Unlock()

	entry.Lock()
	return entry.Unlock
}
