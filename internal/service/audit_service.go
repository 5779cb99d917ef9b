package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbox/internal/chat"
	"github.com/spec-kit/ticketbox/internal/config"
	"github.com/spec-kit/ticketbox/internal/domain"
	"github.com/spec-kit/ticketbox/internal/repository"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

const usernameCacheTTL = time.Hour

// AuditService maintains the 1:1 mapping between a ticket and its audit
// message in the guild's audit channel. Rendering is split from existence:
// Ensure never edits, Update always re-renders.
type AuditService struct {
	tickets   repository.TicketRepository
	transport chat.ChannelTransport
	settings  *SettingsService
	names     *redis.Client
	cfg       config.TicketsConfig
	logger    *zap.Logger
}

// NewAuditService constructs the service. The redis client is optional; when
// nil every render resolves usernames straight from the transport.
func NewAuditService(tickets repository.TicketRepository, transport chat.ChannelTransport, settings *SettingsService, names *redis.Client, cfg config.TicketsConfig, logger *zap.Logger) *AuditService {
	return &AuditService{
		tickets:   tickets,
		transport: transport,
		settings:  settings,
		names:     names,
		cfg:       cfg,
		logger:    logger,
	}
}

// Ensure guarantees exactly one audit message exists for the ticket. When the
// recorded message still resolves it is returned unchanged; otherwise a fresh
// summary is created and its id persisted. Returns the audit message id, or
// empty when no audit channel is configured.
func (s *AuditService) Ensure(ctx context.Context, ticket *domain.Ticket) (string, error) {
	guildSettings, err := s.settings.Resolve(ctx, ticket.GuildID)
	if err != nil {
		return "", err
	}
	if guildSettings.AuditLogChannelID == "" {
		return "", nil
	}

	// Re-read the row: a concurrent ensure may have written the id already.
	current, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return "", apperrors.NewPersistenceFailure("load ticket for audit", err)
	}
	if current.AuditMessageID != nil {
		if _, err := s.transport.FetchMessage(ctx, guildSettings.AuditLogChannelID, *current.AuditMessageID); err == nil {
			ticket.AuditMessageID = current.AuditMessageID
			return *current.AuditMessageID, nil
		}
	}

	embed := s.buildEmbed(ctx, current, false)
	messageID, err := s.transport.SendMessage(ctx, guildSettings.AuditLogChannelID, chat.Outbound{Embed: embed})
	if err != nil {
		return "", apperrors.NewTransportFailure("create audit message", err)
	}
	if err := s.tickets.WriteAuditMessageID(ctx, ticket.ID, messageID); err != nil {
		return "", apperrors.NewPersistenceFailure("persist audit message id", err)
	}
	ticket.AuditMessageID = &messageID
	return messageID, nil
}

// Update re-renders the audit message in place with current ticket fields.
// expandParticipants switches the participant block from the cheap known set
// to the full union of everyone who ever posted in the channel; it is used
// exactly once, during the archival step. Silent no-op when no audit channel
// is configured; render failures are logged and swallowed.
func (s *AuditService) Update(ctx context.Context, ticket *domain.Ticket, expandParticipants bool) error {
	guildSettings, err := s.settings.Resolve(ctx, ticket.GuildID)
	if err != nil {
		return err
	}
	if guildSettings.AuditLogChannelID == "" {
		return nil
	}

	messageID, err := s.Ensure(ctx, ticket)
	if err != nil {
		return err
	}
	if messageID == "" {
		return nil
	}

	current, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return apperrors.NewPersistenceFailure("load ticket for audit", err)
	}

	embed := s.buildEmbed(ctx, current, expandParticipants)
	if err := s.transport.EditMessage(ctx, guildSettings.AuditLogChannelID, messageID, chat.Outbound{Embed: embed}); err != nil {
		s.logger.Warn("audit render failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("audit_message_id", messageID),
			zap.Error(err))
	}
	return nil
}

func (s *AuditService) buildEmbed(ctx context.Context, ticket *domain.Ticket, expandParticipants bool) *chat.Embed {
	participantIDs := ticket.KnownParticipants()
	if expandParticipants {
		participantIDs = s.collectAllParticipants(ctx, ticket)
	}

	subject := "—"
	if ticket.Subject != nil && *ticket.Subject != "" {
		subject = *ticket.Subject
	}

	fields := []chat.EmbedField{
		{Name: "Ticket", Value: fmt.Sprintf("<#%s>", ticket.ChannelID), Inline: true},
		{Name: "Status", Value: fmt.Sprintf("`%s`", ticket.State), Inline: true},
		{Name: "Subject", Value: subject, Inline: true},
		{Name: "Opened by", Value: s.formatUser(ctx, ticket.CreatorID), Inline: true},
		{Name: "Target user", Value: s.formatUser(ctx, ticket.TargetID), Inline: true},
		{Name: "Participants (ever involved)", Value: s.renderParticipants(ctx, participantIDs)},
	}
	if ticket.TranscriptURL != nil && *ticket.TranscriptURL != "" {
		fields = append(fields, chat.EmbedField{
			Name:  "Transcript",
			Value: fmt.Sprintf("[HTML transcript](%s)", *ticket.TranscriptURL),
		})
	}
	if ticket.ClosedBy != nil {
		fields = append(fields, chat.EmbedField{Name: "Closed by", Value: s.formatUser(ctx, *ticket.ClosedBy), Inline: true})
	}
	if ticket.ArchivedBy != nil {
		fields = append(fields, chat.EmbedField{Name: "Archived by", Value: s.formatUser(ctx, *ticket.ArchivedBy), Inline: true})
	}

	return &chat.Embed{
		Title:     fmt.Sprintf("Ticket Audit — %s", ticket.ID),
		Fields:    fields,
		Timestamp: time.Now(),
	}
}

// collectAllParticipants unions the known participant set with every identity
// that authored a message in the channel, walking history backward in bounded
// batches. Tickets are usually short; the page cap guards the pathological
// ones.
func (s *AuditService) collectAllParticipants(ctx context.Context, ticket *domain.Ticket) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range ticket.KnownParticipants() {
		add(id)
	}

	before := ""
	for page := 0; page < s.cfg.MaxHistoryPages; page++ {
		batch, err := s.transport.History(ctx, ticket.ChannelID, before, s.cfg.HistoryPageSize)
		if err != nil || len(batch) == 0 {
			break
		}
		for _, msg := range batch {
			add(msg.AuthorID)
		}
		before = batch[len(batch)-1].ID
		if len(batch) < s.cfg.HistoryPageSize {
			break
		}
	}
	return out
}

func (s *AuditService) renderParticipants(ctx context.Context, userIDs []string) string {
	if len(userIDs) == 0 {
		return "—"
	}
	var b strings.Builder
	for _, id := range userIDs {
		line := s.formatUser(ctx, id)
		if b.Len()+len(line)+1 > s.cfg.AuditFieldBudget {
			b.WriteString("\n…")
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

// formatUser renders "username (<@id>)", showing both the global username and
// a live mention.
func (s *AuditService) formatUser(ctx context.Context, userID string) string {
	return fmt.Sprintf("%s (<@%s>)", s.nameFor(ctx, userID), userID)
}

func (s *AuditService) nameFor(ctx context.Context, userID string) string {
	cacheKey := "ticketbox:username:" + userID
	if s.names != nil {
		if cached, err := s.names.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			return cached
		}
	}
	name, err := s.transport.FetchUsername(ctx, userID)
	if err != nil || name == "" {
		suffix := userID
		if len(suffix) > 4 {
			suffix = suffix[len(suffix)-4:]
		}
		return "Unknown#" + suffix
	}
	if s.names != nil {
		if err := s.names.Set(ctx, cacheKey, name, usernameCacheTTL).Err(); err != nil {
			s.logger.Debug("username cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return name
}
