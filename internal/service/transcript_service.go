package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbox/internal/chat"
	"github.com/spec-kit/ticketbox/internal/config"
	"github.com/spec-kit/ticketbox/internal/domain"
	"github.com/spec-kit/ticketbox/internal/repository"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

// TranscriptService renders a static HTML document of a ticket channel's
// history and attaches it to the ticket's audit message. It runs once, on the
// CLOSED→ARCHIVED transition, and its failures never roll the transition back.
type TranscriptService struct {
	tickets   repository.TicketRepository
	transport chat.ChannelTransport
	audit     *AuditService
	settings  *SettingsService
	cfg       config.TicketsConfig
	logger    *zap.Logger
}

// NewTranscriptService constructs the service.
func NewTranscriptService(tickets repository.TicketRepository, transport chat.ChannelTransport, audit *AuditService, settings *SettingsService, cfg config.TicketsConfig, logger *zap.Logger) *TranscriptService {
	return &TranscriptService{
		tickets:   tickets,
		transport: transport,
		audit:     audit,
		settings:  settings,
		cfg:       cfg,
		logger:    logger,
	}
}

// Generate produces the transcript, attaches it to the audit message, persists
// the durable link, and refreshes the audit record with the expanded
// participant set. Returns the transcript URL, or empty when transcripts are
// disabled or no audit channel is configured.
func (s *TranscriptService) Generate(ctx context.Context, ticket *domain.Ticket) (string, error) {
	guildSettings, err := s.settings.Resolve(ctx, ticket.GuildID)
	if err != nil {
		return "", err
	}
	if !guildSettings.TranscriptEnabled || guildSettings.AuditLogChannelID == "" {
		return "", nil
	}

	auditMessageID, err := s.audit.Ensure(ctx, ticket)
	if err != nil {
		return "", err
	}

	messages, truncated := s.fetchHistory(ctx, ticket.ChannelID)
	document := s.render(ticket, messages, truncated)

	url, err := s.transport.AttachFile(ctx, guildSettings.AuditLogChannelID, auditMessageID, chat.FileUpload{
		Name:        fmt.Sprintf("transcript-%s.html", ticket.ID),
		ContentType: "text/html",
		Reader:      strings.NewReader(document),
	})
	if err != nil {
		return "", apperrors.NewTransportFailure("attach transcript", err)
	}

	if err := s.tickets.WriteTranscriptURL(ctx, ticket.ID, &url); err != nil {
		return "", apperrors.NewPersistenceFailure("persist transcript url", err)
	}
	ticket.TranscriptURL = &url

	// The audit record now shows the transcript link and pays the one-time
	// cost of the full participant union.
	if err := s.audit.Update(ctx, ticket, true); err != nil {
		s.logger.Warn("audit refresh after transcript failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
	return url, nil
}

// fetchHistory walks the channel backward in bounded batches and returns the
// captured messages oldest first. truncated reports whether the page cap cut
// the walk short; older history beyond the cap is omitted.
func (s *TranscriptService) fetchHistory(ctx context.Context, channelID string) ([]chat.Message, bool) {
	var collected []chat.Message
	before := ""
	truncated := false
	for page := 0; page < s.cfg.MaxHistoryPages; page++ {
		batch, err := s.transport.History(ctx, channelID, before, s.cfg.HistoryPageSize)
		if err != nil {
			s.logger.Warn("history fetch failed", zap.String("channel_id", channelID), zap.Error(err))
			break
		}
		if len(batch) == 0 {
			break
		}
		collected = append(collected, batch...)
		before = batch[len(batch)-1].ID
		if len(batch) < s.cfg.HistoryPageSize {
			break
		}
		if page == s.cfg.MaxHistoryPages-1 {
			truncated = true
		}
	}

	// Batches arrive newest first; flip to chronological order.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, truncated
}

func (s *TranscriptService) render(ticket *domain.Ticket, messages []chat.Message, truncated bool) string {
	var b strings.Builder
	subject := ""
	if ticket.Subject != nil {
		subject = *ticket.Subject
	}

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>Ticket %s</title>\n</head>\n<body>\n", html.EscapeString(ticket.ID))
	fmt.Fprintf(&b, "<h1>Ticket %s</h1>\n", html.EscapeString(ticket.ID))
	if subject != "" {
		fmt.Fprintf(&b, "<p><strong>Subject:</strong> %s</p>\n", html.EscapeString(subject))
	}
	if truncated {
		b.WriteString("<p><em>History truncated: older messages beyond the capture limit are not included.</em></p>\n")
	}

	for _, msg := range messages {
		author := msg.AuthorName
		if author == "" {
			author = msg.AuthorID
		}
		b.WriteString("<div class=\"message\">\n")
		fmt.Fprintf(&b, "<span class=\"ts\">%s</span> <span class=\"author\">%s (%s)</span>\n",
			msg.Timestamp.UTC().Format(time.RFC3339),
			html.EscapeString(author),
			html.EscapeString(msg.AuthorID))
		if msg.Content != "" {
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(msg.Content))
		}
		for _, url := range msg.AttachmentURLs {
			escaped := html.EscapeString(url)
			fmt.Fprintf(&b, "<p><a href=\"%s\">%s</a></p>\n", escaped, escaped)
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return b.String()
}
