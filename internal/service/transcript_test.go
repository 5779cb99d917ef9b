package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbox/internal/chat"
	"github.com/spec-kit/ticketbox/internal/config"
	"github.com/spec-kit/ticketbox/internal/domain"
)

type transcriptFixture struct {
	transcript *TranscriptService
	transport  *fakeTransport
	tickets    *memTicketRepo
}

func newTranscriptFixture(t *testing.T, cfg config.TicketsConfig) *transcriptFixture {
	t.Helper()
	transport := newFakeTransport()
	tickets := newMemTicketRepo()
	settings := NewSettingsService(newMemSettingsRepo(), cfg)
	audit := NewAuditService(tickets, transport, settings, nil, cfg, zap.NewNop())
	transcript := NewTranscriptService(tickets, transport, audit, settings, cfg, zap.NewNop())
	return &transcriptFixture{transcript: transcript, transport: transport, tickets: tickets}
}

func (f *transcriptFixture) seedTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	subject := "payment <failed>"
	ticket := &domain.Ticket{
		ID:        "t1",
		GuildID:   testGuild,
		ChannelID: "chan-ticket",
		CreatorID: creatorUser,
		TargetID:  targetUser,
		Subject:   &subject,
		State:     domain.TicketStateClosed,
	}
	if err := f.tickets.Insert(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

func historyMessages(channelID string, n int) []chat.Message {
	msgs := make([]chat.Message, 0, n)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		msgs = append(msgs, chat.Message{
			ID:         fmt.Sprintf("m-%04d", i),
			ChannelID:  channelID,
			AuthorID:   creatorUser,
			AuthorName: "creator",
			Content:    fmt.Sprintf("message %d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	return msgs
}

func TestGeneratePersistsDurableURL(t *testing.T) {
	f := newTranscriptFixture(t, testTicketsConfig())
	ticket := f.seedTicket(t)
	f.transport.seedHistory(ticket.ChannelID, historyMessages(ticket.ChannelID, 3))

	url, err := f.transcript.Generate(context.Background(), ticket)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if url == "" {
		t.Fatal("no transcript url returned")
	}
	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.TranscriptURL == nil || *stored.TranscriptURL != url {
		t.Errorf("persisted url = %v, want %s", stored.TranscriptURL, url)
	}
	if len(f.transport.uploads) != 1 || f.transport.uploads[0] != "transcript-t1.html" {
		t.Errorf("uploads = %v, want [transcript-t1.html]", f.transport.uploads)
	}
}

func TestGenerateSkipsWhenDisabled(t *testing.T) {
	cfg := testTicketsConfig()
	cfg.TranscriptEnabled = false
	f := newTranscriptFixture(t, cfg)
	ticket := f.seedTicket(t)

	url, err := f.transcript.Generate(context.Background(), ticket)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if url != "" {
		t.Errorf("url = %q, want empty when disabled", url)
	}
	if len(f.transport.uploads) != 0 {
		t.Error("file uploaded despite transcripts being disabled")
	}
}

func TestRenderIsChronologicalAndEscaped(t *testing.T) {
	f := newTranscriptFixture(t, testTicketsConfig())
	ticket := f.seedTicket(t)

	msgs := []chat.Message{
		{
			ID: "m-1", AuthorID: creatorUser, AuthorName: "creator",
			Content:   "first <script>alert(1)</script>",
			Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID: "m-2", AuthorID: targetUser, AuthorName: "tar<get>",
			Content:        "second & last",
			Timestamp:      time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
			AttachmentURLs: []string{"https://cdn.example/a?x=1&y=2"},
		},
	}
	doc := f.transcript.render(ticket, msgs, false)

	if strings.Contains(doc, "<script>") {
		t.Error("message content not escaped")
	}
	if !strings.Contains(doc, "first &lt;script&gt;") {
		t.Error("escaped content missing")
	}
	if !strings.Contains(doc, "tar&lt;get&gt;") {
		t.Error("author name not escaped")
	}
	if !strings.Contains(doc, "payment &lt;failed&gt;") {
		t.Error("subject not escaped")
	}
	first := strings.Index(doc, "first &lt;script&gt;")
	second := strings.Index(doc, "second &amp; last")
	if first == -1 || second == -1 || first > second {
		t.Error("messages not rendered oldest to newest")
	}
	if !strings.Contains(doc, "2026-03-01T10:00:00Z") {
		t.Error("timestamps not rendered in RFC3339")
	}
	if strings.Contains(doc, "truncated") {
		t.Error("truncation marker present for complete history")
	}
}

func TestRenderMarksTruncatedHistory(t *testing.T) {
	f := newTranscriptFixture(t, testTicketsConfig())
	ticket := f.seedTicket(t)
	doc := f.transcript.render(ticket, historyMessages(ticket.ChannelID, 2), true)
	if !strings.Contains(doc, "History truncated") {
		t.Error("truncation marker missing")
	}
}

func TestFetchHistoryStopsAtPageCap(t *testing.T) {
	cfg := testTicketsConfig()
	cfg.HistoryPageSize = 10
	cfg.MaxHistoryPages = 3
	f := newTranscriptFixture(t, cfg)
	ticket := f.seedTicket(t)
	f.transport.seedHistory(ticket.ChannelID, historyMessages(ticket.ChannelID, 100))

	msgs, truncated := f.transcript.fetchHistory(context.Background(), ticket.ChannelID)
	if len(msgs) != 30 {
		t.Errorf("captured %d messages, want 30 (3 pages of 10)", len(msgs))
	}
	if !truncated {
		t.Error("truncation not reported at page cap")
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Fatalf("messages out of chronological order at %d", i)
		}
	}
}

func TestFetchHistoryCompleteWhenShort(t *testing.T) {
	cfg := testTicketsConfig()
	cfg.HistoryPageSize = 10
	cfg.MaxHistoryPages = 3
	f := newTranscriptFixture(t, cfg)
	ticket := f.seedTicket(t)
	f.transport.seedHistory(ticket.ChannelID, historyMessages(ticket.ChannelID, 14))

	msgs, truncated := f.transcript.fetchHistory(context.Background(), ticket.ChannelID)
	if len(msgs) != 14 {
		t.Errorf("captured %d messages, want all 14", len(msgs))
	}
	if truncated {
		t.Error("truncation reported for complete capture")
	}
}
