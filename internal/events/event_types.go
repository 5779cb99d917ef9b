package events

import (
	"time"

	"github.com/spec-kit/ticketbox/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketStateChanged EventType = "ticket_state_changed"
	EventParticipantAdded   EventType = "participant_added"
	EventParticipantRemoved EventType = "participant_removed"
	EventReopenRequested    EventType = "reopen_requested"
	EventTranscriptReady    EventType = "transcript_ready"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	GuildID   string      `json:"guild_id"`
	TicketID  string      `json:"ticket_id"`
	ChannelID string      `json:"channel_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CreatorID string  `json:"creator_id"`
	TargetID  string  `json:"target_id"`
	Subject   *string `json:"subject,omitempty"`
}

// TicketStateChangedPayload payload.
type TicketStateChangedPayload struct {
	OldState domain.TicketState `json:"old_state"`
	NewState domain.TicketState `json:"new_state"`
}

// ParticipantChangedPayload payload for add/remove.
type ParticipantChangedPayload struct {
	UserID string `json:"user_id"`
}

// TranscriptReadyPayload payload.
type TranscriptReadyPayload struct {
	TranscriptURL string `json:"transcript_url"`
}
