package dto

import (
	"time"

	"github.com/spec-kit/ticketbox/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ID        string             `json:"id"`
	GuildID   string             `json:"guild_id"`
	ChannelID string             `json:"channel_id"`
	CreatorID string             `json:"creator_id"`
	TargetID  string             `json:"target_id"`
	Subject   *string            `json:"subject,omitempty"`
	State     domain.TicketState `json:"state"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Participants  []string   `json:"participants"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	ClosedBy      *string    `json:"closed_by,omitempty"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	ArchivedBy    *string    `json:"archived_by,omitempty"`
	TranscriptURL *string    `json:"transcript_url,omitempty"`
}

// FromTicket builds a summary view.
func FromTicket(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:        t.ID,
		GuildID:   t.GuildID,
		ChannelID: t.ChannelID,
		CreatorID: t.CreatorID,
		TargetID:  t.TargetID,
		Subject:   t.Subject,
		State:     t.State,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// FromTicketDetail builds the full view.
func FromTicketDetail(t *domain.Ticket) TicketDetailResponse {
	participants := t.Participants
	if participants == nil {
		participants = []string{}
	}
	return TicketDetailResponse{
		TicketSummary: FromTicket(t),
		Participants:  participants,
		ClosedAt:      t.ClosedAt,
		ClosedBy:      t.ClosedBy,
		ArchivedAt:    t.ArchivedAt,
		ArchivedBy:    t.ArchivedBy,
		TranscriptURL: t.TranscriptURL,
	}
}
