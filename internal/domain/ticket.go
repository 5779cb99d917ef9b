package domain

import "time"

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	TicketStateOpen            TicketState = "OPEN"
	TicketStateResolvedPending TicketState = "RESOLVED_PENDING_REVIEW"
	TicketStateClosed          TicketState = "CLOSED"
	TicketStateArchived        TicketState = "ARCHIVED"
)

// Ticket is the aggregate for a single support conversation. It is bound 1:1
// to a chat channel and never deleted; ARCHIVED is its terminal state.
type Ticket struct {
	ID              string
	GuildID         string
	ChannelID       string
	CreatorID       string
	TargetID        string
	Subject         *string
	State           TicketState
	Participants    []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
	ClosedBy        *string
	ArchivedAt      *time.Time
	ArchivedBy      *string
	AuditMessageID  *string
	TranscriptURL   *string
	HeaderMessageID *string
}

// HasParticipant reports whether the identity is in the explicit participant list.
func (t *Ticket) HasParticipant(userID string) bool {
	for _, id := range t.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// KnownParticipants returns creator, target, and the explicit participant list,
// in that order, deduplicated. Creator and target are implicit members even
// though they are never stored in the explicit list.
func (t *Ticket) KnownParticipants() []string {
	seen := make(map[string]struct{}, len(t.Participants)+2)
	out := make([]string, 0, len(t.Participants)+2)
	for _, id := range append([]string{t.CreatorID, t.TargetID}, t.Participants...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Actor identifies who is acting on a ticket, with its moderator standing
// already resolved against the guild's settings.
type Actor struct {
	UserID    string
	Moderator bool
}

// IsOwner reports whether the actor is the ticket's creator or target.
func (a Actor) IsOwner(t *Ticket) bool {
	return a.UserID == t.CreatorID || a.UserID == t.TargetID
}
