package service

import (
	"context"
	"testing"

	"github.com/spec-kit/ticketbox/internal/domain"
	"github.com/spec-kit/ticketbox/internal/events"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

func TestAddParticipantGrantsAndPersists(t *testing.T) {
	f := newEngineFixture(t, testTicketsConfig())
	ticket := f.mustCreate(t)

	if _, err := f.engine.AddParticipant(context.Background(), ticket.ChannelID, moderatorUser, strangerUser); err != nil {
		t.Fatalf("add participant: %v", err)
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if !stored.HasParticipant(strangerUser) {
		t.Error("participant not persisted")
	}

	var granted bool
	for _, call := range f.transport.permCalls(ticket.ChannelID) {
		if call.Target.ID == strangerUser && !call.Cleared &&
			call.Update.ViewChannel != nil && *call.Update.ViewChannel {
			granted = true
		}
	}
	if !granted {
		t.Error("channel access not granted")
	}
	if added := f.events.ofType(events.EventParticipantAdded); len(added) != 1 {
		t.Errorf("participant_added events = %d, want 1", len(added))
	}
}

func TestAddParticipantIsIdempotentOnTheList(t *testing.T) {
	f := newEngineFixture(t, testTicketsConfig())
	ticket := f.mustCreate(t)

	for i := 0; i < 3; i++ {
		if _, err := f.engine.AddParticipant(context.Background(), ticket.ChannelID, moderatorUser, strangerUser); err != nil {
			t.Fatalf("add participant #%d: %v", i, err)
		}
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if len(stored.Participants) != 1 {
		t.Errorf("participants = %v, want single entry", stored.Participants)
	}
	if added := f.events.ofType(events.EventParticipantAdded); len(added) != 1 {
		t.Errorf("participant_added events = %d, want 1 (re-adds are silent)", len(added))
	}
}

func TestAddParticipantRequiresModerator(t *testing.T) {
	f := newEngineFixture(t, testTicketsConfig())
	ticket := f.mustCreate(t)

	_, err := f.engine.AddParticipant(context.Background(), ticket.ChannelID, creatorUser, strangerUser)
	if !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("err = %v, want FORBIDDEN", err)
	}
}

func TestRemoveParticipantRoundTrip(t *testing.T) {
	f := newEngineFixture(t, testTicketsConfig())
	ticket := f.mustCreate(t)

	if _, err := f.engine.AddParticipant(context.Background(), ticket.ChannelID, moderatorUser, strangerUser); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.engine.RemoveParticipant(context.Background(), ticket.ChannelID, moderatorUser, strangerUser); err != nil {
		t.Fatalf("remove: %v", err)
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.HasParticipant(strangerUser) {
		t.Error("participant still on the list after removal")
	}
	cleared := f.transport.clearedTargets(ticket.ChannelID)
	if len(cleared) != 1 || cleared[0] != strangerUser {
		t.Errorf("cleared targets = %v, want [%s]", cleared, strangerUser)
	}
	if removed := f.events.ofType(events.EventParticipantRemoved); len(removed) != 1 {
		t.Errorf("participant_removed events = %d, want 1", len(removed))
	}
}

func TestRemoveProtectedIdentitiesIsSilentlyRefused(t *testing.T) {
	tests := []struct {
		name   string
		userID string
	}{
		{"creator", creatorUser},
		{"target", targetUser},
		{"moderator", moderatorUser},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newEngineFixture(t, testTicketsConfig())
			ticket := f.mustCreate(t)

			if _, err := f.engine.RemoveParticipant(context.Background(), ticket.ChannelID, moderatorUser, tc.userID); err != nil {
				t.Fatalf("remove returned error: %v", err)
			}
			if cleared := f.transport.clearedTargets(ticket.ChannelID); len(cleared) != 0 {
				t.Errorf("overwrite cleared for protected identity %s", tc.userID)
			}
			if removed := f.events.ofType(events.EventParticipantRemoved); len(removed) != 0 {
				t.Error("removal event published for refused operation")
			}
		})
	}
}

func TestParticipantsFrozenOnceArchived(t *testing.T) {
	f := newEngineFixture(t, testTicketsConfig())
	ticket := f.mustCreate(t)
	if _, err := f.engine.AddParticipant(context.Background(), ticket.ChannelID, moderatorUser, strangerUser); err != nil {
		t.Fatalf("add: %v", err)
	}
	f.mustReach(t, ticket, domain.TicketStateArchived)

	if _, err := f.engine.AddParticipant(context.Background(), ticket.ChannelID, moderatorUser, "user-late"); !apperrors.IsCode(err, "INVALID_TRANSITION") {
		t.Errorf("add on archived: err = %v, want INVALID_TRANSITION", err)
	}
	if _, err := f.engine.RemoveParticipant(context.Background(), ticket.ChannelID, moderatorUser, strangerUser); !apperrors.IsCode(err, "INVALID_TRANSITION") {
		t.Errorf("remove on archived: err = %v, want INVALID_TRANSITION", err)
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if !stored.HasParticipant(strangerUser) || len(stored.Participants) != 1 {
		t.Errorf("participants = %v, want sealed [%s]", stored.Participants, strangerUser)
	}
}
