package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketbox/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Every write is a single
// atomic statement keyed by ticket id; there are no long-lived transactions.
type TicketRepository interface {
	Insert(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	ListByGuild(ctx context.Context, guildID string, limit, offset int) ([]domain.Ticket, error)
	SetState(ctx context.Context, id string, state domain.TicketState) error
	WriteClosedBy(ctx context.Context, id, userID string) error
	WriteArchivedBy(ctx context.Context, id, userID string) error
	WriteParticipants(ctx context.Context, id string, participants []string) error
	WriteHeaderMessageID(ctx context.Context, id, messageID string) error
	WriteAuditMessageID(ctx context.Context, id, messageID string) error
	WriteTranscriptURL(ctx context.Context, id string, url *string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, guild_id, channel_id, creator_user_id, target_user_id, subject, state,
           added_participants, created_at, updated_at, closed_at, closed_by_user_id,
           archived_at, archived_by_user_id, audit_message_id, transcript_url, header_message_id`

func (r *ticketRepository) Insert(ctx context.Context, ticket *domain.Ticket) error {
	participants, err := encodeParticipants(ticket.Participants)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, guild_id, channel_id, creator_user_id, target_user_id, subject, state, added_participants)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.GuildID,
		ticket.ChannelID,
		ticket.CreatorID,
		ticket.TargetID,
		ticket.Subject,
		ticket.State,
		participants,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE channel_id=$1`
	return r.fetchSingle(ctx, query, channelID)
}

func (r *ticketRepository) ListByGuild(ctx context.Context, guildID string, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE guild_id=$1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, guildID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) SetState(ctx context.Context, id string, state domain.TicketState) error {
	const query = `UPDATE tickets SET state=$1, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, state, id)
}

func (r *ticketRepository) WriteClosedBy(ctx context.Context, id, userID string) error {
	const query = `UPDATE tickets SET closed_at=NOW(), closed_by_user_id=$1, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, userID, id)
}

func (r *ticketRepository) WriteArchivedBy(ctx context.Context, id, userID string) error {
	const query = `UPDATE tickets SET archived_at=NOW(), archived_by_user_id=$1, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, userID, id)
}

func (r *ticketRepository) WriteParticipants(ctx context.Context, id string, participants []string) error {
	encoded, err := encodeParticipants(participants)
	if err != nil {
		return err
	}
	const query = `UPDATE tickets SET added_participants=$1, updated_at=NOW() WHERE id=$2`
	return r.exec(ctx, query, encoded, id)
}

func (r *ticketRepository) WriteHeaderMessageID(ctx context.Context, id, messageID string) error {
	const query = `UPDATE tickets SET header_message_id=$1 WHERE id=$2`
	return r.exec(ctx, query, messageID, id)
}

func (r *ticketRepository) WriteAuditMessageID(ctx context.Context, id, messageID string) error {
	const query = `UPDATE tickets SET audit_message_id=$1 WHERE id=$2`
	return r.exec(ctx, query, messageID, id)
}

func (r *ticketRepository) WriteTranscriptURL(ctx context.Context, id string, url *string) error {
	const query = `UPDATE tickets SET transcript_url=$1 WHERE id=$2`
	return r.exec(ctx, query, url, id)
}

func (r *ticketRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	return scanTicket(row)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var participants string
	if err := row.Scan(
		&ticket.ID,
		&ticket.GuildID,
		&ticket.ChannelID,
		&ticket.CreatorID,
		&ticket.TargetID,
		&ticket.Subject,
		&ticket.State,
		&participants,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
		&ticket.ClosedBy,
		&ticket.ArchivedAt,
		&ticket.ArchivedBy,
		&ticket.AuditMessageID,
		&ticket.TranscriptURL,
		&ticket.HeaderMessageID,
	); err != nil {
		return nil, err
	}
	ticket.Participants = decodeParticipants(participants)
	return &ticket, nil
}

func encodeParticipants(participants []string) (string, error) {
	if participants == nil {
		participants = []string{}
	}
	encoded, err := json.Marshal(participants)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// decodeParticipants tolerates malformed column contents; a corrupt list reads
// as empty rather than failing the whole fetch.
func decodeParticipants(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return []string{}
	}
	return list
}
