package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketbox/internal/domain"
)

// SettingsRepository persists per-guild overrides. A missing row is not an
// error; callers fall back to process-wide defaults.
type SettingsRepository interface {
	Get(ctx context.Context, guildID string) (*domain.GuildSettings, error)
	Upsert(ctx context.Context, settings *domain.GuildSettings) error
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository instantiates repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

// Get returns the stored settings row, or nil when the guild has none.
func (r *settingsRepository) Get(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	const query = `
        SELECT guild_id, moderator_role_ids, on_duty_role_id, tickets_category_id,
               tickets_archive_category_id, log_channel_id, audit_log_channel_id,
               fallback_ping_moderators, transcript_enabled, updated_at
        FROM guild_settings WHERE guild_id=$1`

	var settings domain.GuildSettings
	var moderatorRoles string
	var onDuty, category, archive, logChannel, auditChannel *string
	err := r.pool.QueryRow(ctx, query, guildID).Scan(
		&settings.GuildID,
		&moderatorRoles,
		&onDuty,
		&category,
		&archive,
		&logChannel,
		&auditChannel,
		&settings.FallbackPingModerators,
		&settings.TranscriptEnabled,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	settings.ModeratorRoleIDs = decodeParticipants(moderatorRoles)
	settings.OnDutyRoleID = deref(onDuty)
	settings.TicketsCategoryID = deref(category)
	settings.ArchiveCategoryID = deref(archive)
	settings.LogChannelID = deref(logChannel)
	settings.AuditLogChannelID = deref(auditChannel)
	return &settings, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settings *domain.GuildSettings) error {
	moderatorRoles, err := json.Marshal(settings.ModeratorRoleIDs)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO guild_settings (
            guild_id, moderator_role_ids, on_duty_role_id, tickets_category_id,
            tickets_archive_category_id, log_channel_id, audit_log_channel_id,
            fallback_ping_moderators, transcript_enabled, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
        ON CONFLICT (guild_id) DO UPDATE SET
            moderator_role_ids=EXCLUDED.moderator_role_ids,
            on_duty_role_id=EXCLUDED.on_duty_role_id,
            tickets_category_id=EXCLUDED.tickets_category_id,
            tickets_archive_category_id=EXCLUDED.tickets_archive_category_id,
            log_channel_id=EXCLUDED.log_channel_id,
            audit_log_channel_id=EXCLUDED.audit_log_channel_id,
            fallback_ping_moderators=EXCLUDED.fallback_ping_moderators,
            transcript_enabled=EXCLUDED.transcript_enabled,
            updated_at=NOW()`
	_, err = r.pool.Exec(ctx, query,
		settings.GuildID,
		string(moderatorRoles),
		nilIfEmpty(settings.OnDutyRoleID),
		nilIfEmpty(settings.TicketsCategoryID),
		nilIfEmpty(settings.ArchiveCategoryID),
		nilIfEmpty(settings.LogChannelID),
		nilIfEmpty(settings.AuditLogChannelID),
		settings.FallbackPingModerators,
		settings.TranscriptEnabled,
	)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
