package dto

import "github.com/spec-kit/ticketbox/internal/domain"

// SettingsResponse is the effective per-guild configuration.
type SettingsResponse struct {
	GuildID                string   `json:"guild_id"`
	ModeratorRoleIDs       []string `json:"moderator_role_ids"`
	OnDutyRoleID           string   `json:"on_duty_role_id,omitempty"`
	TicketsCategoryID      string   `json:"tickets_category_id,omitempty"`
	ArchiveCategoryID      string   `json:"archive_category_id,omitempty"`
	LogChannelID           string   `json:"log_channel_id,omitempty"`
	AuditLogChannelID      string   `json:"audit_log_channel_id,omitempty"`
	FallbackPingModerators bool     `json:"fallback_ping_moderators"`
	TranscriptEnabled      bool     `json:"transcript_enabled"`
}

// UpdateSettingsRequest carries partial updates; omitted fields are unchanged.
type UpdateSettingsRequest struct {
	ModeratorRoleIDs       *[]string `json:"moderator_role_ids"`
	OnDutyRoleID           *string   `json:"on_duty_role_id"`
	TicketsCategoryID      *string   `json:"tickets_category_id"`
	ArchiveCategoryID      *string   `json:"archive_category_id"`
	LogChannelID           *string   `json:"log_channel_id"`
	AuditLogChannelID      *string   `json:"audit_log_channel_id"`
	FallbackPingModerators *bool     `json:"fallback_ping_moderators"`
	TranscriptEnabled      *bool     `json:"transcript_enabled"`
}

// FromSettings builds the response view.
func FromSettings(s domain.GuildSettings) SettingsResponse {
	roles := s.ModeratorRoleIDs
	if roles == nil {
		roles = []string{}
	}
	return SettingsResponse{
		GuildID:                s.GuildID,
		ModeratorRoleIDs:       roles,
		OnDutyRoleID:           s.OnDutyRoleID,
		TicketsCategoryID:      s.TicketsCategoryID,
		ArchiveCategoryID:      s.ArchiveCategoryID,
		LogChannelID:           s.LogChannelID,
		AuditLogChannelID:      s.AuditLogChannelID,
		FallbackPingModerators: s.FallbackPingModerators,
		TranscriptEnabled:      s.TranscriptEnabled,
	}
}
