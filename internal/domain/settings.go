package domain

import "time"

// GuildSettings holds the per-guild configuration the core reads: which roles
// count as moderators, where tickets and their audit records live, and whether
// transcripts are generated at archival. Empty string means "not configured".
type GuildSettings struct {
	GuildID                string
	ModeratorRoleIDs       []string
	OnDutyRoleID           string
	TicketsCategoryID      string
	ArchiveCategoryID      string
	LogChannelID           string
	AuditLogChannelID      string
	FallbackPingModerators bool
	TranscriptEnabled      bool
	UpdatedAt              time.Time
}

// DutyStatus records whether a moderator has marked themselves on duty.
type DutyStatus struct {
	GuildID   string
	UserID    string
	OnDuty    bool
	UpdatedAt time.Time
}
