package service

import (
	"context"

	"github.com/spec-kit/ticketbox/internal/config"
	"github.com/spec-kit/ticketbox/internal/domain"
	"github.com/spec-kit/ticketbox/internal/repository"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

// SettingsService resolves effective per-guild settings: the stored row when
// one exists, falling back to the process-wide defaults from configuration.
type SettingsService struct {
	repo     repository.SettingsRepository
	defaults config.TicketsConfig
}

// NewSettingsService constructs the service.
func NewSettingsService(repo repository.SettingsRepository, defaults config.TicketsConfig) *SettingsService {
	return &SettingsService{repo: repo, defaults: defaults}
}

// Resolve returns the effective settings for a guild.
func (s *SettingsService) Resolve(ctx context.Context, guildID string) (domain.GuildSettings, error) {
	stored, err := s.repo.Get(ctx, guildID)
	if err != nil {
		return domain.GuildSettings{}, apperrors.NewPersistenceFailure("load guild settings", err)
	}
	if stored != nil {
		return *stored, nil
	}
	return domain.GuildSettings{
		GuildID:                guildID,
		ModeratorRoleIDs:       s.defaults.ModeratorRoleIDs,
		OnDutyRoleID:           s.defaults.OnDutyRoleID,
		TicketsCategoryID:      s.defaults.CategoryID,
		ArchiveCategoryID:      s.defaults.ArchiveCategoryID,
		LogChannelID:           s.defaults.LogChannelID,
		AuditLogChannelID:      s.defaults.AuditLogChannelID,
		FallbackPingModerators: s.defaults.FallbackPingModerators,
		TranscriptEnabled:      s.defaults.TranscriptEnabled,
	}, nil
}

// SettingsPatch carries partial updates; nil fields are left unchanged.
type SettingsPatch struct {
	ModeratorRoleIDs       *[]string
	OnDutyRoleID           *string
	TicketsCategoryID      *string
	ArchiveCategoryID      *string
	LogChannelID           *string
	AuditLogChannelID      *string
	FallbackPingModerators *bool
	TranscriptEnabled      *bool
}

// Update applies a patch on top of the effective settings and persists the
// full row, so a guild's first explicit change snapshots the defaults.
func (s *SettingsService) Update(ctx context.Context, guildID string, patch SettingsPatch) (domain.GuildSettings, error) {
	current, err := s.Resolve(ctx, guildID)
	if err != nil {
		return domain.GuildSettings{}, err
	}
	if patch.ModeratorRoleIDs != nil {
		current.ModeratorRoleIDs = *patch.ModeratorRoleIDs
	}
	if patch.OnDutyRoleID != nil {
		current.OnDutyRoleID = *patch.OnDutyRoleID
	}
	if patch.TicketsCategoryID != nil {
		current.TicketsCategoryID = *patch.TicketsCategoryID
	}
	if patch.ArchiveCategoryID != nil {
		current.ArchiveCategoryID = *patch.ArchiveCategoryID
	}
	if patch.LogChannelID != nil {
		current.LogChannelID = *patch.LogChannelID
	}
	if patch.AuditLogChannelID != nil {
		current.AuditLogChannelID = *patch.AuditLogChannelID
	}
	if patch.FallbackPingModerators != nil {
		current.FallbackPingModerators = *patch.FallbackPingModerators
	}
	if patch.TranscriptEnabled != nil {
		current.TranscriptEnabled = *patch.TranscriptEnabled
	}
	if err := s.repo.Upsert(ctx, &current); err != nil {
		return domain.GuildSettings{}, apperrors.NewPersistenceFailure("save guild settings", err)
	}
	return current, nil
}
