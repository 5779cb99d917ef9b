package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbox/internal/domain"
	"github.com/spec-kit/ticketbox/internal/repository"
	apperrors "github.com/spec-kit/ticketbox/pkg/util"
)

// DutyService tracks the on-duty moderator roster and renders notification
// mentions with the configured fallback behavior.
type DutyService struct {
	repo   repository.DutyRepository
	logger *zap.Logger
}

// NewDutyService constructs the service.
func NewDutyService(repo repository.DutyRepository, logger *zap.Logger) *DutyService {
	return &DutyService{repo: repo, logger: logger}
}

// SetOnDuty flips a moderator's duty flag.
func (s *DutyService) SetOnDuty(ctx context.Context, guildID, userID string, onDuty bool) error {
	if err := s.repo.SetOnDuty(ctx, guildID, userID, onDuty); err != nil {
		return apperrors.NewPersistenceFailure("update duty status", err)
	}
	s.logger.Info("duty status changed",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Bool("on_duty", onDuty))
	return nil
}

// ListOnDuty returns the user ids currently marked on duty.
func (s *DutyService) ListOnDuty(ctx context.Context, guildID string) ([]string, error) {
	ids, err := s.repo.ListOnDuty(ctx, guildID)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure("list duty status", err)
	}
	return ids, nil
}

// NotifyMentions renders the mention string for ticket pings: on-duty
// moderators when any exist, otherwise the moderator roles when the fallback
// is enabled. A store failure degrades to the fallback rather than blocking
// the ping.
func (s *DutyService) NotifyMentions(ctx context.Context, settings domain.GuildSettings) string {
	onDuty, err := s.repo.ListOnDuty(ctx, settings.GuildID)
	if err != nil {
		s.logger.Warn("duty roster unavailable", zap.String("guild_id", settings.GuildID), zap.Error(err))
	}
	if len(onDuty) > 0 {
		mentions := ""
		for _, id := range onDuty {
			mentions += fmt.Sprintf(" <@%s>", id)
		}
		return mentions
	}
	if !settings.FallbackPingModerators {
		return ""
	}
	mentions := ""
	for _, roleID := range settings.ModeratorRoleIDs {
		mentions += fmt.Sprintf(" <@&%s>", roleID)
	}
	return mentions
}
