package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketbox/internal/chat"
	"github.com/spec-kit/ticketbox/internal/domain"
)

// ApplyOutcome classifies the result of one permission operation against the
// chat platform.
type ApplyOutcome string

const (
	// OutcomeApplied means the platform accepted the change.
	OutcomeApplied ApplyOutcome = "applied"
	// OutcomeSkipped means there was nothing to do (no archive category
	// configured, target already absent).
	OutcomeSkipped ApplyOutcome = "skipped"
	// OutcomeFailed means the platform call failed; the failure is logged and
	// never fatal to the enclosing transition.
	OutcomeFailed ApplyOutcome = "failed"
)

// ApplyResult records the outcome of one best-effort permission operation.
type ApplyResult struct {
	Target  chat.Target
	Op      string
	Outcome ApplyOutcome
	Err     error
}

// AccessService translates ticket states into channel-permission changes.
// Every operation is idempotent and best-effort: transport failures are
// captured in the result, logged, and swallowed, so a single missing
// permission entry never blocks a ticket's forward progress.
type AccessService struct {
	transport chat.ChannelTransport
	logger    *zap.Logger
}

// NewAccessService constructs the service.
func NewAccessService(transport chat.ChannelTransport, logger *zap.Logger) *AccessService {
	return &AccessService{transport: transport, logger: logger}
}

// GrantMemberAccess gives a user view, send, and history on the channel.
func (s *AccessService) GrantMemberAccess(ctx context.Context, channelID, userID string) ApplyResult {
	return s.set(ctx, channelID, chat.UserTarget(userID), "grant_member_access", chat.PermissionUpdate{
		ViewChannel:  chat.BoolPtr(true),
		SendMessages: chat.BoolPtr(true),
		ReadHistory:  chat.BoolPtr(true),
	})
}

// LockMemberSend revokes a user's send right while retaining view.
func (s *AccessService) LockMemberSend(ctx context.Context, channelID, userID string) ApplyResult {
	return s.set(ctx, channelID, chat.UserTarget(userID), "lock_member_send", chat.PermissionUpdate{
		ViewChannel:  chat.BoolPtr(true),
		SendMessages: chat.BoolPtr(false),
	})
}

// UnlockMemberSend restores a user's view and send rights.
func (s *AccessService) UnlockMemberSend(ctx context.Context, channelID, userID string) ApplyResult {
	return s.set(ctx, channelID, chat.UserTarget(userID), "unlock_member_send", chat.PermissionUpdate{
		ViewChannel:  chat.BoolPtr(true),
		SendMessages: chat.BoolPtr(true),
	})
}

// ClearMemberOverwrite removes a user's individual overwrite entirely.
func (s *AccessService) ClearMemberOverwrite(ctx context.Context, channelID, userID string) ApplyResult {
	target := chat.UserTarget(userID)
	result := ApplyResult{Target: target, Op: "clear_member_overwrite", Outcome: OutcomeApplied}
	if err := s.transport.ClearPermissions(ctx, channelID, target); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		s.logger.Warn("permission clear failed",
			zap.String("channel_id", channelID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
	return result
}

// ReadOnlyAll revokes send on the default role and on every moderator role,
// leaving the channel fully read-only.
func (s *AccessService) ReadOnlyAll(ctx context.Context, guildID, channelID string, settings domain.GuildSettings) []ApplyResult {
	lock := chat.PermissionUpdate{SendMessages: chat.BoolPtr(false)}
	results := []ApplyResult{
		s.set(ctx, channelID, s.transport.EveryoneTarget(guildID), "read_only_all", lock),
	}
	for _, roleID := range settings.ModeratorRoleIDs {
		results = append(results, s.set(ctx, channelID, chat.RoleTarget(roleID), "read_only_all", lock))
	}
	return results
}

// OpenFor restores view and send for the given user and send for moderator
// roles; used when reopening a ticket.
func (s *AccessService) OpenFor(ctx context.Context, channelID, userID string, settings domain.GuildSettings) []ApplyResult {
	results := []ApplyResult{
		s.set(ctx, channelID, chat.UserTarget(userID), "open_for", chat.PermissionUpdate{
			ViewChannel:  chat.BoolPtr(true),
			SendMessages: chat.BoolPtr(true),
		}),
	}
	for _, roleID := range settings.ModeratorRoleIDs {
		results = append(results, s.set(ctx, channelID, chat.RoleTarget(roleID), "open_for", chat.PermissionUpdate{
			SendMessages: chat.BoolPtr(true),
		}))
	}
	return results
}

// MoveToArchive relocates the channel under the archive category. No-op when
// no category is configured or the configured id is not a category; a failed
// relocation is logged and never fatal.
func (s *AccessService) MoveToArchive(ctx context.Context, channelID string, settings domain.GuildSettings) ApplyResult {
	result := ApplyResult{Op: "move_to_archive", Outcome: OutcomeApplied}
	if settings.ArchiveCategoryID == "" {
		result.Outcome = OutcomeSkipped
		return result
	}
	parent, err := s.transport.FetchChannel(ctx, settings.ArchiveCategoryID)
	if err != nil || !parent.Category {
		result.Outcome = OutcomeSkipped
		s.logger.Warn("archive category not usable",
			zap.String("category_id", settings.ArchiveCategoryID),
			zap.Error(err))
		return result
	}
	if err := s.transport.SetChannelParent(ctx, channelID, settings.ArchiveCategoryID); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		s.logger.Warn("archive relocation failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
	}
	return result
}

// TicketOverwrites builds the baseline overwrite set for a new ticket channel:
// default role hidden, moderator roles and the bot fully enabled, and the
// opened-for user granted view, send, and history.
func (s *AccessService) TicketOverwrites(guildID, memberID string, settings domain.GuildSettings) []chat.Overwrite {
	overwrites := []chat.Overwrite{
		{
			Target: s.transport.EveryoneTarget(guildID),
			Allow:  chat.PermissionUpdate{ViewChannel: chat.BoolPtr(false)},
		},
	}
	for _, roleID := range settings.ModeratorRoleIDs {
		overwrites = append(overwrites, chat.Overwrite{
			Target: chat.RoleTarget(roleID),
			Allow: chat.PermissionUpdate{
				ViewChannel:    chat.BoolPtr(true),
				SendMessages:   chat.BoolPtr(true),
				ReadHistory:    chat.BoolPtr(true),
				ManageChannel:  chat.BoolPtr(true),
				ManageMessages: chat.BoolPtr(true),
			},
		})
	}
	overwrites = append(overwrites,
		chat.Overwrite{
			Target: chat.UserTarget(memberID),
			Allow: chat.PermissionUpdate{
				ViewChannel:  chat.BoolPtr(true),
				SendMessages: chat.BoolPtr(true),
				ReadHistory:  chat.BoolPtr(true),
			},
		},
		chat.Overwrite{
			Target: chat.UserTarget(s.transport.BotUserID()),
			Allow: chat.PermissionUpdate{
				ViewChannel:    chat.BoolPtr(true),
				SendMessages:   chat.BoolPtr(true),
				ReadHistory:    chat.BoolPtr(true),
				ManageChannel:  chat.BoolPtr(true),
				ManageMessages: chat.BoolPtr(true),
			},
		},
	)
	return overwrites
}

func (s *AccessService) set(ctx context.Context, channelID string, target chat.Target, op string, update chat.PermissionUpdate) ApplyResult {
	result := ApplyResult{Target: target, Op: op, Outcome: OutcomeApplied}
	if err := s.transport.SetPermissions(ctx, channelID, target, update); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		s.logger.Warn("permission update failed",
			zap.String("channel_id", channelID),
			zap.String("op", op),
			zap.String("target", target.ID),
			zap.Error(err))
	}
	return result
}
