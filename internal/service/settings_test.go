package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestResolveFallsBackToDefaults(t *testing.T) {
	settings := NewSettingsService(newMemSettingsRepo(), testTicketsConfig())

	resolved, err := settings.Resolve(context.Background(), testGuild)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.GuildID != testGuild {
		t.Errorf("guild id = %q", resolved.GuildID)
	}
	if resolved.AuditLogChannelID != auditChannel {
		t.Errorf("audit channel = %q, want default %q", resolved.AuditLogChannelID, auditChannel)
	}
	if len(resolved.ModeratorRoleIDs) != 1 || resolved.ModeratorRoleIDs[0] != modRole {
		t.Errorf("moderator roles = %v, want defaults", resolved.ModeratorRoleIDs)
	}
}

func TestUpdateSnapshotsDefaultsAndAppliesPatch(t *testing.T) {
	repo := newMemSettingsRepo()
	settings := NewSettingsService(repo, testTicketsConfig())

	newLog := "chan-other-log"
	disabled := false
	updated, err := settings.Update(context.Background(), testGuild, SettingsPatch{
		LogChannelID:      &newLog,
		TranscriptEnabled: &disabled,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.LogChannelID != newLog {
		t.Errorf("log channel = %q, want patched %q", updated.LogChannelID, newLog)
	}
	if updated.TranscriptEnabled {
		t.Error("transcript flag not patched")
	}
	// Untouched fields keep the defaults they were snapshot from.
	if updated.AuditLogChannelID != auditChannel {
		t.Errorf("audit channel = %q, want retained default", updated.AuditLogChannelID)
	}

	resolved, err := settings.Resolve(context.Background(), testGuild)
	if err != nil {
		t.Fatalf("resolve after update: %v", err)
	}
	if resolved.LogChannelID != newLog || resolved.TranscriptEnabled {
		t.Error("updated settings not persisted")
	}
}

func TestNotifyMentionsPrefersOnDutyRoster(t *testing.T) {
	repo := newMemDutyRepo()
	duty := NewDutyService(repo, zap.NewNop())
	ctx := context.Background()

	settings := testGuildSettings()
	settings.FallbackPingModerators = true

	// Nobody on duty: fall back to role pings.
	if got := duty.NotifyMentions(ctx, settings); got != " <@&"+modRole+">" {
		t.Errorf("fallback mentions = %q", got)
	}

	if err := duty.SetOnDuty(ctx, testGuild, moderatorUser, true); err != nil {
		t.Fatalf("set on duty: %v", err)
	}
	if got := duty.NotifyMentions(ctx, settings); got != " <@"+moderatorUser+">" {
		t.Errorf("on-duty mentions = %q", got)
	}

	if err := duty.SetOnDuty(ctx, testGuild, moderatorUser, false); err != nil {
		t.Fatalf("set off duty: %v", err)
	}
	if got := duty.NotifyMentions(ctx, settings); got != " <@&"+modRole+">" {
		t.Errorf("mentions after going off duty = %q", got)
	}
}

func TestNotifyMentionsEmptyWithoutFallback(t *testing.T) {
	duty := NewDutyService(newMemDutyRepo(), zap.NewNop())
	settings := testGuildSettings()
	settings.FallbackPingModerators = false

	if got := duty.NotifyMentions(context.Background(), settings); got != "" {
		t.Errorf("mentions = %q, want empty", got)
	}
}
