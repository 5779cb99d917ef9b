package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbox/internal/chat"
)

// Transport implements chat.ChannelTransport over the Discord REST API.
type Transport struct {
	session   *discordgo.Session
	botUserID string
	logger    *zap.Logger
}

// New authenticates a bot session and resolves its own identity.
func New(token string, logger *zap.Logger) (*Transport, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	me, err := session.User("@me")
	if err != nil {
		return nil, fmt.Errorf("resolve bot user: %w", err)
	}
	logger.Info("discord transport ready", zap.String("bot_user_id", me.ID))
	return &Transport{session: session, botUserID: me.ID, logger: logger}, nil
}

// CreateChannel provisions a guild text channel with its initial overwrites.
func (t *Transport) CreateChannel(ctx context.Context, create chat.ChannelCreate) (string, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(create.Overwrites))
	for _, ow := range create.Overwrites {
		allow, deny := permissionBits(ow.Allow)
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    ow.Target.ID,
			Type:  overwriteType(ow.Target.Kind),
			Allow: allow,
			Deny:  deny,
		})
	}
	channel, err := t.session.GuildChannelCreateComplex(create.GuildID, discordgo.GuildChannelCreateData{
		Name:                 create.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             create.ParentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

// SendMessage posts a message and returns its id.
func (t *Transport) SendMessage(ctx context.Context, channelID string, msg chat.Outbound) (string, error) {
	sent, err := t.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  toEmbeds(msg.Embed),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return sent.ID, nil
}

// EditMessage rewrites an existing message in place.
func (t *Transport) EditMessage(ctx context.Context, channelID, messageID string, msg chat.Outbound) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Content = &msg.Content
	embeds := toEmbeds(msg.Embed)
	edit.Embeds = &embeds
	_, err := t.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

// FetchMessage retrieves one message.
func (t *Transport) FetchMessage(ctx context.Context, channelID, messageID string) (*chat.Message, error) {
	msg, err := t.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	converted := fromMessage(msg)
	return &converted, nil
}

// AttachFile replaces the attachment set on an existing message with the
// uploaded file and returns the CDN URL of the stored artifact.
func (t *Transport) AttachFile(ctx context.Context, channelID, messageID string, file chat.FileUpload) (string, error) {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Files = []*discordgo.File{{
		Name:        file.Name,
		ContentType: file.ContentType,
		Reader:      file.Reader,
	}}
	edit.Attachments = &[]*discordgo.MessageAttachment{}
	updated, err := t.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	if len(updated.Attachments) == 0 {
		return "", fmt.Errorf("attachment missing on edited message %s", messageID)
	}
	return updated.Attachments[0].URL, nil
}

// History returns up to limit messages older than beforeID, newest first.
func (t *Transport) History(ctx context.Context, channelID, beforeID string, limit int) ([]chat.Message, error) {
	msgs, err := t.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, fromMessage(m))
	}
	return out, nil
}

// SetPermissions patches the overwrite for a target, preserving bits the
// update leaves nil by merging with the channel's current overwrite.
func (t *Transport) SetPermissions(ctx context.Context, channelID string, target chat.Target, update chat.PermissionUpdate) error {
	var allow, deny int64
	channel, err := t.session.Channel(channelID, discordgo.WithContext(ctx))
	if err == nil {
		for _, ow := range channel.PermissionOverwrites {
			if ow.ID == target.ID && ow.Type == overwriteType(target.Kind) {
				allow, deny = ow.Allow, ow.Deny
				break
			}
		}
	}
	applyBit(&allow, &deny, update.ViewChannel, discordgo.PermissionViewChannel)
	applyBit(&allow, &deny, update.SendMessages, discordgo.PermissionSendMessages)
	applyBit(&allow, &deny, update.ReadHistory, discordgo.PermissionReadMessageHistory)
	applyBit(&allow, &deny, update.ManageChannel, discordgo.PermissionManageChannels)
	applyBit(&allow, &deny, update.ManageMessages, discordgo.PermissionManageMessages)

	return t.session.ChannelPermissionSet(channelID, target.ID, overwriteType(target.Kind), allow, deny, discordgo.WithContext(ctx))
}

// ClearPermissions deletes the overwrite for a target.
func (t *Transport) ClearPermissions(ctx context.Context, channelID string, target chat.Target) error {
	return t.session.ChannelPermissionDelete(channelID, target.ID, discordgo.WithContext(ctx))
}

// SetChannelParent relocates a channel under the given category.
func (t *Transport) SetChannelParent(ctx context.Context, channelID, parentID string) error {
	_, err := t.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		ParentID: parentID,
	}, discordgo.WithContext(ctx))
	return err
}

// FetchChannel retrieves channel metadata.
func (t *Transport) FetchChannel(ctx context.Context, channelID string) (*chat.Channel, error) {
	channel, err := t.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return &chat.Channel{
		ID:       channel.ID,
		GuildID:  channel.GuildID,
		Category: channel.Type == discordgo.ChannelTypeGuildCategory,
	}, nil
}

// FetchMember resolves a guild member, including the administrator standing
// derived from its roles.
func (t *Transport) FetchMember(ctx context.Context, guildID, userID string) (*chat.Member, error) {
	member, err := t.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	admin := false
	if roles, err := t.session.GuildRoles(guildID, discordgo.WithContext(ctx)); err == nil {
		byID := make(map[string]*discordgo.Role, len(roles))
		for _, role := range roles {
			byID[role.ID] = role
		}
		for _, roleID := range member.Roles {
			if role, ok := byID[roleID]; ok && role.Permissions&discordgo.PermissionAdministrator != 0 {
				admin = true
				break
			}
		}
	}
	username := ""
	if member.User != nil {
		username = member.User.Username
	}
	return &chat.Member{
		UserID:        userID,
		Username:      username,
		RoleIDs:       member.Roles,
		Administrator: admin,
	}, nil
}

// FetchUsername resolves a user's global username.
func (t *Transport) FetchUsername(ctx context.Context, userID string) (string, error) {
	user, err := t.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// EveryoneTarget returns the guild's default role target. On Discord the
// everyone role shares the guild's id.
func (t *Transport) EveryoneTarget(guildID string) chat.Target {
	return chat.RoleTarget(guildID)
}

// BotUserID returns the session's own user id.
func (t *Transport) BotUserID() string {
	return t.botUserID
}

func overwriteType(kind chat.TargetKind) discordgo.PermissionOverwriteType {
	if kind == chat.TargetRole {
		return discordgo.PermissionOverwriteTypeRole
	}
	return discordgo.PermissionOverwriteTypeMember
}

func permissionBits(update chat.PermissionUpdate) (allow, deny int64) {
	applyBit(&allow, &deny, update.ViewChannel, discordgo.PermissionViewChannel)
	applyBit(&allow, &deny, update.SendMessages, discordgo.PermissionSendMessages)
	applyBit(&allow, &deny, update.ReadHistory, discordgo.PermissionReadMessageHistory)
	applyBit(&allow, &deny, update.ManageChannel, discordgo.PermissionManageChannels)
	applyBit(&allow, &deny, update.ManageMessages, discordgo.PermissionManageMessages)
	return allow, deny
}

func applyBit(allow, deny *int64, value *bool, bit int64) {
	if value == nil {
		return
	}
	if *value {
		*allow |= bit
		*deny &^= bit
	} else {
		*deny |= bit
		*allow &^= bit
	}
}

func toEmbeds(embed *chat.Embed) []*discordgo.MessageEmbed {
	if embed == nil {
		return nil
	}
	fields := make([]*discordgo.MessageEmbedField, 0, len(embed.Fields))
	for _, f := range embed.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Fields:      fields,
	}
	if !embed.Timestamp.IsZero() {
		out.Timestamp = embed.Timestamp.UTC().Format(time.RFC3339)
	}
	return []*discordgo.MessageEmbed{out}
}

func fromMessage(m *discordgo.Message) chat.Message {
	authorID, authorName := "", ""
	if m.Author != nil {
		authorID = m.Author.ID
		authorName = m.Author.Username
	}
	urls := make([]string, 0, len(m.Attachments))
	for _, att := range m.Attachments {
		urls = append(urls, att.URL)
	}
	return chat.Message{
		ID:             m.ID,
		ChannelID:      m.ChannelID,
		AuthorID:       authorID,
		AuthorName:     authorName,
		Content:        m.Content,
		Timestamp:      m.Timestamp,
		AttachmentURLs: urls,
	}
}
