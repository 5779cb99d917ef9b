package chat

import (
	"context"
	"io"
	"time"
)

// TargetKind distinguishes user and role permission targets.
type TargetKind string

const (
	TargetUser TargetKind = "user"
	TargetRole TargetKind = "role"
)

// Target identifies the subject of a permission overwrite. EveryoneRole
// addresses the platform's built-in default role for the guild.
type Target struct {
	ID   string
	Kind TargetKind
}

// UserTarget builds a user-scoped target.
func UserTarget(id string) Target { return Target{ID: id, Kind: TargetUser} }

// RoleTarget builds a role-scoped target.
func RoleTarget(id string) Target { return Target{ID: id, Kind: TargetRole} }

// PermissionUpdate is a tri-state patch of channel permissions for one target.
// Nil fields are left untouched on the existing overwrite.
type PermissionUpdate struct {
	ViewChannel    *bool
	SendMessages   *bool
	ReadHistory    *bool
	ManageChannel  *bool
	ManageMessages *bool
}

// Overwrite is a full allow/deny entry applied at channel creation.
type Overwrite struct {
	Target Target
	Allow  PermissionUpdate
}

// ChannelCreate describes a new ticket channel.
type ChannelCreate struct {
	GuildID    string
	Name       string
	ParentID   string
	Overwrites []Overwrite
}

// Channel is the slice of channel metadata the core needs.
type Channel struct {
	ID       string
	GuildID  string
	Category bool
}

// EmbedField is one name/value pair on a rich message.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a platform-neutral rich message body.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
	Timestamp   time.Time
}

// Outbound is the payload for sending or editing a message.
type Outbound struct {
	Content string
	Embed   *Embed
}

// FileUpload is an attachment added to an existing message.
type FileUpload struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Message is a fetched channel message.
type Message struct {
	ID             string
	ChannelID      string
	AuthorID       string
	AuthorName     string
	Content        string
	Timestamp      time.Time
	AttachmentURLs []string
}

// Member is a guild member with its role memberships resolved.
type Member struct {
	UserID        string
	Username      string
	RoleIDs       []string
	Administrator bool
}

// HasRole reports whether the member holds any of the given role ids.
func (m *Member) HasRole(roleIDs ...string) bool {
	for _, want := range roleIDs {
		for _, have := range m.RoleIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ChannelTransport is the interface to the chat platform (Discord in
// production). The platform API is remote and unreliable; callers decide per
// operation whether a failure is fatal or best-effort.
type ChannelTransport interface {
	// CreateChannel provisions a text channel and returns its id.
	CreateChannel(ctx context.Context, create ChannelCreate) (string, error)
	// SendMessage posts a message and returns its id.
	SendMessage(ctx context.Context, channelID string, msg Outbound) (string, error)
	// EditMessage rewrites an existing message in place.
	EditMessage(ctx context.Context, channelID, messageID string, msg Outbound) error
	// FetchMessage retrieves a single message.
	FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error)
	// AttachFile adds (or replaces) a file on an existing message and returns
	// a durable URL for the stored artifact.
	AttachFile(ctx context.Context, channelID, messageID string, file FileUpload) (string, error)
	// History returns up to limit messages older than beforeID, newest first.
	// Empty beforeID starts from the most recent message.
	History(ctx context.Context, channelID, beforeID string, limit int) ([]Message, error)
	// SetPermissions patches the permission overwrite for a target.
	SetPermissions(ctx context.Context, channelID string, target Target, update PermissionUpdate) error
	// ClearPermissions removes the permission overwrite for a target entirely.
	ClearPermissions(ctx context.Context, channelID string, target Target) error
	// SetChannelParent relocates a channel under a category.
	SetChannelParent(ctx context.Context, channelID, parentID string) error
	// FetchChannel retrieves channel metadata.
	FetchChannel(ctx context.Context, channelID string) (*Channel, error)
	// FetchMember resolves a guild member with roles and admin standing.
	FetchMember(ctx context.Context, guildID, userID string) (*Member, error)
	// FetchUsername resolves a user's global display name.
	FetchUsername(ctx context.Context, userID string) (string, error)
	// EveryoneTarget returns the default-role target for a guild.
	EveryoneTarget(guildID string) Target
	// BotUserID is the transport's own identity.
	BotUserID() string
}

// BoolPtr is a convenience for building PermissionUpdate patches.
func BoolPtr(v bool) *bool { return &v }
