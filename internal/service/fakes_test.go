package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketbox/internal/chat"
	"github.com/spec-kit/ticketbox/internal/domain"
)

// permCall records one permission operation issued to the fake transport.
type permCall struct {
	ChannelID string
	Target    chat.Target
	Update    chat.PermissionUpdate
	Cleared   bool
}

// fakeTransport is an in-memory chat.ChannelTransport. Operations can be made
// to fail by name via failOn.
type fakeTransport struct {
	mu sync.Mutex

	nextID   int
	channels map[string]*chat.Channel
	messages map[string][]chat.Message
	embeds   map[string]*chat.Embed
	parents  map[string]string
	members  map[string]*chat.Member
	names    map[string]string
	perms    []permCall
	uploads  []string
	failOn   map[string]error
	botID    string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		channels: make(map[string]*chat.Channel),
		messages: make(map[string][]chat.Message),
		embeds:   make(map[string]*chat.Embed),
		parents:  make(map[string]string),
		members:  make(map[string]*chat.Member),
		names:    make(map[string]string),
		failOn:   make(map[string]error),
		botID:    "bot-1",
	}
}

func (f *fakeTransport) fail(op string) error {
	return f.failOn[op]
}

func (f *fakeTransport) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeTransport) addChannel(id, guildID string, category bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = &chat.Channel{ID: id, GuildID: guildID, Category: category}
}

func (f *fakeTransport) addMember(guildID string, member *chat.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[guildID+"/"+member.UserID] = member
	f.names[member.UserID] = member.Username
}

// seedHistory installs chronological messages for History walks.
func (f *fakeTransport) seedHistory(channelID string, msgs []chat.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channelID] = append([]chat.Message{}, msgs...)
}

func (f *fakeTransport) permCalls(channelID string) []permCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]permCall, 0)
	for _, call := range f.perms {
		if call.ChannelID == channelID {
			out = append(out, call)
		}
	}
	return out
}

func (f *fakeTransport) clearedTargets(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0)
	for _, call := range f.perms {
		if call.ChannelID == channelID && call.Cleared {
			out = append(out, call.Target.ID)
		}
	}
	sort.Strings(out)
	return out
}

func (f *fakeTransport) CreateChannel(ctx context.Context, create chat.ChannelCreate) (string, error) {
	if err := f.fail("CreateChannel"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID("chan")
	f.channels[id] = &chat.Channel{ID: id, GuildID: create.GuildID}
	if create.ParentID != "" {
		f.parents[id] = create.ParentID
	}
	return id, nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, channelID string, msg chat.Outbound) (string, error) {
	if err := f.fail("SendMessage"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID("msg")
	f.messages[channelID] = append(f.messages[channelID], chat.Message{
		ID:        id,
		ChannelID: channelID,
		AuthorID:  f.botID,
		Content:   msg.Content,
		Timestamp: time.Now(),
	})
	f.embeds[id] = msg.Embed
	return id, nil
}

func (f *fakeTransport) EditMessage(ctx context.Context, channelID, messageID string, msg chat.Outbound) error {
	if err := f.fail("EditMessage"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.messages[channelID] {
		if existing.ID == messageID {
			f.messages[channelID][i].Content = msg.Content
			f.embeds[messageID] = msg.Embed
			return nil
		}
	}
	return fmt.Errorf("message %s not found", messageID)
}

func (f *fakeTransport) FetchMessage(ctx context.Context, channelID, messageID string) (*chat.Message, error) {
	if err := f.fail("FetchMessage"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages[channelID] {
		if f.messages[channelID][i].ID == messageID {
			msg := f.messages[channelID][i]
			return &msg, nil
		}
	}
	return nil, fmt.Errorf("message %s not found", messageID)
}

func (f *fakeTransport) AttachFile(ctx context.Context, channelID, messageID string, file chat.FileUpload) (string, error) {
	if err := f.fail("AttachFile"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, file.Name)
	return "https://files.example/" + file.Name, nil
}

func (f *fakeTransport) History(ctx context.Context, channelID, beforeID string, limit int) ([]chat.Message, error) {
	if err := f.fail("History"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.messages[channelID]
	end := len(stored)
	if beforeID != "" {
		end = 0
		for i := range stored {
			if stored[i].ID == beforeID {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	// Newest first, as the platform returns them.
	out := make([]chat.Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

func (f *fakeTransport) SetPermissions(ctx context.Context, channelID string, target chat.Target, update chat.PermissionUpdate) error {
	if err := f.fail("SetPermissions"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perms = append(f.perms, permCall{ChannelID: channelID, Target: target, Update: update})
	return nil
}

func (f *fakeTransport) ClearPermissions(ctx context.Context, channelID string, target chat.Target) error {
	if err := f.fail("ClearPermissions"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perms = append(f.perms, permCall{ChannelID: channelID, Target: target, Cleared: true})
	return nil
}

func (f *fakeTransport) SetChannelParent(ctx context.Context, channelID, parentID string) error {
	if err := f.fail("SetChannelParent"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parents[channelID] = parentID
	return nil
}

func (f *fakeTransport) FetchChannel(ctx context.Context, channelID string) (*chat.Channel, error) {
	if err := f.fail("FetchChannel"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("channel %s not found", channelID)
	}
	copied := *ch
	return &copied, nil
}

func (f *fakeTransport) FetchMember(ctx context.Context, guildID, userID string) (*chat.Member, error) {
	if err := f.fail("FetchMember"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.members[guildID+"/"+userID]
	if !ok {
		return nil, fmt.Errorf("member %s not found", userID)
	}
	copied := *member
	return &copied, nil
}

func (f *fakeTransport) FetchUsername(ctx context.Context, userID string) (string, error) {
	if err := f.fail("FetchUsername"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[userID]
	if !ok {
		return "", fmt.Errorf("user %s not found", userID)
	}
	return name, nil
}

func (f *fakeTransport) EveryoneTarget(guildID string) chat.Target {
	return chat.RoleTarget(guildID)
}

func (f *fakeTransport) BotUserID() string {
	return f.botID
}

// memTicketRepo is an in-memory repository.TicketRepository.
type memTicketRepo struct {
	mu      sync.Mutex
	rows    map[string]*domain.Ticket
	failOn  map[string]error
	inserts int
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{
		rows:   make(map[string]*domain.Ticket),
		failOn: make(map[string]error),
	}
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	copied := *t
	copied.Participants = append([]string{}, t.Participants...)
	return &copied
}

func (r *memTicketRepo) Insert(ctx context.Context, ticket *domain.Ticket) error {
	if err := r.failOn["Insert"]; err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.rows[ticket.ID] = cloneTicket(ticket)
	r.inserts++
	return nil
}

func (r *memTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := r.failOn["GetByID"]; err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(row), nil
}

func (r *memTicketRepo) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	if err := r.failOn["GetByChannel"]; err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ChannelID == channelID {
			return cloneTicket(row), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTicketRepo) ListByGuild(ctx context.Context, guildID string, limit, offset int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, 0)
	for _, row := range r.rows {
		if row.GuildID == guildID {
			out = append(out, *cloneTicket(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memTicketRepo) update(id string, fn func(*domain.Ticket)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(row)
	row.UpdatedAt = time.Now()
	return nil
}

func (r *memTicketRepo) SetState(ctx context.Context, id string, state domain.TicketState) error {
	if err := r.failOn["SetState"]; err != nil {
		return err
	}
	now := time.Now()
	return r.update(id, func(t *domain.Ticket) {
		t.State = state
		switch state {
		case domain.TicketStateClosed:
			t.ClosedAt = &now
		case domain.TicketStateArchived:
			t.ArchivedAt = &now
		}
	})
}

func (r *memTicketRepo) WriteClosedBy(ctx context.Context, id, userID string) error {
	return r.update(id, func(t *domain.Ticket) { t.ClosedBy = &userID })
}

func (r *memTicketRepo) WriteArchivedBy(ctx context.Context, id, userID string) error {
	return r.update(id, func(t *domain.Ticket) { t.ArchivedBy = &userID })
}

func (r *memTicketRepo) WriteParticipants(ctx context.Context, id string, participants []string) error {
	if err := r.failOn["WriteParticipants"]; err != nil {
		return err
	}
	return r.update(id, func(t *domain.Ticket) {
		t.Participants = append([]string{}, participants...)
	})
}

func (r *memTicketRepo) WriteHeaderMessageID(ctx context.Context, id, messageID string) error {
	return r.update(id, func(t *domain.Ticket) { t.HeaderMessageID = &messageID })
}

func (r *memTicketRepo) WriteAuditMessageID(ctx context.Context, id, messageID string) error {
	return r.update(id, func(t *domain.Ticket) { t.AuditMessageID = &messageID })
}

func (r *memTicketRepo) WriteTranscriptURL(ctx context.Context, id string, url *string) error {
	return r.update(id, func(t *domain.Ticket) { t.TranscriptURL = url })
}

// memSettingsRepo is an in-memory repository.SettingsRepository.
type memSettingsRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.GuildSettings
}

func newMemSettingsRepo() *memSettingsRepo {
	return &memSettingsRepo{rows: make(map[string]*domain.GuildSettings)}
}

func (r *memSettingsRepo) Get(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[guildID]
	if !ok {
		return nil, nil
	}
	copied := *row
	copied.ModeratorRoleIDs = append([]string{}, row.ModeratorRoleIDs...)
	return &copied, nil
}

func (r *memSettingsRepo) Upsert(ctx context.Context, settings *domain.GuildSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *settings
	copied.ModeratorRoleIDs = append([]string{}, settings.ModeratorRoleIDs...)
	r.rows[settings.GuildID] = &copied
	return nil
}

// memDutyRepo is an in-memory repository.DutyRepository.
type memDutyRepo struct {
	mu    sync.Mutex
	state map[string][]string
}

func newMemDutyRepo() *memDutyRepo {
	return &memDutyRepo{state: make(map[string][]string)}
}

func (r *memDutyRepo) SetOnDuty(ctx context.Context, guildID, userID string, onDuty bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.state[guildID]
	filtered := make([]string, 0, len(current))
	for _, id := range current {
		if id != userID {
			filtered = append(filtered, id)
		}
	}
	if onDuty {
		filtered = append(filtered, userID)
	}
	r.state[guildID] = filtered
	return nil
}

func (r *memDutyRepo) ListOnDuty(ctx context.Context, guildID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.state[guildID]...), nil
}
