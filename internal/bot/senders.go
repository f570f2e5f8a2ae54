package bot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/danmuck/palctl/internal/protocol/packets"
	"github.com/danmuck/palctl/internal/protocol/templates"
	"github.com/danmuck/palctl/internal/watcher"
	"github.com/rs/zerolog/log"
)

// SendAwaitResponse writes p and waits for the RESPONSE carrying its
// message id. The watch is registered before the first frame is written.
func (b *Bot) SendAwaitResponse(ctx context.Context, p *packet.Packet) (*packets.Response, error) {
	var id atomic.Int64
	id.Store(packet.NoMessageID)
	pending := watcher.Watch(b.watcher, func(r *packets.Response) bool {
		want := id.Load()
		return want != packet.NoMessageID && r.MessageID == want
	})
	if !b.write(p, id.Store) {
		pending.Cancel()
		return nil, fmt.Errorf("%w: %s", ErrNotDelivered, p.Command)
	}
	return pending.Wait(ctx)
}

// Login connects, sends LOGON, answers the AUTH challenge and waits for the
// balance query that marks a completed logon.
func (b *Bot) Login(ctx context.Context, creds Credentials) (bool, error) {
	if !b.Connect(ctx) {
		return false, ErrConnectFailed
	}
	log.Info().Msgf("bot.Bot login email=%q device=%q session=%s", creds.Email, creds.Device, b.SessionID())

	challenge := b.watcher.WatchCommands(packets.CmdLoginFailed, packets.CmdAuth)
	if !b.Write(templates.Login(templates.LoginOptions{
		Email:      creds.Email,
		Device:     creds.Device,
		SpamFilter: creds.SpamFilter,
	})) {
		challenge.Cancel()
		return false, fmt.Errorf("%w: LOGON", ErrNotDelivered)
	}
	m, err := challenge.Wait(ctx)
	if err != nil {
		return false, err
	}
	var key []byte
	switch pm := m.Packet.(type) {
	case *packets.LoginFailed:
		return false, fmt.Errorf("%w: %s", ErrLoginFailed, pm.Reason)
	case *packets.AuthRequest:
		key = pm.Key
	default:
		return false, fmt.Errorf("%w: %T", ErrUnexpected, m.Packet)
	}

	payload, err := b.auth.GenerateAuth(key, []byte(creds.Password))
	if err != nil {
		return false, fmt.Errorf("bot: generate auth: %w", err)
	}
	status := creds.Status
	if status == packets.StatusOffline {
		status = packets.StatusOnline
	}
	done := b.watcher.WatchCommands(packets.CmdLoginFailed, packets.CmdBalanceQueryResult)
	if !b.Write(templates.Auth(payload, status)) {
		done.Cancel()
		return false, fmt.Errorf("%w: AUTH", ErrNotDelivered)
	}
	m, err = done.Wait(ctx)
	if err != nil {
		return false, err
	}
	if lf, ok := m.Packet.(*packets.LoginFailed); ok {
		return false, fmt.Errorf("%w: %s", ErrLoginFailed, lf.Reason)
	}

	b.mu.Lock()
	b.identity = creds
	b.loggedIn = true
	b.mu.Unlock()
	log.Info().Msgf("bot.Bot logged in email=%q session=%s", creds.Email, b.SessionID())
	return true, nil
}

func (b *Bot) sendText(ctx context.Context, kind packets.MessageKind, id int, text string) (*packets.Response, error) {
	return b.SendAwaitResponse(ctx, templates.TextMessage(kind, id, text))
}

func (b *Bot) Private(ctx context.Context, userID int, text string) (*packets.Response, error) {
	return b.sendText(ctx, packets.Private, userID, text)
}

func (b *Bot) Group(ctx context.Context, groupID int, text string) (*packets.Response, error) {
	return b.sendText(ctx, packets.Group, groupID, text)
}

// Reply answers m in the conversation it came from.
func (b *Bot) Reply(ctx context.Context, m *packets.Message, text string) (*packets.Response, error) {
	return b.sendText(ctx, m.Kind(), m.ReturnAddress(), text)
}

func (b *Bot) SendPrivate(userID int, text string) bool {
	return b.Write(templates.TextMessage(packets.Private, userID, text))
}

func (b *Bot) SendGroup(groupID int, text string) bool {
	return b.Write(templates.TextMessage(packets.Group, groupID, text))
}

func (b *Bot) SendReply(m *packets.Message, text string) bool {
	return b.Write(templates.TextMessage(m.Kind(), m.ReturnAddress(), text))
}

func (b *Bot) PrivateImage(userID int, image []byte) bool {
	return b.Write(templates.Message(packets.Private, packets.DataImage, userID, image))
}

func (b *Bot) GroupImage(groupID int, image []byte) bool {
	return b.Write(templates.Message(packets.Group, packets.DataImage, groupID, image))
}

func (b *Bot) ReplyImage(m *packets.Message, image []byte) bool {
	return b.Write(templates.Message(m.Kind(), packets.DataImage, m.ReturnAddress(), image))
}

func (b *Bot) AdminAction(ctx context.Context, action packets.AdminActionKind, userID, groupID int) (*packets.Response, error) {
	return b.SendAwaitResponse(ctx, templates.AdminAction(action, userID, groupID))
}

func (b *Bot) AddContact(ctx context.Context, userID int, message string) (*packets.Response, error) {
	return b.SendAwaitResponse(ctx, templates.AddContact(userID, message))
}

func (b *Bot) AddContactResponse(ctx context.Context, accept bool, userID int) (*packets.Response, error) {
	return b.SendAwaitResponse(ctx, templates.AddContactResponse(accept, userID))
}

func (b *Bot) CreateGroup(ctx context.Context, name, description, password string) (*packets.Response, error) {
	return b.SendAwaitResponse(ctx, templates.CreateGroup(name, description, password))
}

func (b *Bot) JoinGroup(ctx context.Context, name, password string) (*packets.Response, error) {
	return b.SendAwaitResponse(ctx, templates.JoinGroup(name, password))
}

func (b *Bot) LeaveGroup(ctx context.Context, groupID int) (*packets.Response, error) {
	return b.SendAwaitResponse(ctx, templates.LeaveGroup(groupID))
}

func (b *Bot) UpdateProfile(ctx context.Context, nickname, status string) (*packets.Response, error) {
	return b.SendAwaitResponse(ctx, templates.UpdateProfile(nickname, status))
}

// WatchMessage registers a watch for the next message matching match.
// Register before sending a prompt so the answer cannot be missed.
func (b *Bot) WatchMessage(match func(*packets.Message) bool) *watcher.Pending[*packets.Message] {
	return watcher.Watch(b.watcher, match)
}

// NextMessage waits for the next private message from userID.
func (b *Bot) NextMessage(ctx context.Context, userID int) (*packets.Message, error) {
	return b.WatchMessage(func(m *packets.Message) bool {
		return m.Kind() == packets.Private && m.UserID == userID
	}).Wait(ctx)
}

// NextMessageFrom waits for the next message from the same user in the
// same conversation as m.
func (b *Bot) NextMessageFrom(ctx context.Context, m *packets.Message) (*packets.Message, error) {
	return b.WatchMessage(sameConversation(m)).Wait(ctx)
}

// NextMessageMatching waits for the next message accepted by match.
func (b *Bot) NextMessageMatching(ctx context.Context, match func(*packets.Message) bool) (*packets.Message, error) {
	return b.WatchMessage(match).Wait(ctx)
}

// NextGroupMessage waits for the next message in groupID. A userID of 0
// accepts any sender.
func (b *Bot) NextGroupMessage(ctx context.Context, groupID, userID int) (*packets.Message, error) {
	return b.WatchMessage(func(m *packets.Message) bool {
		return m.Kind() == packets.Group && m.ReturnAddress() == groupID && (userID == 0 || m.UserID == userID)
	}).Wait(ctx)
}

// Confirm replies with prompt and reports whether the answer starts with y.
func (b *Bot) Confirm(ctx context.Context, m *packets.Message, prompt string) (bool, error) {
	pending := b.WatchMessage(sameConversation(m))
	if !b.SendReply(m, prompt) {
		pending.Cancel()
		return false, fmt.Errorf("%w: prompt", ErrNotDelivered)
	}
	answer, err := pending.Wait(ctx)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer.Content)), "y"), nil
}

func sameConversation(m *packets.Message) func(*packets.Message) bool {
	kind, addr, user := m.Kind(), m.ReturnAddress(), m.UserID
	return func(next *packets.Message) bool {
		return next.Kind() == kind && next.ReturnAddress() == addr && next.UserID == user
	}
}
