// Package plugins runs user extensions against every mapped inbound packet.
package plugins

import (
	"context"
	"strings"

	"github.com/danmuck/palctl/internal/protocol/mapping"
	"github.com/danmuck/palctl/internal/protocol/packets"
)

// Sender is the slice of the bot a plugin may use to answer. Sends do not
// wait for the server's RESPONSE.
type Sender interface {
	SendReply(m *packets.Message, text string) bool
	SendPrivate(userID int, text string) bool
	SendGroup(groupID int, text string) bool
}

type Plugin interface {
	Name() string
	Handle(ctx context.Context, s Sender, pm mapping.PacketMap) error
}

// Restricted plugins only receive messages from authorized users.
type Restricted interface {
	AuthorizedOnly() bool
}

// Func adapts a function to Plugin.
type Func struct {
	ID string
	Fn func(ctx context.Context, s Sender, pm mapping.PacketMap) error
}

func (f Func) Name() string { return f.ID }

func (f Func) Handle(ctx context.Context, s Sender, pm mapping.PacketMap) error {
	return f.Fn(ctx, s, pm)
}

// Command runs Handler for messages whose content starts with Prefix.
// Matching ignores case and leading whitespace; args is the trimmed rest.
type Command struct {
	Prefix     string
	Authorized bool
	Handler    func(ctx context.Context, s Sender, m *packets.Message, args string) error
}

func (c Command) Name() string { return "command:" + c.Prefix }

func (c Command) AuthorizedOnly() bool { return c.Authorized }

func (c Command) Handle(ctx context.Context, s Sender, pm mapping.PacketMap) error {
	m, ok := pm.(*packets.Message)
	if !ok {
		return nil
	}
	args, ok := matchPrefix(m.Content, c.Prefix)
	if !ok {
		return nil
	}
	return c.Handler(ctx, s, m, args)
}

func matchPrefix(content, prefix string) (string, bool) {
	content = strings.TrimLeft(content, " \t\r\n")
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || len(content) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(content[:len(prefix)], prefix) {
		return "", false
	}
	rest := content[len(prefix):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '\n' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
