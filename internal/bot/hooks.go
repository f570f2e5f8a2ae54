package bot

import (
	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/rs/zerolog/log"
)

// Hooks are the bot's events. Any may be nil.
type Hooks struct {
	OnDisconnected    func()
	OnException       func(err error, note string)
	OnPacketReceived  func(p *packet.Packet)
	OnPacketSent      func(p *packet.Packet)
	OnUnhandledPacket func(p *packet.Packet)
	OnLoginFailed     func(reason string)
}

func (b *Bot) exception(err error, note string) {
	log.Warn().Err(err).Msgf("bot.Bot exception note=%q", note)
	if b.hooks.OnException != nil {
		b.hooks.OnException(err, note)
	}
}

func (b *Bot) packetReceived(p *packet.Packet) {
	if b.hooks.OnPacketReceived != nil {
		b.hooks.OnPacketReceived(p)
	}
}

func (b *Bot) packetSent(p *packet.Packet) {
	if b.hooks.OnPacketSent != nil {
		b.hooks.OnPacketSent(p)
	}
}

func (b *Bot) unhandled(p *packet.Packet) {
	log.Debug().Msgf("bot.Bot unhandled command=%q", p.Command)
	if b.hooks.OnUnhandledPacket != nil {
		b.hooks.OnUnhandledPacket(p)
	}
}

func (b *Bot) loginFailed(reason string) {
	log.Warn().Msgf("bot.Bot login failed reason=%q", reason)
	if b.hooks.OnLoginFailed != nil {
		b.hooks.OnLoginFailed(reason)
	}
}
