package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/danmuck/palctl/internal/plugins"
	"github.com/danmuck/palctl/internal/protocol/compress"
	"github.com/danmuck/palctl/internal/protocol/frame"
	"github.com/danmuck/palctl/internal/protocol/mapping"
	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/danmuck/palctl/internal/protocol/packets"
	"github.com/danmuck/palctl/internal/protocol/templates"
	"github.com/danmuck/palctl/internal/transport"
	"github.com/danmuck/palctl/internal/watcher"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultHost = "im.palringo.com"
	DefaultPort = 12345

	tracerName = "github.com/danmuck/palctl/internal/bot"
)

var (
	ErrConnectFailed = errors.New("bot: connect failed")
	ErrNotDelivered  = errors.New("bot: packet not delivered")
	ErrLoginFailed   = errors.New("bot: login failed")
	ErrUnexpected    = errors.New("bot: unexpected packet")
)

var errConnectionClosed = errors.New("bot: connection closed")

type Config struct {
	Host      string
	Port      int
	Transport transport.Config
	Plugins   plugins.Config

	// Frame bounds the per-connection decoder and reassembler.
	Frame frame.Limits
	// Reassemble joins fragmented inbound packets before mapping.
	Reassemble bool
	// MaxInflatedSize caps decompressed payloads; 0 means unlimited.
	MaxInflatedSize int64

	Authorized []int
	Blocked    []int
}

func DefaultConfig() Config {
	return Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		Transport:       transport.DefaultConfig(),
		Frame:           frame.DefaultLimits(),
		MaxInflatedSize: 8 << 20,
	}
}

// Credentials are the logon parameters.
type Credentials struct {
	Email      string
	Password   string
	Status     packets.OnlineStatus
	Device     packets.Device
	SpamFilter bool
}

type Option func(*Bot)

func WithHooks(h Hooks) Option { return func(b *Bot) { b.hooks = h } }

func WithAuthenticator(a Authenticator) Option { return func(b *Bot) { b.auth = a } }

func WithRegistry(r *mapping.Registry) Option { return func(b *Bot) { b.registry = r } }

func WithDecompressor(d compress.Decompressor) Option { return func(b *Bot) { b.decompressor = d } }

func WithPlugins(p ...plugins.Plugin) Option {
	return func(b *Bot) { b.pending = append(b.pending, p...) }
}

// Bot is one chat session. Nothing it owns is shared between bots.
type Bot struct {
	cfg   Config
	hooks Hooks

	transport    *transport.Client
	encoder      *frame.Encoder
	link         atomic.Pointer[link]
	registry     *mapping.Registry
	decompressor compress.Decompressor
	watcher      *watcher.Watcher
	handlers     *Hub
	plugins      *plugins.Manager
	auth         Authenticator
	tracer       trace.Tracer
	pending      []plugins.Plugin

	writeMu sync.Mutex

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	identity Credentials
	loggedIn bool
}

func New(cfg Config, opts ...Option) (*Bot, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	b := &Bot{
		cfg:    cfg,
		auth:   PlaintextAuth,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = packets.NewRegistry()
	}
	if b.decompressor == nil {
		b.decompressor = compress.Zlib{MaxSize: cfg.MaxInflatedSize}
	}
	b.encoder = frame.NewEncoder(b.exception)
	b.watcher = watcher.New(b.exception)
	b.handlers = NewHub(b.exception)
	b.plugins = plugins.NewManager(cfg.Plugins, plugins.NewAccessList(cfg.Authorized, cfg.Blocked), b.exception)
	b.transport = transport.New(cfg.Transport, transport.Hooks{
		OnException:    b.exception,
		OnConnected:    b.connected,
		OnDisconnected: b.disconnected,
		OnData:         b.onData,
	})
	b.ctx, b.cancel = context.WithCancel(context.Background())

	for _, p := range b.pending {
		if err := b.plugins.Register(p); err != nil {
			return nil, err
		}
	}
	b.pending = nil
	if err := installDefaults(b.handlers); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bot) Handlers() *Hub                      { return b.handlers }
func (b *Bot) Plugins() *plugins.Manager           { return b.plugins }
func (b *Bot) Access() *plugins.AccessList         { return b.plugins.Access() }
func (b *Bot) Watcher() *watcher.Watcher           { return b.watcher }
func (b *Bot) Registry() *mapping.Registry         { return b.registry }
func (b *Bot) Connected() bool                     { return b.transport.Connected() }
func (b *Bot) SessionID() string                   { return b.transport.SessionID() }
func (b *Bot) Transport() *transport.Client        { return b.transport }
func (b *Bot) Decompressor() compress.Decompressor { return b.decompressor }

// LoggedIn reports whether Login completed on the current connection.
func (b *Bot) LoggedIn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loggedIn
}

// Identity returns the credentials of the last successful login with the
// password cleared.
func (b *Bot) Identity() Credentials {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.identity
	id.Password = ""
	return id
}

// Connect opens a fresh connection with fresh decoder and watcher state.
func (b *Bot) Connect(ctx context.Context) bool {
	if b.transport.Connected() {
		return true
	}
	b.watcher.Reset()
	b.mu.Lock()
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.loggedIn = false
	b.mu.Unlock()
	return b.transport.Connect(ctx, b.cfg.Host, b.cfg.Port)
}

// connected installs inbound state for session before its read loop starts.
func (b *Bot) connected(session string) {
	l := &link{session: session, decoder: frame.NewDecoder(b.cfg.Frame)}
	if b.cfg.Reassemble {
		l.reassembler = frame.NewReassembler(b.cfg.Frame)
	}
	b.link.Store(l)
}

func (b *Bot) sessionContext() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

func (b *Bot) disconnected() {
	b.mu.Lock()
	cancel := b.cancel
	b.loggedIn = false
	b.mu.Unlock()
	cancel()
	b.watcher.Close(errConnectionClosed)
	if b.hooks.OnDisconnected != nil {
		b.hooks.OnDisconnected()
	}
}

// Write encodes p and writes every frame. It returns false when not
// connected or when any frame fails to encode or write.
func (b *Bot) Write(p *packet.Packet) bool {
	return b.write(p, nil)
}

// WriteMap unmaps pm through the registry and writes it.
func (b *Bot) WriteMap(pm mapping.PacketMap) bool {
	p, err := b.registry.Unmap(pm)
	if err != nil {
		b.exception(err, "unmapping "+pm.Command())
		return false
	}
	return b.Write(p)
}

// write calls beforeFirst with the assigned message id before the first
// frame reaches the wire.
func (b *Bot) write(p *packet.Packet, beforeFirst func(id int64)) bool {
	if !b.transport.Connected() {
		return false
	}
	b.writeMu.Lock()
	ok, first := true, true
	for f := range b.encoder.Encode(p) {
		if first {
			first = false
			if beforeFirst != nil {
				beforeFirst(p.MessageID())
			}
		}
		if f.Failed() || !b.transport.WriteBytes(f.Data) {
			ok = false
			break
		}
	}
	b.writeMu.Unlock()
	if ok {
		b.packetSent(p)
	}
	return ok
}

// Disconnect says BYE when connected and closes the transport.
func (b *Bot) Disconnect() {
	if b.transport.Connected() {
		b.Write(templates.Bye())
	}
	b.transport.Disconnect()
}

// Close disconnects and stops the plugin workers.
func (b *Bot) Close() {
	b.Disconnect()
	b.plugins.Close()
}
