package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/palctl/internal/observability"
	"github.com/danmuck/palctl/internal/protocol/mapping"
	"github.com/danmuck/palctl/internal/protocol/packets"
	"github.com/danmuck/palctl/internal/protocol/templates"
	"github.com/rs/zerolog/log"
)

var ErrDuplicateHandler = errors.New("bot: duplicate handler")

// HandlerFunc handles one mapped packet.
type HandlerFunc func(ctx context.Context, b *Bot, pm mapping.PacketMap) error

type namedHandler struct {
	name string
	fn   HandlerFunc
}

// Hub holds per-command packet handlers.
type Hub struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	onError  func(err error, note string)
}

func NewHub(onError func(err error, note string)) *Hub {
	return &Hub{handlers: make(map[string][]namedHandler), onError: onError}
}

// Add registers fn for command under name. Names are unique per command.
func (h *Hub) Add(command, name string, fn HandlerFunc) error {
	key := strings.ToUpper(strings.TrimSpace(command))
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.handlers[key] {
		if existing.name == name {
			return fmt.Errorf("%w: %s for %s", ErrDuplicateHandler, name, key)
		}
	}
	h.handlers[key] = append(h.handlers[key], namedHandler{name: name, fn: fn})
	return nil
}

// Remove drops the named handler for command.
func (h *Hub) Remove(command, name string) bool {
	key := strings.ToUpper(strings.TrimSpace(command))
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.handlers[key]
	for i, existing := range list {
		if existing.name == name {
			h.handlers[key] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Names lists the handlers registered for command.
func (h *Hub) Names(command string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.handlers[strings.ToUpper(command)]
	out := make([]string, 0, len(list))
	for _, nh := range list {
		out = append(out, nh.name)
	}
	return out
}

// Commands lists every command with at least one handler, sorted.
func (h *Hub) Commands() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.handlers))
	for cmd, list := range h.handlers {
		if len(list) > 0 {
			out = append(out, cmd)
		}
	}
	sort.Strings(out)
	return out
}

// Handle registers a typed handler on the command T declares.
// T must be a pointer variant such as *packets.Message.
func Handle[T mapping.PacketMap](h *Hub, name string, fn func(ctx context.Context, b *Bot, pm T) error) error {
	var zero T
	return h.Add(zero.Command(), name, func(ctx context.Context, b *Bot, pm mapping.PacketMap) error {
		v, ok := pm.(T)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnexpected, pm)
		}
		return fn(ctx, b, v)
	})
}

func (h *Hub) process(ctx context.Context, b *Bot, pm mapping.PacketMap) {
	cmd := strings.ToUpper(pm.Command())
	h.mu.RLock()
	list := append([]namedHandler(nil), h.handlers[cmd]...)
	h.mu.RUnlock()

	for _, nh := range list {
		h.run(ctx, b, pm, cmd, nh)
	}
}

func (h *Hub) run(ctx context.Context, b *Bot, pm mapping.PacketMap, cmd string, nh namedHandler) {
	defer func() {
		if r := recover(); r != nil {
			h.report(fmt.Errorf("bot: handler panic: %v", r), cmd, nh.name)
		}
	}()
	if err := nh.fn(ctx, b, pm); err != nil {
		h.report(err, cmd, nh.name)
	}
}

func (h *Hub) report(err error, cmd, name string) {
	observability.RecordHandlerError("handler", cmd)
	if h.onError != nil {
		h.onError(err, fmt.Sprintf("error processing handler %s for %s", name, cmd))
	}
}

func installDefaults(h *Hub) error {
	return errors.Join(
		Handle(h, "default.ping", func(ctx context.Context, b *Bot, _ *packets.PingRequest) error {
			if !b.Write(templates.Ping()) {
				return fmt.Errorf("%w: ping reply", ErrNotDelivered)
			}
			return nil
		}),
		Handle(h, "default.throttle", func(ctx context.Context, b *Bot, t *packets.Throttle) error {
			log.Warn().Msgf("bot.Bot throttled duration=%d reason=%q", t.Duration, t.Reason)
			return nil
		}),
		Handle(h, "default.admin", func(ctx context.Context, b *Bot, a *packets.AdminAction) error {
			log.Info().Msgf("bot.Bot admin action %s", a)
			return nil
		}),
		Handle(h, "default.login_failed", func(ctx context.Context, b *Bot, lf *packets.LoginFailed) error {
			b.loginFailed(lf.Reason)
			return nil
		}),
	)
}
