package plugins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/palctl/internal/observability"
	"github.com/danmuck/palctl/internal/protocol/mapping"
	"github.com/danmuck/palctl/internal/protocol/packets"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyName       = errors.New("plugins: plugin name required")
	ErrDuplicatePlugin = errors.New("plugins: duplicate plugin")
	ErrQueueFull       = errors.New("plugins: worker queue full")
)

// Config sizes the worker pool. Workers == 0 runs plugins inline.
type Config struct {
	Workers       int
	QueueSize     int
	HandleTimeout time.Duration
}

type job struct {
	ctx    context.Context
	plugin Plugin
	sender Sender
	packet mapping.PacketMap
}

type Manager struct {
	cfg     Config
	access  *AccessList
	onError func(err error, note string)

	mu      sync.RWMutex
	plugins []Plugin

	queue    chan job
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewManager(cfg Config, access *AccessList, onError func(err error, note string)) *Manager {
	if access == nil {
		access = NewAccessList(nil, nil)
	}
	if cfg.Workers > 0 && cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	m := &Manager{
		cfg:     cfg,
		access:  access,
		onError: onError,
		stop:    make(chan struct{}),
	}
	if cfg.Workers > 0 {
		m.queue = make(chan job, cfg.QueueSize)
		for i := 0; i < cfg.Workers; i++ {
			m.wg.Add(1)
			go m.worker()
		}
	}
	return m
}

func (m *Manager) Access() *AccessList { return m.access }

func (m *Manager) Register(p Plugin) error {
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return ErrEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.plugins {
		if existing.Name() == name {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
		}
	}
	m.plugins = append(m.plugins, p)
	return nil
}

// Names lists registered plugins in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p.Name())
	}
	return out
}

// Dispatch offers pm to every plugin allowed to see it.
func (m *Manager) Dispatch(ctx context.Context, s Sender, pm mapping.PacketMap) {
	var userID int
	msg, isMessage := pm.(*packets.Message)
	if isMessage {
		userID = msg.UserID
		if m.access.IsBlocked(userID) {
			log.Debug().Msgf("plugins.Manager skip blocked user=%d", userID)
			return
		}
	}

	m.mu.RLock()
	targets := make([]Plugin, len(m.plugins))
	copy(targets, m.plugins)
	m.mu.RUnlock()

	for _, p := range targets {
		if r, ok := p.(Restricted); ok && r.AuthorizedOnly() {
			if !isMessage || !m.access.IsAuthorized(userID) {
				continue
			}
		}
		j := job{ctx: ctx, plugin: p, sender: s, packet: pm}
		if m.queue == nil {
			m.run(j)
			continue
		}
		m.enqueue(j)
	}
}

func (m *Manager) enqueue(j job) {
	select {
	case <-m.stop:
		return
	default:
	}
	select {
	case m.queue <- j:
	default:
		m.report(fmt.Errorf("%w: %s", ErrQueueFull, j.plugin.Name()), j)
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case j := <-m.queue:
			m.run(j)
		}
	}
}

func (m *Manager) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			m.report(fmt.Errorf("plugins: panic: %v", r), j)
		}
	}()
	ctx := j.ctx
	if m.cfg.HandleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.HandleTimeout)
		defer cancel()
	}
	if err := j.plugin.Handle(ctx, j.sender, j.packet); err != nil {
		m.report(err, j)
	}
}

func (m *Manager) report(err error, j job) {
	cmd := j.packet.Command()
	observability.RecordHandlerError("plugin", cmd)
	log.Warn().Err(err).Msgf("plugins.Manager plugin=%s command=%q", j.plugin.Name(), cmd)
	if m.onError != nil {
		m.onError(err, fmt.Sprintf("plugin %s failed on %s", j.plugin.Name(), cmd))
	}
}

// Close stops the workers. Queued jobs not yet started are dropped.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}
