package mapping

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/rs/zerolog/log"
)

// Codec maps one command in both directions.
type Codec interface {
	Command() string
	Decode(p *packet.Packet) PacketMap
	Encode(m PacketMap) (*packet.Packet, error)
}

// Registry is the command -> codec table.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register validates s and adds it under the command its constructor reports.
func Register[M PacketMap](r *Registry, s Schema[M]) error {
	if s.New == nil {
		return SchemaError{Reason: "no constructor", Err: ErrMissingConstructor}
	}
	command := s.New().Command()
	if strings.TrimSpace(command) == "" {
		return SchemaError{Reason: "empty command", Err: ErrEmptyCommand}
	}
	if len(s.Payloads) > 1 {
		names := make([]string, 0, len(s.Payloads))
		for _, p := range s.Payloads {
			names = append(names, p.Name)
		}
		return SchemaError{
			Command: command,
			Reason:  fmt.Sprintf("payload fields %s", strings.Join(names, ",")),
			Err:     ErrMultiplePayloads,
		}
	}
	return r.add(schemaCodec[M]{command: command, schema: s})
}

// MustRegister panics on a rejected schema; for static tables.
func MustRegister[M PacketMap](r *Registry, s Schema[M]) {
	if err := Register(r, s); err != nil {
		panic(err)
	}
}

func (r *Registry) add(c Codec) error {
	key := strings.ToUpper(c.Command())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codecs[key]; ok {
		return SchemaError{Command: c.Command(), Reason: "already registered", Err: ErrDuplicateCommand}
	}
	r.codecs[key] = c
	return nil
}

func (r *Registry) lookup(command string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[strings.ToUpper(strings.TrimSpace(command))]
	return c, ok
}

// Map returns the typed view of p, or false when no codec knows the command.
func (r *Registry) Map(p *packet.Packet) (PacketMap, bool) {
	c, ok := r.lookup(p.Command)
	if !ok {
		return nil, false
	}
	return c.Decode(p), true
}

// Unmap builds the wire packet for m.
func (r *Registry) Unmap(m PacketMap) (*packet.Packet, error) {
	c, ok := r.lookup(m.Command())
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, m.Command())
	}
	return c.Encode(m)
}

func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codecs))
	for _, c := range r.codecs {
		out = append(out, c.Command())
	}
	sort.Strings(out)
	return out
}

type schemaCodec[M PacketMap] struct {
	command string
	schema  Schema[M]
}

func (c schemaCodec[M]) Command() string {
	return c.command
}

func (c schemaCodec[M]) Decode(p *packet.Packet) PacketMap {
	m := c.schema.New()
	for _, f := range c.schema.Headers {
		raw, ok := p.Get(f.Key)
		if !ok {
			continue
		}
		if err := f.Set(m, raw); err != nil {
			log.Debug().Err(err).Msgf("mapping.Decode command=%q header=%q value=%q", c.command, f.Key, raw)
		}
	}
	for _, pl := range c.schema.Payloads {
		payload := p.Payload
		if payload == nil {
			payload = []byte{}
		}
		if err := pl.Set(m, payload); err != nil {
			log.Debug().Err(err).Msgf("mapping.Decode command=%q payload=%q", c.command, pl.Name)
		}
	}
	return m
}

func (c schemaCodec[M]) Encode(pm PacketMap) (*packet.Packet, error) {
	m, ok := pm.(M)
	if !ok {
		return nil, fmt.Errorf("mapping: command=%q: unexpected type %T", c.command, pm)
	}
	p := packet.New(c.command)
	for _, f := range c.schema.Headers {
		if v, ok := f.Get(m); ok {
			p.Set(f.Key, v)
		}
	}
	if len(c.schema.Payloads) == 1 {
		p.Payload = c.schema.Payloads[0].Get(m)
	}
	return p, nil
}
