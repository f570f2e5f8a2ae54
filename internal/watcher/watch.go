package watcher

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/danmuck/palctl/internal/protocol/mapping"
)

// Match is the result of a command watch.
type Match struct {
	Command string
	Packet  mapping.PacketMap
}

type outcome struct {
	packet mapping.PacketMap
	match  Match
	err    error
}

// slot is a single-assignment result.
type slot struct {
	once      sync.Once
	ch        chan outcome
	withdrawn atomic.Bool
}

func newSlot() *slot {
	return &slot{ch: make(chan outcome, 1)}
}

func (s *slot) resolve(o outcome) bool {
	won := false
	s.once.Do(func() {
		s.ch <- o
		won = true
	})
	return won
}

// claim closes the slot without a value; false means it was already resolved.
func (s *slot) claim() bool {
	won := false
	s.once.Do(func() {
		s.withdrawn.Store(true)
		won = true
	})
	return won
}

// watch is one of singleWatch, cancelWatch, commandWatch, commandCancelWatch.
type watch interface {
	base() *entry
}

type entry struct {
	id   uint64
	kind string
	out  *slot
}

func (e *entry) base() *entry { return e }

type singleWatch struct {
	entry
	command string
	accept  func(mapping.PacketMap) bool
}

type cancelWatch struct {
	entry
	accept func(mapping.PacketMap) bool
	cancel func(mapping.PacketMap) bool
}

type commandWatch struct {
	entry
	commands []string
}

type commandCancelWatch struct {
	entry
	commands []string
	cancels  []string
}

const (
	kindSingle         = "single"
	kindCancel         = "cancel"
	kindCommands       = "commands"
	kindCommandsCancel = "commands_cancel"
)

// evaluate reports whether w consumed pm and resolves its slot when it did.
func evaluate(w watch, pm mapping.PacketMap) (resolved bool, faulted bool) {
	switch w := w.(type) {
	case *singleWatch:
		if w.command != "" && !strings.EqualFold(w.command, pm.Command()) {
			return false, false
		}
		if !w.accept(pm) {
			return false, false
		}
		return w.out.resolve(outcome{packet: pm}), false
	case *cancelWatch:
		if w.cancel(pm) {
			return w.out.resolve(outcome{err: &PacketError{Packet: pm}}), true
		}
		if !w.accept(pm) {
			return false, false
		}
		return w.out.resolve(outcome{packet: pm}), false
	case *commandWatch:
		if cmd, ok := commandIn(w.commands, pm); ok {
			return w.out.resolve(outcome{match: Match{Command: cmd, Packet: pm}, packet: pm}), false
		}
		return false, false
	case *commandCancelWatch:
		if _, ok := commandIn(w.commands, pm); ok {
			return w.out.resolve(outcome{packet: pm}), false
		}
		if _, ok := commandIn(w.cancels, pm); ok {
			return w.out.resolve(outcome{err: &PacketError{Packet: pm}}), true
		}
		return false, false
	default:
		return false, false
	}
}

func commandIn(commands []string, pm mapping.PacketMap) (string, bool) {
	got := pm.Command()
	for _, c := range commands {
		if strings.EqualFold(c, got) {
			return c, true
		}
	}
	return "", false
}
