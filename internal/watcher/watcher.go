package watcher

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/danmuck/palctl/internal/observability"
	"github.com/danmuck/palctl/internal/protocol/mapping"
	"github.com/rs/zerolog/log"
)

// Watcher is the registry of pending watches for one session.
type Watcher struct {
	mu      sync.Mutex
	watches []watch
	nextID  uint64
	closed  error
	onError func(err error, note string)
}

// New returns an empty registry. onError receives isolated predicate
// failures and may be nil.
func New(onError func(err error, note string)) *Watcher {
	return &Watcher{onError: onError}
}

// Len is the number of pending watches.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watches)
}

func (w *Watcher) add(kind string, build func(e entry) watch) *slot {
	out := newSlot()
	w.mu.Lock()
	w.nextID++
	e := entry{id: w.nextID, kind: kind, out: out}
	if w.closed != nil {
		closedErr := w.closed
		w.mu.Unlock()
		out.resolve(outcome{err: closedErr})
		observability.RecordWatchResolution(kind, "disconnected")
		return out
	}
	w.watches = append(w.watches, build(e))
	n := len(w.watches)
	w.mu.Unlock()
	observability.SetWatchesPending(n)
	return out
}

func (w *Watcher) remove(ids ...uint64) {
	if len(ids) == 0 {
		return
	}
	w.mu.Lock()
	w.watches = slices.DeleteFunc(w.watches, func(x watch) bool {
		return slices.Contains(ids, x.base().id)
	})
	n := len(w.watches)
	w.mu.Unlock()
	observability.SetWatchesPending(n)
}

func (w *Watcher) removeSlot(s *slot) {
	w.mu.Lock()
	w.watches = slices.DeleteFunc(w.watches, func(x watch) bool {
		return x.base().out == s
	})
	n := len(w.watches)
	w.mu.Unlock()
	observability.SetWatchesPending(n)
}

// Process offers pm to every pending watch. Every watch that matches is
// resolved and removed; a failing watch is reported and stays registered.
func (w *Watcher) Process(pm mapping.PacketMap) {
	w.mu.Lock()
	snapshot := slices.Clone(w.watches)
	w.mu.Unlock()

	var done []uint64
	for _, x := range snapshot {
		resolved, faulted, err := w.safeEvaluate(x, pm)
		if err != nil {
			observability.RecordWatchResolution(x.base().kind, "error")
			log.Warn().Err(err).Msgf("watcher.Process kind=%s command=%q", x.base().kind, pm.Command())
			if w.onError != nil {
				w.onError(err, fmt.Sprintf("error running validator for %s", pm.Command()))
			}
			continue
		}
		if !resolved {
			continue
		}
		done = append(done, x.base().id)
		outcome := "resolved"
		if faulted {
			outcome = "faulted"
		}
		observability.RecordWatchResolution(x.base().kind, outcome)
	}
	w.remove(done...)
}

func (w *Watcher) safeEvaluate(x watch, pm mapping.PacketMap) (resolved, faulted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("watcher: validator panic: %v", r)
		}
	}()
	resolved, faulted = evaluate(x, pm)
	return resolved, faulted, nil
}

// Close faults every pending watch with ErrDisconnected wrapping cause.
// Watches added afterwards fault immediately until Reset.
func (w *Watcher) Close(cause error) {
	err := ErrDisconnected
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrDisconnected, cause)
	}
	w.mu.Lock()
	pending := w.watches
	w.watches = nil
	w.closed = err
	w.mu.Unlock()
	observability.SetWatchesPending(0)

	for _, x := range pending {
		if x.base().out.resolve(outcome{err: err}) {
			observability.RecordWatchResolution(x.base().kind, "disconnected")
		}
	}
	if len(pending) > 0 {
		log.Debug().Msgf("watcher.Close faulted=%d", len(pending))
	}
}

// Reset reopens the registry after Close.
func (w *Watcher) Reset() {
	w.mu.Lock()
	w.closed = nil
	w.mu.Unlock()
}

// Pending is a registered watch awaiting its result.
type Pending[T any] struct {
	w       *Watcher
	kind    string
	out     *slot
	convert func(outcome) (T, error)
}

// Wait blocks until the watch resolves or ctx ends. Call it once.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	if p.out.withdrawn.Load() {
		return zero, ErrWatchCancelled
	}
	select {
	case o := <-p.out.ch:
		return p.convert(o)
	case <-ctx.Done():
		if p.out.claim() {
			p.w.removeSlot(p.out)
			observability.RecordWatchResolution(p.kind, "cancelled")
		}
		if p.out.withdrawn.Load() {
			return zero, fmt.Errorf("%w: %w", ErrWatchCancelled, ctx.Err())
		}
		return p.convert(<-p.out.ch)
	}
}

// Cancel withdraws the watch if it has not resolved yet.
func (p *Pending[T]) Cancel() {
	if p.out.claim() {
		p.w.removeSlot(p.out)
		observability.RecordWatchResolution(p.kind, "cancelled")
	}
}

func typed[T mapping.PacketMap](o outcome) (T, error) {
	var zero T
	if o.err != nil {
		return zero, o.err
	}
	v, ok := o.packet.(T)
	if !ok {
		return zero, fmt.Errorf("watcher: unexpected packet type %T", o.packet)
	}
	return v, nil
}

func declaredCommand[T mapping.PacketMap]() (cmd string) {
	defer func() {
		if recover() != nil {
			cmd = ""
		}
	}()
	var zero T
	return zero.Command()
}

func matcher[T mapping.PacketMap](pred func(T) bool) func(mapping.PacketMap) bool {
	return func(pm mapping.PacketMap) bool {
		v, ok := pm.(T)
		if !ok {
			return false
		}
		return pred == nil || pred(v)
	}
}

// Watch registers a single-type watch on T. A nil pred accepts any T.
func Watch[T mapping.PacketMap](w *Watcher, pred func(T) bool) *Pending[T] {
	out := w.add(kindSingle, func(e entry) watch {
		return &singleWatch{entry: e, command: declaredCommand[T](), accept: matcher(pred)}
	})
	return &Pending[T]{w: w, kind: kindSingle, out: out, convert: typed[T]}
}

// WatchWithCancel resolves on the first T matching pred, or faults with a
// *PacketError on the first C matching cancel. Cancel is checked first.
func WatchWithCancel[T, C mapping.PacketMap](w *Watcher, pred func(T) bool, cancel func(C) bool) *Pending[T] {
	out := w.add(kindCancel, func(e entry) watch {
		return &cancelWatch{entry: e, accept: matcher(pred), cancel: matcher(cancel)}
	})
	return &Pending[T]{w: w, kind: kindCancel, out: out, convert: typed[T]}
}

// WatchCommands resolves on the first packet whose command is listed.
func (w *Watcher) WatchCommands(commands ...string) *Pending[Match] {
	cmds := slices.Clone(commands)
	out := w.add(kindCommands, func(e entry) watch {
		return &commandWatch{entry: e, commands: cmds}
	})
	return &Pending[Match]{w: w, kind: kindCommands, out: out, convert: func(o outcome) (Match, error) {
		if o.err != nil {
			return Match{}, o.err
		}
		return o.match, nil
	}}
}

// WatchCommandsWithCancel resolves on a command in commands, or faults on a
// command in cancels.
func (w *Watcher) WatchCommandsWithCancel(commands, cancels []string) *Pending[mapping.PacketMap] {
	cmds, cancelCmds := slices.Clone(commands), slices.Clone(cancels)
	out := w.add(kindCommandsCancel, func(e entry) watch {
		return &commandCancelWatch{entry: e, commands: cmds, cancels: cancelCmds}
	})
	return &Pending[mapping.PacketMap]{w: w, kind: kindCommandsCancel, out: out, convert: func(o outcome) (mapping.PacketMap, error) {
		if o.err != nil {
			return nil, o.err
		}
		return o.packet, nil
	}}
}

func Subscribe[T mapping.PacketMap](ctx context.Context, w *Watcher, pred func(T) bool) (T, error) {
	return Watch(w, pred).Wait(ctx)
}

func SubscribeWithCancel[T, C mapping.PacketMap](ctx context.Context, w *Watcher, pred func(T) bool, cancel func(C) bool) (T, error) {
	return WatchWithCancel(w, pred, cancel).Wait(ctx)
}

func (w *Watcher) SubscribeCommands(ctx context.Context, commands ...string) (Match, error) {
	return w.WatchCommands(commands...).Wait(ctx)
}
