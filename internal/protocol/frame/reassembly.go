package frame

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/rs/zerolog/log"
)

type partial struct {
	head  *packet.Packet
	total int
	buf   []byte
	seq   uint64
}

// Reassembler joins head/mid/last fragments back into one packet.
// Packets that carry no fragment headers pass through untouched.
type Reassembler struct {
	limits  Limits
	mu      sync.Mutex
	pending map[int64]*partial
	seq     uint64
}

func NewReassembler(limits Limits) *Reassembler {
	return &Reassembler{limits: limits.withDefaults(), pending: make(map[int64]*partial)}
}

// Add returns the complete packet once the last fragment arrives.
func (r *Reassembler) Add(p *packet.Packet) (*packet.Packet, bool, error) {
	if raw, ok := p.Get(packet.HeaderTotalLength); ok {
		total, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || total < 0 {
			return nil, false, fmt.Errorf("%w: total-length=%q", ErrInvalidContentLength, raw)
		}
		if total > r.limits.MaxPayloadBytes {
			return nil, false, fmt.Errorf("%w: total-length=%d max=%d", ErrPayloadTooLarge, total, r.limits.MaxPayloadBytes)
		}
		if len(p.Payload) >= total {
			return finish(p, p.Payload, total)
		}
		id := p.MessageID()
		r.mu.Lock()
		r.seq++
		r.pending[id] = &partial{head: p, total: total, buf: append(make([]byte, 0, total), p.Payload...), seq: r.seq}
		r.evictLocked()
		r.mu.Unlock()
		return nil, false, nil
	}

	raw, ok := p.Get(packet.HeaderCorrelationID)
	if !ok {
		return p, true, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownCorrelation, raw)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	part, ok := r.pending[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %d", ErrUnknownCorrelation, id)
	}
	if len(part.buf)+len(p.Payload) > part.total {
		delete(r.pending, id)
		return nil, false, fmt.Errorf("%w: correlation=%d want=%d got>=%d", ErrLengthMismatch, id, part.total, len(part.buf)+len(p.Payload))
	}
	part.buf = append(part.buf, p.Payload...)
	if strings.TrimSpace(p.Value(packet.HeaderLast)) != "1" {
		return nil, false, nil
	}
	delete(r.pending, id)
	return finish(part.head, part.buf, part.total)
}

// Pending is the number of sequences still waiting for their last fragment.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// evictLocked drops the oldest sequences once pending exceeds the limit.
func (r *Reassembler) evictLocked() {
	for len(r.pending) > r.limits.MaxPendingSequences {
		var (
			oldest int64
			seq    uint64
			found  bool
		)
		for id, part := range r.pending {
			if !found || part.seq < seq {
				oldest, seq, found = id, part.seq, true
			}
		}
		log.Warn().Msgf("frame.Reassembler evicting sequence=%d pending=%d max=%d", oldest, len(r.pending), r.limits.MaxPendingSequences)
		delete(r.pending, oldest)
	}
}

func finish(head *packet.Packet, payload []byte, total int) (*packet.Packet, bool, error) {
	if len(payload) != total {
		return nil, false, fmt.Errorf("%w: want=%d got=%d", ErrLengthMismatch, total, len(payload))
	}
	out := head.Clone()
	out.Del(packet.HeaderTotalLength)
	out.Del(packet.HeaderCorrelationID)
	out.Payload = payload
	out.SetContentLength(len(payload))
	return out, true, nil
}
