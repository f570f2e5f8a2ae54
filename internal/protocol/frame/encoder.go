package frame

import (
	"iter"
	"strconv"
	"sync/atomic"

	"github.com/danmuck/palctl/internal/observability"
	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/rs/zerolog/log"
)

// Encoder splits packets into wire frames and owns the message id counter.
type Encoder struct {
	lastID  atomic.Int64
	onError func(err error, note string)
}

// NewEncoder returns an encoder whose first frame gets message id 1.
// onError may be nil.
func NewEncoder(onError func(err error, note string)) *Encoder {
	return &Encoder{onError: onError}
}

// Encode yields the frames for p in order. The single or head frame id is
// written back onto p before that frame is yielded. Every iteration
// consumes fresh ids.
func (e *Encoder) Encode(p *packet.Packet) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		if len(p.Payload) <= MaxPayloadSize {
			f := e.serialize(KindSingle, singlePacket(p))
			p.SetMessageID(f.ID)
			yield(f)
			return
		}

		chunks := split(p.Payload, MaxPayloadSize)
		head := e.serialize(KindHead, headPacket(p, chunks[0], len(p.Payload)))
		p.SetMessageID(head.ID)
		if !yield(head) {
			return
		}
		correlationID := head.ID
		for _, chunk := range chunks[1 : len(chunks)-1] {
			if !yield(e.serialize(KindMid, midPacket(p, chunk, correlationID))) {
				return
			}
		}
		yield(e.serialize(KindLast, lastPacket(p, chunks[len(chunks)-1], correlationID)))
	}
}

// Frames collects Encode into a slice.
func (e *Encoder) Frames(p *packet.Packet) []Frame {
	var out []Frame
	for f := range e.Encode(p) {
		out = append(out, f)
	}
	return out
}

func (e *Encoder) serialize(kind Kind, p *packet.Packet) Frame {
	id := e.lastID.Add(1)
	p.SetMessageID(id)
	if len(p.Payload) > 0 {
		p.SetContentLength(len(p.Payload))
	} else {
		p.Del(packet.HeaderContentLength)
	}
	data, err := Marshal(p)
	if err != nil {
		observability.RecordFrameEncoded(string(kind), "error")
		log.Warn().Err(err).Msgf("frame.Encoder serialize kind=%s command=%q", kind, p.Command)
		if e.onError != nil {
			e.onError(err, "error serializing packet")
		}
		return Frame{ID: packet.NoMessageID, Kind: kind, Data: []byte{}}
	}
	observability.RecordFrameEncoded(string(kind), "ok")
	return Frame{ID: id, Kind: kind, Data: data}
}

func singlePacket(p *packet.Packet) *packet.Packet {
	out := p.Clone()
	out.Set(packet.HeaderLast, "T")
	return out
}

func headPacket(p *packet.Packet, chunk []byte, total int) *packet.Packet {
	out := p.Clone()
	out.Set(packet.HeaderTotalLength, strconv.Itoa(total))
	out.Payload = chunk
	return out
}

func midPacket(p *packet.Packet, chunk []byte, correlationID int64) *packet.Packet {
	out := p.Clone()
	out.Set(packet.HeaderCorrelationID, strconv.FormatInt(correlationID, 10))
	out.Payload = chunk
	return out
}

func lastPacket(p *packet.Packet, chunk []byte, correlationID int64) *packet.Packet {
	out := midPacket(p, chunk, correlationID)
	out.Set(packet.HeaderLast, "1")
	return out
}

func split(b []byte, size int) [][]byte {
	out := make([][]byte, 0, (len(b)+size-1)/size)
	for len(b) > size {
		out = append(out, b[:size])
		b = b[size:]
	}
	return append(out, b)
}
