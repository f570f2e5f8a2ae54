package frame

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/palctl/internal/protocol/packet"
)

// MaxPayloadSize is the largest payload carried by a single wire frame.
const MaxPayloadSize = 512

var (
	ErrInvalidCommand       = errors.New("frame: invalid command line")
	ErrInvalidHeader        = errors.New("frame: invalid header")
	ErrMalformedHeader      = errors.New("frame: malformed header line")
	ErrInvalidContentLength = errors.New("frame: invalid content length")
	ErrUnknownCorrelation   = errors.New("frame: fragment for unknown correlation id")
	ErrLengthMismatch       = errors.New("frame: reassembled length mismatch")
	ErrPayloadTooLarge      = errors.New("frame: payload too large")
	ErrHeaderTooLarge       = errors.New("frame: header block too large")
)

// Limits constrains inbound decode and reassembly memory per connection.
// Zero fields take the DefaultLimits value.
type Limits struct {
	MaxPayloadBytes     int
	MaxHeaderBytes      int
	MaxPendingSequences int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes:     8 * 1024 * 1024,
		MaxHeaderBytes:      64 * 1024,
		MaxPendingSequences: 64,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxPayloadBytes <= 0 {
		l.MaxPayloadBytes = def.MaxPayloadBytes
	}
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if l.MaxPendingSequences <= 0 {
		l.MaxPendingSequences = def.MaxPendingSequences
	}
	return l
}

var crlf = []byte("\r\n")

// Kind labels a frame's position in a fragment sequence.
type Kind string

const (
	KindSingle Kind = "single"
	KindHead   Kind = "head"
	KindMid    Kind = "mid"
	KindLast   Kind = "last"
)

// Frame is one serialized byte sequence ready for the transport.
type Frame struct {
	ID   int64
	Kind Kind
	Data []byte
}

// Failed reports whether serialization of this frame failed.
func (f Frame) Failed() bool {
	return f.ID == packet.NoMessageID
}

// Marshal writes COMMAND, header lines, a blank line, then the raw payload.
func Marshal(p *packet.Packet) ([]byte, error) {
	if p.Command == "" || strings.ContainsAny(p.Command, "\r\n") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, p.Command)
	}
	var buf bytes.Buffer
	buf.Grow(len(p.Command) + 2 + len(p.Headers)*24 + 2 + len(p.Payload))
	buf.WriteString(p.Command)
	buf.Write(crlf)
	for _, h := range p.Headers {
		if h.Key == "" || strings.ContainsAny(h.Key, ":\r\n") || strings.ContainsAny(h.Value, "\r\n") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, h.Key)
		}
		buf.WriteString(h.Key)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.Write(crlf)
	}
	buf.Write(crlf)
	buf.Write(p.Payload)
	return buf.Bytes(), nil
}
