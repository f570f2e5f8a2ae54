package frame

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/palctl/internal/observability"
	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/rs/zerolog/log"
)

// CommandResponse never holds overflow across reads.
const CommandResponse = "RESPONSE"

type step int

const (
	stepPacket step = iota
	stepIncomplete
)

// retainCap is the largest buffer kept for reuse once it drains.
const retainCap = 64 * 1024

// Decoder turns a chunked byte stream into packets. One decoder per
// connection; it is not safe for concurrent Feed calls.
type Decoder struct {
	limits Limits
	buf    []byte
	want   int
}

func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits.withDefaults()}
}

// Buffered is the number of bytes waiting for the next chunk.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) Reset() {
	d.buf = nil
	d.want = 0
}

// Feed appends chunk to the retained buffer and returns every packet that is
// now complete. On a parse error the packets decoded before it are returned
// with the error and the buffer is cleared, so the stream resynchronises on
// the next chunk.
func (d *Decoder) Feed(chunk []byte) ([]*packet.Packet, error) {
	carried := len(d.buf)
	d.buf = append(d.buf, chunk...)
	if len(d.buf) < d.want {
		observability.RecordFrameDecoded("incomplete")
		return nil, nil
	}
	d.want = 0

	var out []*packet.Packet
	data := d.buf
	for {
		data = trimLeadingCRLF(data)
		if len(data) == 0 {
			d.keep(nil)
			return out, nil
		}

		p, consumed, st, err := parseOne(data, d.limits)
		if err != nil {
			observability.RecordFrameDecoded("error")
			if start := len(d.buf) - len(data); start < carried {
				log.Warn().Err(err).Msgf("frame.Decoder dropping %d buffered bytes carried from earlier reads", len(data))
			}
			d.Reset()
			return out, err
		}

		if st == stepIncomplete {
			if p != nil && strings.EqualFold(p.Command, CommandResponse) {
				observability.RecordFrameDecoded("dropped")
				log.Warn().Msgf("frame.Decoder dropping incomplete RESPONSE want=%d have=%d", p.ContentLength(), len(data)-consumed)
				d.keep(nil)
				return out, nil
			}
			observability.RecordFrameDecoded("incomplete")
			d.keep(data)
			if p != nil {
				d.want = consumed + p.ContentLength()
			}
			return out, nil
		}

		observability.RecordFrameDecoded("packet")
		out = append(out, p)
		rest := data[consumed:]
		if len(rest) > 0 && p.ContentLength() > 0 && strings.EqualFold(p.Command, CommandResponse) {
			log.Debug().Msgf("frame.Decoder discarding %d trailing bytes after RESPONSE", len(rest))
			d.keep(nil)
			return out, nil
		}
		data = rest
	}
}

// keep moves rest to the front of the buffer. rest must alias d.buf.
func (d *Decoder) keep(rest []byte) {
	if len(rest) == 0 {
		if cap(d.buf) > retainCap {
			d.buf = nil
		} else {
			d.buf = d.buf[:0]
		}
		return
	}
	n := copy(d.buf, rest)
	d.buf = d.buf[:n]
}

// parseOne reads one packet from the front of data. For an incomplete
// packet whose head was parsed, p carries the command and headers and
// consumed is the header length.
func parseOne(data []byte, limits Limits) (*packet.Packet, int, step, error) {
	idx := bytes.Index(data, crlf)
	if idx < 0 {
		return nil, 0, stepIncomplete, headerLimit(data, limits)
	}
	p := &packet.Packet{Command: string(data[:idx])}
	pos := idx + len(crlf)

	for {
		end := bytes.Index(data[pos:], crlf)
		if end < 0 {
			return nil, 0, stepIncomplete, headerLimit(data, limits)
		}
		line := data[pos : pos+end]
		pos += end + len(crlf)
		if len(line) == 0 {
			break
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, 0, stepPacket, fmt.Errorf("%w: command=%q line=%q", ErrMalformedHeader, p.Command, line)
		}
		key := strings.ToUpper(strings.TrimSpace(string(line[:colon])))
		p.Set(key, strings.TrimSpace(string(line[colon+1:])))
	}

	length := 0
	if raw, ok := p.Get(packet.HeaderContentLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			return nil, 0, stepPacket, fmt.Errorf("%w: command=%q value=%q", ErrInvalidContentLength, p.Command, raw)
		}
		length = n
	}
	if pos > limits.MaxHeaderBytes {
		return nil, 0, stepPacket, fmt.Errorf("%w: command=%q size=%d max=%d", ErrHeaderTooLarge, p.Command, pos, limits.MaxHeaderBytes)
	}
	if length > limits.MaxPayloadBytes {
		return nil, 0, stepPacket, fmt.Errorf("%w: command=%q length=%d max=%d", ErrPayloadTooLarge, p.Command, length, limits.MaxPayloadBytes)
	}

	available := len(data) - pos
	switch {
	case length == 0:
		return p, pos, stepPacket, nil
	case available < length:
		return p, pos, stepIncomplete, nil
	default:
		p.Payload = make([]byte, length)
		copy(p.Payload, data[pos:pos+length])
		return p, pos + length, stepPacket, nil
	}
}

func headerLimit(data []byte, limits Limits) error {
	if len(data) > limits.MaxHeaderBytes {
		return fmt.Errorf("%w: buffered=%d max=%d", ErrHeaderTooLarge, len(data), limits.MaxHeaderBytes)
	}
	return nil
}

func trimLeadingCRLF(b []byte) []byte {
	for bytes.HasPrefix(b, crlf) {
		b = b[len(crlf):]
	}
	return b
}
