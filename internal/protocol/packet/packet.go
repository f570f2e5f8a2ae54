package packet

import (
	"strconv"
	"strings"
)

// Well-known header keys consumed by the protocol core.
const (
	HeaderContentLength = "CONTENT-LENGTH"
	HeaderMessageID     = "MESG-ID"
	HeaderCompression   = "COMPRESSION"
	HeaderTotalLength   = "TOTAL-LENGTH"
	HeaderCorrelationID = "CORRELATION-ID"
	HeaderLast          = "LAST"
)

// NoMessageID is reported by MessageID when the packet carries no MESG-ID.
const NoMessageID int64 = -1

// Header is one key/value pair as it appears on the wire.
type Header struct {
	Key   string
	Value string
}

// Packet is one wire-level protocol unit.
type Packet struct {
	Command string
	Headers []Header
	Payload []byte
}

// New builds a packet with headers in the given order.
func New(command string, headers ...Header) *Packet {
	p := &Packet{Command: command}
	for _, h := range headers {
		p.Set(h.Key, h.Value)
	}
	return p
}

func (p *Packet) index(key string) int {
	key = strings.ToUpper(strings.TrimSpace(key))
	for i, h := range p.Headers {
		if strings.ToUpper(h.Key) == key {
			return i
		}
	}
	return -1
}

// Get returns the header value for key, compared upper-cased.
func (p *Packet) Get(key string) (string, bool) {
	i := p.index(key)
	if i < 0 {
		return "", false
	}
	return p.Headers[i].Value, true
}

// Value returns the header value or "" when absent.
func (p *Packet) Value(key string) string {
	v, _ := p.Get(key)
	return v
}

// Set replaces an existing header in place or appends a new one.
func (p *Packet) Set(key, value string) {
	if i := p.index(key); i >= 0 {
		p.Headers[i].Value = value
		return
	}
	p.Headers = append(p.Headers, Header{Key: key, Value: value})
}

func (p *Packet) Has(key string) bool {
	return p.index(key) >= 0
}

func (p *Packet) Del(key string) {
	if i := p.index(key); i >= 0 {
		p.Headers = append(p.Headers[:i], p.Headers[i+1:]...)
	}
}

// ContentLength is the declared payload length, 0 when absent or malformed.
func (p *Packet) ContentLength() int {
	raw, ok := p.Get(HeaderContentLength)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (p *Packet) SetContentLength(n int) {
	p.Set(HeaderContentLength, strconv.Itoa(n))
}

// MessageID is the MESG-ID header, NoMessageID when absent or malformed.
func (p *Packet) MessageID() int64 {
	raw, ok := p.Get(HeaderMessageID)
	if !ok {
		return NoMessageID
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return NoMessageID
	}
	return id
}

func (p *Packet) SetMessageID(id int64) {
	p.Set(HeaderMessageID, strconv.FormatInt(id, 10))
}

// Compressed reports whether the payload is flagged for decompression.
func (p *Packet) Compressed() bool {
	return strings.TrimSpace(p.Value(HeaderCompression)) == "1"
}

// Content is the payload read as UTF-8 text.
func (p *Packet) Content() string {
	return string(p.Payload)
}

func (p *Packet) SetContent(s string) {
	p.Payload = []byte(s)
}

// Clone deep-copies headers and payload.
func (p *Packet) Clone() *Packet {
	out := &Packet{Command: p.Command}
	if p.Headers != nil {
		out.Headers = make([]Header, len(p.Headers))
		copy(out.Headers, p.Headers)
	}
	if p.Payload != nil {
		out.Payload = make([]byte, len(p.Payload))
		copy(out.Payload, p.Payload)
	}
	return out
}

// String renders the packet for logs: command, header lines, then payload text.
func (p *Packet) String() string {
	var b strings.Builder
	b.WriteString(p.Command)
	for _, h := range p.Headers {
		b.WriteString("\r\n")
		b.WriteString(h.Key)
		b.WriteString(": ")
		b.WriteString(h.Value)
	}
	if len(p.Payload) > 0 {
		b.WriteString("\r\n")
		b.Write(p.Payload)
	}
	return b.String()
}
