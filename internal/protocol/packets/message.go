package packets

import (
	"strconv"
	"strings"
	"time"
)

// Message is an inbound MESG.
type Message struct {
	UserID    int
	GroupID   *int
	MimeType  string
	Timestamp string
	Content   string
}

func (*Message) Command() string { return CmdMessage }

// Kind is Group when the message carries a TARGET-ID.
func (m *Message) Kind() MessageKind {
	if m.GroupID == nil {
		return Private
	}
	return Group
}

// ReturnAddress is the id a reply should target.
func (m *Message) ReturnAddress() int {
	if m.GroupID == nil {
		return m.UserID
	}
	return *m.GroupID
}

func (m *Message) DataType() DataType {
	return DataTypeOf(m.MimeType)
}

// Time parses the "seconds.micros" timestamp; zero time when malformed.
func (m *Message) Time() time.Time {
	sec, frac, ok := strings.Cut(strings.TrimSpace(m.Timestamp), ".")
	if !ok {
		return time.Time{}
	}
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}
	us, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(s, us*int64(time.Microsecond))
}

func (m *Message) Clone() *Message {
	out := *m
	if m.GroupID != nil {
		g := *m.GroupID
		out.GroupID = &g
	}
	return &out
}
