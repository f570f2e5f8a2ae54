package packets

import (
	"encoding/binary"
	"fmt"
)

// Response TYPE values.
const (
	ResponseTypeCode    = 0
	ResponseTypeMessage = 1
)

// CodeOK is the success code of a code-typed RESPONSE.
const CodeOK int64 = 0

// Response answers a request with the same MESG-ID.
type Response struct {
	What      int
	Type      int
	MessageID int64
	Message   []byte
}

func (*Response) Command() string { return CmdResponse }

// Code reads the big-endian result code of a code-typed response.
func (r *Response) Code() (int64, bool) {
	if r.Type != ResponseTypeCode || len(r.Message) == 0 || len(r.Message) > 8 {
		return 0, false
	}
	var buf [8]byte
	copy(buf[8-len(r.Message):], r.Message)
	return int64(binary.BigEndian.Uint64(buf[:])), true
}

// OK reports a code-typed response carrying CodeOK.
func (r *Response) OK() bool {
	code, ok := r.Code()
	return ok && code == CodeOK
}

func (r *Response) String() string {
	if code, ok := r.Code(); ok {
		return fmt.Sprintf("what=%d code=%d", r.What, code)
	}
	return fmt.Sprintf("what=%d message=%q", r.What, r.Message)
}
