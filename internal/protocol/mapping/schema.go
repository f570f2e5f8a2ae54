package mapping

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownCommand     = errors.New("mapping: unknown command")
	ErrDuplicateCommand   = errors.New("mapping: duplicate command")
	ErrMultiplePayloads   = errors.New("mapping: more than one payload field")
	ErrEmptyCommand       = errors.New("mapping: empty command")
	ErrMissingConstructor = errors.New("mapping: schema has no constructor")
)

// PacketMap is a typed view over one packet command.
type PacketMap interface {
	Command() string
}

// SchemaError reports a schema rejected at registration.
type SchemaError struct {
	Command string
	Reason  string
	Err     error
}

func (e SchemaError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("mapping: %s", e.Reason)
	}
	return fmt.Sprintf("mapping: command=%q: %s", e.Command, e.Reason)
}

func (e SchemaError) Unwrap() error {
	return e.Err
}

// Field binds one header key to a value inside M.
type Field[M PacketMap] struct {
	Key string
	Get func(M) (string, bool)
	Set func(M, string) error
}

// Payload binds the packet payload to a value inside M.
type Payload[M PacketMap] struct {
	Name string
	Get  func(M) []byte
	Set  func(M, []byte) error
}

// Schema declares how M maps to a packet.
type Schema[M PacketMap] struct {
	New      func() M
	Headers  []Field[M]
	Payloads []Payload[M]
}

func String[M PacketMap](key string, ref func(M) *string) Field[M] {
	return Field[M]{
		Key: key,
		Get: func(m M) (string, bool) { return *ref(m), true },
		Set: func(m M, v string) error {
			*ref(m) = v
			return nil
		},
	}
}

func Int[M PacketMap](key string, ref func(M) *int) Field[M] {
	return Field[M]{
		Key: key,
		Get: func(m M) (string, bool) { return strconv.Itoa(*ref(m)), true },
		Set: func(m M, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*ref(m) = n
			return nil
		},
	}
}

func Int64[M PacketMap](key string, ref func(M) *int64) Field[M] {
	return Field[M]{
		Key: key,
		Get: func(m M) (string, bool) { return strconv.FormatInt(*ref(m), 10), true },
		Set: func(m M, v string) error {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return err
			}
			*ref(m) = n
			return nil
		},
	}
}

// OptionalInt omits the header on encode when the value is nil.
func OptionalInt[M PacketMap](key string, ref func(M) **int) Field[M] {
	return Field[M]{
		Key: key,
		Get: func(m M) (string, bool) {
			v := *ref(m)
			if v == nil {
				return "", false
			}
			return strconv.Itoa(*v), true
		},
		Set: func(m M, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*ref(m) = &n
			return nil
		},
	}
}

func Bytes[M PacketMap](name string, ref func(M) *[]byte) Payload[M] {
	return Payload[M]{
		Name: name,
		Get:  func(m M) []byte { return *ref(m) },
		Set: func(m M, b []byte) error {
			*ref(m) = b
			return nil
		},
	}
}

func Text[M PacketMap](name string, ref func(M) *string) Payload[M] {
	return Payload[M]{
		Name: name,
		Get:  func(m M) []byte { return []byte(*ref(m)) },
		Set: func(m M, b []byte) error {
			*ref(m) = string(b)
			return nil
		},
	}
}
