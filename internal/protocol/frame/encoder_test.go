package frame

import (
	"bytes"
	"errors"
	"strconv"
	"testing"

	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/danmuck/palctl/internal/testutil/testlog"
)

func TestEncodePingSingleFrame(t *testing.T) {
	testlog.Start(t)
	enc := NewEncoder(nil)
	p := packet.New("P")

	frames := enc.Frames(p)
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	want := "P\r\nLAST: T\r\nMESG-ID: 1\r\n\r\n"
	if got := string(frames[0].Data); got != want {
		t.Fatalf("unexpected frame bytes: %q want %q", got, want)
	}
	if frames[0].Kind != KindSingle || frames[0].ID != 1 {
		t.Fatalf("unexpected frame meta: %+v", frames[0])
	}
	if p.MessageID() != 1 {
		t.Fatalf("caller packet missing id: %d", p.MessageID())
	}
	if p.Has(packet.HeaderLast) {
		t.Fatalf("caller packet should not carry LAST")
	}
}

func TestEncodeSetsContentLengthPerFrame(t *testing.T) {
	testlog.Start(t)
	enc := NewEncoder(nil)
	p := packet.New("AUTH",
		packet.Header{Key: "ENCRYPTION-TYPE", Value: "1"},
		packet.Header{Key: "ONLINE-STATUS", Value: "2"},
	)
	p.Payload = []byte{0x01, 0x02, 0x03}

	frames := enc.Frames(p)
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	if !bytes.HasSuffix(frames[0].Data, []byte("CONTENT-LENGTH: 3\r\n\r\n\x01\x02\x03")) {
		t.Fatalf("unexpected frame tail: %q", frames[0].Data)
	}
}

func TestEncodeFragmentsLargePayload(t *testing.T) {
	testlog.Start(t)
	cases := []int{513, 1024, 1300, 512*3 + 1}
	for _, n := range cases {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			enc := NewEncoder(nil)
			payload := make([]byte, n)
			for i := range payload {
				payload[i] = byte(i % 251)
			}
			p := packet.New("MESG", packet.Header{Key: "TARGET-ID", Value: "5"})
			p.Payload = payload

			frames := enc.Frames(p)
			want := (n + MaxPayloadSize - 1) / MaxPayloadSize
			if len(frames) != want {
				t.Fatalf("frames=%d want=%d", len(frames), want)
			}

			dec := NewDecoder(DefaultLimits())
			var joined []byte
			totals, lasts := 0, 0
			headID := frames[0].ID
			for i, f := range frames {
				pkts, err := dec.Feed(f.Data)
				if err != nil {
					t.Fatalf("decode frame %d: %v", i, err)
				}
				if len(pkts) != 1 {
					t.Fatalf("frame %d decoded into %d packets", i, len(pkts))
				}
				got := pkts[0]
				joined = append(joined, got.Payload...)
				if got.Has(packet.HeaderTotalLength) {
					totals++
					if got.Value(packet.HeaderTotalLength) != strconv.Itoa(n) {
						t.Fatalf("unexpected total length: %q", got.Value(packet.HeaderTotalLength))
					}
				}
				if got.Value(packet.HeaderLast) == "1" {
					lasts++
				}
				if i > 0 && got.Value(packet.HeaderCorrelationID) != strconv.FormatInt(headID, 10) {
					t.Fatalf("frame %d correlation=%q want %d", i, got.Value(packet.HeaderCorrelationID), headID)
				}
			}
			if !bytes.Equal(joined, payload) {
				t.Fatalf("reassembled payload mismatch")
			}
			if totals != 1 || lasts != 1 {
				t.Fatalf("totals=%d lasts=%d", totals, lasts)
			}
			if p.MessageID() != headID {
				t.Fatalf("caller id=%d head id=%d", p.MessageID(), headID)
			}
		})
	}
}

func TestEncodeMessageIDsStrictlyIncrease(t *testing.T) {
	testlog.Start(t)
	enc := NewEncoder(nil)
	var last int64
	for i := 0; i < 20; i++ {
		p := packet.New("MESG")
		p.Payload = make([]byte, (i%4)*400)
		for f := range enc.Encode(p) {
			if f.ID <= last {
				t.Fatalf("id %d not greater than %d", f.ID, last)
			}
			last = f.ID
		}
	}
}

func TestEncodeFailureYieldsEmptyFrame(t *testing.T) {
	testlog.Start(t)
	var reported []error
	enc := NewEncoder(func(err error, note string) {
		reported = append(reported, err)
	})
	p := packet.New("BAD\r\nCOMMAND")

	frames := enc.Frames(p)
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	if !frames[0].Failed() || len(frames[0].Data) != 0 {
		t.Fatalf("expected failed empty frame, got %+v", frames[0])
	}
	if p.MessageID() != packet.NoMessageID {
		t.Fatalf("caller should observe -1, got %d", p.MessageID())
	}
	if len(reported) != 1 || !errors.Is(reported[0], ErrInvalidCommand) {
		t.Fatalf("unexpected reported errors: %v", reported)
	}

	ok := packet.New("P")
	next := enc.Frames(ok)
	if next[0].ID != 2 {
		t.Fatalf("failed frame should still consume an id, next=%d", next[0].ID)
	}
}

func TestEncodeStopsWhenConsumerStops(t *testing.T) {
	testlog.Start(t)
	enc := NewEncoder(nil)
	p := packet.New("MESG")
	p.Payload = make([]byte, 2000)
	for range enc.Encode(p) {
		break
	}
	next := enc.Frames(packet.New("P"))
	if next[0].ID != 2 {
		t.Fatalf("only the head id should be consumed, next=%d", next[0].ID)
	}
}
