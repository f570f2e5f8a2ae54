package frame

import (
	"bytes"
	"errors"
	"strconv"
	"testing"

	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/danmuck/palctl/internal/testutil/testlog"
)

func TestReassemblerJoinsEncodedFragments(t *testing.T) {
	testlog.Start(t)
	enc := NewEncoder(nil)
	dec := NewDecoder(DefaultLimits())
	r := NewReassembler(DefaultLimits())

	payload := bytes.Repeat([]byte("0123456789"), 130)
	p := packet.New("GROUP UPDATE")
	p.Payload = payload

	var done *packet.Packet
	for f := range enc.Encode(p) {
		pkts, err := dec.Feed(f.Data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		for _, pkt := range pkts {
			out, ok, err := r.Add(pkt)
			if err != nil {
				t.Fatalf("reassemble: %v", err)
			}
			if ok {
				done = out
			}
		}
	}
	if done == nil {
		t.Fatalf("expected a reassembled packet")
	}
	if !bytes.Equal(done.Payload, payload) || done.ContentLength() != len(payload) {
		t.Fatalf("unexpected reassembled payload len=%d", len(done.Payload))
	}
	if done.Has(packet.HeaderTotalLength) || done.Has(packet.HeaderCorrelationID) {
		t.Fatalf("fragment headers should be stripped: %+v", done.Headers)
	}
	if r.Pending() != 0 {
		t.Fatalf("expected no pending sequences")
	}
}

func TestReassemblerPassesThroughSingles(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(DefaultLimits())
	p := packet.New("P", packet.Header{Key: "LAST", Value: "T"})
	out, ok, err := r.Add(p)
	if err != nil || !ok || out != p {
		t.Fatalf("expected passthrough, got out=%v ok=%v err=%v", out, ok, err)
	}
}

func TestReassemblerUnknownCorrelation(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(DefaultLimits())
	p := packet.New("MESG", packet.Header{Key: "CORRELATION-ID", Value: "99"})
	if _, _, err := r.Add(p); !errors.Is(err, ErrUnknownCorrelation) {
		t.Fatalf("expected ErrUnknownCorrelation, got %v", err)
	}
}

func fragmentHead(id int64, total int, payload string) *packet.Packet {
	p := packet.New("MESG", packet.Header{Key: "TOTAL-LENGTH", Value: strconv.Itoa(total)})
	p.SetMessageID(id)
	p.SetContent(payload)
	return p
}

func fragmentTail(id int64, payload string, last bool) *packet.Packet {
	p := packet.New("MESG", packet.Header{Key: "CORRELATION-ID", Value: strconv.FormatInt(id, 10)})
	if last {
		p.Set("LAST", "1")
	}
	p.SetContent(payload)
	return p
}

func TestReassemblerRejectsFragmentPastTotal(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(DefaultLimits())
	if _, ok, err := r.Add(fragmentHead(7, 6, "abcd")); ok || err != nil {
		t.Fatalf("head should be held: ok=%v err=%v", ok, err)
	}
	_, _, err := r.Add(fragmentTail(7, "efghij", false))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	if r.Pending() != 0 {
		t.Fatalf("overflowing sequence should be dropped, pending=%d", r.Pending())
	}
	if _, _, err := r.Add(fragmentTail(7, "ef", true)); !errors.Is(err, ErrUnknownCorrelation) {
		t.Fatalf("later fragments of a dropped sequence should be unknown, got %v", err)
	}
}

func TestReassemblerRejectsOversizedTotal(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(Limits{MaxPayloadBytes: 1024})
	if _, _, err := r.Add(fragmentHead(1, 1<<30, "abc")); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if r.Pending() != 0 {
		t.Fatalf("rejected head must not be pending")
	}
}

func TestReassemblerEvictsOldestSequence(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(Limits{MaxPendingSequences: 2})
	for id := int64(1); id <= 3; id++ {
		if _, _, err := r.Add(fragmentHead(id, 10, "ab")); err != nil {
			t.Fatalf("head %d: %v", id, err)
		}
	}
	if r.Pending() != 2 {
		t.Fatalf("expected pending capped at 2, got %d", r.Pending())
	}
	if _, _, err := r.Add(fragmentTail(1, "cdefghij", true)); !errors.Is(err, ErrUnknownCorrelation) {
		t.Fatalf("oldest sequence should be evicted, got %v", err)
	}
	out, ok, err := r.Add(fragmentTail(3, "cdefghij", true))
	if err != nil || !ok || out.Content() != "abcdefghij" {
		t.Fatalf("newest sequence should complete: out=%v ok=%v err=%v", out, ok, err)
	}
}
