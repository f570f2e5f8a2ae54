package bot

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/palctl/internal/protocol/frame"
	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/danmuck/palctl/internal/protocol/packets"
	"github.com/danmuck/palctl/internal/transport"
)

// chatServer is a loopback peer speaking the wire format.
type chatServer struct {
	t        *testing.T
	ln       net.Listener
	enc      *frame.Encoder
	received chan *packet.Packet

	mu   sync.Mutex
	conn net.Conn
	up   chan struct{}
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &chatServer{
		t:        t,
		ln:       ln,
		enc:      frame.NewEncoder(nil),
		received: make(chan *packet.Packet, 64),
		up:       make(chan struct{}),
	}
	t.Cleanup(func() {
		_ = ln.Close()
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.mu.Unlock()
	})
	go s.accept()
	return s
}

func (s *chatServer) accept() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	close(s.up)

	dec := frame.NewDecoder(frame.DefaultLimits())
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			pkts, _ := dec.Feed(buf[:n])
			for _, p := range pkts {
				s.received <- p
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *chatServer) config() Config {
	host, portText, _ := net.SplitHostPort(s.ln.Addr().String())
	port, _ := strconv.Atoi(portText)
	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.Transport = transport.Config{MaxConnectAttempts: 1}
	return cfg
}

func (s *chatServer) send(p *packet.Packet) {
	s.t.Helper()
	select {
	case <-s.up:
	case <-time.After(2 * time.Second):
		s.t.Fatalf("server never accepted a connection")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.enc.Frames(p) {
		if _, err := s.conn.Write(f.Data); err != nil {
			s.t.Fatalf("server write: %v", err)
		}
	}
}

func (s *chatServer) sendRaw(b []byte) {
	s.t.Helper()
	<-s.up
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.conn.Write(b); err != nil {
		s.t.Fatalf("server write: %v", err)
	}
}

func (s *chatServer) close() {
	<-s.up
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.Close()
}

// expect returns the next packet the client sent with the given command,
// skipping others.
func (s *chatServer) expect(command string) *packet.Packet {
	s.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-s.received:
			if p.Command == command {
				return p
			}
		case <-deadline:
			s.t.Fatalf("server never received %q", command)
			return nil
		}
	}
}

// respond sends a code RESPONSE echoing id; the encoder would assign its own.
func (s *chatServer) respond(id int64, code byte) {
	s.t.Helper()
	p := packet.New("RESPONSE",
		packet.Header{Key: "WHAT", Value: "0"},
		packet.Header{Key: "TYPE", Value: "0"},
	)
	p.SetMessageID(id)
	p.Payload = []byte{code}
	p.SetContentLength(1)
	data, err := frame.Marshal(p)
	if err != nil {
		s.t.Fatalf("marshal response: %v", err)
	}
	s.sendRaw(data)
}

// incoming builds a server-side MESG. Private messages carry no TARGET-ID.
func incoming(kind packets.MessageKind, from, target int, payload []byte) *packet.Packet {
	p := packet.New("MESG",
		packet.Header{Key: "SOURCE-ID", Value: strconv.Itoa(from)},
		packet.Header{Key: "CONTENT-TYPE", Value: "text/plain"},
		packet.Header{Key: "TIMESTAMP", Value: "1700000000.000001"},
	)
	if kind == packets.Group {
		p.Set("TARGET-ID", strconv.Itoa(target))
	}
	p.Payload = payload
	return p
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func connectedBot(t *testing.T, s *chatServer, opts ...Option) *Bot {
	t.Helper()
	b, err := New(s.config(), opts...)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	t.Cleanup(b.Close)
	if !b.Connect(testCtx(t)) {
		t.Fatalf("connect failed")
	}
	return b
}
