package transport

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/palctl/internal/testutil/testlog"
	"github.com/danmuck/palctl/internal/testutil/tlstest"
)

type recorder struct {
	mu          sync.Mutex
	data        []byte
	sessions    []string
	dataSession []string
	exceptions  []string
	disconnects atomic.Int32
	gotData     chan struct{}
	gone        chan struct{}
}

func newRecorder() *recorder {
	return &recorder{gotData: make(chan struct{}, 16), gone: make(chan struct{}, 4)}
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnException: func(err error, note string) {
			r.mu.Lock()
			r.exceptions = append(r.exceptions, note)
			r.mu.Unlock()
		},
		OnDisconnected: func() {
			r.disconnects.Add(1)
			r.gone <- struct{}{}
		},
		OnConnected: func(session string) {
			r.mu.Lock()
			r.sessions = append(r.sessions, session)
			r.mu.Unlock()
		},
		OnData: func(session string, b []byte) {
			r.mu.Lock()
			r.data = append(r.data, b...)
			r.dataSession = append(r.dataSession, session)
			r.mu.Unlock()
			r.gotData <- struct{}{}
		},
	}
}

func (r *recorder) received() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.data)
}

func (r *recorder) sessionTags() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sessions...), append([]string(nil), r.dataSession...)
}

func splitAddr(t *testing.T, addr net.Addr) (string, int) {
	t.Helper()
	host, portText, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

func acceptOne(t *testing.T, ln net.Listener) <-chan net.Conn {
	t.Helper()
	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		ch <- conn
	}()
	return ch
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestClientReadWriteAndPeerClose(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := acceptOne(t, ln)

	rec := newRecorder()
	c := New(Config{}, rec.hooks())
	host, port := splitAddr(t, ln.Addr())
	if !c.Connect(context.Background(), host, port) {
		t.Fatalf("connect failed: %v", rec.exceptions)
	}
	session := c.SessionID()
	if session == "" {
		t.Fatalf("expected session id after connect")
	}
	if connected, _ := rec.sessionTags(); len(connected) != 1 || connected[0] != session {
		t.Fatalf("connected hook should run before Connect returns: %v", connected)
	}
	server := <-accepted
	if server == nil {
		t.Fatalf("accept failed")
	}

	if !c.WriteBytes([]byte("P\r\n\r\n")) {
		t.Fatalf("write failed")
	}
	buf := make([]byte, 16)
	_ = server.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := server.Read(buf)
	if err != nil || string(buf[:n]) != "P\r\n\r\n" {
		t.Fatalf("server read %q err=%v", buf[:n], err)
	}

	if _, err := server.Write([]byte("hello")); err != nil {
		t.Fatalf("server write: %v", err)
	}
	waitSignal(t, rec.gotData, "data")
	if got := rec.received(); got != "hello" {
		t.Fatalf("unexpected data %q", got)
	}
	if _, tags := rec.sessionTags(); len(tags) == 0 || tags[0] != session {
		t.Fatalf("data should carry session %s, got %v", session, tags)
	}

	_ = server.Close()
	waitSignal(t, rec.gone, "disconnect")
	if c.Connected() {
		t.Fatalf("client still connected after peer close")
	}
	if c.WriteBytes([]byte("x")) {
		t.Fatalf("write succeeded while disconnected")
	}
	c.Disconnect()
	if got := rec.disconnects.Load(); got != 1 {
		t.Fatalf("expected one disconnect notification, got %d", got)
	}
}

func TestReconnectTagsDataWithNewSession(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	host, port := splitAddr(t, ln.Addr())

	rec := newRecorder()
	c := New(Config{}, rec.hooks())
	var sessions []string
	for i := 0; i < 2; i++ {
		accepted := acceptOne(t, ln)
		if !c.Connect(context.Background(), host, port) {
			t.Fatalf("connect %d failed", i)
		}
		sessions = append(sessions, c.SessionID())
		server := <-accepted
		if server == nil {
			t.Fatalf("accept %d failed", i)
		}
		if _, err := server.Write([]byte("x")); err != nil {
			t.Fatalf("server write: %v", err)
		}
		waitSignal(t, rec.gotData, "data")
		c.Disconnect()
		waitSignal(t, rec.gone, "disconnect")
		_ = server.Close()
	}

	if sessions[0] == sessions[1] {
		t.Fatalf("reconnect reused session %s", sessions[0])
	}
	connected, tags := rec.sessionTags()
	if len(connected) != 2 || connected[0] != sessions[0] || connected[1] != sessions[1] {
		t.Fatalf("unexpected connected sessions %v want %v", connected, sessions)
	}
	if len(tags) != 2 || tags[0] != sessions[0] || tags[1] != sessions[1] {
		t.Fatalf("unexpected data sessions %v want %v", tags, sessions)
	}
}

func TestDisconnectWithoutConnectFiresOnce(t *testing.T) {
	testlog.Start(t)
	rec := newRecorder()
	c := New(Config{}, rec.hooks())
	c.Disconnect()
	c.Disconnect()
	if got := rec.disconnects.Load(); got != 1 {
		t.Fatalf("expected one disconnect notification, got %d", got)
	}
	if c.WriteBytes([]byte("x")) {
		t.Fatalf("write succeeded without a connection")
	}
}

func TestConnectRetriesThenFails(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, port := splitAddr(t, ln.Addr())
	_ = ln.Close()

	rec := newRecorder()
	c := New(Config{
		MaxConnectAttempts: 2,
		Backoff:            BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1},
	}, rec.hooks())
	if c.Connect(context.Background(), host, port) {
		t.Fatalf("expected connect to fail")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.exceptions) != 2 {
		t.Fatalf("expected two reported attempts, got %v", rec.exceptions)
	}
}

func TestConnectHonoursContext(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, port := splitAddr(t, ln.Addr())
	_ = ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(Config{
		MaxConnectAttempts: -1,
		Backoff:            BackoffConfig{InitialDelay: time.Hour},
	}, Hooks{OnException: func(error, string) { cancel() }})
	done := make(chan bool, 1)
	go func() { done <- c.Connect(ctx, host, port) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected connect to give up")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("connect ignored context cancellation")
	}
}

func TestClientTLS(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewAuthority(t, t.TempDir())
	ln := ca.Listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, _ = conn.Write(buf[:n])
		time.Sleep(100 * time.Millisecond)
	}()

	rec := newRecorder()
	c := New(Config{TLS: TLSConfig{Enabled: true, CAFile: ca.CAFile()}}, rec.hooks())
	host, port := splitAddr(t, ln.Addr())
	if !c.Connect(context.Background(), host, port) {
		t.Fatalf("tls connect failed: %v", rec.exceptions)
	}
	defer c.Disconnect()
	if !c.WriteBytes([]byte("echo")) {
		t.Fatalf("tls write failed")
	}
	waitSignal(t, rec.gotData, "tls echo")
	if got := rec.received(); got != "echo" {
		t.Fatalf("unexpected echo %q", got)
	}
}

func TestNextBackoffDelay(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 300 * time.Millisecond}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{6, 300 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := NextBackoffDelay(cfg, tc.attempt, nil); got != tc.want {
			t.Fatalf("attempt %d: got %v want %v", tc.attempt, got, tc.want)
		}
	}

	cfg.Jitter = true
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		got := NextBackoffDelay(cfg, 2, rng)
		if got < 100*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
	if got := NextBackoffDelay(BackoffConfig{}, 3, nil); got != 0 {
		t.Fatalf("expected zero delay, got %v", got)
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	testlog.Start(t)
	cfg := Config{}.WithDefaults()
	if cfg.ReadBufferSize != 4096 || cfg.ConnectTimeout <= 0 || cfg.Backoff.InitialDelay <= 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}

	bad := cfg
	bad.ReadBufferSize = -1
	bad.TLS = TLSConfig{Enabled: true, CAFile: "ca.crt", InsecureSkipVerify: true}
	err := bad.Validate()
	if !errors.Is(err, ErrInvalidBufferSize) || !errors.Is(err, ErrTLSConflict) {
		t.Fatalf("expected joined validation errors, got %v", err)
	}
}

func TestHooksMerge(t *testing.T) {
	testlog.Start(t)
	var order []string
	a := Hooks{OnDisconnected: func() { order = append(order, "a") }}
	b := Hooks{
		OnDisconnected: func() { order = append(order, "b") },
		OnData:         func(session string, _ []byte) { order = append(order, "data:"+session) },
	}
	m := a.Merge(b)
	m.OnDisconnected()
	m.OnData("s1", nil)
	m.OnConnected("s1")
	m.OnException(errors.New("x"), "ignored")
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "data:s1" {
		t.Fatalf("unexpected merge order %v", order)
	}
}
