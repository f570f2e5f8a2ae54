package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/palctl/internal/ids"
	"github.com/danmuck/palctl/internal/observability"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("transport: not connected")

// Client is a reconnectable stream to one chat server.
type Client struct {
	cfg   Config
	hooks Hooks
	rng   *rand.Rand

	mu       sync.Mutex
	conn     net.Conn
	session  string
	notified bool

	writeMu sync.Mutex
}

func New(cfg Config, hooks Hooks) *Client {
	return &Client{
		cfg:   cfg.WithDefaults(),
		hooks: hooks,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Connected reports whether a connection is live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SessionID names the current connection; empty when disconnected.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Connect dials host:port, retrying with backoff, and starts the read loop.
func (c *Client) Connect(ctx context.Context, host string, port int) bool {
	if c.Connected() {
		return true
	}
	if err := c.cfg.Validate(); err != nil {
		c.hooks.exception(err, "invalid transport config")
		return false
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var attempt int
	for {
		attempt++
		conn, err := c.dial(ctx, addr)
		if err == nil {
			c.attach(conn)
			return true
		}
		log.Warn().Msgf("transport.Client dial attempt=%d addr=%q err=%v", attempt, addr, err)
		c.hooks.exception(err, fmt.Sprintf("connect attempt %d to %s", attempt, addr))
		if !c.shouldRetry(attempt) {
			return false
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return false
		}
	}
}

func (c *Client) attach(conn net.Conn) {
	session := ids.NewSessionID()
	c.mu.Lock()
	c.conn = conn
	c.session = session
	c.notified = false
	c.mu.Unlock()
	log.Info().Msgf("transport.Client connected session=%s remote=%s", session, conn.RemoteAddr())
	c.hooks.connected(session)
	go c.readLoop(conn, session)
}

func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if !c.cfg.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := c.clientTLSConfig(addr)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) clientTLSConfig(addr string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.cfg.TLS.InsecureSkipVerify,
	}
	serverName := strings.TrimSpace(c.cfg.TLS.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(c.cfg.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("transport: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// readLoop owns conn until it faults or is closed.
func (c *Client) readLoop(conn net.Conn, session string) {
	buf := make([]byte, c.cfg.ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			observability.RecordTransportBytes("in", n)
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.hooks.data(session, chunk)
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			c.hooks.exception(err, "read from "+conn.RemoteAddr().String())
		}
		log.Debug().Msgf("transport.Client read loop stopped session=%s err=%v", session, err)
		c.drop(conn)
		return
	}
}

// WriteBytes writes data in one call. It returns false when not connected
// or when the write faults, in which case the connection is dropped.
func (c *Client) WriteBytes(data []byte) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}

	c.writeMu.Lock()
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	_, err := conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		c.hooks.exception(err, "write to "+conn.RemoteAddr().String())
		c.drop(conn)
		return false
	}
	observability.RecordTransportBytes("out", len(data))
	return true
}

// Disconnect closes the connection. The disconnect hook fires once per
// connection lifecycle, including when no connection was ever made.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	c.drop(conn)
}

// drop closes conn if it is still current and notifies once.
func (c *Client) drop(conn net.Conn) {
	c.mu.Lock()
	if conn != c.conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	session := c.session
	c.session = ""
	fire := !c.notified
	c.notified = true
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		log.Info().Msgf("transport.Client disconnected session=%s", session)
	}
	if fire {
		c.hooks.disconnected()
	}
}
