package transport

import (
	"errors"
	"time"
)

var (
	ErrInvalidBufferSize = errors.New("transport: read buffer size must be positive")
	ErrInvalidTimeout    = errors.New("transport: timeouts must not be negative")
	ErrTLSConflict       = errors.New("transport: ca file and insecure skip verify are exclusive")
)

// BackoffConfig defines retry backoff behavior between connect attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

type TLSConfig struct {
	Enabled            bool
	ServerName         string
	CAFile             string
	InsecureSkipVerify bool
}

type Config struct {
	ConnectTimeout     time.Duration
	WriteTimeout       time.Duration
	ReadBufferSize     int
	MaxConnectAttempts int
	Backoff            BackoffConfig
	TLS                TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     10 * time.Second,
		WriteTimeout:       15 * time.Second,
		ReadBufferSize:     4096,
		MaxConnectAttempts: 3,
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     10 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.MaxConnectAttempts == 0 {
		c.MaxConnectAttempts = d.MaxConnectAttempts
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = d.Backoff
	}
	return c
}

func (c Config) Validate() error {
	var errs []error
	if c.ReadBufferSize <= 0 {
		errs = append(errs, ErrInvalidBufferSize)
	}
	if c.ConnectTimeout < 0 || c.WriteTimeout < 0 || c.Backoff.InitialDelay < 0 || c.Backoff.MaxDelay < 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if c.TLS.CAFile != "" && c.TLS.InsecureSkipVerify {
		errs = append(errs, ErrTLSConflict)
	}
	return errors.Join(errs...)
}
