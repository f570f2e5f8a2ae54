// Package config loads bot settings from TOML or YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/palctl/internal/bot"
	"github.com/danmuck/palctl/internal/protocol/packets"
)

// EnvPassword overrides account.password when set.
const EnvPassword = "PALCTL_PASSWORD"

var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrMissingHost       = errors.New("config: server.host required")
	ErrInvalidPort       = errors.New("config: server.port out of range")
	ErrMissingEmail      = errors.New("config: account.email required")
	ErrMissingPassword   = errors.New("config: account.password required")
	ErrInvalidWorkers    = errors.New("config: plugins.workers must not be negative")
)

type Config struct {
	Bot         bot.Config
	Account     bot.Credentials
	MetricsAddr string
}

func Default() Config {
	return Config{
		Bot:     bot.DefaultConfig(),
		Account: bot.Credentials{Status: packets.StatusOnline, Device: packets.DevicePC},
	}
}

// Load reads path, chosen by extension, over Default and applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	var raw fileConfig
	var defined func(keys ...string) bool

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		defined = meta.IsDefined
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		keys, err := decodeYAML(data, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		defined = keys.IsDefined
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if err := apply(&cfg, raw, defined); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// ApplyEnv applies environment overrides.
func ApplyEnv(cfg *Config) {
	if pw, ok := os.LookupEnv(EnvPassword); ok && pw != "" {
		cfg.Account.Password = pw
	}
}

func apply(cfg *Config, raw fileConfig, defined func(keys ...string) bool) error {
	var errs []error
	duration := func(dst *time.Duration, value string, keys ...string) {
		if !defined(keys...) {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", strings.Join(keys, "."), err))
			return
		}
		*dst = d
	}

	if defined("server", "host") {
		cfg.Bot.Host = strings.TrimSpace(raw.Server.Host)
	}
	if defined("server", "port") {
		cfg.Bot.Port = raw.Server.Port
	}
	duration(&cfg.Bot.Transport.ConnectTimeout, raw.Server.ConnectTimeout, "server", "connect_timeout")
	duration(&cfg.Bot.Transport.WriteTimeout, raw.Server.WriteTimeout, "server", "write_timeout")
	if defined("server", "max_connect_attempts") {
		cfg.Bot.Transport.MaxConnectAttempts = raw.Server.MaxConnectAttempts
	}
	if defined("server", "read_buffer_size") {
		cfg.Bot.Transport.ReadBufferSize = raw.Server.ReadBufferSize
	}
	if defined("server", "tls", "enabled") {
		cfg.Bot.Transport.TLS.Enabled = raw.Server.TLS.Enabled
	}
	if defined("server", "tls", "server_name") {
		cfg.Bot.Transport.TLS.ServerName = strings.TrimSpace(raw.Server.TLS.ServerName)
	}
	if defined("server", "tls", "ca_file") {
		cfg.Bot.Transport.TLS.CAFile = strings.TrimSpace(raw.Server.TLS.CAFile)
	}
	if defined("server", "tls", "insecure_skip_verify") {
		cfg.Bot.Transport.TLS.InsecureSkipVerify = raw.Server.TLS.InsecureSkipVerify
	}

	if defined("account", "email") {
		cfg.Account.Email = strings.TrimSpace(raw.Account.Email)
	}
	if defined("account", "password") {
		cfg.Account.Password = raw.Account.Password
	}
	if defined("account", "status") {
		status, ok := packets.ParseOnlineStatus(strings.ToLower(strings.TrimSpace(raw.Account.Status)))
		if !ok {
			errs = append(errs, fmt.Errorf("parse account.status: unknown status %q", raw.Account.Status))
		}
		cfg.Account.Status = status
	}
	if defined("account", "device") {
		name := strings.TrimSpace(raw.Account.Device)
		device, ok := packets.ParseDevice(name)
		if !ok {
			device, ok = packets.ParseDevice(strings.ToLower(name))
		}
		if !ok {
			errs = append(errs, fmt.Errorf("parse account.device: unknown device %q", raw.Account.Device))
		} else {
			cfg.Account.Device = device
		}
	}
	if defined("account", "spam_filter") {
		cfg.Account.SpamFilter = raw.Account.SpamFilter
	}

	if defined("bot", "reassemble") {
		cfg.Bot.Reassemble = raw.Bot.Reassemble
	}
	if defined("bot", "max_inflated_size") {
		cfg.Bot.MaxInflatedSize = raw.Bot.MaxInflatedSize
	}
	if defined("bot", "max_payload_bytes") {
		cfg.Bot.Frame.MaxPayloadBytes = raw.Bot.MaxPayloadBytes
	}
	if defined("bot", "max_header_bytes") {
		cfg.Bot.Frame.MaxHeaderBytes = raw.Bot.MaxHeaderBytes
	}
	if defined("bot", "max_pending_sequences") {
		cfg.Bot.Frame.MaxPendingSequences = raw.Bot.MaxPendingSequences
	}
	if defined("bot", "authorized") {
		cfg.Bot.Authorized = append([]int(nil), raw.Bot.Authorized...)
	}
	if defined("bot", "blocked") {
		cfg.Bot.Blocked = append([]int(nil), raw.Bot.Blocked...)
	}

	if defined("plugins", "workers") {
		cfg.Bot.Plugins.Workers = raw.Plugins.Workers
	}
	if defined("plugins", "queue_size") {
		cfg.Bot.Plugins.QueueSize = raw.Plugins.QueueSize
	}
	duration(&cfg.Bot.Plugins.HandleTimeout, raw.Plugins.HandleTimeout, "plugins", "handle_timeout")

	if defined("metrics", "addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.Metrics.Addr)
	}
	return errors.Join(errs...)
}

// Validate reports every invalid section at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Bot.Host) == "" {
		errs = append(errs, ErrMissingHost)
	}
	if c.Bot.Port <= 0 || c.Bot.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPort, c.Bot.Port))
	}
	if err := c.Bot.Transport.WithDefaults().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Bot.Plugins.Workers < 0 {
		errs = append(errs, ErrInvalidWorkers)
	}
	if strings.TrimSpace(c.Account.Email) == "" {
		errs = append(errs, ErrMissingEmail)
	}
	if c.Account.Password == "" {
		errs = append(errs, ErrMissingPassword)
	}
	return errors.Join(errs...)
}

func (c Config) String() string {
	password := ""
	if c.Account.Password != "" {
		password = "[redacted]"
	}
	return fmt.Sprintf(
		"server=%s:%d tls=%t email=%q password=%s device=%q status=%d workers=%d reassemble=%t metrics=%q",
		c.Bot.Host, c.Bot.Port, c.Bot.Transport.TLS.Enabled,
		c.Account.Email, password, c.Account.Device, c.Account.Status,
		c.Bot.Plugins.Workers, c.Bot.Reassemble, c.MetricsAddr,
	)
}
