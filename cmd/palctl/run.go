package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/danmuck/palctl/internal/bot"
	"github.com/danmuck/palctl/internal/config"
	"github.com/danmuck/palctl/internal/observability"
	"github.com/danmuck/palctl/internal/plugins"
	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/danmuck/palctl/internal/protocol/packets"
	"github.com/danmuck/palctl/internal/status"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var errDisconnected = errors.New("connection lost")

// overrides are command-line values that win over the config file.
type overrides struct {
	host       string
	port       int
	email      string
	status     string
	workers    int
	tls        bool
	reassemble bool
	statusAddr string
}

func (o *overrides) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.host, "host", "", "server host")
	fs.IntVar(&o.port, "port", 0, "server port")
	fs.StringVar(&o.email, "email", "", "account email")
	fs.StringVar(&o.status, "status", "", "online status at logon (online, away, invisible, busy)")
	fs.IntVar(&o.workers, "workers", 0, "plugin worker goroutines; 0 runs plugins inline")
	fs.BoolVar(&o.tls, "tls", false, "dial the server over TLS")
	fs.BoolVar(&o.reassemble, "reassemble", false, "join fragmented inbound packets")
	fs.StringVar(&o.statusAddr, "status-addr", "", "serve /status and /metrics on this address")
}

// apply copies only the flags the user actually set.
func (o *overrides) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("host") {
		cfg.Bot.Host = strings.TrimSpace(o.host)
	}
	if fs.Changed("port") {
		cfg.Bot.Port = o.port
	}
	if fs.Changed("email") {
		cfg.Account.Email = strings.TrimSpace(o.email)
	}
	if fs.Changed("status") {
		st, ok := packets.ParseOnlineStatus(strings.ToLower(strings.TrimSpace(o.status)))
		if !ok {
			return fmt.Errorf("unknown status %q", o.status)
		}
		cfg.Account.Status = st
	}
	if fs.Changed("workers") {
		cfg.Bot.Plugins.Workers = o.workers
	}
	if fs.Changed("tls") {
		cfg.Bot.Transport.TLS.Enabled = o.tls
	}
	if fs.Changed("reassemble") {
		cfg.Bot.Reassemble = o.reassemble
	}
	if fs.Changed("status-addr") {
		cfg.MetricsAddr = strings.TrimSpace(o.statusAddr)
	}
	return nil
}

func loadConfig(path string, fs *pflag.FlagSet, o *overrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	} else {
		config.ApplyEnv(&cfg)
	}
	if err := o.apply(fs, &cfg); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runCmd() *cobra.Command {
	var (
		path string
		o    overrides
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in and serve plugins until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			observability.InitLogger("palctl")
			cfg, err := loadConfig(path, cmd.Flags(), &o)
			if err != nil {
				return err
			}
			log.Info().Msgf("palctl config %s", cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBot(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "config file (.toml, .yaml or .yml)")
	o.register(cmd.Flags())
	return cmd
}

func runBot(ctx context.Context, cfg config.Config) error {
	observability.RegisterMetrics()
	lost := make(chan struct{})
	var lostOnce sync.Once

	b, err := bot.New(cfg.Bot,
		bot.WithHooks(bot.Hooks{
			OnDisconnected: func() { lostOnce.Do(func() { close(lost) }) },
			OnLoginFailed: func(reason string) {
				log.Error().Msgf("palctl login rejected reason=%q", reason)
			},
			OnUnhandledPacket: func(p *packet.Packet) {
				log.Debug().Msgf("palctl unhandled command=%s", p.Command)
			},
		}),
		bot.WithPlugins(builtinPlugins()...),
	)
	if err != nil {
		return err
	}
	defer b.Close()

	if cfg.MetricsAddr != "" {
		srv := status.New(cfg.MetricsAddr, b)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("palctl status server stopped")
			}
		}()
	}

	if _, err := b.Login(ctx, cfg.Account); err != nil {
		return err
	}
	log.Info().Msgf("palctl logged in email=%q session=%s", cfg.Account.Email, b.SessionID())

	select {
	case <-ctx.Done():
		log.Info().Msg("palctl shutting down")
		return nil
	case <-lost:
		return errDisconnected
	}
}

func builtinPlugins() []plugins.Plugin {
	return []plugins.Plugin{
		plugins.Command{
			Prefix: "!echo",
			Handler: func(_ context.Context, s plugins.Sender, m *packets.Message, args string) error {
				if args == "" {
					return nil
				}
				s.SendReply(m, args)
				return nil
			},
		},
		plugins.Command{
			Prefix:     "!whoami",
			Authorized: true,
			Handler: func(_ context.Context, s plugins.Sender, m *packets.Message, _ string) error {
				s.SendReply(m, fmt.Sprintf("user %d, authorized", m.UserID))
				return nil
			},
		},
	}
}
