package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/palctl/internal/config"
	"github.com/danmuck/palctl/internal/protocol/packets"
	"github.com/danmuck/palctl/internal/testutil/testlog"
	"github.com/spf13/pflag"
)

func execute(t *testing.T, stdin []byte, args ...string) []byte {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(bytes.NewReader(stdin))
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("palctl %s: %v", strings.Join(args, " "), err)
	}
	return out.Bytes()
}

func TestOverridesApplyOnlyChangedFlags(t *testing.T) {
	testlog.Start(t)
	var o overrides
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	o.register(fs)
	if err := fs.Parse([]string{"--host", "chat.local", "--workers", "2", "--status", "away"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Default()
	cfg.Bot.Port = 4000
	if err := o.apply(fs, &cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Bot.Host != "chat.local" || cfg.Bot.Plugins.Workers != 2 {
		t.Fatalf("overrides not applied: %s", cfg)
	}
	if cfg.Bot.Port != 4000 {
		t.Fatalf("unset --port must keep file value, got %d", cfg.Bot.Port)
	}
	if cfg.Account.Status != packets.StatusAway {
		t.Fatalf("unexpected status: %d", cfg.Account.Status)
	}
}

func TestOverridesRejectUnknownStatus(t *testing.T) {
	testlog.Start(t)
	var o overrides
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	o.register(fs)
	if err := fs.Parse([]string{"--status", "sleepy"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := config.Default()
	if err := o.apply(fs, &cfg); err == nil {
		t.Fatalf("expected unknown status error")
	}
}

func TestLoadConfigValidatesAfterOverrides(t *testing.T) {
	testlog.Start(t)
	t.Setenv(config.EnvPassword, "")
	path := filepath.Join(t.TempDir(), "bot.toml")
	body := "[account]\nemail = \"bot@example.com\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var o overrides
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	o.register(fs)
	if _, err := loadConfig(path, fs, &o); !errors.Is(err, config.ErrMissingPassword) {
		t.Fatalf("expected ErrMissingPassword, got %v", err)
	}

	t.Setenv(config.EnvPassword, "hunter2")
	if err := fs.Parse([]string{"--port", "4100"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := loadConfig(path, fs, &o)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bot.Port != 4100 || cfg.Account.Password != "hunter2" {
		t.Fatalf("unexpected config: %s", cfg)
	}
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	wire := execute(t, nil, "frame", "encode", "mesg", "-H", "SOURCE-ID=42", "-H", "CONTENT-TYPE=text/plain", "-p", "hello world")
	if !bytes.HasPrefix(wire, []byte("MESG\r\n")) {
		t.Fatalf("unexpected wire prefix: %q", wire)
	}

	out := execute(t, wire, "frame", "decode")
	var views []map[string]any
	if err := json.Unmarshal(out, &views); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(views) != 1 {
		t.Fatalf("expected one packet, got %d", len(views))
	}
	if views[0]["type"] != "*packets.Message" || views[0]["payload"] != "hello world" {
		t.Fatalf("unexpected view: %v", views[0])
	}
	mapped, ok := views[0]["mapped"].(map[string]any)
	if !ok || mapped["UserID"] != float64(42) || mapped["Content"] != "hello world" {
		t.Fatalf("unexpected mapped message: %v", views[0]["mapped"])
	}
}

func TestFrameEncodeSplitsAndDecodeReassembles(t *testing.T) {
	testlog.Start(t)
	payload := strings.Repeat("x", 1300)
	path := filepath.Join(t.TempDir(), "payload.txt")
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	described := execute(t, nil, "frame", "encode", "MESG", "-H", "SOURCE-ID=1", "-f", path, "--json")
	var frames []frameView
	if err := json.Unmarshal(described, &frames); err != nil {
		t.Fatalf("decode frames: %v", err)
	}
	if len(frames) != 3 || frames[0].Kind != "head" || frames[2].Kind != "last" {
		t.Fatalf("unexpected frames: %+v", frames)
	}

	wire := execute(t, nil, "frame", "encode", "MESG", "-H", "SOURCE-ID=1", "-f", path, "--compress")
	out := execute(t, wire, "frame", "decode")
	var views []packetView
	if err := json.Unmarshal(out, &views); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(views) != 1 || views[0].Payload != payload {
		t.Fatalf("expected one reassembled, inflated packet, got %d", len(views))
	}
}

func TestVersionShort(t *testing.T) {
	testlog.Start(t)
	out := execute(t, nil, "version", "--short")
	if strings.TrimSpace(string(out)) != version {
		t.Fatalf("unexpected version output: %q", out)
	}
}
