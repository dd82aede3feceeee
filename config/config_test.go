package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const minimal = `
mqtt:
  url: tcp://broker:1883
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Mqtt.URL != "tcp://broker:1883" {
		t.Errorf("url = %q", c.Mqtt.URL)
	}
	if c.Strip.Pixels != 500 || c.Scheduler.DisplayRate != time.Second/30 || !c.Scheduler.AnimationFrame {
		t.Errorf("defaults not applied: %+v", c)
	}
	if c.LogLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v", c.LogLevel())
	}
}

func TestRedactedHidesPassword(t *testing.T) {
	c, err := Parse([]byte(minimal + "  username: tree\n  password: hunter2\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Interface("config", c.Redacted()).Msg("config loaded")
	if strings.Contains(buf.String(), "hunter2") {
		t.Fatalf("password logged: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "tree") {
		t.Fatalf("username missing: %s", buf.String())
	}
	if c.Mqtt.Password != "hunter2" {
		t.Fatalf("Redacted modified the original config")
	}
}

func TestParseDurations(t *testing.T) {
	c, err := Parse([]byte(minimal + `
scheduler:
  displayRate: 20ms
  animationFrame: false
stream:
  frameInterval: 50ms
  cycle: "*/5 * * * *"
log:
  level: debug
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Scheduler.DisplayRate != 20*time.Millisecond || c.Scheduler.AnimationFrame {
		t.Errorf("scheduler = %+v", c.Scheduler)
	}
	if c.Stream.FrameInterval != 50*time.Millisecond {
		t.Errorf("frameInterval = %v", c.Stream.FrameInterval)
	}
	if c.LogLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v", c.LogLevel())
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing url", "strip:\n  pixels: 10\n", "mqtt.url"},
		{"pixels", minimal + "strip:\n  pixels: 0\n", "strip.pixels"},
		{"cycle", minimal + "stream:\n  cycle: \"not a cron\"\n", "stream.cycle"},
		{"level", minimal + "log:\n  level: loud\n", "log.level"},
		{"unknown field", minimal + "bogus: 1\n", "decode config"},
		{"rate", minimal + "scheduler:\n  displayRate: 0s\n", "scheduler.displayRate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("Load of a missing file succeeded")
	}
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimal), 0o644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan Config, 4)
	w := NewWatcher(path, zerolog.Nop(), func(c Config) { changes <- c })
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- w.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(minimal+"scheduler:\n  displayRate: 10ms\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.Scheduler.DisplayRate != 10*time.Millisecond {
			t.Fatalf("displayRate = %v", c.Scheduler.DisplayRate)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no reload seen")
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
