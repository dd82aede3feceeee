package main

import (
	"context"
	"testing"
	"time"

	"github.com/matt-g-everett/ledtick/config"
	"github.com/rs/zerolog"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Mqtt.URL = "tcp://127.0.0.1:1883"
	cfg.Mqtt.ClientID = "ledtick-test"
	cfg.Strip.Pixels = 16
	return cfg
}

func TestNewAppRejectsBadCycle(t *testing.T) {
	cfg := testConfig()
	cfg.Stream.Cycle = "every now and then"
	if _, err := newApp(cfg, "config.yaml", zerolog.Nop()); err == nil {
		t.Fatalf("newApp accepted a bad cycle spec")
	}
}

func TestReload(t *testing.T) {
	a, err := newApp(testConfig(), "config.yaml", zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.loop.Run(ctx)

	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	cfg := testConfig()
	cfg.Log.Level = "warn"
	cfg.Scheduler.DisplayRate = 10 * time.Millisecond
	cfg.Stream.MaxPublishRate = 5
	a.reload(cfg)

	var rate time.Duration
	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()
	if err := a.loop.Call(callCtx, func() { rate = a.sched.DisplayRate() }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if rate != 10*time.Millisecond {
		t.Fatalf("display rate = %v, want 10ms", rate)
	}
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("global level = %v, want warn", zerolog.GlobalLevel())
	}
}

func TestCyclePostsToLoop(t *testing.T) {
	a, err := newApp(testConfig(), "config.yaml", zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.loop.Run(ctx)

	a.cycle()
	var next string
	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()
	if err := a.loop.Call(callCtx, func() { next = a.controller.Status().Next }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if next == "" {
		t.Fatalf("cycle did not start a crossfade")
	}
}
