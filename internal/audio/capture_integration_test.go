//go:build integration

package audio

import (
	"context"
	"testing"
	"time"
)

// These tests require actual audio hardware and are skipped by default.
// Run with: go test -tags=integration ./internal/audio

func integrationConfig() Config {
	cfg := DefaultConfig()
	// Half a second per window keeps the test fast.
	cfg.WindowSamples = int(cfg.SampleRate / 2)
	return cfg
}

func TestRecorder_Init_Integration(t *testing.T) {
	r := New(integrationConfig())
	defer r.Close()

	if err := r.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
}

func TestRecorder_ListDevices_Integration(t *testing.T) {
	r := New(integrationConfig())
	defer r.Close()

	if err := r.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	devices, err := r.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	t.Logf("Found %d capture devices:", len(devices))
	for i, d := range devices {
		t.Logf("  [%d] %s", i, d.Name())
	}
}

func TestRecorder_StartStop_Integration(t *testing.T) {
	r := New(integrationConfig())
	defer r.Close()

	if err := r.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !r.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}

	time.Sleep(100 * time.Millisecond)

	if err := r.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if r.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}
}

func TestRecorder_AcquireWindow_Integration(t *testing.T) {
	cfg := integrationConfig()
	r := New(cfg)
	defer r.Close()

	if err := r.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	window, err := r.AcquireWindow(ctx)
	if err != nil {
		t.Fatalf("AcquireWindow() error = %v", err)
	}
	if len(window) != cfg.WindowSamples {
		t.Errorf("window has %d samples, want %d", len(window), cfg.WindowSamples)
	}
}

func TestRecorder_ContextCancellation_Integration(t *testing.T) {
	r := New(integrationConfig())
	defer r.Close()

	if err := r.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !r.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}

	cancel()
	time.Sleep(100 * time.Millisecond)

	if r.IsRunning() {
		t.Error("IsRunning() = true after context cancellation")
	}
}
