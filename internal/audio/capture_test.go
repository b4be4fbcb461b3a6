package audio

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DeviceIndex != -1 {
		t.Errorf("DefaultConfig().DeviceIndex = %d, want -1", cfg.DeviceIndex)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("DefaultConfig().SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.Channels != 1 {
		t.Errorf("DefaultConfig().Channels = %d, want 1", cfg.Channels)
	}
	if cfg.BufferSize != 512 {
		t.Errorf("DefaultConfig().BufferSize = %d, want 512", cfg.BufferSize)
	}
	if cfg.WindowSamples != 32000 {
		t.Errorf("DefaultConfig().WindowSamples = %d, want 32000", cfg.WindowSamples)
	}
}

func testRecorder(windowSamples int) *Recorder {
	return New(Config{
		DeviceIndex:   -1,
		SampleRate:    16000,
		Channels:      1,
		BufferSize:    512,
		WindowSamples: windowSamples,
	})
}

func ramp(n int, base float32) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = base + float32(i)
	}
	return samples
}

func TestIngest_AssemblesExactWindows(t *testing.T) {
	r := testRecorder(8)

	// Chunk sizes never align with the window size.
	r.ingest(ramp(3, 0))
	r.ingest(ramp(3, 3))
	select {
	case <-r.windows:
		t.Fatal("window emitted before WindowSamples arrived")
	default:
	}

	r.ingest(ramp(5, 6))

	select {
	case window := <-r.windows:
		if len(window) != 8 {
			t.Fatalf("window has %d samples, want exactly 8", len(window))
		}
		for i, s := range window {
			if s != float32(i) {
				t.Fatalf("window[%d] = %v, want %v (samples reordered or lost)", i, s, float32(i))
			}
		}
	default:
		t.Fatal("no window after WindowSamples arrived")
	}

	// The three leftover samples stay pending for the next window.
	if len(r.pending) != 3 {
		t.Errorf("pending = %d samples, want 3 carried over", len(r.pending))
	}
}

func TestIngest_MultipleWindowsFromOneChunk(t *testing.T) {
	r := testRecorder(4)

	// 9 samples complete two windows but only one fits in the channel;
	// the second is dropped rather than queued up stale.
	r.ingest(ramp(9, 0))

	select {
	case window := <-r.windows:
		if window[0] != 0 {
			t.Errorf("first window starts at %v, want 0", window[0])
		}
	default:
		t.Fatal("no window delivered")
	}

	select {
	case <-r.windows:
		t.Error("second window was queued; completed windows must not pile up")
	default:
	}

	if len(r.pending) != 1 {
		t.Errorf("pending = %d samples, want 1", len(r.pending))
	}
}

func TestAcquireWindow_NotRunning(t *testing.T) {
	r := testRecorder(8)

	_, err := r.AcquireWindow(context.Background())
	if !errors.Is(err, ErrHardware) {
		t.Fatalf("AcquireWindow before Start: got %v, want ErrHardware", err)
	}
}

func TestAcquireWindow_DiscardsStaleWindow(t *testing.T) {
	r := testRecorder(4)
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	// A window completed while nobody was listening, e.g. during melody
	// playback. The next acquisition must not return it.
	r.ingest(ramp(4, 100))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		r.ingest(ramp(4, 200))
	}()

	window, err := r.AcquireWindow(ctx)
	if err != nil {
		t.Fatalf("AcquireWindow: %v", err)
	}
	if window[0] != 200 {
		t.Errorf("got the stale window (starts at %v), want the fresh one (200)", window[0])
	}
}

func TestAcquireWindow_ContextCancel(t *testing.T) {
	r := testRecorder(32000)
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.AcquireWindow(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AcquireWindow with cancelled ctx: got %v, want context.Canceled", err)
	}
}

func TestAcquireWindow_TimesOutAsHardwareFault(t *testing.T) {
	// A tiny window keeps the 2x nominal timeout short.
	r := New(Config{SampleRate: 16000, Channels: 1, BufferSize: 512, WindowSamples: 160})
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	_, err := r.AcquireWindow(context.Background())
	if !errors.Is(err, ErrHardware) {
		t.Fatalf("silent device: got %v, want ErrHardware", err)
	}
}

func TestStop_NotRunning(t *testing.T) {
	r := testRecorder(8)
	if err := r.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop before Start: got %v, want ErrNotRunning", err)
	}
}

func TestBytesToFloat32(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, -0.25, float32(math.Pi)}

	data := make([]byte, 0, len(values)*4)
	for _, v := range values {
		bits := math.Float32bits(v)
		data = append(data, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}

	samples := bytesToFloat32(data)
	if len(samples) != len(values) {
		t.Fatalf("got %d samples, want %d", len(samples), len(values))
	}
	for i, v := range values {
		if samples[i] != v {
			t.Errorf("sample %d = %v, want %v", i, samples[i], v)
		}
	}
}
