// internal/audio/capture.go
// Package audio acquires fixed-length sample windows from a capture device.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
	ErrNotRunning     = errors.New("audio capture not running")

	// ErrHardware indicates the capture hardware is unavailable or timed
	// out. The detection loop treats it as recoverable: skip the cycle,
	// report, retry.
	ErrHardware = errors.New("audio hardware fault")
)

// Config holds audio capture configuration
type Config struct {
	DeviceIndex   int    // -1 for default device
	SampleRate    uint32 // e.g., 16000
	Channels      uint32 // 1 for mono
	BufferSize    uint32 // frames per callback
	WindowSamples int    // samples per detection window
}

// DefaultConfig returns sensible defaults for cry detection
func DefaultConfig() Config {
	return Config{
		DeviceIndex:   -1,
		SampleRate:    16000,
		Channels:      1,
		BufferSize:    512,
		WindowSamples: 32000,
	}
}

// Recorder captures audio continuously and assembles it into windows of
// exactly WindowSamples float32 samples (normalized -1.0 to 1.0).
type Recorder struct {
	config  Config
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
	mu      sync.RWMutex

	// pending is touched only by the audio callback while running
	pending []float32
	windows chan []float32
}

// New creates a new recorder. Call Init before Start.
func New(cfg Config) *Recorder {
	return &Recorder{
		config:  cfg,
		pending: make([]float32, 0, cfg.WindowSamples),
		windows: make(chan []float32, 1),
	}
}

// Init initializes the audio backend
func (r *Recorder) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", errors.Join(ErrHardware, err))
	}
	r.ctx = ctx

	return nil
}

// ListDevices returns available capture devices
func (r *Recorder) ListDevices() ([]malgo.DeviceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := r.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	return infos, nil
}

// Start begins audio capture. Windows become available to AcquireWindow
// once the device has delivered WindowSamples samples.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	if r.ctx == nil {
		r.mu.Unlock()
		return ErrNotInitialized
	}
	r.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Capture,
		SampleRate:         r.config.SampleRate,
		PeriodSizeInFrames: r.config.BufferSize,
		Capture: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: r.config.Channels,
		},
	}

	if r.config.DeviceIndex >= 0 {
		devices, err := r.ListDevices()
		if err != nil {
			return err
		}
		if r.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("%w: device index %d out of range (have %d devices)",
				ErrHardware, r.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[r.config.DeviceIndex].ID.Pointer()
	}

	onRecvFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		if len(inputSamples) == 0 {
			return
		}
		r.ingest(bytesToFloat32(inputSamples))
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return fmt.Errorf("init device: %w", errors.Join(ErrHardware, err))
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", errors.Join(ErrHardware, err))
	}

	r.mu.Lock()
	r.device = device
	r.running = true
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = r.Stop()
	}()

	return nil
}

// ingest appends captured samples to the pending window and hands off
// each completed window. Runs on the audio thread: no blocking.
func (r *Recorder) ingest(samples []float32) {
	r.pending = append(r.pending, samples...)

	for len(r.pending) >= r.config.WindowSamples {
		window := make([]float32, r.config.WindowSamples)
		copy(window, r.pending[:r.config.WindowSamples])

		rest := len(r.pending) - r.config.WindowSamples
		copy(r.pending, r.pending[r.config.WindowSamples:])
		r.pending = r.pending[:rest]

		// Drop the window if the consumer has not collected the last
		// one yet; a stale window must not masquerade as fresh audio.
		select {
		case r.windows <- window:
		default:
		}
	}
}

// AcquireWindow blocks until a freshly captured window of exactly
// WindowSamples samples is available. Any window that completed before
// the call (e.g. during melody playback) is discarded first. Returns
// ErrHardware if the device fails to deliver a window within twice the
// nominal window duration.
func (r *Recorder) AcquireWindow(ctx context.Context) ([]float32, error) {
	r.mu.RLock()
	running := r.running
	r.mu.RUnlock()
	if !running {
		return nil, fmt.Errorf("%w: %s", ErrHardware, ErrNotRunning)
	}

	// Discard a stale buffered window.
	select {
	case <-r.windows:
	default:
	}

	nominal := time.Duration(r.config.WindowSamples) * time.Second / time.Duration(r.config.SampleRate)
	timer := time.NewTimer(2 * nominal)
	defer timer.Stop()

	select {
	case window := <-r.windows:
		return window, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no window within %v", ErrHardware, 2*nominal)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop stops audio capture
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return ErrNotRunning
	}

	if r.device != nil {
		_ = r.device.Stop()
		r.device.Uninit()
		r.device = nil
	}

	r.running = false
	return nil
}

// Close releases all audio resources
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running && r.device != nil {
		_ = r.device.Stop()
		r.device.Uninit()
		r.device = nil
		r.running = false
	}

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}

	return nil
}

// IsRunning returns true if capture is active
func (r *Recorder) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// bytesToFloat32 converts raw bytes to float32 samples
func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	samples := make([]float32, numSamples)

	for i := 0; i < numSamples; i++ {
		offset := i * 4
		// Little-endian float32
		bits := uint32(data[offset]) |
			uint32(data[offset+1])<<8 |
			uint32(data[offset+2])<<16 |
			uint32(data[offset+3])<<24
		samples[i] = float32frombits(bits)
	}

	return samples
}

// float32frombits converts IEEE 754 binary representation to float32
func float32frombits(b uint32) float32 {
	return *(*float32)(unsafe.Pointer(&b))
}
