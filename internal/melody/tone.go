// internal/melody/tone.go
package melody

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Synth renders a square wave on a playback device, the desktop stand-in
// for the original hardware's PWM buzzer. Frequency zero means silence;
// the device keeps running so note changes are glitch-free.
type Synth struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	rate   float64

	freqBits atomic.Uint64 // float64 bits; 0 = silent
	ampBits  atomic.Uint32 // float32 bits, set by SetVolume

	// phase is owned by the audio callback
	phase float64

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewSynth creates a playback synthesizer. Volume is a percentage, 0-100,
// mapped linearly to output amplitude.
func NewSynth(sampleRate uint32, volume int) (*Synth, error) {
	if volume < 0 || volume > 100 {
		return nil, fmt.Errorf("%w: volume %d out of range", ErrActuation, volume)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init audio context: %w", ErrActuation, err)
	}

	s := &Synth{
		ctx:  ctx,
		rate: float64(sampleRate),
	}
	s.ampBits.Store(math.Float32bits(float32(volume) / 100))

	deviceConfig := malgo.DeviceConfig{
		DeviceType: malgo.Playback,
		SampleRate: sampleRate,
		Playback: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: 1,
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.render,
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: init playback device: %w", ErrActuation, err)
	}
	s.device = device

	return s, nil
}

// render fills the output buffer with the current square wave.
func (s *Synth) render(outputSamples, inputSamples []byte, frameCount uint32) {
	freq := math.Float64frombits(s.freqBits.Load())
	amp := math.Float32frombits(s.ampBits.Load())

	for i := uint32(0); i < frameCount; i++ {
		var sample float32
		if freq > 0 {
			if s.phase < 0.5 {
				sample = amp
			} else {
				sample = -amp
			}
			s.phase += freq / s.rate
			if s.phase >= 1 {
				s.phase -= 1
			}
		}

		bits := math.Float32bits(sample)
		offset := i * 4
		outputSamples[offset] = byte(bits)
		outputSamples[offset+1] = byte(bits >> 8)
		outputSamples[offset+2] = byte(bits >> 16)
		outputSamples[offset+3] = byte(bits >> 24)
	}
}

// Start begins emitting freq, starting the device on first use.
func (s *Synth) Start(freq float64) error {
	if freq <= 0 {
		return fmt.Errorf("%w: frequency must be positive, got %v", ErrActuation, freq)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: synthesizer closed", ErrActuation)
	}

	if !s.started {
		if err := s.device.Start(); err != nil {
			return fmt.Errorf("%w: start playback: %w", ErrActuation, err)
		}
		s.started = true
	}

	s.freqBits.Store(math.Float64bits(freq))
	return nil
}

// Silence stops emitting without releasing the device.
func (s *Synth) Silence() error {
	s.freqBits.Store(0)
	return nil
}

// SetVolume adjusts the output amplitude. Percent is 0-100. Safe to
// call while a note is playing.
func (s *Synth) SetVolume(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume %d out of range", ErrActuation, percent)
	}
	s.ampBits.Store(math.Float32bits(float32(percent) / 100))
	return nil
}

// Close releases the playback device and audio context.
func (s *Synth) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		if err := s.ctx.Uninit(); err != nil {
			errs = append(errs, err)
		}
		s.ctx.Free()
		s.ctx = nil
	}

	return errors.Join(errs...)
}
