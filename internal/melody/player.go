// internal/melody/player.go
package melody

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// ErrActuation indicates the tone device is unresponsive. The
	// detection loop reports it and keeps monitoring.
	ErrActuation = errors.New("actuation fault")
	// ErrToneRequired indicates a Player needs a tone synthesizer
	ErrToneRequired = errors.New("tone synthesizer is required")
)

// PollInterval is how often the stop flag is checked while a note is
// held. Stop latency is bounded by this, well under one note boundary.
const PollInterval = 10 * time.Millisecond

// noteGap is the short silence between consecutive notes.
const noteGap = 10 * time.Millisecond

// Tone is the synthesizer the player drives. The malgo implementation
// renders a buzzer-like square wave; tests substitute a fake.
type Tone interface {
	// Start begins emitting the given frequency, replacing any current one.
	Start(freq float64) error
	// Silence stops emitting without releasing the device.
	Silence() error
	// Close releases the device.
	Close() error
}

// Player plays a fixed melody through a Tone, checking an interrupt flag
// at short intervals so Stop takes effect mid-note.
type Player struct {
	tone    Tone
	notes   []Note
	stopped atomic.Bool
}

// NewPlayer creates a player for the given melody.
func NewPlayer(tone Tone, notes []Note) (*Player, error) {
	if tone == nil {
		return nil, ErrToneRequired
	}
	if len(notes) == 0 {
		return nil, ErrEmptyMelody
	}
	return &Player{tone: tone, notes: notes}, nil
}

// PlayMelody plays the melody from the beginning. It returns
// interrupted=true if Stop was called (or ctx cancelled) before the
// melody finished naturally. Device failures return ErrActuation.
func (p *Player) PlayMelody(ctx context.Context) (interrupted bool, err error) {
	p.stopped.Store(false)

	for _, note := range p.notes {
		interrupted, err = p.playNote(ctx, note)
		if err != nil || interrupted {
			_ = p.tone.Silence()
			return interrupted, err
		}
	}

	return false, nil
}

func (p *Player) playNote(ctx context.Context, note Note) (bool, error) {
	if err := p.tone.Start(note.Frequency); err != nil {
		return false, fmt.Errorf("%w: start %s: %w", ErrActuation, note.Name, err)
	}

	deadline := time.Now().Add(note.Duration)
	for time.Now().Before(deadline) {
		if p.stopped.Load() {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return true, nil
		case <-time.After(PollInterval):
		}
	}

	if err := p.tone.Silence(); err != nil {
		return false, fmt.Errorf("%w: silence: %w", ErrActuation, err)
	}
	time.Sleep(noteGap)

	return false, nil
}

// Stop requests that playback halt. Takes effect within PollInterval.
// Safe to call from any goroutine, including when nothing is playing.
func (p *Player) Stop() {
	p.stopped.Store(true)
}

// Notes returns the melody (for inspection and tests).
func (p *Player) Notes() []Note {
	return p.notes
}
