// internal/melody/player_test.go
package melody

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTone records every Start/Silence call and can fail on demand.
type fakeTone struct {
	mu       sync.Mutex
	started  []float64
	silences int
	startErr error
}

func (f *fakeTone) Start(freq float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, freq)
	return nil
}

func (f *fakeTone) Silence() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silences++
	return nil
}

func (f *fakeTone) Close() error { return nil }

func (f *fakeTone) startedFreqs() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.started...)
}

func shortMelody(t *testing.T) []Note {
	t.Helper()
	notes, err := Parse([]string{"C4:0.02", "E4:0.02", "G4:0.02"})
	if err != nil {
		t.Fatal(err)
	}
	return notes
}

func TestNewPlayer_Validation(t *testing.T) {
	if _, err := NewPlayer(nil, shortMelody(t)); !errors.Is(err, ErrToneRequired) {
		t.Errorf("nil tone: got %v, want ErrToneRequired", err)
	}
	if _, err := NewPlayer(&fakeTone{}, nil); !errors.Is(err, ErrEmptyMelody) {
		t.Errorf("empty melody: got %v, want ErrEmptyMelody", err)
	}
}

func TestPlayMelody_PlaysAllNotes(t *testing.T) {
	tone := &fakeTone{}
	player, err := NewPlayer(tone, shortMelody(t))
	if err != nil {
		t.Fatal(err)
	}

	interrupted, err := player.PlayMelody(context.Background())
	if err != nil {
		t.Fatalf("PlayMelody error: %v", err)
	}
	if interrupted {
		t.Error("melody reported interrupted with no Stop call")
	}

	want := []float64{Pitches["C4"], Pitches["E4"], Pitches["G4"]}
	got := tone.startedFreqs()
	if len(got) != len(want) {
		t.Fatalf("started %d notes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("note %d started at %v Hz, want %v Hz", i, got[i], want[i])
		}
	}
}

func TestPlayMelody_StopInterruptsMidNote(t *testing.T) {
	tone := &fakeTone{}
	notes, err := Parse([]string{"C4:10"})
	if err != nil {
		t.Fatal(err)
	}
	player, err := NewPlayer(tone, notes)
	if err != nil {
		t.Fatal(err)
	}

	type outcome struct {
		interrupted bool
		err         error
		elapsed     time.Duration
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		interrupted, err := player.PlayMelody(context.Background())
		done <- outcome{interrupted, err, time.Since(start)}
	}()

	time.Sleep(3 * PollInterval)
	player.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("PlayMelody error: %v", out.err)
		}
		if !out.interrupted {
			t.Error("Stop during playback must report interrupted")
		}
		// Latency is bounded by the poll interval, not the note length.
		if out.elapsed > time.Second {
			t.Errorf("stop took %v, should be within a few poll intervals", out.elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PlayMelody did not return after Stop")
	}

	if tone.silences == 0 {
		t.Error("tone was not silenced after interrupt")
	}
}

func TestPlayMelody_ContextCancelInterrupts(t *testing.T) {
	tone := &fakeTone{}
	notes, err := Parse([]string{"C4:10"})
	if err != nil {
		t.Fatal(err)
	}
	player, err := NewPlayer(tone, notes)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		interrupted, _ := player.PlayMelody(ctx)
		done <- interrupted
	}()

	time.Sleep(2 * PollInterval)
	cancel()

	select {
	case interrupted := <-done:
		if !interrupted {
			t.Error("context cancel during playback must report interrupted")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PlayMelody did not return after cancel")
	}
}

func TestPlayMelody_DeviceFailure(t *testing.T) {
	tone := &fakeTone{startErr: errors.New("device lost")}
	player, err := NewPlayer(tone, shortMelody(t))
	if err != nil {
		t.Fatal(err)
	}

	_, err = player.PlayMelody(context.Background())
	if !errors.Is(err, ErrActuation) {
		t.Fatalf("device failure: got %v, want ErrActuation", err)
	}
}

func TestPlayMelody_Replayable(t *testing.T) {
	tone := &fakeTone{}
	player, err := NewPlayer(tone, shortMelody(t))
	if err != nil {
		t.Fatal(err)
	}

	// A Stop from a previous alert must not poison the next one.
	player.Stop()

	interrupted, err := player.PlayMelody(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if interrupted {
		t.Error("fresh playback reported interrupted; stop flag not reset")
	}
}
