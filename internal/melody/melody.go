// internal/melody/melody.go
// Package melody plays the alert melody through a tone synthesizer,
// with interruption support bounded by the polling interval.
package melody

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownNote indicates a note name outside the pitch table
	ErrUnknownNote = errors.New("unknown note name")
	// ErrBadNoteSpec indicates a malformed "NAME:SECONDS" note entry
	ErrBadNoteSpec = errors.New("note must be in NAME:SECONDS form")
	// ErrEmptyMelody indicates a melody needs at least one note
	ErrEmptyMelody = errors.New("melody must contain at least one note")
)

// Pitches maps note names to their frequencies in Hz.
var Pitches = map[string]float64{
	"C4": 262, "D4": 294, "E4": 330, "F4": 349,
	"G4": 392, "A4": 440, "B4": 494, "C5": 523,
}

// Note is one melody step: a pitch and how long to hold it.
type Note struct {
	Name      string
	Frequency float64
	Duration  time.Duration
}

// Parse builds a melody from "NAME:SECONDS" entries, e.g. "C4:0.5".
func Parse(specs []string) ([]Note, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyMelody
	}

	notes := make([]Note, 0, len(specs))
	for _, spec := range specs {
		name, secs, ok := strings.Cut(strings.TrimSpace(spec), ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadNoteSpec, spec)
		}

		freq, ok := Pitches[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNote, name)
		}

		d, err := strconv.ParseFloat(secs, 64)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrBadNoteSpec, spec)
		}

		notes = append(notes, Note{
			Name:      name,
			Frequency: freq,
			Duration:  time.Duration(d * float64(time.Second)),
		})
	}

	return notes, nil
}
