// internal/dsp/energy.go
package dsp

import "errors"

var (
	// ErrInvalidEnergyThreshold indicates the threshold must be positive
	ErrInvalidEnergyThreshold = errors.New("energy threshold must be positive")
	// ErrEmptyWindow indicates classification needs at least one sample
	ErrEmptyWindow = errors.New("window must not be empty")
)

// Classifier reduces a filtered window to a single energy scalar and
// compares it against a fixed threshold. Energy is the mean of squared
// samples; normalizing by window length keeps the threshold independent
// of the configured window size.
type Classifier struct {
	threshold float64
}

// NewClassifier creates a classifier with the given energy threshold.
func NewClassifier(threshold float64) (*Classifier, error) {
	if threshold <= 0 {
		return nil, ErrInvalidEnergyThreshold
	}
	return &Classifier{threshold: threshold}, nil
}

// Energy computes the normalized sum-of-squares energy of a window.
// Runs in O(len(window)) with a single accumulator.
func Energy(window []float32) float64 {
	var sum float64
	for _, s := range window {
		v := float64(s)
		sum += v * v
	}
	if len(window) == 0 {
		return 0
	}
	return sum / float64(len(window))
}

// Classify returns the window energy and the cry verdict. A single
// cycle's verdict is memoryless; any debouncing belongs to the caller.
func (c *Classifier) Classify(window []float32) (energy float64, crying bool, err error) {
	if len(window) == 0 {
		return 0, false, ErrEmptyWindow
	}
	energy = Energy(window)
	return energy, energy > c.threshold, nil
}

// Threshold returns the configured threshold.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}
