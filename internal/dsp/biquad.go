// internal/dsp/biquad.go
// Package dsp implements the signal processing core: a fixed-coefficient
// second-order bandpass filter and an energy-based classifier.
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrNonFiniteCoefficient indicates a coefficient is NaN or infinite
	ErrNonFiniteCoefficient = errors.New("filter coefficients must be finite")
	// ErrUnstableFilter indicates the feedback polynomial has poles outside the unit circle
	ErrUnstableFilter = errors.New("filter coefficients describe an unstable filter")
	// ErrZeroNormalization indicates a0 is zero and cannot normalize
	ErrZeroNormalization = errors.New("a0 must be non-zero")
)

// Coefficients holds the five scalars of a normalized second-order IIR
// section (a0 = 1). They are computed offline for the target passband and
// never recomputed at runtime.
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Normalize divides all coefficients by a0, yielding the canonical a0 = 1
// form used by the filter recurrence.
func Normalize(b0, b1, b2, a0, a1, a2 float64) (Coefficients, error) {
	if a0 == 0 {
		return Coefficients{}, ErrZeroNormalization
	}
	inv := 1.0 / a0
	return Coefficients{
		B0: b0 * inv,
		B1: b1 * inv,
		B2: b2 * inv,
		A1: a1 * inv,
		A2: a2 * inv,
	}, nil
}

// Validate checks that the coefficient set is usable: all values finite
// and the denominator inside the stability triangle (|a2| < 1 and
// |a1| < 1 + a2), which keeps both poles inside the unit circle.
func (c Coefficients) Validate() error {
	for _, v := range [5]float64{c.B0, c.B1, c.B2, c.A1, c.A2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFiniteCoefficient
		}
	}
	if math.Abs(c.A2) >= 1 || math.Abs(c.A1) >= 1+c.A2 {
		return ErrUnstableFilter
	}
	return nil
}

// DefaultCoefficients is the offline-designed bandpass for the cry band
// (4500-6000 Hz at a 16 kHz sample rate, RBJ constant-skirt design with
// Q = 1). Overridable through the config file.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		B0: 0.2173957991219648,
		B1: 0.0,
		B2: -0.2173957991219648,
		A1: 0.8695831964878592,
		A2: 0.5652084017560705,
	}
}

// BandpassFilter is a Direct Form II second-order section. Its only
// persistent state is the two delay values w1 and w2; nothing outside
// this struct reads or writes them.
type BandpassFilter struct {
	coeff  Coefficients
	w1, w2 float64
}

// NewBandpassFilter creates a filter from a validated coefficient set.
func NewBandpassFilter(c Coefficients) (*BandpassFilter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &BandpassFilter{coeff: c}, nil
}

// ProcessSample runs one step of the Direct Form II recurrence:
//
//	w0 = x - a1*w1 - a2*w2
//	y  = b0*w0 + b1*w1 + b2*w2
//	w2 = w1; w1 = w0
func (f *BandpassFilter) ProcessSample(x float64) float64 {
	w0 := x - f.coeff.A1*f.w1 - f.coeff.A2*f.w2
	y := f.coeff.B0*w0 + f.coeff.B1*f.w1 + f.coeff.B2*f.w2
	f.w2 = f.w1
	f.w1 = w0
	return y
}

// ProcessWindow filters a whole window in place, in order. Filtering in
// place keeps the per-cycle allocation at zero beyond the window buffer
// itself.
func (f *BandpassFilter) ProcessWindow(window []float32) {
	b0, b1, b2 := f.coeff.B0, f.coeff.B1, f.coeff.B2
	a1, a2 := f.coeff.A1, f.coeff.A2
	w1, w2 := f.w1, f.w2

	for i, x := range window {
		w0 := float64(x) - a1*w1 - a2*w2
		window[i] = float32(b0*w0 + b1*w1 + b2*w2)
		w2 = w1
		w1 = w0
	}

	f.w1 = w1
	f.w2 = w2
}

// Reset zeroes the delay state. The detection loop resets before every
// window, so each cycle's output is a pure function of that window.
func (f *BandpassFilter) Reset() {
	f.w1 = 0
	f.w2 = 0
}

// State returns the current delay values (for testing and inspection).
func (f *BandpassFilter) State() (w1, w2 float64) {
	return f.w1, f.w2
}

// Coefficients returns the coefficient set in use.
func (f *BandpassFilter) Coefficients() Coefficients {
	return f.coeff
}
