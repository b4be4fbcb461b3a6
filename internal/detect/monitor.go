// internal/detect/monitor.go
// Package detect drives the detection cycle: acquire a window, filter it,
// classify its energy, and act on the verdict.
package detect

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gfalqueto/crywatch/internal/audio"
	"github.com/gfalqueto/crywatch/internal/dsp"
)

var (
	// ErrSourceRequired indicates a sample source is required
	ErrSourceRequired = errors.New("sample source is required")
	// ErrPlayerRequired indicates a melody player is required
	ErrPlayerRequired = errors.New("melody player is required")
)

// State is the orchestrator's coarse state.
type State int32

const (
	// StateIdle means the monitor is sampling and classifying.
	StateIdle State = iota
	// StateAlerting means the melody is playing; no sampling happens
	// until it finishes or is interrupted.
	StateAlerting
)

// Status line pairs shown on the Status Sink.
const (
	statusMonitoring = "Monitorando"
	statusCrying     = "Choro detectado!"
	statusMicFault   = "Falha no microfone"
	statusPlayFault  = "Falha no alarme"
)

// Source produces one fixed-length sample window per call.
type Source interface {
	AcquireWindow(ctx context.Context) ([]float32, error)
}

// Player is the actuation sink: melody playback with bounded-latency stop.
type Player interface {
	PlayMelody(ctx context.Context) (interrupted bool, err error)
	Stop()
}

// StatusSink receives two short text lines. Best-effort; must not block
// the detection loop beyond a bounded render time.
type StatusSink interface {
	Show(line1, line2 string)
}

// Indicator is the status LED stand-in.
type Indicator interface {
	Blink(times int, period time.Duration)
}

// CycleResult is one detection cycle's outcome.
type CycleResult struct {
	Time   time.Time
	Energy float64
	Crying bool
	Forced bool
}

// Observer is notified after every classified cycle (archive, remote).
// Called from the monitor goroutine; must be fast.
type Observer interface {
	OnCycle(result CycleResult)
}

// Config holds monitor pacing settings.
type Config struct {
	// SamplingInterval is the pause between detection cycles.
	SamplingInterval time.Duration
	// IdleRefresh shows the idle status every N quiet cycles, so the
	// display is not rewritten on every cycle.
	IdleRefresh int
}

// Monitor owns all loop-level state: the filter delay values, the
// enabled flag, and the current state. Everything is mutated from the
// single Run goroutine; the atomics exist only so Interrupt, SetEnabled
// and Status can be called from the remote channel.
type Monitor struct {
	cfg        Config
	source     Source
	player     Player
	status     StatusSink
	indicator  Indicator
	observers  []Observer
	filter     *dsp.BandpassFilter
	classifier *dsp.Classifier
	logger     *slog.Logger

	enabled atomic.Bool
	state   atomic.Int32

	forceReq chan forceRequest
}

type forceRequest struct {
	reply chan forceReply
}

type forceReply struct {
	result CycleResult
	err    error
}

// New creates a monitor. The filter and classifier are exclusively owned
// by the returned monitor; no other component touches their state.
func New(cfg Config, source Source, player Player, status StatusSink, indicator Indicator,
	filter *dsp.BandpassFilter, classifier *dsp.Classifier, logger *slog.Logger) (*Monitor, error) {

	if source == nil {
		return nil, ErrSourceRequired
	}
	if player == nil {
		return nil, ErrPlayerRequired
	}
	if status == nil {
		status = nopStatus{}
	}
	if indicator == nil {
		indicator = nopIndicator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleRefresh < 1 {
		cfg.IdleRefresh = 1
	}

	m := &Monitor{
		cfg:        cfg,
		source:     source,
		player:     player,
		status:     status,
		indicator:  indicator,
		filter:     filter,
		classifier: classifier,
		logger:     logger,
		forceReq:   make(chan forceRequest),
	}
	m.enabled.Store(true)
	return m, nil
}

// AddObserver registers an observer. Not safe to call after Run starts.
func (m *Monitor) AddObserver(obs Observer) {
	if obs != nil {
		m.observers = append(m.observers, obs)
	}
}

// Run executes the detection loop until ctx is cancelled. Recoverable
// faults (hardware, actuation) never terminate the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.status.Show(statusMonitoring, "")
	quietCycles := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-m.forceReq:
			result, err := m.runCycle(ctx, true)
			req.reply <- forceReply{result: result, err: err}
			continue
		default:
		}

		if !m.enabled.Load() {
			// Paused by remote command: no sampling, stay responsive.
			if !m.sleep(ctx, 100*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		result, err := m.runCycle(ctx, false)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return ctx.Err()
		case errors.Is(err, audio.ErrHardware):
			// Degrade to a safe state: report, skip the cycle, retry.
			m.logger.Warn("sampling fault, skipping cycle", "error", err)
			m.status.Show(statusMicFault, "")
		case err != nil:
			m.logger.Error("detection cycle failed", "error", err)
		case result.Crying:
			m.alert(ctx)
			quietCycles = 0
		default:
			quietCycles++
			if quietCycles%m.cfg.IdleRefresh == 0 {
				m.status.Show(statusMonitoring, "")
			}
		}

		if !m.sleep(ctx, m.cfg.SamplingInterval) {
			return ctx.Err()
		}
	}
}

// runCycle performs one acquire → filter → classify pass. The window
// buffer is cycle-scoped and released as soon as the cycle ends.
func (m *Monitor) runCycle(ctx context.Context, forced bool) (CycleResult, error) {
	window, err := m.source.AcquireWindow(ctx)
	if err != nil {
		return CycleResult{}, err
	}

	// Fresh delay state per window: each verdict is a pure function of
	// its own window.
	m.filter.Reset()
	m.filter.ProcessWindow(window)

	energy, crying, err := m.classifier.Classify(window)
	if err != nil {
		return CycleResult{}, err
	}

	result := CycleResult{
		Time:   time.Now(),
		Energy: energy,
		Crying: crying,
		Forced: forced,
	}

	m.logger.Debug("cycle classified", "energy", energy, "crying", crying, "forced", forced)

	for _, obs := range m.observers {
		obs.OnCycle(result)
	}

	return result, nil
}

// alert runs the ALERTING state: status first, then the melody as the
// sole foreground activity until it ends or the interrupt fires.
func (m *Monitor) alert(ctx context.Context) {
	m.state.Store(int32(StateAlerting))
	m.status.Show(statusCrying, "")
	m.indicator.Blink(5, 100*time.Millisecond)

	interrupted, err := m.player.PlayMelody(ctx)
	if err != nil {
		// A failure to alert must not stop monitoring.
		m.logger.Warn("melody playback failed", "error", err)
		m.status.Show(statusPlayFault, "")
	} else if interrupted {
		m.logger.Info("melody interrupted")
	}

	m.state.Store(int32(StateIdle))
	m.status.Show(statusMonitoring, "")
}

// sleep waits for d or until ctx is cancelled; returns false on cancel.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Interrupt is the button signal: stop the melody at the next poll.
// Level-triggered and safe from any goroutine.
func (m *Monitor) Interrupt() {
	m.player.Stop()
}

// SetEnabled pauses or resumes monitoring.
func (m *Monitor) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// Enabled reports whether monitoring is active.
func (m *Monitor) Enabled() bool {
	return m.enabled.Load()
}

// State returns the current orchestrator state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// ForceCycle requests one classification cycle from the loop goroutine
// and waits for its result. Works while monitoring is paused.
func (m *Monitor) ForceCycle(ctx context.Context) (CycleResult, error) {
	req := forceRequest{reply: make(chan forceReply, 1)}
	select {
	case m.forceReq <- req:
	case <-ctx.Done():
		return CycleResult{}, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.result, rep.err
	case <-ctx.Done():
		return CycleResult{}, ctx.Err()
	}
}

// Threshold returns the configured energy threshold.
func (m *Monitor) Threshold() float64 {
	return m.classifier.Threshold()
}

type nopStatus struct{}

func (nopStatus) Show(line1, line2 string) {}

type nopIndicator struct{}

func (nopIndicator) Blink(times int, period time.Duration) {}
