// internal/display/console.go
// Package display provides desktop stand-ins for the status panel and
// the status LED. The detection core only sees the narrow sink
// interfaces, so any concrete panel driver can replace these.
package display

import (
	"log/slog"
	"strings"
	"time"
)

// Console shows the two status lines as log records.
type Console struct {
	logger *slog.Logger
}

// NewConsole creates a console status sink.
func NewConsole(logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{logger: logger}
}

// Show renders the two status lines. Never blocks.
func (c *Console) Show(line1, line2 string) {
	msg := line1
	if line2 != "" {
		msg = strings.TrimSpace(line1 + " " + line2)
	}
	c.logger.Info("status", "display", msg)
}

// Lamp renders LED blink patterns as log records. Blink durations are
// honored so the alert pattern paces like the hardware LED did.
type Lamp struct {
	logger *slog.Logger
}

// NewLamp creates a console indicator.
func NewLamp(logger *slog.Logger) *Lamp {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lamp{logger: logger}
}

// Blink emits the blink pattern.
func (l *Lamp) Blink(times int, period time.Duration) {
	l.logger.Debug("led blink", "times", times, "period", period)
	for i := 0; i < times; i++ {
		time.Sleep(period)
	}
}
