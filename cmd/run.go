// cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gfalqueto/crywatch/internal/archive"
	"github.com/gfalqueto/crywatch/internal/audio"
	"github.com/gfalqueto/crywatch/internal/config"
	"github.com/gfalqueto/crywatch/internal/detect"
	"github.com/gfalqueto/crywatch/internal/display"
	"github.com/gfalqueto/crywatch/internal/dsp"
	"github.com/gfalqueto/crywatch/internal/melody"
	"github.com/gfalqueto/crywatch/internal/remote"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the cry detection loop",
	Long: `Continuously acquire ~2s sample windows from the microphone, bandpass
filter them, and play the alert melody whenever the band energy crosses
the threshold. Ctrl+C stops monitoring; the configured MQTT command
channel can pause, resume, and interrupt the melody remotely.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return err
	}

	logger := newLogger(settings.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Filter + classifier
	coeffs := dsp.Coefficients{
		B0: settings.Filter.B0, B1: settings.Filter.B1, B2: settings.Filter.B2,
		A1: settings.Filter.A1, A2: settings.Filter.A2,
	}
	filter, err := dsp.NewBandpassFilter(coeffs)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	classifier, err := dsp.NewClassifier(settings.Threshold)
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	// Sample source
	recorder := audio.New(audio.Config{
		DeviceIndex:   settings.DeviceIndex,
		SampleRate:    uint32(settings.SampleRate),
		Channels:      uint32(settings.Channels),
		BufferSize:    uint32(settings.BufferSize),
		WindowSamples: settings.WindowSamples,
	})
	if err := recorder.Init(); err != nil {
		return fmt.Errorf("audio init: %w", err)
	}
	defer recorder.Close()

	if err := recorder.Start(ctx); err != nil {
		return fmt.Errorf("audio start: %w", err)
	}

	// Actuation sink
	notes, err := melody.Parse(settings.Melody.Notes)
	if err != nil {
		return fmt.Errorf("melody: %w", err)
	}
	synth, err := melody.NewSynth(uint32(settings.SampleRate), settings.Melody.Volume)
	if err != nil {
		return fmt.Errorf("synth: %w", err)
	}
	defer synth.Close()
	player, err := melody.NewPlayer(synth, notes)
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}

	// Status sinks
	status := display.NewConsole(logger)
	lamp := display.NewLamp(logger)

	monitor, err := detect.New(detect.Config{
		SamplingInterval: settings.SamplingInterval,
		IdleRefresh:      settings.IdleRefresh,
	}, recorder, player, status, lamp, filter, classifier, logger)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	// Optional collaborators
	sessionID := ""
	if settings.Archive.Enabled {
		store := archive.NewStore(settings.Archive.Path, logger)
		defer store.Close()
		monitor.AddObserver(store)
		sessionID = store.SessionID()
		logger.Info("archive enabled", "path", settings.Archive.Path, "session", sessionID)
	}

	if settings.MQTT.Enabled {
		dispatcher := remote.NewDispatcher(monitor, synth, status)
		bridge := remote.NewBridge(remote.Config{
			Broker:      settings.MQTT.Broker,
			TopicPrefix: settings.MQTT.TopicPrefix,
			ClientID:    settings.MQTT.ClientID,
		}, dispatcher, sessionID, logger)

		if err := bridge.Connect(ctx); err != nil {
			// Remote control is optional; monitoring must not depend on it.
			logger.Warn("mqtt unavailable, continuing without remote control", "error", err)
		} else {
			defer bridge.Close()
			monitor.AddObserver(bridge)
		}
	}

	logger.Info("monitoring started",
		"sample_rate", settings.SampleRate,
		"window_samples", settings.WindowSamples,
		"threshold", settings.Threshold)

	if err := monitor.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("monitoring stopped")
	return nil
}

// newLogger builds the application logger; debug switches the level.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
