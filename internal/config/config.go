// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	AppName       = "crywatch"
	ConfigType    = "yaml"
	DefaultConfig = `# Crywatch Configuration

# Audio capture
device_index: -1        # -1 for default capture device
sample_rate: 16000      # Sample rate in Hz
channels: 1             # Number of channels (1=mono)
buffer_size: 512        # Frames per device callback

# Detection window
window_samples: 32000   # Samples per detection window (~2s at 16kHz)
sampling_interval: 2s   # Pause between detection cycles
idle_refresh: 5         # Refresh the idle status every N quiet cycles

# Bandpass filter (precomputed offline, 4500-6000 Hz at 16kHz)
# Coefficients are normalized (a0 = 1) and never recomputed at runtime.
filter:
  b0: 0.2173957991219648
  b1: 0.0
  b2: -0.2173957991219648
  a1: 0.8695831964878592
  a2: 0.5652084017560705

# Energy threshold for the cry verdict (normalized float samples)
threshold: 0.001

# Melody playback
melody:
  volume: 1             # Percent, 0-100
  notes:                # "NAME:SECONDS" per note
    - "C4:0.5"
    - "D4:0.5"
    - "E4:0.5"
    - "F4:0.5"
    - "G4:0.5"
    - "G4:0.5"
    - "A4:0.5"
    - "G4:1.0"
    - "G4:0.5"
    - "F4:0.5"
    - "E4:0.5"
    - "D4:0.5"
    - "E4:0.5"
    - "F4:0.5"
    - "G4:1.0"
    - "C4:0.5"
    - "D4:0.5"
    - "E4:0.5"
    - "F4:0.5"
    - "G4:0.5"
    - "G4:0.5"
    - "A4:0.5"
    - "G4:1.0"
    - "G4:0.5"
    - "F4:0.5"
    - "E4:0.5"
    - "D4:0.5"
    - "C4:0.5"
    - "C4:1.0"

# Remote command/notification channel (optional)
mqtt:
  enabled: false
  broker: "localhost:1883"
  topic_prefix: "crywatch"
  client_id: ""         # Empty for a generated ID

# Detection archive (optional)
archive:
  enabled: false
  path: "crywatch.db"

# Output
debug: false            # Enable debug output
`
)

// FilterSettings holds the five normalized biquad coefficients.
type FilterSettings struct {
	B0 float64 `mapstructure:"b0"`
	B1 float64 `mapstructure:"b1"`
	B2 float64 `mapstructure:"b2"`
	A1 float64 `mapstructure:"a1"`
	A2 float64 `mapstructure:"a2"`
}

// MelodySettings holds the alert melody configuration.
type MelodySettings struct {
	Volume int      `mapstructure:"volume"`
	Notes  []string `mapstructure:"notes"`
}

// MQTTSettings holds the remote channel configuration.
type MQTTSettings struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
}

// ArchiveSettings holds the detection archive configuration.
type ArchiveSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Settings holds all application configuration
type Settings struct {
	// Audio capture
	DeviceIndex int     `mapstructure:"device_index"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Channels    int     `mapstructure:"channels"`
	BufferSize  int     `mapstructure:"buffer_size"`

	// Detection window
	WindowSamples    int           `mapstructure:"window_samples"`
	SamplingInterval time.Duration `mapstructure:"sampling_interval"`
	IdleRefresh      int           `mapstructure:"idle_refresh"`

	// Detection
	Filter    FilterSettings `mapstructure:"filter"`
	Threshold float64        `mapstructure:"threshold"`

	// Collaborators
	Melody  MelodySettings  `mapstructure:"melody"`
	MQTT    MQTTSettings    `mapstructure:"mqtt"`
	Archive ArchiveSettings `mapstructure:"archive"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/crywatch/
func Init() error {
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 16000)
	viper.SetDefault("channels", 1)
	viper.SetDefault("buffer_size", 512)
	viper.SetDefault("window_samples", 32000)
	viper.SetDefault("sampling_interval", 2*time.Second)
	viper.SetDefault("idle_refresh", 5)
	viper.SetDefault("filter.b0", 0.2173957991219648)
	viper.SetDefault("filter.b1", 0.0)
	viper.SetDefault("filter.b2", -0.2173957991219648)
	viper.SetDefault("filter.a1", 0.8695831964878592)
	viper.SetDefault("filter.a2", 0.5652084017560705)
	viper.SetDefault("threshold", 0.001)
	viper.SetDefault("melody.volume", 1)
	viper.SetDefault("melody.notes", defaultMelody())
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "localhost:1883")
	viper.SetDefault("mqtt.topic_prefix", "crywatch")
	viper.SetDefault("mqtt.client_id", "")
	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.path", "crywatch.db")
	viper.SetDefault("debug", false)

	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// If no config exists anywhere, create a commented default in the
	// XDG config dir and read that.
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// defaultMelody is "Se essa rua fosse minha", the melody the original
// hardware played on detection.
func defaultMelody() []string {
	return []string{
		"C4:0.5", "D4:0.5", "E4:0.5", "F4:0.5", "G4:0.5",
		"G4:0.5", "A4:0.5", "G4:1.0", "G4:0.5", "F4:0.5",
		"E4:0.5", "D4:0.5", "E4:0.5", "F4:0.5", "G4:1.0",
		"C4:0.5", "D4:0.5", "E4:0.5", "F4:0.5", "G4:0.5",
		"G4:0.5", "A4:0.5", "G4:1.0", "G4:0.5", "F4:0.5",
		"E4:0.5", "D4:0.5", "C4:0.5", "C4:1.0",
	}
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges.
// A failure here is fatal at startup: the detection loop must never run
// against a nonsensical configuration.
func (s *Settings) Validate() error {
	var errs []error

	// Audio capture
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.Channels < 1 || s.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", s.Channels))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if s.BufferSize > 0 && s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}

	// Detection window
	if s.WindowSamples <= 0 {
		errs = append(errs, fmt.Errorf("window_samples must be positive, got %d", s.WindowSamples))
	}
	if s.SampleRate > 0 && s.WindowSamples > int(s.SampleRate)*10 {
		errs = append(errs, fmt.Errorf("window_samples must not exceed 10 seconds of audio, got %d", s.WindowSamples))
	}
	if s.SamplingInterval < 0 {
		errs = append(errs, fmt.Errorf("sampling_interval must not be negative, got %v", s.SamplingInterval))
	}
	if s.IdleRefresh < 1 {
		errs = append(errs, fmt.Errorf("idle_refresh must be at least 1, got %d", s.IdleRefresh))
	}

	// Filter stability: both poles must stay inside the unit circle
	if abs(s.Filter.A2) >= 1 || abs(s.Filter.A1) >= 1+s.Filter.A2 {
		errs = append(errs, fmt.Errorf("filter coefficients a1=%v a2=%v are outside the stability region", s.Filter.A1, s.Filter.A2))
	}
	if s.Filter.B0 == 0 && s.Filter.B1 == 0 && s.Filter.B2 == 0 {
		errs = append(errs, fmt.Errorf("filter numerator is all zero; the filter would mute the signal"))
	}

	// Detection threshold
	if s.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("threshold must be positive, got %v", s.Threshold))
	}

	// Melody
	if s.Melody.Volume < 0 || s.Melody.Volume > 100 {
		errs = append(errs, fmt.Errorf("melody.volume must be between 0 and 100, got %d", s.Melody.Volume))
	}
	if len(s.Melody.Notes) == 0 {
		errs = append(errs, fmt.Errorf("melody.notes must not be empty"))
	}

	// Remote channel
	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			errs = append(errs, fmt.Errorf("mqtt.broker must be set when mqtt is enabled"))
		}
		if s.MQTT.TopicPrefix == "" {
			errs = append(errs, fmt.Errorf("mqtt.topic_prefix must be set when mqtt is enabled"))
		}
	}

	// Archive
	if s.Archive.Enabled && s.Archive.Path == "" {
		errs = append(errs, fmt.Errorf("archive.path must be set when archive is enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
