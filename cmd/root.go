// cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gfalqueto/crywatch/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "crywatch",
	Short: "Baby cry detector using bandpass filtering of microphone audio",
	Long: `Crywatch monitors a microphone, isolates the cry frequency band with a
fixed bandpass filter, and plays a lullaby when the band energy crosses
the configured threshold.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("threshold", "t", 0.001, "energy threshold for the cry verdict")
	rootCmd.PersistentFlags().DurationP("interval", "i", 2*time.Second, "pause between detection cycles")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	// Bind flags to viper
	viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("threshold", rootCmd.PersistentFlags().Lookup("threshold"))
	viper.BindPFlag("sampling_interval", rootCmd.PersistentFlags().Lookup("interval"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}
