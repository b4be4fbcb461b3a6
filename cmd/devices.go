// cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gfalqueto/crywatch/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		recorder := audio.New(audio.DefaultConfig())
		if err := recorder.Init(); err != nil {
			return err
		}
		defer recorder.Close()

		devices, err := recorder.ListDevices()
		if err != nil {
			return err
		}

		if len(devices) == 0 {
			fmt.Println("no capture devices found")
			return nil
		}

		for i, info := range devices {
			fmt.Printf("%3d: %s\n", i, info.Name())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
