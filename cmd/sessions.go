// cmd/sessions.go
package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gfalqueto/crywatch/internal/archive"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived monitoring sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := viper.GetString("archive.path")
		if dbPath == "" {
			return fmt.Errorf("archive.path is not configured")
		}

		sessions, err := archive.ListSessions(cmd.Context(), dbPath)
		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("no archived sessions")
			return nil
		}

		for _, s := range sessions {
			fmt.Printf("%s  started %s  %d cycles, %d detections\n",
				s.ID[:8], humanize.Time(s.StartedAt), s.Cycles, s.Detections)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
