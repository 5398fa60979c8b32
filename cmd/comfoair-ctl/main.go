// Comfoair-ctl is a control utility for Zehnder ComfoAir ventilation
// units with a CC-Ease control panel.
//
// It talks the unit's binary RS-232 protocol over a local serial port or a
// serial-over-TCP bridge, and provides fan speed control, clock setting,
// keypad emulation, version queries and a live monitoring dashboard.
//
// Usage:
//
//	comfoair-ctl [command] [flags]
//
// See 'comfoair-ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hvactools/comfoair/internal/logging"
	"github.com/hvactools/comfoair/internal/version"
)

func main() {
	logging.InitializeFromEnv()
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "comfoair-ctl",
	Short: "ComfoAir ventilation unit control utility",
	Long: `A standalone utility for Zehnder ComfoAir ventilation units.

Controls fan speed, clock and keypad over the unit's binary serial
protocol, queries version information, and shows a live dashboard of
temperatures and airflow. Works over a local serial port or a
serial-over-TCP bridge (ser2net, ESPHome stream server).`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("comfoair-ctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
