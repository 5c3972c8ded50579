package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds a 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "polarble",
	Short: "Polar biosensor streaming tool",
	Long: `Stream physiological data from a Polar chest-strap sensor over
Bluetooth Low Energy:

- Scan and discover nearby Polar sensors
- Negotiate the PMD measurement protocol and stream ECG and accelerometer
  samples to an output sink
- Optionally stream standard heart rate notifications alongside
- Read the sensor battery level on demand

Measurement commands, frame decoding, and the connection state machine
follow the Polar Measurement Data (PMD) protocol as implemented by H10
class sensors.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", formatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(batteryCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration file")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
