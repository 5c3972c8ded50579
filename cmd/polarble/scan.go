package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/markspan/PolarBLE/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Polar sensors",
	Long: `Scan for Polar sensors advertising nearby and list them.

Each sensor is reported once, keyed by address. Use the address with the
stream or battery commands.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanName     string
	scanVerbose  bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration (0 to scan until interrupted)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringVarP(&scanName, "name", "n", "", "Advertised name substring to match (default from config)")
	scanCmd.Flags().BoolVar(&scanVerbose, "verbose", false, "Enable debug logging")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format %q: must be table or json", scanFormat)
	}

	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts := scanner.DefaultOptions()
	opts.NamePrefix = cfg.Sensor.NamePrefix
	if scanName != "" {
		opts.NamePrefix = scanName
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if scanDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, scanDuration)
		defer cancel()
	}

	// Ctrl+C ends the scan and prints what was found so far.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	go func() {
		select {
		case <-sigc:
			cancel()
		case <-ctx.Done():
		}
	}()

	s := scanner.New(logger)
	handles, err := s.Start(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to start scan: %w", err)
	}
	defer s.Stop()

	var found []scanner.PeripheralHandle
	for h := range handles {
		found = append(found, h)
	}

	if scanFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(found)
	}
	printHandleTable(found)
	return nil
}

func printHandleTable(handles []scanner.PeripheralHandle) {
	if len(handles) == 0 {
		fmt.Println("No sensors found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	header := color.New(color.Bold)
	header.Fprintln(w, "NAME\tADDRESS\tRSSI\tFIRST SEEN")
	for _, h := range handles {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", h.Name, h.Address, h.RSSI, h.FirstSeen.Format(time.TimeOnly))
	}
	w.Flush()
}
