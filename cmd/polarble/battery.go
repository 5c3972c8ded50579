package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/markspan/PolarBLE/session"
)

// batteryCmd represents the battery command
var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Read a sensor's battery level",
	Long: `Connect to a Polar sensor, read the standard battery service level,
and disconnect. No measurement streams are started.`,
	RunE: runBattery,
}

var (
	batteryAddress     string
	batteryScanTimeout time.Duration
	batteryVerbose     bool
)

func init() {
	batteryCmd.Flags().StringVarP(&batteryAddress, "address", "a", "", "Sensor address (skips scanning)")
	batteryCmd.Flags().DurationVar(&batteryScanTimeout, "scan-timeout", 15*time.Second, "How long to scan for a sensor before giving up")
	batteryCmd.Flags().BoolVar(&batteryVerbose, "verbose", false, "Enable debug logging")
}

func runBattery(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if batteryAddress != "" {
		cfg.Sensor.Address = batteryAddress
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	opts := session.DefaultOptions()
	opts.ConnectTimeout = cfg.Timeouts.Connect()
	opts.DiscoverTimeout = cfg.Timeouts.Discover()
	opts.WriteTimeout = cfg.Timeouts.Write()

	sess := session.New(nil, logger, opts)
	handle, err := resolveSensor(ctx, cfg, sess, logger, batteryScanTimeout)
	if err != nil {
		return err
	}

	if err := sess.Attach(ctx, handle); err != nil {
		return err
	}
	defer sess.Disconnect()

	level, err := sess.BatteryLevel()
	if err != nil {
		return fmt.Errorf("failed to read battery level: %w", err)
	}

	c := color.New(color.FgGreen)
	switch {
	case level < 20:
		c = color.New(color.FgRed)
	case level < 50:
		c = color.New(color.FgYellow)
	}
	fmt.Printf("%s (%s): battery %s\n", handle.Name, handle.Address, c.Sprintf("%d%%", level))
	return nil
}
