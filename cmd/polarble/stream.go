package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/markspan/PolarBLE/dispatch"
	"github.com/markspan/PolarBLE/session"
)

// streamCmd represents the stream command
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream ECG and accelerometer data from a sensor",
	Long: `Connect to a Polar sensor, negotiate the PMD measurement protocol,
and stream decoded samples until interrupted.

Without --address the first sensor matching the configured name prefix is
used. ECG and accelerometer streams are both started by default; disable
either with --no-ecg / --no-acc, and add standard heart rate notifications
with --hr.`,
	RunE: runStream,
}

var (
	streamAddress     string
	streamNoECG       bool
	streamNoACC       bool
	streamHR          bool
	streamScanTimeout time.Duration
	streamVerbose     bool
)

func init() {
	streamCmd.Flags().StringVarP(&streamAddress, "address", "a", "", "Sensor address (skips scanning)")
	streamCmd.Flags().BoolVar(&streamNoECG, "no-ecg", false, "Do not start the ECG stream")
	streamCmd.Flags().BoolVar(&streamNoACC, "no-acc", false, "Do not start the accelerometer stream")
	streamCmd.Flags().BoolVar(&streamHR, "hr", false, "Also stream standard heart rate notifications")
	streamCmd.Flags().DurationVar(&streamScanTimeout, "scan-timeout", 15*time.Second, "How long to scan for a sensor before giving up")
	streamCmd.Flags().BoolVar(&streamVerbose, "verbose", false, "Enable debug logging")
}

func runStream(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if streamAddress != "" {
		cfg.Sensor.Address = streamAddress
	}
	if streamNoECG {
		cfg.Stream.ECG = false
	}
	if streamNoACC {
		cfg.Stream.ACC = false
	}
	if streamHR {
		cfg.Stream.HeartRate = true
	}
	if !cfg.Stream.ECG && !cfg.Stream.ACC && !cfg.Stream.HeartRate {
		return fmt.Errorf("nothing to stream: ECG, ACC and heart rate are all disabled")
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sink := NewConsoleSink(time.Second)
	dispatcher := dispatch.New(sink, cfg.Sensor.NamePrefix, logger)
	defer dispatcher.Close()

	opts := session.DefaultOptions()
	opts.ConnectTimeout = cfg.Timeouts.Connect()
	opts.DiscoverTimeout = cfg.Timeouts.Discover()
	opts.WriteTimeout = cfg.Timeouts.Write()
	opts.QueueSize = cfg.Stream.QueueSize
	opts.StartECG = cfg.Stream.ECG
	opts.StartACC = cfg.Stream.ACC

	sess := session.New(dispatcher, logger, opts)
	progress := newConnectionProgress(sess.Events())
	go progress.Run()

	handle, err := resolveSensor(ctx, cfg, sess, logger, streamScanTimeout)
	if err != nil {
		return err
	}
	fmt.Printf("Connecting to %s (%s)...\n", handle.Name, handle.Address)

	if err := sess.Connect(ctx, handle); err != nil {
		return err
	}
	defer sess.Disconnect()

	if cfg.Stream.HeartRate {
		if err := sess.StartHeartRate(); err != nil {
			logger.WithError(err).Warn("Heart rate stream unavailable")
		}
	}

	// Stream until Ctrl+C.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	select {
	case <-sigc:
		fmt.Println("\nStopping...")
	case <-ctx.Done():
	}
	return nil
}
