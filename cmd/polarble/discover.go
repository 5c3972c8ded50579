package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/markspan/PolarBLE/pkg/config"
	"github.com/markspan/PolarBLE/scanner"
	"github.com/markspan/PolarBLE/session"
)

// loadConfig reads the YAML config named by --config, or returns defaults
// when the flag is unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// resolveSensor produces the peripheral to connect to: the configured
// address directly, or the first sensor a scan turns up. Scanning is
// stopped before the caller dials; scanning and an active session never
// interleave.
func resolveSensor(ctx context.Context, cfg *config.Config, sess *session.Session, logger *logrus.Logger, scanTimeout time.Duration) (scanner.PeripheralHandle, error) {
	if cfg.Sensor.Address != "" {
		return scanner.PeripheralHandle{
			Address:   cfg.Sensor.Address,
			Name:      cfg.Sensor.NamePrefix,
			FirstSeen: time.Now(),
		}, nil
	}

	sess.BeginScanning()
	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	s := scanner.New(logger)
	opts := scanner.DefaultOptions()
	opts.NamePrefix = cfg.Sensor.NamePrefix
	handles, err := s.Start(scanCtx, opts)
	if err != nil {
		sess.EndScanning()
		return scanner.PeripheralHandle{}, fmt.Errorf("failed to start scan: %w", err)
	}

	handle, ok := <-handles
	s.Stop()
	if !ok {
		sess.EndScanning()
		return scanner.PeripheralHandle{}, fmt.Errorf("no sensor matching %q found within %s", cfg.Sensor.NamePrefix, scanTimeout)
	}
	return handle, nil
}
