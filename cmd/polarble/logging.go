package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// allowedLogLevels are the values accepted by --log-level; logrus knows
// more (trace, fatal) but the CLI keeps the surface small.
var allowedLogLevels = map[string]logrus.Level{
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
}

// configureLogger builds the logger for one command run. An explicit
// --log-level wins over the command's verbose flag; with neither set the
// logger only speaks on panics, keeping the terminal free for command
// output.
func configureLogger(cmd *cobra.Command, verboseFlagName string) (*logrus.Logger, error) {
	level := logrus.PanicLevel
	if name, _ := cmd.Flags().GetString("log-level"); name != "" {
		parsed, ok := allowedLogLevels[name]
		if !ok {
			return nil, fmt.Errorf("invalid log level %q (use debug, info, warn, or error)", name)
		}
		level = parsed
	} else if verbose, _ := cmd.Flags().GetBool(verboseFlagName); verbose {
		level = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
