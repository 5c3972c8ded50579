package main

import (
	"errors"

	"github.com/markspan/PolarBLE/session"
)

// formatUserError maps internal errors to actionable messages for the
// terminal.
func formatUserError(err error) string {
	var serr *session.SessionError
	if errors.As(err, &serr) {
		switch serr.Reason {
		case session.ReasonConnect:
			return "could not connect to the sensor - check that it is worn and in range: " + serr.Error()
		case session.ReasonProtocolMismatch:
			return "the device does not speak the PMD protocol - is it a Polar H10 class sensor? " + serr.Error()
		case session.ReasonConfig:
			return "the sensor rejected the measurement configuration: " + serr.Error()
		}
	}
	return err.Error()
}
