package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/markspan/PolarBLE/session"
)

const clearLineSequence = "\r\033[K"

// progressPhases maps session states to the short phase labels shown while
// a connection attempt is in flight.
var progressPhases = map[session.State]string{
	session.StateScanning:            "Scanning",
	session.StateConnecting:          "Connecting",
	session.StateDiscoveringServices: "Discovering services",
	session.StateConfiguring:         "Configuring measurements",
}

// connectionProgress renders session state transitions on one terminal
// line until the session either streams or terminates. Run consumes the
// event channel in the calling goroutine; callers usually run it aside.
type connectionProgress struct {
	events <-chan session.StateChange
	start  time.Time
}

func newConnectionProgress(events <-chan session.StateChange) *connectionProgress {
	return &connectionProgress{events: events, start: time.Now()}
}

func (p *connectionProgress) Run() {
	bold := color.New(color.Bold)
	for ev := range p.events {
		phase, ok := progressPhases[ev.To]
		if ok {
			fmt.Printf("%s%s... (%.1fs)", clearLineSequence, phase, time.Since(p.start).Seconds())
			continue
		}
		switch ev.To {
		case session.StateStreaming:
			fmt.Print(clearLineSequence)
			bold.Println("Streaming")
			return
		case session.StateFailed, session.StateDisconnected:
			fmt.Print(clearLineSequence)
			return
		}
	}
}
