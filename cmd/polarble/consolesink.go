package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/markspan/PolarBLE/dispatch"
	"github.com/markspan/PolarBLE/pmd"
)

// signalColors picks a stable color per signal type for the live readout.
var signalColors = map[pmd.SignalType]*color.Color{
	pmd.SignalECG: color.New(color.FgGreen),
	pmd.SignalACC: color.New(color.FgCyan),
	pmd.SignalHR:  color.New(color.FgRed),
}

// consoleChannel is the handle issued per signal type.
type consoleChannel struct {
	name   string
	signal pmd.SignalType

	count     int64
	last      []float64
	lastPrint time.Time
}

// ConsoleSink renders decoded samples in the terminal. A full ECG stream
// runs at 130 Hz, so the sink prints a rolling per-channel summary at most
// every printInterval instead of one line per sample.
type ConsoleSink struct {
	mu            sync.Mutex
	channels      []*consoleChannel
	printInterval time.Duration
}

// NewConsoleSink creates a console sink printing each channel at most once
// per interval.
func NewConsoleSink(interval time.Duration) *ConsoleSink {
	if interval <= 0 {
		interval = time.Second
	}
	return &ConsoleSink{printInterval: interval}
}

func (s *ConsoleSink) OpenChannel(name string, signal pmd.SignalType, channelCount int, nominalRateHz float64, format dispatch.SampleFormat) (dispatch.ChannelHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := &consoleChannel{name: name, signal: signal}
	s.channels = append(s.channels, ch)
	fmt.Printf("Opened channel %s (%d values @ %.0f Hz)\n", name, channelCount, nominalRateHz)
	return ch, nil
}

func (s *ConsoleSink) PushSample(handle dispatch.ChannelHandle, values []float64) error {
	ch, ok := handle.(*consoleChannel)
	if !ok {
		return fmt.Errorf("unknown channel handle %T", handle)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch.count++
	ch.last = values
	if time.Since(ch.lastPrint) < s.printInterval {
		return nil
	}
	ch.lastPrint = time.Now()

	c, ok := signalColors[ch.signal]
	if !ok {
		c = color.New(color.FgWhite)
	}
	c.Printf("%-8s", ch.signal.String())
	fmt.Printf(" samples=%-8d last=%v\n", ch.count, values)
	return nil
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.channels {
		fmt.Printf("Channel %s: %d samples\n", ch.name, ch.count)
	}
	s.channels = nil
	return nil
}
