// Package dispatch forwards decoded sample batches to per-signal output
// channels on an external stream sink. Sink failures are isolated per push:
// a broken sink never tears down the notification path.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/markspan/PolarBLE/pmd"
)

// SampleFormat describes the value encoding pushed to a sink channel.
type SampleFormat int

const (
	FormatFloat32 SampleFormat = iota
	FormatInt32
)

// ChannelHandle is an opaque per-channel token issued by the sink.
type ChannelHandle any

// Sink is the external stream consumer. Implementations must tolerate
// PushSample being called from the session's decode goroutine.
type Sink interface {
	// OpenChannel registers a named output channel for one signal type.
	OpenChannel(name string, signal pmd.SignalType, channelCount int, nominalRateHz float64, format SampleFormat) (ChannelHandle, error)
	// PushSample forwards one fixed-length sample to an open channel.
	PushSample(handle ChannelHandle, values []float64) error
	// Close releases the sink.
	Close() error
}

// Dispatcher routes sample batches to the sink, opening one channel per
// signal type per session on first use. ECG and ACC are independent
// channels with independent ordering; within a channel, sample order
// mirrors decode order.
type Dispatcher struct {
	sink   Sink
	name   string
	logger *logrus.Logger

	mu       sync.Mutex
	channels *orderedmap.OrderedMap[pmd.SignalType, ChannelHandle]
}

// New creates a Dispatcher pushing to sink. name prefixes the sink channel
// names, typically the advertised device name.
func New(sink Sink, name string, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{
		sink:     sink,
		name:     name,
		logger:   logger,
		channels: orderedmap.New[pmd.SignalType, ChannelHandle](),
	}
}

// Dispatch forwards every frame of the batch, in order, to the channel
// registered for the batch's signal type. A failed push is logged and
// skipped; subsequent frames and batches still flow.
func (d *Dispatcher) Dispatch(batch pmd.SampleBatch) {
	if batch.Empty() {
		return
	}

	handle, err := d.channel(batch.Signal)
	if err != nil {
		d.logger.WithError(err).WithField("signal", batch.Signal.String()).Warn("Failed to open sink channel, batch dropped")
		return
	}

	for _, frame := range batch.Frames {
		values := make([]float64, len(frame.Values))
		for i, v := range frame.Values {
			values[i] = float64(v)
		}
		if err := d.sink.PushSample(handle, values); err != nil {
			d.logger.WithError(err).WithField("signal", batch.Signal.String()).Warn("Sink push failed, sample skipped")
		}
	}
}

// channel returns the open handle for a signal type, opening it on first
// use. The registry keeps insertion order so channels close in the order
// they were opened.
func (d *Dispatcher) channel(signal pmd.SignalType) (ChannelHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if handle, ok := d.channels.Get(signal); ok {
		return handle, nil
	}
	handle, err := d.sink.OpenChannel(
		fmt.Sprintf("%s-%s", d.name, signal),
		signal,
		signal.ChannelCount(),
		signal.NominalRateHz(),
		FormatFloat32,
	)
	if err != nil {
		return nil, err
	}
	d.channels.Set(signal, handle)
	d.logger.WithFields(logrus.Fields{
		"signal":   signal.String(),
		"channels": signal.ChannelCount(),
		"rate_hz":  signal.NominalRateHz(),
	}).Info("Opened sink channel")
	return handle, nil
}

// Close releases the sink. Open channels are implicitly released with it.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pair := d.channels.Oldest(); pair != nil; pair = pair.Next() {
		d.logger.WithField("signal", pair.Key.String()).Debug("Closing sink channel")
	}
	d.channels = orderedmap.New[pmd.SignalType, ChannelHandle]()
	return d.sink.Close()
}
