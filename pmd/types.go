// Package pmd implements the Polar Measurement Data protocol: the command
// table written to the control point characteristic and the decoder for the
// binary frames streamed back over the data characteristic.
package pmd

import "fmt"

// PMD service and characteristic UUIDs shared by Polar H10-class sensors.
const (
	ServiceUUID      = "fb005c80-02e7-f387-1cad-8acd2d8df0c8"
	ControlPointUUID = "fb005c81-02e7-f387-1cad-8acd2d8df0c8"
	DataUUID         = "fb005c82-02e7-f387-1cad-8acd2d8df0c8"
)

// Standard GATT services used alongside the PMD protocol.
const (
	BatteryServiceUUID       = "180f"
	BatteryLevelUUID         = "2a19"
	HeartRateServiceUUID     = "180d"
	HeartRateMeasurementUUID = "2a37"
)

// SignalType identifies a measurement stream.
type SignalType int

const (
	// SignalUnknown is the zero value: a payload that is not a decodable
	// measurement stream, such as a control point ack echo.
	SignalUnknown SignalType = iota
	SignalECG
	SignalACC
	SignalHR
)

func (s SignalType) String() string {
	switch s {
	case SignalUnknown:
		return "unknown"
	case SignalECG:
		return "ecg"
	case SignalACC:
		return "acc"
	case SignalHR:
		return "hr"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// ChannelCount returns the number of values carried by one sample frame of
// this signal: 1 for ECG (µV), 3 for ACC (x, y, z), 1 for HR (bpm).
func (s SignalType) ChannelCount() int {
	switch s {
	case SignalACC:
		return 3
	case SignalECG, SignalHR:
		return 1
	default:
		return 0
	}
}

// NominalRateHz returns the nominal sample rate of the stream as configured
// by the default command table. HR is event-driven; the standard heart rate
// profile notifies about once per second.
func (s SignalType) NominalRateHz() float64 {
	switch s {
	case SignalECG:
		return 130
	case SignalACC:
		return 200
	case SignalHR:
		return 1
	default:
		return 0
	}
}

// SampleFrame is a single decoded measurement: one value for ECG, three for
// ACC. Values carry the raw signed sensor codes, unscaled.
type SampleFrame struct {
	Signal SignalType
	Values []int32
}

// SampleBatch holds the frames decoded from one notification, in byte
// offset order.
type SampleBatch struct {
	Signal SignalType
	Frames []SampleFrame
}

// Empty reports whether the batch carries no frames.
func (b SampleBatch) Empty() bool {
	return len(b.Frames) == 0
}
