package pmd

// Control point opcodes.
const (
	opStartMeasurement = 0x02
	opStopMeasurement  = 0x03
)

// Measurement type code carried in byte 3 of every control command.
const measurementTypePMD = 0x01

// Feature type codes, little-endian on the wire (bytes 4-5).
const (
	featureECG uint16 = 0x0082
	featureACC uint16 = 0x0083
)

// CommandTable is the explicit per-firmware-revision table of control point
// command bytes. Historical captures of H10 traffic disagree on ACC sample
// rate and on whether the resolution is hard coded or read back from the
// frame header; keeping one named table per revision makes the chosen bytes
// auditable instead of scattering magic literals.
//
// Command layout (spec'd by the PMD control point):
//
//	byte 0    start/stop opcode
//	bytes 1-2 reserved
//	byte 3    measurement type code (PMD = 0x01)
//	bytes 4-5 feature type code, little-endian
//	byte 6    resolution index
//	byte 7    sample rate index
//	bytes 8+  range / frame type indexes (length varies by measurement)
type CommandTable struct {
	Revision string

	ECGResolutionIndex byte
	ECGSampleRateIndex byte
	ECGFrameTypeIndex  byte

	ACCResolutionIndex byte
	ACCSampleRateIndex byte
	ACCRangeIndex      byte
	ACCFrameTypeIndex  byte
}

// DefaultCommands returns the command table for H10 firmware 3.x: ECG at
// 130 Hz / 14-bit resolution index, ACC at 200 Hz / 16-bit resolution with
// the 8G range index. TODO(markspan): validate the ACC sample rate index
// against hardware; captures show both 0x01 and 0x02 in the wild.
func DefaultCommands() CommandTable {
	return CommandTable{
		Revision:           "H10/3.x",
		ECGResolutionIndex: 0x01,
		ECGSampleRateIndex: 0x01,
		ECGFrameTypeIndex:  0x00,
		ACCResolutionIndex: 0x01,
		ACCSampleRateIndex: 0x02,
		ACCRangeIndex:      0x02,
		ACCFrameTypeIndex:  0x01,
	}
}

// StartECG returns the control command that starts the ECG stream.
func (t CommandTable) StartECG() []byte {
	return []byte{
		opStartMeasurement,
		0x00, 0x00,
		measurementTypePMD,
		byte(featureECG), byte(featureECG >> 8),
		t.ECGResolutionIndex,
		t.ECGSampleRateIndex,
		t.ECGFrameTypeIndex,
	}
}

// StartACC returns the control command that starts the accelerometer
// stream. ACC commands carry an extra range index before the frame type.
func (t CommandTable) StartACC() []byte {
	return []byte{
		opStartMeasurement,
		0x00, 0x00,
		measurementTypePMD,
		byte(featureACC), byte(featureACC >> 8),
		t.ACCResolutionIndex,
		t.ACCSampleRateIndex,
		t.ACCRangeIndex,
		t.ACCFrameTypeIndex,
	}
}

// Stop returns the control command that stops the given stream. Stopping an
// HR stream is not a PMD operation; Stop returns nil for it.
func (t CommandTable) Stop(signal SignalType) []byte {
	var feature uint16
	switch signal {
	case SignalECG:
		feature = featureECG
	case SignalACC:
		feature = featureACC
	default:
		return nil
	}
	return []byte{
		opStopMeasurement,
		0x00, 0x00,
		measurementTypePMD,
		byte(feature), byte(feature >> 8),
	}
}
