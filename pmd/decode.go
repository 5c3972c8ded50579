package pmd

import "encoding/binary"

// Measurement type discriminator in byte 0 of a data frame. Other values
// (control ack echoes and measurement types we did not start) decode to an
// empty batch.
const (
	measurementTypeECG = 0x00
	measurementTypeACC = 0x02
)

// Every data frame starts with a 10-byte header: measurement type, 64-bit
// little-endian timestamp in nanoseconds, and a frame type byte.
const frameHeaderLen = 10

const ecgSampleLen = 3

// Decode turns one raw notification payload into a batch of sample frames.
// It is pure and never fails: truncated input is expected when the link
// chunks frames, so everything decodable is decoded and the remainder is
// silently discarded.
func Decode(raw []byte) SampleBatch {
	if len(raw) == 0 {
		return SampleBatch{Signal: SignalUnknown}
	}
	switch raw[0] {
	case measurementTypeECG:
		return decodeECG(raw)
	case measurementTypeACC:
		return decodeACC(raw)
	default:
		return SampleBatch{Signal: SignalUnknown}
	}
}

// Timestamp returns the frame's 64-bit little-endian timestamp in
// nanoseconds, if the header is complete.
func Timestamp(raw []byte) (uint64, bool) {
	if len(raw) < frameHeaderLen {
		return 0, false
	}
	return binary.LittleEndian.Uint64(raw[1:9]), true
}

func decodeECG(raw []byte) SampleBatch {
	batch := SampleBatch{Signal: SignalECG}
	if len(raw) < frameHeaderLen {
		return batch
	}
	payload := raw[frameHeaderLen:]
	batch.Frames = make([]SampleFrame, 0, len(payload)/ecgSampleLen)
	for off := 0; off+ecgSampleLen <= len(payload); off += ecgSampleLen {
		v := ReadSigned(payload[off : off+ecgSampleLen])
		batch.Frames = append(batch.Frames, SampleFrame{
			Signal: SignalECG,
			Values: []int32{v},
		})
	}
	return batch
}

func decodeACC(raw []byte) SampleBatch {
	batch := SampleBatch{Signal: SignalACC}
	if len(raw) < frameHeaderLen {
		return batch
	}
	bits := accResolutionBits(raw[9])
	if bits == 0 {
		return batch
	}
	bytesPerAxis := bits / 8
	step := 3 * bytesPerAxis
	payload := raw[frameHeaderLen:]
	batch.Frames = make([]SampleFrame, 0, len(payload)/step)
	for off := 0; off+step <= len(payload); off += step {
		x := ReadSigned(payload[off : off+bytesPerAxis])
		y := ReadSigned(payload[off+bytesPerAxis : off+2*bytesPerAxis])
		z := ReadSigned(payload[off+2*bytesPerAxis : off+3*bytesPerAxis])
		batch.Frames = append(batch.Frames, SampleFrame{
			Signal: SignalACC,
			Values: []int32{x, y, z},
		})
	}
	return batch
}

// accResolutionBits maps the frame type field of an ACC frame header to the
// bits-per-axis resolution it announces.
func accResolutionBits(frameType byte) int {
	switch frameType {
	case 0x00:
		return 8
	case 0x01:
		return 16
	case 0x02:
		return 24
	default:
		return 0
	}
}

// ReadSigned decodes a little-endian two's-complement integer of 1, 2 or 3
// bytes. Other widths return 0.
func ReadSigned(b []byte) int32 {
	switch len(b) {
	case 1:
		return int32(int8(b[0]))
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 3:
		return SignExtend24(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
	default:
		return 0
	}
}

// SignExtend24 interprets the low 24 bits of v as a two's-complement value:
// if bit 23 is set, all higher bits are set in the result.
func SignExtend24(v uint32) int32 {
	if v&0x800000 != 0 {
		v |= 0xff000000
	}
	return int32(v)
}
