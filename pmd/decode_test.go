package pmd_test

import (
	"testing"

	"github.com/markspan/PolarBLE/pmd"
	"github.com/stretchr/testify/require"
)

// ecgFrame builds a raw ECG notification: type byte, 8-byte timestamp,
// frame type byte, then the given payload.
func ecgFrame(payload ...byte) []byte {
	header := []byte{0x00, 1, 2, 3, 4, 5, 6, 7, 8, 0x00}
	return append(header, payload...)
}

// accFrame builds a raw ACC notification with the given frame type byte.
func accFrame(frameType byte, payload ...byte) []byte {
	header := []byte{0x02, 1, 2, 3, 4, 5, 6, 7, 8, frameType}
	return append(header, payload...)
}

func TestDecodeECG(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []int32
	}{
		{
			name: "positive boundary value",
			raw:  ecgFrame(0xFF, 0xFF, 0x7F),
			want: []int32{8388607},
		},
		{
			name: "negative boundary value",
			raw:  ecgFrame(0x00, 0x00, 0x80),
			want: []int32{-8388608},
		},
		{
			name: "multiple samples in byte offset order",
			raw:  ecgFrame(0x01, 0x00, 0x00, 0x02, 0x00, 0x00, 0xFF, 0xFF, 0xFF),
			want: []int32{1, 2, -1},
		},
		{
			name: "trailing partial sample discarded",
			raw:  ecgFrame(0x05, 0x00, 0x00, 0xAA, 0xBB),
			want: []int32{5},
		},
		{
			name: "payload of only partial sample",
			raw:  ecgFrame(0xAA),
			want: nil,
		},
		{
			name: "empty payload",
			raw:  ecgFrame(),
			want: nil,
		},
		{
			name: "truncated header",
			raw:  []byte{0x00, 1, 2, 3},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := pmd.Decode(tt.raw)
			require.Equal(t, pmd.SignalECG, batch.Signal)
			require.Len(t, batch.Frames, len(tt.want))
			for i, frame := range batch.Frames {
				require.Equal(t, pmd.SignalECG, frame.Signal)
				require.Equal(t, []int32{tt.want[i]}, frame.Values)
			}
		})
	}
}

func TestDecodeECGFrameCount(t *testing.T) {
	// A payload whose length is a multiple of 3 yields exactly length/3
	// frames.
	payload := make([]byte, 3*73)
	batch := pmd.Decode(ecgFrame(payload...))
	require.Len(t, batch.Frames, 73)
}

func TestDecodeACC(t *testing.T) {
	tests := []struct {
		name      string
		frameType byte
		payload   []byte
		want      [][]int32
	}{
		{
			name:      "16 bit resolution",
			frameType: 0x01,
			payload:   []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00},
			want:      [][]int32{{1, 2, 3}},
		},
		{
			name:      "16 bit negative axes",
			frameType: 0x01,
			payload:   []byte{0xFF, 0xFF, 0x00, 0x80, 0xFF, 0x7F},
			want:      [][]int32{{-1, -32768, 32767}},
		},
		{
			name:      "8 bit resolution",
			frameType: 0x00,
			payload:   []byte{0x01, 0xFF, 0x7F},
			want:      [][]int32{{1, -1, 127}},
		},
		{
			name:      "24 bit resolution",
			frameType: 0x02,
			payload:   []byte{0xFF, 0xFF, 0x7F, 0x00, 0x00, 0x80, 0x01, 0x00, 0x00},
			want:      [][]int32{{8388607, -8388608, 1}},
		},
		{
			name:      "trailing partial sample discarded",
			frameType: 0x01,
			payload:   []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00},
			want:      [][]int32{{1, 2, 3}},
		},
		{
			name:      "unknown frame type yields nothing",
			frameType: 0x07,
			payload:   []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00},
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := pmd.Decode(accFrame(tt.frameType, tt.payload...))
			require.Equal(t, pmd.SignalACC, batch.Signal)
			require.Len(t, batch.Frames, len(tt.want))
			for i, frame := range batch.Frames {
				require.Equal(t, tt.want[i], frame.Values)
			}
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	batch := pmd.Decode([]byte{0x7F, 1, 2, 3, 4, 5, 6, 7, 8, 0, 1, 2, 3})
	require.True(t, batch.Empty())
	require.Equal(t, pmd.SignalUnknown, batch.Signal)
}

func TestDecodeEmpty(t *testing.T) {
	for _, raw := range [][]byte{nil, {}} {
		batch := pmd.Decode(raw)
		require.True(t, batch.Empty())
		require.Equal(t, pmd.SignalUnknown, batch.Signal)
	}
}

func TestTimestamp(t *testing.T) {
	raw := ecgFrame(0x01, 0x02, 0x03)
	ts, ok := pmd.Timestamp(raw)
	require.True(t, ok)
	// Bytes 1-8 little-endian.
	require.Equal(t, uint64(0x0807060504030201), ts)

	_, ok = pmd.Timestamp([]byte{0x00, 0x01})
	require.False(t, ok)
}

func TestSignExtend24(t *testing.T) {
	tests := []struct {
		in   uint32
		want int32
	}{
		{0x000000, 0},
		{0x000001, 1},
		{0x7FFFFF, 8388607},
		{0x800000, -8388608},
		{0xFFFFFF, -1},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, pmd.SignExtend24(tt.in))
	}
}

func TestReadSigned(t *testing.T) {
	require.Equal(t, int32(-1), pmd.ReadSigned([]byte{0xFF}))
	require.Equal(t, int32(-1), pmd.ReadSigned([]byte{0xFF, 0xFF}))
	require.Equal(t, int32(-1), pmd.ReadSigned([]byte{0xFF, 0xFF, 0xFF}))
	require.Equal(t, int32(0x0201), pmd.ReadSigned([]byte{0x01, 0x02}))
	require.Equal(t, int32(0), pmd.ReadSigned(nil))
	require.Equal(t, int32(0), pmd.ReadSigned([]byte{1, 2, 3, 4}))
}
