package pmd_test

import (
	"testing"

	"github.com/markspan/PolarBLE/pmd"
	"github.com/stretchr/testify/require"
)

func TestStartECGLayout(t *testing.T) {
	cmd := pmd.DefaultCommands().StartECG()

	require.Len(t, cmd, 9)
	require.Equal(t, byte(0x02), cmd[0], "start opcode")
	require.Equal(t, []byte{0x00, 0x00}, cmd[1:3], "reserved bytes")
	require.Equal(t, byte(0x01), cmd[3], "PMD measurement type code")
	require.Equal(t, []byte{0x82, 0x00}, cmd[4:6], "ECG feature code, little-endian")
}

func TestStartACCLayout(t *testing.T) {
	cmd := pmd.DefaultCommands().StartACC()

	require.Len(t, cmd, 10)
	require.Equal(t, byte(0x02), cmd[0], "start opcode")
	require.Equal(t, []byte{0x00, 0x00}, cmd[1:3], "reserved bytes")
	require.Equal(t, byte(0x01), cmd[3], "PMD measurement type code")
	require.Equal(t, []byte{0x83, 0x00}, cmd[4:6], "ACC feature code, little-endian")
}

func TestStartCommandsAreFresh(t *testing.T) {
	// Each call returns a new slice so a caller cannot corrupt the table.
	table := pmd.DefaultCommands()
	a := table.StartECG()
	a[0] = 0xFF
	require.Equal(t, byte(0x02), table.StartECG()[0])
}

func TestStopCommands(t *testing.T) {
	table := pmd.DefaultCommands()

	stop := table.Stop(pmd.SignalECG)
	require.Equal(t, []byte{0x03, 0x00, 0x00, 0x01, 0x82, 0x00}, stop)

	stop = table.Stop(pmd.SignalACC)
	require.Equal(t, []byte{0x03, 0x00, 0x00, 0x01, 0x83, 0x00}, stop)

	require.Nil(t, table.Stop(pmd.SignalHR))
}
