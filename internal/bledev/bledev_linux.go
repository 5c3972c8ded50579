//go:build linux

package bledev

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// New creates the host BLE adapter.
func New() (ble.Device, error) {
	return linux.NewDevice()
}
