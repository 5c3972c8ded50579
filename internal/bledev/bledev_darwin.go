//go:build darwin

package bledev

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// New creates the host BLE adapter.
func New() (ble.Device, error) {
	return darwin.NewDevice()
}
