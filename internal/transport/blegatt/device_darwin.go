//go:build darwin

package blegatt

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// newPlatformDevice opens a CoreBluetooth-backed device.
func newPlatformDevice() (ble.Device, error) {
	return darwin.NewDevice()
}
