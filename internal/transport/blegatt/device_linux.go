//go:build linux

package blegatt

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// newPlatformDevice opens the default HCI device.
func newPlatformDevice() (ble.Device, error) {
	return linux.NewDevice()
}
