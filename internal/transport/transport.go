// Package transport defines the contract the session layer expects from the
// wireless radio stack. The session never touches BLE APIs directly; it
// discovers a device, connects it into a Link, and exchanges raw frames.
// The blegatt subpackage provides the production implementation; tests
// substitute in-memory fakes.
package transport

import (
	"context"
	"errors"
)

// Sentinel errors for startup failures. All of them abort session startup
// immediately; there is no retry at this layer.
var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrNotConnected     = errors.New("not connected")
)

// Transport discovers nearby devices.
type Transport interface {
	// Discover scans until a device whose advertised name equals nameFilter
	// is seen or ctx expires. Returns ErrDeviceNotFound (possibly wrapped)
	// when the scan completes without a match.
	Discover(ctx context.Context, nameFilter string) (Device, error)
}

// Device is a discovered, not yet connected peripheral.
type Device interface {
	Name() string
	Address() string
	Connect(ctx context.Context) (Link, error)
}

// Link is an established connection. ResolveEndpoints must succeed before
// Subscribe or Write are used.
type Link interface {
	// ResolveEndpoints locates the service and its TX (device-to-host
	// notifications) and RX (host-to-device writes) characteristics.
	// Returns ErrEndpointNotFound (possibly wrapped) when any is missing.
	ResolveEndpoints(serviceUUID, txUUID, rxUUID string) error

	// Subscribe registers onFrame for every inbound notification on the TX
	// endpoint. The callback is invoked from the transport's delivery
	// context, one frame at a time, in arrival order; the buffer is only
	// valid for the duration of the call.
	Subscribe(onFrame func(frame []byte)) error

	// Write sends one frame to the RX endpoint.
	Write(frame []byte) error

	// Disconnect tears the connection down. Safe to call more than once.
	Disconnect() error
}
