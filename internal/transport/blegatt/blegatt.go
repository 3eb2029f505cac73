// Package blegatt implements the transport contract on top of go-ble.
// It is intentionally thin: discovery, connect, GATT endpoint lookup, and
// raw frame exchange. Everything with temporal semantics lives above it.
package blegatt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/openemg/emglink/internal/transport"
)

// Transport discovers and connects BLE peripherals.
type Transport struct {
	logger *logrus.Logger

	mu  sync.Mutex
	dev ble.Device
}

// New creates a BLE transport. The underlying HCI device is opened lazily
// on first use.
func New(logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{logger: logger}
}

// PlatformDevice opens the platform radio directly. Components that scan
// without establishing a session (the scan command) use this instead of a
// full Transport.
func PlatformDevice() (ble.Device, error) {
	return newPlatformDevice()
}

// device opens (once) and returns the platform BLE device.
func (t *Transport) device() (ble.Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev != nil {
		return t.dev, nil
	}

	dev, err := newPlatformDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to open BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)
	t.dev = dev
	return dev, nil
}

// Discover scans for an advertisement whose local name equals nameFilter.
// The scan runs until a match is found or ctx expires.
func (t *Transport) Discover(ctx context.Context, nameFilter string) (transport.Device, error) {
	dev, err := t.device()
	if err != nil {
		return nil, err
	}

	t.logger.WithField("name", nameFilter).Info("Scanning for device...")

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		foundMu sync.Mutex
		found   *discoveredDevice
	)

	err = dev.Scan(scanCtx, false, func(adv ble.Advertisement) {
		if adv.LocalName() != nameFilter {
			return
		}
		foundMu.Lock()
		if found == nil {
			found = &discoveredDevice{
				transport: t,
				name:      adv.LocalName(),
				addr:      adv.Addr(),
			}
		}
		foundMu.Unlock()
		cancel() // stop scanning, we have our device
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	foundMu.Lock()
	defer foundMu.Unlock()
	if found == nil {
		return nil, fmt.Errorf("%w: no advertisement named %q", transport.ErrDeviceNotFound, nameFilter)
	}

	t.logger.WithFields(logrus.Fields{
		"name":    found.name,
		"address": found.addr.String(),
	}).Info("Device discovered")

	return found, nil
}

type discoveredDevice struct {
	transport *Transport
	name      string
	addr      ble.Addr
}

func (d *discoveredDevice) Name() string    { return d.name }
func (d *discoveredDevice) Address() string { return d.addr.String() }

// Connect dials the peripheral and returns a Link.
func (d *discoveredDevice) Connect(ctx context.Context) (transport.Link, error) {
	d.transport.logger.WithField("address", d.addr.String()).Debug("Dialing device...")

	client, err := ble.Dial(ctx, d.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.addr, err)
	}

	d.transport.logger.WithField("name", d.name).Info("Connected")

	return &link{
		logger: d.transport.logger,
		client: client,
	}, nil
}

type link struct {
	logger *logrus.Logger
	client ble.Client

	mu           sync.Mutex
	tx           *ble.Characteristic // device-to-host notifications
	rx           *ble.Characteristic // host-to-device writes
	disconnected bool
}

// ResolveEndpoints discovers the GATT profile and locates the service's TX
// and RX characteristics.
func (l *link) ResolveEndpoints(serviceUUID, txUUID, rxUUID string) error {
	svcID, err := ble.Parse(serviceUUID)
	if err != nil {
		return fmt.Errorf("invalid service uuid %q: %w", serviceUUID, err)
	}
	txID, err := ble.Parse(txUUID)
	if err != nil {
		return fmt.Errorf("invalid tx uuid %q: %w", txUUID, err)
	}
	rxID, err := ble.Parse(rxUUID)
	if err != nil {
		return fmt.Errorf("invalid rx uuid %q: %w", rxUUID, err)
	}

	profile, err := l.client.DiscoverProfile(true)
	if err != nil {
		return fmt.Errorf("profile discovery failed: %w", err)
	}

	var svc *ble.Service
	for _, s := range profile.Services {
		if s.UUID.Equal(svcID) {
			svc = s
			break
		}
	}
	if svc == nil {
		return fmt.Errorf("%w: service %s", transport.ErrEndpointNotFound, serviceUUID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range svc.Characteristics {
		switch {
		case c.UUID.Equal(txID):
			l.tx = c
		case c.UUID.Equal(rxID):
			l.rx = c
		}
	}
	if l.tx == nil {
		return fmt.Errorf("%w: tx characteristic %s", transport.ErrEndpointNotFound, txUUID)
	}
	if l.rx == nil {
		return fmt.Errorf("%w: rx characteristic %s", transport.ErrEndpointNotFound, rxUUID)
	}

	l.logger.WithFields(logrus.Fields{
		"service": serviceUUID,
		"tx":      txUUID,
		"rx":      rxUUID,
	}).Debug("Endpoints resolved")

	return nil
}

// Subscribe enables notifications on the TX characteristic and forwards
// every frame to onFrame.
func (l *link) Subscribe(onFrame func([]byte)) error {
	l.mu.Lock()
	tx := l.tx
	l.mu.Unlock()

	if tx == nil {
		return fmt.Errorf("%w: subscribe before ResolveEndpoints", transport.ErrNotConnected)
	}

	if err := l.client.Subscribe(tx, false, func(data []byte) {
		onFrame(data)
	}); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// Write sends one frame to the RX characteristic with response.
func (l *link) Write(frame []byte) error {
	l.mu.Lock()
	rx := l.rx
	l.mu.Unlock()

	if rx == nil {
		return fmt.Errorf("%w: write before ResolveEndpoints", transport.ErrNotConnected)
	}
	return l.client.WriteCharacteristic(rx, frame, false)
}

// Disconnect cancels the connection. Idempotent.
func (l *link) Disconnect() error {
	l.mu.Lock()
	if l.disconnected {
		l.mu.Unlock()
		return nil
	}
	l.disconnected = true
	l.mu.Unlock()

	l.logger.Debug("Disconnecting...")
	return l.client.CancelConnection()
}
