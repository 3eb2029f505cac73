// Package scan discovers nearby BLE peripherals so the user can find the
// advertised name to hand to a session. Discovery here is listing only;
// session startup does its own targeted scan through the transport.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/openemg/emglink/internal/framechan"
	"github.com/openemg/emglink/internal/transport/blegatt"
)

// Advertiser is the slice of the radio the scanner needs.
type Advertiser interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
}

// DeviceFactory opens the scanning radio. A variable so tests can
// substitute a fake.
var DeviceFactory = func() (Advertiser, error) {
	return blegatt.PlatformDevice()
}

// EventType marks whether a device was newly discovered or re-advertised.
type EventType int

const (
	EventNew EventType = iota
	EventUpdated
)

// DeviceInfo is one discovered peripheral.
type DeviceInfo struct {
	Name        string
	Address     string
	RSSI        int
	Connectable bool
}

// Event is emitted for every processed advertisement.
type Event struct {
	Type   EventType
	Device DeviceInfo
}

// Options configures a scan pass.
type Options struct {
	Duration   time.Duration
	NameFilter string // empty matches everything
}

// DefaultOptions returns the default scan parameters.
func DefaultOptions() *Options {
	return &Options{Duration: 10 * time.Second}
}

// Scanner collects advertisements into a device registry.
type Scanner struct {
	logger  *logrus.Logger
	devices *hashmap.Map[string, DeviceInfo]
	events  *framechan.Queue[Event]

	opts *Options
}

// NewScanner creates a scanner.
func NewScanner(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		logger: logger,
		events: framechan.New[Event](100),
	}
}

// Scan discovers devices for opts.Duration (or until ctx is cancelled) and
// returns them sorted by descending signal strength.
func (s *Scanner) Scan(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	s.devices = hashmap.New[string, DeviceInfo]()
	s.opts = opts

	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to open BLE device: %w", err)
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")

	scanCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	err = dev.Scan(scanCtx, true, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")

	devices := make([]DeviceInfo, 0, s.devices.Len())
	s.devices.Range(func(_ string, info DeviceInfo) bool {
		devices = append(devices, info)
		return true
	})
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].RSSI != devices[j].RSSI {
			return devices[i].RSSI > devices[j].RSSI
		}
		return devices[i].Address < devices[j].Address
	})

	return devices, nil
}

// Events returns the advertisement event stream for live consumers.
func (s *Scanner) Events() <-chan Event {
	return s.events.C()
}

// handleAdvertisement records or refreshes one advertisement.
func (s *Scanner) handleAdvertisement(adv ble.Advertisement) {
	if s.opts.NameFilter != "" && adv.LocalName() != s.opts.NameFilter {
		return
	}

	info := DeviceInfo{
		Name:        adv.LocalName(),
		Address:     adv.Addr().String(),
		RSSI:        adv.RSSI(),
		Connectable: adv.Connectable(),
	}

	prev, existing := s.devices.Get(info.Address)
	if existing && info.Name == "" {
		info.Name = prev.Name // keep a name seen in an earlier advertisement
	}
	s.devices.Set(info.Address, info)

	event := Event{Type: EventNew, Device: info}
	if existing {
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  info.Name,
			"address": info.Address,
			"rssi":    info.RSSI,
		}).Info("Discovered new device")
	}
	s.events.Send(event)
}
