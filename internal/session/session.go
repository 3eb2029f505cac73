// Package session orchestrates one connection to the acquisition device:
// discover, connect, resolve endpoints, subscribe, run the heartbeat
// supervisor, optionally arm a recording window, and tear everything down
// when the shared stop signal trips. All session state lives for exactly
// one connection; nothing is reused across sessions.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/openemg/emglink/internal/groutine"
	"github.com/openemg/emglink/internal/heartbeat"
	"github.com/openemg/emglink/internal/recording"
	"github.com/openemg/emglink/internal/transport"
	"github.com/openemg/emglink/internal/wire"
)

// Option configures a Session.
type Option func(*Session)

// WithSampleSink registers a callback invoked for every decoded sample
// frame, independent of recording. Used for live display.
func WithSampleSink(fn func(channels [wire.ChannelCount]uint16)) Option {
	return func(s *Session) { s.live = fn }
}

// Session supervises one device connection.
type Session struct {
	cfg    *Config
	tr     transport.Transport
	logger *logrus.Logger
	stop   *StopSignal
	live   func(channels [wire.ChannelCount]uint16)
}

// New creates a session over the given transport.
func New(cfg *Config, tr transport.Transport, logger *logrus.Logger, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}

	s := &Session{
		cfg:    cfg,
		tr:     tr,
		logger: logger,
		stop:   NewStopSignal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes the full session lifecycle and blocks until the stop signal
// trips or ctx is cancelled. Startup failures (discovery, connect, endpoint
// resolution, subscribe) abort immediately with no retry and nothing to
// clean up beyond the link itself. A completed recording window returns
// nil; a dead link returns ErrHeartbeatTimeout.
func (s *Session) Run(ctx context.Context) error {
	scanCtx, cancelScan := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	dev, err := s.tr.Discover(scanCtx, s.cfg.DeviceName)
	cancelScan()
	if err != nil {
		return err
	}

	connCtx, cancelConn := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	link, err := dev.Connect(connCtx)
	cancelConn()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", dev.Name(), err)
	}
	defer func() {
		if derr := link.Disconnect(); derr != nil {
			s.logger.WithError(derr).Warn("Disconnect failed")
		}
	}()

	if err := link.ResolveEndpoints(s.cfg.ServiceUUID, s.cfg.TXCharUUID, s.cfg.RXCharUUID); err != nil {
		return err
	}

	recorder := recording.New(s.logger, func() { s.stop.Trip(ErrRecordingComplete) })
	defer func() {
		if cerr := recorder.Close(); cerr != nil {
			s.logger.WithError(cerr).Warn("Failed to close recording log")
		}
	}()

	supervisor := heartbeat.New(heartbeat.Config{
		Interval:    s.cfg.HeartbeatInterval,
		SoftTimeout: s.cfg.SoftTimeout,
		HardTimeout: s.cfg.HardTimeout,
	}, link.Write, func() { s.stop.Trip(ErrHeartbeatTimeout) }, s.logger)

	disp := newDispatcher(supervisor, recorder, s.live, s.logger)

	if err := link.Subscribe(disp.OnFrame); err != nil {
		return err
	}

	runCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()
	groutine.Go(runCtx, "session-dispatcher", disp.run)
	groutine.Go(runCtx, "session-heartbeat", supervisor.Run)

	if s.cfg.Recording.Enabled {
		if err := recorder.Arm(s.cfg.Recording.Path, s.cfg.Recording.Duration); err != nil {
			return err
		}
	}

	s.logger.WithField("device", dev.Name()).Info("Session running")

	select {
	case <-ctx.Done():
		s.logger.Info("Session cancelled, disconnecting")
		return ctx.Err()
	case <-s.stop.Done():
	}

	cause := s.stop.Cause()
	if errors.Is(cause, ErrRecordingComplete) {
		s.logger.Info("Recording complete, disconnecting")
		return nil
	}
	s.logger.WithError(cause).Error("Session stopped, disconnecting")
	return cause
}

// Stopped exposes the stop signal; it trips once when the session ends for
// any internal reason.
func (s *Session) Stopped() <-chan struct{} {
	return s.stop.Done()
}
