// Package heartbeat drives the keep-alive exchange with the device. The
// supervisor cycles through Sending -> AwaitingResponse and either loops
// back on a response, retries on a soft timeout, or declares the link dead
// when no response has arrived within the hard timeout.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openemg/emglink/internal/wire"
)

// Config holds the supervisor cadence. SoftTimeout bounds the wait for a
// single response; HardTimeout bounds the total time without any response
// before the link is declared dead. Interval and SoftTimeout are usually
// equal to avoid beat storms, but nothing depends on that.
type Config struct {
	Interval    time.Duration
	SoftTimeout time.Duration
	HardTimeout time.Duration
}

// Supervisor owns the heartbeat state: the mod-256 id counter, the send
// timestamp anchoring the hard-timeout window, and the response hand-off
// channel written by the dispatcher.
type Supervisor struct {
	cfg    Config
	write  func([]byte) error
	onDead func()
	log    *logrus.Entry

	// resp carries inbound heartbeat ids from the dispatcher goroutine.
	// Capacity 1: a pending response releases exactly one wait, matching
	// the one-in-flight-beat protocol.
	resp chan byte

	mu         sync.Mutex
	nextID     byte
	lastSentID byte
	lastSentAt time.Time
}

// New creates a supervisor. write transmits one encoded frame to the device;
// onDead is invoked exactly once if the hard timeout expires.
func New(cfg Config, write func([]byte) error, onDead func(), logger *logrus.Logger) *Supervisor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Supervisor{
		cfg:    cfg,
		write:  write,
		onDead: onDead,
		log:    logger.WithField("component", "heartbeat"),
		resp:   make(chan byte, 1),
	}
}

// HandleResponse delivers an inbound heartbeat id. Called from the
// dispatcher; never blocks. A response already pending is left in place,
// extra ones are dropped - one pending response is all a single in-flight
// beat can consume.
func (s *Supervisor) HandleResponse(id byte) {
	select {
	case s.resp <- id:
	default:
	}
}

// NextID returns the id the next beat will carry.
func (s *Supervisor) NextID() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

// Run executes the send/await loop until ctx is cancelled or the hard
// timeout fires. It must be called at most once.
func (s *Supervisor) Run(ctx context.Context) {
	s.mu.Lock()
	s.lastSentAt = time.Now()
	s.mu.Unlock()

	// fresh is true when the previous beat was acknowledged (or this is the
	// first beat); only fresh sends re-anchor the hard-timeout window, so
	// soft-timeout retries keep accumulating against it.
	fresh := true

	for {
		expected := s.sendBeat(fresh)

		soft := time.NewTimer(s.cfg.SoftTimeout)
		select {
		case id := <-s.resp:
			soft.Stop()
			if id == expected {
				s.log.WithField("id", id).Debug("Heartbeat acknowledged")
			} else {
				// Lenient by protocol: a mismatched id still counts as a
				// response and must not escalate.
				s.log.WithFields(logrus.Fields{
					"expected_id": expected,
					"received_id": id,
				}).Error("Heartbeat id mismatch")
			}
			fresh = true

			select {
			case <-time.After(s.cfg.Interval):
			case <-ctx.Done():
				return
			}

		case <-soft.C:
			s.mu.Lock()
			elapsed := time.Since(s.lastSentAt)
			s.mu.Unlock()

			if elapsed >= s.cfg.HardTimeout {
				s.log.WithField("elapsed", elapsed).Error("Heartbeat hard timeout, link presumed dead")
				s.onDead()
				return
			}
			s.log.WithField("elapsed", elapsed).Warn("Heartbeat response timeout, retrying")
			fresh = false

		case <-ctx.Done():
			soft.Stop()
			return
		}
	}
}

// sendBeat transmits one heartbeat. The id counter advances only on a
// successful write; write failures are logged and left to the hard-timeout
// clock, which is the sole authority for declaring the link dead. Returns
// the id an inbound response is expected to echo.
func (s *Supervisor) sendBeat(fresh bool) byte {
	s.mu.Lock()
	id := s.nextID
	s.mu.Unlock()

	if err := s.write(wire.EncodeHeartbeat(id)); err != nil {
		s.log.WithError(err).WithField("id", id).Error("Heartbeat send failed")
	} else {
		s.log.WithField("id", id).Debug("Sent heartbeat")

		s.mu.Lock()
		s.lastSentID = id
		s.nextID++ // wraps mod 256
		if fresh {
			s.lastSentAt = time.Now()
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSentID
}
