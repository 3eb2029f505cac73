package session

import (
	"errors"
	"sync"
)

// Terminal causes a session can stop with. ErrRecordingComplete is a normal
// end, not a failure; ErrHeartbeatTimeout means the link went silent.
var (
	ErrHeartbeatTimeout  = errors.New("heartbeat hard timeout")
	ErrRecordingComplete = errors.New("recording window complete")
)

// StopSignal is the single shutdown primitive shared by the session's
// concurrent activities. It trips at most once and is never cleared; the
// first cause wins.
type StopSignal struct {
	once sync.Once
	done chan struct{}

	mu    sync.Mutex
	cause error
}

// NewStopSignal creates an untripped stop signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Trip sets the signal with the given cause. Subsequent calls are no-ops.
func (s *StopSignal) Trip(cause error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.cause = cause
		s.mu.Unlock()
		close(s.done)
	})
}

// Done returns a channel closed when the signal trips.
func (s *StopSignal) Done() <-chan struct{} {
	return s.done
}

// Tripped reports whether the signal has been set.
func (s *StopSignal) Tripped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Cause returns the cause recorded by the first Trip, or nil if untripped.
func (s *StopSignal) Cause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}
