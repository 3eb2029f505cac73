// Package recording persists decoded sample frames to a flat CSV log for a
// bounded time window. Arming opens the destination and starts the expiry
// timer; the elapsed-time origin is anchored lazily at the first sample
// written after arming, not at arm time.
package recording

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openemg/emglink/internal/wire"
)

// elapsedPrecision is the number of fractional digits written for the
// per-row elapsed-seconds column.
const elapsedPrecision = 3

// Recorder gates whether samples are appended to the destination log.
// A recorder is one-shot: Arm may be called once per instance.
type Recorder struct {
	log      *logrus.Entry
	onExpire func()
	now      func() time.Time // injectable for tests

	mu       sync.Mutex
	active   bool
	armed    bool
	anchored bool
	start    time.Time
	rows     int64
	file     *os.File
	w        *csv.Writer
	timer    *time.Timer
}

// New creates a recorder. onExpire is invoked once when the window elapses;
// it is not invoked on Close.
func New(logger *logrus.Logger, onExpire func()) *Recorder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Recorder{
		log:      logger.WithField("component", "recording"),
		onExpire: onExpire,
		now:      time.Now,
	}
}

// Arm opens (or truncates) the destination log, writes the channel header,
// and schedules window expiry after duration.
func (r *Recorder) Arm(path string, duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("recording duration must be positive, got %v", duration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.armed {
		return fmt.Errorf("recorder already armed")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open recording log: %w", err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(header()); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write recording header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write recording header: %w", err)
	}

	r.file = file
	r.w = w
	r.armed = true
	r.active = true
	r.timer = time.AfterFunc(duration, r.expire)

	r.log.WithFields(logrus.Fields{
		"path":     path,
		"duration": duration,
	}).Info("Recording armed")

	return nil
}

// HandleSamples appends one row when the window is active; otherwise it is
// a no-op. The first call after arming anchors the elapsed-time origin.
func (r *Recorder) HandleSamples(channels [wire.ChannelCount]uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return
	}

	now := r.now()
	if !r.anchored {
		r.start = now
		r.anchored = true
	}

	row := make([]string, 0, 1+wire.ChannelCount)
	row = append(row, strconv.FormatFloat(now.Sub(r.start).Seconds(), 'f', elapsedPrecision, 64))
	for _, v := range channels {
		row = append(row, strconv.FormatUint(uint64(v), 10))
	}

	if err := r.w.Write(row); err != nil {
		r.log.WithError(err).Error("Failed to append sample row")
		return
	}
	// Flush per row: each append is one durable write, nothing buffered
	// past the call.
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.log.WithError(err).Error("Failed to flush sample row")
		return
	}
	r.rows++
}

// Rows returns the number of sample rows appended so far.
func (r *Recorder) Rows() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Active reports whether the window is currently accepting samples.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// expire runs on the window timer, independent of sample arrival.
func (r *Recorder) expire() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	rows := r.rows
	r.mu.Unlock()

	r.log.WithField("rows", rows).Info("Recording window expired")
	r.onExpire()
}

// Close deactivates the window, stops the expiry timer, and closes the
// destination log. Idempotent; safe on a never-armed recorder.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.file == nil {
		return nil
	}

	r.w.Flush()
	flushErr := r.w.Error()
	closeErr := r.file.Close()
	r.file = nil
	r.w = nil

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// header names the timestamp column and the 8 signal channels.
func header() []string {
	h := make([]string, 0, 1+wire.ChannelCount)
	h = append(h, "Timestamp")
	for i := 1; i <= wire.ChannelCount; i++ {
		h = append(h, fmt.Sprintf("Channel %d", i))
	}
	return h
}
