package session

import (
	"context"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openemg/emglink/internal/transport"
	"github.com/openemg/emglink/internal/wire"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// fastConfig returns a valid config with millisecond-scale heartbeat
// cadence so timing tests run quickly. The 2s/2s/5s production ratios are
// preserved at 10ms/10ms/25ms.
func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.ScanTimeout = time.Second
	cfg.ConnectTimeout = time.Second
	cfg.HeartbeatInterval = 10 * time.Millisecond
	cfg.SoftTimeout = 10 * time.Millisecond
	cfg.HardTimeout = 25 * time.Millisecond
	return cfg
}

// ----------------------------
// In-memory transport fake
// ----------------------------

type fakeLink struct {
	mu           sync.Mutex
	onFrame      func([]byte)
	writes       [][]byte
	firstWrite   time.Time
	echo         bool // echo heartbeat writes back as responses
	resolveErr   error
	subscribeErr error
	writeErr     error
	disconnects  int
}

func (l *fakeLink) ResolveEndpoints(service, tx, rx string) error { return l.resolveErr }

func (l *fakeLink) Subscribe(fn func([]byte)) error {
	if l.subscribeErr != nil {
		return l.subscribeErr
	}
	l.mu.Lock()
	l.onFrame = fn
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) Write(frame []byte) error {
	if l.writeErr != nil {
		return l.writeErr
	}
	l.mu.Lock()
	if len(l.writes) == 0 {
		l.firstWrite = time.Now()
	}
	buf := append([]byte(nil), frame...)
	l.writes = append(l.writes, buf)
	echo := l.echo && len(frame) >= 2 && frame[0] == wire.TagHeartbeat
	l.mu.Unlock()

	if echo {
		l.Inject(wire.EncodeHeartbeat(frame[1]))
	}
	return nil
}

// Inject delivers an inbound frame as if the device had sent it.
func (l *fakeLink) Inject(frame []byte) {
	l.mu.Lock()
	fn := l.onFrame
	l.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

func (l *fakeLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnects++
	return nil
}

func (l *fakeLink) writeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.writes)
}

func (l *fakeLink) disconnectCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disconnects
}

type fakeDevice struct {
	link       *fakeLink
	connectErr error
}

func (d *fakeDevice) Name() string    { return "CC0479" }
func (d *fakeDevice) Address() string { return "aa:bb:cc:dd:ee:ff" }

func (d *fakeDevice) Connect(ctx context.Context) (transport.Link, error) {
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	return d.link, nil
}

type fakeTransport struct {
	dev         *fakeDevice
	discoverErr error
}

func (t *fakeTransport) Discover(ctx context.Context, nameFilter string) (transport.Device, error) {
	if t.discoverErr != nil {
		return nil, t.discoverErr
	}
	return t.dev, nil
}

func samplesFrame(channels [wire.ChannelCount]uint16) []byte {
	frame := make([]byte, 1+2*wire.ChannelCount)
	frame[0] = wire.TagSamples
	for i, v := range channels {
		binary.BigEndian.PutUint16(frame[1+2*i:], v)
	}
	return frame
}

// ----------------------------
// Lifecycle tests
// ----------------------------

// TestSessionStopsOnHardTimeout is the end-to-end dead-link scenario:
// no responses ever arrive, so the session must end within one hard-timeout
// window of the first beat - never earlier, never more than one interval
// beyond the retry that detects it
func TestSessionStopsOnHardTimeout(t *testing.T) {
	link := &fakeLink{} // never echoes
	tr := &fakeTransport{dev: &fakeDevice{link: link}}

	s, err := New(fastConfig(), tr, testLogger())
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.ErrorIs(t, err, ErrHeartbeatTimeout)

	link.mu.Lock()
	first := link.firstWrite
	link.mu.Unlock()
	require.False(t, first.IsZero(), "at least one beat must have been sent")

	elapsed := time.Since(first)
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond, "must not stop before the hard timeout")
	assert.Less(t, elapsed, 500*time.Millisecond, "must stop promptly after the hard timeout")

	assert.Equal(t, 1, link.disconnectCount(), "session must disconnect on the way out")
}

// TestSessionRecordingWindowEndsSession verifies window expiry is a normal
// terminal condition: Run returns nil and the log holds the delivered rows
func TestSessionRecordingWindowEndsSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.csv")

	link := &fakeLink{echo: true}
	tr := &fakeTransport{dev: &fakeDevice{link: link}}

	cfg := fastConfig()
	cfg.HardTimeout = time.Second // keep the link comfortably alive
	cfg.Recording.Enabled = true
	cfg.Recording.Path = path
	cfg.Recording.Duration = 80 * time.Millisecond

	s, err := New(cfg, tr, testLogger())
	require.NoError(t, err)

	go func() {
		// A few sample frames while the window is open.
		time.Sleep(10 * time.Millisecond)
		link.Inject(samplesFrame([wire.ChannelCount]uint16{1, 2, 3, 4, 5, 6, 7, 8}))
		time.Sleep(10 * time.Millisecond)
		link.Inject(samplesFrame([wire.ChannelCount]uint16{9, 10, 11, 12, 13, 14, 15, 16}))
	}()

	start := time.Now()
	err = s.Run(context.Background())
	require.NoError(t, err, "window expiry is a normal end, not a failure")
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, 1, link.disconnectCount())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 samples
	assert.Equal(t, "Timestamp", rows[0][0])
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7", "8"}, rows[1][1:])
}

// TestSessionLiveSinkReceivesSamples verifies the optional display sink
// sees decoded channels without recording enabled
func TestSessionLiveSinkReceivesSamples(t *testing.T) {
	link := &fakeLink{echo: true}
	tr := &fakeTransport{dev: &fakeDevice{link: link}}

	cfg := fastConfig()
	cfg.HardTimeout = time.Second

	got := make(chan [wire.ChannelCount]uint16, 1)
	s, err := New(cfg, tr, testLogger(), WithSampleSink(func(ch [wire.ChannelCount]uint16) {
		select {
		case got <- ch:
		default:
		}
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return link.writeCount() > 0 },
		time.Second, time.Millisecond)
	link.Inject(samplesFrame([wire.ChannelCount]uint16{7, 7, 7, 7, 7, 7, 7, 7}))

	select {
	case ch := <-got:
		assert.Equal(t, [wire.ChannelCount]uint16{7, 7, 7, 7, 7, 7, 7, 7}, ch)
	case <-time.After(time.Second):
		t.Fatal("live sink never received samples")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, link.disconnectCount())
}

// TestSessionMalformedFramesAreHarmless floods the dispatcher with garbage
// and truncated frames; the session must survive until cancelled
func TestSessionMalformedFramesAreHarmless(t *testing.T) {
	link := &fakeLink{echo: true}
	tr := &fakeTransport{dev: &fakeDevice{link: link}}

	cfg := fastConfig()
	cfg.HardTimeout = time.Second

	s, err := New(cfg, tr, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return link.writeCount() > 0 },
		time.Second, time.Millisecond)

	for _, frame := range [][]byte{
		{},
		{0x99},
		{0x01},
		{0x04, 0x00},
		{0xFF, 0xFF, 0xFF, 0xFF},
	} {
		link.Inject(frame)
	}

	// Still alive and heartbeating.
	before := link.writeCount()
	require.Eventually(t, func() bool { return link.writeCount() > before },
		time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

// TestSessionStartupFailures verifies each startup step aborts immediately
// with no heartbeat ever sent
func TestSessionStartupFailures(t *testing.T) {
	bang := errors.New("bang")

	tests := []struct {
		name string
		tr   *fakeTransport
	}{
		{
			name: "discovery fails",
			tr:   &fakeTransport{discoverErr: transport.ErrDeviceNotFound},
		},
		{
			name: "connect fails",
			tr:   &fakeTransport{dev: &fakeDevice{connectErr: bang}},
		},
		{
			name: "endpoint resolution fails",
			tr:   &fakeTransport{dev: &fakeDevice{link: &fakeLink{resolveErr: transport.ErrEndpointNotFound}}},
		},
		{
			name: "subscribe fails",
			tr:   &fakeTransport{dev: &fakeDevice{link: &fakeLink{subscribeErr: bang}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(fastConfig(), tt.tr, testLogger())
			require.NoError(t, err)

			err = s.Run(context.Background())
			require.Error(t, err)

			if tt.tr.dev != nil && tt.tr.dev.link != nil {
				assert.Zero(t, tt.tr.dev.link.writeCount(), "no heartbeat may be sent on failed startup")
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeviceName = ""
	_, err := New(cfg, &fakeTransport{}, testLogger())
	assert.Error(t, err)
}
