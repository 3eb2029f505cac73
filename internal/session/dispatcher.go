package session

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/openemg/emglink/internal/framechan"
	"github.com/openemg/emglink/internal/wire"
)

// defaultFrameBuffer bounds the inbound queue between the transport's
// delivery callback and the dispatcher goroutine.
const defaultFrameBuffer = 128

// responseSink receives inbound heartbeat ids.
type responseSink interface {
	HandleResponse(id byte)
}

// sampleSink receives decoded sample frames.
type sampleSink interface {
	HandleSamples(channels [wire.ChannelCount]uint16)
}

// dispatcher decodes inbound frames and routes them by packet kind:
// heartbeats to the supervisor's response matching, samples to the
// recording controller (and the optional live sink), unknowns dropped.
// It is pure routing; the queue in the middle keeps the transport's
// delivery context from ever blocking on session logic.
type dispatcher struct {
	frames *framechan.Queue[[]byte]
	hb     responseSink
	rec    sampleSink
	live   func(channels [wire.ChannelCount]uint16)
	log    *logrus.Entry
}

func newDispatcher(hb responseSink, rec sampleSink, live func([wire.ChannelCount]uint16), logger *logrus.Logger) *dispatcher {
	return &dispatcher{
		frames: framechan.New[[]byte](defaultFrameBuffer),
		hb:     hb,
		rec:    rec,
		live:   live,
		log:    logger.WithField("component", "dispatcher"),
	}
}

// OnFrame is the transport notification callback. The buffer is only valid
// for the duration of the call, so it is copied before queueing. Never
// blocks; if the consumer has fallen behind the oldest frame is dropped.
func (d *dispatcher) OnFrame(frame []byte) {
	buf := make([]byte, len(frame))
	copy(buf, frame)
	if d.frames.Send(buf) {
		d.log.Warn("Inbound queue full; dropped oldest frame")
	}
}

// run consumes queued frames in arrival order until ctx is cancelled.
func (d *dispatcher) run(ctx context.Context) {
	for {
		select {
		case frame, ok := <-d.frames.C():
			if !ok {
				return
			}
			d.dispatch(frame)
		case <-ctx.Done():
			return
		}
	}
}

func (d *dispatcher) dispatch(frame []byte) {
	pkt := wire.Decode(frame)
	switch pkt.Kind {
	case wire.KindHeartbeat:
		d.hb.HandleResponse(pkt.HeartbeatID)
	case wire.KindSamples:
		d.rec.HandleSamples(pkt.Channels)
		if d.live != nil {
			d.live(pkt.Channels)
		}
	default:
		d.log.WithField("frame_len", len(frame)).Debug("Skipping undecodable frame")
	}
}
