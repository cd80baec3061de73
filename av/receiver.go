package av

import (
	"context"
	"fmt"

	"github.com/opd-ai/wavlink/interfaces"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/transport"
	"github.com/sirupsen/logrus"
)

// Receiver plays voice datagrams arriving on a local port.
type Receiver struct {
	engine *transport.Engine
	sink   interfaces.IAudioSink
	status interfaces.IStatusChannel
	opts   Options
}

// NewReceiver creates a receiver that plays into sink.
func NewReceiver(engine *transport.Engine, sink interfaces.IAudioSink, ch interfaces.IStatusChannel, opts Options) *Receiver {
	return &Receiver{engine: engine, sink: sink, status: status.Or(ch), opts: opts}
}

// Listen binds port and plays everything received until Hangup.
func (r *Receiver) Listen(ctx context.Context, port int) (*CallSession, error) {
	opts, err := r.opts.normalize()
	if err != nil {
		return nil, err
	}

	ep, err := r.engine.CreateSocket(ctx, transport.RoleListener, transport.KindVoice, "")
	if err != nil {
		return nil, err
	}
	if opts.RecvBuffer > 0 {
		if err := r.engine.SetRecvBuffer(ep, opts.RecvBuffer); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "Receiver.Listen",
				"endpoint_id": ep.ID,
				"error":       err.Error(),
			}).Warn("SO_RCVBUF not applied")
		}
	}
	if err := r.engine.Bind(ep, port); err != nil {
		_ = ep.Close()
		return nil, err
	}

	sess, err := r.play(ep, opts)
	if err != nil {
		_ = ep.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Receiver.Listen",
		"session_id": sess.ID.String(),
		"port":       port,
	}).Info("Receiving voice")

	return sess, nil
}

// Attach plays datagrams arriving on the socket of an outgoing call, so the
// callee can answer on the address it learned from the first packet.
func (r *Receiver) Attach(call *CallSession) (*CallSession, error) {
	opts, err := r.opts.normalize()
	if err != nil {
		return nil, err
	}
	sess, err := r.play(call.ep, opts)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Receiver.Attach",
		"session_id": sess.ID.String(),
		"call_id":    call.ID.String(),
	}).Info("Receiving voice on call socket")

	return sess, nil
}

func (r *Receiver) play(ep *transport.Endpoint, opts Options) (*CallSession, error) {
	if err := r.sink.StartPlayback(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	sess := newCallSession(ep, nil)
	err := r.engine.IssueRead(ep, "voice-receiver", opts.ChunkSize, func(op *transport.PendingOperation, n int, err error) {
		if err != nil {
			sess.active.Store(false)
			r.status.Post(fmt.Sprintf("Read Complete on socket: %d", ep.ID))
			_ = r.sink.Stop()
			close(sess.done)
			return
		}
		sess.sawPeer(op.From)
		if err := r.sink.PushChunk(op.Buffer[:n]); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Receiver.onRead",
				"session_id": sess.ID.String(),
				"error":      err.Error(),
			}).Warn("Playback push failed")
			return
		}
		sess.count(n)
	})
	if err != nil {
		_ = r.sink.Stop()
		return nil, err
	}
	return sess, nil
}
