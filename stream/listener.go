package stream

import (
	"context"
	"fmt"

	"github.com/opd-ai/wavlink/interfaces"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/transport"
	"github.com/sirupsen/logrus"
)

// Listener plays a multicast stream.
type Listener struct {
	engine *transport.Engine
	sink   interfaces.IAudioSink
	status interfaces.IStatusChannel
	opts   Options
}

// NewListener creates a listener that plays into sink.
func NewListener(engine *transport.Engine, sink interfaces.IAudioSink, ch interfaces.IStatusChannel, opts Options) *Listener {
	return &Listener{engine: engine, sink: sink, status: status.Or(ch), opts: opts}
}

// Join binds the stream port, joins the group and starts playback. Datagrams
// are played until the session is stopped.
func (l *Listener) Join(ctx context.Context) (*Session, error) {
	opts, err := l.opts.normalize()
	if err != nil {
		return nil, err
	}

	ep, err := l.engine.CreateSocket(ctx, transport.RoleOutboundPeer, transport.KindMulticast, "")
	if err != nil {
		return nil, err
	}
	// Several listeners on one host share the port.
	if err := l.engine.SetReuseAddr(ep); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Listener.Join",
			"endpoint_id": ep.ID,
			"error":       err.Error(),
		}).Warn("SO_REUSEADDR not applied")
	}
	if err := l.engine.Bind(ep, opts.Port); err != nil {
		_ = ep.Close()
		return nil, err
	}
	if err := l.engine.JoinGroup(ep, opts.Group, opts.Interface); err != nil {
		_ = ep.Close()
		return nil, err
	}

	if err := l.sink.StartPlayback(); err != nil {
		_ = ep.Close()
		return nil, fmt.Errorf("start playback: %w", err)
	}

	sess := newSession(ep, opts, "")
	err = l.engine.IssueRead(ep, "stream-listener", opts.ChunkSize, func(op *transport.PendingOperation, n int, err error) {
		if err != nil {
			l.status.Post(fmt.Sprintf("Read Complete on socket: %d", ep.ID))
			_ = l.sink.Stop()
			close(sess.done)
			return
		}
		if err := l.sink.PushChunk(op.Buffer[:n]); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Listener.onRead",
				"session_id": sess.ID.String(),
				"error":      err.Error(),
			}).Warn("Playback push failed")
			return
		}
		sess.count(n)
	})
	if err != nil {
		_ = l.sink.Stop()
		_ = ep.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Listener.Join",
		"session_id": sess.ID.String(),
		"group":      opts.Group.String(),
		"port":       opts.Port,
	}).Info("Joined stream")

	return sess, nil
}
