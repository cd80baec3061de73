package av

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/opd-ai/wavlink/interfaces"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/transport"
	"github.com/sirupsen/logrus"
)

// Sender captures the microphone and sends it to a remote receiver.
type Sender struct {
	engine *transport.Engine
	mic    interfaces.IMicrophone
	status interfaces.IStatusChannel
	opts   Options
}

// NewSender creates a sender.
func NewSender(engine *transport.Engine, mic interfaces.IMicrophone, ch interfaces.IStatusChannel, opts Options) *Sender {
	return &Sender{engine: engine, mic: mic, status: status.Or(ch), opts: opts}
}

// Call starts capturing and sending to host:port. It returns once the first
// tick is scheduled.
func (s *Sender) Call(ctx context.Context, host string, port int) (*CallSession, error) {
	opts, err := s.opts.normalize()
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: voice port %d out of range", transport.ErrConfiguration, port)
	}

	ep, err := s.engine.CreateSocket(ctx, transport.RoleOutboundPeer, transport.KindVoice, host)
	if err != nil {
		s.status.Post("Unable to connect to server..")
		return nil, err
	}
	if err := s.engine.SetReuseAddr(ep); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Sender.Call",
			"endpoint_id": ep.ID,
			"error":       err.Error(),
		}).Warn("SO_REUSEADDR not applied")
	}
	if err := s.engine.Bind(ep, 0); err != nil {
		_ = ep.Close()
		return nil, err
	}

	remote := &net.UDPAddr{IP: ep.PeerIP(), Port: port}
	sess, err := s.start(ep, remote, opts)
	if err != nil {
		_ = ep.Close()
		return nil, err
	}

	s.status.Post("Connected to Server..")
	logrus.WithFields(logrus.Fields{
		"function":   "Sender.Call",
		"session_id": sess.ID.String(),
		"remote":     remote.String(),
		"interval":   opts.Interval.String(),
	}).Info("Call started")

	return sess, nil
}

// Reply sends the microphone back to remote from the socket of a receiving
// session. Hanging up either session ends both.
func (s *Sender) Reply(via *CallSession, remote net.Addr) (*CallSession, error) {
	opts, err := s.opts.normalize()
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, fmt.Errorf("%w: no peer to answer", transport.ErrConfiguration)
	}
	sess, err := s.start(via.ep, remote, opts)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Sender.Reply",
		"session_id": sess.ID.String(),
		"remote":     remote.String(),
	}).Info("Answering call")

	return sess, nil
}

func (s *Sender) start(ep *transport.Endpoint, remote net.Addr, opts Options) (*CallSession, error) {
	if err := s.mic.StartCapture(opts.Recording); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	sess := newCallSession(ep, remote)
	err := s.engine.Registry().Go("voice/sender", sess.ID.String(), func(ctx context.Context) {
		s.run(ctx, sess, opts)
	})
	if err != nil {
		_ = s.mic.StopCapture()
		return nil, fmt.Errorf("%w: %w", transport.ErrConfiguration, err)
	}
	return sess, nil
}

func (s *Sender) run(ctx context.Context, sess *CallSession, opts Options) {
	defer close(sess.done)
	defer sess.ep.Close()
	defer func() {
		if err := s.mic.StopCapture(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Sender.run",
				"session_id": sess.ID.String(),
				"error":      err.Error(),
			}).Warn("Stopping capture failed")
		}
	}()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for sess.Active() {
		select {
		case <-ctx.Done():
			sess.active.Store(false)
			return
		case <-sess.ep.Done():
			sess.active.Store(false)
			return
		case <-ticker.C:
		}

		chunk, err := s.mic.ReadChunk(opts.ChunkSize)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Sender.run",
				"session_id": sess.ID.String(),
				"error":      err.Error(),
			}).Error("Reading capture failed")
			sess.active.Store(false)
			return
		}
		if len(chunk) == 0 {
			continue
		}

		n, err := s.engine.IssueWriteTo(ctx, sess.ep, chunk, sess.Remote)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Sender.run",
				"session_id": sess.ID.String(),
				"error":      err.Error(),
			}).Warn("Voice chunk not sent")
			continue
		}
		sess.count(n)
	}
}
