package wavlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/opd-ai/wavlink/av"
	"github.com/opd-ai/wavlink/file"
	"github.com/opd-ai/wavlink/interfaces"
	"github.com/opd-ai/wavlink/stream"
	"github.com/opd-ai/wavlink/transport"
	"github.com/sirupsen/logrus"
)

// Server offers file transfer, streaming and calls from one files directory.
type Server struct {
	opts   *Options
	engine *transport.Engine
	store  *file.DirStore
	status interfaces.IStatusChannel
	sink   interfaces.IAudioSink

	mu       sync.Mutex
	locked   bool
	selected string
	listener *transport.Endpoint
	cast     *stream.Session
	incoming *av.CallSession
	answer   *av.CallSession
	results  []file.Result
}

// NewServer creates a server over opts.Config.Server.FilesDir. Nothing is
// bound until Start.
func NewServer(opts *Options) (*Server, error) {
	if opts == nil {
		opts = NewOptions()
	}
	engine, err := opts.newEngine()
	if err != nil {
		return nil, err
	}
	store, err := file.NewDirStore(opts.Config.Server.FilesDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:   opts,
		engine: engine,
		store:  store,
		status: opts.statusChannel("server"),
		sink:   opts.sink(),
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewServer",
		"files_dir": store.Root(),
	}).Info("Server created")

	return s, nil
}

// Select chooses the file the multicast protocol streams.
func (s *Server) Select(fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = fileName
}

// Start begins offering proto. It returns once the protocol's sockets are
// set up; the work continues on registry goroutines until Shutdown.
func (s *Server) Start(ctx context.Context, proto Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockStore(); err != nil {
		return err
	}

	var err error
	switch proto {
	case ProtocolTCP:
		err = s.startTCP(ctx)
	case ProtocolMulticast:
		err = s.startMulticast(ctx)
	case ProtocolCall:
		err = s.startCall(ctx)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownProtocol, proto)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Server.Start",
			"protocol": proto.String(),
			"error":    err.Error(),
		}).Error("Server start failed")
		return err
	}

	s.status.Post("Started Server..")
	logrus.WithFields(logrus.Fields{
		"function": "Server.Start",
		"protocol": proto.String(),
	}).Info("Server started")
	return nil
}

// lockStore takes the files directory lock on the first Start.
func (s *Server) lockStore() error {
	if s.locked {
		return nil
	}
	if err := s.store.Lock(); err != nil {
		return err
	}
	s.locked = true
	return nil
}

func (s *Server) startTCP(ctx context.Context) error {
	if s.listener != nil && s.listener.Usable() {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, ProtocolTCP)
	}
	cfg := s.opts.Config.Server

	ep, err := s.engine.CreateSocket(ctx, transport.RoleListener, transport.KindTCP, "")
	if err != nil {
		return err
	}
	if err := s.engine.SetReuseAddr(ep); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Server.startTCP",
			"endpoint_id": ep.ID,
			"error":       err.Error(),
		}).Warn("SO_REUSEADDR not applied")
	}
	if err := s.engine.Bind(ep, cfg.Port); err != nil {
		_ = ep.Close()
		return err
	}
	if err := s.engine.Listen(ep, cfg.Backlog); err != nil {
		_ = ep.Close()
		return err
	}

	files := file.NewServer(s.engine, s.store, s.status, file.WithResultHandler(s.record))
	if err := files.Serve(ep); err != nil {
		_ = ep.Close()
		return err
	}
	s.listener = ep
	return nil
}

func (s *Server) record(r file.Result) {
	logrus.WithFields(logrus.Fields{
		"function": "Server.record",
		"file":     r.FileName,
		"outcome":  r.Outcome.String(),
		"size":     humanize.Bytes(uint64(r.Bytes)),
	}).Debug("Exchange recorded")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *Server) startMulticast(ctx context.Context) error {
	if s.cast != nil && !closed(s.cast.Done()) {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, ProtocolMulticast)
	}
	opts, err := s.opts.streamOptions()
	if err != nil {
		return err
	}

	sess, err := stream.NewBroadcaster(s.engine, s.store, s.sink, s.status, opts).Start(ctx, s.selected)
	if err != nil {
		return err
	}
	s.cast = sess
	return nil
}

func (s *Server) startCall(ctx context.Context) error {
	if s.incoming != nil && s.incoming.Active() {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, ProtocolCall)
	}
	opts := s.opts.voiceOptions()

	incoming, err := av.NewReceiver(s.engine, s.sink, s.status, opts).Listen(ctx, s.opts.Config.Voice.Port)
	if err != nil {
		return err
	}
	s.incoming = incoming
	s.answer = nil

	if s.opts.Microphone == nil {
		return nil
	}
	sender := av.NewSender(s.engine, s.opts.Microphone, s.status, opts)
	err = s.engine.Registry().Go("voice/answer", incoming.ID.String(), func(ctx context.Context) {
		select {
		case <-incoming.PeerSeen():
		case <-incoming.Done():
			return
		case <-ctx.Done():
			return
		}
		answer, err := sender.Reply(incoming, incoming.Peer())
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Server.startCall",
				"session_id": incoming.ID.String(),
				"error":      err.Error(),
			}).Error("Answering call failed")
			return
		}
		s.mu.Lock()
		s.answer = answer
		s.mu.Unlock()
	})
	if err != nil {
		_ = incoming.Hangup()
		return fmt.Errorf("%w: %w", transport.ErrConfiguration, err)
	}
	return nil
}

// Addr returns the TCP listener's address, or nil before ProtocolTCP starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.LocalAddr()
}

// Stream returns the current broadcast, if any.
func (s *Server) Stream() *stream.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cast
}

// Call returns the receiving call session and, once the caller's first
// datagram arrived and a microphone is configured, the answering one.
func (s *Server) Call() (incoming, answer *av.CallSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incoming, s.answer
}

// Results returns the file exchanges finished so far.
func (s *Server) Results() []file.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]file.Result(nil), s.results...)
}

// Shutdown closes every socket the server opened, waits for its goroutines
// and releases the files directory. The server may be started again.
func (s *Server) Shutdown() error {
	s.status.Post("Shut Down Server..")

	err := s.engine.Registry().ShutdownAll()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = nil
	s.cast = nil
	s.incoming = nil
	s.answer = nil
	if s.locked {
		if uerr := s.store.Unlock(); uerr != nil {
			err = errors.Join(err, uerr)
		}
		s.locked = false
	}

	logrus.WithFields(logrus.Fields{
		"function": "Server.Shutdown",
		"files":    len(s.results),
	}).Info("Server shut down")
	return err
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
