package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/opd-ai/wavlink/interfaces"
	"github.com/opd-ai/wavlink/limits"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/transport"
	"github.com/sirupsen/logrus"
)

// Server answers file exchanges on accepted connections.
type Server struct {
	engine   *transport.Engine
	store    interfaces.IFileStore
	status   interfaces.IStatusChannel
	onResult func(Result)
	now      func() time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithResultHandler registers fn to receive every finished exchange. fn runs
// on the connection's read goroutine.
func WithResultHandler(fn func(Result)) ServerOption {
	return func(s *Server) {
		s.onResult = fn
	}
}

// WithClock replaces time.Now in status messages.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a file server.
func NewServer(engine *transport.Engine, store interfaces.IFileStore, ch interfaces.IStatusChannel, opts ...ServerOption) *Server {
	s := &Server{
		engine: engine,
		store:  store,
		status: status.Or(ch),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections on listener until it closes. It returns once the
// accept goroutine is running.
func (s *Server) Serve(listener *transport.Endpoint) error {
	return s.engine.AcceptLoop(listener, s.HandleConn)
}

// HandleConn arms the exchange on an accepted connection.
func (s *Server) HandleConn(peer *transport.Endpoint) {
	s.status.Post(fmt.Sprintf("Client Connected on Socket: %d\nTime: %s", peer.ID, s.now().Format(time.RFC1123)))

	x := &serverExchange{s: s, peer: peer}
	if err := s.engine.IssueRead(peer, "file-server", limits.StreamChunkSize, x.onRead); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "HandleConn",
			"endpoint_id": peer.ID,
			"error":       err.Error(),
		}).Error("Failed to arm read")
		_ = peer.Close()
	}
}

func (s *Server) report(r Result) {
	logrus.WithFields(logrus.Fields{
		"function":  "Server.report",
		"conn_id":   r.ConnID,
		"direction": r.Direction.String(),
		"file":      r.FileName,
		"outcome":   r.Outcome.String(),
		"size":      humanize.Bytes(uint64(r.Bytes)),
		"digest":    r.Digest,
	}).Info("File exchange finished")

	if s.onResult != nil {
		s.onResult(r)
	}
}

// serverExchange is the state of one accepted connection. It is only touched
// by the connection's read goroutine.
type serverExchange struct {
	s    *Server
	peer *transport.Endpoint

	started  bool
	answered bool
	upload   string
	bytes    int64
	err      error
}

func (x *serverExchange) onRead(op *transport.PendingOperation, n int, err error) {
	if err != nil || n == 0 {
		x.finish(err)
		return
	}
	chunk := op.Buffer[:n]

	if !x.started {
		x.started = true
		switch Classify(chunk) {
		case ClassFileName:
			x.serve(AnnouncedName(chunk))
			return
		case ClassNotFound:
			x.s.status.Post("File does not exist on server")
			x.answered = true
			_ = x.peer.Close()
			return
		}

		if !x.beginUpload() {
			return
		}
	}

	if err := x.s.store.Append(x.upload, chunk); err != nil {
		x.abort(err)
		return
	}
	x.bytes += int64(n)
}

// beginUpload names the upload and truncates its file.
func (x *serverExchange) beginUpload() bool {
	x.upload = UploadName(x.peer.ID)
	x.s.status.Post("Saving data to file..")
	if err := x.s.store.Reset(x.upload); err != nil {
		x.abort(err)
		return false
	}
	return true
}

func (x *serverExchange) abort(err error) {
	logrus.WithFields(logrus.Fields{
		"function":    "serverExchange.abort",
		"endpoint_id": x.peer.ID,
		"file":        x.upload,
		"error":       err.Error(),
	}).Error("Storing upload failed")
	x.err = err
	_ = x.peer.Close()
}

// serve answers a filename announcement and closes the connection.
func (x *serverExchange) serve(name string) {
	x.answered = true
	x.s.status.Post("Reading file name: " + name)
	ctx := x.s.engine.Registry().Context()
	defer x.peer.Close()

	res := Result{ConnID: x.peer.ID, Direction: DirectionDownload, FileName: name}

	if !x.s.store.Exists(name) {
		x.s.status.Post("Sending file does not exist..")
		res.Outcome = OutcomeNotFound
		if _, err := x.s.engine.IssueWrite(ctx, x.peer, []byte(NotFoundSentinel)); err != nil {
			res.Err = err
		}
		x.s.report(res)
		return
	}

	x.s.status.Post("Sending file contents..")
	sent, err := streamFile(ctx, x.s.engine, x.peer, x.s.store, name)
	res.Bytes = sent
	if err != nil {
		res.Outcome = OutcomeConnectionError
		res.Err = err
	}
	x.s.report(res)
}

func (x *serverExchange) finish(err error) {
	x.s.status.Post(fmt.Sprintf("Read Complete on socket: %d", x.peer.ID))

	// A peer that closes without sending uploaded an empty file.
	if err == nil && !x.started && !x.answered {
		x.started = true
		if x.beginUpload() {
			if aerr := x.s.store.Append(x.upload, nil); aerr != nil {
				x.abort(aerr)
			}
		}
	}
	if x.answered || x.upload == "" {
		return
	}

	res := Result{
		ConnID:    x.peer.ID,
		Direction: DirectionUpload,
		FileName:  x.upload,
		Bytes:     x.bytes,
	}
	switch {
	case x.err != nil:
		res.Outcome = OutcomeConnectionError
		res.Err = x.err
	case err != nil:
		res.Outcome = OutcomeConnectionError
		res.Err = fmt.Errorf("%w: %w", ErrTransferInterrupted, err)
	default:
		res.Outcome = OutcomeSuccess
		if d, ok := x.s.store.(digester); ok {
			res.Digest, _ = d.Digest(x.upload)
		}
	}
	x.s.report(res)
}

// streamFile writes name to ep in limits.FilePayloadChunkSize writes.
func streamFile(ctx context.Context, engine *transport.Engine, ep *transport.Endpoint, store interfaces.IFileStore, name string) (int64, error) {
	rd, err := store.Open(name)
	if err != nil {
		return 0, err
	}
	defer rd.Close()

	var sent int64
	for {
		chunk, err := rd.ReadChunk(limits.FilePayloadChunkSize)
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
		n, err := engine.IssueWrite(ctx, ep, chunk)
		sent += int64(n)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "streamFile",
				"endpoint_id": ep.ID,
				"file":        name,
				"sent":        sent,
				"error":       err.Error(),
			}).Error("Streaming file failed")
			return sent, err
		}
	}
}
