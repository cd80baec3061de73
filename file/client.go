package file

import (
	"context"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/opd-ai/wavlink/interfaces"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/transport"
	"github.com/sirupsen/logrus"
)

// Client starts file exchanges against a server.
type Client struct {
	engine *transport.Engine
	store  interfaces.IFileStore
	status interfaces.IStatusChannel
}

// NewClient creates a client that reads uploads from and saves downloads to
// store.
func NewClient(engine *transport.Engine, store interfaces.IFileStore, ch interfaces.IStatusChannel) *Client {
	return &Client{engine: engine, store: store, status: status.Or(ch)}
}

func (c *Client) connect(ctx context.Context, req TransferRequest) (*transport.Endpoint, error) {
	ep, err := c.engine.CreateSocket(ctx, transport.RoleOutboundPeer, transport.KindTCP, req.Host)
	if err != nil {
		c.status.Post("Unable to connect to server..")
		return nil, err
	}
	if err := c.engine.Connect(ctx, ep, req.Port); err != nil {
		_ = ep.Close()
		c.status.Post("Unable to connect to server..")
		return nil, err
	}
	c.status.Post("Connected to Server..")
	return ep, nil
}

// Download requests req.FileName and saves the answer locally. It blocks
// until the server closes the connection, the connection fails, or ctx is
// done. A missing remote file yields OutcomeNotFound with a nil error.
func (c *Client) Download(ctx context.Context, req TransferRequest) (Result, error) {
	res := Result{RequestID: req.ID, Direction: DirectionDownload, Outcome: OutcomeConnectionError}
	if err := req.Validate(); err != nil {
		res.Err = err
		return res, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Download",
		"request_id": req.ID.String(),
		"host":       req.Host,
		"port":       req.Port,
		"file":       req.FileName,
	}).Info("Starting download")

	ep, err := c.connect(ctx, req)
	if err != nil {
		res.Err = err
		return res, err
	}
	defer ep.Close()
	res.ConnID = ep.ID

	saveAs := req.SaveAs
	if saveAs == "" {
		saveAs = UploadName(ep.ID)
	}
	res.FileName = saveAs
	if err := c.store.Reset(saveAs); err != nil {
		res.Err = err
		return res, err
	}

	x := &downloadExchange{c: c, ep: ep, res: res, done: make(chan struct{})}
	if err := c.engine.IssueRead(ep, "file-client", 0, x.onRead); err != nil {
		res.Err = err
		return res, err
	}

	// Cancellation closes the socket; the read loop then reports the loss.
	stop := context.AfterFunc(ctx, func() { _ = ep.Close() })
	defer stop()

	c.status.Post("Sending file name..")
	if _, err := c.engine.IssueWrite(ctx, ep, []byte(req.FileName)); err != nil {
		_ = ep.Close()
	}

	<-x.done
	c.status.Post("Completed Reading..")

	logrus.WithFields(logrus.Fields{
		"function":   "Download",
		"request_id": req.ID.String(),
		"outcome":    x.res.Outcome.String(),
		"saved_as":   x.res.FileName,
		"size":       humanize.Bytes(uint64(x.res.Bytes)),
	}).Info("Download finished")

	return x.res, x.res.Err
}

// downloadExchange is the state of one download connection.
type downloadExchange struct {
	c   *Client
	ep  *transport.Endpoint
	res Result

	started  bool
	notFound bool
	finished bool
	once     sync.Once
	done     chan struct{}
}

func (x *downloadExchange) onRead(op *transport.PendingOperation, n int, err error) {
	if x.finished {
		return
	}
	switch {
	case err != nil:
		x.res.Outcome = OutcomeConnectionError
		x.res.Err = fmt.Errorf("%w: %w", ErrTransferInterrupted, err)
		x.finish()
		return
	case n == 0:
		x.complete()
		return
	}

	chunk := op.Buffer[:n]
	if !x.started {
		x.started = true
		if Classify(chunk) == ClassNotFound {
			x.c.status.Post("File does not exist on server")
			x.notFound = true
			return
		}
	}
	if x.notFound {
		return
	}

	if err := x.c.store.Append(x.res.FileName, chunk); err != nil {
		x.res.Outcome = OutcomeConnectionError
		x.res.Err = err
		x.finish()
		_ = x.ep.Close()
		return
	}
	x.res.Bytes += int64(n)
}

// complete handles the server's graceful close.
func (x *downloadExchange) complete() {
	if x.notFound {
		x.res.Outcome = OutcomeNotFound
		x.finish()
		return
	}

	x.res.Outcome = OutcomeSuccess
	if x.res.Bytes == 0 {
		// An empty file still produces a local file.
		if err := x.c.store.Append(x.res.FileName, nil); err != nil {
			x.res.Outcome = OutcomeConnectionError
			x.res.Err = err
		}
	}
	if d, ok := x.c.store.(digester); ok && x.res.Err == nil {
		x.res.Digest, _ = d.Digest(x.res.FileName)
	}
	x.finish()
}

// finish publishes the result. Later completions are ignored.
func (x *downloadExchange) finish() {
	x.finished = true
	x.once.Do(func() { close(x.done) })
}

// Upload streams req.FileName from the local store to the server and closes
// the connection. The server stores it under a name of its choosing.
func (c *Client) Upload(ctx context.Context, req TransferRequest) (Result, error) {
	res := Result{RequestID: req.ID, Direction: DirectionUpload, FileName: req.FileName, Outcome: OutcomeConnectionError}
	if err := req.Validate(); err != nil {
		res.Err = err
		return res, err
	}
	if !c.store.Exists(req.FileName) {
		res.Outcome = OutcomeNotFound
		res.Err = fmt.Errorf("%w: %s", ErrFileNotFound, req.FileName)
		return res, res.Err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Upload",
		"request_id": req.ID.String(),
		"host":       req.Host,
		"port":       req.Port,
		"file":       req.FileName,
	}).Info("Starting upload")

	ep, err := c.connect(ctx, req)
	if err != nil {
		res.Err = err
		return res, err
	}
	defer ep.Close()
	res.ConnID = ep.ID

	c.status.Post("Sending data..")
	sent, err := streamFile(ctx, c.engine, ep, c.store, req.FileName)
	res.Bytes = sent
	if err != nil {
		res.Err = err
		return res, err
	}
	res.Outcome = OutcomeSuccess

	if d, ok := c.store.(digester); ok {
		res.Digest, _ = d.Digest(req.FileName)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Upload",
		"request_id": req.ID.String(),
		"size":       humanize.Bytes(uint64(sent)),
	}).Info("Upload finished")

	return res, nil
}
