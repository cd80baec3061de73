package wavlink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/opd-ai/wavlink/av"
	"github.com/opd-ai/wavlink/file"
	"github.com/opd-ai/wavlink/interfaces"
	"github.com/opd-ai/wavlink/stream"
	"github.com/opd-ai/wavlink/transport"
	"github.com/sirupsen/logrus"
)

// Client talks to one server at opts.Config.Server.Host.
type Client struct {
	opts   *Options
	engine *transport.Engine
	store  *file.DirStore
	files  *file.Client
	status interfaces.IStatusChannel
	sink   interfaces.IAudioSink

	mu     sync.Mutex
	joined *stream.Session
	calls  []*av.CallSession
}

// NewClient creates a client whose downloads land in, and uploads come from,
// opts.Config.Server.FilesDir.
func NewClient(opts *Options) (*Client, error) {
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
	ch := opts.statusChannel("client")

	return &Client{
		opts:   opts,
		engine: engine,
		store:  store,
		files:  file.NewClient(engine, store, ch),
		status: ch,
		sink:   opts.sink(),
	}, nil
}

func (c *Client) request(fileName string, dir file.Direction) file.TransferRequest {
	cfg := c.opts.Config.Server
	return file.NewTransferRequest(cfg.Host, cfg.Port, fileName, dir)
}

// Download fetches fileName from the server and saves it under the same
// name. A missing remote file yields file.OutcomeNotFound and a nil error.
func (c *Client) Download(ctx context.Context, fileName string) (file.Result, error) {
	req := c.request(fileName, file.DirectionDownload)
	req.SaveAs = fileName
	return c.files.Download(ctx, req)
}

// DownloadAs fetches fileName and saves it as saveAs; an empty saveAs names
// the file after the connection.
func (c *Client) DownloadAs(ctx context.Context, fileName, saveAs string) (file.Result, error) {
	req := c.request(fileName, file.DirectionDownload)
	req.SaveAs = saveAs
	return c.files.Download(ctx, req)
}

// Upload sends fileName to the server, which stores it under a name derived
// from its socket.
func (c *Client) Upload(ctx context.Context, fileName string) (file.Result, error) {
	return c.files.Upload(ctx, c.request(fileName, file.DirectionUpload))
}

// JoinStream joins the configured multicast group and plays what arrives
// until Disconnect.
func (c *Client) JoinStream(ctx context.Context) (*stream.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.joined != nil && !closed(c.joined.Done()) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, ProtocolMulticast)
	}
	opts, err := c.opts.streamOptions()
	if err != nil {
		return nil, err
	}
	sess, err := stream.NewListener(c.engine, c.sink, c.status, opts).Join(ctx)
	if err != nil {
		return nil, err
	}
	c.joined = sess
	return sess, nil
}

// Call sends the microphone to the server's voice port and plays whatever
// the server answers on the same socket. The capture is also written to the
// configured recording file.
func (c *Client) Call(ctx context.Context) (*av.CallSession, error) {
	if c.opts.Microphone == nil {
		return nil, ErrNoMicrophone
	}
	cfg := c.opts.Config

	opts := c.opts.voiceOptions()
	var recording *os.File
	if cfg.Voice.RecordingFile != "" {
		f, err := os.Create(cfg.Voice.RecordingFile)
		if err != nil {
			return nil, fmt.Errorf("%w: recording file: %w", transport.ErrConfiguration, err)
		}
		recording = f
		opts.Recording = f
	}

	call, err := av.NewSender(c.engine, c.opts.Microphone, c.status, opts).Call(ctx, cfg.Server.Host, cfg.Voice.Port)
	if err != nil {
		if recording != nil {
			_ = recording.Close()
		}
		return nil, err
	}

	if recording != nil {
		err := c.engine.Registry().Go("voice/recording", call.ID.String(), func(context.Context) {
			<-call.Done()
			if err := recording.Close(); err != nil {
				logrus.WithFields(logrus.Fields{
					"function":   "Client.Call",
					"session_id": call.ID.String(),
					"error":      err.Error(),
				}).Warn("Closing recording failed")
			}
		})
		if err != nil {
			_ = call.Hangup()
			<-call.Done()
			_ = recording.Close()
			return nil, fmt.Errorf("%w: %w", transport.ErrConfiguration, err)
		}
	}

	back, err := av.NewReceiver(c.engine, c.sink, c.status, opts).Attach(call)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Client.Call",
			"session_id": call.ID.String(),
			"error":      err.Error(),
		}).Warn("Answer playback unavailable")
	}

	c.mu.Lock()
	c.calls = append(c.calls, call)
	if back != nil {
		c.calls = append(c.calls, back)
	}
	c.mu.Unlock()

	return call, nil
}

// Disconnect ends every transfer, stream and call the client started and
// waits for their goroutines.
func (c *Client) Disconnect() error {
	c.status.Post("Disconnecting Client..")

	err := c.engine.Registry().ShutdownAll()

	c.mu.Lock()
	c.joined = nil
	c.calls = nil
	c.mu.Unlock()

	c.status.Post("Disconnected..")
	logrus.WithFields(logrus.Fields{
		"function": "Client.Disconnect",
	}).Info("Client disconnected")
	return err
}
