package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/opd-ai/wavlink/interfaces"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/transport"
	"github.com/sirupsen/logrus"
)

// Broadcaster sends files to a multicast group.
type Broadcaster struct {
	engine *transport.Engine
	store  interfaces.IFileStore
	sink   interfaces.IAudioSink
	status interfaces.IStatusChannel
	opts   Options
}

// NewBroadcaster creates a broadcaster. sink paces the stream and is played
// silently.
func NewBroadcaster(engine *transport.Engine, store interfaces.IFileStore, sink interfaces.IAudioSink, ch interfaces.IStatusChannel, opts Options) *Broadcaster {
	return &Broadcaster{engine: engine, store: store, sink: sink, status: status.Or(ch), opts: opts}
}

// Start sends the first chunk of fileName and returns while the rest of the
// file is sent in the background.
func (b *Broadcaster) Start(ctx context.Context, fileName string) (*Session, error) {
	opts, err := b.opts.normalize()
	if err != nil {
		return nil, err
	}
	if fileName == "" {
		return nil, ErrNoFileSelected
	}
	if !b.store.Exists(fileName) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, fileName)
	}

	ep, err := b.openSocket(ctx, opts)
	if err != nil {
		return nil, err
	}

	rd, err := b.store.Open(fileName)
	if err != nil {
		_ = ep.Close()
		return nil, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	}

	first, err := rd.ReadChunk(opts.ChunkSize)
	if err != nil {
		_ = rd.Close()
		_ = ep.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s", ErrEmptySource, fileName)
		}
		return nil, err
	}

	sess := newSession(ep, opts, fileName)

	if err := b.sink.StartSilentPlayback(); err != nil {
		_ = rd.Close()
		_ = ep.Close()
		return nil, fmt.Errorf("start pacing sink: %w", err)
	}
	if err := b.send(ctx, sess, opts, first); err != nil {
		_ = b.sink.Stop()
		_ = rd.Close()
		_ = ep.Close()
		return nil, err
	}

	err = b.engine.Registry().Go("stream/driver", sess.ID.String(), func(ctx context.Context) {
		b.drive(ctx, sess, opts, rd)
	})
	if err != nil {
		_ = b.sink.Stop()
		_ = rd.Close()
		_ = ep.Close()
		return nil, fmt.Errorf("%w: %w", transport.ErrConfiguration, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Broadcaster.Start",
		"session_id": sess.ID.String(),
		"file":       fileName,
		"group":      opts.Group.String(),
		"port":       opts.Port,
	}).Info("Stream started")

	return sess, nil
}

// openSocket creates the sending socket. Joining the group is required;
// the sender options are best effort.
func (b *Broadcaster) openSocket(ctx context.Context, opts Options) (*transport.Endpoint, error) {
	ep, err := b.engine.CreateSocket(ctx, transport.RoleListener, transport.KindMulticast, "")
	if err != nil {
		return nil, err
	}
	if err := b.engine.Bind(ep, 0); err != nil {
		_ = ep.Close()
		return nil, err
	}
	if err := b.engine.JoinGroup(ep, opts.Group, opts.Interface); err != nil {
		_ = ep.Close()
		return nil, err
	}

	err = b.engine.SetMulticastOptions(ep, transport.MulticastOptions{
		TTL:       opts.TTL,
		Loopback:  opts.Loopback,
		Interface: opts.Interface,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Broadcaster.openSocket",
			"endpoint_id": ep.ID,
			"error":       err.Error(),
		}).Warn("Multicast options not applied")
	}
	return ep, nil
}

// send pushes chunk into the pacing sink and sends it to the group.
func (b *Broadcaster) send(ctx context.Context, sess *Session, opts Options, chunk []byte) error {
	if err := b.sink.PushChunk(chunk); err != nil {
		return fmt.Errorf("push to pacing sink: %w", err)
	}
	n, err := b.engine.IssueWriteTo(ctx, sess.ep, chunk, opts.destination())
	if err != nil {
		return err
	}
	sess.count(n)
	return nil
}

func (b *Broadcaster) drive(ctx context.Context, sess *Session, opts Options, rd interfaces.IChunkReader) {
	defer close(sess.done)
	defer rd.Close()
	defer sess.ep.Close()
	defer b.sink.Stop()

	skipped := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.ep.Done():
			return
		case <-b.sink.Exhausted():
		}

		// The sink's start-up report precedes any audio.
		if !skipped {
			skipped = true
			continue
		}

		chunk, err := rd.ReadChunk(opts.ChunkSize)
		if errors.Is(err, io.EOF) {
			logrus.WithFields(logrus.Fields{
				"function":   "Broadcaster.drive",
				"session_id": sess.ID.String(),
				"chunks":     sess.Chunks(),
				"bytes":      sess.Bytes(),
			}).Info("Stream finished")
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Broadcaster.drive",
				"session_id": sess.ID.String(),
				"error":      err.Error(),
			}).Error("Reading stream source failed")
			return
		}

		if err := b.send(ctx, sess, opts, chunk); err != nil {
			// Datagram loss is tolerated; the stream keeps its pace.
			logrus.WithFields(logrus.Fields{
				"function":   "Broadcaster.drive",
				"session_id": sess.ID.String(),
				"error":      err.Error(),
			}).Warn("Stream chunk not sent")
			if !sess.ep.Usable() {
				return
			}
		}
	}
}
