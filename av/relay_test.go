//go:build unix

package av

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/wavlink/audio"
	"github.com/opd-ai/wavlink/limits"
	"github.com/opd-ai/wavlink/registry"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	chunks  [][]byte
	started bool
	stopped bool
	events  chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan struct{})}
}

func (s *recordingSink) StartPlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *recordingSink) StartSilentPlayback() error { return s.StartPlayback() }

func (s *recordingSink) PushChunk(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, append([]byte(nil), data...))
	return nil
}

func (s *recordingSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *recordingSink) Exhausted() <-chan struct{} { return s.events }

func (s *recordingSink) played() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.chunks...)
}

// queueMic hands out prepared chunks, then nothing.
type queueMic struct {
	mu       sync.Mutex
	queue    [][]byte
	capture  io.Writer
	stopped  bool
	startErr error
}

func (m *queueMic) StartCapture(sink io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.capture = sink
	return nil
}

func (m *queueMic) StopCapture() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *queueMic) ReadChunk(max int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, nil
	}
	chunk := m.queue[0]
	m.queue = m.queue[1:]
	if len(chunk) > max {
		chunk = chunk[:max]
	}
	return chunk, nil
}

func (m *queueMic) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func newTestEngine(t *testing.T) *transport.Engine {
	t.Helper()
	reg, err := registry.New(limits.DefaultMaxPerRole)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.ShutdownAll() })
	e, err := transport.NewEngine(reg)
	require.NoError(t, err)
	return e
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.Interval = 5 * time.Millisecond
	return opts
}

func TestVoiceRelayEndToEnd(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	sink := newRecordingSink()
	incoming, err := NewReceiver(engine, sink, nil, fastOptions()).Listen(ctx, 0)
	require.NoError(t, err)
	port := incoming.LocalAddr().(*net.UDPAddr).Port

	mic := &queueMic{queue: [][]byte{
		bytes.Repeat([]byte{1}, 1000),
		bytes.Repeat([]byte{2}, 1000),
		bytes.Repeat([]byte{3}, 600),
	}}
	call, err := NewSender(engine, mic, nil, fastOptions()).Call(ctx, "127.0.0.1", port)
	require.NoError(t, err)
	assert.True(t, call.Active())

	require.Eventually(t, func() bool { return len(sink.played()) == 3 }, 5*time.Second, 5*time.Millisecond)
	played := sink.played()
	assert.Len(t, played[0], 1000)
	assert.Equal(t, byte(2), played[1][0])
	assert.Len(t, played[2], 600)
	assert.Equal(t, int64(3), call.Frames())
	assert.Equal(t, int64(2600), incoming.Bytes())

	require.NoError(t, call.Hangup())
	require.NoError(t, call.Hangup(), "hanging up twice is harmless")
	<-call.Done()
	assert.False(t, call.Active())
	assert.True(t, mic.isStopped())

	require.NoError(t, incoming.Hangup())
	<-incoming.Done()
	assert.True(t, sink.stopped)
}

func TestSenderCapturesIntoRecording(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	sink := newRecordingSink()
	incoming, err := NewReceiver(engine, sink, nil, fastOptions()).Listen(ctx, 0)
	require.NoError(t, err)
	port := incoming.LocalAddr().(*net.UDPAddr).Port

	var recording bytes.Buffer
	opts := fastOptions()
	opts.Recording = &recording
	src := bytes.NewReader(bytes.Repeat([]byte{9}, 2500))
	mic := audio.NewReaderMicrophone(src, 500000)

	call, err := NewSender(engine, mic, nil, opts).Call(ctx, "127.0.0.1", port)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return incoming.Bytes() == 2500 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, call.Hangup())
	<-call.Done()

	for _, chunk := range sink.played() {
		assert.LessOrEqual(t, len(chunk), limits.VoiceChunkSize)
	}
	assert.Equal(t, 2500, recording.Len())
}

func TestSenderCaptureFailure(t *testing.T) {
	engine := newTestEngine(t)
	mic := &queueMic{startErr: errors.New("no device")}
	ch := status.NewChan(4)

	_, err := NewSender(engine, mic, ch, fastOptions()).Call(context.Background(), "127.0.0.1", 9)
	assert.ErrorIs(t, err, ErrCaptureFailed)
	assert.Empty(t, engine.Registry().Roles())
}

type noHosts struct{}

func (noHosts) LookupIPAddr(context.Context, string) ([]net.IPAddr, error) {
	return nil, errors.New("no such host")
}

func TestSenderResolutionFailure(t *testing.T) {
	reg, err := registry.New(4)
	require.NoError(t, err)
	engine, err := transport.NewEngine(reg, transport.WithResolver(noHosts{}))
	require.NoError(t, err)
	ch := status.NewChan(4)

	_, err = NewSender(engine, &queueMic{}, ch, fastOptions()).Call(context.Background(), "peer.invalid", 9001)
	assert.ErrorIs(t, err, transport.ErrAddressResolutionFailed)
	assert.Equal(t, "Unable to connect to server..", <-ch.C)
}

func TestOptionsValidation(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 100*time.Millisecond, opts.Interval)
	assert.Equal(t, 1000, opts.ChunkSize)

	opts.Interval = 0
	_, err := opts.normalize()
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestReceiverPortInUse(t *testing.T) {
	engine := newTestEngine(t)
	busy, err := net.ListenUDP("udp4", &net.UDPAddr{})
	require.NoError(t, err)
	defer busy.Close()

	_, err = NewReceiver(engine, newRecordingSink(), nil, fastOptions()).Listen(context.Background(), busy.LocalAddr().(*net.UDPAddr).Port)
	assert.ErrorIs(t, err, transport.ErrBindFailed)
}

func TestDuplexCallAnswersFirstPeer(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	calleeSink := newRecordingSink()
	incoming, err := NewReceiver(engine, calleeSink, nil, fastOptions()).Listen(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, incoming.Peer())
	port := incoming.LocalAddr().(*net.UDPAddr).Port

	callerMic := &queueMic{queue: [][]byte{bytes.Repeat([]byte{7}, 100)}}
	call, err := NewSender(engine, callerMic, nil, fastOptions()).Call(ctx, "127.0.0.1", port)
	require.NoError(t, err)
	callerSink := newRecordingSink()
	back, err := NewReceiver(engine, callerSink, nil, fastOptions()).Attach(call)
	require.NoError(t, err)

	select {
	case <-incoming.PeerSeen():
	case <-time.After(5 * time.Second):
		t.Fatal("callee never saw the caller")
	}
	assert.Equal(t, call.LocalAddr().(*net.UDPAddr).Port, incoming.Peer().(*net.UDPAddr).Port)

	calleeMic := &queueMic{queue: [][]byte{bytes.Repeat([]byte{8}, 200)}}
	answer, err := NewSender(engine, calleeMic, nil, fastOptions()).Reply(incoming, incoming.Peer())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(callerSink.played()) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, bytes.Repeat([]byte{8}, 200), callerSink.played()[0])
	assert.Equal(t, int64(200), back.Bytes())

	require.NoError(t, call.Hangup())
	<-call.Done()
	<-back.Done()
	assert.False(t, back.Active())

	require.NoError(t, answer.Hangup())
	<-answer.Done()
	<-incoming.Done()
	assert.True(t, calleeMic.isStopped())
}

func TestReplyWithoutPeer(t *testing.T) {
	engine := newTestEngine(t)
	incoming, err := NewReceiver(engine, newRecordingSink(), nil, fastOptions()).Listen(context.Background(), 0)
	require.NoError(t, err)
	defer incoming.Hangup()

	_, err = NewSender(engine, &queueMic{}, nil, fastOptions()).Reply(incoming, nil)
	assert.ErrorIs(t, err, transport.ErrConfiguration)
}
