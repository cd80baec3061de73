package audio

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func waitEvent(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no exhausted event")
	}
}

func TestQuantum(t *testing.T) {
	assert.Equal(t, 640, quantum(ByteRate, 20*time.Millisecond))
	assert.Equal(t, 1, quantum(10, time.Millisecond))
}

func TestPacedSinkStartEmitsIdleEvent(t *testing.T) {
	s := NewPacedSink()
	require.NoError(t, s.StartSilentPlayback())
	defer s.Stop()

	waitEvent(t, s.Exhausted())
	assert.ErrorIs(t, s.StartPlayback(), ErrAlreadyStarted)
}

func TestPacedSinkDrainsAndSignals(t *testing.T) {
	out := &safeBuffer{}
	s := NewPacedSink(WithOutput(out), WithByteRate(100000), WithTick(5*time.Millisecond))
	require.NoError(t, s.StartPlayback())
	defer s.Stop()
	waitEvent(t, s.Exhausted())

	data := bytes.Repeat([]byte{0xAB}, 1500)
	require.NoError(t, s.PushChunk(data))
	waitEvent(t, s.Exhausted())

	assert.Equal(t, 0, s.Buffered())
	assert.Equal(t, data, out.Bytes())
}

func TestPacedSinkSilentDiscards(t *testing.T) {
	out := &safeBuffer{}
	s := NewPacedSink(WithOutput(out), WithByteRate(100000), WithTick(5*time.Millisecond))
	require.NoError(t, s.StartSilentPlayback())
	waitEvent(t, s.Exhausted())

	require.NoError(t, s.PushChunk(make([]byte, 400)))
	waitEvent(t, s.Exhausted())
	require.NoError(t, s.Stop())

	assert.Empty(t, out.Bytes())
}

func TestPacedSinkPushRequiresStart(t *testing.T) {
	s := NewPacedSink()
	assert.ErrorIs(t, s.PushChunk([]byte{1}), ErrNotStarted)
	assert.NoError(t, s.Stop(), "stopping a stopped sink is a no-op")
}

func TestCaptureBufferChunks(t *testing.T) {
	var rec bytes.Buffer
	b := NewCaptureBuffer(&rec)

	assert.Empty(t, b.ReadChunk(1000))

	_, err := b.Write(bytes.Repeat([]byte{1}, 2500))
	require.NoError(t, err)

	assert.Len(t, b.ReadChunk(1000), 1000)
	assert.Len(t, b.ReadChunk(1000), 1000)
	assert.Len(t, b.ReadChunk(1000), 500)
	assert.Empty(t, b.ReadChunk(1000))
	assert.Equal(t, 2500, rec.Len(), "every captured byte is recorded")
}

func TestReaderMicrophoneCaptures(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{7}, 3000))
	mic := NewReaderMicrophone(src, 200000)
	var rec safeBuffer

	_, err := mic.ReadChunk(10)
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, mic.StartCapture(&rec))
	assert.ErrorIs(t, mic.StartCapture(&rec), ErrAlreadyStarted)

	var got []byte
	require.Eventually(t, func() bool {
		chunk, _ := mic.ReadChunk(1000)
		got = append(got, chunk...)
		return len(got) == 3000
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, mic.StopCapture())
	assert.Len(t, rec.Bytes(), 3000)
}

func TestPacedSinkRestartDiscardsStaleEvents(t *testing.T) {
	s := NewPacedSink(WithOutput(&safeBuffer{}), WithByteRate(100000), WithTick(5*time.Millisecond))
	require.NoError(t, s.StartPlayback())

	// Several drains nobody reads.
	for i := 0; i < 3; i++ {
		require.NoError(t, s.PushChunk(make([]byte, 100)))
		require.Eventually(t, func() bool { return s.Buffered() == 0 }, 2*time.Second, 5*time.Millisecond)
	}
	assert.Len(t, s.events, 1, "unread drains coalesce")
	require.NoError(t, s.Stop())

	require.NoError(t, s.StartSilentPlayback())
	defer s.Stop()
	waitEvent(t, s.Exhausted())
	select {
	case <-s.Exhausted():
		t.Fatal("event from the earlier run survived the restart")
	case <-time.After(50 * time.Millisecond):
	}
}
