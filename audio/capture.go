package audio

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CaptureBuffer collects captured audio and hands it out in chunks. Writes
// are mirrored to an optional recording writer.
type CaptureBuffer struct {
	mu     sync.Mutex
	data   []byte
	cursor int
	record io.Writer
}

// NewCaptureBuffer creates a buffer that also writes to record when non-nil.
func NewCaptureBuffer(record io.Writer) *CaptureBuffer {
	return &CaptureBuffer{record: record}
}

// Write appends p.
func (b *CaptureBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, p...)
	if b.record != nil {
		if _, err := b.record.Write(p); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// ReadChunk returns up to max unread bytes. It returns an empty slice when
// nothing new has been captured.
func (b *CaptureBuffer) ReadChunk(max int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(max, len(b.data)-b.cursor)
	if n <= 0 {
		return nil
	}
	chunk := make([]byte, n)
	copy(chunk, b.data[b.cursor:b.cursor+n])
	b.cursor += n

	// Drop consumed audio once the reader has caught up.
	if b.cursor == len(b.data) {
		b.data = b.data[:0]
		b.cursor = 0
	}
	return chunk
}

// Len returns the number of unread bytes.
func (b *CaptureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data) - b.cursor
}

// ReaderMicrophone captures audio from an io.Reader, delivering it at the
// PCM byte rate as a sound card would.
type ReaderMicrophone struct {
	src  io.Reader
	rate int
	tick time.Duration

	buf *CaptureBuffer

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewReaderMicrophone wraps src. rate is in bytes per second; zero selects
// ByteRate.
func NewReaderMicrophone(src io.Reader, rate int) *ReaderMicrophone {
	if rate <= 0 {
		rate = ByteRate
	}
	return &ReaderMicrophone{src: src, rate: rate, tick: DefaultTick}
}

// StartCapture implements interfaces.IMicrophone. Captured audio goes to
// sink and is also available through ReadChunk.
func (m *ReaderMicrophone) StartCapture(sink io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyStarted
	}
	m.running = true
	m.buf = NewCaptureBuffer(sink)
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	logrus.WithFields(logrus.Fields{
		"function": "ReaderMicrophone.StartCapture",
		"rate":     m.rate,
	}).Info("Capture started")

	go m.run(m.buf, m.stop, m.done)
	return nil
}

// StopCapture implements interfaces.IMicrophone.
func (m *ReaderMicrophone) StopCapture() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done

	logrus.WithFields(logrus.Fields{
		"function": "ReaderMicrophone.StopCapture",
	}).Info("Capture stopped")
	return nil
}

// ReadChunk implements interfaces.IMicrophone.
func (m *ReaderMicrophone) ReadChunk(max int) ([]byte, error) {
	m.mu.Lock()
	buf := m.buf
	m.mu.Unlock()

	if buf == nil {
		return nil, ErrNotStarted
	}
	return buf.ReadChunk(max), nil
}

func (m *ReaderMicrophone) run(buf *CaptureBuffer, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	frame := make([]byte, quantum(m.rate, m.tick))
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		n, err := io.ReadFull(m.src, frame)
		if n > 0 {
			if _, werr := buf.Write(frame[:n]); werr != nil {
				logrus.WithFields(logrus.Fields{
					"function": "ReaderMicrophone.run",
					"error":    werr.Error(),
				}).Warn("Recording write failed")
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				logrus.WithFields(logrus.Fields{
					"function": "ReaderMicrophone.run",
					"error":    err.Error(),
				}).Error("Capture source failed")
			}
			return
		}
	}
}
