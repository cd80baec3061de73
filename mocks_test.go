package wavlink

import (
	"io"
	"sync"
)

type recordingSink struct {
	mu      sync.Mutex
	chunks  [][]byte
	started int
	stopped int
	events  chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan struct{})}
}

func (s *recordingSink) StartPlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
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
	s.stopped++
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
	mu      sync.Mutex
	queue   [][]byte
	capture io.Writer
}

func (m *queueMic) StartCapture(sink io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capture = sink
	return nil
}

func (m *queueMic) StopCapture() error { return nil }

func (m *queueMic) ReadChunk(max int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, nil
	}
	chunk := m.queue[0]
	m.queue = m.queue[1:]
	if m.capture != nil {
		_, _ = m.capture.Write(chunk)
	}
	if len(chunk) > max {
		chunk = chunk[:max]
	}
	return chunk, nil
}
