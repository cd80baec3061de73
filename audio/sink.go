package audio

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PacedSink is a playback buffer drained at a fixed byte rate.
type PacedSink struct {
	rate int
	tick time.Duration
	out  io.Writer

	mu      sync.Mutex
	buf     []byte
	silent  bool
	running bool
	stop    chan struct{}
	done    chan struct{}

	events chan struct{}
}

// SinkOption configures a PacedSink.
type SinkOption func(*PacedSink)

// WithByteRate overrides the consumption rate in bytes per second.
func WithByteRate(rate int) SinkOption {
	return func(s *PacedSink) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

// WithTick overrides how often the sink consumes audio.
func WithTick(tick time.Duration) SinkOption {
	return func(s *PacedSink) {
		if tick > 0 {
			s.tick = tick
		}
	}
}

// WithOutput sets where audible playback writes consumed audio.
func WithOutput(w io.Writer) SinkOption {
	return func(s *PacedSink) {
		s.out = w
	}
}

// NewPacedSink creates a stopped sink.
func NewPacedSink(opts ...SinkOption) *PacedSink {
	s := &PacedSink{
		rate:   ByteRate,
		tick:   DefaultTick,
		events: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartPlayback implements interfaces.IAudioSink.
func (s *PacedSink) StartPlayback() error {
	return s.start(false)
}

// StartSilentPlayback implements interfaces.IAudioSink.
func (s *PacedSink) StartSilentPlayback() error {
	return s.start(true)
}

func (s *PacedSink) start(silent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}
	s.running = true
	s.silent = silent
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	logrus.WithFields(logrus.Fields{
		"function": "PacedSink.start",
		"silent":   silent,
		"rate":     s.rate,
	}).Debug("Playback started")

	// Events left over from an earlier run are stale.
	select {
	case <-s.events:
	default:
	}
	// A freshly started device reports its empty buffer once.
	s.signal()

	go s.run(s.stop, s.done)
	return nil
}

// PushChunk implements interfaces.IAudioSink.
func (s *PacedSink) PushChunk(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotStarted
	}
	s.buf = append(s.buf, data...)
	return nil
}

// Stop implements interfaces.IAudioSink. Stopping a stopped sink is a no-op.
func (s *PacedSink) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.buf = nil
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	logrus.WithFields(logrus.Fields{
		"function": "PacedSink.Stop",
	}).Debug("Playback stopped")
	return nil
}

// Exhausted implements interfaces.IAudioSink. Drains nobody consumed are
// coalesced into one pending event, and starting the sink discards it.
func (s *PacedSink) Exhausted() <-chan struct{} {
	return s.events
}

// Buffered returns the number of bytes waiting to be played.
func (s *PacedSink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// signal reports an empty buffer. An unread report already says the same,
// so at most one is pending.
func (s *PacedSink) signal() {
	select {
	case s.events <- struct{}{}:
	default:
	}
}

func (s *PacedSink) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	q := quantum(s.rate, s.tick)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if len(s.buf) == 0 {
			s.mu.Unlock()
			continue
		}
		n := min(q, len(s.buf))
		chunk := s.buf[:n]
		s.buf = s.buf[n:]
		drained := len(s.buf) == 0
		out := s.out
		if s.silent {
			out = nil
		}
		s.mu.Unlock()

		if out != nil {
			if _, err := out.Write(chunk); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "PacedSink.run",
					"error":    err.Error(),
				}).Warn("Playback output failed")
			}
		}
		if drained {
			s.signal()
		}
	}
}
