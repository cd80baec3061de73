package av

import (
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/wavlink/limits"
	"github.com/opd-ai/wavlink/transport"
)

// DefaultInterval is the pause between voice datagrams.
const DefaultInterval = 100 * time.Millisecond

// DefaultRecvBuffer is the SO_RCVBUF of a voice receiver.
const DefaultRecvBuffer = 64 * limits.VoiceChunkSize

// Options configure the voice relay.
type Options struct {
	Interval   time.Duration
	ChunkSize  int
	RecvBuffer int
	// Recording receives a copy of everything the microphone captures.
	Recording io.Writer
}

// DefaultOptions returns 1000-byte chunks every 100 ms.
func DefaultOptions() Options {
	return Options{
		Interval:   DefaultInterval,
		ChunkSize:  limits.VoiceChunkSize,
		RecvBuffer: DefaultRecvBuffer,
	}
}

func (o Options) normalize() (Options, error) {
	if o.Interval <= 0 {
		return o, fmt.Errorf("%w: %s", ErrInvalidInterval, o.Interval)
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = limits.VoiceChunkSize
	}
	if err := limits.ValidateChunkSize(o.ChunkSize, limits.MaxDatagramSize); err != nil {
		return o, fmt.Errorf("%w: %w", transport.ErrConfiguration, err)
	}
	return o, nil
}

// CallSession is one side of a call.
type CallSession struct {
	ID uuid.UUID
	// Remote is the peer voice address; nil on the receiving side.
	Remote    net.Addr
	StartedAt time.Time

	ep     *transport.Endpoint
	active atomic.Bool
	frames atomic.Int64
	bytes  atomic.Int64
	done   chan struct{}

	peerOnce sync.Once
	peer     net.Addr
	peerSeen chan struct{}
}

func newCallSession(ep *transport.Endpoint, remote net.Addr) *CallSession {
	s := &CallSession{
		ID:        uuid.New(),
		Remote:    remote,
		StartedAt: time.Now(),
		ep:        ep,
		done:      make(chan struct{}),
		peerSeen:  make(chan struct{}),
	}
	s.active.Store(true)
	return s
}

func (s *CallSession) count(n int) {
	s.frames.Add(1)
	s.bytes.Add(int64(n))
}

// sawPeer records the sender of the first datagram played.
func (s *CallSession) sawPeer(from net.Addr) {
	if from == nil {
		return
	}
	s.peerOnce.Do(func() {
		s.peer = from
		close(s.peerSeen)
	})
}

// PeerSeen is closed when the first datagram arrives on a receiving session.
func (s *CallSession) PeerSeen() <-chan struct{} {
	return s.peerSeen
}

// Peer returns the address the first datagram came from, or nil before
// PeerSeen is closed.
func (s *CallSession) Peer() net.Addr {
	select {
	case <-s.peerSeen:
		return s.peer
	default:
		return nil
	}
}

// Active reports whether the call is running.
func (s *CallSession) Active() bool {
	return s.active.Load()
}

// Frames returns the number of voice datagrams sent or played.
func (s *CallSession) Frames() int64 {
	return s.frames.Load()
}

// Bytes returns the voice payload bytes sent or played.
func (s *CallSession) Bytes() int64 {
	return s.bytes.Load()
}

// LocalAddr returns the session's socket address.
func (s *CallSession) LocalAddr() net.Addr {
	return s.ep.LocalAddr()
}

// Done is closed once the call's goroutine has exited and its device has
// stopped.
func (s *CallSession) Done() <-chan struct{} {
	return s.done
}

// Hangup ends the call locally. It is safe to call more than once.
func (s *CallSession) Hangup() error {
	s.active.Store(false)
	return s.ep.Close()
}
