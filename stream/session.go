package stream

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/wavlink/limits"
	"github.com/opd-ai/wavlink/transport"
)

var (
	// ErrNoFileSelected indicates Start was called without a file.
	ErrNoFileSelected = errors.New("no file selected")

	// ErrSourceNotFound indicates the file to stream does not exist.
	ErrSourceNotFound = errors.New("stream source not found")

	// ErrEmptySource indicates the file has no data to send.
	ErrEmptySource = errors.New("stream source is empty")
)

// DefaultGroup is the multicast group streams are sent to.
var DefaultGroup = net.IPv4(234, 5, 6, 7)

const (
	// DefaultPort is the destination port of stream datagrams.
	DefaultPort = 9000

	// DefaultTTL keeps streams within two router hops.
	DefaultTTL = 2
)

// Options configure both ends of a stream.
type Options struct {
	Group     net.IP
	Port      int
	TTL       int
	Loopback  bool
	Interface *net.Interface
	ChunkSize int
}

// DefaultOptions returns the standard group, port and TTL with loopback
// disabled.
func DefaultOptions() Options {
	return Options{
		Group:     DefaultGroup,
		Port:      DefaultPort,
		TTL:       DefaultTTL,
		ChunkSize: limits.StreamChunkSize,
	}
}

func (o Options) normalize() (Options, error) {
	if o.Group == nil || o.Group.To4() == nil {
		return o, fmt.Errorf("%w: stream group must be IPv4", transport.ErrConfiguration)
	}
	if o.Port <= 0 || o.Port > 65535 {
		return o, fmt.Errorf("%w: stream port %d out of range", transport.ErrConfiguration, o.Port)
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = limits.StreamChunkSize
	}
	if err := limits.ValidateChunkSize(o.ChunkSize, limits.MaxDatagramSize); err != nil {
		return o, fmt.Errorf("%w: %w", transport.ErrConfiguration, err)
	}
	return o, nil
}

func (o Options) destination() *net.UDPAddr {
	return &net.UDPAddr{IP: o.Group, Port: o.Port}
}

// Session is one running broadcast or one joined listener.
type Session struct {
	ID        uuid.UUID
	Group     net.IP
	Port      int
	FileName  string
	StartedAt time.Time

	ep     *transport.Endpoint
	chunks atomic.Int64
	bytes  atomic.Int64
	done   chan struct{}
}

func newSession(ep *transport.Endpoint, opts Options, fileName string) *Session {
	return &Session{
		ID:        uuid.New(),
		Group:     opts.Group,
		Port:      opts.Port,
		FileName:  fileName,
		StartedAt: time.Now(),
		ep:        ep,
		done:      make(chan struct{}),
	}
}

func (s *Session) count(n int) {
	s.chunks.Add(1)
	s.bytes.Add(int64(n))
}

// Chunks returns the number of datagrams sent or received.
func (s *Session) Chunks() int64 {
	return s.chunks.Load()
}

// Bytes returns the payload bytes sent or received.
func (s *Session) Bytes() int64 {
	return s.bytes.Load()
}

// Done is closed when the session has stopped and its sink is stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// LocalAddr returns the session's socket address.
func (s *Session) LocalAddr() net.Addr {
	return s.ep.LocalAddr()
}

// Stop ends the session. It does not wait for Done.
func (s *Session) Stop() error {
	return s.ep.Close()
}
