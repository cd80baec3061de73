package transport

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// Role is the part an endpoint plays in its connection.
type Role uint8

const (
	// RoleListener is a server socket: a TCP listener or a server-side
	// datagram socket.
	RoleListener Role = iota
	// RoleAcceptedPeer is a connection produced by accept.
	RoleAcceptedPeer
	// RoleOutboundPeer is a client socket.
	RoleOutboundPeer
)

var roleName = map[Role]string{
	RoleListener:     "listener",
	RoleAcceptedPeer: "accepted-peer",
	RoleOutboundPeer: "outbound-peer",
}

func (r Role) String() string {
	if name, ok := roleName[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// Kind is the protocol an endpoint speaks.
type Kind uint8

const (
	// KindTCP carries the file transfer protocol.
	KindTCP Kind = iota
	// KindMulticast carries the stream distribution protocol.
	KindMulticast
	// KindVoice carries the voice relay protocol.
	KindVoice
)

var kindName = map[Kind]string{
	KindTCP:       "tcp",
	KindMulticast: "udp-multicast",
	KindVoice:     "udp-voice",
}

func (k Kind) String() string {
	if name, ok := kindName[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Datagram reports whether the kind uses a UDP socket.
func (k Kind) Datagram() bool {
	return k == KindMulticast || k == KindVoice
}

// State is an endpoint's lifecycle state.
type State uint8

const (
	StateCreated State = iota
	StateBound
	StateConnecting
	StateListening
	StateConnected
	StateTransferring
	StateIdle
	StateClosing
	StateClosed
)

var stateName = map[State]string{
	StateCreated:      "created",
	StateBound:        "bound",
	StateConnecting:   "connecting",
	StateListening:    "listening",
	StateConnected:    "connected",
	StateTransferring: "transferring",
	StateIdle:         "idle",
	StateClosing:      "closing",
	StateClosed:       "closed",
}

func (s State) String() string {
	if name, ok := stateName[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// live reports whether the socket handle may be used in this state.
func (s State) live() bool {
	switch s {
	case StateBound, StateListening, StateConnected, StateTransferring, StateIdle:
		return true
	}
	return false
}

// Endpoint is one socket tracked by the engine's registry.
type Endpoint struct {
	ID   uint64
	Role Role
	Kind Kind

	engine *Engine
	slot   int

	mu       sync.Mutex
	state    State
	fd       int
	peerIP   net.IP
	conn     net.Conn
	pconn    net.PacketConn
	listener net.Listener

	reading        atomic.Bool
	closeRequested atomic.Bool
	closeOnce      sync.Once
	closing        chan struct{}
	done           chan struct{}

	writeOnce sync.Once
	writes    chan writeRequest
	writerErr error
}

func newEndpoint(e *Engine, id uint64, role Role, kind Kind) *Endpoint {
	return &Endpoint{
		ID:      id,
		Role:    role,
		Kind:    kind,
		engine:  e,
		slot:    -1,
		state:   StateCreated,
		fd:      -1,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// String identifies the endpoint in logs and status messages.
func (ep *Endpoint) String() string {
	return fmt.Sprintf("%s/%s#%d", ep.Kind, ep.Role, ep.ID)
}

// State returns the current lifecycle state.
func (ep *Endpoint) State() State {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.state
}

// Usable reports whether new operations may be issued.
func (ep *Endpoint) Usable() bool {
	return ep.State().live()
}

// Reading reports whether a read loop is armed.
func (ep *Endpoint) Reading() bool {
	return ep.reading.Load()
}

// Done is closed once the endpoint reaches StateClosed.
func (ep *Endpoint) Done() <-chan struct{} {
	return ep.done
}

// PeerIP returns the address resolved when the socket was created, if any.
func (ep *Endpoint) PeerIP() net.IP {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.peerIP
}

// LocalAddr returns the bound local address, or nil before binding.
func (ep *Endpoint) LocalAddr() net.Addr {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	switch {
	case ep.listener != nil:
		return ep.listener.Addr()
	case ep.conn != nil:
		return ep.conn.LocalAddr()
	case ep.pconn != nil:
		return ep.pconn.LocalAddr()
	case ep.fd >= 0:
		return sockName(ep.fd, ep.Kind)
	}
	return nil
}

// RemoteAddr returns the connected peer, or nil for unconnected sockets.
func (ep *Endpoint) RemoteAddr() net.Addr {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.conn != nil {
		return ep.conn.RemoteAddr()
	}
	return nil
}

// Close closes the endpoint. It is safe to call more than once.
func (ep *Endpoint) Close() error {
	return ep.engine.CloseEndpoint(ep)
}

// addr is the best address for error messages.
func (ep *Endpoint) addr() string {
	if a := ep.RemoteAddr(); a != nil {
		return a.String()
	}
	if a := ep.LocalAddr(); a != nil {
		return a.String()
	}
	return ep.String()
}

// expect fails unless the endpoint is in one of the given states.
// Callers hold ep.mu.
func (ep *Endpoint) expect(op string, states ...State) error {
	for _, s := range states {
		if ep.state == s {
			return nil
		}
	}
	if ep.state == StateClosing || ep.state == StateClosed {
		return opError(op, ep.String(), ErrConnectionLost, ErrEndpointClosed)
	}
	return opError(op, ep.String(), ErrInvalidState, fmt.Errorf("endpoint is %s", ep.state))
}

// beginRead moves a live endpoint to Idle while a read is outstanding.
func (ep *Endpoint) beginRead() bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if !ep.state.live() || ep.closeRequested.Load() {
		return false
	}
	ep.state = StateIdle
	return true
}

// markTransferring records that data is moving, unless the endpoint is
// already closing.
func (ep *Endpoint) markTransferring() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.state.live() && ep.state != StateListening {
		ep.state = StateTransferring
	}
}

// handles snapshots the runtime handles for I/O outside the lock.
func (ep *Endpoint) handles() (net.Conn, net.PacketConn, net.Listener) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.conn, ep.pconn, ep.listener
}
