package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"syscall"

	"github.com/opd-ai/wavlink/limits"
	"github.com/opd-ai/wavlink/registry"
	"github.com/sirupsen/logrus"
)

// Resolver looks up host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Engine creates endpoints and runs their I/O.
type Engine struct {
	reg      *registry.Registry
	resolver Resolver
	readSize int
	nextID   atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver replaces the system resolver.
func WithResolver(r Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithReadBufferSize sets the default read buffer size.
func WithReadBufferSize(n int) Option {
	return func(e *Engine) {
		e.readSize = n
	}
}

// NewEngine creates an engine whose endpoints and goroutines are tracked by reg.
func NewEngine(reg *registry.Registry, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: registry cannot be nil", ErrConfiguration)
	}

	e := &Engine{
		reg:      reg,
		resolver: net.DefaultResolver,
		readSize: limits.StreamChunkSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := limits.ValidateReadBuffer(e.readSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewEngine",
		"read_size": e.readSize,
	}).Debug("Transport engine created")

	return e, nil
}

// Registry returns the registry tracking this engine's endpoints.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// resolve turns host into an IPv4 address.
func (e *Engine) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("%s is not an IPv4 address", host)
	}

	addrs, err := e.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if ip4 := a.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address for %s", host)
}

func validPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfiguration, port)
	}
	return nil
}

// CreateSocket creates an unbound socket. When host is non-empty it is
// resolved first and kept as the endpoint's peer address.
func (e *Engine) CreateSocket(ctx context.Context, role Role, kind Kind, host string) (*Endpoint, error) {
	var ip net.IP
	if host != "" {
		resolved, err := e.resolve(ctx, host)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "CreateSocket",
				"host":     host,
				"error":    err.Error(),
			}).Error("Address resolution failed")
			return nil, opError("resolve", host, ErrAddressResolutionFailed, err)
		}
		ip = resolved
	}

	fd, err := newSocket(kind)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "CreateSocket",
			"kind":     kind.String(),
			"error":    err.Error(),
		}).Error("Socket creation failed")
		return nil, opError("socket", host, ErrSocketCreationFailed, err)
	}

	ep := newEndpoint(e, e.nextID.Add(1), role, kind)
	ep.fd = fd
	ep.peerIP = ip

	slot, err := e.reg.Track(role.String(), ep)
	if err != nil {
		_ = closeRaw(fd)
		return nil, opError("socket", host, ErrConfiguration, err)
	}
	ep.slot = slot

	logrus.WithFields(logrus.Fields{
		"function":    "CreateSocket",
		"endpoint_id": ep.ID,
		"role":        role.String(),
		"kind":        kind.String(),
		"slot":        slot,
		"peer_ip":     ip,
	}).Debug("Socket created")

	return ep, nil
}

// SetReuseAddr enables SO_REUSEADDR. It must precede Bind.
func (e *Engine) SetReuseAddr(ep *Endpoint) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if err := ep.expect("setsockopt", StateCreated); err != nil {
		return err
	}
	if err := setReuseAddr(ep.fd); err != nil {
		return opError("setsockopt", ep.String(), ErrConfiguration, err)
	}
	return nil
}

// SetRecvBuffer sets SO_RCVBUF. It must precede Bind.
func (e *Engine) SetRecvBuffer(ep *Endpoint, size int) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if err := ep.expect("setsockopt", StateCreated); err != nil {
		return err
	}
	if err := setRecvBuffer(ep.fd, size); err != nil {
		return opError("setsockopt", ep.String(), ErrConfiguration, err)
	}
	return nil
}

// Bind binds the socket to port on every interface. Port 0 picks a free
// port. Datagram sockets are ready for I/O once bound.
func (e *Engine) Bind(ep *Endpoint, port int) error {
	if err := validPort(port); err != nil {
		return opError("bind", ep.String(), ErrConfiguration, err)
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()

	if err := ep.expect("bind", StateCreated); err != nil {
		return err
	}

	if err := bindSocket(ep.fd, port); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Bind",
			"endpoint_id": ep.ID,
			"port":        port,
			"error":       err.Error(),
		}).Error("Bind failed")
		return opError("bind", fmt.Sprintf(":%d", port), ErrBindFailed, err)
	}

	if ep.Kind.Datagram() {
		fd := ep.fd
		ep.fd = -1
		pc, err := adoptPacketConn(fd)
		if err != nil {
			return opError("bind", fmt.Sprintf(":%d", port), ErrSocketCreationFailed, err)
		}
		ep.pconn = pc
	}
	ep.state = StateBound

	logrus.WithFields(logrus.Fields{
		"function":    "Bind",
		"endpoint_id": ep.ID,
		"port":        port,
	}).Debug("Socket bound")

	return nil
}

// Listen turns a bound TCP socket into a listener.
func (e *Engine) Listen(ep *Endpoint, backlog int) error {
	if ep.Kind != KindTCP {
		return opError("listen", ep.String(), ErrInvalidState, errors.New("listen requires a TCP endpoint"))
	}
	if backlog <= 0 {
		backlog = limits.DefaultListenBacklog
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()

	if err := ep.expect("listen", StateBound); err != nil {
		return err
	}

	if err := listenSocket(ep.fd, backlog); err != nil {
		return opError("listen", ep.String(), ErrListenFailed, err)
	}

	fd := ep.fd
	ep.fd = -1
	ln, err := adoptListener(fd)
	if err != nil {
		return opError("listen", ep.String(), ErrListenFailed, err)
	}
	ep.listener = ln
	ep.state = StateListening

	logrus.WithFields(logrus.Fields{
		"function":    "Listen",
		"endpoint_id": ep.ID,
		"addr":        ln.Addr().String(),
		"backlog":     backlog,
	}).Info("Listening")

	return nil
}

// Connect connects a TCP endpoint to port on the address resolved by
// CreateSocket. It blocks until the attempt succeeds, fails, ctx is done or
// the endpoint is closed.
func (e *Engine) Connect(ctx context.Context, ep *Endpoint, port int) error {
	if ep.Kind != KindTCP {
		return opError("connect", ep.String(), ErrInvalidState, errors.New("connect requires a TCP endpoint"))
	}
	if err := validPort(port); err != nil {
		return opError("connect", ep.String(), ErrConfiguration, err)
	}

	ep.mu.Lock()
	if err := ep.expect("connect", StateCreated, StateBound); err != nil {
		ep.mu.Unlock()
		return err
	}
	if ep.peerIP == nil {
		ep.mu.Unlock()
		return opError("connect", ep.String(), ErrAddressResolutionFailed, errors.New("no peer address"))
	}
	// The attempt owns the descriptor until it settles; Close only marks
	// the endpoint meanwhile.
	prev, fd, peerIP := ep.state, ep.fd, ep.peerIP
	ep.fd = -1
	ep.state = StateConnecting
	ep.mu.Unlock()

	target := net.JoinHostPort(peerIP.String(), fmt.Sprint(port))
	connErr := connectSocket(ctx, fd, peerIP, port, ep.closeRequested.Load)

	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.state != StateConnecting {
		_ = closeRaw(fd)
		return opError("connect", target, ErrConnectionLost, ErrEndpointClosed)
	}
	if connErr != nil {
		ep.fd = fd
		ep.state = prev
		logrus.WithFields(logrus.Fields{
			"function":    "Connect",
			"endpoint_id": ep.ID,
			"target":      target,
			"error":       connErr.Error(),
		}).Error("Connect failed")
		return opError("connect", target, ErrConnectFailed, connErr)
	}

	conn, err := adoptConn(fd)
	if err != nil {
		ep.state = prev
		return opError("connect", target, ErrConnectFailed, err)
	}
	ep.conn = conn
	ep.state = StateConnected

	logrus.WithFields(logrus.Fields{
		"function":    "Connect",
		"endpoint_id": ep.ID,
		"target":      target,
	}).Info("Connected")

	return nil
}

// Accept waits for the next connection on a listening endpoint.
func (e *Engine) Accept(ep *Endpoint) (*Endpoint, error) {
	_, _, ln := ep.handles()
	if ln == nil || !ep.Usable() {
		return nil, opError("accept", ep.String(), ErrConnectionLost, ErrEndpointClosed)
	}

	conn, err := ln.Accept()
	if err != nil {
		if ep.closeRequested.Load() || errors.Is(err, net.ErrClosed) {
			return nil, opError("accept", ep.addr(), ErrConnectionLost, err)
		}
		return nil, opError("accept", ep.addr(), ErrConnectFailed, err)
	}

	peer := newEndpoint(e, e.nextID.Add(1), RoleAcceptedPeer, KindTCP)
	peer.conn = conn
	peer.state = StateConnected

	slot, err := e.reg.Track(RoleAcceptedPeer.String(), peer)
	if err != nil {
		_ = conn.Close()
		return nil, opError("accept", conn.RemoteAddr().String(), ErrConfiguration, err)
	}
	peer.slot = slot

	logrus.WithFields(logrus.Fields{
		"function":    "Accept",
		"endpoint_id": peer.ID,
		"remote":      conn.RemoteAddr().String(),
		"slot":        slot,
	}).Info("Accepted connection")

	return peer, nil
}

// AcceptLoop accepts connections on a dedicated goroutine until the listener
// closes or the registry shuts down. onAccept runs on the accept goroutine
// and should hand the peer off quickly.
func (e *Engine) AcceptLoop(ep *Endpoint, onAccept func(peer *Endpoint)) error {
	return e.reg.Go(ep.Role.String()+"/accept", ep.String(), func(ctx context.Context) {
		stop := context.AfterFunc(ctx, func() { _ = e.CloseEndpoint(ep) })
		defer stop()

		for ctx.Err() == nil {
			peer, err := e.Accept(ep)
			if err != nil {
				if errors.Is(err, ErrConfiguration) {
					logrus.WithFields(logrus.Fields{
						"function":    "AcceptLoop",
						"endpoint_id": ep.ID,
						"error":       err.Error(),
					}).Warn("Rejected connection")
					continue
				}
				if !errors.Is(err, ErrConnectionLost) {
					logrus.WithFields(logrus.Fields{
						"function":    "AcceptLoop",
						"endpoint_id": ep.ID,
						"error":       err.Error(),
					}).Error("Accept failed")
				}
				return
			}
			onAccept(peer)
		}
	})
}

// CloseEndpoint shuts the socket down in both directions and closes it.
// Closing an endpoint that is already closing or closed is a no-op.
func (e *Engine) CloseEndpoint(ep *Endpoint) error {
	ep.closeRequested.Store(true)

	first := false
	ep.closeOnce.Do(func() { first = true })
	if !first {
		return nil
	}

	ep.mu.Lock()
	prev := ep.state
	ep.state = StateClosing
	close(ep.closing)
	conn, pconn, ln, fd := ep.conn, ep.pconn, ep.listener, ep.fd
	ep.fd = -1
	ep.mu.Unlock()

	var errs []error
	if conn != nil {
		if sc, ok := conn.(syscall.Conn); ok {
			_ = shutdownBoth(sc)
		}
		errs = append(errs, ignoreClosed(conn.Close()))
	}
	if pconn != nil {
		errs = append(errs, ignoreClosed(pconn.Close()))
	}
	if ln != nil {
		errs = append(errs, ignoreClosed(ln.Close()))
	}
	if fd >= 0 {
		errs = append(errs, closeRaw(fd))
	}

	ep.mu.Lock()
	ep.state = StateClosed
	ep.mu.Unlock()

	e.reg.Untrack(ep.Role.String(), ep.slot)
	close(ep.done)

	logrus.WithFields(logrus.Fields{
		"function":    "CloseEndpoint",
		"endpoint_id": ep.ID,
		"role":        ep.Role.String(),
		"from_state":  prev.String(),
	}).Debug("Endpoint closed")

	return errors.Join(errs...)
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
