package transport

import (
	"errors"
	"fmt"
)

// Setup errors. These abort only the attempt that produced them.
var (
	// ErrAddressResolutionFailed indicates the host name could not be
	// resolved to an IPv4 address.
	ErrAddressResolutionFailed = errors.New("address resolution failed")

	// ErrSocketCreationFailed indicates socket(2) failed.
	ErrSocketCreationFailed = errors.New("socket creation failed")

	// ErrBindFailed indicates bind(2) failed, usually because the port is taken.
	ErrBindFailed = errors.New("bind failed")

	// ErrListenFailed indicates listen(2) failed.
	ErrListenFailed = errors.New("listen failed")

	// ErrConnectFailed indicates the connection attempt was refused, timed
	// out or was abandoned.
	ErrConnectFailed = errors.New("connect failed")

	// ErrMulticastSetup indicates a multicast socket option could not be applied.
	ErrMulticastSetup = errors.New("multicast setup failed")

	// ErrConfiguration indicates invalid parameters, such as a bad port or a
	// full registry.
	ErrConfiguration = errors.New("configuration error")
)

// I/O errors.
var (
	// ErrSendFailed indicates the kernel did not accept a write.
	ErrSendFailed = errors.New("send failed")

	// ErrConnectionLost indicates the endpoint is closed or broke mid-transfer.
	ErrConnectionLost = errors.New("connection lost")

	// ErrReadPending indicates a read loop is already armed on the endpoint.
	ErrReadPending = errors.New("read already pending")

	// ErrInvalidState indicates the operation is not valid in the endpoint's
	// current lifecycle state.
	ErrInvalidState = errors.New("invalid endpoint state")

	// ErrEndpointClosed is the cause attached to operations on a closing or
	// closed endpoint.
	ErrEndpointClosed = errors.New("endpoint closed")
)

// OpError carries the operation and address behind a transport failure.
// Kind is one of the sentinel errors above; Err is the underlying cause.
type OpError struct {
	Op   string
	Addr string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("wavlink %s %s: %v: %v", e.Op, e.Addr, e.Kind, e.Err)
	}
	return fmt.Sprintf("wavlink %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func opError(op, addr string, kind, err error) *OpError {
	return &OpError{Op: op, Addr: addr, Kind: kind, Err: err}
}
