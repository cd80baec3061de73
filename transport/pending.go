package transport

import (
	"net"
	"sync/atomic"
)

// OpKind distinguishes reads from writes.
type OpKind uint8

const (
	OpRead OpKind = iota
	OpWrite
)

func (k OpKind) String() string {
	if k == OpWrite {
		return "write"
	}
	return "read"
}

// PendingOperation is one outstanding read. It is created when the read is
// issued and completed exactly once.
type PendingOperation struct {
	EndpointID uint64
	Kind       OpKind
	Buffer     []byte
	Requested  int
	// Tag names the protocol handler that owns the completion.
	Tag string
	// From is the sender of a datagram read.
	From net.Addr

	completed atomic.Bool
}

func newPendingOperation(ep *Endpoint, kind OpKind, size int, tag string) *PendingOperation {
	return &PendingOperation{
		EndpointID: ep.ID,
		Kind:       kind,
		Buffer:     make([]byte, size),
		Requested:  size,
		Tag:        tag,
	}
}

// complete claims the completion. Only the first call returns true.
func (op *PendingOperation) complete() bool {
	return op.completed.CompareAndSwap(false, true)
}

// Completed reports whether the completion has been delivered.
func (op *PendingOperation) Completed() bool {
	return op.completed.Load()
}

// Continuation processes one read completion. n is zero and err is nil when a
// stream peer closed the connection gracefully.
type Continuation func(op *PendingOperation, n int, err error)
