package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/opd-ai/wavlink/limits"
	"github.com/sirupsen/logrus"
)

// IssueRead arms a read loop on ep and returns immediately. size is the read
// buffer size; zero selects the engine default. Each completion is passed to
// cont on the loop goroutine and the next read is issued only after cont
// returns. The loop ends when the endpoint closes, when a stream read returns
// zero bytes, on an I/O error, or on registry shutdown. Every loop delivers
// exactly one terminal completion: zero bytes with a nil error for a graceful
// stream close, otherwise an ErrConnectionLost error.
func (e *Engine) IssueRead(ep *Endpoint, tag string, size int, cont Continuation) error {
	if size == 0 {
		size = e.readSize
	}
	if err := limits.ValidateReadBuffer(size); err != nil {
		return opError("read", ep.String(), ErrConfiguration, err)
	}
	if cont == nil {
		return opError("read", ep.String(), ErrConfiguration, errors.New("continuation cannot be nil"))
	}
	if !ep.Usable() {
		return opError("read", ep.String(), ErrConnectionLost, ErrEndpointClosed)
	}
	if conn, pconn, _ := ep.handles(); conn == nil && pconn == nil {
		return opError("read", ep.String(), ErrInvalidState, fmt.Errorf("endpoint is %s", ep.State()))
	}
	if !ep.reading.CompareAndSwap(false, true) {
		return opError("read", ep.String(), ErrReadPending, errors.New("one read per endpoint"))
	}

	err := e.reg.Go(ep.Role.String()+"/read", tag, func(ctx context.Context) {
		e.readLoop(ctx, ep, tag, size, cont)
	})
	if err != nil {
		ep.reading.Store(false)
		return opError("read", ep.String(), ErrConfiguration, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "IssueRead",
		"endpoint_id": ep.ID,
		"tag":         tag,
		"size":        size,
	}).Debug("Read loop armed")

	return nil
}

func (e *Engine) readLoop(ctx context.Context, ep *Endpoint, tag string, size int, cont Continuation) {
	defer ep.reading.Store(false)

	// Cancellation closes the socket, which wakes the blocked read.
	stop := context.AfterFunc(ctx, func() { _ = e.CloseEndpoint(ep) })
	defer stop()

	for {
		if ctx.Err() != nil || !ep.beginRead() {
			// Closed between reads: the continuation still sees the end.
			_ = e.CloseEndpoint(ep)
			op := newPendingOperation(ep, OpRead, 0, tag)
			if op.complete() {
				cont(op, 0, opError("read", ep.String(), ErrConnectionLost, ErrEndpointClosed))
			}
			return
		}

		op := newPendingOperation(ep, OpRead, size, tag)

		n, from, rerr := ep.read(op.Buffer)
		op.From = from
		n, err := e.completion(ep, n, rerr)
		if err == nil && n == 0 && ep.Kind.Datagram() {
			// Empty datagrams carry nothing to deliver.
			continue
		}

		terminal := err != nil || (n == 0 && !ep.Kind.Datagram())
		if terminal {
			_ = e.CloseEndpoint(ep)
		} else {
			ep.markTransferring()
		}

		if op.complete() {
			cont(op, n, err)
		}

		if terminal {
			logrus.WithFields(logrus.Fields{
				"function":    "readLoop",
				"endpoint_id": ep.ID,
				"tag":         tag,
				"peer_closed": err == nil,
			}).Debug("Read loop finished")
			return
		}
	}
}

// read performs one blocking read through the runtime poller.
func (ep *Endpoint) read(buf []byte) (int, net.Addr, error) {
	conn, pconn, _ := ep.handles()
	if pconn != nil {
		return pconn.ReadFrom(buf)
	}
	if conn != nil {
		n, err := conn.Read(buf)
		return n, conn.RemoteAddr(), err
	}
	return 0, nil, ErrEndpointClosed
}

// completion maps a raw read result onto the engine's semantics: end of
// stream becomes a zero-byte completion, anything else becomes
// ErrConnectionLost.
func (e *Engine) completion(ep *Endpoint, n int, err error) (int, error) {
	if err == nil {
		return n, nil
	}
	if errors.Is(err, io.EOF) && n == 0 {
		return 0, nil
	}
	if ep.closeRequested.Load() || errors.Is(err, net.ErrClosed) {
		return 0, opError("read", ep.String(), ErrConnectionLost, ErrEndpointClosed)
	}
	return 0, opError("read", ep.String(), ErrConnectionLost, err)
}

type writeRequest struct {
	buf  []byte
	to   net.Addr
	done chan writeResult
}

type writeResult struct {
	n   int
	err error
}

// IssueWrite writes buf to a connected stream endpoint. The caller blocks
// until the kernel accepts the data; the write runs on the endpoint's writer
// goroutine.
func (e *Engine) IssueWrite(ctx context.Context, ep *Endpoint, buf []byte) (int, error) {
	if ep.Kind.Datagram() {
		return 0, opError("write", ep.String(), ErrSendFailed, errors.New("datagram endpoints need a destination"))
	}
	return e.submit(ctx, ep, buf, nil)
}

// IssueWriteTo sends buf as one datagram to addr.
func (e *Engine) IssueWriteTo(ctx context.Context, ep *Endpoint, buf []byte, addr net.Addr) (int, error) {
	if !ep.Kind.Datagram() {
		return 0, opError("write", ep.String(), ErrSendFailed, errors.New("stream endpoints are connected"))
	}
	if addr == nil {
		return 0, opError("write", ep.String(), ErrSendFailed, errors.New("no destination"))
	}
	return e.submit(ctx, ep, buf, addr)
}

func (e *Engine) submit(ctx context.Context, ep *Endpoint, buf []byte, to net.Addr) (int, error) {
	if !ep.Usable() {
		return 0, opError("write", ep.String(), ErrSendFailed, ErrEndpointClosed)
	}

	queue, err := e.writer(ep)
	if err != nil {
		return 0, opError("write", ep.String(), ErrSendFailed, err)
	}

	req := writeRequest{buf: buf, to: to, done: make(chan writeResult, 1)}
	select {
	case queue <- req:
	case <-ctx.Done():
		return 0, opError("write", ep.String(), ErrSendFailed, ctx.Err())
	case <-ep.closing:
		return 0, opError("write", ep.String(), ErrSendFailed, ErrEndpointClosed)
	}

	select {
	case res := <-req.done:
		return res.n, res.err
	case <-ctx.Done():
		return 0, opError("write", ep.String(), ErrSendFailed, ctx.Err())
	case <-ep.closing:
		select {
		case res := <-req.done:
			return res.n, res.err
		default:
			return 0, opError("write", ep.String(), ErrSendFailed, ErrEndpointClosed)
		}
	}
}

// writer returns the endpoint's write queue, starting its goroutine once.
func (e *Engine) writer(ep *Endpoint) (chan<- writeRequest, error) {
	ep.writeOnce.Do(func() {
		queue := make(chan writeRequest)
		ep.writerErr = e.reg.Go(ep.Role.String()+"/write", ep.String(), func(ctx context.Context) {
			e.writeLoop(ctx, ep, queue)
		})
		if ep.writerErr == nil {
			ep.writes = queue
		}
	})
	return ep.writes, ep.writerErr
}

func (e *Engine) writeLoop(ctx context.Context, ep *Endpoint, queue <-chan writeRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ep.closing:
			return
		case req := <-queue:
			n, err := e.performWrite(ep, req)
			req.done <- writeResult{n: n, err: err}
		}
	}
}

func (e *Engine) performWrite(ep *Endpoint, req writeRequest) (int, error) {
	conn, pconn, _ := ep.handles()
	ep.markTransferring()

	if pconn != nil {
		n, err := pconn.WriteTo(req.buf, req.to)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "performWrite",
				"endpoint_id": ep.ID,
				"to":          req.to.String(),
				"error":       err.Error(),
			}).Warn("sendto failed")
			return n, opError("sendto", req.to.String(), ErrSendFailed, err)
		}
		return n, nil
	}

	if conn == nil {
		return 0, opError("write", ep.String(), ErrSendFailed, ErrEndpointClosed)
	}

	n, err := conn.Write(req.buf)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "performWrite",
			"endpoint_id": ep.ID,
			"written":     n,
			"error":       err.Error(),
		}).Error("Stream write failed, closing endpoint")
		_ = e.CloseEndpoint(ep)
		return n, opError("write", ep.addr(), ErrSendFailed, fmt.Errorf("%w: %w", ErrConnectionLost, err))
	}
	return n, nil
}
