// Package transport is the asynchronous socket engine every wavlink protocol
// is built on.
//
// # Endpoints
//
// An [Endpoint] is one socket plus its role (listener, accepted peer,
// outbound peer), its protocol kind (TCP, UDP multicast, UDP voice) and its
// lifecycle state:
//
//	Created → Bound → {Listening | Connecting → Connected} → Transferring ⇄ Idle → Closing → Closed
//
// A connect attempt does not hold the endpoint's lock while it waits, so
// Close and State stay responsive.
//
// Sockets are created with raw system calls so that creation, binding,
// listening and connecting are separate, observable steps. Once a socket is
// listening, connected or (for datagrams) bound, it is handed to the Go
// runtime poller and all further I/O goes through net.Conn / net.PacketConn.
//
// # Reads
//
// [Engine.IssueRead] arms a read loop on its own goroutine and returns
// immediately. Each completion is delivered to the caller's [Continuation] on
// that same goroutine, and the next read is issued only after the
// continuation returns, so one endpoint never has two reads outstanding:
//
//	err := engine.IssueRead(ep, "file-server", 0, func(op *transport.PendingOperation, n int, err error) {
//	    switch {
//	    case err != nil:
//	        // errors.Is(err, transport.ErrConnectionLost)
//	    case n == 0:
//	        // peer closed the connection
//	    default:
//	        handle(op.Buffer[:n])
//	    }
//	})
//
// A zero-byte stream read is a graceful close, not an error. Any other read
// failure closes the endpoint and is reported as ErrConnectionLost.
//
// # Writes
//
// [Engine.IssueWrite] and [Engine.IssueWriteTo] block the caller until the
// kernel accepts the buffer, but the write itself runs on a per-endpoint
// writer goroutine.
//
// # Shutdown
//
// Every endpoint and goroutine is tracked by a registry.Registry. Closing an
// endpoint is idempotent; registry.Registry.ShutdownAll closes everything and
// waits for the goroutines to notice.
package transport
