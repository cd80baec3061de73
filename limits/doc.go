// Package limits provides the wire constants shared by every wavlink peer and
// the validation helpers that enforce them.
//
// # Chunk Sizes
//
// None of the wavlink protocols carry a length prefix, so two peers only
// interoperate when they agree on the fixed chunk sizes below:
//
//   - StreamChunkSize (4000 bytes): one multicast datagram, and the default
//     read buffer of every engine read.
//   - VoiceChunkSize (1000 bytes): one voice relay datagram.
//   - FilePayloadChunkSize (64000 bytes): one TCP write while streaming a file.
//   - MaxFileNameSize (1024 bytes): the largest first chunk that may be
//     interpreted as a filename announcement.
//
// # Validation
//
//	if err := limits.ValidateChunkSize(n, limits.StreamChunkSize); err != nil {
//	    // errors.Is(err, limits.ErrChunkTooLarge)
//	}
package limits
