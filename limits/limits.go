package limits

import (
	"errors"
	"fmt"
)

const (
	// StreamChunkSize is the size of one multicast stream chunk and the
	// default engine read buffer.
	StreamChunkSize = 4000

	// VoiceChunkSize is the size of one voice relay datagram.
	VoiceChunkSize = 1000

	// FilePayloadChunkSize is the size of one TCP write while streaming a file.
	FilePayloadChunkSize = 64000

	// MaxFileNameSize bounds a filename announcement. A first chunk longer
	// than this is always payload.
	MaxFileNameSize = 1024

	// MaxDatagramSize is the largest UDP payload the engine will read.
	MaxDatagramSize = 65507

	// DefaultMaxPerRole is the default number of endpoints and workers the
	// registry accepts per role.
	DefaultMaxPerRole = 100

	// DefaultListenBacklog is the backlog passed to listen(2).
	DefaultListenBacklog = 5
)

var (
	// ErrChunkEmpty indicates a zero or negative chunk size.
	ErrChunkEmpty = errors.New("chunk size must be positive")

	// ErrChunkTooLarge indicates a chunk size above the allowed maximum.
	ErrChunkTooLarge = errors.New("chunk size too large")
)

// ValidateChunkSize checks that size is positive and no larger than max.
func ValidateChunkSize(size, max int) error {
	if size <= 0 {
		return ErrChunkEmpty
	}
	if size > max {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrChunkTooLarge, size, max)
	}
	return nil
}

// ValidateReadBuffer checks an engine read buffer size against the datagram
// ceiling, which is also the ceiling for stream reads.
func ValidateReadBuffer(size int) error {
	return ValidateChunkSize(size, MaxDatagramSize)
}
