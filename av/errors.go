package av

import "errors"

// Sentinel errors for av package operations.
var (
	// ErrInvalidInterval indicates a non-positive send interval.
	ErrInvalidInterval = errors.New("invalid send interval")

	// ErrCaptureFailed indicates the microphone could not start.
	ErrCaptureFailed = errors.New("audio capture failed")

	// ErrPlaybackFailed indicates the playback device could not start.
	ErrPlaybackFailed = errors.New("audio playback failed")
)
