package audio

import (
	"errors"
	"time"
)

const (
	// SampleRate is the default capture and playback rate in Hz.
	SampleRate = 8000

	// Channels is the default channel count.
	Channels = 2

	// SampleBytes is the size of one 16-bit sample.
	SampleBytes = 2

	// ByteRate is the PCM data rate of the default format.
	ByteRate = SampleRate * Channels * SampleBytes

	// DefaultTick is how often devices move audio.
	DefaultTick = 20 * time.Millisecond
)

var (
	// ErrAlreadyStarted indicates the device is already running.
	ErrAlreadyStarted = errors.New("audio device already started")

	// ErrNotStarted indicates the device has not been started.
	ErrNotStarted = errors.New("audio device not started")
)

// quantum is the number of bytes moved per tick at rate.
func quantum(rate int, tick time.Duration) int {
	n := int(int64(rate) * int64(tick) / int64(time.Second))
	if n < 1 {
		return 1
	}
	return n
}
