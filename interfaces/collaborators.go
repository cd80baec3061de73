package interfaces

import "io"

// IAudioSink is the playback side of an audio device.
type IAudioSink interface {
	// StartPlayback begins audible playback from the internal buffer.
	StartPlayback() error

	// StartSilentPlayback begins muted playback. The sink still consumes data
	// at the device rate, so its Exhausted events can pace a sender.
	StartSilentPlayback() error

	// PushChunk appends data to the playback buffer.
	PushChunk(data []byte) error

	// Stop halts playback and discards buffered audio.
	Stop() error

	// Exhausted delivers one event each time the playback buffer runs dry.
	Exhausted() <-chan struct{}
}

// IMicrophone is the capture side of an audio device.
type IMicrophone interface {
	// StartCapture begins recording into sink.
	StartCapture(sink io.Writer) error

	// StopCapture ends recording.
	StopCapture() error

	// ReadChunk returns up to maxBytes of captured audio not yet read.
	// An empty result means nothing new has been captured.
	ReadChunk(maxBytes int) ([]byte, error)
}

// IChunkReader is a stateful cursor over one open file.
type IChunkReader interface {
	// ReadChunk returns the next chunk of at most maxBytes, or io.EOF once
	// the file is exhausted.
	ReadChunk(maxBytes int) ([]byte, error)

	io.Closer
}

// IFileStore is the file system surface the protocols need.
type IFileStore interface {
	// Exists reports whether name refers to a readable regular file.
	Exists(name string) bool

	// Open returns a chunk cursor positioned at the start of name.
	Open(name string) (IChunkReader, error)

	// Append appends data to name, creating it if needed.
	Append(name string, data []byte) error

	// Reset removes any previous content stored under name.
	Reset(name string) error
}

// IStatusChannel receives human readable protocol milestones.
type IStatusChannel interface {
	Post(message string)
}
