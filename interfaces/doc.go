// Package interfaces defines the contracts between the wavlink protocols and
// the collaborators they drive but do not own.
//
// The transport and protocol packages never touch an audio API, a microphone
// or a file browser directly. They call into these interfaces, which keeps the
// protocols testable with in-memory fakes and lets an application plug in a
// real playback device.
//
// # Collaborators
//
// [IAudioSink] receives decoded payload for playback and reports when its
// buffer has been drained. The stream broadcaster uses the drained event as
// its pacing clock:
//
//	sink.StartSilentPlayback()
//	sink.PushChunk(first)
//	for range sink.Exhausted() {
//	    // send the next chunk
//	}
//
// [IMicrophone] captures audio into a writer and hands it back in chunks.
//
// [IFileStore] resolves filenames, opens chunk cursors and appends payload.
//
// [IStatusChannel] receives one-line human readable milestones such as
// "Connected to Server..". Status messages are notifications only.
package interfaces
