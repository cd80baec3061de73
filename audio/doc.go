// Package audio provides the audio devices wavlink's protocols drive.
//
// The protocols only see the interfaces.IAudioSink and
// interfaces.IMicrophone contracts. This package supplies implementations
// that work without sound hardware:
//
//   - PacedSink consumes pushed audio at the PCM byte rate and reports each
//     time its buffer runs dry. Audible playback copies consumed bytes to an
//     output writer; silent playback discards them.
//   - CaptureBuffer is an in-memory capture target with a read cursor,
//     optionally mirrored to a recording file.
//   - ReaderMicrophone "records" from any io.Reader at the PCM byte rate.
//
// The default format is 8 kHz, 2 channels, 16-bit samples, which is
// 32 000 bytes per second:
//
//	sink := audio.NewPacedSink(audio.WithOutput(speaker))
//	if err := sink.StartPlayback(); err != nil {
//	    return err
//	}
//	_ = sink.PushChunk(chunk)
//	<-sink.Exhausted()
package audio
