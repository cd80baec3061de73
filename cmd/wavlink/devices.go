package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opd-ai/wavlink/audio"
	"github.com/opd-ai/wavlink/interfaces"
)

// devices are the audio collaborators the CLI builds from files.
type devices struct {
	sink    *audio.PacedSink
	mic     interfaces.IMicrophone
	closers []io.Closer
}

// openDevices builds a paced sink writing to outputPath (discarding when
// empty) and, when inputPath is set, a microphone reading raw PCM from it.
func openDevices(inputPath, outputPath string) (*devices, error) {
	d := &devices{}

	var sinkOpts []audio.SinkOption
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		d.closers = append(d.closers, f)
		sinkOpts = append(sinkOpts, audio.WithOutput(f))
	}
	d.sink = audio.NewPacedSink(sinkOpts...)

	switch inputPath {
	case "":
	case "-":
		d.mic = audio.NewReaderMicrophone(os.Stdin, audio.ByteRate)
	default:
		f, err := os.Open(inputPath)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("open input: %w", err)
		}
		d.closers = append(d.closers, f)
		d.mic = audio.NewReaderMicrophone(f, audio.ByteRate)
	}
	return d, nil
}

// Close stops the sink and closes the files behind the devices.
func (d *devices) Close() error {
	var errs []error
	if err := d.sink.Stop(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range d.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
