// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Configure sets the level and formatter of the standard logrus logger and
// directs it to out. format is "text" or "json"; text output is coloured only
// when out is a terminal.
func Configure(out io.Writer, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	formatter, err := NewFormatter(out, format)
	if err != nil {
		return err
	}

	logrus.SetOutput(out)
	logrus.SetLevel(lvl)
	logrus.SetFormatter(formatter)

	logrus.WithFields(logrus.Fields{
		"function": "Configure",
		"level":    lvl.String(),
		"format":   format,
	}).Debug("Logging configured")
	return nil
}

// NewFormatter returns the formatter for format as it would be used on out.
func NewFormatter(out io.Writer, format string) (logrus.Formatter, error) {
	switch format {
	case "", "text", "console":
		tty := IsTerminal(out)
		return &logrus.TextFormatter{
			FullTimestamp:    true,
			ForceColors:      tty,
			DisableColors:    !tty,
			DisableTimestamp: false,
		}, nil
	case "json":
		return &logrus.JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// IsTerminal reports whether w is an *os.File attached to a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok || file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
