// Package status delivers the human-readable milestones the protocols
// report ("Connected to Server..", "Sending file contents..") to whoever is
// watching: the log, a terminal, or a channel drained by a UI.
package status

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/opd-ai/wavlink/interfaces"
	"github.com/sirupsen/logrus"
)

// Logger posts messages to logrus at Info level.
type Logger struct {
	Entry *logrus.Entry
}

// NewLogger creates a Logger tagged with the given component name.
func NewLogger(component string) *Logger {
	return &Logger{Entry: logrus.WithField("component", component)}
}

// Post implements interfaces.IStatusChannel.
func (l *Logger) Post(message string) {
	l.Entry.WithField("function", "Post").Info(strings.TrimRight(message, "\n"))
}

// Writer prints each message on its own line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Post implements interfaces.IStatusChannel.
func (s *Writer) Post(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, strings.TrimRight(message, "\n"))
}

// Chan buffers messages for a consumer goroutine. Post never blocks;
// messages posted while the buffer is full are dropped and counted.
type Chan struct {
	C chan string

	mu    sync.Mutex
	drops int
}

// NewChan creates a Chan holding up to size undelivered messages.
func NewChan(size int) *Chan {
	if size <= 0 {
		size = 1
	}
	return &Chan{C: make(chan string, size)}
}

// Post implements interfaces.IStatusChannel.
func (c *Chan) Post(message string) {
	select {
	case c.C <- message:
	default:
		c.mu.Lock()
		c.drops++
		c.mu.Unlock()
	}
}

// Dropped returns how many messages were discarded.
func (c *Chan) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drops
}

// Multi fans each message out to several channels.
type Multi []interfaces.IStatusChannel

// Post implements interfaces.IStatusChannel.
func (m Multi) Post(message string) {
	for _, ch := range m {
		if ch != nil {
			ch.Post(message)
		}
	}
}

// Discard drops every message.
type Discard struct{}

// Post implements interfaces.IStatusChannel.
func (Discard) Post(string) {}

// Or returns ch, or Discard when ch is nil.
func Or(ch interfaces.IStatusChannel) interfaces.IStatusChannel {
	if ch == nil {
		return Discard{}
	}
	return ch
}
