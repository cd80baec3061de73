package config

import (
	"fmt"
	"net"

	"github.com/opd-ai/wavlink/limits"
	"github.com/opd-ai/wavlink/transport"
	"github.com/sirupsen/logrus"
)

// Validate ensures the configuration is usable. Every error wraps
// transport.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStream(); err != nil {
		return err
	}
	if err := c.validateVoice(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	return c.validateLogging()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{transport.ErrConfiguration}, args...)...)
}

func validatePort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return invalid("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

func (c *Config) validateServer() error {
	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if c.Server.Backlog <= 0 {
		return invalid("server.backlog must be positive, got %d", c.Server.Backlog)
	}
	return nil
}

func (c *Config) validateStream() error {
	if err := validatePort("stream.port", c.Stream.Port); err != nil {
		return err
	}
	ip := net.ParseIP(c.Stream.Group)
	if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return invalid("stream.group %q is not an IPv4 multicast address", c.Stream.Group)
	}
	if c.Stream.TTL < 0 || c.Stream.TTL > 255 {
		return invalid("stream.ttl must be between 0 and 255, got %d", c.Stream.TTL)
	}
	return nil
}

func (c *Config) validateVoice() error {
	if err := validatePort("voice.port", c.Voice.Port); err != nil {
		return err
	}
	if c.Voice.IntervalMS <= 0 {
		return invalid("voice.interval_ms must be positive, got %d", c.Voice.IntervalMS)
	}
	if c.Voice.RecvBuffer < 0 {
		return invalid("voice.recv_buffer must not be negative, got %d", c.Voice.RecvBuffer)
	}
	return nil
}

func (c *Config) validateRegistry() error {
	if c.Registry.MaxPerRole <= 0 {
		return invalid("registry.max_per_role must be positive, got %d", c.Registry.MaxPerRole)
	}
	if c.Registry.MaxPerRole > 10*limits.DefaultMaxPerRole {
		return invalid("registry.max_per_role must be at most %d, got %d", 10*limits.DefaultMaxPerRole, c.Registry.MaxPerRole)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level: %v", err)
	}
	switch c.Logging.Format {
	case "text", "json":
		return nil
	default:
		return invalid("logging.format must be text or json, got %q", c.Logging.Format)
	}
}
