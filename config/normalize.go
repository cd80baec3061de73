package config

import (
	"fmt"
	"strings"
)

// Normalize trims string fields, fills empty ones with defaults and expands
// paths. Load calls it; callers that build a Config by hand should too.
func (c *Config) Normalize() error {
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeStream()
	if err := c.normalizeVoice(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	if strings.TrimSpace(c.Server.FilesDir) == "" {
		c.Server.FilesDir = defaultFilesDir
	}
	var err error
	if c.Server.FilesDir, err = expandPath(c.Server.FilesDir); err != nil {
		return fmt.Errorf("server.files_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStream() {
	c.Stream.Group = strings.TrimSpace(c.Stream.Group)
	if c.Stream.Group == "" {
		c.Stream.Group = defaultGroup
	}
	c.Stream.Interface = strings.TrimSpace(c.Stream.Interface)
}

func (c *Config) normalizeVoice() error {
	if strings.TrimSpace(c.Voice.RecordingFile) == "" {
		c.Voice.RecordingFile = defaultRecordingFile
	}
	var err error
	if c.Voice.RecordingFile, err = expandPath(c.Voice.RecordingFile); err != nil {
		return fmt.Errorf("voice.recording_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "":
		c.Logging.Format = defaultLogFormat
	case "console":
		c.Logging.Format = "text"
	}
}
