package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server configures the TCP file server and the address clients dial.
type Server struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Backlog  int    `toml:"backlog"`
	FilesDir string `toml:"files_dir"`
}

// Stream configures multicast stream distribution.
type Stream struct {
	Group     string `toml:"group"`
	Port      int    `toml:"port"`
	TTL       int    `toml:"ttl"`
	Loopback  bool   `toml:"loopback"`
	Interface string `toml:"interface"`
}

// Voice configures the UDP voice relay.
type Voice struct {
	Port          int    `toml:"port"`
	IntervalMS    int    `toml:"interval_ms"`
	RecvBuffer    int    `toml:"recv_buffer"`
	RecordingFile string `toml:"recording_file"`
}

// Registry bounds the endpoint registry.
type Registry struct {
	MaxPerRole int `toml:"max_per_role"`
}

// Logging selects the log level and output format.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for wavlink.
type Config struct {
	Server   Server   `toml:"server"`
	Stream   Stream   `toml:"stream"`
	Voice    Voice    `toml:"voice"`
	Registry Registry `toml:"registry"`
	Logging  Logging  `toml:"logging"`
}

// VoiceInterval returns the pause between voice datagrams.
func (c *Config) VoiceInterval() time.Duration {
	return time.Duration(c.Voice.IntervalMS) * time.Millisecond
}

// DefaultConfigPath returns the absolute path of the default configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads path (or the default location when path is empty), applies it
// over Default, then normalizes and validates the result. It reports the
// resolved path and whether a file was found there; a missing file is not an
// error.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// CreateSample writes the sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath applies the configuration's path rules (tilde, clean, absolute).
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
