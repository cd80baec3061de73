package config

import "github.com/opd-ai/wavlink/limits"

const (
	defaultHost          = "127.0.0.1"
	defaultPort          = 9000
	defaultStreamPort    = 9000
	defaultVoicePort     = 9001
	defaultGroup         = "234.5.6.7"
	defaultTTL           = 2
	defaultFilesDir      = "./files"
	defaultRecordingFile = "recording.wav"
	defaultIntervalMS    = 100
	defaultRecvBuffer    = 64 * limits.VoiceChunkSize
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultConfigPath    = "~/.config/wavlink/config.toml"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Host:     defaultHost,
			Port:     defaultPort,
			Backlog:  limits.DefaultListenBacklog,
			FilesDir: defaultFilesDir,
		},
		Stream: Stream{
			Group:    defaultGroup,
			Port:     defaultStreamPort,
			TTL:      defaultTTL,
			Loopback: false,
		},
		Voice: Voice{
			Port:          defaultVoicePort,
			IntervalMS:    defaultIntervalMS,
			RecvBuffer:    defaultRecvBuffer,
			RecordingFile: defaultRecordingFile,
		},
		Registry: Registry{
			MaxPerRole: limits.DefaultMaxPerRole,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
