package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/opd-ai/wavlink"
	"github.com/opd-ai/wavlink/config"
	"github.com/opd-ai/wavlink/logging"
	"github.com/opd-ai/wavlink/status"
	"github.com/spf13/cobra"
)

// commandContext carries the loaded configuration and the flag values that
// override it.
type commandContext struct {
	configFlag *string

	host      string
	port      int
	filesDir  string
	group     string
	voicePort int
	logLevel  string

	config *config.Config
	path   string
	exists bool
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&c.host, "host", "", "Server address (overrides server.host)")
	flags.IntVarP(&c.port, "port", "p", 0, "File transfer port (overrides server.port)")
	flags.StringVarP(&c.filesDir, "dir", "d", "", "Files directory (overrides server.files_dir)")
	flags.StringVar(&c.group, "group", "", "Multicast group (overrides stream.group)")
	flags.IntVar(&c.voicePort, "voice-port", 0, "Voice port (overrides voice.port)")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level (overrides logging.level)")
}

// load reads the configuration file, applies flag overrides, validates the
// result and configures logging.
func (c *commandContext) load(cmd *cobra.Command) error {
	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = c.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = c.port
	}
	if flags.Changed("dir") {
		cfg.Server.FilesDir = c.filesDir
	}
	if flags.Changed("group") {
		cfg.Stream.Group = c.group
	}
	if flags.Changed("voice-port") {
		cfg.Voice.Port = c.voicePort
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Configure(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}

	c.config = cfg
	c.path = resolved
	c.exists = exists
	return nil
}

// options builds service options printing milestones to out.
func (c *commandContext) options(out io.Writer) *wavlink.Options {
	opts := wavlink.NewOptions()
	opts.Config = *c.config
	opts.Status = status.NewWriter(out)
	return opts
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
