package wavlink

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/opd-ai/wavlink/audio"
	"github.com/opd-ai/wavlink/av"
	"github.com/opd-ai/wavlink/config"
	"github.com/opd-ai/wavlink/interfaces"
	"github.com/opd-ai/wavlink/registry"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/stream"
	"github.com/opd-ai/wavlink/transport"
)

var (
	// ErrAlreadyRunning indicates the protocol is already started.
	ErrAlreadyRunning = errors.New("protocol already running")

	// ErrNoMicrophone indicates a call was started without a capture device.
	ErrNoMicrophone = errors.New("no microphone configured")

	// ErrUnknownProtocol indicates an unrecognised protocol name.
	ErrUnknownProtocol = errors.New("unknown protocol")
)

// Protocol selects what a Server offers.
type Protocol uint8

const (
	// ProtocolTCP serves file downloads and uploads.
	ProtocolTCP Protocol = iota
	// ProtocolMulticast streams the selected file to a multicast group.
	ProtocolMulticast
	// ProtocolCall accepts voice calls.
	ProtocolCall
)

// String returns the protocol's command-line name.
func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolMulticast:
		return "multicast"
	case ProtocolCall:
		return "call"
	default:
		return fmt.Sprintf("protocol(%d)", uint8(p))
	}
}

// ParseProtocol maps a command-line name to a Protocol.
func ParseProtocol(name string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tcp", "file":
		return ProtocolTCP, nil
	case "multicast", "stream":
		return ProtocolMulticast, nil
	case "call", "voice":
		return ProtocolCall, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
}

// Options holds everything a Server or Client is built from.
type Options struct {
	Config config.Config
	// Sink plays streams and calls. Nil selects a PacedSink that discards
	// audio.
	Sink interfaces.IAudioSink
	// Microphone feeds outgoing calls. Calls fail without one.
	Microphone interfaces.IMicrophone
	// Status receives milestone messages. Nil logs them.
	Status interfaces.IStatusChannel
	// Resolver replaces the system resolver.
	Resolver transport.Resolver
}

// NewOptions returns options built on the default configuration.
func NewOptions() *Options {
	return &Options{Config: config.Default()}
}

func (o *Options) sink() interfaces.IAudioSink {
	if o.Sink != nil {
		return o.Sink
	}
	return audio.NewPacedSink()
}

func (o *Options) statusChannel(component string) interfaces.IStatusChannel {
	if o.Status != nil {
		return o.Status
	}
	return status.NewLogger(component)
}

// newEngine builds the registry and transport shared by one service.
func (o *Options) newEngine() (*transport.Engine, error) {
	reg, err := registry.New(o.Config.Registry.MaxPerRole)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrConfiguration, err)
	}
	var opts []transport.Option
	if o.Resolver != nil {
		opts = append(opts, transport.WithResolver(o.Resolver))
	}
	return transport.NewEngine(reg, opts...)
}

func (o *Options) streamOptions() (stream.Options, error) {
	cfg := o.Config.Stream
	opts := stream.DefaultOptions()
	opts.Port = cfg.Port
	opts.TTL = cfg.TTL
	opts.Loopback = cfg.Loopback
	if cfg.Group != "" {
		opts.Group = net.ParseIP(cfg.Group)
		if opts.Group == nil {
			return opts, fmt.Errorf("%w: stream group %q", transport.ErrConfiguration, cfg.Group)
		}
	}
	if cfg.Interface != "" {
		iface, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			return opts, fmt.Errorf("%w: stream interface: %w", transport.ErrConfiguration, err)
		}
		opts.Interface = iface
	}
	return opts, nil
}

func (o *Options) voiceOptions() av.Options {
	opts := av.DefaultOptions()
	opts.Interval = o.Config.VoiceInterval()
	opts.RecvBuffer = o.Config.Voice.RecvBuffer
	return opts
}
