package transport

import (
	"errors"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

// MulticastOptions are the sender-side socket options of a multicast
// endpoint.
type MulticastOptions struct {
	TTL       int
	Loopback  bool
	Interface *net.Interface
}

func (e *Engine) packetConn(ep *Endpoint, op string) (*ipv4.PacketConn, error) {
	if !ep.Kind.Datagram() {
		return nil, opError(op, ep.String(), ErrMulticastSetup, errors.New("multicast requires a datagram endpoint"))
	}
	_, pconn, _ := ep.handles()
	if pconn == nil || !ep.Usable() {
		return nil, opError(op, ep.String(), ErrInvalidState, fmt.Errorf("endpoint is %s", ep.State()))
	}
	return ipv4.NewPacketConn(pconn), nil
}

// JoinGroup adds a bound datagram endpoint to the multicast group on iface,
// or on the system default interface when iface is nil. Joining a unicast
// address is a no-op.
func (e *Engine) JoinGroup(ep *Endpoint, group net.IP, iface *net.Interface) error {
	if group == nil || group.To4() == nil {
		return opError("join", fmt.Sprint(group), ErrMulticastSetup, errors.New("group must be an IPv4 address"))
	}
	p, err := e.packetConn(ep, "join")
	if err != nil {
		return err
	}
	if !group.IsMulticast() {
		logrus.WithFields(logrus.Fields{
			"function":    "JoinGroup",
			"endpoint_id": ep.ID,
			"group":       group.String(),
		}).Debug("Not a multicast address, skipping join")
		return nil
	}

	if err := p.JoinGroup(iface, &net.UDPAddr{IP: group}); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "JoinGroup",
			"endpoint_id": ep.ID,
			"group":       group.String(),
			"error":       err.Error(),
		}).Error("IP_ADD_MEMBERSHIP failed")
		return opError("join", group.String(), ErrMulticastSetup, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "JoinGroup",
		"endpoint_id": ep.ID,
		"group":       group.String(),
	}).Info("Joined multicast group")

	return nil
}

// SetMulticastOptions applies TTL, loopback and outgoing interface. Every
// option is attempted; the failures are joined.
func (e *Engine) SetMulticastOptions(ep *Endpoint, opts MulticastOptions) error {
	p, err := e.packetConn(ep, "setsockopt")
	if err != nil {
		return err
	}

	var errs []error
	if opts.TTL > 0 {
		if err := p.SetMulticastTTL(opts.TTL); err != nil {
			errs = append(errs, fmt.Errorf("IP_MULTICAST_TTL: %w", err))
		}
	}
	if err := p.SetMulticastLoopback(opts.Loopback); err != nil {
		errs = append(errs, fmt.Errorf("IP_MULTICAST_LOOP: %w", err))
	}
	if opts.Interface != nil {
		if err := p.SetMulticastInterface(opts.Interface); err != nil {
			errs = append(errs, fmt.Errorf("IP_MULTICAST_IF: %w", err))
		}
	}

	if len(errs) > 0 {
		return opError("setsockopt", ep.String(), ErrMulticastSetup, errors.Join(errs...))
	}
	return nil
}
