//go:build unix

package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// connectPollMillis bounds each wait for a pending connect so that
// cancellation and close requests are noticed promptly.
const connectPollMillis = 100

func newSocket(kind Kind) (int, error) {
	typ := unix.SOCK_STREAM
	if kind.Datagram() {
		typ = unix.SOCK_DGRAM
	}
	fd, err := unix.Socket(unix.AF_INET, typ, 0)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

func sockaddr(ip net.IP, port int) *unix.SockaddrInet4 {
	sa := &unix.SockaddrInet4{Port: port}
	if ip4 := ip.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return sa
}

func setReuseAddr(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

func setRecvBuffer(fd, size int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, size)
}

func bindSocket(fd int, port int) error {
	return unix.Bind(fd, sockaddr(net.IPv4zero, port))
}

func listenSocket(fd, backlog int) error {
	return unix.Listen(fd, backlog)
}

// connectSocket connects fd without blocking the runtime indefinitely. It
// polls for completion in short slices and gives up when ctx is done or
// abandon reports true.
func connectSocket(ctx context.Context, fd int, ip net.IP, port int, abandon func() bool) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}

	err := unix.Connect(fd, sockaddr(ip, port))
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINPROGRESS) && !errors.Is(err, unix.EINTR) {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if abandon() {
			return ErrEndpointClosed
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, connectPollMillis)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return err
		}
		if soerr != 0 {
			return unix.Errno(soerr)
		}
		return nil
	}
}

// shutdownBoth stops both directions of a connected stream socket.
func shutdownBoth(c syscall.Conn) error {
	raw, err := c.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	if err := raw.Control(func(fd uintptr) {
		serr = unix.Shutdown(int(fd), unix.SHUT_RDWR)
	}); err != nil {
		return err
	}
	if errors.Is(serr, unix.ENOTCONN) {
		return nil
	}
	return serr
}

func closeRaw(fd int) error {
	return unix.Close(fd)
}

// sockName reports the bound address of a raw socket.
func sockName(fd int, kind Kind) net.Addr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return nil
	}
	ip := net.IPv4(in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3])
	if kind.Datagram() {
		return &net.UDPAddr{IP: ip, Port: in4.Port}
	}
	return &net.TCPAddr{IP: ip, Port: in4.Port}
}

// adopt hands a raw descriptor to the runtime poller. The net package dups
// the descriptor, so the raw one is closed here.
func adopt(fd int, name string) *os.File {
	return os.NewFile(uintptr(fd), name)
}

func adoptListener(fd int) (net.Listener, error) {
	f := adopt(fd, "wavlink-listener")
	defer f.Close()
	return net.FileListener(f)
}

func adoptConn(fd int) (net.Conn, error) {
	f := adopt(fd, "wavlink-conn")
	defer f.Close()
	return net.FileConn(f)
}

func adoptPacketConn(fd int) (net.PacketConn, error) {
	f := adopt(fd, "wavlink-packet")
	defer f.Close()
	return net.FilePacketConn(f)
}
