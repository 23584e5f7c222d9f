package server

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// listenBacklog is the pending-connection queue handed to listen(2).
const listenBacklog = 128

// Listener is one non-blocking listening socket, identified by its raw
// fd so the reactor can key events and host lookups on it.
type Listener struct {
	FD   int
	Addr string
	Port string
}

// NewListener binds a non-blocking TCP socket on address:port.
// An empty address binds the wildcard.
func NewListener(address, port string) (*Listener, error) {
	// Port 0 asks the kernel for an ephemeral port; BoundPort reports
	// what it picked.
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return nil, fmt.Errorf("listener: invalid port %q", port)
	}

	fd, err := newSocket()
	if err != nil {
		return nil, fmt.Errorf("listener: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listener: SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: portNum}
	if address != "" {
		ip := net.ParseIP(address)
		if ip == nil || ip.To4() == nil {
			unix.Close(fd)
			return nil, fmt.Errorf("listener: invalid IPv4 address %q", address)
		}
		copy(sa.Addr[:], ip.To4())
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listener: bind %s:%s: %w", address, port, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listener: listen %s:%s: %w", address, port, err)
	}
	return &Listener{FD: fd, Addr: address, Port: port}, nil
}

// Accept takes one pending connection, already non-blocking and tuned.
// Returns unix.EAGAIN, unwrapped, when the queue is drained, which the
// edge-triggered accept loop uses as its stop condition.
func (l *Listener) Accept() (int, string, error) {
	fd, sa, err := acceptConn(l.FD)
	if err != nil {
		return -1, "", err
	}
	tuneClient(fd)
	return fd, remoteAddr(sa), nil
}

// BoundPort reports the port the socket actually listens on, which
// differs from Port when the configuration asked for an ephemeral one.
func (l *Listener) BoundPort() int {
	sa, err := unix.Getsockname(l.FD)
	if err != nil {
		return 0
	}
	if a, ok := sa.(*unix.SockaddrInet4); ok {
		return a.Port
	}
	return 0
}

// Close releases the listening socket.
func (l *Listener) Close() {
	unix.Close(l.FD)
}

func remoteAddr(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%v]:%d", net.IP(a.Addr[:]), a.Port)
	}
	return "unknown"
}
