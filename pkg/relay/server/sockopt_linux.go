//go:build linux

package server

import "golang.org/x/sys/unix"

// newSocket opens a non-blocking, close-on-exec TCP socket.
func newSocket() (int, error) {
	return unix.Socket(unix.AF_INET,
		unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
}

// acceptConn takes one pending connection with the non-blocking and
// close-on-exec flags applied atomically by accept4(2).
func acceptConn(listenFD int) (int, unix.Sockaddr, error) {
	return unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
}

// tuneClient applies per-connection socket options. TCP_NODELAY keeps
// small responses from sitting in the Nagle buffer; failures are
// non-critical and ignored.
func tuneClient(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}
