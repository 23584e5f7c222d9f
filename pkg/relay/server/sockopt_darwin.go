//go:build darwin

package server

import "golang.org/x/sys/unix"

// newSocket opens a TCP socket and flags it non-blocking and
// close-on-exec; darwin has no SOCK_NONBLOCK shortcut.
func newSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := markNonblockCloexec(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// acceptConn takes one pending connection and applies the flags
// accept4(2) would have set on Linux.
func acceptConn(listenFD int) (int, unix.Sockaddr, error) {
	fd, sa, err := unix.Accept(listenFD)
	if err != nil {
		return -1, nil, err
	}
	if err := markNonblockCloexec(fd); err != nil {
		unix.Close(fd)
		return -1, nil, err
	}
	return fd, sa, nil
}

func markNonblockCloexec(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	_, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC)
	return err
}

// tuneClient applies per-connection socket options.
func tuneClient(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}
