//go:build linux

package server

import "golang.org/x/sys/unix"

// maxEvents bounds one epoll_wait batch.
const maxEvents = 64

// event is one readiness notification, normalised across platforms.
type event struct {
	fd int
	// hup is set for EPOLLHUP/EPOLLERR: the peer is gone and the
	// connection must be torn down without reading.
	hup bool
}

// poller wraps an edge-triggered epoll instance. Owned exclusively by
// the reactor; a failure of the primitive itself is fatal for the
// process.
type poller struct {
	epfd   int
	events []unix.EpollEvent
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &EpollError{Op: "create", Err: err}
	}
	return &poller{epfd: epfd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

// Add registers fd with edge-triggered read interest.
func (p *poller) Add(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLET | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return &EpollError{Op: "ctl-add", Err: err}
	}
	return nil
}

// Remove deregisters fd. Errors are ignored: the fd may already be
// gone, and close(2) removes it from the set anyway.
func (p *poller) Remove(fd int) {
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for up to timeoutMs for readiness events. EINTR restarts
// the wait; any other failure is fatal.
func (p *poller) Wait(timeoutMs int) ([]event, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, &EpollError{Op: "wait", Err: err}
		}
		out := make([]event, 0, n)
		for _, ev := range p.events[:n] {
			out = append(out, event{
				fd:  int(ev.Fd),
				hup: ev.Events&(unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0,
			})
		}
		return out, nil
	}
}

func (p *poller) Close() {
	unix.Close(p.epfd)
}
