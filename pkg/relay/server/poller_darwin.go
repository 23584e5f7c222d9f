//go:build darwin

package server

import "golang.org/x/sys/unix"

// maxEvents bounds one kevent batch.
const maxEvents = 64

// event is one readiness notification, normalised across platforms.
type event struct {
	fd  int
	hup bool
}

// poller wraps a kqueue instance with EV_CLEAR read filters, the
// kqueue spelling of edge-triggered interest.
type poller struct {
	kq     int
	events []unix.Kevent_t
}

func newPoller() (*poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, &EpollError{Op: "create", Err: err}
	}
	return &poller{kq: kq, events: make([]unix.Kevent_t, maxEvents)}, nil
}

func (p *poller) Add(fd int) error {
	change := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{change}, nil, nil); err != nil {
		return &EpollError{Op: "ctl-add", Err: err}
	}
	return nil
}

func (p *poller) Remove(fd int) {
	change := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_DELETE,
	}
	_, _ = unix.Kevent(p.kq, []unix.Kevent_t{change}, nil, nil)
}

func (p *poller) Wait(timeoutMs int) ([]event, error) {
	ts := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
	for {
		n, err := unix.Kevent(p.kq, nil, p.events, &ts)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, &EpollError{Op: "wait", Err: err}
		}
		out := make([]event, 0, n)
		for _, ev := range p.events[:n] {
			out = append(out, event{
				fd:  int(ev.Ident),
				hup: ev.Flags&unix.EV_EOF != 0,
			})
		}
		return out, nil
	}
}

func (p *poller) Close() {
	unix.Close(p.kq)
}
