// Package server contains the reactor, the connection state machine,
// virtual hosts, routing and the built-in handlers: a single-threaded
// epoll-style loop multiplexing listening and client sockets.
package server

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/yourusername/relay/pkg/relay/http11"
	"github.com/yourusername/relay/pkg/relay/metrics"
)

const (
	// DefaultIdleTimeout closes connections quiet for 60 seconds.
	DefaultIdleTimeout = 60 * time.Second

	// waitTimeoutMs bounds one poller wait so the sweep runs at least
	// once a second even on an idle server.
	waitTimeoutMs = 1000

	// writeRetries bounds the EAGAIN spin on a slow client before the
	// minimal write contract gives up and closes the connection.
	writeRetries = 50
)

// Server is the reactor: it exclusively owns the poller handle and the
// connection map. Handlers never run concurrently; the CGI child is the
// only concurrent activity in the process.
type Server struct {
	hosts []*Host
	conns map[int]*Connection

	poller  *poller
	log     *zap.Logger
	metrics *metrics.Metrics

	IdleTimeout time.Duration
	now         func() time.Time
}

// New creates a reactor. A nil metrics set is replaced by a fresh
// private one; a nil now uses the wall clock.
func New(log *zap.Logger, m *metrics.Metrics, now func() time.Time) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	if now == nil {
		now = time.Now
	}
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &Server{
		conns:       map[int]*Connection{},
		poller:      p,
		log:         log,
		metrics:     m,
		IdleTimeout: DefaultIdleTimeout,
		now:         now,
	}, nil
}

// Metrics exposes the server's metric set.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// AddHost registers a host's listeners with the poller.
func (s *Server) AddHost(h *Host) error {
	for _, l := range h.Listeners {
		if err := s.poller.Add(l.FD); err != nil {
			return err
		}
	}
	s.hosts = append(s.hosts, h)
	s.log.Info("host added",
		zap.String("host", h.ServerName),
		zap.Int("listeners", len(h.Listeners)),
		zap.Int("routes", len(h.Routes)))
	return nil
}

// Hosts returns the registered hosts.
func (s *Server) Hosts() []*Host { return s.hosts }

// Run is the reactor loop: wait, accept, advance connections, sweep.
// It only returns when the readiness primitive itself fails.
func (s *Server) Run() error {
	s.log.Info("reactor running", zap.Int("hosts", len(s.hosts)))
	for {
		events, err := s.poller.Wait(waitTimeoutMs)
		if err != nil {
			return err
		}
		for _, ev := range events {
			s.handleEvent(ev)
		}
		s.sweep()
	}
}

// Close tears down every connection, listener and the poller.
func (s *Server) Close() {
	for fd := range s.conns {
		s.closeConn(fd)
	}
	for _, h := range s.hosts {
		for _, l := range h.Listeners {
			s.poller.Remove(l.FD)
			l.Close()
		}
		if h.Uploader != nil {
			h.Uploader.CloseWatcher()
		}
	}
	s.poller.Close()
}

func (s *Server) handleEvent(ev event) {
	if host := s.hostByListenerFD(ev.fd); host != nil {
		s.acceptLoop(host, host.GetListener(ev.fd))
		return
	}
	s.handleClient(ev)
}

// acceptLoop accepts until EAGAIN, as edge-triggered listeners require,
// binding each new connection to the listener's host.
func (s *Server) acceptLoop(host *Host, l *Listener) {
	for {
		fd, remote, err := l.Accept()
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			s.log.Warn("accept failed",
				zap.String("host", host.ServerName), zap.Error(err))
			return
		}
		if err := s.poller.Add(fd); err != nil {
			s.log.Warn("register client failed", zap.Int("fd", fd), zap.Error(err))
			unix.Close(fd)
			continue
		}
		s.conns[fd] = NewConnection(fd, host.ServerName, remote, host.MaxBodySize, s.now())
		s.metrics.ConnectionsAccepted.Inc()
		s.metrics.OpenConnections.Inc()
		s.log.Debug("connection accepted",
			zap.Int("fd", fd), zap.String("remote", remote), zap.String("host", host.ServerName))
	}
}

// handleClient drains the socket, processes every request the buffer
// completes (strictly in order), and closes on error, EOF, hang-up or a
// negotiated Connection: close.
func (s *Server) handleClient(ev event) {
	conn, ok := s.conns[ev.fd]
	if !ok {
		return
	}
	host := s.hostByName(conn.HostName)
	if host == nil {
		s.closeConn(ev.fd)
		return
	}

	now := s.now()
	n, drainErr := conn.DrainSocket(now)
	s.metrics.BytesRead.Add(float64(n))

	// A feed overflow is answered with 413 before the drop.
	if errors.Is(drainErr, http11.ErrRequestTooLarge) {
		s.respondAndClose(conn, host, drainErr)
		return
	}

	for {
		req, err := conn.NextRequest()
		if err != nil {
			// Malformed request: emit the error response, then close.
			s.respondAndClose(conn, host, err)
			return
		}
		if req == nil {
			break
		}

		resp := s.dispatch(host, req)
		keep := conn.KeepAlive() && !resp.CloseRequested()
		resp.Finalize(keep)
		wire := resp.Encode()

		s.metrics.ObserveRequest(host.ServerName, int(resp.Status))
		s.log.Info("request",
			zap.String("host", host.ServerName),
			zap.String("method", req.Method.String()),
			zap.String("uri", req.Target()),
			zap.Int("status", int(resp.Status)),
			zap.Int("bytes", len(wire)))

		if err := s.write(conn.FD, wire); err != nil {
			s.log.Warn("write failed", zap.Int("fd", conn.FD), zap.Error(err))
			s.closeConn(conn.FD)
			return
		}
		if !keep {
			s.closeConn(conn.FD)
			return
		}
		conn.Rearm(s.now())
	}

	if drainErr != nil || ev.hup {
		// EOF, read failure or hang-up: whatever was parseable has been
		// answered; tear the connection down.
		s.closeConn(ev.fd)
	}
}

// dispatch resolves the route and runs the handler chain, turning any
// typed error into the rendered error response.
func (s *Server) dispatch(host *Host, req *http11.Request) *http11.Response {
	route := host.GetRoute(req.URI)
	if route == nil {
		return host.ErrorResponse(notFound("no route for " + req.URI))
	}
	resp, err := host.RouteRequest(req, route, s.metrics)
	if err != nil {
		return host.ErrorResponse(err)
	}
	return resp
}

// respondAndClose renders err, writes it best-effort and closes.
func (s *Server) respondAndClose(conn *Connection, host *Host, err error) {
	resp := host.ErrorResponse(err)
	resp.Finalize(false)
	if werr := s.write(conn.FD, resp.Encode()); werr != nil {
		s.log.Debug("error response write failed", zap.Int("fd", conn.FD), zap.Error(werr))
	}
	s.closeConn(conn.FD)
}

// write pushes the full response to the socket. EAGAIN is retried a
// bounded number of times; a client that stays unwritable is treated as
// a close condition per the minimal write contract.
func (s *Server) write(fd int, data []byte) error {
	written := 0
	retries := 0
	for written < len(data) {
		n, err := unix.Write(fd, data[written:])
		if n > 0 {
			written += n
			retries = 0
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				retries++
				if retries > writeRetries {
					return &ConnectionError{FD: fd, Err: err}
				}
				time.Sleep(time.Millisecond)
				continue
			}
			return &ConnectionError{FD: fd, Err: err}
		}
	}
	s.metrics.BytesWritten.Add(float64(written))
	return nil
}

// sweep closes every connection idle past the timeout and gives the
// hosts' background reconciliation a turn.
func (s *Server) sweep() {
	now := s.now()
	for fd, conn := range s.conns {
		if conn.IdleSince(now) > s.IdleTimeout {
			s.log.Debug("idle timeout", zap.Int("fd", fd), zap.String("remote", conn.RemoteAddr))
			s.metrics.TimeoutCloses.Inc()
			s.closeConn(fd)
		}
	}
	for _, h := range s.hosts {
		if h.SessionManager != nil {
			h.SessionManager.Sweep()
		}
		if h.Uploader != nil {
			h.Uploader.DrainEvents()
		}
	}
}

func (s *Server) closeConn(fd int) {
	conn, ok := s.conns[fd]
	if !ok {
		return
	}
	s.poller.Remove(fd)
	conn.Close()
	delete(s.conns, fd)
	s.metrics.ConnectionsClosed.Inc()
	s.metrics.OpenConnections.Dec()
}

func (s *Server) hostByListenerFD(fd int) *Host {
	for _, h := range s.hosts {
		if h.MatchListener(fd) {
			return h
		}
	}
	return nil
}

func (s *Server) hostByName(name string) *Host {
	for _, h := range s.hosts {
		if h.ServerName == name {
			return h
		}
	}
	return nil
}
