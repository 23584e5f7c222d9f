package server

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// readChunk is the per-read buffer size for draining client sockets.
const readChunk = 4096

// ConnState is the per-connection request lifecycle:
// AwaitingRequest → ProcessingBody → Complete, then back to
// AwaitingRequest (keep-alive) or Closed.
type ConnState uint8

const (
	StateAwaitingRequest ConnState = iota
	StateProcessingBody
	StateComplete
	StateClosed
)

// Connection owns one client socket: its parser buffer, parse state,
// the host name bound at accept time, the keep-alive flag of the last
// request, and the last-activity timestamp the timeout sweep reads.
type Connection struct {
	FD         int
	HostName   string
	RemoteAddr string

	parser       *http11.RequestParser
	state        ConnState
	keepAlive    bool
	lastActivity time.Time
	closed       bool
}

// NewConnection wraps an accepted socket. maxSize is the owning host's
// request cap.
func NewConnection(fd int, hostName, remoteAddr string, maxSize int, now time.Time) *Connection {
	return &Connection{
		FD:           fd,
		HostName:     hostName,
		RemoteAddr:   remoteAddr,
		parser:       http11.NewRequestParser(maxSize),
		state:        StateAwaitingRequest,
		keepAlive:    true,
		lastActivity: now,
	}
}

// State returns the connection's lifecycle state.
func (c *Connection) State() ConnState { return c.state }

// KeepAlive reports the discipline negotiated by the last request.
func (c *Connection) KeepAlive() bool { return c.keepAlive }

// Touch records activity for the idle-timeout sweep.
func (c *Connection) Touch(now time.Time) { c.lastActivity = now }

// IdleSince returns how long the connection has been quiet.
func (c *Connection) IdleSince(now time.Time) time.Duration {
	return now.Sub(c.lastActivity)
}

// errPeerClosed distinguishes a clean EOF from an I/O failure.
var errPeerClosed = errors.New("peer closed connection")

// Drain reads from the socket until it would block, feeding the parser.
// Each edge-triggered readiness event must drain to EAGAIN or the next
// transition is never reported. Returns the bytes consumed; errPeerClosed
// on EOF; any other error is a read failure.
func (c *Connection) Drain(read func([]byte) (int, error), now time.Time) (int, error) {
	total := 0
	buf := make([]byte, readChunk)
	for {
		n, err := read(buf)
		if n > 0 {
			total += n
			c.lastActivity = now
			if ferr := c.parser.Feed(buf[:n]); ferr != nil {
				return total, ferr
			}
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return total, nil
			}
			if err == unix.EINTR {
				continue
			}
			return total, err
		}
		if n == 0 {
			return total, errPeerClosed
		}
	}
}

// DrainSocket is Drain over the connection's own fd.
func (c *Connection) DrainSocket(now time.Time) (int, error) {
	return c.Drain(func(buf []byte) (int, error) {
		return unix.Read(c.FD, buf)
	}, now)
}

// NextRequest advances the state machine over the buffered bytes.
// Returns (nil, nil) while incomplete. On a completed request the
// keep-alive flag is refreshed and the connection re-arms on any
// leftover pipelined bytes.
func (c *Connection) NextRequest() (*http11.Request, error) {
	req, err := c.parser.Poll()
	if err != nil {
		c.state = StateClosed
		return nil, err
	}
	if req == nil {
		switch c.parser.State() {
		case http11.StateProcessingBody:
			c.state = StateProcessingBody
		default:
			c.state = StateAwaitingRequest
		}
		return nil, nil
	}
	req.RemoteAddr = c.RemoteAddr
	c.keepAlive = req.KeepAlive()
	c.state = StateComplete
	return req, nil
}

// Rearm returns the connection to AwaitingRequest after a response has
// been written. The parser already holds any leftover bytes.
func (c *Connection) Rearm(now time.Time) {
	c.state = StateAwaitingRequest
	c.lastActivity = now
}

// Close marks the state machine closed and releases the socket.
// Idempotent: the parser may already have flagged the state closed
// before the socket itself is torn down.
func (c *Connection) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.state = StateClosed
	unix.Close(c.FD)
}
