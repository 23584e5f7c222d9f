package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// scriptedReader replays fragments, then EAGAIN, like a drained
// non-blocking socket.
type scriptedReader struct {
	fragments [][]byte
	eof       bool
}

func (r *scriptedReader) read(buf []byte) (int, error) {
	if len(r.fragments) == 0 {
		if r.eof {
			return 0, nil
		}
		return 0, unix.EAGAIN
	}
	frag := r.fragments[0]
	n := copy(buf, frag)
	if n < len(frag) {
		r.fragments[0] = frag[n:]
	} else {
		r.fragments = r.fragments[1:]
	}
	return n, nil
}

func newConn() *Connection {
	return NewConnection(-1, "example", "127.0.0.1:9999", 0, time.Unix(1000, 0))
}

func TestConnectionSingleRequest(t *testing.T) {
	c := newConn()
	raw := "GET /hello HTTP/1.1\r\nHost: example\r\n\r\n"
	r := &scriptedReader{fragments: [][]byte{[]byte(raw)}}

	now := time.Unix(2000, 0)
	n, err := c.Drain(r.read, now)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)

	req, err := c.NextRequest()
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "/hello", req.URI)
	assert.Equal(t, "127.0.0.1:9999", req.RemoteAddr)
	assert.Equal(t, StateComplete, c.State())
	assert.True(t, c.KeepAlive())
}

func TestConnectionFragmentedAcrossEvents(t *testing.T) {
	c := newConn()
	now := time.Unix(1000, 0)

	// First readiness event delivers half the headers.
	r := &scriptedReader{fragments: [][]byte{[]byte("POST /u HTTP/1.1\r\nContent-Le")}}
	_, err := c.Drain(r.read, now)
	require.NoError(t, err)
	req, err := c.NextRequest()
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Equal(t, StateAwaitingRequest, c.State())

	// Second event completes headers, starts the body.
	r = &scriptedReader{fragments: [][]byte{[]byte("ngth: 4\r\nContent-Type: text/plain\r\n\r\nab")}}
	_, err = c.Drain(r.read, now)
	require.NoError(t, err)
	req, err = c.NextRequest()
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Equal(t, StateProcessingBody, c.State())

	// Third event finishes the body.
	r = &scriptedReader{fragments: [][]byte{[]byte("cd")}}
	_, err = c.Drain(r.read, now)
	require.NoError(t, err)
	req, err = c.NextRequest()
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "abcd", req.Body.Text)
	assert.Equal(t, StateComplete, c.State())
}

func TestConnectionKeepAliveNegatedByClose(t *testing.T) {
	c := newConn()
	r := &scriptedReader{fragments: [][]byte{
		[]byte("GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"),
	}}
	_, err := c.Drain(r.read, time.Unix(1000, 0))
	require.NoError(t, err)

	req, err := c.NextRequest()
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.False(t, c.KeepAlive())
}

func TestConnectionPipelinedServedInOrder(t *testing.T) {
	c := newConn()
	r := &scriptedReader{fragments: [][]byte{
		[]byte("GET /a HTTP/1.1\r\nHost: x\r\n\r\nGET /b HTTP/1.1\r\nHost: x\r\n\r\n"),
	}}
	_, err := c.Drain(r.read, time.Unix(1000, 0))
	require.NoError(t, err)

	first, err := c.NextRequest()
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "/a", first.URI)

	// Between requests the connection re-arms; the leftover bytes seed
	// the next parse without another read.
	c.Rearm(time.Unix(1001, 0))
	second, err := c.NextRequest()
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "/b", second.URI)
}

func TestConnectionEOF(t *testing.T) {
	c := newConn()
	r := &scriptedReader{eof: true}
	_, err := c.Drain(r.read, time.Unix(1000, 0))
	assert.ErrorIs(t, err, errPeerClosed)
}

func TestConnectionOversizedRequest(t *testing.T) {
	c := NewConnection(-1, "example", "t", 64, time.Unix(1000, 0))
	r := &scriptedReader{fragments: [][]byte{make([]byte, 65)}}
	_, err := c.Drain(r.read, time.Unix(1000, 0))
	assert.ErrorIs(t, err, http11.ErrRequestTooLarge)
}

func TestConnectionMalformedRequest(t *testing.T) {
	c := newConn()
	r := &scriptedReader{fragments: [][]byte{[]byte("NONSENSE\r\n\r\n")}}
	_, err := c.Drain(r.read, time.Unix(1000, 0))
	require.NoError(t, err)

	_, err = c.NextRequest()
	require.Error(t, err)
	assert.Equal(t, StateClosed, c.State())
}

func TestConnectionActivityTracking(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewConnection(-1, "example", "t", 0, start)

	// The idle boundary is strict: exactly the timeout is not over it.
	timeout := DefaultIdleTimeout
	assert.False(t, c.IdleSince(start.Add(timeout)) > timeout)
	assert.True(t, c.IdleSince(start.Add(timeout+time.Millisecond)) > timeout)

	// A read refreshes the timestamp.
	r := &scriptedReader{fragments: [][]byte{[]byte("GET")}}
	_, err := c.Drain(r.read, start.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), c.IdleSince(start.Add(30*time.Second)))
}
