package server

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/relay/pkg/relay/cgi"
	"github.com/yourusername/relay/pkg/relay/http11"
	"github.com/yourusername/relay/pkg/relay/session"
	"github.com/yourusername/relay/pkg/relay/static"
)

// startServer binds the host on an ephemeral port and runs the reactor
// in the background for the lifetime of the test binary.
func startServer(t *testing.T, configure func(h *Host)) string {
	t.Helper()

	h, err := NewHost("127.0.0.1", "example", []string{"0"}, nil)
	require.NoError(t, err)
	configure(h)

	srv, err := New(nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, srv.AddHost(h))
	go srv.Run()

	port := h.Listeners[0].BoundPort()
	require.NotZero(t, port)
	return fmt.Sprintf("127.0.0.1:%d", port)
}

// roundTrip writes raw on a fresh connection and reads one response.
func roundTrip(t *testing.T, addr, raw string) (string, http11.Headers, []byte) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)
	return readResponse(t, conn, bufio.NewReader(conn))
}

// readResponse reads status line, headers and a Content-Length body from
// r. Callers reading several responses off one connection share one r,
// since it may buffer bytes of the next response.
func readResponse(t *testing.T, conn net.Conn, r *bufio.Reader) (string, http11.Headers, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	statusLine, err := r.ReadString('\n')
	require.NoError(t, err)
	statusLine = strings.TrimRight(statusLine, "\r\n")

	var headers http11.Headers
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		require.True(t, found, "header line %q", line)
		headers = append(headers, http11.NewHeader(name, strings.TrimSpace(value)))
	}

	length := 0
	if cl := headers.Value(http11.HeaderContentLength); cl != "" {
		length, err = strconv.Atoi(cl)
		require.NoError(t, err)
	}
	body := make([]byte, length)
	if length > 0 {
		_, err = ioReadFull(r, body)
		require.NoError(t, err)
	}
	return statusLine, headers, body
}

func ioReadFull(r *bufio.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

func TestEndToEndStaticFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))

	addr := startServer(t, func(h *Host) {
		files, err := static.New(root, "", false, nil, nil)
		require.NoError(t, err)
		h.AddRoute(&Route{Path: "/", Methods: []http11.Method{http11.MethodGET}, StaticFiles: files})
	})

	status, headers, body := roundTrip(t, addr,
		"GET /hello.txt HTTP/1.1\r\nHost: example\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "text/plain", headers.Value(http11.HeaderContentType))
	assert.Equal(t, "2", headers.Value(http11.HeaderContentLength))
	assert.Equal(t, []byte("hi"), body)
	assert.Equal(t, "*", headers.Value(http11.HeaderName("Access-Control-Allow-Origin")))
}

func TestEndToEndCustomErrorPage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "404.html"), []byte("<h1>nope</h1>"), 0o644))
	pages := map[string]string{"404": "404.html"}

	addr := startServer(t, func(h *Host) {
		files, err := static.New(root, "", false, pages, nil)
		require.NoError(t, err)
		h.ErrorPages = pages
		h.ErrorPageRoot = root
		h.AddRoute(&Route{Path: "/", Methods: []http11.Method{http11.MethodGET}, StaticFiles: files})
	})

	status, headers, body := roundTrip(t, addr,
		"GET /missing HTTP/1.1\r\nHost: example\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 404 Not Found", status)
	assert.Equal(t, "text/html; charset=UTF-8", headers.Value(http11.HeaderContentType))
	assert.Equal(t, []byte("<h1>nope</h1>"), body)
}

func TestEndToEndKeepAliveAndPipelining(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("B"), 0o644))

	addr := startServer(t, func(h *Host) {
		files, err := static.New(root, "", false, nil, nil)
		require.NoError(t, err)
		h.AddRoute(&Route{Path: "/", StaticFiles: files})
	})

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	// Two requests in one write: served strictly in order on one
	// connection.
	_, err = conn.Write([]byte(
		"GET /a.txt HTTP/1.1\r\nHost: example\r\n\r\n" +
			"GET /b.txt HTTP/1.1\r\nHost: example\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, headers, body := readResponse(t, conn, r)
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "keep-alive", headers.Value(http11.HeaderConnection))
	assert.Equal(t, []byte("A"), body)

	status, _, body = readResponse(t, conn, r)
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, []byte("B"), body)
}

func TestEndToEndConnectionClose(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("A"), 0o644))

	addr := startServer(t, func(h *Host) {
		files, err := static.New(root, "", false, nil, nil)
		require.NoError(t, err)
		h.AddRoute(&Route{Path: "/", StaticFiles: files})
	})

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("GET /a.txt HTTP/1.1\r\nHost: example\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	_, headers, _ := readResponse(t, conn, bufio.NewReader(conn))
	assert.Equal(t, "close", headers.Value(http11.HeaderConnection))

	// The server closes; the next read sees EOF.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	one := make([]byte, 1)
	_, err = conn.Read(one)
	assert.Error(t, err)
}

func TestEndToEndMethodNotAllowed(t *testing.T) {
	root := t.TempDir()
	addr := startServer(t, func(h *Host) {
		files, err := static.New(root, "", false, nil, nil)
		require.NoError(t, err)
		h.AddRoute(&Route{Path: "/", Methods: []http11.Method{http11.MethodGET}, StaticFiles: files})
	})

	status, _, _ := roundTrip(t, addr,
		"DELETE / HTTP/1.1\r\nHost: example\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 405 Method Not Allowed", status)
}

func TestEndToEndSessionLifecycle(t *testing.T) {
	maxAge := int64(60)
	addr := startServer(t, func(h *Host) {
		h.SessionManager = session.NewManager(session.Config{
			CookieName: "SID",
			Options:    http11.CookieOptions{MaxAge: &maxAge},
		}, nil, nil, nil)
		h.AddSessionAPI()
	})

	status, headers, body := roundTrip(t, addr,
		"POST /api/session/create HTTP/1.1\r\nHost: example\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)

	var created map[string]string
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "Session created", created["message"])
	id := created["session_id"]
	require.NotEmpty(t, id)
	setCookie := headers.Value(http11.HeaderSetCookie)
	assert.True(t, strings.HasPrefix(setCookie, "SID="+id))
	assert.Contains(t, setCookie, "Max-Age=60")

	status, headers, body = roundTrip(t, addr,
		"DELETE /api/session/delete HTTP/1.1\r\nHost: example\r\nCookie: SID="+id+"\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	var destroyed map[string]string
	require.NoError(t, json.Unmarshal(body, &destroyed))
	assert.Equal(t, "Session destroyed successfully", destroyed["message"])
	assert.Equal(t, id, destroyed["session_id"])
	assert.Contains(t, headers.Value(http11.HeaderSetCookie), "Max-Age=0")
}

func TestEndToEndSessionRedirect(t *testing.T) {
	addr := startServer(t, func(h *Host) {
		h.SessionManager = session.NewManager(session.Config{CookieName: "SID"}, nil, nil, nil)
		h.AddRoute(&Route{
			Path:            "/secret",
			SessionRequired: true,
			SessionRedirect: "/login",
		})
	})

	status, headers, body := roundTrip(t, addr,
		"GET /secret HTTP/1.1\r\nHost: example\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 302 Found", status)
	assert.Equal(t, "/login", headers.Value(http11.HeaderLocation))
	assert.Empty(t, body)
}

func TestEndToEndChunkedPostToCGI(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh unavailable")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "echo.sh")
	// The child sees the request through its environment-mirrored
	// headers; it answers a fixed body.
	require.NoError(t, os.WriteFile(script,
		[]byte("printf 'Content-Type: text/plain\\r\\n\\r\\nok'\n"), 0o755))

	addr := startServer(t, func(h *Host) {
		h.AddRoute(&Route{
			Path: "/run",
			CGI: cgi.NewExecutor(cgi.Config{
				Interpreter:       "/bin/sh",
				ScriptPath:        script,
				AllowedExtensions: []string{".sh"},
			}, nil),
		})
	})

	status, headers, body := roundTrip(t, addr,
		"POST /run HTTP/1.1\r\nHost: example\r\nTransfer-Encoding: chunked\r\n\r\n"+
			"5\r\nhello\r\n0\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "text/plain", headers.Value(http11.HeaderContentType))
	assert.Equal(t, []byte("ok"), body)
}

func TestEndToEndOversizedRequestIs413(t *testing.T) {
	addr := startServer(t, func(h *Host) {
		h.MaxBodySize = 256
		h.AddRoute(&Route{Path: "/"})
	})

	big := strings.Repeat("x", 512)
	status, _, _ := roundTrip(t, addr,
		"POST / HTTP/1.1\r\nHost: example\r\nContent-Length: 512\r\nContent-Type: text/plain\r\n\r\n"+big)
	assert.Equal(t, "HTTP/1.1 413 Payload Too Large", status)
}

func TestEndToEndNoRouteIs404(t *testing.T) {
	addr := startServer(t, func(h *Host) {
		h.AddRoute(&Route{Path: "/only"})
	})
	status, _, _ := roundTrip(t, addr,
		"GET /elsewhere HTTP/1.1\r\nHost: example\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 404 Not Found", status)
}
