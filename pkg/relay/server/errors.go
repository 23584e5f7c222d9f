package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yourusername/relay/pkg/relay/cgi"
	"github.com/yourusername/relay/pkg/relay/http11"
	"github.com/yourusername/relay/pkg/relay/session"
	"github.com/yourusername/relay/pkg/relay/static"
	"github.com/yourusername/relay/pkg/relay/upload"
)

// HTTPError is a handler failure that already knows its status code.
type HTTPError struct {
	Status http11.StatusCode
	Reason string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", int(e.Status), e.Reason)
}

// Convenience constructors for the common cases.

func badRequest(reason string) *HTTPError {
	return &HTTPError{Status: http11.StatusBadRequest, Reason: reason}
}

func notFound(reason string) *HTTPError {
	return &HTTPError{Status: http11.StatusNotFound, Reason: reason}
}

func methodNotAllowed() *HTTPError {
	return &HTTPError{Status: http11.StatusMethodNotAllowed, Reason: "method not allowed"}
}

func serviceUnavailable(reason string) *HTTPError {
	return &HTTPError{Status: http11.StatusServiceUnavailable, Reason: reason}
}

// EpollError is a failure of the readiness primitive itself; it is the
// only error class that terminates the process.
type EpollError struct {
	Op  string
	Err error
}

func (e *EpollError) Error() string { return fmt.Sprintf("epoll %s: %v", e.Op, e.Err) }

func (e *EpollError) Unwrap() error { return e.Err }

// ConnectionError is a per-connection I/O failure: fatal for the
// connection, harmless for the loop.
type ConnectionError struct {
	FD  int
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("connection fd=%d: %v", e.FD, e.Err) }

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatusFor maps a typed handler error to its canonical HTTP status and
// a human-readable reason. The mapping follows the propagation policy:
// NotFound→404, Forbidden→403, MethodNotAllowed→405, PayloadTooLarge→413,
// UnsupportedMediaType→415, session errors→401, session redirect→302,
// everything else→500.
func StatusFor(err error) (http11.StatusCode, string) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status, httpErr.Reason
	}

	var redirect *session.RedirectError
	if errors.As(err, &redirect) {
		return http11.StatusFound, redirect.URL
	}
	if errors.Is(err, session.ErrAuthenticationRequired) ||
		errors.Is(err, session.ErrInvalidSession) ||
		errors.Is(err, session.ErrSessionExpired) {
		return http11.StatusUnauthorized, "authentication required"
	}

	var staticNotFound *static.NotFoundError
	if errors.As(err, &staticNotFound) {
		return http11.StatusNotFound, "file not found"
	}
	var staticDenied *static.AccessDeniedError
	if errors.As(err, &staticDenied) {
		return http11.StatusForbidden, "access denied"
	}

	var uploadNotFound *upload.FileNotFoundError
	if errors.As(err, &uploadNotFound) {
		return http11.StatusNotFound, err.Error()
	}
	var tooLarge *upload.FileTooLargeError
	if errors.As(err, &tooLarge) {
		return http11.StatusPayloadTooLarge, "file too large"
	}
	var unsupported *upload.UnsupportedFileTypeError
	if errors.As(err, &unsupported) {
		return http11.StatusUnsupportedMediaType, err.Error()
	}

	var scriptMissing *cgi.ScriptNotFoundError
	if errors.As(err, &scriptMissing) {
		return http11.StatusNotFound, "CGI script not found"
	}
	var extDenied *cgi.ExtensionNotAllowedError
	if errors.As(err, &extDenied) {
		return http11.StatusForbidden, "script type not allowed"
	}

	switch {
	case errors.Is(err, http11.ErrRequestTooLarge):
		return http11.StatusPayloadTooLarge, "request too large"
	case errors.Is(err, http11.ErrBadBody),
		errors.Is(err, http11.ErrInvalidRequestLine),
		errors.Is(err, http11.ErrInvalidMethod),
		errors.Is(err, http11.ErrInvalidPath),
		errors.Is(err, http11.ErrInvalidHeader),
		errors.Is(err, http11.ErrInvalidContentLength),
		errors.Is(err, http11.ErrChunkedEncoding),
		errors.Is(err, http11.ErrMalformedMultipart),
		errors.Is(err, http11.ErrHeadersTooLarge),
		errors.Is(err, http11.ErrRequestLineTooLarge),
		errors.Is(err, http11.ErrInvalidProtocol):
		return http11.StatusBadRequest, "bad request"
	}

	return http11.StatusInternalServerError, "internal server error"
}

// ErrorResponse renders a handler error for the client: a 302 for
// session redirects, else an HTML error page (the host's custom page by
// status if mapped, the built-in template otherwise), with a JSON
// fallback when neither page is available.
func (h *Host) ErrorResponse(err error) *http11.Response {
	var redirect *session.RedirectError
	if errors.As(err, &redirect) {
		return http11.RedirectResponse(http11.StatusFound, redirect.URL)
	}

	status, reason := StatusFor(err)
	if page, ok := h.errorPage(status); ok {
		return http11.HTMLResponse(status, string(page))
	}
	if page := static.DefaultErrorPage(status, reason); len(page) > 0 {
		return http11.HTMLResponse(status, string(page))
	}
	return http11.JSONResponse(status, map[string]string{"error": reason})
}

// errorPage loads the host's custom page for a status, relative to the
// error-page root.
func (h *Host) errorPage(status http11.StatusCode) ([]byte, bool) {
	if h.ErrorPages == nil || h.ErrorPageRoot == "" {
		return nil, false
	}
	rel, ok := h.ErrorPages[fmt.Sprintf("%d", int(status))]
	if !ok {
		return nil, false
	}
	content, err := os.ReadFile(filepath.Join(h.ErrorPageRoot, rel))
	if err != nil {
		return nil, false
	}
	return content, true
}
