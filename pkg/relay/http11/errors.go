package http11

import "errors"

// Parser errors, pre-allocated so the hot path never formats strings.
var (
	// ErrInvalidRequestLine indicates the request line is malformed.
	// Request line format: METHOD SP target SP HTTP-version CRLF
	ErrInvalidRequestLine = errors.New("http11: invalid request line")

	// ErrInvalidMethod indicates an unrecognised HTTP method token.
	ErrInvalidMethod = errors.New("http11: invalid HTTP method")

	// ErrInvalidPath indicates the request target is malformed.
	// Only origin-form targets ("/path?query") and "*" are accepted.
	ErrInvalidPath = errors.New("http11: invalid request path")

	// ErrInvalidProtocol indicates an unsupported protocol version token.
	// Only HTTP/1.1 is supported by this engine.
	ErrInvalidProtocol = errors.New("http11: invalid or unsupported protocol version")

	// ErrInvalidHeader indicates a malformed header line.
	ErrInvalidHeader = errors.New("http11: invalid HTTP header")

	// ErrHeadersTooLarge indicates the header block exceeds MaxHeadersSize.
	ErrHeadersTooLarge = errors.New("http11: headers too large")

	// ErrRequestLineTooLarge indicates the request line exceeds 8KB.
	ErrRequestLineTooLarge = errors.New("http11: request line too large")

	// ErrInvalidContentLength indicates a non-numeric or negative
	// Content-Length value.
	ErrInvalidContentLength = errors.New("http11: invalid Content-Length")

	// ErrChunkedEncoding indicates malformed chunked transfer framing:
	// a bad hex size line or a missing CRLF after chunk data.
	ErrChunkedEncoding = errors.New("http11: chunked encoding error")

	// ErrRequestTooLarge indicates the buffered request outgrew the
	// configured cap before completing. Maps to 413.
	ErrRequestTooLarge = errors.New("http11: request exceeds maximum size")

	// ErrBadBody indicates the body bytes could not be interpreted
	// according to the declared Content-Type. Maps to 400.
	ErrBadBody = errors.New("http11: malformed request body")

	// ErrMalformedMultipart indicates a multipart body whose boundary
	// structure or part headers are broken.
	ErrMalformedMultipart = errors.New("http11: malformed multipart body")
)
