package http11

// Protocol constants shared across the codec.
const (
	// http11Proto is the only protocol version this engine speaks.
	http11Proto = "HTTP/1.1"

	// MaxRequestLineSize caps the request line at 8KB per RFC 7230
	// recommendations. Longer lines are rejected before any allocation
	// proportional to their length.
	MaxRequestLineSize = 8 * 1024

	// MaxHeadersSize caps the header block (request line included) at 16KB.
	MaxHeadersSize = 16 * 1024

	// DefaultMaxRequestSize bounds a whole buffered request (headers plus
	// body) when the host does not configure its own cap.
	DefaultMaxRequestSize = 10 * 1024 * 1024

	// maxChunkSize bounds a single chunk in chunked transfer encoding.
	// A hex size line decoding beyond this is treated as malformed.
	maxChunkSize = 16 * 1024 * 1024
)

var (
	crlf       = []byte("\r\n")
	headersEnd = []byte("\r\n\r\n")
)
