package http11

import "bytes"

// Request is a fully parsed HTTP/1.1 request. It only exists once the
// parser has observed the header terminator and buffered the complete
// body, so handlers never see partial state.
type Request struct {
	Method  Method
	URI     string // origin-form path, without the query
	Query   string // raw query string, without the '?'
	Version string
	Headers Headers
	Body    *Body

	// Params holds the values bound by a parameterised route matcher,
	// keyed by the ':name' placeholder. Filled in by the router.
	Params map[string]string

	// RemoteAddr is the client address recorded at accept time.
	RemoteAddr string
}

// Header returns the first header with the given name, nil if absent.
func (r *Request) Header(name HeaderName) *Header {
	return r.Headers.Get(name)
}

// HeaderValue returns the raw value of the named header, or "".
func (r *Request) HeaderValue(name HeaderName) string {
	return r.Headers.Value(name)
}

// Cookie returns the named cookie from the Cookie header.
func (r *Request) Cookie(name string) (string, bool) {
	h := r.Headers.Get(HeaderCookie)
	if h == nil {
		return "", false
	}
	return CookieFromHeader(h.Value, name)
}

// KeepAlive reports the connection discipline for this request.
// HTTP/1.1 defaults to keep-alive; Connection: close negates it.
func (r *Request) KeepAlive() bool {
	h := r.Headers.Get(HeaderConnection)
	if h == nil {
		return true
	}
	if c, ok := h.Parsed.(ConnectionParsed); ok {
		return c.Connection != ConnectionClose
	}
	return true
}

// Target rebuilds the request target as it appears on the wire.
func (r *Request) Target() string {
	if r.Query != "" {
		return r.URI + "?" + r.Query
	}
	return r.URI
}

// Encode serialises the request back to wire form. Bodies are emitted in
// their canonical representation; Content-Length is rewritten to match so
// parse(Encode(req)) always observes consistent framing.
func (r *Request) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(r.Method.String())
	buf.WriteByte(' ')
	buf.WriteString(r.Target())
	buf.WriteByte(' ')
	buf.WriteString(r.Version)
	buf.Write(crlf)

	body := r.Body.Bytes()
	headers := make(Headers, len(r.Headers))
	copy(headers, r.Headers)
	if len(body) > 0 && !headers.IsChunked() {
		headers.Set(string(HeaderContentLength), itoa(len(body)))
	}
	for _, h := range headers {
		buf.WriteString(h.String())
		buf.Write(crlf)
	}
	buf.Write(crlf)
	if len(body) > 0 {
		if headers.IsChunked() {
			writeChunked(&buf, body)
		} else {
			buf.Write(body)
		}
	}
	return buf.Bytes()
}
