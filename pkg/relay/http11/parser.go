// Package http11 implements the HTTP/1.1 wire codec: an incremental
// request parser tolerant of arbitrary TCP fragmentation, the
// request/response/header/body model, and response serialisation.
//
// The parser is buffer-driven rather than reader-driven: the reactor
// appends whatever bytes the socket produced and polls for a complete
// request, so a single-threaded event loop never blocks inside the
// codec.
package http11

import (
	"bytes"
)

// ParseState is the externally visible progress of the parser, mirrored
// by the per-connection state machine.
type ParseState uint8

const (
	// StateAwaitingHeaders means the header terminator (CRLF CRLF) has
	// not been observed yet.
	StateAwaitingHeaders ParseState = iota

	// StateProcessingBody means headers are parsed and body bytes are
	// still being accumulated.
	StateProcessingBody

	// StateComplete is never reported by RequestParser: once Poll
	// returns a request the parser re-arms on any leftover pipelined
	// bytes and State is StateAwaitingHeaders again.
	StateComplete
)

// framing is the body-length decision from the parsed headers.
type framing uint8

const (
	framingNone framing = iota
	framingContentLength
	framingChunked
)

// RequestParser incrementally parses HTTP/1.1 requests from a growing
// byte buffer.
//
// Usage: Feed() every read, then Poll(). Poll returns (nil, nil) while
// the request is incomplete, a request once the terminator and full body
// have been observed, or an error for malformed or oversized input.
// After a completed request, leftover bytes stay buffered and seed the
// next request; pipelined requests are therefore handled one at a time,
// in order.
type RequestParser struct {
	maxSize int

	buf   []byte
	state ParseState

	headersEnd int
	req        *Request
	framing    framing
	length     int64

	// chunked decode state
	chunk   chunkDecoder
	pos     int
	decoded []byte
}

// NewRequestParser creates a parser with the given whole-request size
// cap. maxSize <= 0 selects DefaultMaxRequestSize.
func NewRequestParser(maxSize int) *RequestParser {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	return &RequestParser{maxSize: maxSize}
}

// State returns the parser's current phase.
func (p *RequestParser) State() ParseState { return p.state }

// Buffered returns the number of unconsumed bytes held by the parser.
func (p *RequestParser) Buffered() int { return len(p.buf) }

// Feed appends bytes read from the socket. Exceeding the configured cap
// before the request completes is a hard error (maps to 413).
func (p *RequestParser) Feed(data []byte) error {
	p.buf = append(p.buf, data...)
	if len(p.buf) > p.maxSize {
		return ErrRequestTooLarge
	}
	return nil
}

// Poll advances parsing as far as the buffered bytes allow.
// Returns (nil, nil) when more input is needed.
func (p *RequestParser) Poll() (*Request, error) {
	if p.state == StateAwaitingHeaders {
		if err := p.tryParseHeaders(); err != nil {
			return nil, err
		}
		if p.state == StateAwaitingHeaders {
			return nil, nil
		}
	}

	switch p.framing {
	case framingNone:
		return p.complete(nil, p.headersEnd)

	case framingContentLength:
		total := int64(p.headersEnd) + p.length
		if int64(len(p.buf)) < total {
			return nil, nil
		}
		raw := p.buf[p.headersEnd:total]
		return p.complete(raw, int(total))

	case framingChunked:
		pos, decoded, err := p.chunk.decode(p.buf, p.pos, p.decoded)
		p.pos, p.decoded = pos, decoded
		if err != nil {
			return nil, err
		}
		if !p.chunk.done {
			return nil, nil
		}
		return p.complete(p.decoded, p.pos)
	}
	return nil, nil
}

// tryParseHeaders scans for the header terminator and, once found,
// parses the request line and header block and fixes the body framing.
func (p *RequestParser) tryParseHeaders() error {
	idx := bytes.Index(p.buf, headersEnd)
	if idx == -1 {
		if len(p.buf) > MaxHeadersSize {
			return ErrHeadersTooLarge
		}
		return nil
	}
	p.headersEnd = idx + len(headersEnd)

	block := p.buf[:idx]
	lineEnd := bytes.Index(block, crlf)
	var requestLine, headerBlock []byte
	if lineEnd == -1 {
		requestLine = block
	} else {
		requestLine = block[:lineEnd]
		headerBlock = block[lineEnd+2:]
	}

	req, err := parseRequestLine(requestLine)
	if err != nil {
		return err
	}
	if err := parseHeaderBlock(req, headerBlock); err != nil {
		return err
	}
	p.req = req

	// Body framing decision. Chunked takes precedence over
	// Content-Length per HTTP/1.1 rules; with neither header the
	// request is complete at end-of-headers.
	switch {
	case req.Headers.IsChunked():
		p.framing = framingChunked
		p.chunk = newChunkDecoder()
		p.pos = p.headersEnd
		p.decoded = nil
	case req.Headers.ContentLength() >= 0:
		p.framing = framingContentLength
		p.length = req.Headers.ContentLength()
	default:
		if req.Headers.Has(HeaderContentLength) {
			return ErrInvalidContentLength
		}
		p.framing = framingNone
	}
	p.state = StateProcessingBody
	return nil
}

// complete interprets the raw body, hands the request out, and re-arms
// the parser on the leftover bytes.
func (p *RequestParser) complete(raw []byte, consumed int) (*Request, error) {
	body, err := InterpretBody(raw, p.req.Headers.ContentType())
	if err != nil {
		return nil, err
	}
	req := p.req
	req.Body = body

	leftover := p.buf[consumed:]
	p.buf = append([]byte(nil), leftover...)
	p.req = nil
	p.headersEnd = 0
	p.framing = framingNone
	p.length = 0
	p.pos = 0
	p.decoded = nil
	p.state = StateAwaitingHeaders
	return req, nil
}

// Reset drops all buffered state, leftover included. Used when a
// connection is being torn down after an error.
func (p *RequestParser) Reset() {
	p.buf = nil
	p.req = nil
	p.headersEnd = 0
	p.framing = framingNone
	p.length = 0
	p.pos = 0
	p.decoded = nil
	p.state = StateAwaitingHeaders
}

// parseRequestLine parses "METHOD SP target SP HTTP-version".
func parseRequestLine(line []byte) (*Request, error) {
	if len(line) == 0 {
		return nil, ErrInvalidRequestLine
	}
	if len(line) > MaxRequestLineSize {
		return nil, ErrRequestLineTooLarge
	}

	sp := bytes.IndexByte(line, ' ')
	if sp == -1 {
		return nil, ErrInvalidRequestLine
	}
	method := ParseMethod(line[:sp])
	if method == MethodUnknown {
		return nil, ErrInvalidMethod
	}

	rest := line[sp+1:]
	sp = bytes.IndexByte(rest, ' ')
	if sp == -1 {
		return nil, ErrInvalidRequestLine
	}
	target := rest[:sp]
	version := rest[sp+1:]

	if len(target) == 0 || (target[0] != '/' && target[0] != '*') {
		return nil, ErrInvalidPath
	}
	if string(version) != http11Proto {
		return nil, ErrInvalidProtocol
	}

	uri, query := string(target), ""
	if q := bytes.IndexByte(target, '?'); q != -1 {
		uri = string(target[:q])
		query = string(target[q+1:])
	}

	return &Request{
		Method:  method,
		URI:     uri,
		Query:   query,
		Version: http11Proto,
	}, nil
}

// parseHeaderBlock parses "Name: Value" lines. Header names must not
// contain whitespace, and no whitespace is allowed between the name and
// the colon (RFC 7230 §3.2). Values are trimmed of surrounding
// horizontal whitespace.
func parseHeaderBlock(req *Request, block []byte) error {
	if len(block) == 0 {
		return nil
	}
	for _, line := range bytes.Split(block, crlf) {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return ErrInvalidHeader
		}
		name := line[:colon]
		if line[colon-1] == ' ' || line[colon-1] == '\t' {
			return ErrInvalidHeader
		}
		if bytes.IndexByte(name, ' ') != -1 || bytes.IndexByte(name, '\t') != -1 {
			return ErrInvalidHeader
		}
		value := trimTrailingSpace(trimLeadingSpace(line[colon+1:]))
		req.Headers = append(req.Headers, NewHeader(string(name), string(value)))
	}
	return nil
}
