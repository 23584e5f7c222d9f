package http11

import (
	"bytes"
	"strconv"
)

// Response is an HTTP/1.1 response under construction. The version is
// fixed: this engine always answers HTTP/1.1 regardless of what the
// request line carried.
type Response struct {
	Version string
	Status  StatusCode
	Headers Headers
	Body    *Body
}

// NewResponse builds a response with the given status, headers and body.
func NewResponse(status StatusCode, headers Headers, body *Body) *Response {
	return &Response{
		Version: http11Proto,
		Status:  status,
		Headers: headers,
		Body:    body,
	}
}

// TextResponse builds a text/plain response.
func TextResponse(status StatusCode, text string) *Response {
	body := TextBody(text)
	return NewResponse(status, Headers{
		NewHeader("Content-Type", "text/plain"),
		NewHeader("Content-Length", itoa(body.Len())),
	}, body)
}

// JSONResponse builds an application/json response from any value.
func JSONResponse(status StatusCode, v any) *Response {
	body := JSONBody(v)
	return NewResponse(status, Headers{
		NewHeader("Content-Type", "application/json"),
		NewHeader("Content-Length", itoa(body.Len())),
	}, body)
}

// HTMLResponse builds a text/html response.
func HTMLResponse(status StatusCode, html string) *Response {
	body := TextBody(html)
	return NewResponse(status, Headers{
		NewHeader("Content-Type", "text/html; charset=UTF-8"),
		NewHeader("Content-Length", itoa(body.Len())),
	}, body)
}

// RedirectResponse builds an empty-bodied redirect to location.
func RedirectResponse(status StatusCode, location string) *Response {
	return NewResponse(status, Headers{
		NewHeader("Location", location),
	}, EmptyBody())
}

// AddCookie appends a Set-Cookie header for the cookie.
func (r *Response) AddCookie(c Cookie) {
	r.Headers.Add(string(HeaderSetCookie), c.String())
}

// Finalize completes the response before serialisation: the default
// Content-Type for the body variant when the handler left it out, the
// permissive CORS headers the server always emits, and the Connection
// echo for the negotiated discipline.
func (r *Response) Finalize(keepAlive bool) {
	if !r.Body.IsEmpty() && !r.Headers.Has(HeaderContentType) {
		if ct := r.Body.DefaultContentType(); ct != "" {
			r.Headers.Set(string(HeaderContentType), ct)
		}
	}
	r.Headers.Set("Access-Control-Allow-Origin", "*")
	r.Headers.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	r.Headers.Set("Access-Control-Allow-Headers", "Content-Type")
	if keepAlive {
		r.Headers.Set(string(HeaderConnection), "keep-alive")
	} else {
		r.Headers.Set(string(HeaderConnection), "close")
	}
}

// CloseRequested reports whether the response itself demands the
// connection be torn down after the write.
func (r *Response) CloseRequested() bool {
	h := r.Headers.Get(HeaderConnection)
	if h == nil {
		return false
	}
	c, ok := h.Parsed.(ConnectionParsed)
	return ok && c.Connection == ConnectionClose
}

// Encode serialises the response to wire form:
//
//	HTTP/1.1 <code> <reason> CRLF (Name: Value CRLF)* CRLF body
//
// Content-Length is forced to the serialised body length for every
// non-empty body, whatever the handler set.
func (r *Response) Encode() []byte {
	body := r.Body.Bytes()
	if len(body) > 0 {
		r.Headers.Set(string(HeaderContentLength), itoa(len(body)))
	}

	var buf bytes.Buffer
	buf.WriteString(r.Version)
	buf.WriteByte(' ')
	buf.WriteString(r.Status.String())
	buf.Write(crlf)
	for _, h := range r.Headers {
		buf.WriteString(h.String())
		buf.Write(crlf)
	}
	buf.Write(crlf)
	buf.Write(body)
	return buf.Bytes()
}

func itoa(n int) string { return strconv.Itoa(n) }
