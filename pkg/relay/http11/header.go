package http11

import (
	"strings"
)

// HeaderName is a header field name. Known names are normalised to their
// canonical casing on construction; unknown names keep the casing the
// client sent. Comparison is always case-insensitive.
type HeaderName string

// Canonical names for the enumerated set.
const (
	HeaderContentType             HeaderName = "Content-Type"
	HeaderContentLength           HeaderName = "Content-Length"
	HeaderTransferEncoding        HeaderName = "Transfer-Encoding"
	HeaderConnection              HeaderName = "Connection"
	HeaderDate                    HeaderName = "Date"
	HeaderHost                    HeaderName = "Host"
	HeaderUserAgent               HeaderName = "User-Agent"
	HeaderAccept                  HeaderName = "Accept"
	HeaderAcceptLanguage          HeaderName = "Accept-Language"
	HeaderAcceptEncoding          HeaderName = "Accept-Encoding"
	HeaderServer                  HeaderName = "Server"
	HeaderLocation                HeaderName = "Location"
	HeaderCookie                  HeaderName = "Cookie"
	HeaderSetCookie               HeaderName = "Set-Cookie"
	HeaderCacheControl            HeaderName = "Cache-Control"
	HeaderETag                    HeaderName = "ETag"
	HeaderLastModified            HeaderName = "Last-Modified"
	HeaderStrictTransportSecurity HeaderName = "Strict-Transport-Security"
)

// knownNames maps lowercased names to their canonical form.
var knownNames = map[string]HeaderName{}

func init() {
	for _, n := range []HeaderName{
		HeaderContentType, HeaderContentLength, HeaderTransferEncoding,
		HeaderConnection, HeaderDate, HeaderHost, HeaderUserAgent,
		HeaderAccept, HeaderAcceptLanguage, HeaderAcceptEncoding,
		HeaderServer, HeaderLocation, HeaderCookie, HeaderSetCookie,
		HeaderCacheControl, HeaderETag, HeaderLastModified,
		HeaderStrictTransportSecurity,
	} {
		knownNames[strings.ToLower(string(n))] = n
	}
}

// CanonicalHeaderName matches name against the known set case-insensitively
// and returns the canonical spelling. Unknown names are returned unchanged,
// preserving the sender's casing.
func CanonicalHeaderName(name string) HeaderName {
	if canon, ok := knownNames[strings.ToLower(name)]; ok {
		return canon
	}
	return HeaderName(name)
}

// Equal compares two header names case-insensitively per RFC 7230.
func (n HeaderName) Equal(other HeaderName) bool {
	return strings.EqualFold(string(n), string(other))
}

// Connection disposition tokens.
type ConnectionValue uint8

const (
	ConnectionKeepAlive ConnectionValue = iota
	ConnectionClose
)

// Transfer codings the codec recognises. Only chunked affects framing.
type TransferEncodingValue uint8

const (
	TransferChunked TransferEncodingValue = iota
	TransferCompress
	TransferDeflate
	TransferGzip
	TransferIdentity
)

// ContentTypeValue is the structured parse of a Content-Type value:
// the MIME type plus its parameters (boundary, charset, ...), obtained
// by splitting on ';' then '='.
type ContentTypeValue struct {
	MIME   string
	Params map[string]string
}

// Boundary returns the multipart boundary parameter, if present.
func (c *ContentTypeValue) Boundary() string {
	return c.Params["boundary"]
}

// ParseContentType parses a Content-Type header value.
func ParseContentType(value string) *ContentTypeValue {
	parts := strings.Split(value, ";")
	ct := &ContentTypeValue{
		MIME:   strings.ToLower(strings.TrimSpace(parts[0])),
		Params: map[string]string{},
	}
	for _, p := range parts[1:] {
		k, v, found := strings.Cut(strings.TrimSpace(p), "=")
		if !found {
			continue
		}
		ct.Params[strings.ToLower(k)] = strings.Trim(v, `"`)
	}
	return ct
}

// ParsedValue is the best-effort structured interpretation of a header
// value. The raw string on the Header is always kept alongside it.
type ParsedValue interface{ parsedValue() }

// ContentTypeParsed wraps a ContentTypeValue as a ParsedValue.
type ContentTypeParsed struct{ ContentType *ContentTypeValue }

// ContentLengthParsed is a numeric Content-Length.
type ContentLengthParsed struct{ Length int64 }

// ConnectionParsed is a recognised Connection token.
type ConnectionParsed struct{ Connection ConnectionValue }

// TransferEncodingParsed is a recognised Transfer-Encoding token.
type TransferEncodingParsed struct{ Encoding TransferEncodingValue }

// CookieParsed is the pair list from a Cookie or Set-Cookie value.
type CookieParsed struct{ Pairs []CookiePair }

// RawParsed marks a value that carries no structured interpretation.
type RawParsed struct{}

func (ContentTypeParsed) parsedValue()      {}
func (ContentLengthParsed) parsedValue()    {}
func (ConnectionParsed) parsedValue()       {}
func (TransferEncodingParsed) parsedValue() {}
func (CookieParsed) parsedValue()           {}
func (RawParsed) parsedValue()              {}

// Header is one header field: a name, the raw value as received, and a
// best-effort structured parse that never replaces the raw string.
type Header struct {
	Name   HeaderName
	Value  string
	Parsed ParsedValue
}

// NewHeader builds a Header, canonicalising the name and computing the
// structured parse for the names that have one.
func NewHeader(name, value string) Header {
	canon := CanonicalHeaderName(name)
	return Header{Name: canon, Value: value, Parsed: parseValue(canon, value)}
}

func parseValue(name HeaderName, value string) ParsedValue {
	switch name {
	case HeaderContentType:
		return ContentTypeParsed{ContentType: ParseContentType(value)}
	case HeaderContentLength:
		n, err := parseContentLength([]byte(value))
		if err != nil {
			return RawParsed{}
		}
		return ContentLengthParsed{Length: n}
	case HeaderConnection:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "close":
			return ConnectionParsed{Connection: ConnectionClose}
		case "keep-alive":
			return ConnectionParsed{Connection: ConnectionKeepAlive}
		}
		return RawParsed{}
	case HeaderTransferEncoding:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "chunked":
			return TransferEncodingParsed{Encoding: TransferChunked}
		case "compress":
			return TransferEncodingParsed{Encoding: TransferCompress}
		case "deflate":
			return TransferEncodingParsed{Encoding: TransferDeflate}
		case "gzip":
			return TransferEncodingParsed{Encoding: TransferGzip}
		case "identity":
			return TransferEncodingParsed{Encoding: TransferIdentity}
		}
		return RawParsed{}
	case HeaderCookie, HeaderSetCookie:
		return CookieParsed{Pairs: ParseCookiePairs(value)}
	}
	return RawParsed{}
}

// String renders "Name: Value" without the trailing CRLF.
func (h Header) String() string {
	return string(h.Name) + ": " + h.Value
}

// Headers is an ordered header sequence. Order is preserved from the wire
// and on serialisation.
type Headers []Header

// Get returns the first header with the given name, nil if absent.
func (hs Headers) Get(name HeaderName) *Header {
	for i := range hs {
		if hs[i].Name.Equal(name) {
			return &hs[i]
		}
	}
	return nil
}

// Value returns the raw value of the first header with the given name,
// or "" if absent.
func (hs Headers) Value(name HeaderName) string {
	if h := hs.Get(name); h != nil {
		return h.Value
	}
	return ""
}

// Has reports whether a header with the given name is present.
func (hs Headers) Has(name HeaderName) bool {
	return hs.Get(name) != nil
}

// Set replaces the first header with the given name, or appends.
func (hs *Headers) Set(name, value string) {
	h := NewHeader(name, value)
	for i := range *hs {
		if (*hs)[i].Name.Equal(h.Name) {
			(*hs)[i] = h
			return
		}
	}
	*hs = append(*hs, h)
}

// Add appends without replacing. Needed for Set-Cookie, which may
// legitimately repeat.
func (hs *Headers) Add(name, value string) {
	*hs = append(*hs, NewHeader(name, value))
}

// ContentType returns the structured Content-Type parse, if any.
func (hs Headers) ContentType() *ContentTypeValue {
	h := hs.Get(HeaderContentType)
	if h == nil {
		return nil
	}
	if ct, ok := h.Parsed.(ContentTypeParsed); ok {
		return ct.ContentType
	}
	return nil
}

// ContentLength returns the numeric Content-Length, or -1 when absent
// or unparseable.
func (hs Headers) ContentLength() int64 {
	h := hs.Get(HeaderContentLength)
	if h == nil {
		return -1
	}
	if cl, ok := h.Parsed.(ContentLengthParsed); ok {
		return cl.Length
	}
	return -1
}

// IsChunked reports whether Transfer-Encoding resolves to chunked.
func (hs Headers) IsChunked() bool {
	h := hs.Get(HeaderTransferEncoding)
	if h == nil {
		return false
	}
	te, ok := h.Parsed.(TransferEncodingParsed)
	return ok && te.Encoding == TransferChunked
}

// parseContentLength parses a Content-Length value. Rejects anything
// that is not a plain decimal, including overflow.
func parseContentLength(b []byte) (int64, error) {
	if len(b) == 0 {
		return -1, ErrInvalidContentLength
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return -1, ErrInvalidContentLength
		}
		n = n*10 + int64(c-'0')
		if n < 0 {
			return -1, ErrInvalidContentLength
		}
	}
	return n, nil
}

// trimLeadingSpace trims leading spaces and tabs (per RFC 7230).
func trimLeadingSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	return b
}

// trimTrailingSpace trims trailing spaces and tabs (per RFC 7230).
func trimTrailingSpace(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
