package http11

import (
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// BodyKind tags the interpreted representation of a message body.
type BodyKind uint8

const (
	BodyEmpty BodyKind = iota
	BodyText
	BodyJSON
	BodyForm
	BodyMultipart
	BodyBinary
)

// Body is an interpreted message body. The interpretation is chosen from
// the Content-Type once the raw bytes are fully buffered; Raw keeps the
// wire bytes for the variants that are emitted verbatim.
type Body struct {
	Kind BodyKind

	// Text holds the decoded payload for BodyText.
	Text string

	// JSON holds the decoded value for BodyJSON. Raw keeps the original
	// serialisation so responses round-trip byte-for-byte.
	JSON any

	// Form holds the key→value mapping for BodyForm.
	Form map[string]string

	// Multipart holds the parsed form for BodyMultipart.
	Multipart *MultipartForm

	// Raw holds the wire bytes for BodyJSON, BodyMultipart and BodyBinary.
	Raw []byte
}

// EmptyBody returns the canonical empty body.
func EmptyBody() *Body { return &Body{Kind: BodyEmpty} }

// TextBody builds a text body.
func TextBody(s string) *Body { return &Body{Kind: BodyText, Text: s} }

// BinaryBody builds an opaque binary body.
func BinaryBody(data []byte) *Body { return &Body{Kind: BodyBinary, Raw: data} }

// JSONBody marshals v and builds a JSON body. Marshal failure collapses
// to an empty JSON object rather than panicking mid-response.
func JSONBody(v any) *Body {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte("{}")
	}
	return &Body{Kind: BodyJSON, JSON: v, Raw: raw}
}

// FormBody builds a form-url-encoded body.
func FormBody(form map[string]string) *Body {
	return &Body{Kind: BodyForm, Form: form}
}

// IsEmpty reports whether the body serialises to zero bytes.
func (b *Body) IsEmpty() bool {
	return b == nil || b.Kind == BodyEmpty || len(b.Bytes()) == 0
}

// Bytes returns the canonical wire form of the body. Text, JSON and form
// bodies serialise to their textual form; multipart and binary bodies are
// emitted verbatim.
func (b *Body) Bytes() []byte {
	if b == nil {
		return nil
	}
	switch b.Kind {
	case BodyText:
		return []byte(b.Text)
	case BodyJSON:
		if b.Raw != nil {
			return b.Raw
		}
		raw, err := json.Marshal(b.JSON)
		if err != nil {
			return nil
		}
		return raw
	case BodyForm:
		// Sorted for a deterministic canonical form; the mapping itself
		// is unordered.
		keys := make([]string, 0, len(b.Form))
		for k := range b.Form {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(b.Form[k])
		}
		return []byte(sb.String())
	case BodyMultipart:
		if b.Multipart != nil {
			return b.Multipart.Raw
		}
		return b.Raw
	case BodyBinary:
		return b.Raw
	}
	return nil
}

// Len returns the serialised byte length.
func (b *Body) Len() int { return len(b.Bytes()) }

// DefaultContentType returns the Content-Type the server attaches when
// the handler did not choose one explicitly.
func (b *Body) DefaultContentType() string {
	if b == nil {
		return ""
	}
	switch b.Kind {
	case BodyText:
		return "text/plain"
	case BodyJSON:
		return "application/json"
	case BodyForm:
		return "application/x-www-form-urlencoded"
	case BodyMultipart:
		if b.Multipart != nil && b.Multipart.Boundary != "" {
			return "multipart/form-data; boundary=" + b.Multipart.Boundary
		}
		return "multipart/form-data"
	case BodyBinary:
		return "application/octet-stream"
	}
	return ""
}

// InterpretBody converts fully buffered raw body bytes into a Body using
// the request's Content-Type. A nil content type, or one the codec does
// not recognise, yields a binary body. A JSON body that fails to parse
// is a client error (maps to 400).
func InterpretBody(raw []byte, ct *ContentTypeValue) (*Body, error) {
	if len(raw) == 0 {
		return EmptyBody(), nil
	}
	if ct == nil {
		return BinaryBody(raw), nil
	}
	switch {
	case ct.MIME == "application/json":
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, ErrBadBody
		}
		return &Body{Kind: BodyJSON, JSON: v, Raw: raw}, nil

	case ct.MIME == "application/x-www-form-urlencoded":
		return &Body{Kind: BodyForm, Form: parseForm(raw)}, nil

	case ct.MIME == "multipart/form-data":
		boundary := ct.Boundary()
		if boundary == "" {
			return nil, ErrMalformedMultipart
		}
		form, err := ParseMultipart(raw, boundary)
		if err != nil {
			return nil, err
		}
		return &Body{Kind: BodyMultipart, Multipart: form}, nil

	case strings.HasPrefix(ct.MIME, "text/"):
		return TextBody(string(raw)), nil
	}
	return BinaryBody(raw), nil
}

// parseForm splits on '&' then '='; empty pairs are ignored.
func parseForm(raw []byte) map[string]string {
	form := map[string]string{}
	for _, pair := range strings.Split(string(raw), "&") {
		if pair == "" {
			continue
		}
		k, v, found := strings.Cut(pair, "=")
		if !found || k == "" {
			continue
		}
		form[k] = v
	}
	return form
}
