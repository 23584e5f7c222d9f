package http11

import (
	"bytes"
	"strings"
)

// FormField is a plain multipart field.
type FormField struct {
	Name  string
	Value string
}

// FormFile is a file part: the field it was posted under, the original
// filename, the declared MIME type and the raw content bytes.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// MultipartForm is a parsed multipart/form-data body. Raw keeps the wire
// bytes so responses carrying multipart bodies are emitted verbatim.
type MultipartForm struct {
	Boundary string
	Fields   []FormField
	Files    []FormFile
	Raw      []byte
}

// Field returns the value of the named field, if present.
func (m *MultipartForm) Field(name string) (string, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// ParseMultipart splits raw on the boundary delimiter and parses each
// part's own header block. Parts with a filename in Content-Disposition
// become files; the rest become fields.
//
// Expected framing (RFC 2046):
//
//	--boundary CRLF part-headers CRLF CRLF part-data CRLF
//	...
//	--boundary-- CRLF
func ParseMultipart(raw []byte, boundary string) (*MultipartForm, error) {
	form := &MultipartForm{Boundary: boundary, Raw: raw}
	delim := []byte("--" + boundary)

	segments := bytes.Split(raw, delim)
	if len(segments) < 2 {
		return nil, ErrMalformedMultipart
	}

	// segments[0] is the preamble before the first delimiter; ignored.
	sawTerminator := false
	for _, seg := range segments[1:] {
		if bytes.HasPrefix(seg, []byte("--")) {
			sawTerminator = true
			break
		}
		part := bytes.TrimPrefix(seg, crlf)
		part = bytes.TrimSuffix(part, crlf)
		if len(part) == 0 {
			continue
		}
		if err := form.addPart(part); err != nil {
			return nil, err
		}
	}
	if !sawTerminator {
		return nil, ErrMalformedMultipart
	}
	return form, nil
}

// addPart parses one part: its header block, then the raw data.
func (m *MultipartForm) addPart(part []byte) error {
	idx := bytes.Index(part, headersEnd)
	if idx == -1 {
		return ErrMalformedMultipart
	}
	headerBlock := part[:idx]
	data := part[idx+len(headersEnd):]

	var (
		fieldName   string
		filename    string
		hasFilename bool
		contentType string
	)
	for _, line := range bytes.Split(headerBlock, crlf) {
		name, value, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}
		value = trimLeadingSpace(value)
		switch {
		case bytes.EqualFold(name, []byte("Content-Disposition")):
			fieldName, filename, hasFilename = parseContentDisposition(string(value))
		case bytes.EqualFold(name, []byte("Content-Type")):
			contentType = string(value)
		}
	}
	if fieldName == "" {
		return ErrMalformedMultipart
	}

	if hasFilename {
		m.Files = append(m.Files, FormFile{
			Field:       fieldName,
			Filename:    filename,
			ContentType: contentType,
			Data:        data,
		})
	} else {
		m.Fields = append(m.Fields, FormField{Name: fieldName, Value: string(data)})
	}
	return nil
}

// parseContentDisposition pulls name and filename out of a
// `form-data; name="x"; filename="y"` value.
func parseContentDisposition(value string) (name, filename string, hasFilename bool) {
	for _, param := range strings.Split(value, ";") {
		k, v, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found {
			continue
		}
		v = strings.Trim(v, `"`)
		switch strings.ToLower(k) {
		case "name":
			name = v
		case "filename":
			filename = v
			hasFilename = true
		}
	}
	return name, filename, hasFilename
}

// EncodeMultipart renders fields and files into wire form with the given
// boundary. Used by test helpers and by handlers that synthesise
// multipart payloads.
func EncodeMultipart(boundary string, fields []FormField, files []FormFile) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		buf.WriteString("--" + boundary + "\r\n")
		buf.WriteString(`Content-Disposition: form-data; name="` + f.Name + `"` + "\r\n\r\n")
		buf.WriteString(f.Value + "\r\n")
	}
	for _, f := range files {
		buf.WriteString("--" + boundary + "\r\n")
		buf.WriteString(`Content-Disposition: form-data; name="` + f.Field + `"; filename="` + f.Filename + `"` + "\r\n")
		if f.ContentType != "" {
			buf.WriteString("Content-Type: " + f.ContentType + "\r\n")
		}
		buf.WriteString("\r\n")
		buf.Write(f.Data)
		buf.WriteString("\r\n")
	}
	buf.WriteString("--" + boundary + "--\r\n")
	return buf.Bytes()
}
