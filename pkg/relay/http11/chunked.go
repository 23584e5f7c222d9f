package http11

import (
	"bytes"
	"strconv"
)

// chunkDecoder tracks progress through a chunked transfer encoded body
// held in a growing buffer (RFC 7230 §4.1).
//
//	chunked-body = *chunk last-chunk trailer-section CRLF
//	chunk        = chunk-size [ chunk-ext ] CRLF chunk-data CRLF
//
// The decoder is resumable: decode consumes whatever complete framing
// elements the buffer holds and reports how far it got, so a zero-chunk
// split across two reads completes on the read that delivers the rest.
type chunkDecoder struct {
	// remaining is the data left in the current chunk.
	// -1 means the next element is a size line.
	// 0 with inChunk set means the chunk-data CRLF is still owed.
	remaining int64
	inChunk   bool
	// inTrailers is set once the zero chunk was seen; lines are then
	// discarded until the terminating blank line.
	inTrailers bool
	done       bool
}

func newChunkDecoder() chunkDecoder {
	return chunkDecoder{remaining: -1}
}

// decode consumes framing from buf starting at pos, appending decoded
// data bytes to out. Returns the new position, the grown output and any
// framing error; d.done reports whether the body is complete or more
// input is needed.
func (d *chunkDecoder) decode(buf []byte, pos int, out []byte) (int, []byte, error) {
	for !d.done {
		switch {
		case d.inTrailers:
			lineEnd := bytes.Index(buf[pos:], crlf)
			if lineEnd == -1 {
				return pos, out, nil // need more
			}
			// Blank line terminates the trailer section; any other
			// trailer line is read and discarded.
			if lineEnd == 0 {
				d.done = true
			}
			pos += lineEnd + 2

		case d.remaining == -1:
			lineEnd := bytes.Index(buf[pos:], crlf)
			if lineEnd == -1 {
				if len(buf)-pos > MaxRequestLineSize {
					return pos, out, ErrChunkedEncoding
				}
				return pos, out, nil // need more
			}
			size, err := parseChunkSize(buf[pos : pos+lineEnd])
			if err != nil {
				return pos, out, err
			}
			pos += lineEnd + 2
			if size == 0 {
				d.inTrailers = true
				continue
			}
			d.remaining = size
			d.inChunk = true

		case d.remaining > 0:
			avail := int64(len(buf) - pos)
			if avail == 0 {
				return pos, out, nil // need more
			}
			take := d.remaining
			if avail < take {
				take = avail
			}
			out = append(out, buf[pos:pos+int(take)]...)
			pos += int(take)
			d.remaining -= take

		default: // remaining == 0, chunk-data CRLF owed
			if len(buf)-pos < 2 {
				return pos, out, nil // need more
			}
			if buf[pos] != '\r' || buf[pos+1] != '\n' {
				return pos, out, ErrChunkedEncoding
			}
			pos += 2
			d.remaining = -1
			d.inChunk = false
		}
	}
	return pos, out, nil
}

// parseChunkSize parses a hex chunk-size line. Chunk extensions after
// ';' are stripped and ignored, which also closes the smuggling vectors
// they enable.
func parseChunkSize(line []byte) (int64, error) {
	if idx := bytes.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return 0, ErrChunkedEncoding
	}
	var size int64
	for _, b := range line {
		size <<= 4
		switch {
		case b >= '0' && b <= '9':
			size |= int64(b - '0')
		case b >= 'a' && b <= 'f':
			size |= int64(b - 'a' + 10)
		case b >= 'A' && b <= 'F':
			size |= int64(b - 'A' + 10)
		default:
			return 0, ErrChunkedEncoding
		}
		if size > maxChunkSize {
			return 0, ErrChunkedEncoding
		}
	}
	return size, nil
}

// writeChunked emits body as a single chunk followed by the terminating
// zero chunk. Used when re-encoding a request that declared chunked
// framing.
func writeChunked(buf *bytes.Buffer, body []byte) {
	buf.WriteString(strconv.FormatInt(int64(len(body)), 16))
	buf.Write(crlf)
	buf.Write(body)
	buf.Write(crlf)
	buf.WriteString("0")
	buf.Write(crlf)
	buf.Write(crlf)
}
