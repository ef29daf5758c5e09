package llm

import "bytes"

// LineReader buffers inbound bytes and hands out complete lines. It knows
// nothing about the transport; callers Append whatever chunks arrive and
// drain lines with Next.
type LineReader struct {
	buf []byte
}

// Append adds p to the buffer. p is copied.
func (r *LineReader) Append(p []byte) {
	r.buf = append(r.buf, p...)
}

// Next pops the next complete line without its terminator. A trailing '\r'
// is dropped. ok is false when no complete line is buffered.
func (r *LineReader) Next() (line string, ok bool) {
	i := bytes.IndexByte(r.buf, '\n')
	if i < 0 {
		return "", false
	}
	b := r.buf[:i]
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	line = string(b)
	r.buf = r.buf[i+1:]
	return line, true
}

// Buffered returns the bytes of the incomplete trailing line.
func (r *LineReader) Buffered() []byte {
	return r.buf
}
