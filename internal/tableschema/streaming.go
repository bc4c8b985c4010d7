package tableschema

// streaming.go provides the byte-level readers every CSV source is wrapped in
// before tokenising:
//
//   - utf8Sanitizer: replaces invalid UTF-8 bytes with '?'
//   - bomSkipper: drops a leading UTF-8 BOM (0xEF 0xBB 0xBF) from Windows exports
//   - sizeCap: fails with ErrSourceTooLarge once a remote body passes its limit
//
// A scan opens its source once, so the readers are built once per scan and
// hold no state beyond a few bytes.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkipper discards a UTF-8 BOM at the start of the stream.
type bomSkipper struct {
	r       *bufio.Reader
	checked bool
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{r: bufio.NewReader(r)}
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly.
// Replacement is byte-for-byte so output never grows past the caller's buffer.
type utf8Sanitizer struct {
	r io.Reader

	// bytes of a multi-byte rune split across two reads
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	if asciiOnly(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func asciiOnly(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to emit.
// Unless atEOF, a truncated rune at the end is held back for the next Read.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(data); {
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			if !atEOF && truncatedRune(data[r:]) {
				s.pending = append(s.pending, data[r:]...)
				return w
			}
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

// truncatedRune reports whether tail is a valid but incomplete rune prefix.
func truncatedRune(tail []byte) bool {
	if len(tail) >= utf8.UTFMax || len(tail) == 0 {
		return false
	}
	want := 0
	switch b := tail[0]; {
	case b&0xE0 == 0xC0:
		want = 2
	case b&0xF0 == 0xE0:
		want = 3
	case b&0xF8 == 0xF0:
		want = 4
	default:
		return false
	}
	if len(tail) >= want {
		return false
	}
	for _, b := range tail[1:] {
		if b&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// wrapForScanning strips a leading BOM, then sanitises UTF-8.
// BOM removal must happen first or the sanitiser would see it as data.
func wrapForScanning(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkipper(r))
}

// sizeCap reads at most max bytes from r. One byte past the limit turns into
// ErrSourceTooLarge rather than a silently truncated last row.
type sizeCap struct {
	r    io.Reader
	read int64
	max  int64
}

func (c *sizeCap) Read(p []byte) (int, error) {
	if c.read > c.max {
		return 0, c.err()
	}
	if room := c.max - c.read + 1; int64(len(p)) > room {
		p = p[:room]
	}
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return 0, c.err()
	}
	return n, err
}

func (c *sizeCap) err() error {
	return fmt.Errorf("%w: limit is %d bytes", ErrSourceTooLarge, c.max)
}
