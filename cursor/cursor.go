// Package cursor implements the byte cursor (C1 in the design) that every
// other decoding component reads through: a rewindable position over a
// growable buffer that signals "short read" instead of returning an error
// when asked for more bytes than are currently available.
package cursor

import (
	"encoding/binary"

	"github.com/brightloop/rtmp-ingest/internal/binary24"
)

// Cursor wraps a contiguous buffer with a read position. Unlike a
// bufio.Reader, a short read is not an error condition: callers call
// Remaining() first (or check the bool return of the Read*/Peek/Skip methods) and
// rewind via Reset when there isn't enough data yet, same as the teacher's
// ReadByteReaderCounter but adapted for the feed() model instead of a
// blocking socket read.
type Cursor struct {
	buf []byte
	pos int
	mk  int
}

// New wraps buf in a Cursor positioned at the start.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Append appends more bytes to the end of the backing buffer. Used by the
// decoder's Feed() to extend the cursor across calls without losing the
// current position.
func (c *Cursor) Append(b []byte) {
	c.buf = append(c.buf, b...)
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Position returns the current read offset into the backing buffer.
func (c *Cursor) Position() int {
	return c.pos
}

// SetPosition moves the read offset directly. Used to rewind to a mark.
func (c *Cursor) SetPosition(p int) {
	c.pos = p
}

// Mark records the current position for a later Reset.
func (c *Cursor) Mark() {
	c.mk = c.pos
}

// Reset rewinds the position back to the last Mark.
func (c *Cursor) Reset() {
	c.pos = c.mk
}

// Len returns the total length of the backing buffer, read or not.
func (c *Cursor) Len() int {
	return len(c.buf)
}

// Compact discards bytes before the current position, shifting the backing
// buffer down to start at 0. Called by the decoder after each successful
// decode cycle so the buffer doesn't grow unbounded across feeds.
func (c *Cursor) Compact() {
	if c.pos == 0 {
		return
	}
	n := copy(c.buf, c.buf[c.pos:])
	c.buf = c.buf[:n]
	c.pos = 0
	c.mk = 0
}

// Peek returns the next n bytes without advancing the position, and false
// if fewer than n bytes are available.
func (c *Cursor) Peek(n int) ([]byte, bool) {
	if c.Remaining() < n {
		return nil, false
	}
	return c.buf[c.pos : c.pos+n], true
}

// PeekByte returns the next byte without advancing, and false if the
// cursor is exhausted.
func (c *Cursor) PeekByte() (byte, bool) {
	if c.Remaining() < 1 {
		return 0, false
	}
	return c.buf[c.pos], true
}

// ReadU8 reads one byte and advances. The bool is false (and the cursor is
// left unmoved) on short read.
func (c *Cursor) ReadU8() (byte, bool) {
	if c.Remaining() < 1 {
		return 0, false
	}
	b := c.buf[c.pos]
	c.pos++
	return b, true
}

// ReadU16BE reads a big-endian uint16.
func (c *Cursor) ReadU16BE() (uint16, bool) {
	if c.Remaining() < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos : c.pos+2])
	c.pos += 2
	return v, true
}

// ReadU24BE reads a big-endian 24-bit unsigned integer, returned widened to
// uint32, using the teacher's binary24 helper.
func (c *Cursor) ReadU24BE() (uint32, bool) {
	if c.Remaining() < 3 {
		return 0, false
	}
	v := binary24.BigEndian.Uint24(c.buf[c.pos : c.pos+3])
	c.pos += 3
	return v, true
}

// ReadI32BE reads a big-endian signed 32-bit integer.
func (c *Cursor) ReadI32BE() (int32, bool) {
	u, ok := c.ReadU32BE()
	if !ok {
		return 0, false
	}
	return int32(u), true
}

// ReadU32BE reads a big-endian uint32.
func (c *Cursor) ReadU32BE() (uint32, bool) {
	if c.Remaining() < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, true
}

// ReadU32LE reads a little-endian uint32 ("reverse int" in the spec's
// vocabulary — used for the stream id field of a chunk message header).
func (c *Cursor) ReadU32LE() (uint32, bool) {
	if c.Remaining() < 4 {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, true
}

// ReadBytes returns a slice of the next n bytes and advances. The returned
// slice aliases the cursor's backing buffer — callers that need to retain
// it past the current Feed() call (e.g. to build an owned Event) must copy
// it, since Compact() may move or the buffer may be reused on growth.
func (c *Cursor) ReadBytes(n int) ([]byte, bool) {
	if c.Remaining() < n {
		return nil, false
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, true
}

// Skip advances the position by n bytes without returning them.
func (c *Cursor) Skip(n int) bool {
	if c.Remaining() < n {
		return false
	}
	c.pos += n
	return true
}
