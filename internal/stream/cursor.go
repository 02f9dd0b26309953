package stream

import (
	"github.com/indigo-web/utils/uf"

	"github.com/vela-web/vela/internal/buffer"
)

// Cursor is a read-only positional view over a buffer. The position survives
// between feeds, so a parser step may resume exactly where it suspended.
type Cursor struct {
	buf *buffer.Buffer
	pos int
}

func NewCursor(buf *buffer.Buffer) *Cursor {
	return &Cursor{buf: buf}
}

// Current peeks the byte at the position. The caller must ensure the cursor is
// not at the end of input.
func (c *Cursor) Current() byte {
	return c.buf.Bytes()[c.pos]
}

// Advance moves the position by n bytes. If fewer than n bytes remain, the
// cursor does not move at all and false is returned.
func (c *Cursor) Advance(n int) bool {
	if c.Remaining() < n {
		return false
	}

	c.pos += n
	return true
}

func (c *Cursor) EOF() bool {
	return c.pos >= c.buf.Len()
}

// EOL reports whether the two bytes at the position are CR, LF. With fewer than
// two bytes remaining it is false, letting the caller suspend instead.
func (c *Cursor) EOL() bool {
	b := c.buf.Bytes()
	return c.buf.Len()-c.pos >= 2 && b[c.pos] == '\r' && b[c.pos+1] == '\n'
}

func (c *Cursor) Remaining() int {
	return c.buf.Len() - c.pos
}

func (c *Cursor) Pos() int {
	return c.pos
}

// Lookahead returns up to n bytes starting at the position without moving it.
// The returned slice borrows the buffer's storage.
func (c *Cursor) Lookahead(n int) []byte {
	if remaining := c.Remaining(); n > remaining {
		n = remaining
	}

	return c.buf.Bytes()[c.pos : c.pos+n]
}

// Reset rewinds the cursor to the beginning of the buffer.
func (c *Cursor) Reset() {
	c.pos = 0
}

// Checkpoint records the position so the section consumed after it can be
// rolled back atomically. Release it with Commit once a complete section has
// been consumed; an un-committed checkpoint restores the saved position on
// Rollback, typically deferred.
type Checkpoint struct {
	cursor    *Cursor
	pos       int
	committed bool
}

func (c *Cursor) Checkpoint() *Checkpoint {
	return &Checkpoint{cursor: c, pos: c.pos}
}

// Commit keeps the bytes consumed since the checkpoint was taken.
func (cp *Checkpoint) Commit() {
	cp.committed = true
}

// Rollback restores the saved position unless Commit was called.
func (cp *Checkpoint) Rollback() {
	if !cp.committed {
		cp.cursor.pos = cp.pos
	}
}

// Token records a start position and later yields the half-open span
// [start, current).
type Token struct {
	cursor *Cursor
	start  int
}

func (c *Cursor) Token() Token {
	return Token{cursor: c, start: c.pos}
}

// Bytes returns the span as a borrowed byte range, valid until the buffer is
// cleared.
func (t Token) Bytes() []byte {
	return t.cursor.buf.Bytes()[t.start:t.cursor.pos]
}

// View returns the span as a borrowed string without copying.
func (t Token) View() string {
	return uf.B2S(t.Bytes())
}

// Text returns the span as an owned string.
func (t Token) Text() string {
	return string(t.Bytes())
}

func (t Token) Len() int {
	return t.cursor.pos - t.start
}

// MatchRaw advances the cursor past the literal if and only if the bytes at the
// position match it entirely.
func MatchRaw(literal string, c *Cursor) bool {
	if c.Remaining() < len(literal) {
		return false
	}

	if uf.B2S(c.Lookahead(len(literal))) != literal {
		return false
	}

	c.Advance(len(literal))
	return true
}
