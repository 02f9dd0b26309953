package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vela-web/vela/internal/buffer"
)

func cursorOver(t *testing.T, data string) (*Cursor, *buffer.Buffer) {
	buf := buffer.New(0, 1024)
	require.True(t, buf.Feed([]byte(data)))

	return NewCursor(buf), buf
}

func TestCursor(t *testing.T) {
	t.Run("peek and advance", func(t *testing.T) {
		c, _ := cursorOver(t, "abc")
		require.Equal(t, byte('a'), c.Current())
		require.True(t, c.Advance(1))
		require.Equal(t, byte('b'), c.Current())
		require.Equal(t, 2, c.Remaining())
	})

	t.Run("advance past end does not move", func(t *testing.T) {
		c, _ := cursorOver(t, "ab")
		require.False(t, c.Advance(3))
		require.Equal(t, 0, c.Pos())
		require.True(t, c.Advance(2))
		require.True(t, c.EOF())
		require.False(t, c.Advance(1))
	})

	t.Run("eol needs both CR and LF", func(t *testing.T) {
		c, _ := cursorOver(t, "\r\nx")
		require.True(t, c.EOL())

		c, _ = cursorOver(t, "\r")
		require.False(t, c.EOL())

		c, _ = cursorOver(t, "\rx")
		require.False(t, c.EOL())
	})

	t.Run("position survives a feed", func(t *testing.T) {
		c, buf := cursorOver(t, "ab")
		require.True(t, c.Advance(2))
		require.True(t, c.EOF())
		require.True(t, buf.Feed([]byte("cd")))
		require.False(t, c.EOF())
		require.Equal(t, byte('c'), c.Current())
	})

	t.Run("lookahead is bounded", func(t *testing.T) {
		c, _ := cursorOver(t, "abc")
		require.Equal(t, "abc", string(c.Lookahead(10)))
		require.Equal(t, "ab", string(c.Lookahead(2)))
		require.Equal(t, 0, c.Pos())
	})
}

func TestCheckpoint(t *testing.T) {
	t.Run("rollback restores position", func(t *testing.T) {
		c, _ := cursorOver(t, "abcdef")
		cp := c.Checkpoint()
		require.True(t, c.Advance(4))
		cp.Rollback()
		require.Equal(t, 0, c.Pos())
	})

	t.Run("commit keeps position", func(t *testing.T) {
		c, _ := cursorOver(t, "abcdef")
		cp := c.Checkpoint()
		require.True(t, c.Advance(4))
		cp.Commit()
		cp.Rollback()
		require.Equal(t, 4, c.Pos())
	})
}

func TestToken(t *testing.T) {
	c, _ := cursorOver(t, "hello world")
	tok := c.Token()
	require.True(t, c.Advance(5))
	require.Equal(t, "hello", tok.Text())
	require.Equal(t, "hello", tok.View())
	require.Equal(t, 5, tok.Len())
	require.Equal(t, []byte("hello"), tok.Bytes())
}

func TestMatchRaw(t *testing.T) {
	t.Run("match advances", func(t *testing.T) {
		c, _ := cursorOver(t, "GET /")
		require.True(t, MatchRaw("GET", c))
		require.Equal(t, 3, c.Pos())
	})

	t.Run("mismatch leaves cursor", func(t *testing.T) {
		c, _ := cursorOver(t, "GET /")
		require.False(t, MatchRaw("POST", c))
		require.Equal(t, 0, c.Pos())
	})

	t.Run("short input does not match", func(t *testing.T) {
		c, _ := cursorOver(t, "GE")
		require.False(t, MatchRaw("GET", c))
		require.Equal(t, 0, c.Pos())
	})
}
