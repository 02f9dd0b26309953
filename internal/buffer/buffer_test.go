package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	t.Run("feed appends", func(t *testing.T) {
		b := New(4, 16)
		require.True(t, b.Feed([]byte("hello")))
		require.True(t, b.Feed([]byte(" world")))
		require.Equal(t, "hello world", string(b.Bytes()))
		require.Equal(t, 11, b.Len())
	})

	t.Run("overflow refuses whole feed", func(t *testing.T) {
		b := New(0, 8)
		require.True(t, b.Feed([]byte("12345678")))
		require.False(t, b.Feed([]byte("9")))
		// nothing of the refused feed landed
		require.Equal(t, "12345678", string(b.Bytes()))
	})

	t.Run("oversized single feed", func(t *testing.T) {
		b := New(0, 4)
		require.False(t, b.Feed([]byte("12345")))
		require.Zero(t, b.Len())
	})

	t.Run("clear", func(t *testing.T) {
		b := New(0, 8)
		require.True(t, b.Feed([]byte("abc")))
		b.Clear()
		require.Zero(t, b.Len())
		require.True(t, b.Feed([]byte("12345678")))
	})
}
