package buffer

// Buffer is a bounded append-only region the bytes of an in-flight request are
// accumulated in. It refuses a feed as a whole instead of growing past its cap.
type Buffer struct {
	memory  []byte
	maxSize int
}

func New(initialSize, maxSize int) *Buffer {
	return &Buffer{
		memory:  make([]byte, 0, initialSize),
		maxSize: maxSize,
	}
}

// Feed appends data, checking whether the new length doesn't exceed the limit,
// otherwise discarding the data entirely and returning false.
func (b *Buffer) Feed(data []byte) (ok bool) {
	if len(b.memory)+len(data) > b.maxSize {
		return false
	}

	b.memory = append(b.memory, data...)
	return true
}

// Bytes returns the accumulated contents.
func (b *Buffer) Bytes() []byte {
	return b.memory
}

func (b *Buffer) Len() int {
	return len(b.memory)
}

// Clear resets the length, keeping the allocated space for reuse.
func (b *Buffer) Clear() {
	b.memory = b.memory[:0]
}
