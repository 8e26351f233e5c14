// ABOUTME: Fixed-capacity circular PCM buffer owned by the host side of an endpoint
// ABOUTME: Producer writes never overwrite unread data; reads happen at caller offsets
package ring

import "sync"

type Buffer struct {
	buf   []byte
	w     int // write position
	n     int // unread bytes
	mu    sync.Mutex
	space chan struct{}
}

func New(size int) *Buffer {
	return &Buffer{
		buf:   make([]byte, size),
		space: make(chan struct{}, 1),
	}
}

func (b *Buffer) Size() int {
	return len(b.buf)
}

// Rewind empties the buffer and places the next write at offset.
func (b *Buffer) Rewind(offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.w = offset % len(b.buf)
	b.n = 0
	b.signal()
}

// Write stores as much of p as fits and returns the count written.
func (b *Buffer) Write(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	chunk := len(b.buf) - b.n
	if chunk > len(p) {
		chunk = len(p)
	}
	if chunk == 0 {
		return 0
	}

	right := len(b.buf) - b.w
	if right > chunk {
		right = chunk
	}

	copy(b.buf[b.w:b.w+right], p[:right])
	if right < chunk {
		copy(b.buf[0:chunk-right], p[right:chunk])
	}

	b.w = (b.w + chunk) % len(b.buf)
	b.n += chunk
	return chunk
}

func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

func (b *Buffer) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf) - b.n
}

// CopyAt fills dst starting at offset, wrapping at the end of the buffer.
func (b *Buffer) CopyAt(dst []byte, offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	head := offset % len(b.buf)
	for len(dst) > 0 {
		c := copy(dst, b.buf[head:])
		dst = dst[c:]
		head = 0
	}
}

// Release marks n unread bytes as consumed and wakes a waiting writer.
func (b *Buffer) Release(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.n -= n
	if b.n < 0 {
		b.n = 0
	}
	b.signal()
}

// Space is signalled whenever Release or Rewind frees room.
func (b *Buffer) Space() <-chan struct{} {
	return b.space
}

func (b *Buffer) signal() {
	select {
	case b.space <- struct{}{}:
	default:
	}
}

// Snapshot returns the unread bytes, oldest first.
func (b *Buffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, b.n)
	if b.n == 0 {
		return out
	}

	head := (b.w - b.n + len(b.buf)) % len(b.buf)
	tail := b.w

	if head < tail {
		copy(out, b.buf[head:tail])
	} else {
		copy(out, b.buf[head:])
		copy(out[len(b.buf)-head:], b.buf[:tail])
	}

	return out
}
