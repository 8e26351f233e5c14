// ABOUTME: Read cursor into the host ring, advanced one period per drain
// ABOUTME: Kept across endpoint switches; always period aligned
package drain

import "github.com/harper/rpitx-bridge/internal/domain/period"

// Cursor is a byte offset in [0, period.BufferBytes).
type Cursor struct {
	offset int
}

func (c *Cursor) Offset() int {
	return c.offset
}

func (c *Cursor) Advance() {
	c.offset = (c.offset + period.Bytes) % period.BufferBytes
}
