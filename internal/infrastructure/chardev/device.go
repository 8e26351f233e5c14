// ABOUTME: Byte-stream device node the RF daemon reads periods from
// ABOUTME: Reads delegate to the drain engine; writes are always rejected
package chardev

import (
	"errors"

	"github.com/harper/rpitx-bridge/internal/domain/drain"
)

const Name = "rpitxin"

var (
	ErrWriteNotAllowed = errors.New("rpitxin: write not allowed")
	ErrFIFOUnsupported = errors.New("rpitxin: fifo export not supported on this platform")
)

type Drainer interface {
	Drain(dst []byte) drain.Result
}

// Device reads one period per call. A zero-length read with a nil error
// means no period was ready and the reader should poll again.
type Device struct {
	engine Drainer
}

func New(engine Drainer) *Device {
	return &Device{engine: engine}
}

func (d *Device) Read(p []byte) (int, error) {
	return d.engine.Drain(p).Produced, nil
}

func (d *Device) Write(p []byte) (int, error) {
	return 0, ErrWriteNotAllowed
}
