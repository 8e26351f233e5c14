// ABOUTME: Domain interfaces for dependency inversion
// ABOUTME: Lets the drain engine and transmitter depend on abstractions, not the host
package domain

import (
	"context"
	"io"
)

// HostSession is the stream session the host audio framework binds to an
// open endpoint. The engine never allocates or frees one.
type HostSession interface {
	ID() string
	// AvailableUnreadBytes reports how much producer data is waiting in the ring.
	AvailableUnreadBytes() int
	// CopyAt fills dst from the ring starting at byte offset, wrapping at capacity.
	CopyAt(dst []byte, offset int)
	// NotifyPeriodElapsed tells the host one period of ring space was drained.
	NotifyPeriodElapsed()
}

// StreamSource provides raw S16_LE PCM bytes for an endpoint
type StreamSource interface {
	Connect(ctx context.Context) (io.ReadCloser, error)
}

// Tuning is the pass-through RF state consumed by the transmitter.
type Tuning struct {
	Frequency uint32 `json:"frequency"`
	Harmonic  uint32 `json:"harmonic"`
}

// TuningProvider fetches the current frequency and harmonic
type TuningProvider interface {
	Fetch(ctx context.Context) (Tuning, error)
}
