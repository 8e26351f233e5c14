// ABOUTME: Modulator sinks for the transmitter: I/Q recorders and a counting discard
// ABOUTME: One file is opened per tuning so retunes split recordings
package sink

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/harper/rpitx-bridge/internal/domain"
	"github.com/harper/rpitx-bridge/internal/domain/transmitter"
)

const (
	KindWAV     = "wav"
	KindParquet = "parquet"
	KindDiscard = "discard"
)

// NewFactory returns a ModulatorFactory writing files of the given kind
// into dir.
func NewFactory(kind, dir string, sampleRate uint) (transmitter.ModulatorFactory, error) {
	switch kind {
	case KindDiscard:
		return func(domain.Tuning) (transmitter.Modulator, error) {
			return &Discard{sampleRate: sampleRate}, nil
		}, nil
	case KindWAV, KindParquet:
	default:
		return nil, fmt.Errorf("unknown sink kind %q", kind)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sink dir: %w", err)
	}

	var seq atomic.Uint64
	return func(t domain.Tuning) (transmitter.Modulator, error) {
		name := fmt.Sprintf("iq-%d-h%d-%03d.%s", t.Frequency, t.Harmonic, seq.Add(1), kind)
		path := filepath.Join(dir, name)
		if kind == KindWAV {
			return NewWAV(path, sampleRate)
		}
		return NewParquet(path, sampleRate, t)
	}, nil
}

// Discard counts samples and drops them.
type Discard struct {
	sampleRate uint
	samples    atomic.Uint64
}

func (d *Discard) WriteIQ(samples []complex64) (int, error) {
	d.samples.Add(uint64(len(samples)))
	return len(samples), nil
}

func (d *Discard) SampleRate() uint { return d.sampleRate }

func (d *Discard) Samples() uint64 { return d.samples.Load() }

func (d *Discard) Close() error { return nil }

// toInt16 undoes the /32768 scaling applied by the transmitter.
func toInt16(v float32) int16 {
	s := math.Round(float64(v) * 32768)
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}
