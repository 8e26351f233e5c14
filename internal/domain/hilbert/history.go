// ABOUTME: Causal FIR approximation of the Hilbert transform over a three-period window
// ABOUTME: Turns one real mono period into one interleaved I/Q period, delayed by a period
package hilbert

import (
	"github.com/harper/rpitx-bridge/internal/domain/period"
)

// twoOverPi is round(2/pi * 2^16).
const twoOverPi = 41722

const n = period.Samples

// History keeps the two trailing real periods needed to compute quadrature
// samples for the next incoming period. The zero value is a reset history.
type History struct {
	period1 [n]int16 // oldest
	period2 [n]int16
	period3 [n]int16 // scratch for the decoded input
}

// Reset zeroes the retained periods so a new session starts from silence.
func (h *History) Reset() {
	h.period1 = [n]int16{}
	h.period2 = [n]int16{}
}

// tap is one term of the convolution for tap index k over sample x.
// Taps where N-k is even are zero, which covers the centre tap k == N.
func tap(k int, x int16) int64 {
	if (n-k)%2 == 0 {
		return 0
	}
	return int64(twoOverPi) * int64(x) / int64(k-n)
}

// Process consumes in (period.Bytes of S16_LE real samples) and writes
// period.IQBytes of interleaved S16_LE (I, Q) pairs to out. The in-phase
// output is the middle retained period; in and out must not be shorter
// than those sizes.
func (h *History) Process(out, in []byte) {
	_ = out[period.IQBytes-1]
	period.Decode(h.period3[:], in[:period.Bytes])

	for i := 0; i < n; i++ {
		var acc int64
		for j := i; j < n; j++ {
			acc += tap(j-i, h.period1[j])
		}
		for j := 0; j < n; j++ {
			acc += tap(j-i+n, h.period2[j])
		}
		for j := 0; j < i; j++ {
			acc += tap(j-i+2*n, h.period3[j])
		}

		period.PutIQ(out, i, h.period2[i], int16((-acc)>>16))
	}

	h.period1 = h.period2
	h.period2 = h.period3
}
